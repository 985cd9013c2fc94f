// Package tf resolves rigid transforms between named coordinate frames.
//
// The planner only depends on the Transformer capability. Buffer is the
// in-process implementation fed by pose updates; TransformFunc and Static
// adapt plain functions and fixed transforms for tests and offline tools.
package tf

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/lookahead/internal/geom"
)

var (
	// ErrLookup means one of the frames has never been published.
	ErrLookup = errors.New("frame does not exist")
	// ErrConnectivity means both frames exist but share no common ancestor.
	ErrConnectivity = errors.New("frames are not connected")
	// ErrExtrapolation means the newest available transform is older than
	// the permitted age.
	ErrExtrapolation = errors.New("transform is too old")
	// ErrTimeout means no usable transform became available within the wait.
	ErrTimeout = errors.New("timed out waiting for transform")
)

// TransformError reports a failed transform between two frames.
type TransformError struct {
	From string
	To   string
	Err  error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform %q -> %q: %v", e.From, e.To, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

// Transformer converts a pose expressed in one frame into another frame,
// waiting at most timeout for the transform to become available.
type Transformer interface {
	TryTransform(ctx context.Context, pose geom.Pose, from, to string, timeout time.Duration) (geom.Pose, error)
}

// Pinner is implemented by transformers that can hold their view of the frame
// tree fixed. The planner pins once per route pass so every waypoint in the
// pass is resolved against the same vehicle pose.
type Pinner interface {
	Pin() Transformer
}

// TransformFunc adapts an ordinary function to the Transformer interface.
type TransformFunc func(ctx context.Context, pose geom.Pose, from, to string, timeout time.Duration) (geom.Pose, error)

// TryTransform calls f.
func (f TransformFunc) TryTransform(ctx context.Context, pose geom.Pose, from, to string, timeout time.Duration) (geom.Pose, error) {
	return f(ctx, pose, from, to, timeout)
}

// Static applies one fixed transform regardless of the frames requested.
type Static struct {
	T geom.Transform
}

// TryTransform applies s.T to pose.
func (s Static) TryTransform(_ context.Context, pose geom.Pose, _, _ string, _ time.Duration) (geom.Pose, error) {
	return s.T.ApplyPose(pose), nil
}
