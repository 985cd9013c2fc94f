package tf

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/banshee-data/lookahead/internal/geom"
	"github.com/banshee-data/lookahead/internal/timeutil"
)

// edge is the transform from a child frame into its parent.
type edge struct {
	parent string
	t      geom.Transform
	stamp  time.Time
}

// Buffer holds the latest transform of every child frame relative to its
// parent and resolves arbitrary pairs through their common ancestor.
type Buffer struct {
	mu      sync.Mutex
	clock   timeutil.Clock
	maxAge  time.Duration
	edges   map[string]edge
	updated chan struct{}
}

// Option configures a Buffer.
type Option func(*Buffer)

// WithClock sets the clock used for waits and staleness checks.
func WithClock(c timeutil.Clock) Option {
	return func(b *Buffer) { b.clock = c }
}

// WithMaxAge rejects transforms older than d. Zero disables the check.
func WithMaxAge(d time.Duration) Option {
	return func(b *Buffer) { b.maxAge = d }
}

// NewBuffer returns an empty Buffer.
func NewBuffer(opts ...Option) *Buffer {
	b := &Buffer{
		clock:   timeutil.RealClock{},
		edges:   make(map[string]edge),
		updated: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetTransform records t as the transform from child into parent, replacing
// any previous transform of child.
func (b *Buffer) SetTransform(parent, child string, t geom.Transform, stamp time.Time) error {
	if parent == "" || child == "" {
		return fmt.Errorf("frame names must not be empty (parent=%q child=%q)", parent, child)
	}
	if parent == child {
		return fmt.Errorf("frame %q cannot be its own parent", child)
	}
	if !t.IsFinite() {
		return fmt.Errorf("transform %q -> %q is not finite", child, parent)
	}
	if !geom.IsRigid(t.Matrix()) {
		return fmt.Errorf("transform %q -> %q is not rigid: rotation %v is not a unit quaternion", child, parent, t.Rotation)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for f := parent; ; {
		e, ok := b.edges[f]
		if !ok {
			break
		}
		if e.parent == child {
			return fmt.Errorf("setting %q as parent of %q would create a cycle", parent, child)
		}
		f = e.parent
	}

	if stamp.IsZero() {
		stamp = b.clock.Now()
	}
	b.edges[child] = edge{parent: parent, t: t, stamp: stamp}

	close(b.updated)
	b.updated = make(chan struct{})
	return nil
}

// SetFromPose records a body pose expressed in parent as the parent -> body
// transform. This is how vehicle pose updates feed the buffer.
func (b *Buffer) SetFromPose(parent, child string, pose geom.Pose, stamp time.Time) error {
	// the orientation is kept as sent so a malformed one is rejected rather
	// than silently normalised
	return b.SetTransform(parent, child, geom.Transform{Translation: pose.Position, Rotation: pose.Orientation}, stamp)
}

// Frames lists every known frame in sorted order.
func (b *Buffer) Frames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	seen := make(map[string]struct{}, 2*len(b.edges))
	for child, e := range b.edges {
		seen[child] = struct{}{}
		seen[e.parent] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Lookup returns the transform mapping coordinates in from into to.
func (b *Buffer) Lookup(from, to string) (geom.Transform, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lookupLocked(from, to)
}

// chainLink is the transform from a frame into one of its ancestors, with
// the oldest stamp used on the way.
type chainLink struct {
	t      geom.Transform
	oldest time.Time
}

func (b *Buffer) ancestors(frame string) ([]string, map[string]chainLink) {
	order := []string{frame}
	links := map[string]chainLink{frame: {t: geom.Identity()}}
	acc := geom.Identity()
	var oldest time.Time
	for f := frame; ; {
		e, ok := b.edges[f]
		if !ok {
			break
		}
		acc = e.t.Compose(acc)
		if oldest.IsZero() || e.stamp.Before(oldest) {
			oldest = e.stamp
		}
		links[e.parent] = chainLink{t: acc, oldest: oldest}
		order = append(order, e.parent)
		f = e.parent
	}
	return order, links
}

func (b *Buffer) known(frame string) bool {
	if _, ok := b.edges[frame]; ok {
		return true
	}
	for _, e := range b.edges {
		if e.parent == frame {
			return true
		}
	}
	return false
}

func (b *Buffer) lookupLocked(from, to string) (geom.Transform, error) {
	if from == to {
		return geom.Identity(), nil
	}
	for _, f := range []string{from, to} {
		if !b.known(f) {
			return geom.Transform{}, &TransformError{From: from, To: to, Err: fmt.Errorf("%w: %q", ErrLookup, f)}
		}
	}

	fromOrder, fromLinks := b.ancestors(from)
	_, toLinks := b.ancestors(to)

	for _, a := range fromOrder {
		toLink, ok := toLinks[a]
		if !ok {
			continue
		}
		fromLink := fromLinks[a]

		if b.maxAge > 0 {
			oldest := fromLink.oldest
			if oldest.IsZero() || (!toLink.oldest.IsZero() && toLink.oldest.Before(oldest)) {
				oldest = toLink.oldest
			}
			if !oldest.IsZero() {
				if age := b.clock.Now().Sub(oldest); age > b.maxAge {
					return geom.Transform{}, &TransformError{From: from, To: to,
						Err: fmt.Errorf("%w: age %v exceeds %v", ErrExtrapolation, age, b.maxAge)}
				}
			}
		}

		// to <- a <- from
		return toLink.t.Inverse().Compose(fromLink.t), nil
	}
	return geom.Transform{}, &TransformError{From: from, To: to, Err: ErrConnectivity}
}

// TryTransform maps pose from one frame into another. When the transform is
// not yet available it waits for buffer updates until timeout elapses or ctx
// is cancelled.
func (b *Buffer) TryTransform(ctx context.Context, pose geom.Pose, from, to string, timeout time.Duration) (geom.Pose, error) {
	t, err := b.resolve(ctx, from, to, timeout)
	if err != nil {
		return geom.Pose{}, err
	}
	return t.ApplyPose(pose), nil
}

func (b *Buffer) resolve(ctx context.Context, from, to string, timeout time.Duration) (geom.Transform, error) {
	var timer timeutil.Timer
	for {
		b.mu.Lock()
		t, err := b.lookupLocked(from, to)
		updated := b.updated
		b.mu.Unlock()

		if err == nil {
			if timer != nil {
				timer.Stop()
			}
			return t, nil
		}
		if timeout <= 0 {
			return geom.Transform{}, err
		}
		if timer == nil {
			timer = b.clock.NewTimer(timeout)
		}

		select {
		case <-updated:
		case <-timer.C():
			return geom.Transform{}, &TransformError{From: from, To: to,
				Err: fmt.Errorf("%w after %v: %w", ErrTimeout, timeout, unwrapTransform(err))}
		case <-ctx.Done():
			timer.Stop()
			return geom.Transform{}, &TransformError{From: from, To: to, Err: ctx.Err()}
		}
	}
}

// Pin returns a view of b that remembers each frame pair the first time it
// resolves and reuses that transform afterwards. Failed lookups are not
// remembered and go back to b on the next call.
func (b *Buffer) Pin() Transformer {
	return &pinned{buf: b, seen: make(map[framePair]geom.Transform)}
}

type framePair struct{ from, to string }

type pinned struct {
	buf  *Buffer
	mu   sync.Mutex
	seen map[framePair]geom.Transform
}

func (p *pinned) TryTransform(ctx context.Context, pose geom.Pose, from, to string, timeout time.Duration) (geom.Pose, error) {
	key := framePair{from, to}
	p.mu.Lock()
	t, ok := p.seen[key]
	p.mu.Unlock()
	if ok {
		return t.ApplyPose(pose), nil
	}

	t, err := p.buf.resolve(ctx, from, to, timeout)
	if err != nil {
		return geom.Pose{}, err
	}
	p.mu.Lock()
	p.seen[key] = t
	p.mu.Unlock()
	return t.ApplyPose(pose), nil
}

func unwrapTransform(err error) error {
	var te *TransformError
	if errors.As(err, &te) {
		return te.Err
	}
	return err
}
