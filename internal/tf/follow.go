package tf

import (
	"context"

	"github.com/banshee-data/lookahead/internal/monitoring"
	"github.com/banshee-data/lookahead/internal/waypoint"
)

// FollowPoses records every vehicle pose from poses as the transform from
// the pose frame (worldFrame when unset) into bodyFrame. It runs until ctx
// is cancelled or poses is closed, independently of whoever consumes the
// transforms.
func (b *Buffer) FollowPoses(ctx context.Context, poses <-chan waypoint.PoseStamped, worldFrame, bodyFrame string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case pose, ok := <-poses:
			if !ok {
				return nil
			}
			parent := pose.Header.FrameID
			if parent == "" {
				parent = worldFrame
			}
			if err := b.SetFromPose(parent, bodyFrame, pose.Pose, pose.Header.Stamp); err != nil {
				monitoring.Errorf("tf: dropping pose update: %v", err)
			}
		}
	}
}
