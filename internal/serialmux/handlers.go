package serialmux

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/banshee-data/lookahead/internal/bus"
	"github.com/banshee-data/lookahead/internal/monitoring"
	"github.com/banshee-data/lookahead/internal/waypoint"
)

// HandleEvent decodes a single line and publishes it on the matching bus
// topic. Unknown lines are logged and ignored.
func HandleEvent(b *bus.Bus, payload string) error {
	env, kind := parseEnvelope(payload)
	switch kind {
	case EventTypePose:
		var pose waypoint.PoseStamped
		if err := json.Unmarshal(env.Data, &pose); err != nil {
			return fmt.Errorf("failed to decode pose: %w", err)
		}
		b.Pose.Publish(pose)
	case EventTypeRoute:
		var route waypoint.Route
		if err := json.Unmarshal(env.Data, &route); err != nil {
			return fmt.Errorf("failed to decode route: %w", err)
		}
		monitoring.Logf("serial: route of %d waypoints", route.Len())
		b.Route.Publish(route)
	case EventTypeTraffic:
		var msg waypoint.TrafficWaypoint
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return fmt.Errorf("failed to decode traffic waypoint: %w", err)
		}
		b.Traffic.Publish(msg)
	case EventTypeObstacle:
		var o waypoint.Obstacle
		if err := json.Unmarshal(env.Data, &o); err != nil {
			return fmt.Errorf("failed to decode obstacle: %w", err)
		}
		b.Obstacle.Publish(o)
	default:
		monitoring.Logf("unknown event type: %s", truncate(payload, 120))
	}
	return nil
}

// Ingest feeds every line from a serial subscription through HandleEvent
// until ctx is cancelled or lines closes. Subscribe before starting Monitor
// so no line is broadcast ahead of the subscription. Decode failures are
// logged and skipped.
func Ingest(ctx context.Context, lines <-chan string, b *bus.Bus) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := HandleEvent(b, line); err != nil {
				monitoring.Errorf("serial: %v", err)
			}
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
