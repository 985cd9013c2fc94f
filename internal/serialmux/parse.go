package serialmux

import (
	"encoding/json"
	"strings"

	"github.com/banshee-data/lookahead/internal/bus"
)

// Event type tokens. The first four match the bus topic names carried in the
// line envelope.
const (
	EventTypePose     = bus.TopicCurrentPose
	EventTypeRoute    = bus.TopicBaseWaypoints
	EventTypeTraffic  = bus.TopicTrafficWaypoint
	EventTypeObstacle = bus.TopicObstacleWaypoint
	EventTypeUnknown  = "unknown"
)

// maxLineBytes bounds a single line; a route of a few thousand waypoints
// fits comfortably.
const maxLineBytes = 8 * 1024 * 1024

// Envelope is the JSON line format emitted by the vehicle bridge:
//
//	{"topic":"current_pose","data":{...}}
type Envelope struct {
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

// ClassifyPayload inspects a payload line and returns its event type token.
// Lines that are not JSON envelopes, or name an unrecognised topic, are
// EventTypeUnknown.
func ClassifyPayload(payload string) string {
	_, kind := parseEnvelope(payload)
	return kind
}

func parseEnvelope(payload string) (Envelope, string) {
	payload = strings.TrimSpace(payload)
	if !strings.HasPrefix(payload, "{") {
		return Envelope{}, EventTypeUnknown
	}
	var env Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return Envelope{}, EventTypeUnknown
	}
	switch env.Topic {
	case EventTypePose, EventTypeRoute, EventTypeTraffic, EventTypeObstacle:
		return env, env.Topic
	default:
		return env, EventTypeUnknown
	}
}
