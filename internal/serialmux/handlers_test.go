package serialmux

import (
	"context"
	"testing"

	"github.com/banshee-data/lookahead/internal/bus"
	"github.com/banshee-data/lookahead/internal/monitoring"
	"github.com/banshee-data/lookahead/internal/waypoint"
)

const (
	poseLine     = `{"topic":"current_pose","data":{"header":{"frame_id":"world"},"pose":{"position":{"x":1,"y":2,"z":0},"orientation":{"x":0,"y":0,"z":0,"w":1}}}}`
	routeLine    = `{"topic":"base_waypoints","data":{"header":{"frame_id":"world"},"waypoints":[{"pose":{"pose":{"position":{"x":5,"y":0,"z":0},"orientation":{"x":0,"y":0,"z":0,"w":1}}},"twist":{"linear":{"x":3,"y":0,"z":0}}}]}}`
	trafficLine  = `{"topic":"traffic_waypoint","data":{"index":42}}`
	obstacleLine = `{"topic":"obstacle_waypoint","data":{"index":7}}`
)

func muteLogs(t *testing.T) {
	t.Helper()
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })
}

func TestClassifyPayload(t *testing.T) {
	tests := []struct {
		payload string
		want    string
	}{
		{poseLine, EventTypePose},
		{routeLine, EventTypeRoute},
		{trafficLine, EventTypeTraffic},
		{obstacleLine, EventTypeObstacle},
		{`  ` + trafficLine + "\r", EventTypeTraffic},
		{`{"topic":"final_waypoints","data":{}}`, EventTypeUnknown},
		{`{"index":3}`, EventTypeUnknown},
		{`{not json`, EventTypeUnknown},
		{`$GPGGA,123519,4807.038,N`, EventTypeUnknown},
		{``, EventTypeUnknown},
	}
	for _, tt := range tests {
		if got := ClassifyPayload(tt.payload); got != tt.want {
			t.Errorf("ClassifyPayload(%q) = %q, want %q", tt.payload, got, tt.want)
		}
	}
}

func TestHandleEvent_PublishesToBus(t *testing.T) {
	muteLogs(t)
	b := bus.New()
	defer b.Close()

	for _, line := range []string{poseLine, routeLine, trafficLine, obstacleLine, "garbage"} {
		if err := HandleEvent(b, line); err != nil {
			t.Fatalf("HandleEvent(%q): %v", line, err)
		}
	}

	pose, ok := b.Pose.Latest()
	if !ok || pose.Pose.Position.X != 1 || pose.Header.FrameID != "world" {
		t.Errorf("pose = %+v, %v", pose, ok)
	}
	route, ok := b.Route.Latest()
	if !ok || route.Len() != 1 || route.Waypoints[0].Speed() != 3 {
		t.Errorf("route = %+v, %v", route, ok)
	}
	traffic, ok := b.Traffic.Latest()
	if !ok || traffic.Index != 42 {
		t.Errorf("traffic = %+v, %v", traffic, ok)
	}
	obstacle, ok := b.Obstacle.Latest()
	if !ok || obstacle.Index != 7 {
		t.Errorf("obstacle = %+v, %v", obstacle, ok)
	}
}

func TestHandleEvent_DecodeErrors(t *testing.T) {
	muteLogs(t)
	b := bus.New()
	defer b.Close()

	for _, line := range []string{
		`{"topic":"current_pose","data":{"pose":{"position":"north"}}}`,
		`{"topic":"base_waypoints","data":{"waypoints":{}}}`,
		`{"topic":"traffic_waypoint","data":{"index":"soon"}}`,
		`{"topic":"obstacle_waypoint","data":[]}`,
	} {
		if err := HandleEvent(b, line); err == nil {
			t.Errorf("HandleEvent(%q) expected error", line)
		}
	}
}

func TestIngest(t *testing.T) {
	muteLogs(t)
	b := bus.New()
	defer b.Close()

	lines := make(chan string, 4)
	lines <- routeLine
	lines <- `{"topic":"traffic_waypoint","data":"bad"}`
	lines <- trafficLine
	close(lines)

	if err := Ingest(context.Background(), lines, b); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if _, ok := b.Route.Latest(); !ok {
		t.Error("expected route published")
	}
	if msg, _ := b.Traffic.Latest(); msg.Index != 42 {
		t.Errorf("traffic index = %d, want 42 (bad line must be skipped)", msg.Index)
	}
	if _, ok := b.Pose.Latest(); ok {
		t.Error("no pose was sent")
	}
}

func TestIngest_Cancel(t *testing.T) {
	b := bus.New()
	defer b.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Ingest(ctx, make(chan string), b); err != context.Canceled {
		t.Errorf("Ingest = %v, want context.Canceled", err)
	}
}

func TestIngest_NoStopLine(t *testing.T) {
	muteLogs(t)
	b := bus.New()
	defer b.Close()
	if err := HandleEvent(b, `{"topic":"traffic_waypoint","data":{"index":-1}}`); err != nil {
		t.Fatal(err)
	}
	if msg, _ := b.Traffic.Latest(); msg.Index != waypoint.NoStopLine {
		t.Errorf("index = %d, want NoStopLine", msg.Index)
	}
}

func TestSampleFixtureDecodes(t *testing.T) {
	muteLogs(t)
	lines, err := LoadFixture("../../config/fixtures.sample.jsonl")
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	if len(lines) != 5 {
		t.Fatalf("got %d fixture lines, want 5", len(lines))
	}

	b := bus.New()
	defer b.Close()
	for _, line := range lines {
		if ClassifyPayload(line) == EventTypeUnknown {
			t.Errorf("fixture line not recognised: %s", line)
		}
		if err := HandleEvent(b, line); err != nil {
			t.Errorf("HandleEvent: %v", err)
		}
	}

	route, ok := b.Route.Latest()
	if !ok || route.Len() != 6 {
		t.Fatalf("route not published: ok=%v len=%d", ok, route.Len())
	}
	pose, ok := b.Pose.Latest()
	if !ok || pose.Pose.Position.X != 5.0 {
		t.Errorf("latest pose = %+v (ok=%v), want x=5", pose.Pose.Position, ok)
	}
	if msg, ok := b.Traffic.Latest(); !ok || msg.Index != waypoint.NoStopLine {
		t.Errorf("traffic = %+v (ok=%v), want no stop line", msg, ok)
	}
	if o, ok := b.Obstacle.Latest(); !ok || o.Index != 4 {
		t.Errorf("obstacle = %+v (ok=%v), want index 4", o, ok)
	}
}
