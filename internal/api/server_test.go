package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lookahead/internal/bus"
	"github.com/banshee-data/lookahead/internal/db"
	"github.com/banshee-data/lookahead/internal/geom"
	"github.com/banshee-data/lookahead/internal/monitoring"
	"github.com/banshee-data/lookahead/internal/planner"
	"github.com/banshee-data/lookahead/internal/tf"
	"github.com/banshee-data/lookahead/internal/waypoint"
)

type fakePlanStore struct {
	plans []db.PlanRecord
	err   error
	limit int
}

func (f *fakePlanStore) RecentPlans(_ context.Context, limit int) ([]db.PlanRecord, error) {
	f.limit = limit
	return f.plans, f.err
}

type testEnv struct {
	bus     *bus.Bus
	planner *planner.Planner
	store   *fakePlanStore
	mux     *http.ServeMux
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })

	b := bus.New()
	t.Cleanup(b.Close)

	cfg := planner.DefaultConfig()
	cfg.WindowSize = 2
	cfg.CruiseSpeed = 10
	p, err := planner.New(cfg, tf.Static{T: geom.Identity()}, planner.PublisherFunc(b.Window.Publish))
	require.NoError(t, err)

	store := &fakePlanStore{}
	s := NewServer(b, p, store, "kph")
	return &testEnv{bus: b, planner: p, store: store, mux: s.ServeMux()}
}

func (e *testEnv) do(t *testing.T, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func lineRoute(xs ...float64) waypoint.Route {
	r := waypoint.Route{Header: waypoint.Header{FrameID: "world"}}
	for _, x := range xs {
		r.Waypoints = append(r.Waypoints, waypoint.Waypoint{Pose: waypoint.PoseStamped{Pose: geom.NewPose(x, 0, 0, 0)}})
	}
	return r
}

func TestShowWindow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/window", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	env.planner.OnRouteSnapshot(context.Background(), lineRoute(-1, 1, 2, 3))

	rec = env.do(t, http.MethodGet, "/api/window", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var window waypoint.Route
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &window))
	require.Equal(t, 2, window.Len())
	assert.Equal(t, 1.0, window.Waypoints[0].Position().X)
	assert.Equal(t, 10.0, window.Waypoints[1].Speed())

	rec = env.do(t, http.MethodPost, "/api/window", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPose(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/pose", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	body := `{"header":{"frame_id":"world"},"pose":{"position":{"x":4,"y":5,"z":0},"orientation":{"x":0,"y":0,"z":0,"w":1}}}`
	rec = env.do(t, http.MethodPost, "/api/pose", "application/json", body)
	require.Equal(t, http.StatusAccepted, rec.Code)
	pose, ok := env.bus.Pose.Latest()
	require.True(t, ok)
	assert.Equal(t, 4.0, pose.Pose.Position.X)

	env.planner.OnPoseUpdate(context.Background(), pose)
	rec = env.do(t, http.MethodGet, "/api/pose", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"x":4`)

	rec = env.do(t, http.MethodPost, "/api/pose", "application/json", `{"pose":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/pose", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRoute(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/route", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	data, err := json.Marshal(lineRoute(1, 2, 3))
	require.NoError(t, err)
	rec = env.do(t, http.MethodPost, "/api/route", "application/json", string(data))
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"waypoints":3`)
	route, ok := env.bus.Route.Latest()
	require.True(t, ok)
	assert.Equal(t, 3, route.Len())

	env.planner.OnRouteSnapshot(context.Background(), route)
	rec = env.do(t, http.MethodGet, "/api/route", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got waypoint.Route
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 3, got.Len())
}

func TestRoute_CSVUpload(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/route?frame=map&speed=4.5", "text/csv; charset=utf-8", "1,2,0,0\n3,4,0,0.5\n")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	route, ok := env.bus.Route.Latest()
	require.True(t, ok)
	assert.Equal(t, "map", route.Header.FrameID)
	assert.Equal(t, 4.5, route.Waypoints[1].Speed())

	rec = env.do(t, http.MethodPost, "/api/route", "text/csv", "1,2\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/route?speed=-1", "text/csv", "1,2,0,0\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrafficAndObstacle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/traffic", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"index":-1}`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/traffic", "application/json", `{"index":12}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	msg, _ := env.bus.Traffic.Latest()
	assert.Equal(t, 12, msg.Index)

	rec = env.do(t, http.MethodPost, "/api/traffic", "application/json", `{"index":-5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/obstacle", "application/json", `{"index":3}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	o, ok := env.bus.Obstacle.Latest()
	require.True(t, ok)
	assert.Equal(t, 3, o.Index)

	rec = env.do(t, http.MethodGet, "/api/obstacle", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouteDistance(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/route/distance?from=0&to=2", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	env.planner.OnRouteSnapshot(context.Background(), lineRoute(0, 3, 7))

	tests := []struct {
		query  string
		status int
		want   float64
	}{
		{"from=0&to=2", http.StatusOK, 7},
		{"from=1&to=1", http.StatusOK, 0},
		{"from=2&to=0", http.StatusOK, 0},
		{"from=0&to=9", http.StatusBadRequest, 0},
		{"from=x&to=1", http.StatusBadRequest, 0},
		{"from=0", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/route/distance?"+tt.query, "", "")
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status != http.StatusOK {
				return
			}
			var resp struct {
				Distance float64 `json:"distance_m"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.InDelta(t, tt.want, resp.Distance, 1e-9)
		})
	}
}

func TestListPlans(t *testing.T) {
	env := newTestEnv(t)
	env.store.plans = []db.PlanRecord{{ID: 1, StartIndex: 4, WindowLen: 2, PlannedAt: time.Unix(0, 0).UTC()}}

	rec := env.do(t, http.MethodGet, "/api/plans?limit=5", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, env.store.limit)
	var plans []db.PlanRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plans))
	require.Len(t, plans, 1)
	assert.Equal(t, 4, plans[0].StartIndex)

	rec = env.do(t, http.MethodGet, "/api/plans", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, env.store.limit)

	rec = env.do(t, http.MethodGet, "/api/plans?limit=0", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.store.err = errors.New("locked")
	rec = env.do(t, http.MethodGet, "/api/plans", "", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListPlans_Disabled(t *testing.T) {
	env := newTestEnv(t)
	s := NewServer(env.bus, env.planner, nil, "")
	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/plans", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestShowStats(t *testing.T) {
	env := newTestEnv(t)
	env.planner.OnRouteSnapshot(context.Background(), lineRoute(-1, -2))

	rec := env.do(t, http.MethodGet, "/api/stats", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp statsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint64(1), resp.Counters.Plans)
	assert.Equal(t, uint64(1), resp.Counters.Fallbacks)
	assert.Equal(t, 2, resp.WindowSize)
	assert.Equal(t, "kph", resp.SpeedUnits)
	assert.InDelta(t, 36.0, resp.CruiseSpeed, 1e-9)
	assert.Contains(t, resp.Dropped, bus.TopicFinalWaypoints)
}

func TestWindowChart(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/charts/window", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	env.planner.OnPoseUpdate(context.Background(), waypoint.PoseStamped{Pose: geom.NewPose(0, 0, 0, 0)})
	env.planner.OnRouteSnapshot(context.Background(), lineRoute(-1, 1, 2, 3))

	rec = env.do(t, http.MethodGet, "/charts/window", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "Lookahead Window")
	assert.Contains(t, body, "vehicle")
}

func TestRouteScatterStride(t *testing.T) {
	xs := make([]float64, 25)
	for i := range xs {
		xs[i] = float64(i)
	}
	assert.Len(t, routeScatter(lineRoute(xs...), 10), 9)
	assert.Len(t, routeScatter(lineRoute(xs...), 0), 25)
}

func TestLoggingMiddleware(t *testing.T) {
	var lines []string
	original := monitoring.Logf
	monitoring.SetLogger(func(format string, v ...interface{}) { lines = append(lines, format) })
	t.Cleanup(func() { monitoring.Logf = original })

	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/window?x=1", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Len(t, lines, 1)
	assert.Contains(t, statusCodeColor(418), "418")
	assert.Contains(t, statusCodeColor(200), colorBoldGreen)
	assert.Contains(t, statusCodeColor(302), colorYellow)
	assert.Equal(t, "100", statusCodeColor(100))
}
