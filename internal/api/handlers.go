package api

import (
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"github.com/banshee-data/lookahead/internal/planner"
	"github.com/banshee-data/lookahead/internal/units"
	"github.com/banshee-data/lookahead/internal/waypoint"
)

func (s *Server) showWindow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	window, ok := s.bus.Window.Latest()
	if !ok {
		s.writeJSONError(w, http.StatusNotFound, "no window published yet")
		return
	}
	s.writeJSON(w, http.StatusOK, window)
}

func (s *Server) handlePose(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		pose, ok := s.planner.Pose()
		if !ok {
			s.writeJSONError(w, http.StatusNotFound, "no pose received yet")
			return
		}
		s.writeJSON(w, http.StatusOK, pose)
	case http.MethodPost:
		var pose waypoint.PoseStamped
		if !s.decodeBody(w, r, &pose) {
			return
		}
		s.bus.Pose.Publish(pose)
		s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		route, ok := s.planner.Route()
		if !ok {
			s.writeJSONError(w, http.StatusNotFound, "no route received yet")
			return
		}
		s.writeJSON(w, http.StatusOK, route)
	case http.MethodPost:
		route, ok := s.readRoute(w, r)
		if !ok {
			return
		}
		s.bus.Route.Publish(route)
		s.writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted", "waypoints": route.Len()})
	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// readRoute accepts either a JSON route document or, with Content-Type
// text/csv, headerless x,y,z,yaw rows. CSV uploads take the frame from the
// frame query parameter and the speed (m/s) from speed.
func (s *Server) readRoute(w http.ResponseWriter, r *http.Request) (waypoint.Route, bool) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "text/csv" {
		var route waypoint.Route
		if !s.decodeBody(w, r, &route) {
			return waypoint.Route{}, false
		}
		return route, true
	}

	q := r.URL.Query()
	frame := q.Get("frame")
	if frame == "" {
		frame = s.planner.Config().WorldFrame
	}
	speed := 0.0
	if v := q.Get("speed"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed < 0 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'speed' parameter")
			return waypoint.Route{}, false
		}
		speed = parsed
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	route, err := waypoint.LoadCSV(r.Body, frame, speed)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return waypoint.Route{}, false
	}
	return route, true
}

func (s *Server) handleTraffic(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		msg, ok := s.bus.Traffic.Latest()
		if !ok {
			msg = waypoint.TrafficWaypoint{Index: waypoint.NoStopLine}
		}
		s.writeJSON(w, http.StatusOK, msg)
	case http.MethodPost:
		var msg waypoint.TrafficWaypoint
		if !s.decodeBody(w, r, &msg) {
			return
		}
		if msg.Index < waypoint.NoStopLine {
			s.writeJSONError(w, http.StatusBadRequest, "index must be -1 or a waypoint index")
			return
		}
		s.bus.Traffic.Publish(msg)
		s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) handleObstacle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var o waypoint.Obstacle
	if !s.decodeBody(w, r, &o) {
		return
	}
	s.bus.Obstacle.Publish(o)
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) showRouteDistance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	q := r.URL.Query()
	from, err := strconv.Atoi(q.Get("from"))
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'from' parameter")
		return
	}
	to, err := strconv.Atoi(q.Get("to"))
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'to' parameter")
		return
	}

	route, ok := s.planner.Route()
	if !ok {
		s.writeJSONError(w, http.StatusNotFound, "no route received yet")
		return
	}
	d, err := waypoint.DistanceAlongRoute(route, from, to)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"from":       from,
		"to":         to,
		"distance_m": d,
	})
}

func (s *Server) listPlans(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.plans == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "plan log disabled")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	plans, err := s.plans.RecentPlans(r.Context(), limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list plans: %v", err))
		return
	}
	s.writeJSON(w, http.StatusOK, plans)
}

type statsResponse struct {
	Counters    planner.Stats     `json:"counters"`
	WindowSize  int               `json:"lookahead_window_size"`
	CruiseSpeed float64           `json:"cruise_speed"`
	SpeedUnits  string            `json:"speed_units"`
	BodyFrame   string            `json:"body_frame_name"`
	WorldFrame  string            `json:"world_frame_name"`
	Dropped     map[string]uint64 `json:"dropped"`
}

func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	cfg := s.planner.Config()
	s.writeJSON(w, http.StatusOK, statsResponse{
		Counters:    s.planner.Stats(),
		WindowSize:  cfg.WindowSize,
		CruiseSpeed: units.ConvertSpeed(cfg.CruiseSpeed, s.units),
		SpeedUnits:  s.units,
		BodyFrame:   cfg.BodyFrame,
		WorldFrame:  cfg.WorldFrame,
		Dropped: map[string]uint64{
			s.bus.Pose.Name():     s.bus.Pose.Dropped(),
			s.bus.Route.Name():    s.bus.Route.Dropped(),
			s.bus.Traffic.Name():  s.bus.Traffic.Dropped(),
			s.bus.Obstacle.Name(): s.bus.Obstacle.Dropped(),
			s.bus.Window.Name():   s.bus.Window.Dropped(),
		},
	})
}
