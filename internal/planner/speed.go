package planner

import "github.com/banshee-data/lookahead/internal/waypoint"

// SpeedShaper assigns commanded speeds to a freshly sliced window. Traffic and
// obstacle updates are delivered to it so that a stop-aware policy can
// decelerate toward a stop index without changing the window computation.
//
// The planner serialises calls to a shaper.
type SpeedShaper interface {
	// OnTraffic receives the route index of the next stop line, or
	// waypoint.NoStopLine.
	OnTraffic(index int)
	// OnObstacle receives a blocked waypoint.
	OnObstacle(o waypoint.Obstacle)
	// Shape writes speeds into window, whose first waypoint is route index
	// start.
	Shape(window waypoint.Route, start int, cruise float64)
}

// CruiseShaper stamps the cruising speed on every waypoint and ignores traffic
// and obstacle updates.
type CruiseShaper struct{}

func (CruiseShaper) OnTraffic(int)                {}
func (CruiseShaper) OnObstacle(waypoint.Obstacle) {}

// Shape sets every waypoint of window to cruise.
func (CruiseShaper) Shape(window waypoint.Route, _ int, cruise float64) {
	for i := range window.Waypoints {
		window.SetSpeed(i, cruise)
	}
}
