package waypoint

// NoStopLine is the traffic-waypoint sentinel meaning no stop line ahead.
const NoStopLine = -1

// TrafficWaypoint is the index of the waypoint nearest the next stop line
// that requires stopping, or NoStopLine.
type TrafficWaypoint struct {
	Index int `json:"index"`
}

// Obstacle marks a waypoint blocked by an obstacle.
type Obstacle struct {
	Header Header `json:"header"`
	Index  int    `json:"index"`
}
