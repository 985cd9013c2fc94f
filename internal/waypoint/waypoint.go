// Package waypoint defines the route data model exchanged between the route
// source, the planner and the downstream controller.
package waypoint

import (
	"fmt"
	"time"

	"github.com/banshee-data/lookahead/internal/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

// Header carries the coordinate frame and acquisition time of a message.
type Header struct {
	FrameID string    `json:"frame_id"`
	Stamp   time.Time `json:"stamp"`
}

// PoseStamped is a pose tagged with the frame it is expressed in.
type PoseStamped struct {
	Header Header    `json:"header"`
	Pose   geom.Pose `json:"pose"`
}

// Twist holds linear and angular velocity. Only Linear.X (forward speed) is
// used for commanded speed.
type Twist struct {
	Linear  r3.Vec `json:"linear"`
	Angular r3.Vec `json:"angular"`
}

// Waypoint is a single point of a route. Its identity is its index.
type Waypoint struct {
	Pose  PoseStamped `json:"pose"`
	Twist Twist       `json:"twist"`
}

// Speed returns the commanded forward speed in m/s.
func (w Waypoint) Speed() float64 {
	return w.Twist.Linear.X
}

// Position returns the waypoint position in its own frame.
func (w Waypoint) Position() r3.Vec {
	return w.Pose.Pose.Position
}

// Route is an ordered sequence of waypoints in traversal order. The same
// shape is used for the published lookahead window.
type Route struct {
	Header    Header     `json:"header"`
	Waypoints []Waypoint `json:"waypoints"`
}

// Len returns the number of waypoints.
func (r Route) Len() int {
	return len(r.Waypoints)
}

// Clone returns a deep copy so that the receiver can be published without
// later writes leaking into it.
func (r Route) Clone() Route {
	out := Route{Header: r.Header}
	if r.Waypoints != nil {
		out.Waypoints = make([]Waypoint, len(r.Waypoints))
		copy(out.Waypoints, r.Waypoints)
	}
	return out
}

// Slice returns a copy of waypoints [start, start+n), clamped to the end of
// the route. The header is preserved.
func (r Route) Slice(start, n int) Route {
	if start < 0 {
		start = 0
	}
	if start > len(r.Waypoints) {
		start = len(r.Waypoints)
	}
	end := start + n
	if n < 0 || end > len(r.Waypoints) {
		end = len(r.Waypoints)
	}
	out := Route{Header: r.Header, Waypoints: make([]Waypoint, end-start)}
	copy(out.Waypoints, r.Waypoints[start:end])
	return out
}

// SetSpeed overwrites the commanded speed of waypoint i.
func (r Route) SetSpeed(i int, speed float64) {
	r.Waypoints[i].Twist.Linear.X = speed
}

// NormalizeFrames fills in the frame of any waypoint whose pose header was
// left empty by the producer, using the route frame.
func (r Route) NormalizeFrames() {
	for i := range r.Waypoints {
		if r.Waypoints[i].Pose.Header.FrameID == "" {
			r.Waypoints[i].Pose.Header.FrameID = r.Header.FrameID
		}
	}
}

// DistanceAlongRoute sums the 3D distances between consecutive waypoints
// from index i to index j inclusive. It returns 0 when j <= i.
func DistanceAlongRoute(r Route, i, j int) (float64, error) {
	if i < 0 || i >= len(r.Waypoints) {
		return 0, fmt.Errorf("start index %d out of range [0,%d)", i, len(r.Waypoints))
	}
	if j < 0 || j >= len(r.Waypoints) {
		return 0, fmt.Errorf("end index %d out of range [0,%d)", j, len(r.Waypoints))
	}
	dist := 0.0
	prev := r.Waypoints[i].Position()
	for k := i + 1; k <= j; k++ {
		cur := r.Waypoints[k].Position()
		dist += geom.Distance(prev, cur)
		prev = cur
	}
	return dist, nil
}
