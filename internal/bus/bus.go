package bus

import (
	"net/http"

	"github.com/banshee-data/lookahead/internal/waypoint"
)

// Topic names on the vehicle transport.
const (
	TopicCurrentPose      = "current_pose"
	TopicBaseWaypoints    = "base_waypoints"
	TopicTrafficWaypoint  = "traffic_waypoint"
	TopicObstacleWaypoint = "obstacle_waypoint"
	TopicFinalWaypoints   = "final_waypoints"
)

// Bus groups the topics the planner consumes and produces.
type Bus struct {
	Pose     *Topic[waypoint.PoseStamped]
	Route    *Topic[waypoint.Route]
	Traffic  *Topic[waypoint.TrafficWaypoint]
	Obstacle *Topic[waypoint.Obstacle]
	Window   *Topic[waypoint.Route]
}

// New creates a Bus with every topic open.
func New() *Bus {
	return &Bus{
		Pose:     NewTopic[waypoint.PoseStamped](TopicCurrentPose),
		Route:    NewTopic[waypoint.Route](TopicBaseWaypoints),
		Traffic:  NewTopic[waypoint.TrafficWaypoint](TopicTrafficWaypoint),
		Obstacle: NewTopic[waypoint.Obstacle](TopicObstacleWaypoint),
		Window:   NewTopic[waypoint.Route](TopicFinalWaypoints),
	}
}

// Close closes every topic.
func (b *Bus) Close() {
	b.Pose.Close()
	b.Route.Close()
	b.Traffic.Close()
	b.Obstacle.Close()
	b.Window.Close()
}

// AttachAdminRoutes mounts a debug tail for each topic.
func (b *Bus) AttachAdminRoutes(mux *http.ServeMux) {
	b.Pose.AttachAdminRoutes(mux)
	b.Route.AttachAdminRoutes(mux)
	b.Traffic.AttachAdminRoutes(mux)
	b.Obstacle.AttachAdminRoutes(mux)
	b.Window.AttachAdminRoutes(mux)
}
