package planner

import (
	"fmt"
	"time"
)

// Defaults for the recognised planner options.
const (
	DefaultWindowSize       = 200
	DefaultCruiseSpeed      = 0.0
	DefaultTransformTimeout = 10 * time.Second
	DefaultBodyFrame        = "base_link"
	DefaultWorldFrame       = "world"
)

// Config holds the planner parameters.
type Config struct {
	// WindowSize is the maximum number of waypoints published (N).
	WindowSize int
	// CruiseSpeed is the commanded speed in m/s stamped into every window waypoint.
	CruiseSpeed float64
	// TransformTimeout bounds each per-waypoint transform request.
	TransformTimeout time.Duration
	// BodyFrame is the vehicle frame in which "ahead" means x > 0.
	BodyFrame string
	// WorldFrame is assumed for poses and routes published without a frame.
	WorldFrame string
	// ReplanOnPose recomputes the window against the last route snapshot on
	// every pose update. When false only route snapshots trigger planning.
	ReplanOnPose bool
}

// DefaultConfig returns the default planner configuration.
func DefaultConfig() Config {
	return Config{
		WindowSize:       DefaultWindowSize,
		CruiseSpeed:      DefaultCruiseSpeed,
		TransformTimeout: DefaultTransformTimeout,
		BodyFrame:        DefaultBodyFrame,
		WorldFrame:       DefaultWorldFrame,
	}
}

// Validate checks that the configuration can drive a planner.
func (c Config) Validate() error {
	if c.WindowSize <= 0 {
		return fmt.Errorf("window size must be positive, got %d", c.WindowSize)
	}
	if c.CruiseSpeed < 0 {
		return fmt.Errorf("cruise speed must be non-negative, got %f", c.CruiseSpeed)
	}
	if c.TransformTimeout < 0 {
		return fmt.Errorf("transform timeout must be non-negative, got %v", c.TransformTimeout)
	}
	if c.BodyFrame == "" {
		return fmt.Errorf("body frame name is required")
	}
	if c.WorldFrame == "" {
		return fmt.Errorf("world frame name is required")
	}
	return nil
}
