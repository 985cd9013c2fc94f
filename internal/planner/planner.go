// Package planner computes the lookahead window: the slice of the static
// route starting at the nearest waypoint ahead of the vehicle, with commanded
// speeds filled in, that the motion controller follows.
package planner

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/banshee-data/lookahead/internal/geom"
	"github.com/banshee-data/lookahead/internal/monitoring"
	"github.com/banshee-data/lookahead/internal/tf"
	"github.com/banshee-data/lookahead/internal/timeutil"
	"github.com/banshee-data/lookahead/internal/waypoint"
)

// Publisher accepts each computed window. Implementations must not retain
// and mutate the value; the planner never touches it after Publish.
type Publisher interface {
	Publish(window waypoint.Route)
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(window waypoint.Route)

// Publish calls f.
func (f PublisherFunc) Publish(window waypoint.Route) { f(window) }

// Recorder persists a summary of each plan.
type Recorder interface {
	RecordPlan(ctx context.Context, plan Plan) error
}

// Plan is the outcome of one route-snapshot pass.
type Plan struct {
	Window waypoint.Route
	// RouteLen is the length of the input route.
	RouteLen int
	// StartIndex is the route index of the first window waypoint, or -1 when
	// the fallback fired.
	StartIndex int
	// Fallback is true when no waypoint ahead was found and the input route
	// was published unmodified.
	Fallback bool
	// Skipped counts waypoints whose transform failed.
	Skipped     int
	CruiseSpeed float64
	PlannedAt   time.Time
}

// Stats are running counters over the planner lifetime.
type Stats struct {
	Plans             uint64 `json:"plans"`
	Fallbacks         uint64 `json:"fallbacks"`
	SkippedTransforms uint64 `json:"skipped_transforms"`
	PoseUpdates       uint64 `json:"pose_updates"`
	TrafficUpdates    uint64 `json:"traffic_updates"`
	ObstacleUpdates   uint64 `json:"obstacle_updates"`
}

// Planner owns the latest pose and route snapshot and republishes the
// lookahead window.
type Planner struct {
	cfg      Config
	tf       tf.Transformer
	pub      Publisher
	shaper   SpeedShaper
	recorder Recorder
	clock    timeutil.Clock

	// planMu serialises window computation and shaper access.
	planMu sync.Mutex

	mu    sync.Mutex
	pose  *waypoint.PoseStamped
	route *waypoint.Route
	stats Stats
}

// Option configures a Planner.
type Option func(*Planner)

// WithSpeedShaper replaces the default CruiseShaper.
func WithSpeedShaper(s SpeedShaper) Option {
	return func(p *Planner) { p.shaper = s }
}

// WithRecorder records every plan.
func WithRecorder(r Recorder) Option {
	return func(p *Planner) { p.recorder = r }
}

// WithClock sets the clock used to stamp plans.
func WithClock(c timeutil.Clock) Option {
	return func(p *Planner) { p.clock = c }
}

// New creates a Planner. The transformer resolves route-frame poses into the
// body frame; pub receives every window.
func New(cfg Config, transformer tf.Transformer, pub Publisher, opts ...Option) (*Planner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Planner{
		cfg:    cfg,
		tf:     transformer,
		pub:    pub,
		shaper: CruiseShaper{},
		clock:  timeutil.RealClock{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Config returns the planner configuration.
func (p *Planner) Config() Config { return p.cfg }

// Pose returns the last pose received, if any.
func (p *Planner) Pose() (waypoint.PoseStamped, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pose == nil {
		return waypoint.PoseStamped{}, false
	}
	return *p.pose, true
}

// Route returns the last route snapshot received, if any.
func (p *Planner) Route() (waypoint.Route, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.route == nil {
		return waypoint.Route{}, false
	}
	return p.route.Clone(), true
}

// Stats returns a copy of the running counters.
func (p *Planner) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// OnPoseUpdate replaces the stored pose. With ReplanOnPose set and a route
// already received, it also recomputes the window.
func (p *Planner) OnPoseUpdate(ctx context.Context, pose waypoint.PoseStamped) {
	if pose.Header.FrameID == "" {
		pose.Header.FrameID = p.cfg.WorldFrame
	}

	p.mu.Lock()
	p.pose = &pose
	p.stats.PoseUpdates++
	var route *waypoint.Route
	if p.cfg.ReplanOnPose && p.route != nil {
		r := p.route.Clone()
		route = &r
	}
	p.mu.Unlock()

	if route != nil {
		p.plan(ctx, *route)
	}
}

// OnRouteSnapshot stores route as the current snapshot and publishes a new
// window computed against it.
func (p *Planner) OnRouteSnapshot(ctx context.Context, route waypoint.Route) Plan {
	monitoring.Logf("planner: received route of %d waypoints in frame %q", route.Len(), p.routeFrame(route))

	stored := route.Clone()
	p.mu.Lock()
	p.route = &stored
	p.mu.Unlock()

	return p.plan(ctx, route)
}

// OnTrafficUpdate forwards the next stop-line index to the speed shaper.
func (p *Planner) OnTrafficUpdate(msg waypoint.TrafficWaypoint) {
	p.mu.Lock()
	p.stats.TrafficUpdates++
	p.mu.Unlock()

	p.planMu.Lock()
	defer p.planMu.Unlock()
	p.shaper.OnTraffic(msg.Index)
}

// OnObstacleUpdate forwards a blocked waypoint to the speed shaper.
func (p *Planner) OnObstacleUpdate(o waypoint.Obstacle) {
	p.mu.Lock()
	p.stats.ObstacleUpdates++
	p.mu.Unlock()

	p.planMu.Lock()
	defer p.planMu.Unlock()
	p.shaper.OnObstacle(o)
}

// routeFrame is the frame route waypoints are expressed in when they carry
// none of their own. The route itself is left untouched.
func (p *Planner) routeFrame(route waypoint.Route) string {
	if route.Header.FrameID != "" {
		return route.Header.FrameID
	}
	return p.cfg.WorldFrame
}

// NearestAhead returns the index of the waypoint closest to the vehicle in
// the body-frame plane among those with positive body-frame x, or -1. Ties
// keep the lowest index. Waypoints whose transform fails are skipped and
// counted. A transformer that implements tf.Pinner is pinned for the pass.
func (p *Planner) NearestAhead(ctx context.Context, route waypoint.Route) (index, skipped int) {
	index = -1
	best := math.Inf(1)
	routeFrame := p.routeFrame(route)
	transformer := p.tf
	if pinner, ok := p.tf.(tf.Pinner); ok {
		transformer = pinner.Pin()
	}
	for i, wp := range route.Waypoints {
		from := wp.Pose.Header.FrameID
		if from == "" {
			from = routeFrame
		}

		body, err := transformer.TryTransform(ctx, wp.Pose.Pose, from, p.cfg.BodyFrame, p.cfg.TransformTimeout)
		if err != nil {
			skipped++
			monitoring.Errorf("planner: could not get coordinate frame transform for waypoint %d: %v", i, err)
			continue
		}

		d := geom.PlanarDistanceSquared(body.Position)
		if body.Position.X > 0 && d < best {
			best = d
			index = i
		}
	}
	return index, skipped
}

func (p *Planner) plan(ctx context.Context, route waypoint.Route) Plan {
	p.planMu.Lock()
	defer p.planMu.Unlock()

	idx, skipped := p.NearestAhead(ctx, route)
	plan := Plan{
		RouteLen:    route.Len(),
		StartIndex:  idx,
		Skipped:     skipped,
		CruiseSpeed: p.cfg.CruiseSpeed,
		PlannedAt:   p.clock.Now(),
	}

	var out waypoint.Route
	if idx < 0 {
		monitoring.Warnf("planner: no waypoints ahead of %q were found (route=%d skipped=%d), vehicle may be off course; publishing full route",
			p.cfg.BodyFrame, route.Len(), skipped)
		plan.Fallback = true
		out = route.Clone()
	} else {
		out = route.Slice(idx, p.cfg.WindowSize)
		out.Header.FrameID = p.routeFrame(route)
		out.NormalizeFrames()
		p.shaper.Shape(out, idx, p.cfg.CruiseSpeed)
		monitoring.Logf("planner: next waypoint index %d, publishing %d waypoints at %.2f m/s",
			idx, out.Len(), p.cfg.CruiseSpeed)
	}
	plan.Window = out.Clone()

	p.mu.Lock()
	p.stats.Plans++
	p.stats.SkippedTransforms += uint64(skipped)
	if plan.Fallback {
		p.stats.Fallbacks++
	}
	p.mu.Unlock()

	p.pub.Publish(out)

	if p.recorder != nil {
		if err := p.recorder.RecordPlan(ctx, plan); err != nil {
			monitoring.Errorf("planner: failed to record plan: %v", err)
		}
	}
	return plan
}

// Inputs are the inbound topics drained by Run. Nil channels are ignored.
type Inputs struct {
	Poses     <-chan waypoint.PoseStamped
	Routes    <-chan waypoint.Route
	Traffic   <-chan waypoint.TrafficWaypoint
	Obstacles <-chan waypoint.Obstacle
}

// Run handles inbound messages one at a time until ctx is cancelled or every
// input channel is closed.
func (p *Planner) Run(ctx context.Context, in Inputs) error {
	poses, routes, traffic, obstacles := in.Poses, in.Routes, in.Traffic, in.Obstacles
	for poses != nil || routes != nil || traffic != nil || obstacles != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case pose, ok := <-poses:
			if !ok {
				poses = nil
				continue
			}
			p.OnPoseUpdate(ctx, pose)
		case route, ok := <-routes:
			if !ok {
				routes = nil
				continue
			}
			p.OnRouteSnapshot(ctx, route)
		case msg, ok := <-traffic:
			if !ok {
				traffic = nil
				continue
			}
			p.OnTrafficUpdate(msg)
		case o, ok := <-obstacles:
			if !ok {
				obstacles = nil
				continue
			}
			p.OnObstacleUpdate(o)
		}
	}
	return nil
}
