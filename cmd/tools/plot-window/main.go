// Command plot-window renders a route and the lookahead window the planner
// selects for a given vehicle pose to a PNG.
package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"log"

	"github.com/banshee-data/lookahead/internal/config"
	"github.com/banshee-data/lookahead/internal/geom"
	"github.com/banshee-data/lookahead/internal/planner"
	"github.com/banshee-data/lookahead/internal/security"
	"github.com/banshee-data/lookahead/internal/tf"
	"github.com/banshee-data/lookahead/internal/timeutil"
	"github.com/banshee-data/lookahead/internal/waypoint"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var (
	configPath = flag.String("config", config.DefaultConfigPath, "Path to the planner JSON config")
	routePath  = flag.String("route", "", "Route file (.csv or .json)")
	outPath    = flag.String("out", "window.png", "Output PNG path")
	vehicleX   = flag.Float64("x", 0, "Vehicle x in the world frame (m)")
	vehicleY   = flag.Float64("y", 0, "Vehicle y in the world frame (m)")
	vehicleYaw = flag.Float64("yaw", 0, "Vehicle heading in the world frame (rad)")
)

func main() {
	flag.Parse()
	if *routePath == "" {
		log.Fatal("-route is required")
	}

	if err := security.ValidateOutputPath(*outPath); err != nil {
		log.Fatalf("invalid output path: %v", err)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Printf("using default config: %v", err)
		cfg = config.EmptyConfig()
	}
	pcfg, err := cfg.Planner()
	if err != nil {
		log.Fatalf("invalid planner configuration: %v", err)
	}
	// the vehicle transform is set once up front, so never wait for it
	pcfg.TransformTimeout = 0

	route, err := waypoint.LoadFile(*routePath, pcfg.WorldFrame, pcfg.CruiseSpeed)
	if err != nil {
		log.Fatalf("failed to load route: %v", err)
	}

	vehicle := geom.NewPose(*vehicleX, *vehicleY, 0, *vehicleYaw)
	plan, err := planWindow(pcfg, route, vehicle)
	if err != nil {
		log.Fatalf("failed to plan window: %v", err)
	}
	if plan.Fallback {
		log.Printf("no waypoint ahead of the vehicle, plotting the full route")
	} else {
		log.Printf("window starts at index %d with %d waypoints", plan.StartIndex, plan.Window.Len())
	}

	if err := render(route, plan, vehicle, *outPath); err != nil {
		log.Fatalf("failed to render plot: %v", err)
	}
	log.Printf("wrote %s", *outPath)
}

// planWindow runs one planner pass over route with the vehicle fixed at
// vehicle in the world frame.
func planWindow(cfg planner.Config, route waypoint.Route, vehicle geom.Pose) (planner.Plan, error) {
	clock := timeutil.RealClock{}
	buffer := tf.NewBuffer(tf.WithClock(clock))
	if err := buffer.SetFromPose(cfg.WorldFrame, cfg.BodyFrame, vehicle, clock.Now()); err != nil {
		return planner.Plan{}, fmt.Errorf("invalid vehicle pose: %w", err)
	}
	p, err := planner.New(cfg, buffer, planner.PublisherFunc(func(waypoint.Route) {}))
	if err != nil {
		return planner.Plan{}, err
	}
	return p.OnRouteSnapshot(context.Background(), route), nil
}

func routeXYs(r waypoint.Route) plotter.XYs {
	pts := make(plotter.XYs, 0, r.Len())
	for _, wp := range r.Waypoints {
		pos := wp.Position()
		pts = append(pts, plotter.XY{X: pos.X, Y: pos.Y})
	}
	return pts
}

func render(route waypoint.Route, plan planner.Plan, vehicle geom.Pose, path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Lookahead window (start=%d, len=%d)", plan.StartIndex, plan.Window.Len())
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"

	if route.Len() > 0 {
		routeLine, err := plotter.NewLine(routeXYs(route))
		if err != nil {
			return err
		}
		routeLine.Color = color.RGBA{R: 160, G: 160, B: 160, A: 255}
		routeLine.Width = vg.Points(1)
		p.Add(routeLine)
		p.Legend.Add("route", routeLine)
	}

	if !plan.Fallback && plan.Window.Len() > 0 {
		windowLine, err := plotter.NewLine(routeXYs(plan.Window))
		if err != nil {
			return err
		}
		windowLine.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
		windowLine.Width = vg.Points(2)
		p.Add(windowLine)
		p.Legend.Add("window", windowLine)
	}

	car, err := plotter.NewScatter(plotter.XYs{{X: vehicle.Position.X, Y: vehicle.Position.Y}})
	if err != nil {
		return err
	}
	car.GlyphStyle.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	car.GlyphStyle.Radius = vg.Points(4)
	car.GlyphStyle.Shape = draw.TriangleGlyph{}
	p.Add(car)
	p.Legend.Add("vehicle", car)

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return p.Save(10*vg.Inch, 10*vg.Inch, path)
}
