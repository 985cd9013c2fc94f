package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/lookahead/internal/api"
	"github.com/banshee-data/lookahead/internal/bus"
	"github.com/banshee-data/lookahead/internal/config"
	"github.com/banshee-data/lookahead/internal/db"
	"github.com/banshee-data/lookahead/internal/planner"
	"github.com/banshee-data/lookahead/internal/serialmux"
	"github.com/banshee-data/lookahead/internal/tf"
	"github.com/banshee-data/lookahead/internal/version"
	"github.com/banshee-data/lookahead/internal/waypoint"
)

var (
	configPath   = flag.String("config", config.DefaultConfigPath, "Path to the planner JSON config")
	listen       = flag.String("listen", "", "Listen address (overrides config)")
	port         = flag.String("port", "", "Serial port of the vehicle bridge (overrides config)")
	devMode      = flag.Bool("dev", false, "Replay -fixtures instead of opening a serial port")
	fixturesPath = flag.String("fixtures", "config/fixtures.sample.jsonl", "Line fixture replayed in dev mode")
	replayEvery  = flag.Duration("replay-interval", 100*time.Millisecond, "Delay between replayed fixture lines (0 for none)")
	routePath    = flag.String("route", "", "Route file (.csv or .json) published once at startup")
	dbPath       = flag.String("db", "", "Plan log database (overrides config)")
	disableDB    = flag.Bool("disable-db", false, "Do not keep a plan log")
	showVersion  = flag.Bool("version", false, "Print version information and exit")
)

func loadConfig() *config.PlannerConfig {
	cfg, err := config.LoadConfig(*configPath)
	if err == nil {
		return cfg
	}
	if *configPath == config.DefaultConfigPath && errors.Is(err, os.ErrNotExist) {
		log.Printf("no config at %s, using defaults", *configPath)
		return config.EmptyConfig()
	}
	log.Fatalf("failed to load config: %v", err)
	return nil
}

func openSerial(cfg *config.PlannerConfig) serialmux.SerialMuxInterface {
	if *devMode {
		lines, err := serialmux.LoadFixture(*fixturesPath)
		if err != nil {
			log.Fatalf("failed to open fixtures file: %v", err)
		}
		return serialmux.NewReplaySerialMux(lines, *replayEvery)
	}

	path := cfg.GetSerialPort()
	if *port != "" {
		path = *port
	}
	if path == "" {
		log.Print("no serial port configured, accepting input over HTTP only")
		return serialmux.NewDisabledSerialMux()
	}

	m, err := serialmux.NewRealSerialMux(path, serialmux.PortOptions{BaudRate: cfg.GetBaudRate()})
	if err != nil {
		log.Fatalf("failed to open serial port %s: %v", path, err)
	}
	log.Printf("reading vehicle bridge on %s", path)
	return m
}

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String())
		return
	}
	log.Print(version.String())

	cfg := loadConfig()
	plannerCfg, err := cfg.Planner()
	if err != nil {
		log.Fatalf("invalid planner configuration: %v", err)
	}
	addr := cfg.GetListen()
	if *listen != "" {
		addr = *listen
	}

	b := bus.New()
	buffer := tf.NewBuffer(tf.WithMaxAge(cfg.GetMaxTransformAge()))

	var opts []planner.Option
	var planLog *db.DB
	if !*disableDB {
		path := cfg.GetDBPath()
		if *dbPath != "" {
			path = *dbPath
		}
		planLog, err = db.NewDB(path)
		if err != nil {
			log.Fatalf("Failed to open plan log: %v", err)
		}
		defer planLog.Close()
		opts = append(opts, planner.WithRecorder(planLog))
	}

	p, err := planner.New(plannerCfg, buffer, planner.PublisherFunc(b.Window.Publish), opts...)
	if err != nil {
		log.Fatalf("failed to create planner: %v", err)
	}
	log.Printf("planner: window=%d cruise=%.2fm/s body=%s world=%s replan_on_pose=%v",
		plannerCfg.WindowSize, plannerCfg.CruiseSpeed, plannerCfg.BodyFrame, plannerCfg.WorldFrame, plannerCfg.ReplanOnPose)

	var startRoute *waypoint.Route
	if *routePath != "" {
		route, err := waypoint.LoadFile(*routePath, plannerCfg.WorldFrame, plannerCfg.CruiseSpeed)
		if err != nil {
			log.Fatalf("failed to load route: %v", err)
		}
		startRoute = &route
	}

	vehicleSerial := openSerial(cfg)
	defer vehicleSerial.Close()

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// subscribe before anything can publish
	_, tfPoses := b.Pose.Subscribe()
	_, poses := b.Pose.Subscribe()
	_, routes := b.Route.Subscribe()
	_, traffic := b.Traffic.Subscribe()
	_, obstacles := b.Obstacle.Subscribe()
	// closed by vehicleSerial.Close
	_, serialLines := vehicleSerial.Subscribe()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := buffer.FollowPoses(ctx, tfPoses, plannerCfg.WorldFrame, plannerCfg.BodyFrame); err != nil && err != context.Canceled {
			log.Printf("transform listener stopped: %v", err)
		}
		log.Print("transform listener terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		err := p.Run(ctx, planner.Inputs{Poses: poses, Routes: routes, Traffic: traffic, Obstacles: obstacles})
		if err != nil && err != context.Canceled {
			log.Printf("planner stopped: %v", err)
		}
		log.Print("planner routine terminated")
	}()

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := vehicleSerial.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("failed to monitor serial port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := serialmux.Ingest(ctx, serialLines, b); err != nil && err != context.Canceled {
			log.Printf("serial ingest stopped: %v", err)
		}
		log.Print("ingest routine terminated")
	}()

	if startRoute != nil {
		log.Printf("publishing %d waypoints from %s", startRoute.Len(), *routePath)
		b.Route.Publish(*startRoute)
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		var plans api.PlanStore
		if planLog != nil {
			plans = planLog
		}
		mux := api.NewServer(b, p, plans, cfg.GetSpeedUnits()).ServeMux()

		b.AttachAdminRoutes(mux)
		vehicleSerial.AttachAdminRoutes(mux)
		if planLog != nil {
			if err := planLog.AttachAdminRoutes(mux); err != nil {
				log.Fatalf("failed to attach database admin routes: %v", err)
			}
		}

		server := &http.Server{
			Addr:    addr,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("listening on %s", addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	b.Close()
	log.Printf("Graceful shutdown complete")
}
