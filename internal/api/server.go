// Package api exposes the planner state over HTTP and accepts injected pose,
// route and traffic messages for bench testing without a vehicle bridge.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/lookahead/internal/bus"
	"github.com/banshee-data/lookahead/internal/db"
	"github.com/banshee-data/lookahead/internal/monitoring"
	"github.com/banshee-data/lookahead/internal/planner"
	"github.com/banshee-data/lookahead/internal/units"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// maxBodyBytes bounds injected messages; a full route is the largest.
const maxBodyBytes = 16 << 20

// PlanStore is the read side of the plan log.
type PlanStore interface {
	RecentPlans(ctx context.Context, limit int) ([]db.PlanRecord, error)
}

type Server struct {
	bus     *bus.Bus
	planner *planner.Planner
	plans   PlanStore
	units   string
}

// NewServer creates a Server. plans may be nil when no plan log is kept;
// units selects the display unit for speeds in summaries.
func NewServer(b *bus.Bus, p *planner.Planner, plans PlanStore, displayUnits string) *Server {
	if !units.IsValid(displayUnits) {
		displayUnits = units.MPS
	}
	return &Server{
		bus:     b,
		planner: p,
		plans:   plans,
		units:   displayUnits,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/window", s.showWindow)
	mux.HandleFunc("/api/pose", s.handlePose)
	mux.HandleFunc("/api/route", s.handleRoute)
	mux.HandleFunc("/api/route/distance", s.showRouteDistance)
	mux.HandleFunc("/api/traffic", s.handleTraffic)
	mux.HandleFunc("/api/obstacle", s.handleObstacle)
	mux.HandleFunc("/api/plans", s.listPlans)
	mux.HandleFunc("/api/stats", s.showStats)
	mux.HandleFunc("/charts/window", s.handleWindowChart)
	return mux
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		monitoring.Errorf("failed to encode response: %v", err)
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// decodeBody decodes a JSON request body into v, writing the error response
// itself when decoding fails.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	return true
}
