// Package db persists a log of computed plans in sqlite so a drive can be
// inspected after the fact.
package db

import (
	"compress/gzip"
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/banshee-data/lookahead/internal/monitoring"
	"github.com/banshee-data/lookahead/internal/planner"
	"github.com/banshee-data/lookahead/internal/security"
)

// DefaultRecentPlans is the page size used when a caller passes no limit.
const DefaultRecentPlans = 50

// MaxRecentPlans caps a single RecentPlans query.
const MaxRecentPlans = 1000

type DB struct {
	*sql.DB
	path  string
	runID string
}

// NewDB opens (creating if needed) the sqlite database at path and brings
// its schema up to date. Each DB tags the plans it records with a fresh run
// id.
func NewDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	db := &DB{DB: sqlDB, path: path, runID: uuid.NewString()}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// RunID identifies the process that recorded a plan.
func (db *DB) RunID() string { return db.runID }

// PlanRecord is one row of the plan log.
type PlanRecord struct {
	ID                int64     `json:"id"`
	RunID             string    `json:"run_id"`
	RouteFrame        string    `json:"route_frame"`
	RouteLen          int       `json:"route_len"`
	StartIndex        int       `json:"start_index"`
	WindowLen         int       `json:"window_len"`
	Fallback          bool      `json:"fallback"`
	CruiseSpeed       float64   `json:"cruise_speed_mps"`
	SkippedTransforms int       `json:"skipped_transforms"`
	PlannedAt         time.Time `json:"planned_at"`
}

// RecordPlan stores a summary of plan. It implements planner.Recorder.
func (db *DB) RecordPlan(ctx context.Context, plan planner.Plan) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO plans (
			run_id, route_frame, route_len, start_index, window_len,
			fallback, cruise_speed_mps, skipped_transforms, planned_at_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		db.runID, plan.Window.Header.FrameID, plan.RouteLen, plan.StartIndex, plan.Window.Len(),
		plan.Fallback, plan.CruiseSpeed, plan.Skipped, plan.PlannedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to record plan: %w", err)
	}
	return nil
}

// RecentPlans returns up to limit plans, newest first. A non-positive limit
// uses DefaultRecentPlans.
func (db *DB) RecentPlans(ctx context.Context, limit int) ([]PlanRecord, error) {
	if limit <= 0 {
		limit = DefaultRecentPlans
	}
	if limit > MaxRecentPlans {
		limit = MaxRecentPlans
	}

	rows, err := db.QueryContext(ctx,
		`SELECT plan_id, run_id, route_frame, route_len, start_index, window_len,
			fallback, cruise_speed_mps, skipped_transforms, planned_at_ns
		FROM plans ORDER BY planned_at_ns DESC, plan_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	plans := []PlanRecord{}
	for rows.Next() {
		var p PlanRecord
		var plannedAt int64
		if err := rows.Scan(&p.ID, &p.RunID, &p.RouteFrame, &p.RouteLen, &p.StartIndex, &p.WindowLen,
			&p.Fallback, &p.CruiseSpeed, &p.SkippedTransforms, &plannedAt); err != nil {
			return nil, err
		}
		p.PlannedAt = time.Unix(0, plannedAt).UTC()
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return plans, nil
}

// AttachAdminRoutes mounts tailsql and a backup download on the debug mux.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+filepath.Base(db.path), db.DB, &tailsql.DBOptions{
		Label: "Plan log",
	})

	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())
	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(db.serveBackup))
	return nil
}

func (db *DB) serveBackup(w http.ResponseWriter, r *http.Request) {
	dir, err := os.MkdirTemp("", "lookahead-backup")
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			monitoring.Errorf("Failed to remove backup dir: %v", err)
		}
	}()

	base := security.SanitizeFilename(strings.TrimSuffix(filepath.Base(db.path), filepath.Ext(db.path)))
	name := fmt.Sprintf("%s-backup-%d.db", base, time.Now().Unix())
	backupPath := filepath.Join(dir, name)
	if _, err := db.ExecContext(r.Context(), "VACUUM INTO ?", backupPath); err != nil {
		http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
		return
	}

	backupFile, err := os.Open(backupPath)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
		return
	}
	defer backupFile.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", name))
	w.Header().Set("Content-Type", "application/gzip")

	gzipWriter := gzip.NewWriter(w)
	defer gzipWriter.Close()
	if _, err := io.Copy(gzipWriter, backupFile); err != nil {
		monitoring.Errorf("Failed to write backup file: %v", err)
	}
}
