package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/lookahead/internal/planner"
	"github.com/banshee-data/lookahead/internal/units"
)

// DefaultConfigPath is the path to the canonical planner defaults file.
const DefaultConfigPath = "config/planner.defaults.json"

// Default values used when a field is omitted from the file.
const (
	DefaultSpeedUnits = units.MPS
	DefaultBaudRate   = 115200
	DefaultListen     = ":8080"
	DefaultDBPath     = "lookahead.db"
)

// PlannerConfig is the on-disk configuration for the lookahead service.
// Every field is optional; the Get* methods supply defaults.
type PlannerConfig struct {
	// Planner params
	WindowSize       *int     `json:"lookahead_window_size,omitempty"`
	CruisingSpeed    *float64 `json:"default_cruising_speed,omitempty"`
	SpeedUnits       *string  `json:"speed_units,omitempty"`
	TransformTimeout *string  `json:"transform_timeout,omitempty"` // duration string like "10s"
	BodyFrame        *string  `json:"body_frame_name,omitempty"`
	WorldFrame       *string  `json:"world_frame_name,omitempty"`
	ReplanOnPose     *bool    `json:"replan_on_pose,omitempty"`

	// Transform buffer params
	MaxTransformAge *string `json:"max_transform_age,omitempty"` // "0s" disables the age check

	// Ingest and service params
	SerialPort *string `json:"serial_port,omitempty"`
	BaudRate   *int    `json:"baud_rate,omitempty"`
	Listen     *string `json:"listen,omitempty"`
	DBPath     *string `json:"db_path,omitempty"`
}

// EmptyConfig returns a PlannerConfig with all fields unset.
func EmptyConfig() *PlannerConfig {
	return &PlannerConfig{}
}

// LoadConfig loads a PlannerConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Omitted fields keep
// their defaults, so partial configs are safe.
func LoadConfig(path string) (*PlannerConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded; intended
// for test setup.
func MustLoadDefaultConfig() *PlannerConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/tools/plot-window/
	}
	for _, path := range candidates {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *PlannerConfig) Validate() error {
	if c.WindowSize != nil && *c.WindowSize <= 0 {
		return fmt.Errorf("lookahead_window_size must be positive, got %d", *c.WindowSize)
	}
	if c.CruisingSpeed != nil && *c.CruisingSpeed < 0 {
		return fmt.Errorf("default_cruising_speed must be non-negative, got %f", *c.CruisingSpeed)
	}
	if c.SpeedUnits != nil && !units.IsValid(*c.SpeedUnits) {
		return fmt.Errorf("speed_units must be one of %s, got %q", units.GetValidUnitsString(), *c.SpeedUnits)
	}
	if err := validateDuration("transform_timeout", c.TransformTimeout); err != nil {
		return err
	}
	if err := validateDuration("max_transform_age", c.MaxTransformAge); err != nil {
		return err
	}
	if c.BodyFrame != nil && *c.BodyFrame == "" {
		return fmt.Errorf("body_frame_name must not be empty")
	}
	if c.WorldFrame != nil && *c.WorldFrame == "" {
		return fmt.Errorf("world_frame_name must not be empty")
	}
	if c.BaudRate != nil && *c.BaudRate <= 0 {
		return fmt.Errorf("baud_rate must be positive, got %d", *c.BaudRate)
	}
	return nil
}

func validateDuration(name string, v *string) error {
	if v == nil || *v == "" {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
	}
	if d < 0 {
		return fmt.Errorf("%s must be non-negative, got %s", name, *v)
	}
	return nil
}

func parseDuration(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}

// GetWindowSize returns lookahead_window_size or the default.
func (c *PlannerConfig) GetWindowSize() int {
	if c.WindowSize == nil {
		return planner.DefaultWindowSize
	}
	return *c.WindowSize
}

// GetCruisingSpeed returns default_cruising_speed in the configured units.
func (c *PlannerConfig) GetCruisingSpeed() float64 {
	if c.CruisingSpeed == nil {
		return planner.DefaultCruiseSpeed
	}
	return *c.CruisingSpeed
}

// GetSpeedUnits returns speed_units or the default.
func (c *PlannerConfig) GetSpeedUnits() string {
	if c.SpeedUnits == nil || *c.SpeedUnits == "" {
		return DefaultSpeedUnits
	}
	return *c.SpeedUnits
}

// CruisingSpeedMPS returns the cruising speed converted to m/s.
func (c *PlannerConfig) CruisingSpeedMPS() (float64, error) {
	return units.ToMPS(c.GetCruisingSpeed(), c.GetSpeedUnits())
}

// GetTransformTimeout parses transform_timeout.
func (c *PlannerConfig) GetTransformTimeout() time.Duration {
	return parseDuration(c.TransformTimeout, planner.DefaultTransformTimeout)
}

// GetBodyFrame returns body_frame_name or the default.
func (c *PlannerConfig) GetBodyFrame() string {
	if c.BodyFrame == nil {
		return planner.DefaultBodyFrame
	}
	return *c.BodyFrame
}

// GetWorldFrame returns world_frame_name or the default.
func (c *PlannerConfig) GetWorldFrame() string {
	if c.WorldFrame == nil {
		return planner.DefaultWorldFrame
	}
	return *c.WorldFrame
}

// GetReplanOnPose returns replan_on_pose or the default.
func (c *PlannerConfig) GetReplanOnPose() bool {
	if c.ReplanOnPose == nil {
		return false
	}
	return *c.ReplanOnPose
}

// GetMaxTransformAge parses max_transform_age. Zero disables the check.
func (c *PlannerConfig) GetMaxTransformAge() time.Duration {
	return parseDuration(c.MaxTransformAge, 0)
}

// GetSerialPort returns serial_port; empty disables serial ingest.
func (c *PlannerConfig) GetSerialPort() string {
	if c.SerialPort == nil {
		return ""
	}
	return *c.SerialPort
}

// GetBaudRate returns baud_rate or the default.
func (c *PlannerConfig) GetBaudRate() int {
	if c.BaudRate == nil {
		return DefaultBaudRate
	}
	return *c.BaudRate
}

// GetListen returns listen or the default.
func (c *PlannerConfig) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return DefaultListen
	}
	return *c.Listen
}

// GetDBPath returns db_path or the default.
func (c *PlannerConfig) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return DefaultDBPath
	}
	return *c.DBPath
}

// Planner builds the planner parameters, converting the cruising speed to m/s.
func (c *PlannerConfig) Planner() (planner.Config, error) {
	speed, err := c.CruisingSpeedMPS()
	if err != nil {
		return planner.Config{}, err
	}
	cfg := planner.Config{
		WindowSize:       c.GetWindowSize(),
		CruiseSpeed:      speed,
		TransformTimeout: c.GetTransformTimeout(),
		BodyFrame:        c.GetBodyFrame(),
		WorldFrame:       c.GetWorldFrame(),
		ReplanOnPose:     c.GetReplanOnPose(),
	}
	return cfg, cfg.Validate()
}
