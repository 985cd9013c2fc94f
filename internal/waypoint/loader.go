package waypoint

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/banshee-data/lookahead/internal/geom"
	"github.com/gocarina/gocsv"
)

// maxRouteFileSize bounds route files read from disk (16MB).
const maxRouteFileSize = 16 * 1024 * 1024

// csvWaypoint is one row of a headerless waypoint map: x,y,z,yaw.
type csvWaypoint struct {
	X   float64 `csv:"x"`
	Y   float64 `csv:"y"`
	Z   float64 `csv:"z"`
	Yaw float64 `csv:"yaw"`
}

// LoadCSV reads a headerless x,y,z,yaw waypoint map. Every waypoint gets the
// given frame and speed (m/s).
func LoadCSV(r io.Reader, frameID string, speed float64) (Route, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = 4

	var rows []*csvWaypoint
	if err := gocsv.UnmarshalCSVWithoutHeaders(reader, &rows); err != nil {
		return Route{}, fmt.Errorf("failed to parse waypoint CSV: %w", err)
	}

	route := Route{Header: Header{FrameID: frameID}, Waypoints: make([]Waypoint, 0, len(rows))}
	for _, row := range rows {
		wp := Waypoint{
			Pose: PoseStamped{
				Header: Header{FrameID: frameID},
				Pose:   geom.NewPose(row.X, row.Y, row.Z, row.Yaw),
			},
		}
		wp.Twist.Linear.X = speed
		route.Waypoints = append(route.Waypoints, wp)
	}
	return route, nil
}

// LoadJSON reads a Route document. The route frame defaults to frameID when
// the document does not name one.
func LoadJSON(r io.Reader, frameID string) (Route, error) {
	var route Route
	if err := json.NewDecoder(r).Decode(&route); err != nil {
		return Route{}, fmt.Errorf("failed to parse route JSON: %w", err)
	}
	if route.Header.FrameID == "" {
		route.Header.FrameID = frameID
	}
	return route, nil
}

// LoadFile reads a route from a .csv or .json file.
func LoadFile(path, frameID string, speed float64) (Route, error) {
	cleanPath := filepath.Clean(path)
	info, err := os.Stat(cleanPath)
	if err != nil {
		return Route{}, fmt.Errorf("failed to stat route file: %w", err)
	}
	if info.Size() > maxRouteFileSize {
		return Route{}, fmt.Errorf("route file too large: %d bytes (max %d)", info.Size(), maxRouteFileSize)
	}

	f, err := os.Open(cleanPath)
	if err != nil {
		return Route{}, fmt.Errorf("failed to open route file: %w", err)
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(cleanPath)); ext {
	case ".csv":
		return LoadCSV(f, frameID, speed)
	case ".json":
		return LoadJSON(f, frameID)
	default:
		return Route{}, fmt.Errorf("unsupported route file extension %q (want .csv or .json)", ext)
	}
}
