package geom

import (
	"encoding/json"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Wire layout follows the common robotics convention:
// {"position":{"x":..,"y":..,"z":..},"orientation":{"x":..,"y":..,"z":..,"w":..}}.
type wirePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type wireQuaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

type wirePose struct {
	Position    wirePoint      `json:"position"`
	Orientation wireQuaternion `json:"orientation"`
}

// MarshalJSON implements json.Marshaler.
func (p Pose) MarshalJSON() ([]byte, error) {
	return json.Marshal(wirePose{
		Position:    wirePoint{X: p.Position.X, Y: p.Position.Y, Z: p.Position.Z},
		Orientation: wireQuaternion{X: p.Orientation.Imag, Y: p.Orientation.Jmag, Z: p.Orientation.Kmag, W: p.Orientation.Real},
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Pose) UnmarshalJSON(data []byte) error {
	var w wirePose
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	p.Position = r3.Vec{X: w.Position.X, Y: w.Position.Y, Z: w.Position.Z}
	p.Orientation = quat.Number{Real: w.Orientation.W, Imag: w.Orientation.X, Jmag: w.Orientation.Y, Kmag: w.Orientation.Z}
	return nil
}
