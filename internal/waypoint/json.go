package waypoint

import (
	"encoding/json"

	"gonum.org/v1/gonum/spatial/r3"
)

type wireVector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type wireTwist struct {
	Linear  wireVector3 `json:"linear"`
	Angular wireVector3 `json:"angular"`
}

func toWire(v r3.Vec) wireVector3   { return wireVector3{X: v.X, Y: v.Y, Z: v.Z} }
func fromWire(v wireVector3) r3.Vec { return r3.Vec{X: v.X, Y: v.Y, Z: v.Z} }

// MarshalJSON implements json.Marshaler with lower-case vector keys.
func (t Twist) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireTwist{Linear: toWire(t.Linear), Angular: toWire(t.Angular)})
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Twist) UnmarshalJSON(data []byte) error {
	var w wireTwist
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	t.Linear = fromWire(w.Linear)
	t.Angular = fromWire(w.Angular)
	return nil
}
