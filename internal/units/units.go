// Package units converts speeds between m/s and the units operators use in
// config files and API responses. The planner itself only works in m/s.
package units

import (
	"fmt"
	"slices"
	"strings"
)

const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// ValidUnits lists the accepted unit names.
var ValidUnits = []string{MPS, MPH, KMPH, KPH}

// perMPS is how many of each unit make one m/s.
var perMPS = map[string]float64{
	MPS:  1,
	MPH:  2.23694,
	KMPH: 3.6,
	KPH:  3.6,
}

// IsValid reports whether unit is one of ValidUnits. Names are case sensitive.
func IsValid(unit string) bool {
	return slices.Contains(ValidUnits, unit)
}

// GetValidUnitsString lists ValidUnits for error messages.
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ConvertSpeed converts m/s into targetUnits. Unknown units get m/s back.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	if f, ok := perMPS[targetUnits]; ok {
		return speedMPS * f
	}
	return speedMPS
}

// ToMPS converts speed from units into m/s. An empty unit means m/s.
func ToMPS(speed float64, units string) (float64, error) {
	if units == "" {
		units = MPS
	}
	f, ok := perMPS[units]
	if !ok {
		return 0, fmt.Errorf("unknown speed unit %q (valid: %s)", units, GetValidUnitsString())
	}
	return speed / f, nil
}
