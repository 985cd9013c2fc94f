// Package monitoring holds the process-wide diagnostic logger. Every package
// logs through Logf so tests can capture or silence output in one place.
package monitoring

import "log"

// Logf defaults to log.Printf. Replace it with SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger installs f as Logf; nil discards all output.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		f = func(string, ...interface{}) {}
	}
	Logf = f
}

// Warnf logs a recoverable condition that changes behaviour, such as the
// planner falling back to the full route.
func Warnf(format string, v ...interface{}) {
	Logf("WARN "+format, v...)
}

// Errorf logs a failed operation that the caller skips, such as a waypoint
// whose transform could not be resolved.
func Errorf(format string, v ...interface{}) {
	Logf("ERROR "+format, v...)
}
