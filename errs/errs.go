// Package errs holds the fault tags shared across packages.
package errs

import (
	"github.com/Southclaws/fault/ftag"
)

const (
	// Transport marks sensor bus and MIDI port failures. Fatal to the task
	// that hit them.
	Transport ftag.Kind = "transport"
	// Calibration marks a calibration run whose readings were not stable.
	Calibration ftag.Kind = "calibration"
	// Config marks invalid configuration values.
	Config ftag.Kind = "config"
)

// Is reports whether err carries the given tag.
func Is(err error, kind ftag.Kind) bool {
	if err == nil {
		return false
	}
	return ftag.Get(err) == kind
}
