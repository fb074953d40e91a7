// Package sensor reads capacitive touch chips as one logical sensor array.
package sensor

import (
	"fmt"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	"go-harp/errs"
)

// PinsPerChip is the electrode count of the MPR121-class chips the bridge hosts
const PinsPerChip = 12

// Chip is one physical touch controller.
type Chip interface {
	// Pins returns how many electrodes the chip reports
	Pins() int
	// FilteredData returns the filtered electrode values in pin order 0..Pins-1
	FilteredData() ([]int, error)
	// TouchedPins returns the chip's own touch flags in pin order 0..Pins-1
	TouchedPins() ([]bool, error)
}

// Reader is the sensor boundary the instrument core depends on.
type Reader interface {
	Len() int
	ReadFiltered() ([]int, error)
	ReadTouched() ([]bool, error)
}

// Array concatenates chips in configured order. Sensor i lives on chip
// i/pins at pin i%pins for the filtered read.
type Array struct {
	chips []Chip
	n     int
}

// NewArray builds an array from chips in the given order
func NewArray(chips ...Chip) *Array {
	a := &Array{chips: chips}
	for _, c := range chips {
		a.n += c.Pins()
	}
	return a
}

// Len returns the total sensor count
func (a *Array) Len() int {
	return a.n
}

// ReadFiltered returns every chip's filtered values, chip by chip, pins in
// forward order.
func (a *Array) ReadFiltered() ([]int, error) {
	out := make([]int, 0, a.n)
	for ci, c := range a.chips {
		vals, err := c.FilteredData()
		if err != nil {
			return nil, wrapChip(err, ci, "read filtered data")
		}
		if len(vals) != c.Pins() {
			return nil, wrapChip(ErrShortRead, ci, fmt.Sprintf("filtered data has %d values, want %d", len(vals), c.Pins()))
		}
		out = append(out, vals...)
	}
	return out, nil
}

// ReadTouched returns every chip's touch flags, chip by chip, pins in
// reverse order (highest pin first).
func (a *Array) ReadTouched() ([]bool, error) {
	out := make([]bool, 0, a.n)
	for ci, c := range a.chips {
		flags, err := c.TouchedPins()
		if err != nil {
			return nil, wrapChip(err, ci, "read touched pins")
		}
		if len(flags) != c.Pins() {
			return nil, wrapChip(ErrShortRead, ci, fmt.Sprintf("touch flags has %d values, want %d", len(flags), c.Pins()))
		}
		for p := len(flags) - 1; p >= 0; p-- {
			out = append(out, flags[p])
		}
	}
	return out, nil
}

// Toggle flips a simulated touch on sensor i. Hardware chips are left alone
// and report false.
func (a *Array) Toggle(i int) bool {
	for _, c := range a.chips {
		if i < c.Pins() {
			if sim, ok := c.(*Sim); ok {
				return sim.Toggle(i)
			}
			return false
		}
		i -= c.Pins()
	}
	return false
}

// Simulated reports whether any chip in the array is a simulator
func (a *Array) Simulated() bool {
	for _, c := range a.chips {
		if _, ok := c.(*Sim); ok {
			return true
		}
	}
	return false
}

func wrapChip(err error, chip int, what string) error {
	return fault.Wrap(err,
		fmsg.WithDesc(fmt.Sprintf("chip %d: %s", chip, what), "Touch sensors stopped responding"),
		ftag.With(errs.Transport),
	)
}
