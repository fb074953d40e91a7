package sensor

import (
	"sync"
)

// Default simulator electrode values, in MPR121 filtered-data units
const (
	SimBaseline = 200
	SimDepth    = 40
)

// Sim is an in-memory chip. Touching a pin drops its value by SimDepth below
// the baseline, roughly what a finger does to a real electrode.
type Sim struct {
	mu     sync.Mutex
	values []int
	base   int
	err    error
}

// NewSim returns a simulated chip with every pin at baseline
func NewSim(pins, baseline int) *Sim {
	s := &Sim{values: make([]int, pins), base: baseline}
	for i := range s.values {
		s.values[i] = baseline
	}
	return s
}

func (s *Sim) Pins() int {
	return len(s.values)
}

// Set forces a raw value on one pin
func (s *Sim) Set(pin, value int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pin >= 0 && pin < len(s.values) {
		s.values[pin] = value
	}
}

// Touch pulls a pin below baseline
func (s *Sim) Touch(pin int) {
	s.Set(pin, s.base-SimDepth)
}

// Release returns a pin to baseline
func (s *Sim) Release(pin int) {
	s.Set(pin, s.base)
}

// Toggle flips a pin between touched and released and reports the new state
func (s *Sim) Toggle(pin int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pin < 0 || pin >= len(s.values) {
		return false
	}
	if s.values[pin] < s.base {
		s.values[pin] = s.base
		return false
	}
	s.values[pin] = s.base - SimDepth
	return true
}

// Fail makes every following read return err (nil clears it)
func (s *Sim) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Sim) FilteredData() ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]int, len(s.values))
	copy(out, s.values)
	return out, nil
}

// TouchedPins mimics the chip's own detector: a pin is touched once its
// value is more than half the touch depth below baseline.
func (s *Sim) TouchedPins() ([]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]bool, len(s.values))
	for i, v := range s.values {
		out[i] = v < s.base-SimDepth/2
	}
	return out, nil
}
