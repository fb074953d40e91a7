// Package surface drives a Launchpad as a second operator panel: the bottom
// row selects chords, the top arrows shift the root and the grid mirrors
// the sensors.
package surface

import (
	"context"
	"sync"
	"time"

	"go-harp/debug"
	"go-harp/instrument"
	"go-harp/midi"
	"go-harp/theme"
)

// LED refresh rate
const ledFPS = 30

// Grid layout
const (
	chordRow   = 0
	firstRow   = 1 // sensors start here, eight per row
	sensorRows = 7
	arrowRow   = 8
	arrowUp    = 0 // CC 91
	arrowDown  = 1 // CC 92
	gridCols   = 8
)

// LEDState is the colour wanted on one pad
type LEDState struct {
	Row, Col int
	Color    [3]uint8
	Channel  uint8
}

// Surface is safe for concurrent use: pads arrive on controller goroutines,
// frames on the UI goroutine and LEDs go out from Run.
type Surface struct {
	mapper   *instrument.Mapper
	bindings []instrument.Binding
	theme    *theme.Theme

	mu         sync.Mutex
	controller midi.Controller
	frame      *instrument.Frame
	selected   int // binding index, -1 before the first selection
	dirty      bool
	prevLEDs   map[[2]int]LEDState
}

func New(mapper *instrument.Mapper, bindings []instrument.Binding, th *theme.Theme) *Surface {
	return &Surface{
		mapper:   mapper,
		bindings: bindings,
		theme:    th,
		selected: -1,
		prevLEDs: make(map[[2]int]LEDState),
	}
}

// SetController attaches c (nil detaches) and starts reading its pads
func (s *Surface) SetController(c midi.Controller) {
	s.mu.Lock()
	s.controller = c
	s.prevLEDs = make(map[[2]int]LEDState)
	s.dirty = true
	s.mu.Unlock()

	if c == nil {
		return
	}
	go func() {
		for pad := range c.PadEvents() {
			s.HandlePad(pad.Row, pad.Col)
		}
	}()
}

// Controller returns the attached controller, if any
func (s *Surface) Controller() midi.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controller
}

// Observe records the newest engine frame for the next LED refresh
func (s *Surface) Observe(f instrument.Frame) {
	s.mu.Lock()
	s.frame = &f
	s.dirty = true
	s.mu.Unlock()
}

// Selected returns the index of the last chord chosen here or via Select
func (s *Surface) Selected() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Select applies binding i. The keyboard goes through here too so the pad
// highlight follows it; only the first eight bindings have pads.
func (s *Surface) Select(i int) error {
	if i < 0 || i >= len(s.bindings) {
		return nil
	}
	if err := s.mapper.SelectBinding(s.bindings[i]); err != nil {
		return err
	}
	s.mu.Lock()
	s.selected = i
	s.dirty = true
	s.mu.Unlock()
	return nil
}

// HandlePad reacts to a pad press
func (s *Surface) HandlePad(row, col int) {
	switch {
	case row == chordRow && col < gridCols:
		if err := s.Select(col); err != nil {
			debug.Log("surface", "select chord %d: %v", col, err)
		}
	case row == arrowRow && col == arrowUp:
		s.mapper.ShiftRoot(1)
	case row == arrowRow && col == arrowDown:
		s.mapper.ShiftRoot(-1)
	default:
		return
	}
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
}

// Run refreshes LEDs at a fixed rate until ctx is done
func (s *Surface) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second / ledFPS)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			dirty := s.dirty
			s.dirty = false
			s.mu.Unlock()

			if dirty {
				s.flushLEDs()
			}
		}
	}
}

// RenderLEDs builds the full wanted grid
func (s *Surface) RenderLEDs() []LEDState {
	s.mu.Lock()
	frame := s.frame
	selected := s.selected
	s.mu.Unlock()

	var leds []LEDState
	for i := 0; i < len(s.bindings) && i < gridCols; i++ {
		norm := theme.RoleMuted
		if i == selected {
			norm = theme.RoleAccent
		}
		leds = append(leds, LEDState{Row: chordRow, Col: i, Color: s.theme.RGB(norm)})
	}
	arrow := s.theme.RGB(theme.RoleFG)
	leds = append(leds,
		LEDState{Row: arrowRow, Col: arrowUp, Color: arrow},
		LEDState{Row: arrowRow, Col: arrowDown, Color: arrow},
	)

	if frame == nil || frame.Context == nil {
		return leds
	}
	ctx := frame.Context
	for i := 0; i < len(ctx.Notes) && i < sensorRows*gridCols; i++ {
		touched := i < len(frame.Touched) && frame.Touched[i]
		led := LEDState{
			Row:   firstRow + i/gridCols,
			Col:   i % gridCols,
			Color: s.theme.SensorRGB(touched, ctx.IsActive(ctx.Notes[i])),
		}
		if frame.Calibrating {
			led.Channel = midi.ChannelPulse
		}
		leds = append(leds, led)
	}
	return leds
}

// flushLEDs sends only changed LEDs to the controller
func (s *Surface) flushLEDs() {
	c := s.Controller()
	if c == nil {
		return
	}

	updates := s.diff(s.RenderLEDs())
	if len(updates) == 0 {
		return
	}
	if err := c.SetLEDBatch(updates); err != nil {
		debug.Log("led", "flush: %v", err)
	}
}

func (s *Surface) diff(leds []LEDState) []midi.LEDUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()

	newMap := make(map[[2]int]LEDState, len(leds))
	var updates []midi.LEDUpdate

	for _, led := range leds {
		key := [2]int{led.Row, led.Col}
		newMap[key] = led
		if prev, ok := s.prevLEDs[key]; !ok || prev != led {
			updates = append(updates, midi.LEDUpdate{
				Row:     led.Row,
				Col:     led.Col,
				Color:   led.Color,
				Channel: led.Channel,
			})
		}
	}

	// Clear LEDs that are no longer present
	for key := range s.prevLEDs {
		if _, ok := newMap[key]; !ok {
			updates = append(updates, midi.LEDUpdate{Row: key[0], Col: key[1]})
		}
	}

	s.prevLEDs = newMap
	return updates
}
