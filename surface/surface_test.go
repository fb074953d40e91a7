package surface

import (
	"sync"
	"testing"

	"go-harp/instrument"
	"go-harp/midi"
	"go-harp/theme"
)

type fakePad struct {
	mu      sync.Mutex
	pads    chan midi.PadEvent
	batches [][]midi.LEDUpdate
}

func newFakePad() *fakePad {
	return &fakePad{pads: make(chan midi.PadEvent, 8)}
}

func (f *fakePad) ID() string                      { return "fake" }
func (f *fakePad) Type() midi.ControllerType       { return midi.ControllerLaunchpad }
func (f *fakePad) PadEvents() <-chan midi.PadEvent { return f.pads }
func (f *fakePad) Close() error                    { close(f.pads); return nil }
func (f *fakePad) SetLEDBatch(u []midi.LEDUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, u)
	return nil
}

func newSurface() (*Surface, *instrument.Mapper) {
	m := instrument.NewMapper(12, instrument.Chromatic, 48, instrument.VoicingMajor)
	return New(m, instrument.DefaultBindings, theme.New(nil)), m
}

func TestPadsSelectChordsAndShiftRoot(t *testing.T) {
	s, m := newSurface()

	s.HandlePad(0, 0) // a: Bb
	if ctx := m.Context(); ctx.ChordName != "Bb" || s.Selected() != 0 {
		t.Fatalf("chord = %q selected = %d", ctx.ChordName, s.Selected())
	}

	s.HandlePad(8, 0)
	s.HandlePad(8, 0)
	s.HandlePad(8, 1)
	if ctx := m.Context(); ctx.Root != 35 || ctx.Transpose != 1 {
		t.Fatalf("root=%d transpose=%d", ctx.Root, ctx.Transpose)
	}

	s.HandlePad(5, 5) // sensor mirror pads do nothing
	if m.Context().ChordName != "Bb" {
		t.Fatal("grid pad changed the chord")
	}
}

func TestOnlyEightBindingsFitTheRow(t *testing.T) {
	s, m := newSurface()
	n := 0
	for _, l := range s.RenderLEDs() {
		if l.Row == 0 {
			n++
		}
	}
	if n != 8 {
		t.Fatalf("chord pads = %d", n)
	}

	// the ninth binding is still selectable from the keyboard
	if err := s.Select(8); err != nil || m.Context().ChordName != "Bm" {
		t.Fatalf("select 8: %v, chord %q", err, m.Context().ChordName)
	}
	for _, l := range s.RenderLEDs() {
		if l.Row == 0 && l.Color != theme.New(nil).RGB(theme.RoleMuted) {
			t.Fatalf("no pad should be highlighted, got %+v", l)
		}
	}
}

func TestRenderMirrorsSensors(t *testing.T) {
	s, m := newSurface()
	th := theme.New(nil)
	touched := make(instrument.TouchSet, 12)
	touched[9] = true
	s.Observe(instrument.Frame{Context: m.Context(), Touched: touched})

	leds := map[[2]int]LEDState{}
	for _, l := range s.RenderLEDs() {
		leds[[2]int{l.Row, l.Col}] = l
	}
	if got := leds[[2]int{2, 1}].Color; got != th.SensorRGB(true, false) {
		t.Fatalf("sensor 9 colour = %v", got)
	}
	if got := leds[[2]int{1, 4}].Color; got != th.SensorRGB(false, true) {
		t.Fatalf("sensor 4 (E, in C major) colour = %v", got)
	}
	if got := leds[[2]int{1, 5}].Color; got != th.SensorRGB(false, false) {
		t.Fatalf("sensor 5 colour = %v", got)
	}
	if _, ok := leds[[2]int{2, 4}]; ok {
		t.Fatal("only 12 sensors, row 2 col 4 should be dark")
	}
}

func TestFlushSendsOnlyChanges(t *testing.T) {
	s, m := newSurface()
	pad := newFakePad()
	s.SetController(pad)
	defer pad.Close()

	s.Observe(instrument.Frame{Context: m.Context(), Touched: make(instrument.TouchSet, 12)})
	s.flushLEDs()
	s.flushLEDs()

	touched := make(instrument.TouchSet, 12)
	touched[0] = true
	s.Observe(instrument.Frame{Context: m.Context(), Touched: touched})
	s.flushLEDs()

	pad.mu.Lock()
	defer pad.mu.Unlock()
	if len(pad.batches) != 2 {
		t.Fatalf("expected 2 batches (full, then diff), got %d", len(pad.batches))
	}
	if n := len(pad.batches[0]); n != 8+2+12 {
		t.Fatalf("first batch = %d leds", n)
	}
	if d := pad.batches[1]; len(d) != 1 || d[0].Row != 1 || d[0].Col != 0 {
		t.Fatalf("diff = %+v", d)
	}
}
