package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"go-harp/instrument"
	"go-harp/latency"
	"go-harp/surface"
	"go-harp/theme"
)

type fakeEngine struct {
	frames chan instrument.Frame
	recals int
}

func (f *fakeEngine) Frames() <-chan instrument.Frame { return f.frames }
func (f *fakeEngine) Recalibrate()                    { f.recals++ }

type fakeSensors struct {
	sim     bool
	toggled []int
}

func (f *fakeSensors) Toggle(i int) bool {
	f.toggled = append(f.toggled, i)
	return true
}

func (f *fakeSensors) Simulated() bool { return f.sim }

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newPlay(sim bool) (PlayModel, *instrument.Mapper, *fakeEngine, *fakeSensors) {
	th := theme.New(nil)
	mapper := instrument.NewMapper(12, instrument.Chromatic, 48, instrument.VoicingMajor)
	eng := &fakeEngine{frames: make(chan instrument.Frame, 1)}
	sensors := &fakeSensors{sim: sim}
	m := NewPlayModel(PlayOptions{
		Engine:   eng,
		Mapper:   mapper,
		Surface:  surface.New(mapper, instrument.DefaultBindings, th),
		Sensors:  sensors,
		Bindings: instrument.DefaultBindings,
		Theme:    th,
		PerChip:  12,
	})
	return m, mapper, eng, sensors
}

func update(t *testing.T, m tea.Model, msg tea.Msg) (tea.Model, tea.Cmd) {
	t.Helper()
	return m.Update(msg)
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestPlayKeysDriveMapper(t *testing.T) {
	m, mapper, eng, _ := newPlay(false)

	var model tea.Model = m
	model, _ = update(t, model, runes("q")) // A minor, not quit
	if ctx := mapper.Context(); ctx.ChordName != "Am" || ctx.Root != 33 {
		t.Fatalf("chord = %q root = %d", ctx.ChordName, ctx.Root)
	}

	model, _ = update(t, model, tea.KeyMsg{Type: tea.KeyUp})
	model, _ = update(t, model, tea.KeyMsg{Type: tea.KeyUp})
	model, _ = update(t, model, tea.KeyMsg{Type: tea.KeyDown})
	if ctx := mapper.Context(); ctx.Root != 34 || ctx.Transpose != 1 {
		t.Fatalf("root = %d transpose = %d", ctx.Root, ctx.Transpose)
	}

	model, _ = update(t, model, runes("r"))
	if eng.recals != 1 {
		t.Fatalf("recalibrations = %d", eng.recals)
	}

	_, cmd := update(t, model, runes("Q"))
	if !isQuit(cmd) {
		t.Fatal("Q should quit")
	}
	_, cmd = update(t, model, tea.KeyMsg{Type: tea.KeyCtrlC})
	if !isQuit(cmd) {
		t.Fatal("ctrl+c should quit")
	}
}

func TestDigitsToggleOnlySimulatedSensors(t *testing.T) {
	m, _, _, sensors := newPlay(true)
	var model tea.Model = m
	model, _ = update(t, model, runes("3"))
	model, _ = update(t, model, runes("0"))
	if len(sensors.toggled) != 2 || sensors.toggled[0] != 2 || sensors.toggled[1] != 9 {
		t.Fatalf("toggled = %v", sensors.toggled)
	}

	m, _, _, sensors = newPlay(false)
	m.Update(runes("3"))
	if len(sensors.toggled) != 0 {
		t.Fatal("hardware sensors must not be toggled")
	}
}

func TestViewShowsCalibrationThenSensors(t *testing.T) {
	m, mapper, _, _ := newPlay(false)
	if v := m.View(); !strings.Contains(v, "Calibrating") {
		t.Fatalf("expected calibration notice:\n%s", v)
	}

	readings := make([]int, 12)
	levels := make([]int, 12)
	for i := range readings {
		readings[i], levels[i] = 210, 195
	}
	frame := instrument.Frame{
		Readings: readings,
		Levels:   levels,
		Touched:  make(instrument.TouchSet, 12),
		Context:  mapper.Context(),
		Sounding: []int{60},
		Warning:  instrument.ErrUnstableCalibration,
	}
	model, cmd := m.Update(FrameMsg(frame))
	if cmd == nil {
		t.Fatal("should keep listening for frames")
	}
	v := model.View()
	for _, want := range []string{"210 / 195", "sounding: C4", "unstable calibration", "Chords"} {
		if !strings.Contains(v, want) {
			t.Fatalf("view missing %q:\n%s", want, v)
		}
	}
}

func TestEngineFailureQuits(t *testing.T) {
	m, _, _, _ := newPlay(false)
	boom := errors.New("bus gone")
	model, cmd := m.Update(EngineDoneMsg{Err: boom})
	if !isQuit(cmd) || !errors.Is(model.(PlayModel).Err(), boom) {
		t.Fatal("engine failure should quit with its error")
	}
}

func TestLatencyAckAndSamples(t *testing.T) {
	ack := make(chan struct{}, 1)
	samples := make(chan latency.Sample)
	m := NewLatencyModel(ack, samples, make(chan error), 80, 15, theme.New(nil))

	var model tea.Model = m
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyEnter}) // dropped, probe has not replayed yet
	if len(ack) != 1 {
		t.Fatalf("acks queued = %d", len(ack))
	}

	model, _ = model.Update(SampleMsg{Elapsed: 280e6, Average: 290e6, Count: 3})
	v := model.View()
	if !strings.Contains(v, "0.280s") || !strings.Contains(v, "0.290s") || !strings.Contains(v, "last 3 of 3") {
		t.Fatalf("view:\n%s", v)
	}

	_, cmd := model.Update(runes("q"))
	if !isQuit(cmd) {
		t.Fatal("q should quit")
	}
}
