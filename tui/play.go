// Package tui holds the bubbletea models for play and latency modes.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-harp/debug"
	"go-harp/instrument"
	"go-harp/midi"
	"go-harp/surface"
	"go-harp/theme"
	"go-harp/widgets"
)

// Engine is the part of instrument.Engine the UI talks to
type Engine interface {
	Frames() <-chan instrument.Frame
	Recalibrate()
}

// Sensors lets the UI poke simulated electrodes
type Sensors interface {
	Toggle(i int) bool
	Simulated() bool
}

type FrameMsg instrument.Frame

// EngineDoneMsg reports that the tick loop returned
type EngineDoneMsg struct{ Err error }

type DeviceEventMsg midi.DeviceEvent

// PlayModel shows the sensors and handles operator keys. It only reads
// frames; musical changes go through the mapper.
type PlayModel struct {
	engine     Engine
	engineDone <-chan error
	mapper     *instrument.Mapper
	surface    *surface.Surface
	devices    *midi.DeviceManager
	sensors    Sensors
	theme      *theme.Theme
	keys       playKeys
	perChip    int

	frame    instrument.Frame
	ready    bool
	err      error
	quitting bool
	lpID     string
}

// PlayOptions wires a PlayModel. Devices and Sensors may be nil.
type PlayOptions struct {
	Engine     Engine
	EngineDone <-chan error
	Mapper     *instrument.Mapper
	Surface    *surface.Surface
	Devices    *midi.DeviceManager
	Sensors    Sensors
	Bindings   []instrument.Binding
	Theme      *theme.Theme
	PerChip    int
}

func NewPlayModel(o PlayOptions) PlayModel {
	return PlayModel{
		engine:     o.Engine,
		engineDone: o.EngineDone,
		mapper:     o.Mapper,
		surface:    o.Surface,
		devices:    o.Devices,
		sensors:    o.Sensors,
		theme:      o.Theme,
		keys:       newPlayKeys(o.Bindings),
		perChip:    o.PerChip,
	}
}

// Err is the engine failure that ended the program, if any
func (m PlayModel) Err() error {
	return m.err
}

func ListenForFrames(e Engine) tea.Cmd {
	return func() tea.Msg {
		return FrameMsg(<-e.Frames())
	}
}

func WaitForEngine(done <-chan error) tea.Cmd {
	return func() tea.Msg {
		return EngineDoneMsg{Err: <-done}
	}
}

func ListenForDevices(deviceMgr *midi.DeviceManager) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-deviceMgr.Events()
		if !ok {
			return nil
		}
		return DeviceEventMsg(event)
	}
}

func (m PlayModel) Init() tea.Cmd {
	cmds := []tea.Cmd{ListenForFrames(m.engine)}
	if m.engineDone != nil {
		cmds = append(cmds, WaitForEngine(m.engineDone))
	}
	if m.devices != nil {
		cmds = append(cmds, ListenForDevices(m.devices))
	}
	return tea.Batch(cmds...)
}

func (m PlayModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case FrameMsg:
		m.frame = instrument.Frame(msg)
		m.ready = true
		m.surface.Observe(m.frame)
		return m, ListenForFrames(m.engine)

	case EngineDoneMsg:
		m.err = msg.Err
		m.quitting = true
		return m, tea.Quit

	case DeviceEventMsg:
		event := midi.DeviceEvent(msg)
		switch event.Type {
		case midi.DeviceConnected:
			m.lpID = event.ID
			m.surface.SetController(event.Controller)
		case midi.DeviceDisconnected:
			if m.lpID == event.ID {
				m.lpID = ""
				m.surface.SetController(nil)
			}
		}
		return m, ListenForDevices(m.devices)
	}

	return m, nil
}

func (m PlayModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.RootUp):
		m.mapper.ShiftRoot(1)
	case key.Matches(msg, m.keys.RootDown):
		m.mapper.ShiftRoot(-1)
	case key.Matches(msg, m.keys.Recalibrate):
		m.engine.Recalibrate()
	default:
		if i := m.keys.chord(msg.String()); i >= 0 {
			if err := m.surface.Select(i); err != nil {
				debug.Log("keys", "select chord %d: %v", i, err)
			}
			break
		}
		if key.Matches(msg, m.keys.SimTouch) && m.sensors != nil && m.sensors.Simulated() {
			i := int(msg.String()[0]-'0') - 1
			if i < 0 {
				i = 9
			}
			m.sensors.Toggle(i)
		}
	}
	return m, nil
}

func (m PlayModel) View() string {
	if m.quitting {
		return ""
	}

	headerStyle := lipgloss.NewStyle().Foreground(m.theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.theme.Muted())
	warnStyle := lipgloss.NewStyle().Foreground(m.theme.Warning())

	ctx := m.mapper.Context()
	deviceStatus := ""
	if m.lpID != "" {
		deviceStatus = "  LP:X"
	}
	header := headerStyle.Render(fmt.Sprintf("go-harp  %s  root %s  chord %s %s%s",
		m.frame.Policy, midi.NoteName(ctx.Root), ctx.ChordName, ctx.Chord, deviceStatus))

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")

	switch {
	case !m.ready || m.frame.Calibrating:
		out.WriteString(warnStyle.Render("Calibrating sensors, do not touch!"))
		out.WriteString("\n")
	default:
		if m.frame.Warning != nil {
			out.WriteString(warnStyle.Render(fmt.Sprintf("warning: %v (r to recalibrate)", m.frame.Warning)))
			out.WriteString("\n\n")
		}
		out.WriteString(m.padRow(ctx))
		out.WriteString("\n\n")
		out.WriteString(m.statusLines(ctx))
		out.WriteString("\n")
		out.WriteString(dimStyle.Render("sounding: " + noteList(m.frame.Sounding)))
		out.WriteString("\n")
	}

	out.WriteString("\n")
	sim := m.sensors != nil && m.sensors.Simulated()
	out.WriteString(dimStyle.Render(widgets.RenderKeyHelp(m.keys.help(sim))))
	return out.String()
}

func (m PlayModel) padRow(ctx *instrument.Context) string {
	n := len(m.frame.Readings)
	colors := make([][3]uint8, n)
	symbols := make([]rune, n)
	for i := 0; i < n; i++ {
		touched := i < len(m.frame.Touched) && m.frame.Touched[i]
		colors[i] = m.theme.SensorRGB(touched, ctx.IsActive(ctx.Note(i)))
		symbols[i] = m.theme.Symbols.Idle
		if touched {
			symbols[i] = m.theme.Symbols.Touched
		}
	}
	return widgets.RenderPadRow(colors, symbols, m.perChip)
}

func (m PlayModel) statusLines(ctx *instrument.Context) string {
	touchedStyle := lipgloss.NewStyle().Foreground(m.theme.Touched())
	activeStyle := lipgloss.NewStyle().Foreground(m.theme.Active())
	mutedStyle := lipgloss.NewStyle().Foreground(m.theme.Muted())

	var lines []string
	for i, v := range m.frame.Readings {
		level := 0
		if i < len(m.frame.Levels) {
			level = m.frame.Levels[i]
		}
		note := ctx.Note(i)
		name := ""
		style := mutedStyle
		if ctx.IsActive(note) {
			name = midi.PitchName(note)
			style = activeStyle
		}
		if i < len(m.frame.Touched) && m.frame.Touched[i] {
			style = touchedStyle
		}
		chip := ""
		if i < len(m.frame.ChipTouched) && m.frame.ChipTouched[i] {
			chip = " chip"
		}
		lines = append(lines, style.Render(fmt.Sprintf("%2d %-4s %s%s", i, midi.NoteName(note), widgets.StatusLine(v, level, name), chip)))
	}
	return strings.Join(lines, "\n")
}

func noteList(notes []int) string {
	if len(notes) == 0 {
		return "-"
	}
	names := make([]string, len(notes))
	for i, n := range notes {
		names[i] = midi.NoteName(n)
	}
	return strings.Join(names, " ")
}
