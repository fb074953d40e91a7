package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-harp/latency"
	"go-harp/midi"
	"go-harp/theme"
	"go-harp/widgets"
)

type SampleMsg latency.Sample

// ProbeDoneMsg reports that the probe loop returned
type ProbeDoneMsg struct{ Err error }

// LatencyModel forwards acknowledgements to a running probe and shows its
// results.
type LatencyModel struct {
	ack       chan<- struct{}
	samples   <-chan latency.Sample
	probeDone <-chan error
	note      int
	window    int
	theme     *theme.Theme
	keys      latencyKeys

	last     latency.Sample
	err      error
	quitting bool
}

func NewLatencyModel(ack chan<- struct{}, samples <-chan latency.Sample, probeDone <-chan error, note, window int, th *theme.Theme) LatencyModel {
	return LatencyModel{
		ack:       ack,
		samples:   samples,
		probeDone: probeDone,
		note:      note,
		window:    window,
		theme:     th,
		keys:      newLatencyKeys(),
	}
}

func (m LatencyModel) Err() error {
	return m.err
}

func ListenForSamples(samples <-chan latency.Sample) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-samples
		if !ok {
			return nil
		}
		return SampleMsg(s)
	}
}

func WaitForProbe(done <-chan error) tea.Cmd {
	return func() tea.Msg {
		return ProbeDoneMsg{Err: <-done}
	}
}

func (m LatencyModel) Init() tea.Cmd {
	return tea.Batch(ListenForSamples(m.samples), WaitForProbe(m.probeDone))
}

func (m LatencyModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Ack):
			// one acknowledgement per played note; extra presses are ignored
			select {
			case m.ack <- struct{}{}:
			default:
			}
		}

	case SampleMsg:
		m.last = latency.Sample(msg)
		return m, ListenForSamples(m.samples)

	case ProbeDoneMsg:
		m.err = msg.Err
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m LatencyModel) View() string {
	if m.quitting {
		return ""
	}
	headerStyle := lipgloss.NewStyle().Foreground(m.theme.Accent())
	valueStyle := lipgloss.NewStyle().Foreground(m.theme.Active())
	dimStyle := lipgloss.NewStyle().Foreground(m.theme.Muted())

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(headerStyle.Render(fmt.Sprintf("go-harp latency  probe %s", midi.NoteName(m.note))))
	out.WriteString("\n\n")
	if m.last.Count == 0 {
		out.WriteString("Listen for the note, then press enter.\n")
	} else {
		fmt.Fprintf(&out, "last     %s\n", valueStyle.Render(seconds(m.last.Elapsed)))
		fmt.Fprintf(&out, "average  %s  (last %d of %d)\n",
			valueStyle.Render(seconds(m.last.Average)), min(m.window, m.last.Count), m.last.Count)
	}
	out.WriteString("\n")
	out.WriteString(dimStyle.Render(widgets.RenderKeyHelp([]widgets.KeySection{{Keys: []widgets.KeyBinding{
		{Key: "enter/space", Desc: m.keys.Ack.Help().Desc},
		{Key: m.keys.Quit.Help().Key, Desc: m.keys.Quit.Help().Desc},
	}}})))
	return out.String()
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.3fs", d.Seconds())
}
