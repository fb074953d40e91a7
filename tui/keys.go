package tui

import (
	"github.com/charmbracelet/bubbles/key"

	"go-harp/instrument"
	"go-harp/widgets"
)

// Key builds a binding whose help text shows its first key
func Key(help string, keyboardKey ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keyboardKey...), key.WithHelp(keyboardKey[0], help))
}

type playKeys struct {
	RootUp      key.Binding
	RootDown    key.Binding
	Recalibrate key.Binding
	Quit        key.Binding
	SimTouch    key.Binding
	Chords      []key.Binding
}

func newPlayKeys(bindings []instrument.Binding) playKeys {
	k := playKeys{
		RootUp:      Key("root up", "up"),
		RootDown:    Key("root down", "down"),
		Recalibrate: Key("recalibrate", "r"),
		Quit:        Key("quit", "Q", "ctrl+c"),
		SimTouch:    Key("toggle simulated sensor 0-9", "1", "2", "3", "4", "5", "6", "7", "8", "9", "0"),
	}
	for _, b := range bindings {
		k.Chords = append(k.Chords, Key(b.Label(), b.Key))
	}
	return k
}

// chord returns the index of the chord binding msg matches, or -1
func (k playKeys) chord(msg string) int {
	for i, b := range k.Chords {
		for _, s := range b.Keys() {
			if s == msg {
				return i
			}
		}
	}
	return -1
}

func (k playKeys) help(sim bool) []widgets.KeySection {
	var chords []widgets.KeyBinding
	for _, b := range k.Chords {
		chords = append(chords, widgets.KeyBinding{Key: b.Help().Key, Desc: b.Help().Desc})
	}
	control := []widgets.KeyBinding{}
	for _, b := range []key.Binding{k.RootUp, k.RootDown, k.Recalibrate, k.Quit} {
		control = append(control, widgets.KeyBinding{Key: b.Help().Key, Desc: b.Help().Desc})
	}
	if sim {
		control = append(control, widgets.KeyBinding{Key: "0-9", Desc: k.SimTouch.Help().Desc})
	}
	return []widgets.KeySection{
		{Title: "Chords", Keys: chords},
		{Title: "Control", Keys: control},
	}
}

type latencyKeys struct {
	Ack  key.Binding
	Quit key.Binding
}

func newLatencyKeys() latencyKeys {
	return latencyKeys{
		Ack:  Key("heard it", "enter", " ", "space"),
		Quit: Key("quit", "q", "ctrl+c"),
	}
}
