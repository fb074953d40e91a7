package midi

import (
	"strconv"
	"time"
)

// MIDI message types
const (
	NoteOn        uint8 = 0x90
	NoteOff       uint8 = 0x80
	ProgramChange uint8 = 0xC0
)

// Event is one message the instrument dispatched
type Event struct {
	Type     uint8 // NoteOn, NoteOff, ProgramChange
	Note     uint8 // note number, or program for ProgramChange
	Velocity uint8
	At       time.Time
}

// Send delivers e through out
func Send(out Output, e Event) error {
	switch e.Type {
	case NoteOn:
		return out.NoteOn(e.Note, e.Velocity)
	case NoteOff:
		return out.NoteOff(e.Note)
	case ProgramChange:
		return out.ProgramChange(e.Note)
	}
	return nil
}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "Bb", "B"}

// PitchName returns the pitch-class name of a note ("Bb" for 46)
func PitchName(note int) string {
	return noteNames[((note%12)+12)%12]
}

// NoteName returns name plus octave, middle C = C4
func NoteName(note int) string {
	return PitchName(note) + strconv.Itoa(note/12-1)
}
