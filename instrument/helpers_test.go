package instrument

import (
	"sync"

	"go-harp/midi"
)

// recorder is an Output that keeps every message
type recorder struct {
	mu     sync.Mutex
	events []midi.Event
	err    error
	full   bool
}

func (r *recorder) add(e midi.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if r.full {
		return midi.ErrBackpressure
	}
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) NoteOn(note, velocity uint8) error {
	return r.add(midi.Event{Type: midi.NoteOn, Note: note, Velocity: velocity})
}

func (r *recorder) NoteOff(note uint8) error {
	return r.add(midi.Event{Type: midi.NoteOff, Note: note})
}

func (r *recorder) ProgramChange(program uint8) error {
	return r.add(midi.Event{Type: midi.ProgramChange, Note: program})
}

func (r *recorder) Panic() error {
	return nil
}

func (r *recorder) take() []midi.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

func count(events []midi.Event, typ uint8, note uint8) int {
	n := 0
	for _, e := range events {
		if e.Type == typ && e.Note == note {
			n++
		}
	}
	return n
}

// script is a Reader replaying fixed frames, repeating the last one
type script struct {
	mu     sync.Mutex
	frames [][]int
	pos    int
	err    error
}

func (s *script) Len() int {
	return len(s.frames[0])
}

func (s *script) ReadFiltered() ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	f := s.frames[min(s.pos, len(s.frames)-1)]
	s.pos++
	return append([]int(nil), f...), nil
}

func (s *script) ReadTouched() ([]bool, error) {
	return make([]bool, s.Len()), nil
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
