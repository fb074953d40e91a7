package instrument

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go-harp/debug"
	"go-harp/midi"
)

// DefaultStaleAfter is how long a note may ring before it is forced off
const DefaultStaleAfter = 4 * time.Second

// DefaultVelocity is the fixed note-on velocity
const DefaultVelocity = 127

const noteCount = 128

// Policy selects which edge sounds a note
type Policy int

const (
	OnRelease Policy = iota
	OnPress
)

// ParsePolicy accepts "on_press" or "on_release"
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.ReplaceAll(s, "-", "_")) {
	case "", "on_release":
		return OnRelease, nil
	case "on_press":
		return OnPress, nil
	}
	return 0, fmt.Errorf("unknown trigger policy %q (have on_press, on_release)", s)
}

func (p Policy) String() string {
	if p == OnPress {
		return "on_press"
	}
	return "on_release"
}

// Scheduler turns edges into MIDI and forces stale notes off. It is owned by
// the tick loop and is not safe for concurrent use.
type Scheduler struct {
	out        midi.Output
	policy     Policy
	velocity   uint8
	staleAfter time.Duration

	lastPlayed [noteCount]time.Time
	sounding   [noteCount]bool

	events []midi.Event
}

// NewScheduler builds a scheduler. staleAfter <= 0 uses DefaultStaleAfter.
func NewScheduler(out midi.Output, policy Policy, velocity uint8, staleAfter time.Duration) *Scheduler {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Scheduler{
		out:        out,
		policy:     policy,
		velocity:   velocity,
		staleAfter: staleAfter,
	}
}

// Policy returns the trigger policy
func (s *Scheduler) Policy() Policy {
	return s.policy
}

// Expire sends note-off for every sounding note last played more than
// staleAfter before now.
func (s *Scheduler) Expire(now time.Time) error {
	for n := 0; n < noteCount; n++ {
		if !s.sounding[n] || now.Sub(s.lastPlayed[n]) <= s.staleAfter {
			continue
		}
		if err := s.send(midi.Event{Type: midi.NoteOff, Note: uint8(n), At: now}); err != nil {
			if errors.Is(err, midi.ErrBackpressure) {
				continue // still sounding, retried next tick
			}
			return err
		}
		s.sounding[n] = false
		debug.Log("expire", "note=%d after %s", n, now.Sub(s.lastPlayed[n]))
	}
	return nil
}

// Dispatch fires the edges selected by the policy. Sensors whose note is
// outside the active chord, or outside 0-127, stay silent.
func (s *Scheduler) Dispatch(ctx *Context, edges Edges, now time.Time) error {
	firing := edges.Released
	if s.policy == OnPress {
		firing = edges.Pressed
	}

	for _, i := range firing {
		note := ctx.Note(i)
		if note < 0 || note >= noteCount {
			debug.LogEvery(50, "dispatch", "sensor=%d note=%d out of range", i, note)
			continue
		}
		if !ctx.IsActive(note) {
			continue
		}
		if err := s.fire(uint8(note), now); err != nil {
			return err
		}
		debug.Log("dispatch", "sensor=%d note=%d policy=%s", i, note, s.policy)
	}
	return nil
}

// fire clears any hung instance of the note, then plays it
func (s *Scheduler) fire(note uint8, now time.Time) error {
	if err := s.send(midi.Event{Type: midi.NoteOff, Note: note, At: now}); err != nil && !errors.Is(err, midi.ErrBackpressure) {
		return err
	}
	err := s.send(midi.Event{Type: midi.NoteOn, Note: note, Velocity: s.velocity, At: now})
	if errors.Is(err, midi.ErrBackpressure) {
		debug.Log("dispatch", "note=%d dropped, output queue full", note)
		return nil
	}
	if err != nil {
		return err
	}
	s.lastPlayed[note] = now
	s.sounding[note] = true
	return nil
}

// ReleaseAll sends note-off for every sounding note. It keeps going past
// failures and returns them joined.
func (s *Scheduler) ReleaseAll(now time.Time) error {
	var errs []error
	for n := 0; n < noteCount; n++ {
		if !s.sounding[n] {
			continue
		}
		if err := s.send(midi.Event{Type: midi.NoteOff, Note: uint8(n), At: now}); err != nil {
			errs = append(errs, err)
			continue
		}
		s.sounding[n] = false
	}
	return errors.Join(errs...)
}

// Sounding lists the notes currently on
func (s *Scheduler) Sounding() []int {
	var out []int
	for n, on := range s.sounding {
		if on {
			out = append(out, n)
		}
	}
	return out
}

// LastPlayed returns when note was last sent as note-on (zero if never)
func (s *Scheduler) LastPlayed(note int) time.Time {
	if note < 0 || note >= noteCount {
		return time.Time{}
	}
	return s.lastPlayed[note]
}

// Drain returns the events sent since the previous Drain
func (s *Scheduler) Drain() []midi.Event {
	if len(s.events) == 0 {
		return nil
	}
	out := make([]midi.Event, len(s.events))
	copy(out, s.events)
	s.events = s.events[:0]
	return out
}

func (s *Scheduler) send(e midi.Event) error {
	if err := midi.Send(s.out, e); err != nil {
		return err
	}
	s.events = append(s.events, e)
	return nil
}
