package instrument

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"go-harp/midi"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// run feeds a touch sequence for sensor 0 through detector and scheduler
func run(t *testing.T, policy Policy, touches []bool) []midi.Event {
	t.Helper()
	out := &recorder{}
	s := NewScheduler(out, policy, 127, DefaultStaleAfter)
	m := NewMapper(1, Chromatic, 48, VoicingMajor) // sensor 0 = C, in C major
	d := NewDetector(1)
	levels := []int{100}

	for i, touched := range touches {
		reading := 200
		if touched {
			reading = 50
		}
		now := t0.Add(time.Duration(i) * DefaultTick)
		if err := s.Expire(now); err != nil {
			t.Fatal(err)
		}
		if err := s.Dispatch(m.Context(), d.Step([]int{reading}, levels), now); err != nil {
			t.Fatal(err)
		}
	}
	return out.take()
}

func TestOnPressFiresOncePerHold(t *testing.T) {
	events := run(t, OnPress, []bool{false, true, true, true, true, false, false, true, true})
	if n := count(events, midi.NoteOn, 48); n != 2 {
		t.Fatalf("expected 2 note-ons for two presses, got %d: %+v", n, events)
	}
}

func TestOnReleaseFiresOncePerCycle(t *testing.T) {
	for _, hold := range []int{1, 3, 40} {
		touches := []bool{false}
		for i := 0; i < hold; i++ {
			touches = append(touches, true)
		}
		touches = append(touches, false, false, false)

		events := run(t, OnRelease, touches)
		if n := count(events, midi.NoteOn, 48); n != 1 {
			t.Fatalf("hold=%d: expected 1 note-on, got %d", hold, n)
		}
	}
}

func TestFireSendsOffThenOnAndStamps(t *testing.T) {
	out := &recorder{}
	s := NewScheduler(out, OnPress, 100, DefaultStaleAfter)
	ctx := NewMapper(4, Chromatic, 48, VoicingMajor).Context()

	if err := s.Dispatch(ctx, Edges{Pressed: []int{0, 4}}, t0); err != nil {
		t.Fatal(err)
	}
	events := out.take()
	if len(events) != 2 {
		t.Fatalf("expected off+on for sensor 0 only, got %+v", events)
	}
	if events[0].Type != midi.NoteOff || events[1].Type != midi.NoteOn || events[1].Velocity != 100 {
		t.Fatalf("unexpected order %+v", events)
	}
	if !s.LastPlayed(48).Equal(t0) {
		t.Fatalf("last played = %v", s.LastPlayed(48))
	}
	if got := s.Sounding(); !equalInts(got, []int{48}) {
		t.Fatalf("sounding = %v", got)
	}
}

func TestInactiveNotesStaySilent(t *testing.T) {
	out := &recorder{}
	s := NewScheduler(out, OnRelease, 127, DefaultStaleAfter)
	ctx := NewMapper(12, Chromatic, 48, VoicingMajor).Context() // C major: sensors 0, 4, 7

	released := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	if err := s.Dispatch(ctx, Edges{Released: released}, t0); err != nil {
		t.Fatal(err)
	}
	events := out.take()
	for _, e := range events {
		if !ctx.IsActive(int(e.Note)) {
			t.Fatalf("inactive note %d sounded", e.Note)
		}
	}
	if n := len(events); n != 6 {
		t.Fatalf("expected 3 notes x (off,on), got %d", n)
	}
}

func TestExpireUsesNoteNumber(t *testing.T) {
	out := &recorder{}
	s := NewScheduler(out, OnPress, 127, DefaultStaleAfter)
	m := NewMapper(24, Chromatic, 48, VoicingMajor)
	m.SelectBinding(Binding{Root: 34, Chord: "major"}) // sensor 0 -> note 34

	s.Dispatch(m.Context(), Edges{Pressed: []int{0}}, t0)
	out.take()

	if err := s.Expire(t0.Add(DefaultStaleAfter)); err != nil {
		t.Fatal(err)
	}
	if events := out.take(); len(events) != 0 {
		t.Fatalf("exactly at the threshold nothing expires, got %+v", events)
	}

	if err := s.Expire(t0.Add(DefaultStaleAfter + DefaultTick)); err != nil {
		t.Fatal(err)
	}
	events := out.take()
	if len(events) != 1 || events[0].Type != midi.NoteOff || events[0].Note != 34 {
		t.Fatalf("expected note-off for 34, got %+v", events)
	}

	s.Expire(t0.Add(10 * DefaultStaleAfter))
	if events := out.take(); len(events) != 0 {
		t.Fatalf("an expired note is released once, got %+v", events)
	}
}

// No note may stay on longer than the staleness threshold plus one tick.
func TestNoNoteOutlivesThreshold(t *testing.T) {
	const sensors = 12
	out := &recorder{}
	s := NewScheduler(out, OnPress, 127, 200*time.Millisecond)
	ctx := NewMapper(sensors, Chromatic, 60, VoicingMajor).Context()
	d := NewDetector(sensors)
	levels := make([]int, sensors)
	for i := range levels {
		levels[i] = 100
	}

	rng := rand.New(rand.NewSource(42))
	onSince := map[uint8]time.Time{}
	limit := 200*time.Millisecond + DefaultTick

	for tick := 0; tick < 3000; tick++ {
		now := t0.Add(time.Duration(tick) * DefaultTick)
		readings := make([]int, sensors)
		for i := range readings {
			readings[i] = 200
			if rng.Intn(100) < 3 {
				readings[i] = 50
			}
		}

		s.Expire(now)
		s.Dispatch(ctx, d.Step(readings, levels), now)
		for _, e := range out.take() {
			switch e.Type {
			case midi.NoteOn:
				onSince[e.Note] = now
			case midi.NoteOff:
				delete(onSince, e.Note)
			}
		}
		for note, since := range onSince {
			if now.Sub(since) > limit {
				t.Fatalf("note %d on for %s at tick %d", note, now.Sub(since), tick)
			}
		}
	}
}

func TestBackpressureDoesNotStamp(t *testing.T) {
	out := &recorder{full: true}
	s := NewScheduler(out, OnPress, 127, DefaultStaleAfter)
	ctx := NewMapper(1, Chromatic, 48, VoicingMajor).Context()

	if err := s.Dispatch(ctx, Edges{Pressed: []int{0}}, t0); err != nil {
		t.Fatalf("backpressure is not fatal: %v", err)
	}
	if !s.LastPlayed(48).IsZero() || len(s.Sounding()) != 0 {
		t.Fatal("dropped note must not be marked sounding")
	}
}

func TestTransportFailureIsFatal(t *testing.T) {
	boom := errors.New("port unplugged")
	out := &recorder{err: boom}
	s := NewScheduler(out, OnPress, 127, DefaultStaleAfter)
	ctx := NewMapper(1, Chromatic, 48, VoicingMajor).Context()

	if err := s.Dispatch(ctx, Edges{Pressed: []int{0}}, t0); !errors.Is(err, boom) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestReleaseAll(t *testing.T) {
	out := &recorder{}
	s := NewScheduler(out, OnPress, 127, DefaultStaleAfter)
	ctx := NewMapper(8, Chromatic, 48, VoicingMajor).Context()
	s.Dispatch(ctx, Edges{Pressed: []int{0, 4, 7}}, t0)
	out.take()

	if err := s.ReleaseAll(t0); err != nil {
		t.Fatal(err)
	}
	events := out.take()
	if len(events) != 3 || count(events, midi.NoteOff, 52) != 1 {
		t.Fatalf("expected 3 note-offs, got %+v", events)
	}
	if len(s.Sounding()) != 0 {
		t.Fatal("nothing should be sounding")
	}
}

func TestParsePolicy(t *testing.T) {
	tests := map[string]Policy{"on_press": OnPress, "on-release": OnRelease, "": OnRelease}
	for in, want := range tests {
		got, err := ParsePolicy(in)
		if err != nil || got != want {
			t.Errorf("ParsePolicy(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParsePolicy("on_hold"); err == nil {
		t.Error("expected error")
	}
}
