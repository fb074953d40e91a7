package latency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go-harp/midi"
)

type recorder struct {
	mu     sync.Mutex
	events []midi.Event
	err    error
}

func (r *recorder) add(e midi.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
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

func (r *recorder) ProgramChange(program uint8) error { return nil }
func (r *recorder) Panic() error                      { return nil }

func TestAverageOfFewerThanWindow(t *testing.T) {
	h := NewHistory(15)
	for _, ms := range []int{290, 300, 280} {
		h.Add(time.Duration(ms) * time.Millisecond)
	}
	if got := h.Average(); got != 290*time.Millisecond {
		t.Fatalf("average = %s", got)
	}
}

func TestAverageIsTrailing(t *testing.T) {
	h := NewHistory(2)
	for _, ms := range []int{1000, 100, 300} {
		h.Add(time.Duration(ms) * time.Millisecond)
	}
	if got := h.Average(); got != 200*time.Millisecond {
		t.Fatalf("average = %s", got)
	}
	if h.Len() != 3 || h.Last() != 300*time.Millisecond {
		t.Fatalf("len=%d last=%s", h.Len(), h.Last())
	}
	if NewHistory(0).Average() != 0 {
		t.Fatal("empty history should average to zero")
	}
}

func TestProbeMeasuresAcknowledgement(t *testing.T) {
	out := &recorder{}
	p := NewProbe(out, 80, 127, 15)

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	p.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return clock
	}
	advance := func(d time.Duration) {
		mu.Lock()
		clock = clock.Add(d)
		mu.Unlock()
	}

	ack := make(chan struct{})
	samples := make(chan Sample, 3)
	done := make(chan error, 1)
	go func() {
		done <- p.Run(context.Background(), ack, func(s Sample) { samples <- s })
	}()

	var last Sample
	for _, ms := range []int{290, 300, 280} {
		// let the probe note start before the clock moves
		waitFor(t, func() bool { return countOn(out) > last.Count })
		advance(time.Duration(ms) * time.Millisecond)
		ack <- struct{}{}
		last = <-samples
	}
	if last.Count != 3 || last.Average != 290*time.Millisecond || last.Elapsed != 280*time.Millisecond {
		t.Fatalf("last sample = %+v", last)
	}

	close(ack)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	out.mu.Lock()
	defer out.mu.Unlock()
	if e := out.events[0]; e.Type != midi.NoteOff || e.Note != 80 {
		t.Fatalf("first event %+v, want note-off 80", e)
	}
	if e := out.events[1]; e.Type != midi.NoteOn || e.Note != 80 || e.Velocity != 127 {
		t.Fatalf("second event %+v, want note-on 80", e)
	}
}

func TestProbePropagatesTransportFailure(t *testing.T) {
	boom := errors.New("port gone")
	p := NewProbe(&recorder{err: boom}, 80, 127, 15)
	if err := p.Run(context.Background(), make(chan struct{}), nil); !errors.Is(err, boom) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestProbeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewProbe(&recorder{}, 80, 127, 15)
	if err := p.Run(ctx, make(chan struct{}), nil); err != nil {
		t.Fatal(err)
	}
	if p.History().Len() != 0 {
		t.Fatal("no sample without acknowledgement")
	}
}

func countOn(r *recorder) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == midi.NoteOn {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(time.Millisecond)
	}
}
