package latency

import (
	"context"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"

	"go-harp/debug"
	"go-harp/midi"
)

// DefaultNote is the probe pitch (G#5)
const DefaultNote = 80

// Sample is one acknowledged probe
type Sample struct {
	Elapsed time.Duration
	Average time.Duration
	Count   int
}

// Probe plays a note, waits for the operator to say they heard it and
// records how long that took.
type Probe struct {
	out      midi.Output
	note     uint8
	velocity uint8
	history  *History
	now      func() time.Time
}

// NewProbe returns a probe on note averaging over window samples
func NewProbe(out midi.Output, note, velocity uint8, window int) *Probe {
	return &Probe{
		out:      out,
		note:     note & 0x7F,
		velocity: velocity,
		history:  NewHistory(window),
		now:      time.Now,
	}
}

// History exposes the recorded samples
func (p *Probe) History() *History {
	return p.history
}

// Run loops until ctx is done, ack is closed or the output fails. Each
// receive on ack ends one measurement.
func (p *Probe) Run(ctx context.Context, ack <-chan struct{}, report func(Sample)) error {
	defer p.out.NoteOff(p.note)

	for {
		start, err := p.play()
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ack:
			if !ok {
				return nil
			}
		}

		elapsed := p.now().Sub(start)
		p.history.Add(elapsed)
		s := Sample{Elapsed: elapsed, Average: p.history.Average(), Count: p.history.Len()}
		debug.Log("latency", "sample %d: %s avg %s", s.Count, s.Elapsed, s.Average)
		if report != nil {
			report(s)
		}
	}
}

func (p *Probe) play() (time.Time, error) {
	start := p.now()
	if err := p.out.NoteOff(p.note); err != nil {
		return time.Time{}, fault.Wrap(err, fmsg.With("probe note-off"))
	}
	if err := p.out.NoteOn(p.note, p.velocity); err != nil {
		return time.Time{}, fault.Wrap(err, fmsg.With("probe note-on"))
	}
	return start, nil
}
