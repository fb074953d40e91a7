package midi

import (
	"errors"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"go-harp/debug"
	"go-harp/errs"
)

var (
	ErrBackpressure = errors.New("midi: output queue full")
	ErrClosed       = errors.New("midi: output closed")
)

// DefaultBuffer is the sender queue depth
const DefaultBuffer = 256

// Controller numbers used by Panic
const (
	ccAllSoundOff = 120
	ccAllNotesOff = 123
)

// Output is the MIDI boundary the instrument dispatches through.
type Output interface {
	NoteOn(note, velocity uint8) error
	NoteOff(note uint8) error
	ProgramChange(program uint8) error
	// Panic silences every note on every channel
	Panic() error
}

// PortOutput queues messages for a single sender goroutine so callers never
// block on the port. The first send failure sticks and is returned by every
// later call.
type PortOutput struct {
	name    string
	channel uint8
	send    func(gomidi.Message) error
	port    drivers.Out

	mu     sync.Mutex
	closed bool
	queue  chan gomidi.Message
	done   chan struct{}

	errMu sync.Mutex
	err   error
}

// NewOutput starts a sender around an arbitrary send function
func NewOutput(name string, send func(gomidi.Message) error, channel uint8, buffer int) *PortOutput {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	o := &PortOutput{
		name:    name,
		channel: channel & 0x0F,
		send:    send,
		queue:   make(chan gomidi.Message, buffer),
		done:    make(chan struct{}),
	}
	go o.loop()
	return o
}

// OpenOutput opens the output port whose name contains portName. An empty
// name creates a virtual port called virtualName instead.
func OpenOutput(portName, virtualName string, channel uint8, buffer int) (*PortOutput, error) {
	var (
		port drivers.Out
		err  error
	)
	if portName == "" {
		port, err = openVirtual(virtualName)
	} else {
		port, err = gomidi.FindOutPort(portName)
	}
	if err != nil {
		return nil, fault.Wrap(err,
			fmsg.WithDesc("find output port", "No MIDI output matching \""+portName+"\""),
			ftag.With(errs.Transport),
		)
	}

	send, err := gomidi.SendTo(port)
	if err != nil {
		return nil, fault.Wrap(err,
			fmsg.WithDesc("open output", "Could not open MIDI output "+port.String()),
			ftag.With(errs.Transport),
		)
	}
	debug.Log("midi", "output open port=%q channel=%d", port.String(), channel)

	o := NewOutput(port.String(), send, channel, buffer)
	o.port = port
	return o, nil
}

// Name returns the port name
func (o *PortOutput) Name() string {
	return o.name
}

func (o *PortOutput) NoteOn(note, velocity uint8) error {
	return o.enqueue(gomidi.NoteOn(o.channel, note&0x7F, velocity&0x7F), false)
}

func (o *PortOutput) NoteOff(note uint8) error {
	return o.enqueue(gomidi.NoteOff(o.channel, note&0x7F), false)
}

func (o *PortOutput) ProgramChange(program uint8) error {
	return o.enqueue(gomidi.ProgramChange(o.channel, program&0x7F), false)
}

// Panic waits for queue space instead of failing, it runs outside the tick
// loop.
func (o *PortOutput) Panic() error {
	for ch := uint8(0); ch < 16; ch++ {
		if err := o.enqueue(gomidi.ControlChange(ch, ccAllSoundOff, 0), true); err != nil {
			return err
		}
		if err := o.enqueue(gomidi.ControlChange(ch, ccAllNotesOff, 0), true); err != nil {
			return err
		}
	}
	return nil
}

// Err returns the sticky send error, if any
func (o *PortOutput) Err() error {
	o.errMu.Lock()
	defer o.errMu.Unlock()
	return o.err
}

// Close drains queued messages, then closes the port
func (o *PortOutput) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	close(o.queue)
	o.mu.Unlock()

	<-o.done
	if o.port != nil {
		if err := o.port.Close(); err != nil {
			return fault.Wrap(err, fmsg.With("close output"), ftag.With(errs.Transport))
		}
	}
	return o.Err()
}

func (o *PortOutput) enqueue(msg gomidi.Message, wait bool) error {
	if err := o.Err(); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	if wait {
		o.queue <- msg
		return nil
	}
	select {
	case o.queue <- msg:
		return nil
	default:
		return ErrBackpressure
	}
}

func (o *PortOutput) loop() {
	defer close(o.done)
	for msg := range o.queue {
		if o.Err() != nil {
			continue // drain
		}
		if err := o.send(msg); err != nil {
			debug.Log("midi", "send failed msg=%s err=%v", msg.String(), err)
			o.errMu.Lock()
			o.err = fault.Wrap(err,
				fmsg.WithDesc("send "+msg.String(), "MIDI output failed"),
				ftag.With(errs.Transport),
			)
			o.errMu.Unlock()
		}
	}
}
