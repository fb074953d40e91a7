package sensor

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"go.bug.st/serial"

	"go-harp/debug"
	"go-harp/errs"
)

// DefaultBaud matches the bridge firmware
const DefaultBaud = 115200

const readTimeout = 100 * time.Millisecond

// Bus talks to the microcontroller that owns the chips' I2C bus. One request
// is in flight at a time.
type Bus struct {
	mu     sync.Mutex
	w      io.Writer
	r      *bufio.Reader
	closer io.Closer
}

// NewBus wraps an already open stream. A Read returning (0, nil) is treated
// as a timeout.
func NewBus(rw io.ReadWriter) *Bus {
	b := &Bus{
		w: rw,
		r: bufio.NewReader(timeoutReader{rw}),
	}
	if c, ok := rw.(io.Closer); ok {
		b.closer = c
	}
	return b
}

// OpenSerial opens the bridge on the named serial device.
func OpenSerial(name string, baud int) (*Bus, error) {
	if baud <= 0 {
		baud = DefaultBaud
	}
	port, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fault.Wrap(err,
			fmsg.WithDesc(fmt.Sprintf("open serial %s", name), fmt.Sprintf("Could not open sensor bridge on %s", name)),
			ftag.With(errs.Transport),
		)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fault.Wrap(err, fmsg.With("set serial read timeout"), ftag.With(errs.Transport))
	}
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, fault.Wrap(err, fmsg.With("reset serial input"), ftag.With(errs.Transport))
	}
	debug.Log("serial", "opened %s baud=%d", name, baud)
	return NewBus(port), nil
}

// ListSerialPorts returns the serial devices the OS reports
func ListSerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("list serial ports"))
	}
	return ports, nil
}

// Chip returns a chip handle for the given bus address
func (b *Bus) Chip(addr byte, pins int) *BusChip {
	if pins <= 0 {
		pins = PinsPerChip
	}
	return &BusChip{bus: b, addr: addr, pins: pins}
}

// Close closes the underlying stream if it can be closed
func (b *Bus) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}

// transact sends one request and waits for the matching reply.
func (b *Bus) transact(cmd, addr byte) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	req := Frame{Cmd: cmd, Payload: []byte{addr}}
	if _, err := b.w.Write(req.Encode()); err != nil {
		return nil, err
	}

	reply, err := ReadFrame(b.r)
	if err != nil {
		return nil, err
	}
	if len(reply.Payload) < 1 || reply.Payload[0] != addr {
		return nil, fmt.Errorf("%w: addr mismatch", ErrBadReply)
	}
	switch reply.Cmd {
	case cmd:
		return reply.Payload[1:], nil
	case CmdBusError:
		code := byte(0)
		if len(reply.Payload) > 1 {
			code = reply.Payload[1]
		}
		return nil, fmt.Errorf("%w: addr 0x%02X code %d", ErrBusFailure, addr, code)
	default:
		return nil, fmt.Errorf("%w: cmd 0x%02X", ErrBadReply, reply.Cmd)
	}
}

// BusChip is a chip reached through the bridge.
type BusChip struct {
	bus  *Bus
	addr byte
	pins int
}

func (c *BusChip) Pins() int {
	return c.pins
}

// Addr returns the chip's bus address
func (c *BusChip) Addr() byte {
	return c.addr
}

func (c *BusChip) FilteredData() ([]int, error) {
	data, err := c.bus.transact(CmdReadFiltered, c.addr)
	if err != nil {
		return nil, err
	}
	if len(data) != 2*c.pins {
		return nil, fmt.Errorf("%w: %d bytes of filtered data", ErrShortRead, len(data))
	}
	out := make([]int, c.pins)
	for p := range out {
		out[p] = int(binary.LittleEndian.Uint16(data[2*p:]))
	}
	return out, nil
}

func (c *BusChip) TouchedPins() ([]bool, error) {
	data, err := c.bus.transact(CmdReadTouched, c.addr)
	if err != nil {
		return nil, err
	}
	if len(data) != 2 {
		return nil, fmt.Errorf("%w: %d bytes of touch mask", ErrShortRead, len(data))
	}
	mask := binary.LittleEndian.Uint16(data)
	out := make([]bool, c.pins)
	for p := range out {
		out[p] = mask&(1<<uint(p)) != 0
	}
	return out, nil
}

// timeoutReader turns the serial driver's (0, nil) timeout into an error so
// reads never spin.
type timeoutReader struct {
	r io.Reader
}

func (t timeoutReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n == 0 && err == nil {
		return 0, ErrTimeout
	}
	return n, err
}
