package sensor

import (
	"bufio"
	"errors"
	"io"
)

const (
	SOF0 = 0xAA
	SOF1 = 0x55

	CmdReadFiltered byte = 0x20
	CmdReadTouched  byte = 0x21
	CmdBusError     byte = 0x7F
)

var (
	ErrChecksum   = errors.New("sensor: frame checksum mismatch")
	ErrShortRead  = errors.New("sensor: short read")
	ErrTimeout    = errors.New("sensor: bridge read timeout")
	ErrBadReply   = errors.New("sensor: unexpected bridge reply")
	ErrBusFailure = errors.New("sensor: chip bus error")
)

// Frame is one bridge message in either direction.
type Frame struct {
	Cmd     byte
	Payload []byte
}

// Encode builds the on-wire representation:
//
//	[SOF0][SOF1][LEN][CMD][payload...][CKS]
//
// LEN counts CMD plus payload, CKS is the XOR of LEN, CMD and payload.
func (f Frame) Encode() []byte {
	length := byte(len(f.Payload) + 1)
	cks := length ^ f.Cmd
	for _, b := range f.Payload {
		cks ^= b
	}

	out := make([]byte, 0, len(f.Payload)+5)
	out = append(out, SOF0, SOF1, length, f.Cmd)
	out = append(out, f.Payload...)
	return append(out, cks)
}

// ReadFrame scans r for the next start-of-frame marker and decodes the frame
// after it. Garbage before the marker is skipped.
func ReadFrame(r *bufio.Reader) (Frame, error) {
	prev := byte(0)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return Frame{}, err
		}
		if prev == SOF0 && b == SOF1 {
			break
		}
		prev = b
	}

	length, err := r.ReadByte()
	if err != nil {
		return Frame{}, err
	}
	if length == 0 {
		return Frame{}, ErrShortRead
	}

	body := make([]byte, int(length)+1) // CMD + payload + CKS
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, ErrShortRead
		}
		return Frame{}, err
	}

	cks := length
	for _, b := range body[:length] {
		cks ^= b
	}
	if cks != body[length] {
		return Frame{}, ErrChecksum
	}

	return Frame{Cmd: body[0], Payload: body[1:length]}, nil
}
