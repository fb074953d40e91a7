package midi

import (
	"errors"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

// ErrPortScanTimeout is returned when the driver hangs while listing ports
var ErrPortScanTimeout = errors.New("midi: port scan timed out")

const scanTimeout = 3 * time.Second

// ListOutputs returns output port names. The scan runs with a timeout
// (CoreMIDI can hang).
func ListOutputs() ([]string, error) {
	ch := make(chan []string, 1)
	go func() {
		var names []string
		for _, p := range gomidi.GetOutPorts() {
			names = append(names, p.String())
		}
		ch <- names
	}()

	select {
	case names := <-ch:
		return names, nil
	case <-time.After(scanTimeout):
		return nil, ErrPortScanTimeout
	}
}

// CloseDriver releases the MIDI driver; call once on shutdown
func CloseDriver() {
	gomidi.CloseDriver()
}

func openVirtual(name string) (drivers.Out, error) {
	drv, ok := drivers.Get().(*rtmididrv.Driver)
	if !ok {
		return nil, errors.New("midi: virtual ports need the rtmidi driver")
	}
	return drv.OpenVirtualOut(name)
}
