package midi

// ControllerType identifies the kind of controller
type ControllerType int

const (
	ControllerUnknown ControllerType = iota
	ControllerLaunchpad
)

// PadEvent is sent when a pad/button is pressed on a grid controller.
// Row 8 is the top control row (Launchpad X arrows are cols 0-3).
type PadEvent struct {
	Row, Col int
	Velocity uint8
}

// LEDUpdate sets one pad colour
type LEDUpdate struct {
	Row, Col int
	Color    [3]uint8 // RGB, mapped to the controller's palette
	Channel  uint8    // ChannelStatic, ChannelFlash, ChannelPulse
}

// Controller is a grid controller used as a second operator surface next to
// the computer keyboard.
type Controller interface {
	ID() string
	Type() ControllerType

	// PadEvents is closed when the controller closes
	PadEvents() <-chan PadEvent

	SetLEDBatch(updates []LEDUpdate) error

	Close() error
}

// Channel modes for LEDUpdate.Channel
const (
	ChannelStatic uint8 = 0 // solid color
	ChannelFlash  uint8 = 1 // flashing A/B alternating
	ChannelPulse  uint8 = 2 // pulsing (fades)
)
