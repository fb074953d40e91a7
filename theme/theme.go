package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	// Pad row
	Touched rune // ■ finger on the electrode
	Idle    rune // □ untouched

	// Status line gauge
	GaugeLevel  rune // | the trigger level
	GaugeValue  rune // ● where the reading sits
	GaugeEmpty  rune // · filler
	GaugeMarker rune // * note is in the chord
}

func New(palette *Palette) *Theme {
	if palette == nil {
		palette = Default()
	}
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			Touched: '■',
			Idle:    '□',

			GaugeLevel:  '|',
			GaugeValue:  '●',
			GaugeEmpty:  '·',
			GaugeMarker: '*',
		},
	}
}

// Color roles mapped to palette positions (0-1)
const (
	RoleBG      = 0.0
	RoleSurface = 0.1 // idle pads
	RoleMuted   = 0.2 // notes outside the chord
	RoleFG      = 0.4
	RoleAccent  = 0.5 // headers
	RoleActive  = 0.7 // notes in the chord
	RoleWarning = 0.8
	RoleTouched = 1.0
)

func (t *Theme) FG() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleFG))
}

func (t *Theme) Accent() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleAccent))
}

func (t *Theme) Muted() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleMuted))
}

func (t *Theme) Active() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleActive))
}

func (t *Theme) Warning() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleWarning))
}

func (t *Theme) Touched() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleTouched))
}

// SensorRGB is the pad colour for one sensor (for Launchpad and the pad row)
func (t *Theme) SensorRGB(touched, active bool) RGB {
	switch {
	case touched:
		return t.Palette.Lookup(RoleTouched)
	case active:
		return t.Palette.Lookup(RoleActive)
	default:
		return t.Palette.Lookup(RoleSurface)
	}
}

// RGB returns raw RGB for any normalized value
func (t *Theme) RGB(norm float64) RGB {
	return t.Palette.Lookup(norm)
}

func rgbToLipgloss(c RGB) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
}
