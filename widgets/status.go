package widgets

import (
	"fmt"
	"strings"
)

const (
	gaugeHalf  = 10
	gaugeReach = 4
)

// Gauge draws a reading against its trigger level. The centre shows name
// (or a dot when empty) and the level marker sits left of centre while the
// reading is above the level and right of it once it drops below, at most
// four cells out.
func Gauge(value, level int, name string, marker rune) string {
	left := []rune(strings.Repeat(" ", gaugeHalf))
	right := []rune(strings.Repeat(" ", gaugeHalf))
	center := name
	if center == "" {
		center = "."
	}

	off := max(min(level-value, gaugeReach), -gaugeReach)
	switch {
	case off < 0:
		left[gaugeHalf+off] = marker
	case off > 0:
		right[off-1] = marker
	default:
		center = string(marker)
	}
	return string(left) + center + string(right)
}

// StatusLine is one sensor's row: gauge, then "value / level"
func StatusLine(value, level int, name string) string {
	return fmt.Sprintf("%s%d / %d", Gauge(value, level, name, '|'), value, level)
}
