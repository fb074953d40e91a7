package latency

import "time"

// DefaultWindow is how many trailing samples the average covers
const DefaultWindow = 15

// History keeps every sample and averages the most recent window of them.
type History struct {
	window  int
	samples []time.Duration
}

// NewHistory returns an empty history averaging over window samples
func NewHistory(window int) *History {
	if window <= 0 {
		window = DefaultWindow
	}
	return &History{window: window}
}

func (h *History) Add(d time.Duration) {
	h.samples = append(h.samples, d)
}

func (h *History) Len() int {
	return len(h.samples)
}

// Last returns the newest sample, or 0 when empty
func (h *History) Last() time.Duration {
	if len(h.samples) == 0 {
		return 0
	}
	return h.samples[len(h.samples)-1]
}

// Average is the mean of the last window samples, or of all of them while
// fewer exist.
func (h *History) Average() time.Duration {
	n := min(len(h.samples), h.window)
	if n == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range h.samples[len(h.samples)-n:] {
		sum += d
	}
	return sum / time.Duration(n)
}
