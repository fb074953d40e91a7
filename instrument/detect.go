package instrument

// TouchSet marks which sensors are touched, indexed by sensor
type TouchSet []bool

// Indices lists the touched sensors in ascending order
func (t TouchSet) Indices() []int {
	var out []int
	for i, on := range t {
		if on {
			out = append(out, i)
		}
	}
	return out
}

// Touched fills dst with readings[i] < levels[i]. A sensor without a level
// is never touched. dst is grown as needed and returned.
func Touched(readings, levels []int, dst TouchSet) TouchSet {
	if cap(dst) < len(readings) {
		dst = make(TouchSet, len(readings))
	}
	dst = dst[:len(readings)]
	for i, v := range readings {
		dst[i] = i < len(levels) && v < levels[i]
	}
	return dst
}

// Edges are the transitions across one tick, in ascending sensor order
type Edges struct {
	Pressed  []int // touched now, not before
	Released []int // touched before, not now
}

// Diff compares two consecutive touch sets. Sensors missing from one side
// count as untouched there.
func Diff(prev, cur TouchSet) Edges {
	var e Edges
	diffInto(prev, cur, &e)
	return e
}

func diffInto(prev, cur TouchSet, e *Edges) {
	e.Pressed = e.Pressed[:0]
	e.Released = e.Released[:0]
	n := max(len(prev), len(cur))
	for i := 0; i < n; i++ {
		was := i < len(prev) && prev[i]
		is := i < len(cur) && cur[i]
		switch {
		case is && !was:
			e.Pressed = append(e.Pressed, i)
		case was && !is:
			e.Released = append(e.Released, i)
		}
	}
}

// Detector keeps the previous and current touch sets and swaps them every
// step.
type Detector struct {
	prev, cur TouchSet
	edges     Edges
}

// NewDetector starts with every sensor untouched
func NewDetector(sensors int) *Detector {
	return &Detector{
		prev: make(TouchSet, sensors),
		cur:  make(TouchSet, sensors),
	}
}

// Step classifies readings and returns the edges relative to the previous
// step. The returned slices are reused by the next Step.
func (d *Detector) Step(readings, levels []int) Edges {
	d.prev, d.cur = d.cur, d.prev
	d.cur = Touched(readings, levels, d.cur)
	diffInto(d.prev, d.cur, &d.edges)
	return d.edges
}

// Current returns the touch set from the latest step
func (d *Detector) Current() TouchSet {
	return d.cur
}

// Previous returns the touch set from the step before
func (d *Detector) Previous() TouchSet {
	return d.prev
}

// Reset forgets both sets, as after recalibration
func (d *Detector) Reset() {
	clear(d.prev)
	clear(d.cur)
}
