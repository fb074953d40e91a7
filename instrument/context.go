package instrument

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go-harp/debug"
)

// Context is the musical state the tick loop reads. A published Context is
// never modified; writers publish a fresh copy.
type Context struct {
	Root      int
	Transpose int // accumulated root shifts, applied to chord bindings
	Chord     PitchSet
	ChordName string
	Notes     []int // sensor index -> MIDI note
}

// IsActive reports whether note's pitch class is in the active chord
func (c *Context) IsActive(note int) bool {
	return c.Chord.Has(note)
}

// Note returns the note mapped to sensor i, or -1 when i is out of range
func (c *Context) Note(i int) int {
	if i < 0 || i >= len(c.Notes) {
		return -1
	}
	return c.Notes[i]
}

func (c *Context) clone() *Context {
	out := *c
	out.Notes = append([]int(nil), c.Notes...)
	return &out
}

// Voicing decides how selecting a chord rewrites the first sensors.
type Voicing int

const (
	// VoicingMajor always lays root, +4, +7, +12 on sensors 0-3, whatever the
	// chord template is.
	VoicingMajor Voicing = iota
	// VoicingChord lays the template's own tones then the octave.
	VoicingChord
	// VoicingNone leaves the sensor map alone.
	VoicingNone
)

// ParseVoicing accepts "major", "chord" or "none"
func ParseVoicing(s string) (Voicing, error) {
	switch strings.ToLower(s) {
	case "", "major":
		return VoicingMajor, nil
	case "chord":
		return VoicingChord, nil
	case "none":
		return VoicingNone, nil
	}
	return 0, fmt.Errorf("unknown voicing %q (have major, chord, none)", s)
}

func (v Voicing) String() string {
	switch v {
	case VoicingChord:
		return "chord"
	case VoicingNone:
		return "none"
	}
	return "major"
}

// notes returns the notes written over the first sensors
func (v Voicing) notes(root int, template Scale) []int {
	switch v {
	case VoicingMajor:
		return []int{root, root + 4, root + 7, root + SemitonesPerOctave}
	case VoicingChord:
		out := make([]int, 0, len(template)+1)
		for _, x := range template {
			out = append(out, root+x)
		}
		return append(out, root+SemitonesPerOctave)
	}
	return nil
}

// Mapper owns the musical context. Writers are serialised; the tick loop
// reads with a single atomic load and never sees a half-applied change.
type Mapper struct {
	mu      sync.Mutex
	cur     atomic.Pointer[Context]
	sensors int
	voicing Voicing
}

// NewMapper lays scale over sensors starting at root, with the major chord
// on root active.
func NewMapper(sensors int, scale Scale, root int, voicing Voicing) *Mapper {
	m := &Mapper{sensors: sensors, voicing: voicing}
	ctx := &Context{
		Root:      root,
		Chord:     ChordOnRoot(Major, root),
		ChordName: ChordLabel(root, "major"),
		Notes:     diatonic(sensors, scale, root),
	}
	m.cur.Store(ctx)
	return m
}

// Context returns the current snapshot. Callers must not modify it.
func (m *Mapper) Context() *Context {
	return m.cur.Load()
}

// Voicing returns the voicing policy
func (m *Mapper) Voicing() Voicing {
	return m.voicing
}

// RecomputeDiatonic remaps every sensor to scale degrees above root
func (m *Mapper) RecomputeDiatonic(scale Scale, root int) {
	m.update(func(c *Context) {
		c.Root = root
		c.Notes = diatonic(m.sensors, scale, root)
	})
	debug.Log("mapper", "diatonic root=%d scale=%v", root, scale)
}

// SelectChord activates template on root and voices the first sensors
// according to the voicing policy.
func (m *Mapper) SelectChord(root int, template Scale, name string) {
	m.update(func(c *Context) {
		c.Root = root
		c.Chord = ChordOnRoot(template, root)
		c.ChordName = name
		for i, n := range m.voicing.notes(root, template) {
			if i < len(c.Notes) {
				c.Notes[i] = n
			}
		}
	})
	debug.Log("mapper", "chord %s root=%d", name, root)
}

// SelectBinding applies a chord binding, shifted by the accumulated
// transpose.
func (m *Mapper) SelectBinding(b Binding) error {
	template, err := LookupChord(b.Chord)
	if err != nil {
		return err
	}
	root := b.Root + m.Context().Transpose
	m.SelectChord(root, template, ChordLabel(root, b.Chord))
	return nil
}

// ShiftRoot moves the root by delta semitones. The sensor map and the active
// chord are left as they are; the shift applies to the next chord selected.
func (m *Mapper) ShiftRoot(delta int) {
	m.update(func(c *Context) {
		c.Root += delta
		c.Transpose += delta
	})
	debug.Log("mapper", "root shift %+d -> %d", delta, m.Context().Root)
}

func (m *Mapper) update(fn func(c *Context)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.cur.Load().clone()
	fn(next)
	m.cur.Store(next)
}

func diatonic(sensors int, scale Scale, root int) []int {
	notes := make([]int, sensors)
	for i := range notes {
		notes[i] = DegreeInScale(i, scale, root)
	}
	return notes
}
