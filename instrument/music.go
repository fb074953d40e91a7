// Package instrument is the real-time core: calibration, touch edge
// detection, sensor-to-note mapping and the note lifecycle.
package instrument

import (
	"fmt"
	"sort"
	"strings"

	"go-harp/midi"
)

// SemitonesPerOctave is also the pitch-class modulus
const SemitonesPerOctave = 12

// Scale is a list of semitone offsets from a root, ascending within an octave
type Scale []int

var (
	Chromatic  = Scale{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	Heptatonic = Scale{0, 2, 4, 5, 7, 9, 11}
	Pentatonic = Scale{0, 2, 4, 7, 9}

	Major     = Scale{0, 4, 7}
	MajorAdd2 = Scale{0, 2, 4, 7}
	Sus4      = Scale{0, 5, 7}
	Minor     = Scale{0, 3, 7}
)

// Scales are the mappings usable for the startup sensor layout
var Scales = map[string]Scale{
	"chromatic":  Chromatic,
	"heptatonic": Heptatonic,
	"pentatonic": Pentatonic,
}

// Chords are the templates chord bindings may name
var Chords = map[string]Scale{
	"major":      Major,
	"major_add2": MajorAdd2,
	"sus4":       Sus4,
	"minor":      Minor,
}

var chordSuffix = map[string]string{
	"major":      "",
	"major_add2": "add2",
	"sus4":       "sus4",
	"minor":      "m",
}

// LookupScale finds a scale by name
func LookupScale(name string) (Scale, error) {
	s, ok := Scales[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown scale %q (have %s)", name, names(Scales))
	}
	return s, nil
}

// LookupChord finds a chord template by name
func LookupChord(name string) (Scale, error) {
	c, ok := Chords[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown chord %q (have %s)", name, names(Chords))
	}
	return c, nil
}

func names(m map[string]Scale) string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return strings.Join(out, ", ")
}

// DegreeInScale returns the note for scale degree i counted up from root.
// Degrees past the scale length wrap into the next octave.
func DegreeInScale(i int, scale Scale, root int) int {
	n := len(scale)
	octaves := i / n
	return scale[i%n] + SemitonesPerOctave*octaves + root
}

// PitchSet is a set of pitch classes, bit p set = pitch class p present
type PitchSet uint16

// ChordOnRoot moves a chord template onto root and reduces it to pitch
// classes.
func ChordOnRoot(template Scale, root int) PitchSet {
	var p PitchSet
	for _, x := range template {
		p |= 1 << uint(pitchClass(x+root))
	}
	return p
}

// Has reports whether pitch class pc is in the set
func (p PitchSet) Has(pc int) bool {
	return p&(1<<uint(pitchClass(pc))) != 0
}

// Classes lists the members in ascending order
func (p PitchSet) Classes() []int {
	var out []int
	for pc := 0; pc < SemitonesPerOctave; pc++ {
		if p.Has(pc) {
			out = append(out, pc)
		}
	}
	return out
}

func (p PitchSet) String() string {
	parts := make([]string, 0, SemitonesPerOctave)
	for _, pc := range p.Classes() {
		parts = append(parts, midi.PitchName(pc))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

func pitchClass(n int) int {
	return ((n % SemitonesPerOctave) + SemitonesPerOctave) % SemitonesPerOctave
}

// Binding ties an operator key to a chord. Root is an absolute note number.
type Binding struct {
	Key   string `json:"key"`
	Root  int    `json:"root"`
	Chord string `json:"chord"`
}

// DefaultBindings is the home-row chord table
var DefaultBindings = []Binding{
	{Key: "a", Root: 34, Chord: "major"},      // Bb
	{Key: "o", Root: 29, Chord: "major"},      // F
	{Key: "e", Root: 36, Chord: "major_add2"}, // C add 2
	{Key: "u", Root: 31, Chord: "major"},      // G
	{Key: "i", Root: 31, Chord: "sus4"},       // G sus4
	{Key: ";", Root: 26, Chord: "minor"},      // D
	{Key: "q", Root: 33, Chord: "minor"},      // A
	{Key: "j", Root: 28, Chord: "minor"},      // E
	{Key: "k", Root: 35, Chord: "minor"},      // B
}

// Label names the chord the binding selects, e.g. "Bb" or "Am"
func (b Binding) Label() string {
	return ChordLabel(b.Root, b.Chord)
}

// ChordLabel builds a chord symbol from a root note and template name
func ChordLabel(root int, chord string) string {
	return midi.PitchName(root) + chordSuffix[strings.ToLower(chord)]
}
