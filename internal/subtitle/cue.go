package subtitle

import (
	"sort"
	"strings"
)

// Cue is a single subtitle entry. Timing is carried through untouched.
type Cue struct {
	ID     int    `json:"id"`
	Timing string `json:"timing"`
	Text   string `json:"text"`
}

// WithText returns a copy of the cue with its text replaced.
func (c Cue) WithText(text string) Cue {
	c.Text = text
	return c
}

// FlatText joins the cue's lines with single spaces and collapses whitespace.
func (c Cue) FlatText() string {
	return Flatten(c.Text)
}

// Flatten turns multi-line subtitle text into a single normalized line.
func Flatten(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// SortByID returns a copy of cues ordered by ascending id.
func SortByID(cues []Cue) []Cue {
	out := make([]Cue, len(cues))
	copy(out, cues)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// InRange reports whether the cue id falls in [from, to].
func (c Cue) InRange(from, to int) bool {
	return c.ID >= from && c.ID <= to
}
