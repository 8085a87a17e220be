// Package reflow wraps subtitle text into display lines.
//
// Text is fitted into the first tier that holds it: two lines of 42
// characters, then two lines of 47, then as many 47-character lines as
// needed. The last tier always succeeds, so no content is ever dropped.
package reflow

import (
	"strings"
)

// Tier is one wrapping attempt. MaxLines of zero means unlimited.
type Tier struct {
	MaxChars int
	MaxLines int
}

// Tiers are tried in order.
var Tiers = []Tier{
	{MaxChars: 42, MaxLines: 2},
	{MaxChars: 47, MaxLines: 2},
	{MaxChars: 47, MaxLines: 0},
}

const breakPunctuation = ".,;?!"

// Reflow normalizes whitespace in text and wraps it with the first tier that fits.
func Reflow(text string) string {
	out, _ := ReflowTier(text)
	return out
}

// ReflowTier is Reflow that also reports the tier that produced the result.
func ReflowTier(text string) (string, Tier) {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return "", Tier{}
	}

	for _, tier := range Tiers {
		if lines, ok := Wrap(text, tier.MaxChars, tier.MaxLines); ok {
			return strings.Join(lines, "\n"), tier
		}
	}

	// Unreachable while the last tier is unbounded
	last := Tiers[len(Tiers)-1]
	lines, _ := Wrap(text, last.MaxChars, 0)
	return strings.Join(lines, "\n"), last
}

// Wrap splits normalized text into lines of at most maxChars runes. It
// reports false when maxLines > 0 and the text needs more lines than that.
// A run without spaces or punctuation longer than maxChars is cut hard.
func Wrap(text string, maxChars, maxLines int) ([]string, bool) {
	if maxChars <= 0 {
		return []string{text}, true
	}

	var lines []string
	rest := []rune(strings.TrimSpace(text))

	for len(rest) > 0 {
		if len(rest) <= maxChars {
			lines = append(lines, string(rest))
			break
		}
		if maxLines > 0 && len(lines) == maxLines-1 {
			// The last allowed line cannot hold the remainder
			return lines, false
		}

		cut := cutPoint(rest, maxChars)
		lines = append(lines, strings.TrimSpace(string(rest[:cut])))
		rest = []rune(strings.TrimSpace(string(rest[cut:])))
	}

	return lines, true
}

// cutPoint picks where to end the next line of rest, len(rest) > maxChars.
func cutPoint(rest []rune, maxChars int) int {
	// A mark at index maxChars would make a line of maxChars+1 runes
	for i := maxChars - 1; i >= 0; i-- {
		if strings.ContainsRune(breakPunctuation, rest[i]) {
			return i + 1
		}
	}
	for i := maxChars; i > 0; i-- {
		if rest[i] == ' ' {
			return i
		}
	}
	return maxChars
}
