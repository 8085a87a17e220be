package translate

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Correlation format v1.
//
// Request lines and response lines are "<id>| <text>", one per cue. The
// response block must be wrapped in BeginMarker and EndMarker; anything
// outside the markers is ignored.
const (
	FormatVersion = "v1"
	BeginMarker   = "<TRANSLATION_BEGIN>"
	EndMarker     = "<TRANSLATION_END>"
	lineDelimiter = "|"
)

// ErrMalformedResponse means the response had no usable marker block.
var ErrMalformedResponse = errors.New("malformed response")

var (
	blockRe = regexp.MustCompile(`(?s)` + regexp.QuoteMeta(BeginMarker) + `\s*(.*?)\s*` + regexp.QuoteMeta(EndMarker))
	lineRe  = regexp.MustCompile(`^(\d+)\s*\|\s*(.*)$`)
)

// EncodeSegments renders segments as request lines.
func EncodeSegments(segments []Segment) string {
	var sb strings.Builder
	for i, s := range segments {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%d%s %s", s.ID, lineDelimiter, s.Text)
	}
	return sb.String()
}

// EncodeResponse renders a v1 response block. Used by the echo oracle and tests.
func EncodeResponse(segments []Segment) string {
	return BeginMarker + "\n" + EncodeSegments(segments) + "\n" + EndMarker
}

// DecodeResponse extracts the id to text mapping from a v1 response. Lines
// that do not match the grammar are returned as warnings. Empty translations
// are treated as missing.
func DecodeResponse(raw string) (map[int]string, []string, error) {
	m := blockRe.FindStringSubmatch(raw)
	if m == nil {
		return nil, nil, fmt.Errorf("%w: %s/%s markers not found", ErrMalformedResponse, BeginMarker, EndMarker)
	}

	translations := make(map[int]string)
	var warnings []string

	for _, line := range strings.Split(m[1], "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		lm := lineRe.FindStringSubmatch(line)
		if lm == nil {
			warnings = append(warnings, fmt.Sprintf("line does not match 'id| text': %q", line))
			continue
		}

		id, err := strconv.Atoi(lm[1])
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("invalid id in line: %q", line))
			continue
		}

		text := strings.TrimSpace(lm[2])
		if text == "" {
			continue
		}
		translations[id] = text
	}

	return translations, warnings, nil
}
