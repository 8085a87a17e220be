package subtitle

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrNotFound is returned when a subtitle file does not exist.
var ErrNotFound = errors.New("subtitle file not found")

// MalformedBlockError describes a cue block that was skipped while parsing.
type MalformedBlockError struct {
	Block  string
	Reason string
}

func (e *MalformedBlockError) Error() string {
	return fmt.Sprintf("malformed block: %s", e.Reason)
}

// ParseReport lists the blocks skipped during a parse.
type ParseReport struct {
	Skipped []*MalformedBlockError
}

// ParseSRT parses SRT content into cues. Malformed blocks and duplicate ids
// are skipped and recorded in the report; they never abort the parse.
func ParseSRT(content string) ([]Cue, ParseReport) {
	var report ParseReport

	content = strings.TrimPrefix(content, "\ufeff")
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, report
	}

	seen := make(map[int]bool)
	var cues []Cue

	for _, block := range splitBlocks(content) {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) < 3 {
			report.Skipped = append(report.Skipped, &MalformedBlockError{
				Block:  block,
				Reason: fmt.Sprintf("block has %d lines, need index, timing and text", len(lines)),
			})
			continue
		}

		id, err := strconv.Atoi(strings.TrimSpace(lines[0]))
		if err != nil || id < 0 {
			report.Skipped = append(report.Skipped, &MalformedBlockError{
				Block:  block,
				Reason: fmt.Sprintf("invalid index %q", lines[0]),
			})
			continue
		}

		timing := strings.TrimSpace(lines[1])
		if !strings.Contains(timing, "-->") {
			report.Skipped = append(report.Skipped, &MalformedBlockError{
				Block:  block,
				Reason: fmt.Sprintf("invalid timing in block %d", id),
			})
			continue
		}

		if seen[id] {
			report.Skipped = append(report.Skipped, &MalformedBlockError{
				Block:  block,
				Reason: fmt.Sprintf("duplicate index %d", id),
			})
			continue
		}
		seen[id] = true

		cues = append(cues, Cue{
			ID:     id,
			Timing: timing,
			Text:   strings.Join(lines[2:], "\n"),
		})
	}

	return cues, report
}

// splitBlocks splits on blank lines, tolerating lines made only of spaces.
func splitBlocks(content string) []string {
	var blocks []string
	var cur []string
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			if len(cur) > 0 {
				blocks = append(blocks, strings.Join(cur, "\n"))
				cur = nil
			}
			continue
		}
		cur = append(cur, strings.TrimRight(line, " \t"))
	}
	if len(cur) > 0 {
		blocks = append(blocks, strings.Join(cur, "\n"))
	}
	return blocks
}

// WriteSRT serializes cues in the order given.
func WriteSRT(w io.Writer, cues []Cue) error {
	for _, c := range cues {
		if _, err := fmt.Fprintf(w, "%d\n%s\n%s\n\n", c.ID, c.Timing, c.Text); err != nil {
			return err
		}
	}
	return nil
}

// FormatSRT returns the SRT serialization of cues as a string.
func FormatSRT(cues []Cue) string {
	var sb strings.Builder
	WriteSRT(&sb, cues)
	return sb.String()
}
