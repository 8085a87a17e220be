package subtitle

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/asticode/go-astisub"
)

// astisubExtensions are the formats read and written through go-astisub.
// SRT is handled natively so timing lines pass through byte for byte.
var astisubExtensions = map[string]bool{
	".vtt":  true,
	".ass":  true,
	".ssa":  true,
	".ttml": true,
	".stl":  true,
}

// Supported reports whether path has an extension the codec can read.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".srt" || astisubExtensions[ext]
}

// ReadFile loads cues from a subtitle file. It returns an error wrapping
// ErrNotFound when the path does not exist.
func ReadFile(path string) ([]Cue, ParseReport, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ParseReport{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, ParseReport{}, err
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".srt" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, ParseReport{}, fmt.Errorf("read subtitle: %w", err)
		}
		cues, report := ParseSRT(string(data))
		return cues, report, nil
	}

	if !astisubExtensions[ext] {
		return nil, ParseReport{}, fmt.Errorf("unsupported subtitle format: %s", ext)
	}

	subs, err := astisub.OpenFile(path)
	if err != nil {
		return nil, ParseReport{}, fmt.Errorf("open %s: %w", ext, err)
	}
	cues, report := FromAstisub(subs)
	return cues, report, nil
}

// FromAstisub converts astisub items to cues. Items without an index are
// numbered by position; duplicates are skipped.
func FromAstisub(subs *astisub.Subtitles) ([]Cue, ParseReport) {
	var report ParseReport
	seen := make(map[int]bool)
	cues := make([]Cue, 0, len(subs.Items))

	for i, item := range subs.Items {
		id := item.Index
		if id <= 0 {
			id = i + 1
		}
		if seen[id] {
			report.Skipped = append(report.Skipped, &MalformedBlockError{
				Block:  item.String(),
				Reason: fmt.Sprintf("duplicate index %d", id),
			})
			continue
		}

		lines := make([]string, 0, len(item.Lines))
		for _, l := range item.Lines {
			if s := strings.TrimSpace(l.String()); s != "" {
				lines = append(lines, s)
			}
		}
		if len(lines) == 0 {
			continue
		}
		seen[id] = true

		cues = append(cues, Cue{
			ID:     id,
			Timing: FormatTiming(item.StartAt, item.EndAt),
			Text:   strings.Join(lines, "\n"),
		})
	}
	return cues, report
}

// ToAstisub builds astisub subtitles from cues. Cues whose timing cannot be
// parsed are rejected, since the target formats need real offsets.
func ToAstisub(cues []Cue) (*astisub.Subtitles, error) {
	subs := astisub.NewSubtitles()
	for _, c := range cues {
		start, end, err := ParseTiming(c.Timing)
		if err != nil {
			return nil, fmt.Errorf("cue %d: %w", c.ID, err)
		}
		item := &astisub.Item{
			Index:   c.ID,
			StartAt: start,
			EndAt:   end,
		}
		for _, line := range strings.Split(c.Text, "\n") {
			item.Lines = append(item.Lines, astisub.Line{
				Items: []astisub.LineItem{{Text: line}},
			})
		}
		subs.Items = append(subs.Items, item)
	}
	return subs, nil
}

// WriteFile serializes cues to path, choosing the format from its extension.
func WriteFile(path string, cues []Cue) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".srt" || ext == "" {
		return os.WriteFile(path, []byte(FormatSRT(cues)), 0644)
	}
	if !astisubExtensions[ext] {
		return fmt.Errorf("unsupported subtitle format: %s", ext)
	}

	subs, err := ToAstisub(cues)
	if err != nil {
		return err
	}
	if err := subs.Write(path); err != nil {
		return fmt.Errorf("write %s: %w", ext, err)
	}
	return nil
}
