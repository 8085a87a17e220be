package subtitle

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var timingRe = regexp.MustCompile(`(\d{1,2}):(\d{2}):(\d{2})[.,](\d{3})\s*-->\s*(\d{1,2}):(\d{2}):(\d{2})[.,](\d{3})`)

// ParseTiming extracts start and end offsets from an SRT or WebVTT timing line.
// Cue settings trailing the end timestamp are ignored.
func ParseTiming(timing string) (start, end time.Duration, err error) {
	m := timingRe.FindStringSubmatch(timing)
	if m == nil {
		return 0, 0, fmt.Errorf("invalid timing %q", timing)
	}
	return clock(m[1], m[2], m[3], m[4]), clock(m[5], m[6], m[7], m[8]), nil
}

// FormatTiming renders an SRT timing line.
func FormatTiming(start, end time.Duration) string {
	return formatClock(start) + " --> " + formatClock(end)
}

func clock(h, m, s, ms string) time.Duration {
	hi, _ := strconv.Atoi(h)
	mi, _ := strconv.Atoi(m)
	si, _ := strconv.Atoi(s)
	msi, _ := strconv.Atoi(ms)
	return time.Duration(hi)*time.Hour +
		time.Duration(mi)*time.Minute +
		time.Duration(si)*time.Second +
		time.Duration(msi)*time.Millisecond
}

func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	totalMs := d.Milliseconds()
	h := totalMs / 3600000
	totalMs %= 3600000
	m := totalMs / 60000
	totalMs %= 60000
	s := totalMs / 1000
	ms := totalMs % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
