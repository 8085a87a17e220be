package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileSink writes each batch's request and response to separate log files
// named <prefix>-batchNNN-<kind>-<timestamp>.log under Dir.
type FileSink struct {
	Dir    string
	Prefix string

	now func() time.Time
}

// NewFileSink creates a sink writing into dir. The directory is created lazily.
func NewFileSink(dir, prefix string) *FileSink {
	if prefix == "" {
		prefix = "translation"
	}
	return &FileSink{Dir: dir, Prefix: prefix, now: time.Now}
}

func (s *FileSink) Record(_ context.Context, e Entry) error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}

	at := e.At
	if at.IsZero() {
		at = s.now()
	}
	stamp := at.Format("20060102_150405")

	if err := s.write(e.Batch, "request", stamp, e.Request); err != nil {
		return err
	}
	return s.write(e.Batch, "response", stamp, e.Response)
}

func (s *FileSink) write(batch int, kind, stamp, content string) error {
	name := fmt.Sprintf("%s-batch%03d-%s-%s.log", s.Prefix, batch, kind, stamp)
	path := filepath.Join(s.Dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("write audit log %s: %w", name, err)
	}
	return nil
}
