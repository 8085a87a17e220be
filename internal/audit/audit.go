// Package audit records the raw request and response of every translation
// batch. Sinks are diagnostic only; callers log their errors and move on.
package audit

import (
	"context"
	"errors"
	"time"
)

// Entry is the audit record of one batch exchange.
type Entry struct {
	RunID    string    `json:"run_id"`
	Batch    int       `json:"batch"`
	FirstID  int       `json:"first_id"`
	LastID   int       `json:"last_id"`
	State    string    `json:"state"`
	Request  string    `json:"request"`
	Response string    `json:"response"`
	At       time.Time `json:"at"`
}

// Sink receives batch audit entries.
type Sink interface {
	Record(ctx context.Context, e Entry) error
}

// Nop discards every entry.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }

// Multi fans an entry out to several sinks and joins their errors.
type Multi []Sink

func (m Multi) Record(ctx context.Context, e Entry) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
