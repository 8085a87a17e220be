package translate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/subtrans/backend/internal/audit"
	"github.com/subtrans/backend/internal/subtitle"
	"github.com/subtrans/backend/internal/subtitle/reflow"
)

// DefaultBatchSize is the number of cues sent per oracle call.
const DefaultBatchSize = 100

// ErrUncorrelated means an oracle answered but none of the returned ids
// belong to the batch that was sent.
var ErrUncorrelated = errors.New("response matched no cue of the batch")

// BatchState is the lifecycle of a single batch.
type BatchState string

const (
	BatchPending BatchState = "pending"
	BatchSent    BatchState = "sent"
	BatchSuccess BatchState = "success"
	BatchPartial BatchState = "partial"
	BatchFailed  BatchState = "failed"
)

// Options configures an Orchestrator.
type Options struct {
	BatchSize   int
	Concurrency int
	RunID       string
	// OnProgress is called after each batch resolves.
	OnProgress func(done, total int)
}

// BatchReport summarizes what happened to one batch.
type BatchReport struct {
	Number     int        `json:"number"`
	FirstID    int        `json:"first_id"`
	LastID     int        `json:"last_id"`
	Size       int        `json:"size"`
	State      BatchState `json:"state"`
	Translated int        `json:"translated"`
	Missing    []int      `json:"missing,omitempty"`
	Error      string     `json:"error,omitempty"`
	Warnings   []string   `json:"warnings,omitempty"`
}

// Result is the outcome of a TranslateRange call.
type Result struct {
	Cues    []subtitle.Cue
	Batches []BatchReport
}

// Translated counts the cues whose text was replaced.
func (r Result) Translated() int {
	n := 0
	for _, b := range r.Batches {
		n += b.Translated
	}
	return n
}

// FailedBatches counts batches that kept all their original text.
func (r Result) FailedBatches() int {
	n := 0
	for _, b := range r.Batches {
		if b.State == BatchFailed {
			n++
		}
	}
	return n
}

// Orchestrator translates ranges of cues in bounded batches.
type Orchestrator struct {
	oracle Oracle
	opts   Options
	sink   audit.Sink
	logger *zap.SugaredLogger
}

// NewOrchestrator creates an orchestrator. A nil sink discards audit entries.
func NewOrchestrator(oracle Oracle, opts Options, sink audit.Sink, logger *zap.SugaredLogger) *Orchestrator {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if sink == nil {
		sink = audit.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Orchestrator{oracle: oracle, opts: opts, sink: sink, logger: logger}
}

type batchResult struct {
	report  BatchReport
	updates map[int]string
}

// TranslateRange translates the cues whose id lies in [from, to]. Cues
// outside the range, and cues whose batch or line failed, keep their text.
// The returned cues are ordered by ascending id. The input is not modified.
func (o *Orchestrator) TranslateRange(ctx context.Context, cues []subtitle.Cue, from, to int) Result {
	sorted := subtitle.SortByID(cues)

	var selected []subtitle.Cue
	for _, c := range sorted {
		if c.InRange(from, to) {
			selected = append(selected, c)
		}
	}
	if len(selected) == 0 {
		o.logger.Infow("no cues to process in range", "from", from, "to", to)
		out := make([]subtitle.Cue, len(cues))
		copy(out, cues)
		return Result{Cues: out}
	}

	batches := chunk(selected, o.opts.BatchSize)
	o.logger.Infow("translating cues",
		"engine", o.oracle.Name(),
		"total", len(cues),
		"selected", len(selected),
		"from", from,
		"to", to,
		"batches", len(batches),
		"concurrency", o.opts.Concurrency,
	)

	results := make([]batchResult, len(batches))
	// progress is reported under the lock so callers see done increase
	var mu sync.Mutex
	done := 0
	finish := func(i int, r batchResult) {
		mu.Lock()
		defer mu.Unlock()
		results[i] = r
		done++
		if o.opts.OnProgress != nil {
			o.opts.OnProgress(done, len(batches))
		}
	}

	if o.opts.Concurrency == 1 {
		for i, b := range batches {
			finish(i, o.runBatch(ctx, i+1, len(batches), b))
		}
	} else {
		sem := make(chan struct{}, o.opts.Concurrency)
		var wg sync.WaitGroup
		for i, b := range batches {
			wg.Add(1)
			sem <- struct{}{}
			go func(i int, b []subtitle.Cue) {
				defer wg.Done()
				defer func() { <-sem }()
				finish(i, o.runBatch(ctx, i+1, len(batches), b))
			}(i, b)
		}
		wg.Wait()
	}

	// Merge only after every batch resolved; batches own disjoint ids.
	updates := make(map[int]string)
	reports := make([]BatchReport, len(results))
	for i, r := range results {
		reports[i] = r.report
		for id, text := range r.updates {
			updates[id] = text
		}
	}

	out := make([]subtitle.Cue, len(sorted))
	for i, c := range sorted {
		if text, ok := updates[c.ID]; ok {
			out[i] = c.WithText(text)
		} else {
			out[i] = c
		}
	}

	res := Result{Cues: out, Batches: reports}
	o.logger.Infow("translation finished",
		"translated", res.Translated(),
		"selected", len(selected),
		"failed_batches", res.FailedBatches(),
	)
	return res
}

func (o *Orchestrator) runBatch(ctx context.Context, num, total int, batch []subtitle.Cue) batchResult {
	report := BatchReport{
		Number:  num,
		FirstID: batch[0].ID,
		LastID:  batch[len(batch)-1].ID,
		Size:    len(batch),
		State:   BatchPending,
	}
	log := o.logger.With("batch", num, "of", total, "first_id", report.FirstID, "last_id", report.LastID)

	if err := ctx.Err(); err != nil {
		report.State = BatchFailed
		report.Error = err.Error()
		log.Warnw("batch not sent", "error", err)
		return batchResult{report: report}
	}

	segments := make([]Segment, len(batch))
	for i, c := range batch {
		segments[i] = Segment{ID: c.ID, Text: c.FlatText()}
	}

	log.Infow("processing batch", "size", len(batch))
	report.State = BatchSent
	outcome := o.oracle.Translate(ctx, segments)

	res := o.resolve(report, batch, outcome, log)
	o.record(ctx, res.report, outcome, log)
	return res
}

// resolve applies an outcome to a batch and decides its final state.
func (o *Orchestrator) resolve(report BatchReport, batch []subtitle.Cue, outcome Outcome, log *zap.SugaredLogger) batchResult {
	report.Warnings = append(report.Warnings, outcome.Warnings...)
	for _, w := range outcome.Warnings {
		log.Warnw("response line skipped", "detail", w)
	}

	fail := func(err error) batchResult {
		report.State = BatchFailed
		report.Error = err.Error()
		log.Warnw("batch failed, keeping original text", "error", err)
		return batchResult{report: report}
	}

	switch outcome.Kind {
	case OutcomeFailure:
		err := outcome.Err
		if err == nil {
			err = errors.New("oracle reported failure")
		}
		return fail(err)

	case OutcomeSuccess, OutcomePartial:
		updates := make(map[int]string)
		for _, c := range batch {
			text, ok := outcome.Translations[c.ID]
			if !ok {
				report.Missing = append(report.Missing, c.ID)
				continue
			}
			updates[c.ID] = reflow.Reflow(text)
		}
		if len(updates) == 0 {
			report.Missing = nil
			return fail(ErrUncorrelated)
		}
		if extra := len(outcome.Translations) - len(updates); extra > 0 {
			log.Debugw("ignored ids outside the batch", "count", extra)
		}
		for _, id := range report.Missing {
			log.Warnw("translation not found, keeping original", "id", id)
		}

		report.Translated = len(updates)
		if len(report.Missing) == 0 {
			report.State = BatchSuccess
		} else {
			report.State = BatchPartial
		}
		return batchResult{report: report, updates: updates}

	default:
		return fail(fmt.Errorf("unknown outcome kind %v", outcome.Kind))
	}
}

func (o *Orchestrator) record(ctx context.Context, report BatchReport, outcome Outcome, log *zap.SugaredLogger) {
	response := outcome.Response
	if outcome.Kind == OutcomeFailure && outcome.Err != nil {
		if response != "" {
			response += "\n\n"
		}
		response += "ERROR: " + outcome.Err.Error()
	}

	err := o.sink.Record(context.WithoutCancel(ctx), audit.Entry{
		RunID:    o.opts.RunID,
		Batch:    report.Number,
		FirstID:  report.FirstID,
		LastID:   report.LastID,
		State:    string(report.State),
		Request:  outcome.Request,
		Response: response,
		At:       time.Now(),
	})
	if err != nil {
		log.Warnw("failed to write audit entry", "error", err)
	}
}

func chunk(cues []subtitle.Cue, size int) [][]subtitle.Cue {
	var out [][]subtitle.Cue
	for i := 0; i < len(cues); i += size {
		end := i + size
		if end > len(cues) {
			end = len(cues)
		}
		out = append(out, cues[i:end])
	}
	return out
}
