package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subtrans/backend/internal/audit"
	"github.com/subtrans/backend/internal/subtitle"
	"github.com/subtrans/backend/internal/subtitle/reflow"
)

type fakeOracle struct {
	mu    sync.Mutex
	calls [][]int
	fn    func(batch []Segment) Outcome
}

func (f *fakeOracle) Name() string { return "fake" }

func (f *fakeOracle) Translate(_ context.Context, batch []Segment) Outcome {
	ids := make([]int, len(batch))
	for i, s := range batch {
		ids[i] = s.ID
	}
	f.mu.Lock()
	f.calls = append(f.calls, ids)
	f.mu.Unlock()
	return f.fn(batch)
}

func upper(batch []Segment) Outcome {
	m := make(map[int]string, len(batch))
	for _, s := range batch {
		m[s.ID] = strings.ToUpper(s.Text)
	}
	return Classify(batch, m)
}

type recordingSink struct {
	mu      sync.Mutex
	entries []audit.Entry
	err     error
}

func (r *recordingSink) Record(_ context.Context, e audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return r.err
}

func makeCues(ids ...int) []subtitle.Cue {
	cues := make([]subtitle.Cue, len(ids))
	for i, id := range ids {
		cues[i] = subtitle.Cue{
			ID:     id,
			Timing: fmt.Sprintf("00:00:%02d,000 --> 00:00:%02d,500", id%60, id%60),
			Text:   fmt.Sprintf("line %d", id),
		}
	}
	return cues
}

func texts(cues []subtitle.Cue) map[int]string {
	m := make(map[int]string, len(cues))
	for _, c := range cues {
		m[c.ID] = c.Text
	}
	return m
}

func ids(cues []subtitle.Cue) []int {
	out := make([]int, len(cues))
	for i, c := range cues {
		out[i] = c.ID
	}
	return out
}

func TestTranslateRangeFailedBatchKeepsOriginal(t *testing.T) {
	oracle := &fakeOracle{fn: func(batch []Segment) Outcome {
		if batch[0].ID == 3 {
			return Failure(errors.New("service unavailable"))
		}
		return upper(batch)
	}}
	orch := NewOrchestrator(oracle, Options{BatchSize: 2}, nil, nil)

	res := orch.TranslateRange(context.Background(), makeCues(1, 2, 3, 4, 5), 1, 5)

	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, oracle.calls)
	assert.Equal(t, map[int]string{
		1: "LINE 1",
		2: "LINE 2",
		3: "line 3",
		4: "line 4",
		5: "LINE 5",
	}, texts(res.Cues))

	require.Len(t, res.Batches, 3)
	assert.Equal(t, BatchSuccess, res.Batches[0].State)
	assert.Equal(t, BatchFailed, res.Batches[1].State)
	assert.Equal(t, "service unavailable", res.Batches[1].Error)
	assert.Equal(t, BatchSuccess, res.Batches[2].State)
	assert.Equal(t, 3, res.Translated())
	assert.Equal(t, 1, res.FailedBatches())
}

func TestTranslateRangePartialOutcome(t *testing.T) {
	oracle := &fakeOracle{fn: func(batch []Segment) Outcome {
		return Classify(batch, map[int]string{1: "um", 3: "tres"})
	}}
	orch := NewOrchestrator(oracle, Options{BatchSize: 10}, nil, nil)

	res := orch.TranslateRange(context.Background(), makeCues(1, 2, 3), 1, 3)

	assert.Equal(t, map[int]string{1: "um", 2: "line 2", 3: "tres"}, texts(res.Cues))
	require.Len(t, res.Batches, 1)
	assert.Equal(t, BatchPartial, res.Batches[0].State)
	assert.Equal(t, []int{2}, res.Batches[0].Missing)
	assert.Equal(t, 2, res.Batches[0].Translated)
}

func TestTranslateRangeUncorrelatedResponseFailsBatch(t *testing.T) {
	oracle := &fakeOracle{fn: func(batch []Segment) Outcome {
		return Partial(map[int]string{99: "stray"})
	}}
	orch := NewOrchestrator(oracle, Options{}, nil, nil)

	cues := makeCues(1, 2)
	res := orch.TranslateRange(context.Background(), cues, 1, 2)

	assert.Equal(t, texts(cues), texts(res.Cues))
	require.Len(t, res.Batches, 1)
	assert.Equal(t, BatchFailed, res.Batches[0].State)
	assert.Equal(t, ErrUncorrelated.Error(), res.Batches[0].Error)
	assert.Empty(t, res.Batches[0].Missing)
}

func TestTranslateRangeIgnoresIdsOutsideBatch(t *testing.T) {
	oracle := &fakeOracle{fn: func(batch []Segment) Outcome {
		return Success(map[int]string{1: "a", 2: "b", 7: "should not land"})
	}}
	orch := NewOrchestrator(oracle, Options{}, nil, nil)

	res := orch.TranslateRange(context.Background(), makeCues(1, 2, 7), 1, 2)

	assert.Equal(t, map[int]string{1: "a", 2: "b", 7: "line 7"}, texts(res.Cues))
	assert.Equal(t, BatchSuccess, res.Batches[0].State)
}

func TestTranslateRangeIsolationAndOrder(t *testing.T) {
	oracle := &fakeOracle{fn: upper}
	orch := NewOrchestrator(oracle, Options{BatchSize: 1}, nil, nil)

	input := makeCues(40, 10, 30, 20)
	res := orch.TranslateRange(context.Background(), input, 15, 35)

	assert.Equal(t, []int{10, 20, 30, 40}, ids(res.Cues))
	assert.Equal(t, map[int]string{
		10: "line 10",
		20: "LINE 20",
		30: "LINE 30",
		40: "line 40",
	}, texts(res.Cues))
	assert.Equal(t, [][]int{{20}, {30}}, oracle.calls)

	for _, c := range res.Cues {
		orig := texts(input)
		if !c.InRange(15, 35) {
			assert.Equal(t, orig[c.ID], c.Text)
		}
	}
	// input untouched
	assert.Equal(t, "line 40", input[0].Text)
	assert.Equal(t, "line 20", input[3].Text)
}

func TestTranslateRangeEmptySelection(t *testing.T) {
	oracle := &fakeOracle{fn: upper}
	orch := NewOrchestrator(oracle, Options{}, nil, nil)

	input := makeCues(1, 2, 3)
	res := orch.TranslateRange(context.Background(), input, 10, 20)

	assert.Equal(t, input, res.Cues)
	assert.Empty(t, res.Batches)
	assert.Empty(t, oracle.calls)

	res = orch.TranslateRange(context.Background(), input, 3, 1)
	assert.Equal(t, input, res.Cues)
	assert.Empty(t, oracle.calls)
}

func TestTranslateRangeReflowsTranslations(t *testing.T) {
	long := "Hello there, this is a long subtitle line that definitely exceeds forty two characters easily."
	oracle := &fakeOracle{fn: func(batch []Segment) Outcome {
		return Success(map[int]string{batch[0].ID: long})
	}}
	orch := NewOrchestrator(oracle, Options{}, nil, nil)

	res := orch.TranslateRange(context.Background(), makeCues(1), 1, 1)

	assert.Equal(t, reflow.Reflow(long), res.Cues[0].Text)
	assert.Contains(t, res.Cues[0].Text, "\n")
	assert.Equal(t, long, subtitle.Flatten(res.Cues[0].Text))
}

func TestTranslateRangeSendsFlattenedText(t *testing.T) {
	var got []Segment
	oracle := &fakeOracle{fn: func(batch []Segment) Outcome {
		got = batch
		return upper(batch)
	}}
	orch := NewOrchestrator(oracle, Options{}, nil, nil)

	cues := []subtitle.Cue{{ID: 1, Timing: "00:00:01,000 --> 00:00:02,000", Text: "first line\nsecond  line"}}
	orch.TranslateRange(context.Background(), cues, 1, 1)

	require.Len(t, got, 1)
	assert.Equal(t, "first line second line", got[0].Text)
}

func TestTranslateRangeConcurrentMatchesSequential(t *testing.T) {
	input := makeCues(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11)

	seq := NewOrchestrator(&fakeOracle{fn: upper}, Options{BatchSize: 2}, nil, nil).
		TranslateRange(context.Background(), input, 2, 10)

	var inFlight, maxInFlight atomic.Int32
	oracle := &fakeOracle{fn: func(batch []Segment) Outcome {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		return upper(batch)
	}}
	var progress []int
	var mu sync.Mutex
	conc := NewOrchestrator(oracle, Options{
		BatchSize:   2,
		Concurrency: 3,
		OnProgress: func(done, total int) {
			mu.Lock()
			progress = append(progress, done)
			mu.Unlock()
			assert.Equal(t, 5, total)
		},
	}, nil, nil).TranslateRange(context.Background(), input, 2, 10)

	assert.Equal(t, seq.Cues, conc.Cues)
	assert.LessOrEqual(t, maxInFlight.Load(), int32(3))
	assert.Len(t, oracle.calls, 5)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, progress, "progress never moves backwards")
	for i, b := range conc.Batches {
		assert.Equal(t, i+1, b.Number)
	}
}

func TestTranslateRangeRecordsAudit(t *testing.T) {
	oracle := &fakeOracle{fn: func(batch []Segment) Outcome {
		if batch[0].ID == 3 {
			out := Failure(errors.New("boom"))
			out.Request = "req"
			out.Response = "partial body"
			return out
		}
		out := upper(batch)
		out.Request = EncodeSegments(batch)
		out.Response = "ok"
		return out
	}}
	sink := &recordingSink{err: errors.New("disk full")}
	orch := NewOrchestrator(oracle, Options{BatchSize: 2, RunID: "run-1"}, sink, nil)

	res := orch.TranslateRange(context.Background(), makeCues(1, 2, 3), 1, 3)

	// audit errors never fail the run
	assert.Equal(t, 2, res.Translated())
	require.Len(t, sink.entries, 2)
	first, second := sink.entries[0], sink.entries[1]
	assert.Equal(t, "run-1", first.RunID)
	assert.Equal(t, 1, first.Batch)
	assert.Equal(t, "1| line 1\n2| line 2", first.Request)
	assert.Equal(t, string(BatchSuccess), first.State)

	assert.Equal(t, 2, second.Batch)
	assert.Equal(t, 3, second.FirstID)
	assert.Equal(t, string(BatchFailed), second.State)
	assert.Equal(t, "partial body\n\nERROR: boom", second.Response)
}

func TestTranslateRangeCancelledContext(t *testing.T) {
	oracle := &fakeOracle{fn: upper}
	orch := NewOrchestrator(oracle, Options{BatchSize: 1}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	input := makeCues(1, 2)
	res := orch.TranslateRange(ctx, input, 1, 2)

	assert.Empty(t, oracle.calls)
	assert.Equal(t, texts(input), texts(res.Cues))
	assert.Equal(t, 2, res.FailedBatches())
}

func TestNewOrchestratorDefaults(t *testing.T) {
	orch := NewOrchestrator(&fakeOracle{fn: upper}, Options{BatchSize: -1, Concurrency: 0}, nil, nil)
	assert.Equal(t, DefaultBatchSize, orch.opts.BatchSize)
	assert.Equal(t, 1, orch.opts.Concurrency)
}
