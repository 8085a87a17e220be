package translate

import (
	"context"
	"fmt"
)

// Segment is one cue as sent to an oracle: its id and flattened text.
type Segment struct {
	ID   int
	Text string
}

// OutcomeKind tags the variant held by an Outcome.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomePartial
	OutcomeFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomePartial:
		return "partial"
	case OutcomeFailure:
		return "failure"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the result of one oracle call. Translations is set for
// success and partial outcomes, Err for failures. Request and Response hold
// the raw exchange for auditing.
type Outcome struct {
	Kind         OutcomeKind
	Translations map[int]string
	Err          error

	// Warnings are per-line correlation problems found while parsing.
	Warnings []string

	Request  string
	Response string
}

// Success is an outcome covering every requested id.
func Success(translations map[int]string) Outcome {
	return Outcome{Kind: OutcomeSuccess, Translations: translations}
}

// Partial is an outcome where some requested ids have no translation.
func Partial(translations map[int]string) Outcome {
	return Outcome{Kind: OutcomePartial, Translations: translations}
}

// Failure is an outcome where the whole batch must keep its original text.
func Failure(err error) Outcome {
	return Outcome{Kind: OutcomeFailure, Err: err}
}

// Classify builds a Success or Partial outcome depending on whether every
// segment id has a translation.
func Classify(segments []Segment, translations map[int]string) Outcome {
	for _, s := range segments {
		if _, ok := translations[s.ID]; !ok {
			return Partial(translations)
		}
	}
	return Success(translations)
}

// Oracle translates one batch of segments. Implementations handle their own
// retries; the orchestrator treats each call as atomic.
type Oracle interface {
	Translate(ctx context.Context, batch []Segment) Outcome
	Name() string
}
