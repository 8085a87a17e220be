package translate

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Completer sends one system + user prompt pair to a chat model and returns
// the raw text of its answer.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// PromptOptions configures how batches are phrased for LLM engines.
type PromptOptions struct {
	SourceLang   string
	TargetLang   string
	Preset       string
	CustomPrompt string
}

// LLMOracle turns a chat Completer into an Oracle speaking correlation format v1.
type LLMOracle struct {
	name       string
	completer  Completer
	prompt     PromptOptions
	retryDelay time.Duration
	logger     *zap.SugaredLogger
}

// NewLLMOracle wraps completer under the given engine name.
func NewLLMOracle(name string, completer Completer, prompt PromptOptions, logger *zap.SugaredLogger) *LLMOracle {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &LLMOracle{
		name:       name,
		completer:  completer,
		prompt:     prompt,
		retryDelay: 5 * time.Second,
		logger:     logger,
	}
}

func (o *LLMOracle) Name() string {
	return o.name
}

func (o *LLMOracle) Translate(ctx context.Context, batch []Segment) Outcome {
	systemPrompt := GetSystemPrompt(o.prompt.Preset, o.prompt.SourceLang, o.prompt.TargetLang, o.prompt.CustomPrompt)
	userPrompt := BuildUserPrompt(batch, o.prompt.TargetLang)
	request := systemPrompt + "\n\n" + userPrompt

	raw, err := o.completer.Complete(ctx, systemPrompt, userPrompt)
	if err != nil && isTransientError(err) {
		// Retry once on transient errors
		o.logger.Warnw("transient oracle error, retrying", "engine", o.name, "error", err, "delay", o.retryDelay)
		select {
		case <-ctx.Done():
		case <-time.After(o.retryDelay):
			raw, err = o.completer.Complete(ctx, systemPrompt, userPrompt)
		}
	}
	if err != nil {
		out := Failure(err)
		out.Request = request
		return out
	}

	translations, warnings, err := DecodeResponse(raw)
	if err != nil {
		out := Failure(err)
		out.Request = request
		out.Response = raw
		return out
	}

	out := Classify(batch, translations)
	out.Warnings = warnings
	out.Request = request
	out.Response = raw
	return out
}

// isTransientError checks if an error is worth a single retry
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset") ||
		strings.Contains(s, "eof") ||
		strings.Contains(s, "timeout") ||
		strings.Contains(s, "429") ||
		strings.Contains(s, "500") ||
		strings.Contains(s, "502") ||
		strings.Contains(s, "503") ||
		strings.Contains(s, "504")
}
