package translate

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Engine names accepted by NewOracle.
const (
	EngineGemini = "gemini"
	EngineOpenAI = "openai"
	EngineDeepL  = "deepl"
	EngineEcho   = "echo"
)

// Engines lists every engine name in display order.
var Engines = []string{EngineGemini, EngineOpenAI, EngineDeepL, EngineEcho}

// EngineConfig carries the credentials and models of every engine. Only the
// fields of the selected Engine are required.
type EngineConfig struct {
	Engine string

	GeminiAPIKey        string
	GeminiModel         string
	GeminiModelResolver ModelResolver

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	DeepLAPIKey string
	DeepLAPIURL string

	Prompt PromptOptions
}

// NewOracle builds the oracle named by cfg.Engine. Every error it returns is
// a *ConfigError and must stop the run before any batch is sent.
func NewOracle(ctx context.Context, cfg EngineConfig, logger *zap.SugaredLogger) (Oracle, error) {
	if cfg.Prompt.TargetLang == "" {
		return nil, &ConfigError{Engine: cfg.Engine, Err: fmt.Errorf("target language not set")}
	}
	if _, err := ParseLanguage(cfg.Prompt.TargetLang); err != nil {
		return nil, &ConfigError{Engine: cfg.Engine, Err: err}
	}

	switch cfg.Engine {
	case EngineGemini:
		c, err := NewGeminiCompleter(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiModelResolver)
		if err != nil {
			return nil, err
		}
		return NewLLMOracle(EngineGemini, c, cfg.Prompt, logger), nil

	case EngineOpenAI:
		c, err := NewOpenAICompleter(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
		if err != nil {
			return nil, err
		}
		return NewLLMOracle(EngineOpenAI, c, cfg.Prompt, logger), nil

	case EngineDeepL:
		return NewDeepLOracle(cfg.DeepLAPIKey, cfg.DeepLAPIURL, cfg.Prompt)

	case EngineEcho:
		return EchoOracle{}, nil

	default:
		return nil, &ConfigError{Engine: cfg.Engine, Err: fmt.Errorf("%w: %q", ErrUnknownEngine, cfg.Engine)}
	}
}
