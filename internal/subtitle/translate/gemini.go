package translate

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when neither config nor settings name a model.
const DefaultGeminiModel = "gemini-2.5-flash"

// ModelResolver returns the current model name, e.g. from stored settings
type ModelResolver func() string

// GeminiCompleter sends prompts to the Gemini API
type GeminiCompleter struct {
	client        *genai.Client
	model         string
	modelResolver ModelResolver
}

// NewGeminiCompleter creates a Gemini client. It fails with ErrMissingCredential
// when apiKey is empty.
func NewGeminiCompleter(ctx context.Context, apiKey, model string, resolver ModelResolver) (*GeminiCompleter, error) {
	if apiKey == "" {
		return nil, &ConfigError{Engine: "gemini", Err: fmt.Errorf("%w: GEMINI_API_KEY not set", ErrMissingCredential)}
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &ConfigError{Engine: "gemini", Err: err}
	}
	return &GeminiCompleter{client: client, model: model, modelResolver: resolver}, nil
}

func (g *GeminiCompleter) currentModel() string {
	if g.modelResolver != nil {
		if m := g.modelResolver(); m != "" {
			return m
		}
	}
	if g.model != "" {
		return g.model
	}
	return DefaultGeminiModel
}

func (g *GeminiCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.3),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.currentModel(), genai.Text(userPrompt), cfg)
	if err != nil {
		return "", fmt.Errorf("Gemini API request: %w", err)
	}

	text := resp.Text()
	if text == "" {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("Gemini blocked: %s", resp.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("empty Gemini response")
	}
	return text, nil
}

// GeminiModel describes a text model offered by the Gemini API
type GeminiModel struct {
	ID          string `json:"id"`           // e.g. "gemini-2.5-flash"
	DisplayName string `json:"display_name"` // e.g. "Gemini 2.5 Flash"
	Description string `json:"description"`
}

// ListModels returns the Gemini models that support generateContent,
// newest first.
func (g *GeminiCompleter) ListModels(ctx context.Context) ([]GeminiModel, error) {
	var models []GeminiModel
	seen := make(map[string]bool)

	for m, err := range g.client.Models.All(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list Gemini models: %w", err)
		}
		if !slices.Contains(m.SupportedActions, "generateContent") {
			continue
		}

		// "models/gemini-2.5-flash" -> "gemini-2.5-flash"
		id := strings.TrimPrefix(m.Name, "models/")
		if !strings.HasPrefix(id, "gemini-") ||
			strings.Contains(id, "embedding") ||
			strings.Contains(id, "image") ||
			strings.Contains(id, "tts") {
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true

		models = append(models, GeminiModel{
			ID:          id,
			DisplayName: m.DisplayName,
			Description: m.Description,
		})
	}

	sort.Slice(models, func(i, j int) bool {
		return models[i].ID > models[j].ID
	})
	return models, nil
}
