package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultDeepLAPIURL = "https://api-free.deepl.com/v2/translate"

// DeepLOracle translates batches with the DeepL API. DeepL returns
// translations positionally, so ids are correlated by request order.
type DeepLOracle struct {
	apiKey     string
	apiURL     string
	sourceLang string
	targetLang string
	formality  string
	httpClient *http.Client
}

func NewDeepLOracle(apiKey, apiURL string, prompt PromptOptions) (*DeepLOracle, error) {
	if apiKey == "" {
		return nil, &ConfigError{Engine: "deepl", Err: fmt.Errorf("%w: DEEPL_API_KEY not set", ErrMissingCredential)}
	}
	if apiURL == "" {
		apiURL = defaultDeepLAPIURL
	}

	// Map preset to DeepL formality
	formality := ""
	switch prompt.Preset {
	case PresetDocumentary:
		formality = "prefer_more"
	case PresetAnime:
		formality = "prefer_less"
	}

	return &DeepLOracle{
		apiKey:     apiKey,
		apiURL:     apiURL,
		sourceLang: prompt.SourceLang,
		targetLang: prompt.TargetLang,
		formality:  formality,
		httpClient: &http.Client{
			Timeout: 1 * time.Minute,
		},
	}, nil
}

func (d *DeepLOracle) Name() string {
	return "deepl"
}

func (d *DeepLOracle) Translate(ctx context.Context, batch []Segment) Outcome {
	form := url.Values{}
	for _, s := range batch {
		form.Add("text", s.Text)
	}
	form.Set("target_lang", deeplLangCode(d.targetLang))
	if d.sourceLang != "" && d.sourceLang != "auto" {
		if tag, err := ParseLanguage(d.sourceLang); err == nil {
			base, _ := tag.Base()
			form.Set("source_lang", strings.ToUpper(base.String()))
		}
	}
	if d.formality != "" {
		form.Set("formality", d.formality)
	}
	request := form.Encode()

	fail := func(err error, response string) Outcome {
		out := Failure(err)
		out.Request = request
		out.Response = response
		return out
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.apiURL, strings.NewReader(request))
	if err != nil {
		return fail(err, "")
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Authorization", "DeepL-Auth-Key "+d.apiKey)

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return fail(fmt.Errorf("DeepL API request: %w", err), "")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(err, "")
	}

	if resp.StatusCode != http.StatusOK {
		return fail(fmt.Errorf("DeepL API error (status %d)", resp.StatusCode), string(body))
	}

	var deeplResp struct {
		Translations []struct {
			Text string `json:"text"`
		} `json:"translations"`
	}
	if err := json.Unmarshal(body, &deeplResp); err != nil {
		return fail(fmt.Errorf("%w: %v", ErrMalformedResponse, err), string(body))
	}

	translations := make(map[int]string, len(batch))
	for i, s := range batch {
		if i >= len(deeplResp.Translations) {
			break
		}
		if t := strings.TrimSpace(deeplResp.Translations[i].Text); t != "" {
			translations[s.ID] = t
		}
	}

	out := Classify(batch, translations)
	out.Request = request
	out.Response = string(body)
	return out
}
