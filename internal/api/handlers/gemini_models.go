package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/subtrans/backend/internal/subtitle/translate"
)

const modelsCacheTTL = time.Hour

// ModelLister returns the models an engine offers
type ModelLister interface {
	ListModels(r *http.Request) ([]translate.GeminiModel, error)
}

// GeminiModelLister adapts translate.GeminiCompleter to ModelLister
type GeminiModelLister struct {
	Completer *translate.GeminiCompleter
}

func (l GeminiModelLister) ListModels(r *http.Request) ([]translate.GeminiModel, error) {
	return l.Completer.ListModels(r.Context())
}

type GeminiModelsHandler struct {
	lister ModelLister

	mu           sync.Mutex
	cachedModels []translate.GeminiModel
	cacheTime    time.Time
}

// NewGeminiModelsHandler creates the handler. A nil lister means no Gemini
// key is configured and the list is always empty.
func NewGeminiModelsHandler(lister ModelLister) *GeminiModelsHandler {
	return &GeminiModelsHandler{lister: lister}
}

// ListModels returns available Gemini text models, cached for an hour
func (h *GeminiModelsHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	if h.lister == nil {
		jsonResponse(w, []translate.GeminiModel{}, http.StatusOK)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.cachedModels) > 0 && time.Since(h.cacheTime) < modelsCacheTTL {
		jsonResponse(w, h.cachedModels, http.StatusOK)
		return
	}

	models, err := h.lister.ListModels(r)
	if err != nil {
		// Serve stale cache rather than failing
		if len(h.cachedModels) > 0 {
			jsonResponse(w, h.cachedModels, http.StatusOK)
			return
		}
		jsonError(w, "failed to fetch Gemini models: "+err.Error(), http.StatusBadGateway)
		return
	}
	if models == nil {
		models = []translate.GeminiModel{}
	}

	h.cachedModels = models
	h.cacheTime = time.Now()
	jsonResponse(w, models, http.StatusOK)
}
