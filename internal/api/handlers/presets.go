package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/subtrans/backend/internal/db"
	"github.com/subtrans/backend/internal/subtitle/translate"
)

const maxPresetNameLen = 80

type PresetsHandler struct {
	database *db.Database
}

func NewPresetsHandler(database *db.Database) *PresetsHandler {
	return &PresetsHandler{database: database}
}

type presetRequest struct {
	Name   string `json:"name"`
	Prompt string `json:"prompt"`
}

// decodePreset reads and validates a preset body, writing the error response
// when it is unusable
func decodePreset(w http.ResponseWriter, r *http.Request) (presetRequest, bool) {
	var req presetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return req, false
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Prompt = strings.TrimSpace(req.Prompt)

	if req.Name == "" {
		jsonError(w, "name is required", http.StatusBadRequest)
		return req, false
	}
	if utf8.RuneCountInString(req.Name) > maxPresetNameLen {
		jsonError(w, "name is too long", http.StatusBadRequest)
		return req, false
	}
	if err := translate.ValidateCustomPrompt(req.Prompt); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return req, false
	}
	return req, true
}

// presetResponse echoes the preset with the system prompt it renders to
func presetResponse(id int64, req presetRequest) map[string]interface{} {
	return map[string]interface{}{
		"id":            id,
		"name":          req.Name,
		"system_prompt": translate.GetSystemPrompt(translate.PresetCustom, "auto", "en", req.Prompt),
	}
}

// ListPresets returns all saved translation presets
func (h *PresetsHandler) ListPresets(w http.ResponseWriter, r *http.Request) {
	presets, err := h.database.ListTranslationPresets()
	if err != nil {
		jsonError(w, "failed to list presets: "+err.Error(), http.StatusInternalServerError)
		return
	}

	jsonResponse(w, presets, http.StatusOK)
}

// CreatePreset saves a new translation preset
func (h *PresetsHandler) CreatePreset(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePreset(w, r)
	if !ok {
		return
	}

	id, err := h.database.CreateTranslationPreset(req.Name, req.Prompt)
	if err != nil {
		jsonError(w, "failed to create preset: "+err.Error(), http.StatusInternalServerError)
		return
	}

	jsonResponse(w, presetResponse(id, req), http.StatusCreated)
}

// UpdatePreset updates an existing translation preset
func (h *PresetsHandler) UpdatePreset(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		jsonError(w, "invalid preset ID", http.StatusBadRequest)
		return
	}

	req, ok := decodePreset(w, r)
	if !ok {
		return
	}

	if err := h.database.UpdateTranslationPreset(id, req.Name, req.Prompt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			jsonError(w, "preset not found", http.StatusNotFound)
			return
		}
		jsonError(w, "failed to update preset: "+err.Error(), http.StatusInternalServerError)
		return
	}

	jsonResponse(w, presetResponse(id, req), http.StatusOK)
}

// DeletePreset removes a saved translation preset
func (h *PresetsHandler) DeletePreset(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		jsonError(w, "invalid preset ID", http.StatusBadRequest)
		return
	}

	if err := h.database.DeleteTranslationPreset(id); err != nil {
		jsonError(w, "failed to delete preset: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
