package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/subtrans/backend/internal/db"
	"github.com/subtrans/backend/internal/subtitle/translate"
)

// Setting keys read by the translation handlers
const (
	SettingGeminiModel       = "gemini_model"
	settingDefaultEngine     = "default_engine"
	settingDefaultTargetLang = "default_target_lang"
	settingDefaultPreset     = "default_preset"
)

// settingsKeys defines which keys are allowed and their display metadata.
// API keys stay in the environment and are never stored.
var settingsKeys = []SettingDef{
	{Key: SettingGeminiModel, Label: "Gemini Model", Group: "translation", Placeholder: translate.DefaultGeminiModel},
	{Key: settingDefaultEngine, Label: "Default Engine", Group: "translation", Placeholder: translate.EngineGemini},
	{Key: settingDefaultTargetLang, Label: "Default Target Language", Group: "translation", Placeholder: "pt-BR"},
	{Key: settingDefaultPreset, Label: "Default Preset", Group: "translation", Placeholder: translate.PresetMovie},
}

type SettingDef struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Group       string `json:"group"`
	Placeholder string `json:"placeholder"`
}

type SettingsHandler struct {
	database *db.Database
}

func NewSettingsHandler(database *db.Database) *SettingsHandler {
	return &SettingsHandler{database: database}
}

// GetSettings returns every known setting with its current value
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	all, err := h.database.GetAllSettings()
	if err != nil {
		jsonError(w, "failed to load settings", http.StatusInternalServerError)
		return
	}

	// Build response with metadata
	type SettingResponse struct {
		SettingDef
		Value    string `json:"value"`
		HasValue bool   `json:"has_value"`
	}

	var result []SettingResponse
	for _, def := range settingsKeys {
		val := all[def.Key]
		result = append(result, SettingResponse{
			SettingDef: def,
			Value:      val,
			HasValue:   val != "",
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// UpdateSettings saves settings from the request body. Unknown keys are
// ignored; an empty value clears the key.
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var updates map[string]string
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	allowed := make(map[string]bool)
	for _, def := range settingsKeys {
		allowed[def.Key] = true
	}

	for key, value := range updates {
		if !allowed[key] {
			continue
		}
		value = strings.TrimSpace(value)
		if err := validateSetting(key, value); err != nil {
			jsonError(w, key+": "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	for key, value := range updates {
		if !allowed[key] {
			continue
		}
		if err := h.database.SetSetting(key, strings.TrimSpace(value)); err != nil {
			jsonError(w, "failed to save setting: "+key, http.StatusInternalServerError)
			return
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

func validateSetting(key, value string) error {
	if value == "" {
		return nil
	}
	switch key {
	case settingDefaultEngine:
		for _, e := range translate.Engines {
			if e == value {
				return nil
			}
		}
		return fmt.Errorf("unknown engine %q", value)
	case settingDefaultTargetLang:
		_, err := translate.ParseLanguage(value)
		return err
	case settingDefaultPreset:
		switch value {
		case translate.PresetMovie, translate.PresetAnime, translate.PresetDocumentary:
			return nil
		}
		return fmt.Errorf("unknown preset %q", value)
	}
	return nil
}
