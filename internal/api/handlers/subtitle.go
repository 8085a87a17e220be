package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/subtrans/backend/internal/db"
	"github.com/subtrans/backend/internal/job"
	"github.com/subtrans/backend/internal/storage"
	"github.com/subtrans/backend/internal/subtitle"
	"github.com/subtrans/backend/internal/subtitle/translate"
)

type SubtitleHandler struct {
	mediaPath string
	database  *db.Database
	queue     *job.JobQueue
	defaults  job.TranslateParams
}

// NewSubtitleHandler creates the handler. defaults fill fields a translate
// request leaves empty; stored settings take precedence over them.
func NewSubtitleHandler(mediaPath string, database *db.Database, queue *job.JobQueue, defaults job.TranslateParams) *SubtitleHandler {
	return &SubtitleHandler{mediaPath: mediaPath, database: database, queue: queue, defaults: defaults}
}

// resolve maps the wildcard path to a subtitle file under the media path
func (h *SubtitleHandler) resolve(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	rel := extractPath(r)
	if !subtitle.Supported(rel) {
		jsonError(w, "not a subtitle file", http.StatusBadRequest)
		return "", "", false
	}
	full, err := storage.SafeJoin(h.mediaPath, rel)
	if err != nil {
		jsonError(w, "invalid path", http.StatusForbidden)
		return "", "", false
	}
	if _, err := os.Stat(full); err != nil {
		jsonError(w, "subtitle file not found", http.StatusNotFound)
		return "", "", false
	}
	return rel, full, true
}

// ServeSubtitle serves a subtitle file as stored, or as WebVTT with ?format=vtt
func (h *SubtitleHandler) ServeSubtitle(w http.ResponseWriter, r *http.Request) {
	_, full, ok := h.resolve(w, r)
	if !ok {
		return
	}

	if r.URL.Query().Get("format") != "vtt" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		http.ServeFile(w, r, full)
		return
	}

	cues, _, err := subtitle.ReadFile(full)
	if err != nil {
		jsonError(w, "failed to read subtitle: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	subs, err := subtitle.ToAstisub(cues)
	if err != nil {
		jsonError(w, "failed to convert subtitle: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "text/vtt; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if err := subs.WriteToWebVTT(w); err != nil {
		jsonError(w, "failed to write subtitle", http.StatusInternalServerError)
	}
}

// GetCues returns the parsed cues of a subtitle file and the blocks that
// were skipped as malformed
func (h *SubtitleHandler) GetCues(w http.ResponseWriter, r *http.Request) {
	rel, full, ok := h.resolve(w, r)
	if !ok {
		return
	}

	cues, report, err := subtitle.ReadFile(full)
	if err != nil {
		jsonError(w, "failed to read subtitle: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	skipped := make([]map[string]interface{}, 0, len(report.Skipped))
	for _, s := range report.Skipped {
		skipped = append(skipped, map[string]interface{}{"block": s.Block, "reason": s.Reason})
	}

	jsonResponse(w, map[string]interface{}{
		"path":    rel,
		"count":   len(cues),
		"cues":    subtitle.SortByID(cues),
		"skipped": skipped,
	}, http.StatusOK)
}

type translateRequest struct {
	job.TranslateParams
	PresetID int64 `json:"preset_id"`
}

// TranslateSubtitle queues a translation job for a subtitle file
func (h *SubtitleHandler) TranslateSubtitle(w http.ResponseWriter, r *http.Request) {
	rel, _, ok := h.resolve(w, r)
	if !ok {
		return
	}

	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	params := req.TranslateParams

	if req.PresetID != 0 {
		preset, err := h.database.GetTranslationPreset(req.PresetID)
		if err != nil {
			jsonError(w, "preset not found", http.StatusNotFound)
			return
		}
		params.Preset = translate.PresetCustom
		params.CustomPrompt = preset.Prompt
	}

	h.applyDefaults(&params)

	if err := validateParams(params); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	j, err := h.queue.Enqueue(job.JobTranslate, rel, params)
	if err != nil {
		jsonError(w, "failed to create job: "+err.Error(), http.StatusInternalServerError)
		return
	}

	jsonResponse(w, j, http.StatusAccepted)
}

func (h *SubtitleHandler) applyDefaults(p *job.TranslateParams) {
	setting := func(key, fallback string) string {
		if h.database == nil {
			return fallback
		}
		return h.database.GetSetting(key, fallback)
	}
	if p.Engine == "" {
		p.Engine = setting(settingDefaultEngine, h.defaults.Engine)
	}
	if p.TargetLang == "" {
		p.TargetLang = setting(settingDefaultTargetLang, h.defaults.TargetLang)
	}
	if p.SourceLang == "" {
		p.SourceLang = h.defaults.SourceLang
	}
	if p.Preset == "" {
		p.Preset = setting(settingDefaultPreset, translate.PresetMovie)
	}
	if p.BatchSize <= 0 {
		p.BatchSize = h.defaults.BatchSize
	}
	if p.Concurrency <= 0 {
		p.Concurrency = h.defaults.Concurrency
	}
}

func validateParams(p job.TranslateParams) error {
	known := false
	for _, e := range translate.Engines {
		if p.Engine == e {
			known = true
			break
		}
	}
	if !known {
		return errors.New("engine must be one of: " + strings.Join(translate.Engines, ", "))
	}
	if _, err := translate.ParseLanguage(p.TargetLang); err != nil {
		return err
	}
	if p.Preset == translate.PresetCustom {
		if strings.TrimSpace(p.CustomPrompt) == "" {
			return errors.New("custom preset requires custom_prompt or preset_id")
		}
		if err := translate.ValidateCustomPrompt(p.CustomPrompt); err != nil {
			return err
		}
	}
	if p.FromID < 0 || p.ToID < 0 {
		return errors.New("from_id and to_id must not be negative")
	}
	if p.ToID != 0 && p.FromID > p.ToID {
		return errors.New("from_id must not be after to_id")
	}
	return nil
}
