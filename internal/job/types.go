package job

import (
	"context"
	"encoding/json"
	"time"
)

// JobType represents the kind of job
type JobType string

const (
	JobTranslate JobType = "translate"
)

// JobStatus represents the current state of a job
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Job represents a queued subtitle translation run
type Job struct {
	ID          string          `json:"id"`
	Type        JobType         `json:"type"`
	Status      JobStatus       `json:"status"`
	FilePath    string          `json:"file_path"`
	Params      json.RawMessage `json:"params"`
	Progress    float64         `json:"progress"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// TranslateParams are parameters for a translation job
type TranslateParams struct {
	TargetLang   string `json:"target_lang"`   // BCP 47 tag: "pt-BR", "ko", "en"
	SourceLang   string `json:"source_lang"`   // "auto" when unknown
	Engine       string `json:"engine"`        // "gemini", "openai", "deepl", "echo"
	Preset       string `json:"preset"`        // "anime", "movie", "documentary", "custom"
	CustomPrompt string `json:"custom_prompt"` // for "custom" preset
	FromID       int    `json:"from_id"`       // 0 = first cue
	ToID         int    `json:"to_id"`         // 0 = last cue
	BatchSize    int    `json:"batch_size"`
	Concurrency  int    `json:"concurrency"`
}

// TranslateResult is the output of a successful translation
type TranslateResult struct {
	OutputPath    string  `json:"output_path"`    // relative to the output directory
	Cues          int     `json:"cues"`           // cues in the file
	Selected      int     `json:"selected"`       // cues inside the requested range
	Translated    int     `json:"translated"`     // cues whose text was replaced
	FailedBatches int     `json:"failed_batches"` // batches that kept original text
	Duration      float64 `json:"duration"`       // processing time in seconds
}

// JobHandler processes a job. The translate package provides the implementation.
type JobHandler func(ctx context.Context, job *Job, updateProgress func(float64)) error
