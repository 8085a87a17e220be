package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/subtrans/backend/internal/audit"
	"github.com/subtrans/backend/internal/job"
	"github.com/subtrans/backend/internal/storage"
	"github.com/subtrans/backend/internal/subtitle"
)

// ErrNoCues is returned when the input file holds no usable cue.
var ErrNoCues = errors.New("no subtitle cues found in source")

// Service runs translations of subtitle files, either directly (CLI) or as
// queued jobs (HTTP API).
type Service struct {
	base      EngineConfig
	mediaPath string
	logDir    string
	sink      audit.Sink
	logger    *zap.SugaredLogger
}

// NewService creates a translation service. base supplies credentials and
// defaults; per-run fields in a RunRequest override it. sink receives batch
// audit entries in addition to the per-run files under logDir.
func NewService(base EngineConfig, mediaPath, logDir string, sink audit.Sink, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{
		base:      base,
		mediaPath: mediaPath,
		logDir:    logDir,
		sink:      sink,
		logger:    logger,
	}
}

// RunRequest describes a single translation run.
type RunRequest struct {
	InputPath  string
	OutputPath string // defaults to storage.TranslatedPath(InputPath, TargetLang)

	// From and To bound the cue ids to translate. Zero means the first and
	// last id of the file.
	From int
	To   int

	Engine       string
	TargetLang   string
	SourceLang   string
	Preset       string
	CustomPrompt string

	BatchSize   int
	Concurrency int
	RunID       string

	// DryRun parses and reports the batch plan without calling the oracle
	// or writing output.
	DryRun bool

	OnProgress func(done, total int)
}

// RunResult reports what a run did.
type RunResult struct {
	RunID      string
	InputPath  string
	OutputPath string
	Engine     string
	From       int
	To         int
	Total      int
	Selected   int
	Skipped    []*subtitle.MalformedBlockError
	Result     Result
	Duration   time.Duration
}

// Run translates req.InputPath and writes the result. Configuration problems
// are reported before the input is read and before any batch is sent.
func (s *Service) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	start := time.Now()
	cfg := s.engineConfig(req)

	if req.RunID == "" {
		req.RunID = uuid.New().String()
	}
	log := s.logger.With("run_id", req.RunID, "engine", cfg.Engine)

	var oracle Oracle
	if !req.DryRun {
		var err error
		if oracle, err = NewOracle(ctx, cfg, log); err != nil {
			return nil, err
		}
	}

	cues, report, err := subtitle.ReadFile(req.InputPath)
	if err != nil {
		return nil, err
	}
	for _, b := range report.Skipped {
		log.Warnw("skipped malformed block", "block", b.Block, "reason", b.Reason)
	}
	if len(cues) == 0 {
		return nil, fmt.Errorf("%s: %w", req.InputPath, ErrNoCues)
	}

	from, to := resolveRange(cues, req.From, req.To)
	if from > to {
		log.Warnw("start is after end, nothing will be translated", "from", from, "to", to)
	}

	out := req.OutputPath
	if out == "" {
		out = storage.TranslatedPath(req.InputPath, cfg.Prompt.TargetLang)
	}

	res := &RunResult{
		RunID:      req.RunID,
		InputPath:  req.InputPath,
		OutputPath: out,
		Engine:     cfg.Engine,
		From:       from,
		To:         to,
		Total:      len(cues),
		Skipped:    report.Skipped,
	}
	for _, c := range cues {
		if c.InRange(from, to) {
			res.Selected++
		}
	}

	if req.DryRun {
		res.Result = planOnly(cues, from, to, req.BatchSize)
		res.Duration = time.Since(start)
		log.Infow("dry run", "cues", res.Total, "selected", res.Selected, "batches", len(res.Result.Batches))
		return res, nil
	}

	sink := audit.Multi{s.sink}
	if s.logDir != "" {
		prefix := strings.TrimSuffix(filepath.Base(req.InputPath), filepath.Ext(req.InputPath))
		sink = append(sink, audit.NewFileSink(s.logDir, prefix))
	}

	orch := NewOrchestrator(oracle, Options{
		BatchSize:   req.BatchSize,
		Concurrency: req.Concurrency,
		RunID:       req.RunID,
		OnProgress:  req.OnProgress,
	}, sink, log)
	res.Result = orch.TranslateRange(ctx, cues, from, to)
	if err := ctx.Err(); err != nil {
		res.Duration = time.Since(start)
		log.Warnw("translation interrupted, output not written", "output", out, "translated", res.Result.Translated())
		return res, fmt.Errorf("translation interrupted: %w", err)
	}

	if err := subtitle.WriteFile(out, res.Result.Cues); err != nil {
		return res, fmt.Errorf("write output: %w", err)
	}
	res.Duration = time.Since(start)

	log.Infow("translation written",
		"output", out,
		"translated", res.Result.Translated(),
		"selected", res.Selected,
		"duration", res.Duration.Round(time.Millisecond).String(),
	)
	return res, nil
}

// HandleJob processes a queued translation job. The job's file path is
// relative to the media directory and the output is written next to it.
func (s *Service) HandleJob(ctx context.Context, j *job.Job, updateProgress func(float64)) error {
	var params job.TranslateParams
	if err := json.Unmarshal(j.Params, &params); err != nil {
		return fmt.Errorf("unmarshal params: %w", err)
	}

	input, err := storage.SafeJoin(s.mediaPath, j.FilePath)
	if err != nil {
		return fmt.Errorf("resolve input: %w", err)
	}

	res, err := s.Run(ctx, RunRequest{
		InputPath:    input,
		From:         params.FromID,
		To:           params.ToID,
		Engine:       params.Engine,
		TargetLang:   params.TargetLang,
		SourceLang:   params.SourceLang,
		Preset:       params.Preset,
		CustomPrompt: params.CustomPrompt,
		BatchSize:    params.BatchSize,
		Concurrency:  params.Concurrency,
		RunID:        j.ID,
		OnProgress: func(done, total int) {
			updateProgress(float64(done) / float64(total))
		},
	})
	if err != nil {
		return err
	}

	rel, err := filepath.Rel(s.mediaPath, res.OutputPath)
	if err != nil {
		rel = res.OutputPath
	}
	resultJSON, _ := json.Marshal(job.TranslateResult{
		OutputPath:    rel,
		Cues:          res.Total,
		Selected:      res.Selected,
		Translated:    res.Result.Translated(),
		FailedBatches: res.Result.FailedBatches(),
		Duration:      res.Duration.Seconds(),
	})
	j.Result = resultJSON

	updateProgress(1.0)
	return nil
}

// engineConfig layers the per-run fields of req over the service defaults.
func (s *Service) engineConfig(req RunRequest) EngineConfig {
	cfg := s.base
	if req.Engine != "" {
		cfg.Engine = req.Engine
	}
	if req.TargetLang != "" {
		cfg.Prompt.TargetLang = req.TargetLang
	}
	if req.SourceLang != "" {
		cfg.Prompt.SourceLang = req.SourceLang
	}
	if cfg.Prompt.SourceLang == "" || cfg.Prompt.SourceLang == "auto" {
		cfg.Prompt.SourceLang = detectSourceLang(req.InputPath)
	}
	if req.Preset != "" {
		cfg.Prompt.Preset = req.Preset
	}
	if req.CustomPrompt != "" {
		cfg.Prompt.CustomPrompt = req.CustomPrompt
	}
	return cfg
}

// resolveRange replaces zero bounds with the smallest and largest cue id.
func resolveRange(cues []subtitle.Cue, from, to int) (int, int) {
	minID, maxID := cues[0].ID, cues[0].ID
	for _, c := range cues[1:] {
		if c.ID < minID {
			minID = c.ID
		}
		if c.ID > maxID {
			maxID = c.ID
		}
	}
	if from == 0 {
		from = minID
	}
	if to == 0 {
		to = maxID
	}
	return from, to
}

// planOnly returns the batches a run would send, all left pending.
func planOnly(cues []subtitle.Cue, from, to, batchSize int) Result {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	sorted := subtitle.SortByID(cues)
	var selected []subtitle.Cue
	for _, c := range sorted {
		if c.InRange(from, to) {
			selected = append(selected, c)
		}
	}
	res := Result{Cues: sorted}
	for i, b := range chunk(selected, batchSize) {
		res.Batches = append(res.Batches, BatchReport{
			Number:  i + 1,
			FirstID: b[0].ID,
			LastID:  b[len(b)-1].ID,
			Size:    len(b),
			State:   BatchPending,
		})
	}
	return res
}

// detectSourceLang reads a language marker from a file name:
// "show.en.srt" gives "en". It returns "auto" when there is none.
func detectSourceLang(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	parts := strings.Split(name, ".")
	if len(parts) >= 2 {
		lang := parts[len(parts)-1]
		if _, err := ParseLanguage(lang); err == nil && len(lang) >= 2 && len(lang) <= 6 {
			return lang
		}
	}
	return "auto"
}
