package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/subtrans/backend/internal/audit"
	"github.com/subtrans/backend/internal/subtitle/translate"
)

type translateOptions struct {
	input        string
	output       string
	from         int
	to           int
	engine       string
	targetLang   string
	sourceLang   string
	batchSize    int
	concurrency  int
	preset       string
	customPrompt string
	dryRun       bool
}

func newTranslateCmd(root *rootOptions) *cobra.Command {
	opts := &translateOptions{}

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate a range of cues of a subtitle file",
		Example: `  subtrans translate --input-file show.en.srt --target-lang pt-BR
  subtrans translate --input-file show.en.srt --start-block 100 --end-block 200 --engine deepl`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(cmd, root, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.input, "input-file", "i", "", "Subtitle file to translate (required)")
	f.StringVarP(&opts.output, "output-file", "o", "", "Output file (default: <input>.<target-lang>.srt)")
	f.IntVar(&opts.from, "start-block", 0, "First cue id to translate (default: first cue)")
	f.IntVar(&opts.to, "end-block", 0, "Last cue id to translate (default: last cue)")
	f.StringVarP(&opts.engine, "engine", "e", "", "Engine: gemini, openai, deepl, echo (default: $TRANSLATE_ENGINE)")
	f.StringVarP(&opts.targetLang, "target-lang", "t", "", "Target language tag (default: $TARGET_LANG)")
	f.StringVarP(&opts.sourceLang, "source-lang", "s", "", "Source language tag or auto (default: $SOURCE_LANG)")
	f.IntVarP(&opts.batchSize, "batch-size", "b", 0, "Cues per request (default: $BATCH_SIZE)")
	f.IntVarP(&opts.concurrency, "concurrency", "c", 0, "Batches in flight at once (default: $BATCH_CONCURRENCY)")
	f.StringVar(&opts.preset, "preset", "", "Prompt preset: movie, anime, documentary, custom")
	f.StringVar(&opts.customPrompt, "custom-prompt", "", "Instructions for the custom preset")
	f.BoolVar(&opts.dryRun, "dry-run", false, "Show the batch plan without calling the engine")
	cmd.MarkFlagRequired("input-file")

	return cmd
}

func runTranslate(cmd *cobra.Command, root *rootOptions, opts *translateOptions) error {
	if opts.from < 0 || opts.to < 0 {
		return errors.New("--start-block and --end-block must not be negative")
	}
	if opts.customPrompt != "" && opts.preset == "" {
		opts.preset = translate.PresetCustom
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := root.cfg
	svc := translate.NewService(cfg.EngineConfig(nil), "", cfg.LogDir, audit.Nop{}, root.logger)

	res, err := svc.Run(ctx, translate.RunRequest{
		InputPath:    opts.input,
		OutputPath:   opts.output,
		From:         opts.from,
		To:           opts.to,
		Engine:       opts.engine,
		TargetLang:   opts.targetLang,
		SourceLang:   opts.sourceLang,
		Preset:       opts.preset,
		CustomPrompt: opts.customPrompt,
		BatchSize:    orDefault(opts.batchSize, cfg.BatchSize),
		Concurrency:  orDefault(opts.concurrency, cfg.BatchConcurrency),
		DryRun:       opts.dryRun,
		OnProgress: func(done, total int) {
			root.logger.Infow("progress", "batches", fmt.Sprintf("%d/%d", done, total))
		},
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return errors.New("interrupted")
		}
		return err
	}

	printSummary(cmd, res, opts.dryRun)
	return nil
}

func printSummary(cmd *cobra.Command, res *translate.RunResult, dryRun bool) {
	out := cmd.OutOrStdout()

	if dryRun {
		fmt.Fprintf(out, "%s: %d cues, %d selected (%d-%d), %d batches\n",
			res.InputPath, res.Total, res.Selected, res.From, res.To, len(res.Result.Batches))
		for _, b := range res.Result.Batches {
			fmt.Fprintf(out, "  batch %d: cues %d-%d (%d)\n", b.Number, b.FirstID, b.LastID, b.Size)
		}
		return
	}

	fmt.Fprintf(out, "%s -> %s\n", res.InputPath, res.OutputPath)
	fmt.Fprintf(out, "  engine:     %s\n", res.Engine)
	fmt.Fprintf(out, "  cues:       %d selected of %d (%d-%d)\n", res.Selected, res.Total, res.From, res.To)
	fmt.Fprintf(out, "  translated: %d\n", res.Result.Translated())
	fmt.Fprintf(out, "  batches:    %d (%d failed)\n", len(res.Result.Batches), res.Result.FailedBatches())
	if len(res.Skipped) > 0 {
		fmt.Fprintf(out, "  skipped:    %d malformed blocks\n", len(res.Skipped))
	}
	fmt.Fprintf(out, "  duration:   %s\n", res.Duration.Round(time.Millisecond))

	for _, b := range res.Result.Batches {
		if b.State == translate.BatchSuccess {
			continue
		}
		fmt.Fprintf(out, "  batch %d (%d-%d) %s", b.Number, b.FirstID, b.LastID, b.State)
		if len(b.Missing) > 0 {
			fmt.Fprintf(out, ", missing %v", b.Missing)
		}
		if b.Error != "" {
			fmt.Fprintf(out, ": %s", b.Error)
		}
		fmt.Fprintln(out)
	}
}

func orDefault(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
