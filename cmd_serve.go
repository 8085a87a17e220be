package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/subtrans/backend/internal/api"
	"github.com/subtrans/backend/internal/api/handlers"
	"github.com/subtrans/backend/internal/auth"
	"github.com/subtrans/backend/internal/db"
	"github.com/subtrans/backend/internal/job"
	"github.com/subtrans/backend/internal/subtitle/translate"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the translation job worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port > 0 {
				root.cfg.Port = port
			}
			return runServe(cmd.Context(), root)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (default: $PORT or 8080)")
	return cmd
}

func runServe(ctx context.Context, root *rootOptions) error {
	cfg, logger := root.cfg, root.logger

	// Ensure data directory exists
	if err := os.MkdirAll(cfg.DataPath, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	database, err := db.NewSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer database.Close()

	if err := database.EnsureAdmin(cfg.AdminUsername, cfg.AdminPassword); err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	logger.Infow("admin user ensured", "username", cfg.AdminUsername)

	jwtService := auth.NewJWTService(cfg.JWTSecret)

	// The model can be changed from the settings page without a restart
	resolveModel := func() string {
		return database.GetSetting(handlers.SettingGeminiModel, cfg.GeminiModel)
	}

	svc := translate.NewService(cfg.EngineConfig(resolveModel), cfg.MediaPath, cfg.LogDir, database, logger)

	queue := job.NewJobQueue(database.DB(), logger)
	queue.RegisterHandler(job.JobTranslate, svc.HandleJob)
	queue.Start()
	defer queue.Stop()

	var lister handlers.ModelLister
	if cfg.GeminiAPIKey != "" {
		completer, err := translate.NewGeminiCompleter(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, resolveModel)
		if err != nil {
			logger.Warnw("gemini model listing disabled", "error", err)
		} else {
			lister = handlers.GeminiModelLister{Completer: completer}
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	router := api.NewRouter(api.Deps{
		DB:          database,
		JWT:         jwtService,
		Config:      cfg,
		Queue:       queue,
		ModelLister: lister,
		Logger:      logger,
		Done:        ctx.Done(),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("starting server", "addr", srv.Addr, "media_path", cfg.MediaPath, "engine", cfg.Engine)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
