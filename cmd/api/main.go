package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kevalkarani/balance-sheet-buddy/internal/api/handlers"
	"github.com/kevalkarani/balance-sheet-buddy/internal/api/middleware"
	"github.com/kevalkarani/balance-sheet-buddy/internal/config"
	"github.com/kevalkarani/balance-sheet-buddy/internal/gcsuploader"
	infraBQ "github.com/kevalkarani/balance-sheet-buddy/internal/infra/bigquery"
	"github.com/kevalkarani/balance-sheet-buddy/internal/jobs/inmemory"
	"github.com/kevalkarani/balance-sheet-buddy/internal/llm"
	"github.com/kevalkarani/balance-sheet-buddy/internal/logger"
	"github.com/kevalkarani/balance-sheet-buddy/internal/pipeline"
	"github.com/kevalkarani/balance-sheet-buddy/internal/reconciliation"
	"github.com/kevalkarani/balance-sheet-buddy/internal/session"
	"github.com/kevalkarani/balance-sheet-buddy/internal/workspace"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config file")
		port       = flag.String("port", "", "HTTP server port (overrides config)")
		sweep      = flag.Bool("sweep", false, "Run the session sweeper in this process")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	log := logger.NewWithLevel(cfg.Log.Level)
	ctx := logger.WithContext(context.Background(), log)

	if err := cfg.RequireAPIKey(); err != nil {
		log.Fatal().Err(err).Msg("Model API key missing")
	}
	client, err := llm.NewGemini(ctx, llm.GeminiConfig{
		APIKey:      cfg.Model.APIKey,
		Model:       cfg.Model.Name,
		Temperature: cfg.Model.Temperature,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create model client")
	}

	// Run history is optional.
	var (
		recorder pipeline.RunRecorder
		runs     *handlers.RunsHandler
	)
	if cfg.BigQuery.Enabled() {
		repo, err := infraBQ.NewRunRepository(ctx, cfg.BigQuery.Project, cfg.BigQuery.Dataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create run repository")
		}
		defer repo.Close()
		recorder = repo
		runs = handlers.NewRunsHandler(repo, log)
	} else {
		log.Warn().Msg("No BigQuery project configured - run history is disabled")
	}

	storage := gcsuploader.NewGCSStorageService()
	if cfg.GCS.Bucket == "" {
		log.Warn().Msg("No GCS bucket configured - artifacts will not be published")
	}

	analyzer := pipeline.NewAnalyzer(client, recorder, pipeline.Options{
		ModelName:      cfg.Model.Name,
		ModelTimeout:   cfg.Model.Timeout,
		HeaderScanRows: cfg.Loader.HeaderScanRows,
		RenderMarkdown: cfg.Report.RenderMarkdown,
	})
	sessions := session.NewManager(cfg.Sessions.Dir)
	svc := workspace.NewService(sessions, &reconciliation.FileStore{Dir: cfg.Reconciliation.Dir}, client, workspace.Options{
		ModelTimeout: cfg.Model.Timeout,
		ChatMaxRows:  cfg.Model.ChatMaxRows,
	})

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	runner := &handlers.AnalysisRunner{
		Analyzer:  analyzer,
		Source:    &pipeline.FileSource{Storage: storage},
		Workspace: svc,
		Publisher: storage,
		Bucket:    cfg.GCS.Bucket,
	}

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	go func() {
		log.Info().Msg("Starting job worker")
		if err := jobQueue.Start(workerCtx, runner.Handle); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	if *sweep {
		sweeper, err := session.StartSweeper(sessions, session.SweeperConfig{
			Schedule:  cfg.Sessions.CleanupSchedule,
			Timezone:  cfg.Sessions.Timezone,
			Retention: cfg.Sessions.Retention(),
		}, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to start session sweeper")
		}
		defer sweeper.Stop()
	}

	mux := http.NewServeMux()
	handlers.Register(mux, handlers.Routes{
		Analyses: handlers.NewAnalysesHandler(jobQueue, log),
		Jobs:     handlers.NewJobsHandler(jobStore, log),
		Sessions: handlers.NewSessionsHandler(svc, log),
		Runs:     runs,
	})

	// Reconciliation and chat wait on the model inside the request.
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      middleware.Chain(mux, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Model.Timeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}
