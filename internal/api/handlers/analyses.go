package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kevalkarani/balance-sheet-buddy/internal/api/middleware"
	"github.com/kevalkarani/balance-sheet-buddy/internal/gcsuploader"
	"github.com/kevalkarani/balance-sheet-buddy/internal/jobs"
	"github.com/kevalkarani/balance-sheet-buddy/internal/logger"
	"github.com/kevalkarani/balance-sheet-buddy/internal/pipeline"
	"github.com/kevalkarani/balance-sheet-buddy/internal/workspace"
)

// AnalysesHandler handles analysis submission.
type AnalysesHandler struct {
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewAnalysesHandler creates a new analyses handler.
func NewAnalysesHandler(publisher jobs.Publisher, log zerolog.Logger) *AnalysesHandler {
	return &AnalysesHandler{publisher: publisher, log: log}
}

// AnalysisRequest is the body of POST /api/analyses.
type AnalysisRequest struct {
	TrialBalance string   `json:"trial_balance"`
	Mapping      string   `json:"mapping"`
	GL           []string `json:"gl"`
	Mode         string   `json:"mode"`
}

// CreateAnalysis handles POST /api/analyses
func (h *AnalysesHandler) CreateAnalysis(w http.ResponseWriter, r *http.Request) {
	var req AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.TrialBalance = strings.TrimSpace(req.TrialBalance)
	req.Mapping = strings.TrimSpace(req.Mapping)
	if req.TrialBalance == "" || req.Mapping == "" {
		middleware.WriteError(w, http.StatusBadRequest, "trial_balance and mapping are required")
		return
	}
	mode, ok := pipeline.ParseMode(req.Mode)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, fmt.Sprintf("Unknown mode %q", req.Mode))
		return
	}

	job := &jobs.AnalysisJob{
		Mode:         string(mode),
		TrialBalance: req.TrialBalance,
		Mapping:      req.Mapping,
		GL:           req.GL,
	}
	if err := h.publisher.PublishAnalysis(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue analysis job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue analysis job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("mode", job.Mode).Msg("Analysis job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// Analyzer runs one analysis.
type Analyzer interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// ArtifactPublisher uploads analysis outputs.
type ArtifactPublisher interface {
	PublishArtifacts(ctx context.Context, bucketName, sessionID string, artifacts []gcsuploader.Artifact) ([]string, error)
}

// AnalysisRunner executes analysis jobs taken from the queue.
type AnalysisRunner struct {
	Analyzer  Analyzer
	Source    *pipeline.FileSource
	Workspace *workspace.Service
	// Publisher and Bucket are optional; artifacts are published when both are set.
	Publisher ArtifactPublisher
	Bucket    string
}

// Handle implements jobs.JobHandler. Input errors are permanent.
func (r *AnalysisRunner) Handle(ctx context.Context, job jobs.Job) error {
	aj, ok := job.(*jobs.AnalysisJob)
	if !ok {
		return jobs.Permanent(fmt.Errorf("unexpected job type: %T", job))
	}
	log := logger.FromContext(ctx).With().Str("job_id", aj.JobID).Logger()
	ctx = logger.WithContext(ctx, log)

	mode, ok := pipeline.ParseMode(aj.Mode)
	if !ok {
		return jobs.Permanent(fmt.Errorf("unknown mode %q", aj.Mode))
	}

	req, err := r.Source.OpenRequest(ctx, aj.TrialBalance, aj.Mapping, aj.GL, mode)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return jobs.Permanent(err)
		}
		return err
	}

	res, err := r.Analyzer.Run(ctx, req)
	if err != nil {
		if pipeline.IsInputError(err) {
			return jobs.Permanent(err)
		}
		return err
	}

	aj.SessionID = res.SessionID
	aj.RunID = res.RunID
	aj.Warnings = res.Warnings

	if _, err := r.Workspace.Save(res); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	if r.Publisher != nil && r.Bucket != "" {
		uris, err := r.Publisher.PublishArtifacts(ctx, r.Bucket, res.SessionID, res.Artifacts())
		aj.Artifacts = uris
		if err != nil {
			log.Warn().Err(err).Msg("Publishing artifacts failed")
			aj.Warnings = append(aj.Warnings, "publishing artifacts failed: "+err.Error())
		}
	}

	log.Info().
		Str("session_id", res.SessionID).
		Int("records", len(res.Records)).
		Str("source", string(res.Source)).
		Msg("Analysis job completed")
	return nil
}
