package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kevalkarani/balance-sheet-buddy/internal/gcsuploader"
	infraBQ "github.com/kevalkarani/balance-sheet-buddy/internal/infra/bigquery"
	"github.com/kevalkarani/balance-sheet-buddy/internal/pipeline"
)

func runAnalyze(args []string) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to YAML config file")
	tb := fs.String("tb", "", "Trial balance file (path or gs:// URI)")
	mapping := fs.String("mapping", "", "Account mapping file (path or gs:// URI)")
	mode := fs.String("mode", string(pipeline.ModeClassification), "classification, mismatch-only or full")
	outDir := fs.String("out", "output", "Directory for the generated reports")
	publish := fs.Bool("publish", false, "Also upload the reports to the configured GCS bucket")
	var gl stringList
	fs.Var(&gl, "gl", "GL detail file (repeatable or comma separated)")
	fs.Parse(args)

	if *tb == "" || *mapping == "" {
		fmt.Fprintln(os.Stderr, "Usage: cli analyze -tb FILE -mapping FILE [-gl FILE]... [-mode MODE] [-out DIR]")
		os.Exit(2)
	}
	m, ok := pipeline.ParseMode(*mode)
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown mode %q\n", *mode)
		os.Exit(2)
	}

	cfg, log, ctx := setup(*configPath)

	client, err := newModelClient(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create model client")
	}

	var recorder pipeline.RunRecorder
	if cfg.BigQuery.Enabled() {
		repo, err := infraBQ.NewRunRepository(ctx, cfg.BigQuery.Project, cfg.BigQuery.Dataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create run repository")
		}
		defer repo.Close()
		recorder = repo
	}

	storage := gcsuploader.NewGCSStorageService()
	source := &pipeline.FileSource{Storage: storage}
	req, err := source.OpenRequest(ctx, *tb, *mapping, gl, m)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read input files")
	}

	analyzer := pipeline.NewAnalyzer(client, recorder, pipeline.Options{
		ModelName:      cfg.Model.Name,
		ModelTimeout:   cfg.Model.Timeout,
		HeaderScanRows: cfg.Loader.HeaderScanRows,
		RenderMarkdown: cfg.Report.RenderMarkdown,
	})
	res, err := analyzer.Run(ctx, req)
	if err != nil {
		log.Fatal().Err(err).Msg("Analysis failed")
	}

	svc := newWorkspace(cfg, client)
	sessionPath, err := svc.Save(res)
	if err != nil {
		log.Error().Err(err).Msg("Failed to save session")
	}

	artifacts := res.Artifacts()
	written, err := writeArtifacts(*outDir, artifacts)
	if err != nil {
		log.Fatal().Err(err).Str("dir", *outDir).Msg("Failed to write reports")
	}

	fmt.Println(res.SummaryText)
	fmt.Println()
	fmt.Printf("Session:  %s\n", res.SessionID)
	if sessionPath != "" {
		fmt.Printf("Saved to: %s\n", sessionPath)
	}
	fmt.Printf("Source:   %s\n", res.Source)
	for _, p := range written {
		fmt.Printf("Wrote     %s\n", p)
	}
	for _, w := range res.Warnings {
		fmt.Printf("Warning:  %s\n", w)
	}

	if *publish {
		if cfg.GCS.Bucket == "" {
			log.Fatal().Msg("No GCS bucket configured (set GCS_BUCKET)")
		}
		uris, err := storage.PublishArtifacts(ctx, cfg.GCS.Bucket, res.SessionID, artifacts)
		if err != nil {
			log.Fatal().Err(err).Msg("Publishing reports failed")
		}
		for _, uri := range uris {
			fmt.Printf("Uploaded  %s\n", uri)
		}
	}
}

// writeArtifacts writes each artifact into dir and returns the paths written.
func writeArtifacts(dir string, artifacts []gcsuploader.Artifact) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("writeArtifacts: %w", err)
	}
	paths := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		p := filepath.Join(dir, filepath.Base(a.Name))
		if err := os.WriteFile(p, a.Data, 0o644); err != nil {
			return paths, fmt.Errorf("writeArtifacts: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}
