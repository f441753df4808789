package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/kevalkarani/balance-sheet-buddy/internal/config"
	"github.com/kevalkarani/balance-sheet-buddy/internal/logger"
	"github.com/kevalkarani/balance-sheet-buddy/internal/notionsync"
	"github.com/kevalkarani/balance-sheet-buddy/internal/reconciliation"
	"github.com/kevalkarani/balance-sheet-buddy/internal/session"
	"github.com/kevalkarani/balance-sheet-buddy/internal/workspace"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	sessionID := flag.String("session", "", "Session ID to mirror (required)")
	notionToken := flag.String("notion-token", "", "Notion API token (overrides NOTION_TOKEN)")
	notionDBID := flag.String("notion-db-id", "", "Notion database ID (overrides NOTION_DATABASE_ID)")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.NewWithLevel(cfg.Log.Level)

	if *notionToken != "" {
		cfg.Notion.Token = *notionToken
	}
	if *notionDBID != "" {
		cfg.Notion.DatabaseID = *notionDBID
	}

	if *sessionID == "" {
		log.Fatal().Msg("Error: --session is required")
	}
	if !cfg.Notion.Enabled() {
		log.Fatal().Msg("Error: Notion token and database ID are required")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	svc := workspace.NewService(
		session.NewManager(cfg.Sessions.Dir),
		&reconciliation.FileStore{Dir: cfg.Reconciliation.Dir},
		nil,
		workspace.Options{},
	)
	ws, err := svc.Open(*sessionID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open session")
	}

	notionClient := notionsync.NewNotionClient(cfg.Notion.Token)

	res, err := notionsync.SyncChecklist(ctx, notionClient, cfg.Notion.DatabaseID, ws.Snapshot.SessionID, ws.Records(), ws.Tracker.State(), *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Printf("Sync completed: %d created, %d updated, %d archived, %d failed.\n", res.Created, res.Updated, res.Archived, res.Failed)
	fmt.Println(reconciliation.ProgressText(ws.Progress()))
}
