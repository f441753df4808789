package notionsync

import (
	"context"
	"fmt"
	"strings"

	"github.com/jomei/notionapi"

	"github.com/kevalkarani/balance-sheet-buddy/internal/domain"
	"github.com/kevalkarani/balance-sheet-buddy/internal/logger"
	"github.com/kevalkarani/balance-sheet-buddy/internal/reconciliation"
)

// BatchSize defines the number of accounts processed per logged batch
const BatchSize = 100

// SyncResult counts what a sync did. In dry-run mode it counts what it would do.
type SyncResult struct {
	Created  int
	Updated  int
	Archived int
	Failed   int
}

// SyncChecklist makes the Notion database mirror the accounts of one session:
//  1. Query all existing checklist pages
//  2. Archive pages whose account is not in records, and duplicate pages
//  3. Update the page of every known account and create the missing ones
//
// Failures on single pages are logged and counted; only the initial query
// fails the sync.
func SyncChecklist(ctx context.Context, notionClient NotionService, notionDBID, sessionID string, records []domain.ClassificationRecord, state reconciliation.State, dryRun bool) (SyncResult, error) {
	log := logger.FromContext(ctx).With().Str("session_id", sessionID).Bool("dry_run", dryRun).Logger()
	var res SyncResult

	log.Info().Int("accounts", len(records)).Msg("Starting checklist sync to Notion")

	wanted := make(map[string]bool, len(records))
	for _, r := range records {
		wanted[strings.TrimSpace(r.Account)] = true
	}

	pages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return res, fmt.Errorf("SyncChecklist: %w", err)
	}
	log.Info().Int("notion_page_count", len(pages)).Msg("Retrieved existing Notion pages")

	existing := make(map[string]string, len(pages))
	for _, page := range pages {
		account := strings.TrimSpace(extractAccount(page))
		pageID := string(page.ID)
		_, dup := existing[account]
		if account != "" && wanted[account] && !dup {
			existing[account] = pageID
			continue
		}

		if dryRun {
			log.Info().Str("account", account).Str("page_id", pageID).Msg("[DRY RUN] Would archive stale Notion page")
			res.Archived++
			continue
		}
		if err := notionClient.ArchivePage(ctx, pageID); err != nil {
			log.Warn().Err(err).Str("account", account).Str("page_id", pageID).Msg("Failed to archive stale Notion page")
			res.Failed++
			continue
		}
		res.Archived++
	}

	for i := 0; i < len(records); i += BatchSize {
		end := min(i+BatchSize, len(records))
		log.Debug().Int("batch_start", i).Int("batch_end", end).Msg("Processing batch")

		for _, rec := range records[i:end] {
			account := strings.TrimSpace(rec.Account)
			pageID, found := existing[account]

			if dryRun {
				if found {
					log.Info().Str("account", account).Str("page_id", pageID).Msg("[DRY RUN] Would update Notion page")
					res.Updated++
				} else {
					log.Info().Str("account", account).Msg("[DRY RUN] Would create Notion page")
					res.Created++
				}
				continue
			}

			props := AccountToNotionProperties(sessionID, rec, state[rec.Account])
			if found {
				if _, err := notionClient.UpdatePage(ctx, pageID, props); err != nil {
					log.Warn().Err(err).Str("account", account).Str("page_id", pageID).Msg("Failed to update Notion page")
					res.Failed++
					continue
				}
				res.Updated++
				continue
			}

			page, err := notionClient.CreatePage(ctx, notionDBID, props)
			if err != nil {
				log.Warn().Err(err).Str("account", account).Msg("Failed to create Notion page")
				res.Failed++
				continue
			}
			// Later duplicates of the same account update this page
			existing[account] = string(page.ID)
			res.Created++
		}
	}

	log.Info().
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("archived", res.Archived).
		Int("failed", res.Failed).
		Msg("Checklist sync completed")

	return res, nil
}

// queryAllNotionPages follows the pagination cursor until every page is read.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: 100,
		}

		// Only set StartCursor if we have a cursor value
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
