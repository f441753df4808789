package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/kevalkarani/balance-sheet-buddy/internal/reconciliation"
	"github.com/kevalkarani/balance-sheet-buddy/internal/report"
	"github.com/kevalkarani/balance-sheet-buddy/internal/session"
)

func runSession(args []string) {
	fs := flag.NewFlagSet("session", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to YAML config file")
	out := fs.String("o", "", "Output file for export (default stdout)")
	days := fs.Int("days", 0, "Retention in days for cleanup (default from config)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: cli session [options] list | show ID | export ID | import FILE | cleanup")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(2)
	}

	cfg, log, _ := setup(*configPath)
	sessions := session.NewManager(cfg.Sessions.Dir)
	states := &reconciliation.FileStore{Dir: cfg.Reconciliation.Dir}

	arg := func() string {
		if fs.NArg() < 2 {
			fs.Usage()
			os.Exit(2)
		}
		return fs.Arg(1)
	}

	switch fs.Arg(0) {
	case "list":
		infos, err := sessions.List()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to list sessions")
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SESSION\tMODIFIED\tSIZE")
		for _, info := range infos {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", info.ID, info.ModTime.Format("2006-01-02 15:04:05"), info.Size)
		}
		tw.Flush()

	case "show":
		snap, err := sessions.AutoLoad(arg())
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load session")
		}
		fmt.Println(session.Describe(snap))
		fmt.Println()
		summary := snap.Data.SummaryText
		if summary == "" {
			summary = report.SummaryText(report.Stats(snap.Data.Classification), snap.Data.Classification)
		}
		fmt.Println(summary)

	case "export":
		snap, err := sessions.AutoLoad(arg())
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load session")
		}
		data, err := session.Export(*snap)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to export session")
		}
		if *out == "" {
			os.Stdout.Write(append(data, '\n'))
			return
		}
		if err := os.WriteFile(*out, data, 0o644); err != nil {
			log.Fatal().Err(err).Msg("Failed to write export")
		}
		fmt.Printf("Exported %s to %s\n", snap.SessionID, *out)

	case "import":
		raw, err := os.ReadFile(arg())
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read session file")
		}
		id, err := importSession(sessions, states, raw)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to import session")
		}
		fmt.Printf("Imported %s\n", id)

	case "cleanup":
		retention := cfg.Sessions.Retention()
		if *days > 0 {
			retention = time.Duration(*days) * 24 * time.Hour
		}
		removed, err := sessions.Cleanup(retention)
		if err != nil {
			log.Fatal().Err(err).Msg("Session cleanup failed")
		}
		fmt.Printf("Removed %d session(s)\n", len(removed))
		for _, id := range removed {
			fmt.Printf("  %s\n", id)
		}

	default:
		fs.Usage()
		os.Exit(2)
	}
}

// importSession stores an exported snapshot and restores its reconciliation
// state file. It returns the session id.
func importSession(sessions *session.Manager, states *reconciliation.FileStore, raw []byte) (string, error) {
	snap, err := session.Import(raw)
	if err != nil {
		return "", err
	}
	if snap.SessionID == "" {
		snap.SessionID = session.NewID(snap.Data.Ledger, snap.ExportTimestamp)
	}
	if _, err := sessions.AutoSave(*snap); err != nil {
		return "", err
	}
	if len(snap.Data.ReconciliationState) > 0 {
		if err := states.Save(reconciliation.SessionKey(snap.Data.Ledger), snap.Data.ReconciliationState); err != nil {
			return "", err
		}
	}
	return snap.SessionID, nil
}
