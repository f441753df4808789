package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/kevalkarani/balance-sheet-buddy/internal/llm"
	"github.com/kevalkarani/balance-sheet-buddy/internal/prompts"
	"github.com/kevalkarani/balance-sheet-buddy/internal/reconciliation"
	"github.com/kevalkarani/balance-sheet-buddy/internal/workspace"
)

func runReconcile(args []string) {
	fs := flag.NewFlagSet("reconcile", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to YAML config file")
	sessionID := fs.String("session", "", "Session ID")
	filter := fs.String("filter", "all", "all, not-reconciled, reconciled or mismatch")
	subcategory := fs.String("subcategory", "", "Only list accounts in this subcategory")
	account := fs.String("account", "", "Account to work on")
	action := fs.String("action", "analyze", "analyze, reconcile, unreconcile or report")
	memo := fs.String("memo", "", "Memo stored when marking an account reconciled")
	out := fs.String("o", "", "Write the account report to this file")
	fs.Parse(args)

	if *sessionID == "" {
		fmt.Fprintln(os.Stderr, "Usage: cli reconcile -session ID [-filter F] [-account NAME -action A]")
		os.Exit(2)
	}
	f, err := reconciliation.ParseFilter(*filter)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, log, ctx := setup(*configPath)

	var client llm.Client
	if *account != "" && *action == "analyze" {
		if client, err = newModelClient(ctx, cfg); err != nil {
			log.Fatal().Err(err).Msg("Failed to create model client")
		}
	}
	svc := newWorkspace(cfg, client)

	ws, err := svc.Open(*sessionID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open session")
	}

	if *account == "" {
		printAccounts(ws, f, *subcategory)
		return
	}

	switch *action {
	case "analyze":
		if _, err := svc.Reconcile(ctx, ws, *account); err != nil {
			log.Fatal().Err(err).Msg("Reconciliation failed")
		}
		printReport(svc, ws, *account, *out)
	case "report":
		printReport(svc, ws, *account, *out)
	case "reconcile":
		entry, err := svc.MarkReconciled(ws, *account, *memo)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to mark account reconciled")
		}
		fmt.Printf("Marked %s reconciled at %s\n", *account, entry.Timestamp.Format("2006-01-02 15:04:05"))
		if entry.Memo != "" {
			fmt.Printf("Memo: %s\n", entry.Memo)
		}
		fmt.Println(reconciliation.ProgressText(ws.Progress()))
	case "unreconcile":
		if _, err := svc.MarkNotReconciled(ws, *account); err != nil {
			log.Fatal().Err(err).Msg("Failed to mark account not reconciled")
		}
		fmt.Printf("Marked %s not reconciled\n", *account)
		fmt.Println(reconciliation.ProgressText(ws.Progress()))
	default:
		fmt.Fprintf(os.Stderr, "Unknown action %q\n", *action)
		os.Exit(2)
	}
}

func printAccounts(ws *workspace.Workspace, f reconciliation.Filter, subcategory string) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tACCOUNT\tSUBCATEGORY\tDEBIT\tCREDIT\tSTATUS")
	for _, r := range ws.Filter(f, subcategory) {
		mark := "[ ]"
		if ws.Tracker.IsReconciled(r.Account) {
			mark = "[x]"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			mark, r.Account, r.Subcategory, prompts.FormatAmount(r.Debit), prompts.FormatAmount(r.Credit), r.Status)
	}
	tw.Flush()
	fmt.Println()
	fmt.Println(reconciliation.ProgressText(ws.Progress()))
}

func printReport(svc *workspace.Service, ws *workspace.Workspace, account, out string) {
	text, err := svc.Report(ws, account)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if out == "" {
		fmt.Print(text)
		return
	}
	if err := os.WriteFile(out, []byte(text), 0o644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", out)
}
