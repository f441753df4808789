package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kevalkarani/balance-sheet-buddy/internal/config"
	"github.com/kevalkarani/balance-sheet-buddy/internal/llm"
	"github.com/kevalkarani/balance-sheet-buddy/internal/logger"
	"github.com/kevalkarani/balance-sheet-buddy/internal/reconciliation"
	"github.com/kevalkarani/balance-sheet-buddy/internal/session"
	"github.com/kevalkarani/balance-sheet-buddy/internal/workspace"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "analyze":
		runAnalyze(os.Args[2:])
	case "reconcile":
		runReconcile(os.Args[2:])
	case "chat":
		runChat(os.Args[2:])
	case "session":
		runSession(os.Args[2:])
	case "upload":
		runUpload(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Balance Sheet Buddy CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  analyze     Classify a trial balance and write the reports")
	fmt.Println("  reconcile   Review and reconcile the accounts of a session")
	fmt.Println("  chat        Ask questions about the GL of a session")
	fmt.Println("  session     List, show, export, import or clean up sessions")
	fmt.Println("  upload      Upload a file to GCS")
	fmt.Println("  help        Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// setup loads the configuration and builds the logger every command uses.
func setup(configPath string) (*config.Config, zerolog.Logger, context.Context) {
	cfg, err := config.Load(configPath)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.NewWithLevel(cfg.Log.Level)
	return cfg, log, logger.WithContext(context.Background(), log)
}

func newModelClient(ctx context.Context, cfg *config.Config) (llm.Client, error) {
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}
	return llm.NewGemini(ctx, llm.GeminiConfig{
		APIKey:      cfg.Model.APIKey,
		Model:       cfg.Model.Name,
		Temperature: cfg.Model.Temperature,
	})
}

// newWorkspace opens the session store. client may be nil for commands that
// never call the model.
func newWorkspace(cfg *config.Config, client llm.Client) *workspace.Service {
	return workspace.NewService(
		session.NewManager(cfg.Sessions.Dir),
		&reconciliation.FileStore{Dir: cfg.Reconciliation.Dir},
		client,
		workspace.Options{ModelTimeout: cfg.Model.Timeout, ChatMaxRows: cfg.Model.ChatMaxRows},
	)
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*s = append(*s, part)
		}
	}
	return nil
}
