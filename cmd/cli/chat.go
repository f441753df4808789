package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kevalkarani/balance-sheet-buddy/internal/pipeline"
)

func runChat(args []string) {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to YAML config file")
	sessionID := fs.String("session", "", "Session ID")
	question := fs.String("q", "", "Ask a single question and exit")
	transcript := fs.String("transcript", "", "Write the conversation to this file on exit")
	fs.Parse(args)

	if *sessionID == "" {
		fmt.Fprintln(os.Stderr, "Usage: cli chat -session ID [-q QUESTION]")
		os.Exit(2)
	}

	cfg, log, ctx := setup(*configPath)

	client, err := newModelClient(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create model client")
	}
	svc := newWorkspace(cfg, client)
	ws, err := svc.Open(*sessionID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open session")
	}
	if len(ws.Snapshot.Data.GLEntries) == 0 {
		log.Warn().Str("session_id", *sessionID).Msg("Session has no GL entries")
	}

	chat := svc.Chat(ws, nil)
	if *question != "" {
		answer, err := chat.Ask(ctx, *question)
		if err != nil {
			log.Fatal().Err(err).Msg("Chat failed")
		}
		fmt.Println(answer)
	} else {
		repl(ctx, chat, os.Stdin, os.Stdout)
	}

	if *transcript != "" {
		if err := os.WriteFile(*transcript, []byte(chat.Transcript()+"\n"), 0o644); err != nil {
			log.Fatal().Err(err).Msg("Failed to write transcript")
		}
	}
}

// repl reads questions line by line until EOF, "exit" or "quit".
func repl(ctx context.Context, chat *pipeline.Chat, in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	fmt.Fprintln(out, "Ask about the GL. Type 'exit' to quit.")
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return
		}
		q := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(q) {
		case "":
			continue
		case "exit", "quit":
			return
		}
		answer, err := chat.Ask(ctx, q)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		fmt.Fprintln(out, answer)
	}
}
