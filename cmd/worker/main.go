package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/kevalkarani/balance-sheet-buddy/internal/config"
	"github.com/kevalkarani/balance-sheet-buddy/internal/logger"
	"github.com/kevalkarani/balance-sheet-buddy/internal/session"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config file")
		once       = flag.Bool("once", false, "Run one cleanup pass and exit")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.NewWithLevel(cfg.Log.Level)

	sessions := session.NewManager(cfg.Sessions.Dir)

	if *once {
		removed, err := sessions.Cleanup(cfg.Sessions.Retention())
		if err != nil {
			log.Fatal().Err(err).Str("dir", sessions.Dir()).Msg("Session cleanup failed")
		}
		log.Info().Int("removed", len(removed)).Strs("sessions", removed).Msg("Session cleanup finished")
		return
	}

	log.Info().Str("dir", sessions.Dir()).Msg("Starting session sweeper")

	sweeper, err := session.StartSweeper(sessions, session.SweeperConfig{
		Schedule:  cfg.Sessions.CleanupSchedule,
		Timezone:  cfg.Sessions.Timezone,
		Retention: cfg.Sessions.Retention(),
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start session sweeper")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down session sweeper...")

	// Wait for a running cleanup to finish
	<-sweeper.Stop().Done()

	log.Info().Msg("Session sweeper exited")
}
