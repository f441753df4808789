package session

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultRetention is how long sessions are kept by the sweeper.
const DefaultRetention = 7 * 24 * time.Hour

// SweeperConfig schedules periodic session cleanup.
type SweeperConfig struct {
	Schedule  string // cron spec, e.g. "0 3 * * *"
	Timezone  string
	Retention time.Duration
}

// StartSweeper runs Cleanup on the given schedule. Callers stop the returned cron.
func StartSweeper(m *Manager, cfg SweeperConfig, log zerolog.Logger) (*cron.Cron, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = "0 3 * * *"
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		loc = time.UTC
	}

	c := cron.New(cron.WithLocation(loc))
	_, err = c.AddFunc(cfg.Schedule, func() {
		removed, err := m.Cleanup(cfg.Retention)
		if err != nil {
			log.Error().Err(err).Str("dir", m.Dir()).Msg("session cleanup failed")
			return
		}
		log.Info().Int("removed", len(removed)).Str("dir", m.Dir()).Msg("session cleanup finished")
	})
	if err != nil {
		return nil, fmt.Errorf("StartSweeper: unable to schedule cleanup %q: %w", cfg.Schedule, err)
	}

	c.Start()
	log.Info().Str("schedule", cfg.Schedule).Str("timezone", loc.String()).Dur("retention", cfg.Retention).Msg("session sweeper started")
	return c, nil
}
