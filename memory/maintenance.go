package memory

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Maintenance schedules periodic consolidation runs. The default schedule
// is weekly, early Sunday morning, while nobody is talking to the villagers.
type Maintenance struct {
	consolidator *Consolidator
	schedule     string
	cron         *cron.Cron
	logger       zerolog.Logger
}

// DefaultMaintenanceSchedule runs consolidation at 03:00 every Sunday.
const DefaultMaintenanceSchedule = "0 3 * * 0"

// NewMaintenance creates a Maintenance runner. An empty schedule uses the
// weekly default.
func NewMaintenance(consolidator *Consolidator, schedule string, logger zerolog.Logger) *Maintenance {
	if schedule == "" {
		schedule = DefaultMaintenanceSchedule
	}
	return &Maintenance{
		consolidator: consolidator,
		schedule:     schedule,
		cron:         cron.New(),
		logger:       logger.With().Str("component", "memory_maintenance").Logger(),
	}
}

// Start registers the consolidation job and begins the scheduler.
func (m *Maintenance) Start(ctx context.Context) error {
	_, err := m.cron.AddFunc(m.schedule, func() {
		if err := m.consolidator.Run(ctx); err != nil {
			m.logger.Error().Err(err).Msg("Scheduled consolidation failed")
		}
	})
	if err != nil {
		return err
	}
	m.cron.Start()
	m.logger.Info().Str("schedule", m.schedule).Msg("Memory maintenance scheduled")
	return nil
}

// Stop halts the scheduler, waiting for a running job to finish.
func (m *Maintenance) Stop() {
	stopCtx := m.cron.Stop()
	<-stopCtx.Done()
	m.logger.Info().Msg("Memory maintenance stopped")
}
