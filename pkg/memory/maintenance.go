package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/harun/mindvault/internal/observability"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultMaintenanceSchedule runs optimize once a day at 03:30 local time
const DefaultMaintenanceSchedule = "30 3 * * *"

const maintenanceTimeout = 5 * time.Minute

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateSchedule reports whether expr is a five-field cron expression
func ValidateSchedule(expr string) error {
	if expr == "" {
		return fmt.Errorf("maintenance schedule is empty")
	}
	if _, err := scheduleParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}

// Maintenance periodically merges FTS segments and truncates the WAL
type Maintenance struct {
	engine   *Engine
	schedule string
	logger   zerolog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewMaintenance prepares a scheduler for engine. It does not start until Start is called.
func NewMaintenance(engine *Engine, schedule string, logger zerolog.Logger) (*Maintenance, error) {
	if schedule == "" {
		schedule = DefaultMaintenanceSchedule
	}
	if err := ValidateSchedule(schedule); err != nil {
		return nil, err
	}
	return &Maintenance{
		engine:   engine,
		schedule: schedule,
		logger:   logger.With().Str("component", "maintenance").Logger(),
	}, nil
}

// Start schedules the maintenance job
func (m *Maintenance) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("maintenance already running")
	}

	c := cron.New(cron.WithParser(scheduleParser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(m.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), maintenanceTimeout)
		defer cancel()
		_ = m.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule maintenance: %w", err)
	}

	c.Start()
	m.cron = c
	m.running = true

	m.logger.Info().Str("schedule", m.schedule).Msg("Maintenance scheduled")
	return nil
}

// Stop cancels future runs and waits for a running job to finish
func (m *Maintenance) Stop() {
	m.mu.Lock()
	c := m.cron
	m.cron = nil
	m.running = false
	m.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	m.logger.Info().Msg("Maintenance stopped")
}

// RunOnce optimizes the store immediately
func (m *Maintenance) RunOnce(ctx context.Context) error {
	start := time.Now()
	err := m.engine.Optimize(ctx)
	observability.RecordMaintenance(err == nil)

	if err != nil {
		m.logger.Error().Err(err).Msg("Maintenance failed")
		return err
	}

	m.logger.Info().Dur("duration", time.Since(start)).Msg("Maintenance completed")
	return nil
}
