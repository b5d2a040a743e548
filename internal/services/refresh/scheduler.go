package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/screener/internal/common"
)

// Scheduler triggers refresh runs on a cron schedule
type Scheduler struct {
	service  *Service
	schedule string
	cron     *cron.Cron
	logger   arbor.ILogger

	mu      sync.Mutex
	entryID cron.EntryID
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduler creates a scheduler for the given 5-field cron expression
func NewScheduler(service *Service, schedule string, logger arbor.ILogger) *Scheduler {
	return &Scheduler{
		service:  service,
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger,
	}
}

// Start registers the refresh job and starts the cron loop
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	if err := common.ValidateSchedule(s.schedule); err != nil {
		return err
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())

	id, err := s.cron.AddFunc(s.schedule, s.trigger)
	if err != nil {
		s.cancel()
		return fmt.Errorf("failed to add refresh job: %w", err)
	}
	s.entryID = id

	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("schedule", s.schedule).
		Str("next_run", s.cron.Entry(id).Next.Format(time.RFC3339)).
		Msg("Refresh scheduler started")
	return nil
}

// Stop halts the cron loop and cancels a run in progress
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Refresh scheduler stopped")
}

// Next returns the next scheduled run, zero when not started
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

func (s *Scheduler) trigger() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	s.logger.Info().Msg("Scheduled refresh triggered")
	if _, err := s.service.Run(ctx); err != nil {
		if errors.Is(err, ErrAlreadyRunning) {
			s.logger.Warn().Msg("Skipping scheduled refresh, a run is already in progress")
			return
		}
		s.logger.Error().Err(err).Msg("Scheduled refresh failed")
	}
}
