package app

import (
	"context"
	"time"

	"github.com/Freeeeeet/roomslots/internal/service"
	"go.uber.org/zap"
)

// Scheduler runs background jobs
type Scheduler struct {
	bookingService *service.BookingService
	interval       time.Duration
	daysAhead      int
	logger         *zap.Logger
	stopChan       chan struct{}
	done           chan struct{}
}

func NewScheduler(bookingService *service.BookingService, interval time.Duration, daysAhead int, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Scheduler{
		bookingService: bookingService,
		interval:       interval,
		daysAhead:      daysAhead,
		logger:         logger,
		stopChan:       make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// Start launches the jobs in the background. With no days ahead configured
// nothing runs.
func (s *Scheduler) Start(ctx context.Context) {
	if s.daysAhead <= 0 {
		s.logger.Info("Materializer disabled")
		close(s.done)
		return
	}

	s.logger.Info("Starting background scheduler",
		zap.Duration("interval", s.interval),
		zap.Int("days_ahead", s.daysAhead))

	go s.runMaterializeTask(ctx)
}

// Stop ends the jobs and waits for the running pass to finish
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background scheduler")
	close(s.stopChan)
	<-s.done
}

func (s *Scheduler) runMaterializeTask(ctx context.Context) {
	defer close(s.done)

	// First pass right away.
	s.materialize(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.materialize(ctx)
		case <-s.stopChan:
			s.logger.Info("Materialize task stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Materialize task cancelled")
			return
		}
	}
}

func (s *Scheduler) materialize(ctx context.Context) {
	count, err := s.bookingService.MaterializeAhead(ctx, s.daysAhead)
	if err != nil {
		s.logger.Error("Failed to materialize instances", zap.Error(err))
		return
	}

	s.logger.Info("Instances materialized", zap.Int("count", count))
}
