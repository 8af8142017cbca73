package app

import (
	"context"
	"time"

	"github.com/labubou/TAConnect-sub000/internal/booking"
	"go.uber.org/zap"
)

// SweepRunner drives the completion sweeper on a fixed cadence.
type SweepRunner struct {
	sweeper  *booking.Sweeper
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
}

func NewSweepRunner(sweeper *booking.Sweeper, interval time.Duration, logger *zap.Logger) *SweepRunner {
	return &SweepRunner{
		sweeper:  sweeper,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start launches the background sweep loop.
func (s *SweepRunner) Start(ctx context.Context) {
	s.logger.Info("Starting completion sweeper",
		zap.Duration("interval", s.interval))

	go s.run(ctx)
}

// Stop terminates the loop.
func (s *SweepRunner) Stop() {
	s.logger.Info("Stopping completion sweeper")
	close(s.stopChan)
}

func (s *SweepRunner) run(ctx context.Context) {
	// First pass right away so a restart catches up immediately.
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-s.stopChan:
			s.logger.Info("Sweep loop stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Sweep loop cancelled")
			return
		}
	}
}

func (s *SweepRunner) sweep(ctx context.Context) {
	result, err := s.sweeper.Sweep(ctx)
	if err != nil {
		s.logger.Error("Sweep pass failed", zap.Error(err))
		return
	}

	s.logger.Debug("Sweep pass done",
		zap.Int("completed", result.Completed),
		zap.Int("expired", result.Expired),
	)
}
