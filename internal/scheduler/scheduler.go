// Package scheduler runs the periodic flush pass. Configuration changes set
// the flush-requested flag; this scheduler is what eventually notices the
// flag and publishes, so its interval bounds how stale a replica can be.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"gallery-router/internal/common/logging"
	"gallery-router/internal/flush"
)

const passTimeout = 2 * time.Minute

// Scheduler drives the flush controller on a cron schedule.
type Scheduler struct {
	cron       *cron.Cron
	controller *flush.Controller
	logger     logging.Logger
}

// New creates a scheduler for the given cron spec (e.g. "@every 10m").
func New(spec string, controller *flush.Controller, logger logging.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:       cron.New(),
		controller: controller,
		logger:     logger,
	}

	if _, err := s.cron.AddFunc(spec, s.runPass); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins scheduling. Returns immediately; passes run on the cron
// goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runPass() {
	ctx, cancel := context.WithTimeout(context.Background(), passTimeout)
	defer cancel()

	if err := s.controller.MaybeFlush(ctx); err != nil {
		s.logger.Error("scheduled flush pass failed", err)
	}
}
