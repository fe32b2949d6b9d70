// Package workers
package workers

import (
	"context"
	"fmt"
	"time"

	"metricsd/internal/logger"
)

type Worker interface {
	Name() string
	Run(ctx context.Context) error
}

type Scheduler struct {
	log logger.Logger
}

func NewScheduler(log logger.Logger) *Scheduler {
	return &Scheduler{log: log}
}

// Every runs worker on each tick until ctx is cancelled. Worker failures
// are logged and never stop the loop.
func (s *Scheduler) Every(ctx context.Context, dur time.Duration, worker Worker) error {
	ticker := time.NewTicker(dur)
	defer ticker.Stop()

	s.log.Info("worker: started", "name", worker.Name(), "interval", dur)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("worker: stopping", "name", worker.Name())
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx, worker)
		}
	}
}

// Prime runs worker right away and then every dur until the first
// successful run. It returns early only when ctx is cancelled.
func (s *Scheduler) Prime(ctx context.Context, dur time.Duration, worker Worker) error {
	if s.runOnce(ctx, worker) == nil {
		return nil
	}

	ticker := time.NewTicker(dur)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if s.runOnce(ctx, worker) == nil {
				return nil
			}
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, worker Worker) (err error) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker panicked: %v", r)
		}
		if err != nil {
			s.log.Error("worker failed", "name", worker.Name(), "error", err)
		}
		s.log.Debug("worker finished", "name", worker.Name(), "time", time.Since(start))
	}()

	return worker.Run(ctx)
}
