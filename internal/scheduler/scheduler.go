// Package scheduler fires named cron schedules that enqueue jobs into the
// background queue.
//
// Each schedule fires independently; an enqueue failure is logged (and
// preserved as a pending run by the queue fallback) but never halts the
// scheduler or the other schedules. Missed ticks are not replayed:
// at-most-once per tick.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/appmetry/appmetry/internal/queue"
	"github.com/appmetry/appmetry/internal/store"
)

// Schedule is one named cron entry.
type Schedule struct {
	Name    string
	Cron    string // standard 5-field cron expression
	JobType string
}

// Scheduler owns the cron runner and the registered schedule table.
type Scheduler struct {
	cron   *cron.Cron
	queue  *queue.Queue
	store  *store.Store
	logger *slog.Logger
	names  []string
}

// New creates a Scheduler.
func New(q *queue.Queue, st *store.Store, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:   cron.New(),
		queue:  q,
		store:  st,
		logger: logger,
	}
}

// Register adds a schedule. The tick handler enqueues one job of the
// schedule's type into the background queue with triggeredBy="scheduler".
func (s *Scheduler) Register(sch Schedule) error {
	if sch.Name == "" || sch.Cron == "" || sch.JobType == "" {
		return fmt.Errorf("scheduler: schedule needs name, cron, and job type (got %+v)", sch)
	}
	_, err := s.cron.AddFunc(sch.Cron, func() {
		s.fire(sch)
	})
	if err != nil {
		return fmt.Errorf("scheduler: register %s: %w", sch.Name, err)
	}
	s.names = append(s.names, sch.Name)
	s.logger.Info("scheduler: registered", "name", sch.Name, "cron", sch.Cron, "job_type", sch.JobType)
	return nil
}

// fire enqueues one job for a tick. Failures are logged; the next tick
// still fires.
func (s *Scheduler) fire(sch Schedule) {
	ctx := context.Background()
	id, err := queue.EnqueueOrRecord(ctx, s.queue, s.store, &queue.Job{
		Queue:       queue.Background,
		Type:        sch.JobType,
		TriggeredBy: "scheduler",
	}, s.logger)
	if err != nil {
		s.logger.Error("scheduler: tick lost", "name", sch.Name, "error", err)
		return
	}
	s.logger.Debug("scheduler: tick enqueued", "name", sch.Name, "id", id)
}

// Names returns the registered schedule names, in registration order.
func (s *Scheduler) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Start begins firing schedules.
func (s *Scheduler) Start() {
	s.logger.Info("scheduler: starting", "schedules", len(s.names))
	s.cron.Start()
}

// Stop halts the scheduler; running tick handlers finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
