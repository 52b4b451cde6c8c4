/**
 * @description
 * Cron scheduler setup for the scheduled maintenance jobs.
 */
package app

import (
	"context"
	"log"

	"github.com/robfig/cron/v3"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron     *cron.Cron
	jobs     *CleanupJobs
	schedule string
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(jobs *CleanupJobs, schedule string) *Scheduler {
	cronLogger := cron.PrintfLogger(log.Default())
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:     c,
		jobs:     jobs,
		schedule: schedule,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() {
	if _, err := s.cron.AddFunc(s.schedule, s.jobs.RunBookingCleanup); err != nil {
		log.Printf("level=error component=scheduler msg=%q schedule=%s err=%v", "failed to schedule booking cleanup job", s.schedule, err)
	} else {
		log.Printf("level=info component=scheduler msg=%q schedule=%s", "scheduled booking cleanup job", s.schedule)
	}

	s.cron.Start()
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
