package service

import (
	"context"
	"errors"
	"log"

	appErrors "github.com/unclebandit/anniversary-reminder/internal/errors"
)

// SweepRunner is what the worker needs from the reminder service
type SweepRunner interface {
	RunCatchUp(ctx context.Context) (*SweepResult, error)
}

// SweepJob is one request to run a catch-up sweep. Done, when set, receives
// the outcome.
type SweepJob struct {
	Source string
	Done   func(result *SweepResult, err error)
}

// Worker runs sweep jobs one at a time
type Worker struct {
	Runner  SweepRunner
	JobChan <-chan SweepJob
}

// Constructor
func NewWorker(runner SweepRunner, jobChan <-chan SweepJob) *Worker {
	return &Worker{
		Runner:  runner,
		JobChan: jobChan,
	}
}

// Start processes jobs until the channel closes or ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-w.JobChan:
			if !ok {
				return
			}
			w.handle(ctx, job)
		}
	}
}

func (w *Worker) handle(ctx context.Context, job SweepJob) {
	log.Println("🕐 Running catch-up sweep, triggered by", job.Source)

	result, err := w.Runner.RunCatchUp(ctx)
	switch {
	case errors.Is(err, appErrors.ErrSweepInProgress):
		log.Println("⚠️ Sweep already running, trigger from", job.Source, "dropped")
	case err != nil:
		log.Println("❌ Sweep failed:", err)
	}

	if job.Done != nil {
		job.Done(result, err)
	}
}
