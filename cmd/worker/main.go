// cmd/worker/main.go
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/unclebandit/anniversary-reminder/internal/app"
	"github.com/unclebandit/anniversary-reminder/internal/config"
	appErrors "github.com/unclebandit/anniversary-reminder/internal/errors"
	"github.com/unclebandit/anniversary-reminder/internal/mailer"
	"github.com/unclebandit/anniversary-reminder/internal/queue"
	"github.com/unclebandit/anniversary-reminder/internal/service"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if cfg.Queue.AMQPURL == "" {
		log.Fatal("AMQP_URL is required for the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sender, err := mailer.New(cfg.Mail.Settings())
	if err != nil {
		log.Fatalf("failed to set up mail transport: %v", err)
	}
	a, err := app.New(ctx, cfg, sender)
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}
	defer a.Close()

	q, err := queue.DialAMQP(cfg.Queue.AMQPURL)
	if err != nil {
		log.Fatal("Failed to connect to RabbitMQ:", err)
	}
	defer q.Close()

	jobs := make(chan service.SweepJob)
	go service.NewWorker(a.Reminders, jobs).Start(ctx)

	if err := q.Subscribe(cfg.Queue.SweepQueue, enqueueSweep(ctx, jobs)); err != nil {
		log.Fatal("Failed to register consumer:", err)
	}

	log.Println("Worker running, waiting for sweep triggers on", cfg.Queue.SweepQueue)
	<-ctx.Done()
	log.Println("🛑 Worker stopped")
}

// enqueueSweep hands each trigger to the worker and blocks until the sweep
// finishes, so the broker message is acked only after the outcome is known.
func enqueueSweep(ctx context.Context, jobs chan<- service.SweepJob) func(payload any) error {
	return func(payload any) error {
		trigger, err := queue.DecodeTrigger(payload)
		if err != nil {
			log.Println("Invalid job:", err)
			return nil
		}

		done := make(chan error, 1)
		job := service.SweepJob{
			Source: trigger.Source,
			Done:   func(_ *service.SweepResult, err error) { done <- err },
		}
		select {
		case jobs <- job:
		case <-ctx.Done():
			return ctx.Err()
		}

		if err := <-done; err != nil && !errors.Is(err, appErrors.ErrSweepInProgress) {
			return err
		}
		return nil
	}
}
