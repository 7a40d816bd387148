// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/unclebandit/anniversary-reminder/internal/app"
	"github.com/unclebandit/anniversary-reminder/internal/config"
	"github.com/unclebandit/anniversary-reminder/internal/controller"
	"github.com/unclebandit/anniversary-reminder/internal/handler"
	"github.com/unclebandit/anniversary-reminder/internal/mailer"
	"github.com/unclebandit/anniversary-reminder/internal/queue"
	"github.com/unclebandit/anniversary-reminder/internal/scheduler"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
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

	if _, err := a.Reminders.MigrateSchedules(ctx); err != nil {
		log.Fatalf("schedule migration failed: %v", err)
	}

	// Sweep triggers go through the broker when one is configured; a worker
	// consumes them. Otherwise this process runs them itself.
	var q queue.Queue
	if cfg.Queue.AMQPURL != "" {
		amqpQueue, err := queue.DialAMQP(cfg.Queue.AMQPURL)
		if err != nil {
			log.Fatalf("failed to connect to queue: %v", err)
		}
		defer amqpQueue.Close()
		q = amqpQueue
		log.Println("✅ Publishing sweep triggers to RabbitMQ queue", cfg.Queue.SweepQueue)
	} else {
		memQueue := queue.NewInMemoryQueue()
		if err := queue.StartSweepSubscriber(ctx, memQueue, cfg.Queue.SweepQueue, a.Reminders); err != nil {
			log.Fatalf("failed to start sweep subscriber: %v", err)
		}
		q = memQueue
	}

	loc, _ := cfg.Schedule.Location()
	cron := scheduler.NewCronManager(q, cfg.Queue.SweepQueue, loc, nil)
	if err := cron.SetupJobs(cfg.Schedule.SweepCron); err != nil {
		log.Fatalf("failed to schedule sweeps: %v", err)
	}
	cron.Start()
	defer cron.Stop()

	// Recover days missed while the service was down.
	cron.TriggerNow("startup")

	router := controller.NewRouter(
		&controller.ReminderController{ReminderService: a.Reminders, RecordService: a.RecordSvc},
		handler.NewRecordHandler(a.RecordSvc),
		controller.RouterConfig{
			AdminSecret: cfg.Server.AdminSecret,
			CORSOrigins: cfg.Server.CORSOrigins,
			Metrics:     promhttp.Handler(),
		},
	)
	if cfg.Server.AdminSecret == "" {
		log.Println("⚠️ ADMIN_SECRET not set, admin routes will answer 503")
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Println("⚠️ Shutdown error:", err)
		}
	}()

	log.Printf("🚀 Server running on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
	log.Println("🛑 Server stopped")
}
