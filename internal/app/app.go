// Package app wires configuration, storage and services for the binaries.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/unclebandit/anniversary-reminder/internal/calendar"
	"github.com/unclebandit/anniversary-reminder/internal/config"
	"github.com/unclebandit/anniversary-reminder/internal/db"
	"github.com/unclebandit/anniversary-reminder/internal/mailer"
	"github.com/unclebandit/anniversary-reminder/internal/repository"
	"github.com/unclebandit/anniversary-reminder/internal/service"
)

type App struct {
	Config   *config.Config
	DB       *sql.DB
	Redis    *redis.Client
	Calendar *calendar.Calendar

	Records    *repository.RecordRepository
	SendLog    *repository.SendLogRepository
	Watermarks repository.WatermarkRepositoryInterface
	Templates  *repository.TemplateRepository

	Reminders *service.ReminderService
	RecordSvc *service.RecordService
}

// New connects to Postgres (and Redis when configured), applies the schema
// and builds the services around sender.
func New(ctx context.Context, cfg *config.Config, sender mailer.Sender) (*App, error) {
	loc, err := cfg.Schedule.Location()
	if err != nil {
		return nil, err
	}
	cal := calendar.NewCalendar(loc, nil)

	db.Init(cfg.Database.DSN())
	if err := db.EnsureSchema(ctx, db.DB); err != nil {
		return nil, err
	}

	a := &App{
		Config:    cfg,
		DB:        db.DB,
		Calendar:  cal,
		Records:   &repository.RecordRepository{DB: db.DB},
		SendLog:   &repository.SendLogRepository{DB: db.DB},
		Templates: &repository.TemplateRepository{DB: db.DB, Fallback: cfg.Template.Template()},
	}

	a.Watermarks = &repository.WatermarkRepository{DB: db.DB}
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
		a.Redis = redis.NewClient(opts)
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		a.Watermarks = repository.NewRedisWatermarkRepository(a.Redis)
		log.Println("✅ Watermark stored in Redis")
	}

	a.Reminders = service.NewReminderService(a.Records, a.SendLog, a.Watermarks, a.Templates, sender,
		service.ReminderConfig{
			Calendar:        cal,
			MaxCatchUpDays:  cfg.Schedule.MaxCatchUpDays,
			DefaultTemplate: cfg.Template.Template(),
		})
	a.RecordSvc = &service.RecordService{RecordRepo: a.Records, SendLogRepo: a.SendLog, Calendar: cal}
	return a, nil
}

func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
