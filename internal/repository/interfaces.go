package repository

import (
	"context"

	"github.com/unclebandit/anniversary-reminder/internal/calendar"
	"github.com/unclebandit/anniversary-reminder/internal/model"
)

// RecordRepositoryInterface defines the record store used by the services.
type RecordRepositoryInterface interface {
	// Whole-collection access for the scheduler. SaveAll only changes the
	// schedule state of rows that already exist.
	LoadAll(ctx context.Context) ([]model.Record, error)
	SaveAll(ctx context.Context, records []model.Record) error

	// CRUD
	GetByID(ctx context.Context, id string) (*model.Record, error)
	Create(ctx context.Context, r *model.Record) error
	// Update keeps the stored next_occurrence_date unless reseed is set.
	Update(ctx context.Context, r *model.Record, reseed bool) error
}

// SendLogRepositoryInterface is the append-only send log.
type SendLogRepositoryInterface interface {
	LoadAll(ctx context.Context) ([]model.SendLogEntry, error)
	// SaveAll appends entries whose id is not stored yet. Stored entries are
	// never modified.
	SaveAll(ctx context.Context, entries []model.SendLogEntry) error
	ListByRecord(ctx context.Context, recordID string) ([]model.SendLogEntry, error)
	GetStats(ctx context.Context, recordID string) (map[string]int, error)
}

// WatermarkRepositoryInterface stores the last day a sweep completed.
// Load reports found=false when nothing was stored yet.
type WatermarkRepositoryInterface interface {
	Load(ctx context.Context) (day calendar.Date, found bool, err error)
	Save(ctx context.Context, day calendar.Date) error
}

// TemplateRepositoryInterface returns the active global template.
type TemplateRepositoryInterface interface {
	LoadActive(ctx context.Context) (model.Template, error)
}
