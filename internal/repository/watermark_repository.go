package repository

import (
	"context"
	"database/sql"

	"github.com/unclebandit/anniversary-reminder/internal/calendar"
)

// DefaultWatermarkName keys the single catch-up watermark.
const DefaultWatermarkName = "catch_up"

// WatermarkRepository keeps the last completed sweep day in Postgres.
type WatermarkRepository struct {
	DB   *sql.DB
	Name string
}

func (r *WatermarkRepository) name() string {
	if r.Name == "" {
		return DefaultWatermarkName
	}
	return r.Name
}

func (r *WatermarkRepository) Load(ctx context.Context) (calendar.Date, bool, error) {
	var day calendar.Date
	err := r.DB.QueryRowContext(ctx,
		`SELECT last_run FROM sweep_watermark WHERE name=$1`, r.name(),
	).Scan(&day)
	if err == sql.ErrNoRows {
		return calendar.Date{}, false, nil
	}
	if err != nil {
		return calendar.Date{}, false, err
	}
	return day, true, nil
}

func (r *WatermarkRepository) Save(ctx context.Context, day calendar.Date) error {
	_, err := r.DB.ExecContext(ctx, `
        INSERT INTO sweep_watermark (name, last_run) VALUES ($1, $2)
        ON CONFLICT (name) DO UPDATE SET last_run=EXCLUDED.last_run
    `, r.name(), day)
	return err
}
