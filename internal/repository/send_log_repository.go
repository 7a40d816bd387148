package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/unclebandit/anniversary-reminder/internal/model"
)

// SendLogRepository persists the append-only send log.
type SendLogRepository struct {
	DB *sql.DB
}

const sendLogColumns = `id, record_id, due_date, subject, body, recipients, status, error, sent_at`

func scanSendLog(row rowScanner) (model.SendLogEntry, error) {
	var e model.SendLogEntry
	err := row.Scan(
		&e.ID, &e.RecordID, &e.DueDate, &e.Subject, &e.Body,
		pq.Array(&e.Recipients), &e.Status, &e.Error, &e.SentAt,
	)
	return e, err
}

func (r *SendLogRepository) list(ctx context.Context, query string, args ...any) ([]model.SendLogEntry, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []model.SendLogEntry{}
	for rows.Next() {
		e, err := scanSendLog(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *SendLogRepository) LoadAll(ctx context.Context) ([]model.SendLogEntry, error) {
	return r.list(ctx, `SELECT `+sendLogColumns+` FROM send_log ORDER BY sent_at, id`)
}

// SaveAll inserts entries whose id is new. Existing rows are left untouched.
func (r *SendLogRepository) SaveAll(ctx context.Context, entries []model.SendLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO send_log (`+sendLogColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (id) DO NOTHING
    `)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		_, err := stmt.ExecContext(ctx,
			e.ID, e.RecordID, e.DueDate, e.Subject, e.Body,
			pq.Array(e.Recipients), string(e.Status), e.Error, e.SentAt,
		)
		if err != nil {
			return fmt.Errorf("append send log %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

// ListByRecord returns a record's history, newest first.
func (r *SendLogRepository) ListByRecord(ctx context.Context, recordID string) ([]model.SendLogEntry, error) {
	return r.list(ctx,
		`SELECT `+sendLogColumns+` FROM send_log WHERE record_id=$1 ORDER BY sent_at DESC, id`,
		recordID,
	)
}

// GetStats counts a record's entries per status.
func (r *SendLogRepository) GetStats(ctx context.Context, recordID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `
        SELECT status, COUNT(*)
        FROM send_log
        WHERE record_id=$1
        GROUP BY status
    `, recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}
