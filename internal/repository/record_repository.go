package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/unclebandit/anniversary-reminder/internal/model"
)

type RecordRepository struct {
	DB *sql.DB
}

const recordColumns = `id, first_name, last_name, phone, email,
    deceased_first_name, deceased_last_name, reference_date, lead_time_days,
    next_occurrence_date, override_subject, override_body, suspend_sending,
    created_at, updated_at`

const upsertRecord = `
    INSERT INTO records (` + recordColumns + `)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
    ON CONFLICT (id) DO UPDATE SET
        next_occurrence_date=EXCLUDED.next_occurrence_date,
        updated_at=EXCLUDED.updated_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (model.Record, error) {
	var r model.Record
	err := row.Scan(
		&r.ID, &r.FirstName, &r.LastName, &r.Phone, &r.Email,
		&r.DeceasedFirstName, &r.DeceasedLastName, &r.ReferenceDate, &r.LeadTimeDays,
		&r.NextOccurrence, &r.OverrideSubject, &r.OverrideBody, &r.SuspendSending,
		&r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

func recordArgs(r *model.Record) []any {
	return []any{
		r.ID, r.FirstName, r.LastName, r.Phone, r.Email,
		r.DeceasedFirstName, r.DeceasedLastName, r.ReferenceDate, r.LeadTimeDays,
		r.NextOccurrence, r.OverrideSubject, r.OverrideBody, r.SuspendSending,
		r.CreatedAt, r.UpdatedAt,
	}
}

// LoadAll returns every record in creation order.
func (r *RecordRepository) LoadAll(ctx context.Context) ([]model.Record, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+recordColumns+` FROM records ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []model.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SaveAll writes the schedule state of the given records in one transaction.
// Unknown ids are inserted whole; stored rows only get next_occurrence_date
// and updated_at, so a concurrent edit of the other fields survives.
func (r *RecordRepository) SaveAll(ctx context.Context, records []model.Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertRecord)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range records {
		if _, err := stmt.ExecContext(ctx, recordArgs(&records[i])...); err != nil {
			return fmt.Errorf("save record %s: %w", records[i].ID, err)
		}
	}
	return tx.Commit()
}

// GetByID returns nil, nil when the id is unknown.
func (r *RecordRepository) GetByID(ctx context.Context, id string) (*model.Record, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id=$1`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (r *RecordRepository) Create(ctx context.Context, rec *model.Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	query := `INSERT INTO records (` + recordColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := r.DB.ExecContext(ctx, query, recordArgs(rec)...)
	return err
}

// Update writes the editable fields of a record. next_occurrence_date is
// written only when reseed is set; otherwise the stored schedule is kept and
// read back into rec.
func (r *RecordRepository) Update(ctx context.Context, rec *model.Record, reseed bool) error {
	query := `
        UPDATE records
        SET first_name=$2, last_name=$3, phone=$4, email=$5,
            deceased_first_name=$6, deceased_last_name=$7, reference_date=$8,
            lead_time_days=$9,
            next_occurrence_date=CASE WHEN $15 THEN $10::date ELSE next_occurrence_date END,
            override_subject=$11, override_body=$12, suspend_sending=$13, updated_at=$14
        WHERE id=$1
        RETURNING next_occurrence_date
    `
	err := r.DB.QueryRowContext(ctx, query,
		rec.ID, rec.FirstName, rec.LastName, rec.Phone, rec.Email,
		rec.DeceasedFirstName, rec.DeceasedLastName, rec.ReferenceDate,
		rec.LeadTimeDays, rec.NextOccurrence, rec.OverrideSubject,
		rec.OverrideBody, rec.SuspendSending, rec.UpdatedAt, reseed,
	).Scan(&rec.NextOccurrence)
	if err != nil {
		return fmt.Errorf("update record %s: %w", rec.ID, err)
	}
	return nil
}
