// internal/model/record.go
package model

import (
	"strings"
	"time"

	"github.com/unclebandit/anniversary-reminder/internal/calendar"
)

// Record is a contact tied to an anniversary. NextOccurrence is the only
// scheduling state and is owned by the reminder service.
type Record struct {
	ID                string         `db:"id" json:"id"`
	FirstName         string         `db:"first_name" json:"first_name"`
	LastName          string         `db:"last_name" json:"last_name"`
	Phone             string         `db:"phone" json:"phone"`
	Email             string         `db:"email" json:"email"`
	DeceasedFirstName string         `db:"deceased_first_name" json:"deceased_first_name"`
	DeceasedLastName  string         `db:"deceased_last_name" json:"deceased_last_name"`
	ReferenceDate     *calendar.Date `db:"reference_date" json:"reference_date,omitempty"`
	LeadTimeDays      int            `db:"lead_time_days" json:"lead_time_days"`
	NextOccurrence    *calendar.Date `db:"next_occurrence_date" json:"next_occurrence_date,omitempty"`
	OverrideSubject   string         `db:"override_subject" json:"override_subject,omitempty"`
	OverrideBody      string         `db:"override_body" json:"override_body,omitempty"`
	SuspendSending    bool           `db:"suspend_sending" json:"suspend_sending"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`
}

func (r *Record) FullName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

func (r *Record) DeceasedFullName() string {
	return strings.TrimSpace(r.DeceasedFirstName + " " + r.DeceasedLastName)
}
