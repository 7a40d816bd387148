// internal/model/send_log.go
package model

import (
	"time"

	"github.com/unclebandit/anniversary-reminder/internal/calendar"
)

type SendStatus string

const (
	SendStatusOK    SendStatus = "ok"
	SendStatusTest  SendStatus = "test"
	SendStatusError SendStatus = "error"
)

// SendLogEntry is one attempt to deliver a reminder. DueDate is the day the
// reminder was scheduled for and is the dedup key, not the delivery time.
type SendLogEntry struct {
	ID         string        `db:"id" json:"id"`
	RecordID   string        `db:"record_id" json:"record_id"`
	DueDate    calendar.Date `db:"due_date" json:"due_date"`
	Subject    string        `db:"subject" json:"subject"`
	Body       string        `db:"body" json:"body"`
	Recipients []string      `db:"recipients" json:"recipients"`
	Status     SendStatus    `db:"status" json:"status"` // ok, test, error
	Error      string        `db:"error,omitempty" json:"error,omitempty"`
	SentAt     time.Time     `db:"sent_at" json:"sent_at"`
}
