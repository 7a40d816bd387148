package service

import (
	"github.com/unclebandit/anniversary-reminder/internal/calendar"
	"github.com/unclebandit/anniversary-reminder/internal/model"
)

type ledgerKey struct {
	recordID string
	due      calendar.Date
}

// Ledger is the in-memory view of the send log for one operation. Only "ok"
// entries gate later sends; test and error entries are kept for the audit
// trail but never count as delivered.
type Ledger struct {
	entries []model.SendLogEntry
	sent    map[ledgerKey]bool
	added   int
}

func NewLedger(entries []model.SendLogEntry) *Ledger {
	l := &Ledger{
		entries: entries,
		sent:    make(map[ledgerKey]bool, len(entries)),
	}
	for _, e := range entries {
		l.index(e)
	}
	return l
}

func (l *Ledger) index(e model.SendLogEntry) {
	if e.Status == model.SendStatusOK {
		l.sent[ledgerKey{e.RecordID, e.DueDate}] = true
	}
}

// AlreadySent reports whether an ok entry exists for (recordID, due).
func (l *Ledger) AlreadySent(recordID string, due calendar.Date) bool {
	return l.sent[ledgerKey{recordID, due}]
}

// Append records a new entry. Entries are never modified afterwards.
func (l *Ledger) Append(e model.SendLogEntry) {
	l.entries = append(l.entries, e)
	l.index(e)
	l.added++
}

// Pending returns the entries appended since the ledger was loaded, in order.
func (l *Ledger) Pending() []model.SendLogEntry {
	return l.entries[len(l.entries)-l.added:]
}
