package service

import (
	"github.com/unclebandit/anniversary-reminder/internal/calendar"
	"github.com/unclebandit/anniversary-reminder/internal/model"
)

// DueDate is the day the record's next reminder fires: the next occurrence
// minus the lead time. ok is false when the record has no schedule yet.
func DueDate(r *model.Record) (calendar.Date, bool) {
	if r.NextOccurrence == nil || r.NextOccurrence.IsZero() {
		return calendar.Date{}, false
	}
	return r.NextOccurrence.AddDays(-r.LeadTimeDays), true
}

// DueToday reports whether day is exactly the record's due date.
func DueToday(r *model.Record, day calendar.Date) bool {
	due, ok := DueDate(r)
	return ok && due == day
}

// FirstOccurrence seeds the schedule of a record from its reference date.
func FirstOccurrence(reference calendar.Date) calendar.Date {
	return calendar.AddYears(reference, 1)
}

// Advance moves the record's next occurrence one year forward. Only call it
// after a confirmed, non-test send.
func Advance(r *model.Record) {
	if r.NextOccurrence == nil || r.NextOccurrence.IsZero() {
		return
	}
	next := calendar.AddYears(*r.NextOccurrence, 1)
	r.NextOccurrence = &next
}

// SeedSchedule sets NextOccurrence from the reference date when it is missing.
// It reports whether the record changed.
func SeedSchedule(r *model.Record) bool {
	if r.NextOccurrence != nil && !r.NextOccurrence.IsZero() {
		return false
	}
	if r.ReferenceDate == nil || r.ReferenceDate.IsZero() {
		return false
	}
	first := FirstOccurrence(*r.ReferenceDate)
	r.NextOccurrence = &first
	return true
}

// MigrateSchedules is the one-time pass that seeds missing schedule state over
// a whole collection. It returns the number of records it changed.
func MigrateSchedules(records []model.Record) int {
	changed := 0
	for i := range records {
		if SeedSchedule(&records[i]) {
			changed++
		}
	}
	return changed
}
