// internal/service/record_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"

	"github.com/unclebandit/anniversary-reminder/internal/calendar"
	appErrors "github.com/unclebandit/anniversary-reminder/internal/errors"
	"github.com/unclebandit/anniversary-reminder/internal/model"
	"github.com/unclebandit/anniversary-reminder/internal/repository"
)

// RecordService is the CRUD side of records. Schedule state is only seeded
// here; advancing it belongs to ReminderService.
type RecordService struct {
	RecordRepo  repository.RecordRepositoryInterface
	SendLogRepo repository.SendLogRepositoryInterface
	Calendar    *calendar.Calendar
}

// RecordInput carries the user-editable fields of a record.
type RecordInput struct {
	FirstName         string         `json:"first_name"`
	LastName          string         `json:"last_name"`
	Phone             string         `json:"phone"`
	Email             string         `json:"email" validate:"max=1000"`
	DeceasedFirstName string         `json:"deceased_first_name"`
	DeceasedLastName  string         `json:"deceased_last_name"`
	ReferenceDate     *calendar.Date `json:"reference_date"`
	LeadTimeDays      int            `json:"lead_time_days" validate:"gte=0,lte=366"`
	OverrideSubject   string         `json:"override_subject"`
	OverrideBody      string         `json:"override_body"`
	SuspendSending    bool           `json:"suspend_sending"`
}

// PhoneRegion is the region assumed for phone numbers written without a
// country prefix.
const PhoneRegion = "IT"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	return v
}

func (in RecordInput) Validate() error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
	}
	return fmt.Errorf("%w: %s", appErrors.ErrInvalidInput, strings.Join(msgs, "; "))
}

// normalizePhone rewrites a valid number in international format and keeps
// anything unparseable as typed.
func normalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	num, err := phonenumbers.Parse(raw, PhoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return raw
	}
	return phonenumbers.Format(num, phonenumbers.INTERNATIONAL)
}

func (in RecordInput) apply(r *model.Record) {
	r.FirstName = strings.TrimSpace(in.FirstName)
	r.LastName = strings.TrimSpace(in.LastName)
	r.Phone = normalizePhone(in.Phone)
	r.Email = strings.TrimSpace(in.Email)
	r.DeceasedFirstName = strings.TrimSpace(in.DeceasedFirstName)
	r.DeceasedLastName = strings.TrimSpace(in.DeceasedLastName)
	r.LeadTimeDays = in.LeadTimeDays
	r.OverrideSubject = in.OverrideSubject
	r.OverrideBody = in.OverrideBody
	r.SuspendSending = in.SuspendSending
	if in.ReferenceDate != nil && !in.ReferenceDate.IsZero() {
		ref := *in.ReferenceDate
		r.ReferenceDate = &ref
	} else {
		r.ReferenceDate = nil
	}
}

func (s *RecordService) ListRecords(ctx context.Context) ([]model.Record, error) {
	records, err := s.RecordRepo.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []model.Record{}
	}
	return records, nil
}

// CreateRecord stores a new record with a fresh id and a seeded schedule.
func (s *RecordService) CreateRecord(ctx context.Context, in RecordInput) (*model.Record, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	now := s.Calendar.Now()
	r := &model.Record{
		ID:        uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	in.apply(r)
	SeedSchedule(r)

	if err := s.RecordRepo.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// UpdateRecord replaces the editable fields of a record. The schedule is
// re-seeded only when the reference date changes.
func (s *RecordService) UpdateRecord(ctx context.Context, id string, in RecordInput) (*model.Record, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	r, err := s.RecordRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, appErrors.NewRecordNotFound(id)
	}

	before := r.ReferenceDate
	in.apply(r)
	reseed := !sameDate(before, r.ReferenceDate)
	if reseed {
		log.Printf("Reference date of record %s changed, reseeding schedule", id)
		r.NextOccurrence = nil
		SeedSchedule(r)
	}
	r.UpdatedAt = s.Calendar.Now()

	// Without a reseed the stored schedule wins over the copy read above, which
	// a sweep may have advanced in the meantime.
	if err := s.RecordRepo.Update(ctx, r, reseed); err != nil {
		return nil, err
	}
	return r, nil
}

func sameDate(a, b *calendar.Date) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// RecordDetails is a record with its send history.
type RecordDetails struct {
	Record  *model.Record        `json:"record"`
	DueDate *calendar.Date       `json:"due_date,omitempty"`
	Stats   map[string]int       `json:"stats"`
	History []model.SendLogEntry `json:"history"`
}

func (s *RecordService) GetRecordDetailsWithHistory(ctx context.Context, id string) (*RecordDetails, error) {
	r, err := s.RecordRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, appErrors.NewRecordNotFound(id)
	}

	history, err := s.SendLogRepo.ListByRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []model.SendLogEntry{}
	}

	counts, err := s.SendLogRepo.GetStats(ctx, id)
	if err != nil {
		return nil, err
	}
	stats := map[string]int{
		"total":                       0,
		string(model.SendStatusOK):    0,
		string(model.SendStatusTest):  0,
		string(model.SendStatusError): 0,
	}
	for status, n := range counts {
		if _, ok := stats[status]; ok {
			stats[status] = n
		}
		stats["total"] += n
	}

	details := &RecordDetails{Record: r, Stats: stats, History: history}
	if due, ok := DueDate(r); ok {
		details.DueDate = &due
	}
	return details, nil
}

// ListSent returns the whole send log, newest first.
func (s *RecordService) ListSent(ctx context.Context) ([]model.SendLogEntry, error) {
	entries, err := s.SendLogRepo.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].SentAt.After(entries[j].SentAt)
	})
	if entries == nil {
		entries = []model.SendLogEntry{}
	}
	return entries, nil
}
