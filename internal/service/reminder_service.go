// internal/service/reminder_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/unclebandit/anniversary-reminder/internal/calendar"
	appErrors "github.com/unclebandit/anniversary-reminder/internal/errors"
	"github.com/unclebandit/anniversary-reminder/internal/mailer"
	"github.com/unclebandit/anniversary-reminder/internal/model"
	"github.com/unclebandit/anniversary-reminder/internal/repository"
)

// DefaultMaxCatchUpDays bounds how many days one sweep may walk.
const DefaultMaxCatchUpDays = 400

// SkipReasonNoEmail is reported for due records without a usable address.
const SkipReasonNoEmail = "no email"

// ReminderConfig is the explicit configuration of the scheduling engine.
type ReminderConfig struct {
	Calendar       *calendar.Calendar
	MaxCatchUpDays int
	// DefaultTemplate is used when the template store has no active subject
	// or body.
	DefaultTemplate model.Template
}

type ReminderService struct {
	RecordRepo    repository.RecordRepositoryInterface
	SendLogRepo   repository.SendLogRepositoryInterface
	WatermarkRepo repository.WatermarkRepositoryInterface
	TemplateRepo  repository.TemplateRepositoryInterface
	Sender        mailer.Sender
	Config        ReminderConfig

	// NewID generates send log ids; uuid by default.
	NewID func() string

	// Sweeps and immediate sends over the same stores must not overlap.
	runMu sync.Mutex
}

func NewReminderService(
	records repository.RecordRepositoryInterface,
	sendLog repository.SendLogRepositoryInterface,
	watermarks repository.WatermarkRepositoryInterface,
	templates repository.TemplateRepositoryInterface,
	sender mailer.Sender,
	cfg ReminderConfig,
) *ReminderService {
	if cfg.Calendar == nil {
		cfg.Calendar = calendar.NewCalendar(nil, nil)
	}
	if cfg.MaxCatchUpDays <= 0 {
		cfg.MaxCatchUpDays = DefaultMaxCatchUpDays
	}
	return &ReminderService{
		RecordRepo:    records,
		SendLogRepo:   sendLog,
		WatermarkRepo: watermarks,
		TemplateRepo:  templates,
		Sender:        sender,
		Config:        cfg,
		NewID:         func() string { return uuid.New().String() },
	}
}

// Result structs for RunCatchUp
type DateRange struct {
	From calendar.Date `json:"from"`
	To   calendar.Date `json:"to"`
}

type SweepCounts struct {
	Days      int `json:"days"`
	Records   int `json:"records"`
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

type ProcessedItem struct {
	RecordID  string        `json:"record_id"`
	DueDate   calendar.Date `json:"due_date"`
	Recipient string        `json:"recipient"`
}

type SkippedItem struct {
	RecordID string        `json:"record_id"`
	DueDate  calendar.Date `json:"due_date"`
	Reason   string        `json:"reason"`
}

type SweepError struct {
	RecordID string        `json:"record_id"`
	DueDate  calendar.Date `json:"due_date"`
	Error    string        `json:"error"`
}

type SweepResult struct {
	ProcessedRange DateRange       `json:"processed_range"`
	Counts         SweepCounts     `json:"counts"`
	Processed      []ProcessedItem `json:"processed"`
	Skipped        []SkippedItem   `json:"skipped"`
	Errors         []SweepError    `json:"errors"`
	// Truncated is set when the gap since the watermark exceeded
	// MaxCatchUpDays and older days were not walked.
	Truncated bool `json:"truncated,omitempty"`
}

// Message is a rendered reminder ready for the transport.
type Message struct {
	Recipients []string `json:"recipients"`
	To         string   `json:"to"`
	Subject    string   `json:"subject"`
	HTML       string   `json:"body"`
	Plain      string   `json:"plain"`
}

// RunCatchUp walks every day from the day after the watermark up to today and
// sends each reminder that fell due and is not in the ledger yet. Per-record
// failures end up in the result; storage failures abort the sweep and leave
// the watermark where it was.
func (s *ReminderService) RunCatchUp(ctx context.Context) (*SweepResult, error) {
	if !s.runMu.TryLock() {
		return nil, appErrors.ErrSweepInProgress
	}
	defer s.runMu.Unlock()

	started := time.Now()
	result, err := s.catchUp(ctx)
	observeSweep(result, err, time.Since(started))
	return result, err
}

func (s *ReminderService) catchUp(ctx context.Context) (*SweepResult, error) {
	today := s.Config.Calendar.Today()

	watermark, found, err := s.WatermarkRepo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load watermark: %w", err)
	}
	if !found {
		watermark = today.AddDays(-1)
	}

	result := &SweepResult{
		Processed: []ProcessedItem{},
		Skipped:   []SkippedItem{},
		Errors:    []SweepError{},
	}

	start := watermark.AddDays(1)
	earliest := today.AddDays(-(s.Config.MaxCatchUpDays - 1))
	if start.Before(earliest) {
		log.Printf("⚠️ Watermark %s is %d days old, catching up from %s only", watermark, watermark.DaysUntil(today), earliest)
		start = earliest
		result.Truncated = true
	}
	result.ProcessedRange = DateRange{From: start, To: today}

	records, err := s.RecordRepo.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	entries, err := s.SendLogRepo.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load send log: %w", err)
	}
	tmpl, err := s.activeTemplate(ctx)
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}

	ledger := NewLedger(entries)
	changed := map[int]bool{}
	result.Counts.Records = len(records)

	// walked is the last day whose records were all visited. A cancelled
	// sweep stops early but still persists what it sent, and the watermark
	// only moves up to walked.
	walked := start.AddDays(-1)
	var cancelErr error
days:
	for day := start; !day.After(today); day = day.AddDays(1) {
		result.Counts.Days++

		for i := range records {
			if cancelErr = ctx.Err(); cancelErr != nil {
				break days
			}
			r := &records[i]
			advanced, err := s.sweepRecord(ctx, r, day, tmpl, ledger, result)
			if advanced {
				changed[i] = true
			}
			if err != nil {
				log.Printf("❌ Reminder for record %s due %s failed: %v", r.ID, day, err)
				result.Errors = append(result.Errors, SweepError{RecordID: r.ID, DueDate: day, Error: err.Error()})
			}
		}
		walked = day
	}

	saveCtx := context.WithoutCancel(ctx)
	if len(changed) > 0 {
		updated := make([]model.Record, 0, len(changed))
		for i := range records {
			if changed[i] {
				updated = append(updated, records[i])
			}
		}
		if err := s.RecordRepo.SaveAll(saveCtx, updated); err != nil {
			return nil, fmt.Errorf("save records: %w", err)
		}
	}
	if pending := ledger.Pending(); len(pending) > 0 {
		if err := s.SendLogRepo.SaveAll(saveCtx, pending); err != nil {
			return nil, fmt.Errorf("save send log: %w", err)
		}
		for _, e := range pending {
			observeSend(e.Status)
		}
	}
	if walked.After(watermark) {
		if err := s.WatermarkRepo.Save(saveCtx, walked); err != nil {
			return nil, fmt.Errorf("save watermark: %w", err)
		}
	}
	if cancelErr != nil {
		log.Printf("⚠️ Catch-up cancelled after %s: %d sent and saved", walked, len(result.Processed))
		return nil, cancelErr
	}

	result.Counts.Processed = len(result.Processed)
	result.Counts.Skipped = len(result.Skipped)
	result.Counts.Errors = len(result.Errors)

	log.Printf("✅ Catch-up %s..%s done: %d sent, %d skipped, %d errors",
		start, today, result.Counts.Processed, result.Counts.Skipped, result.Counts.Errors)
	return result, nil
}

// sweepRecord handles one record on one day. It reports whether the record's
// schedule advanced. A panic is turned into an error for this record only.
func (s *ReminderService) sweepRecord(
	ctx context.Context,
	r *model.Record,
	day calendar.Date,
	tmpl model.Template,
	ledger *Ledger,
	result *SweepResult,
) (advanced bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			advanced, err = false, fmt.Errorf("panic: %v", p)
		}
	}()

	if r.SuspendSending || !DueToday(r, day) {
		return false, nil
	}
	if ledger.AlreadySent(r.ID, day) {
		return false, nil
	}

	msg, err := s.Compose(r, tmpl)
	if errors.Is(err, appErrors.ErrNoRecipients) {
		log.Printf("⚠️ Record %s due %s has no email, skipping", r.ID, day)
		result.Skipped = append(result.Skipped, SkippedItem{RecordID: r.ID, DueDate: day, Reason: SkipReasonNoEmail})
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := s.Sender.Send(ctx, msg.To, msg.Subject, msg.HTML, msg.Plain); err != nil {
		ledger.Append(s.logEntry(r.ID, day, msg, model.SendStatusError, err))
		return false, fmt.Errorf("send to %s: %w", mailer.MaskAddress(msg.To), err)
	}

	ledger.Append(s.logEntry(r.ID, day, msg, model.SendStatusOK, nil))
	Advance(r)
	r.UpdatedAt = s.Config.Calendar.Now()

	log.Printf("📩 Reminder for record %s due %s sent to %s", r.ID, day, mailer.MaskAddress(msg.To))
	result.Processed = append(result.Processed, ProcessedItem{RecordID: r.ID, DueDate: day, Recipient: msg.To})
	return true, nil
}

// Compose resolves recipients and renders subject and body for a record,
// preferring the record's overrides to the global template.
func (s *ReminderService) Compose(r *model.Record, tmpl model.Template) (*Message, error) {
	recipients := ParseRecipients(r.Email)
	if len(recipients) == 0 {
		return nil, appErrors.ErrNoRecipients
	}

	subject := tmpl.Subject
	if strings.TrimSpace(r.OverrideSubject) != "" {
		subject = r.OverrideSubject
	}
	body := tmpl.Body
	if strings.TrimSpace(r.OverrideBody) != "" {
		body = r.OverrideBody
	}

	html := RenderRecord(body, r)
	return &Message{
		Recipients: recipients,
		To:         recipients[0],
		Subject:    RenderRecord(subject, r),
		HTML:       html,
		Plain:      PlainFallback(html),
	}, nil
}

func (s *ReminderService) activeTemplate(ctx context.Context) (model.Template, error) {
	tmpl := model.Template{}
	if s.TemplateRepo != nil {
		var err error
		tmpl, err = s.TemplateRepo.LoadActive(ctx)
		if err != nil {
			return model.Template{}, err
		}
	}
	if strings.TrimSpace(tmpl.Subject) == "" {
		tmpl.Subject = s.Config.DefaultTemplate.Subject
	}
	if strings.TrimSpace(tmpl.Body) == "" {
		tmpl.Body = s.Config.DefaultTemplate.Body
	}
	return tmpl, nil
}

func (s *ReminderService) logEntry(recordID string, due calendar.Date, msg *Message, status model.SendStatus, sendErr error) model.SendLogEntry {
	e := model.SendLogEntry{
		ID:         s.NewID(),
		RecordID:   recordID,
		DueDate:    due,
		Subject:    msg.Subject,
		Body:       msg.HTML,
		Recipients: msg.Recipients,
		Status:     status,
		SentAt:     s.Config.Calendar.Now(),
	}
	if sendErr != nil {
		e.Error = sendErr.Error()
	}
	return e
}

// SendNowResult is returned by SendNow.
type SendNowResult struct {
	OK        bool          `json:"ok"`
	RecordID  string        `json:"record_id"`
	Test      bool          `json:"test"`
	Recipient string        `json:"recipient"`
	DueDate   calendar.Date `json:"due_date"`
}

// SendNow delivers the record's reminder immediately to its first recipient.
// A real send advances the schedule like the sweep does; a test send leaves
// the schedule alone and its log entry never counts as delivered.
func (s *ReminderService) SendNow(ctx context.Context, recordID string, test bool) (*SendNowResult, error) {
	if !s.runMu.TryLock() {
		return nil, appErrors.ErrSweepInProgress
	}
	defer s.runMu.Unlock()

	r, err := s.RecordRepo.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, appErrors.NewRecordNotFound(recordID)
	}

	tmpl, err := s.activeTemplate(ctx)
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	msg, err := s.Compose(r, tmpl)
	if err != nil {
		return nil, err
	}

	due, ok := DueDate(r)
	if !ok {
		due = s.Config.Calendar.Today()
	}

	if err := s.Sender.Send(ctx, msg.To, msg.Subject, msg.HTML, msg.Plain); err != nil {
		log.Printf("❌ Immediate send for record %s failed: %v", r.ID, err)
		entry := s.logEntry(r.ID, due, msg, model.SendStatusError, err)
		if saveErr := s.SendLogRepo.SaveAll(context.WithoutCancel(ctx), []model.SendLogEntry{entry}); saveErr != nil {
			log.Println("⚠️ failed to log failed send:", saveErr)
		} else {
			observeSend(entry.Status)
		}
		return nil, fmt.Errorf("%w: %v", appErrors.ErrDeliveryFailed, err)
	}

	// The message is out; a caller going away must not lose its record.
	saveCtx := context.WithoutCancel(ctx)
	status := model.SendStatusOK
	if test {
		status = model.SendStatusTest
	} else {
		Advance(r)
		r.UpdatedAt = s.Config.Calendar.Now()
		if err := s.RecordRepo.SaveAll(saveCtx, []model.Record{*r}); err != nil {
			return nil, fmt.Errorf("save record: %w", err)
		}
	}
	if err := s.SendLogRepo.SaveAll(saveCtx, []model.SendLogEntry{s.logEntry(r.ID, due, msg, status, nil)}); err != nil {
		return nil, fmt.Errorf("save send log: %w", err)
	}
	observeSend(status)

	log.Printf("✅ Immediate send for record %s (test=%t) delivered to %s", r.ID, test, mailer.MaskAddress(msg.To))
	return &SendNowResult{OK: true, RecordID: r.ID, Test: test, Recipient: msg.To, DueDate: due}, nil
}

// Preview renders a record's reminder without sending or logging it.
type Preview struct {
	RecordID string        `json:"record_id"`
	DueDate  calendar.Date `json:"due_date"`
	Message  *Message      `json:"message"`
}

func (s *ReminderService) Preview(ctx context.Context, recordID string) (*Preview, error) {
	r, err := s.RecordRepo.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, appErrors.NewRecordNotFound(recordID)
	}
	tmpl, err := s.activeTemplate(ctx)
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	msg, err := s.Compose(r, tmpl)
	if err != nil {
		return nil, err
	}
	due, _ := DueDate(r)
	return &Preview{RecordID: r.ID, DueDate: due, Message: msg}, nil
}

// MigrateSchedules seeds next_occurrence_date for every stored record that
// lacks it. Run once at start-up, before any sweep.
func (s *ReminderService) MigrateSchedules(ctx context.Context) (int, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	records, err := s.RecordRepo.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load records: %w", err)
	}

	var updated []model.Record
	now := s.Config.Calendar.Now()
	for i := range records {
		if SeedSchedule(&records[i]) {
			records[i].UpdatedAt = now
			updated = append(updated, records[i])
		}
	}
	if len(updated) == 0 {
		return 0, nil
	}
	if err := s.RecordRepo.SaveAll(ctx, updated); err != nil {
		return 0, fmt.Errorf("save records: %w", err)
	}
	log.Printf("✅ Seeded schedule for %d records", len(updated))
	return len(updated), nil
}
