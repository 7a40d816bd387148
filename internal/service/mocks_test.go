package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/unclebandit/anniversary-reminder/internal/calendar"
	"github.com/unclebandit/anniversary-reminder/internal/model"
	"github.com/unclebandit/anniversary-reminder/internal/service"
)

// Mock repositories

type MockRecordRepo struct {
	mu      sync.Mutex
	order   []string
	records map[string]model.Record
	saves   int
	saveErr error
	// afterGet runs once, right after the next GetByID has read its copy.
	afterGet func()
}

func NewMockRecordRepo(records ...model.Record) *MockRecordRepo {
	m := &MockRecordRepo{records: map[string]model.Record{}}
	for _, r := range records {
		m.order = append(m.order, r.ID)
		m.records[r.ID] = r
	}
	return m
}

func (m *MockRecordRepo) LoadAll(ctx context.Context) ([]model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Record, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.records[id])
	}
	return out, nil
}

func (m *MockRecordRepo) SaveAll(ctx context.Context, records []model.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	for _, r := range records {
		stored, ok := m.records[r.ID]
		if !ok {
			m.order = append(m.order, r.ID)
			m.records[r.ID] = r
			continue
		}
		stored.NextOccurrence = r.NextOccurrence
		stored.UpdatedAt = r.UpdatedAt
		m.records[r.ID] = stored
	}
	return nil
}

func (m *MockRecordRepo) GetByID(ctx context.Context, id string) (*model.Record, error) {
	m.mu.Lock()
	r, ok := m.records[id]
	hook := m.afterGet
	m.afterGet = nil
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *MockRecordRepo) Create(ctx context.Context, r *model.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.order = append(m.order, r.ID)
	m.records[r.ID] = *r
	return nil
}

func (m *MockRecordRepo) Update(ctx context.Context, r *model.Record, reseed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stored, ok := m.records[r.ID]; ok && !reseed {
		r.NextOccurrence = stored.NextOccurrence
	}
	m.records[r.ID] = *r
	return nil
}

func (m *MockRecordRepo) Get(id string) model.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[id]
}

type MockSendLogRepo struct {
	mu      sync.Mutex
	entries []model.SendLogEntry
	saveErr error
}

func (m *MockSendLogRepo) LoadAll(ctx context.Context) ([]model.SendLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.SendLogEntry(nil), m.entries...), nil
}

func (m *MockSendLogRepo) SaveAll(ctx context.Context, entries []model.SendLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	seen := map[string]bool{}
	for _, e := range m.entries {
		seen[e.ID] = true
	}
	for _, e := range entries {
		if !seen[e.ID] {
			m.entries = append(m.entries, e)
		}
	}
	return nil
}

func (m *MockSendLogRepo) ListByRecord(ctx context.Context, recordID string) ([]model.SendLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.SendLogEntry
	for _, e := range m.entries {
		if e.RecordID == recordID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MockSendLogRepo) GetStats(ctx context.Context, recordID string) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := map[string]int{}
	for _, e := range m.entries {
		if e.RecordID == recordID {
			stats[string(e.Status)]++
		}
	}
	return stats, nil
}

func (m *MockSendLogRepo) All() []model.SendLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.SendLogEntry(nil), m.entries...)
}

type MockWatermarkRepo struct {
	day   calendar.Date
	found bool
	saves int
}

func (m *MockWatermarkRepo) Load(ctx context.Context) (calendar.Date, bool, error) {
	return m.day, m.found, nil
}

func (m *MockWatermarkRepo) Save(ctx context.Context, day calendar.Date) error {
	m.day, m.found = day, true
	m.saves++
	return nil
}

type MockTemplateRepo struct {
	tmpl model.Template
}

func (m *MockTemplateRepo) LoadActive(ctx context.Context) (model.Template, error) {
	return m.tmpl, nil
}

type sentMail struct {
	To, Subject, HTML, Plain string
}

// MockSender records every message; addresses in failFor are rejected.
type MockSender struct {
	mu      sync.Mutex
	sent    []sentMail
	failFor map[string]bool
	entered chan struct{}
	block   chan struct{}
	// onSend runs after every delivered message.
	onSend func()
}

func (m *MockSender) Send(ctx context.Context, to, subject, htmlBody, plainFallback string) error {
	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	if m.failFor[to] {
		m.mu.Unlock()
		return errors.New("mock smtp: 550 mailbox unavailable")
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, HTML: htmlBody, Plain: plainFallback})
	hook := m.onSend
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

func (m *MockSender) Sent() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

// fixture wires a ReminderService with in-memory stores.
type fixture struct {
	records    *MockRecordRepo
	sendLog    *MockSendLogRepo
	watermarks *MockWatermarkRepo
	sender     *MockSender
	clock      *mutableClock
	svc        *service.ReminderService
}

type mutableClock struct {
	mu sync.Mutex
	at time.Time
}

func (c *mutableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}

func (c *mutableClock) Set(day calendar.Date) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.at = day.Time().Add(9 * time.Hour)
}

func newFixture(today string, records ...model.Record) *fixture {
	clock := &mutableClock{}
	clock.Set(calendar.MustParse(today))

	f := &fixture{
		records:    NewMockRecordRepo(records...),
		sendLog:    &MockSendLogRepo{},
		watermarks: &MockWatermarkRepo{},
		sender:     &MockSender{failFor: map[string]bool{}},
		clock:      clock,
	}
	seq := 0
	f.svc = service.NewReminderService(
		f.records,
		f.sendLog,
		f.watermarks,
		&MockTemplateRepo{tmpl: model.Template{
			Subject: "Anniversary of {deceased_full_name}",
			Body:    "<p>Dear {first_name},</p><p>on {next_occurrence_date} we remember {deceased_first_name}.</p>",
		}},
		f.sender,
		service.ReminderConfig{Calendar: calendar.NewCalendar(time.UTC, clock)},
	)
	f.svc.NewID = func() string {
		seq++
		return fmt.Sprintf("log-%d", seq)
	}
	return f
}

func (f *fixture) setWatermark(day string) {
	f.watermarks.day = calendar.MustParse(day)
	f.watermarks.found = true
}

func datePtr(s string) *calendar.Date {
	d := calendar.MustParse(s)
	return &d
}

func record(id, email, next string, lead int) model.Record {
	return model.Record{
		ID:                id,
		FirstName:         "Maria",
		LastName:          "Rossi",
		Email:             email,
		DeceasedFirstName: "Giovanni",
		DeceasedLastName:  "Rossi",
		ReferenceDate:     datePtr("2020-01-01"),
		LeadTimeDays:      lead,
		NextOccurrence:    datePtr(next),
	}
}
