package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/anniversary-reminder/internal/calendar"
	"github.com/unclebandit/anniversary-reminder/internal/controller"
	"github.com/unclebandit/anniversary-reminder/internal/handler"
	"github.com/unclebandit/anniversary-reminder/internal/model"
	"github.com/unclebandit/anniversary-reminder/internal/service"
)

// --- In-memory stores ---

type memRecords struct {
	mu      sync.Mutex
	records map[string]model.Record
}

func (m *memRecords) LoadAll(ctx context.Context) ([]model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Record{}
	for _, r := range m.records {
		out = append(out, r)
	}
	return out, nil
}

func (m *memRecords) SaveAll(ctx context.Context, records []model.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.records[r.ID] = r
	}
	return nil
}

func (m *memRecords) GetByID(ctx context.Context, id string) (*model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *memRecords) Create(ctx context.Context, r *model.Record) error {
	return m.SaveAll(ctx, []model.Record{*r})
}

func (m *memRecords) Update(ctx context.Context, r *model.Record, reseed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stored, ok := m.records[r.ID]; ok && !reseed {
		r.NextOccurrence = stored.NextOccurrence
	}
	m.records[r.ID] = *r
	return nil
}

type memSendLog struct {
	mu      sync.Mutex
	entries []model.SendLogEntry
}

func (m *memSendLog) LoadAll(ctx context.Context) ([]model.SendLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.SendLogEntry(nil), m.entries...), nil
}

func (m *memSendLog) SaveAll(ctx context.Context, entries []model.SendLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entries...)
	return nil
}

func (m *memSendLog) ListByRecord(ctx context.Context, id string) ([]model.SendLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.SendLogEntry
	for _, e := range m.entries {
		if e.RecordID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memSendLog) GetStats(ctx context.Context, id string) (map[string]int, error) {
	entries, _ := m.ListByRecord(ctx, id)
	stats := map[string]int{}
	for _, e := range entries {
		stats[string(e.Status)]++
	}
	return stats, nil
}

type memWatermark struct {
	day   calendar.Date
	found bool
}

func (m *memWatermark) Load(ctx context.Context) (calendar.Date, bool, error) {
	return m.day, m.found, nil
}

func (m *memWatermark) Save(ctx context.Context, day calendar.Date) error {
	m.day, m.found = day, true
	return nil
}

type staticTemplate struct{}

func (staticTemplate) LoadActive(ctx context.Context) (model.Template, error) {
	return model.Template{Subject: "Ricordo di {deceased_first_name}", Body: "<p>Ciao {first_name}</p>"}, nil
}

type stubSender struct {
	mu   sync.Mutex
	sent []string
}

func (s *stubSender) Send(ctx context.Context, to, subject, htmlBody, plainFallback string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if to == "bounce@example.com" {
		return errors.New("550 mailbox unavailable")
	}
	s.sent = append(s.sent, to)
	return nil
}

// --- Fixture ---

const secret = "s3cret"

func datePtr(s string) *calendar.Date {
	d := calendar.MustParse(s)
	return &d
}

func newServer(t *testing.T, adminSecret string) (http.Handler, *memRecords, *stubSender) {
	t.Helper()
	records := &memRecords{records: map[string]model.Record{
		"r1": {ID: "r1", FirstName: "Maria", Email: "maria@example.com", DeceasedFirstName: "Giovanni",
			ReferenceDate: datePtr("2020-10-18"), NextOccurrence: datePtr("2026-10-18")},
		"noemail": {ID: "noemail", NextOccurrence: datePtr("2026-12-01")},
		"bounce":  {ID: "bounce", Email: "bounce@example.com", NextOccurrence: datePtr("2026-12-01")},
	}}
	sendLog := &memSendLog{}
	sender := &stubSender{}
	cal := calendar.NewCalendar(time.UTC, calendar.FixedClock{At: time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)})

	reminders := service.NewReminderService(records, sendLog, &memWatermark{}, staticTemplate{}, sender,
		service.ReminderConfig{Calendar: cal})
	recordSvc := &service.RecordService{RecordRepo: records, SendLogRepo: sendLog, Calendar: cal}

	router := controller.NewRouter(
		&controller.ReminderController{ReminderService: reminders, RecordService: recordSvc},
		handler.NewRecordHandler(recordSvc),
		controller.RouterConfig{AdminSecret: adminSecret, CORSOrigins: []string{"*"}},
	)
	return router, records, sender
}

func do(t *testing.T, h http.Handler, method, path string, body any, withSecret bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if withSecret {
		req.Header.Set(controller.SecretHeader, secret)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// --- Tests ---

func TestHealth(t *testing.T) {
	h, _, _ := newServer(t, secret)

	w := do(t, h, http.MethodGet, "/health", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, controller.Version, body["version"])
	assert.NotEmpty(t, body["time"])
}

func TestAdminRoutesRequireSecret(t *testing.T) {
	h, _, _ := newServer(t, secret)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/admin/run-catchup", nil, false).Code)

	req := httptest.NewRequest(http.MethodGet, "/emails/sent", nil)
	req.Header.Set(controller.SecretHeader, "wrong")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/emails/sent", nil, true).Code)
}

func TestAdminRoutesDisabledWithoutSecret(t *testing.T) {
	h, _, _ := newServer(t, "")
	w := do(t, h, http.MethodPost, "/admin/run-catchup", nil, true)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCreateRecord(t *testing.T) {
	h, records, _ := newServer(t, secret)

	w := do(t, h, http.MethodPost, "/records", map[string]any{
		"first_name":     "Luca",
		"email":          "luca@example.com",
		"reference_date": "2025-03-01",
		"lead_time_days": 5,
	}, false)
	require.Equal(t, http.StatusCreated, w.Code)

	body := decode(t, w)
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "2026-03-01", body["next_occurrence_date"])
	stored, _ := records.GetByID(context.Background(), id)
	require.NotNil(t, stored)
	assert.Equal(t, "Luca", stored.FirstName)
}

func TestCreateRecord_BadInput(t *testing.T) {
	h, _, _ := newServer(t, secret)

	w := do(t, h, http.MethodPost, "/records", map[string]any{"lead_time_days": -3}, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/records", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateRecord_NotFound(t *testing.T) {
	h, _, _ := newServer(t, secret)
	w := do(t, h, http.MethodPut, "/records/missing", map[string]any{"first_name": "x"}, false)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetRecordWithHistory(t *testing.T) {
	h, _, _ := newServer(t, secret)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/admin/send-now/r1?test=1", nil, true).Code)

	w := do(t, h, http.MethodGet, "/records/r1", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	stats := body["stats"].(map[string]any)
	assert.Equal(t, float64(1), stats["test"])
	assert.Equal(t, float64(1), stats["total"])
	assert.Len(t, body["history"], 1)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/records/missing", nil, false).Code)
}

func TestSendNow(t *testing.T) {
	h, records, sender := newServer(t, secret)

	w := do(t, h, http.MethodPost, "/admin/send-now/r1", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, false, body["test"])
	assert.Equal(t, []string{"maria@example.com"}, sender.sent)

	r, _ := records.GetByID(context.Background(), "r1")
	assert.Equal(t, "2027-10-18", r.NextOccurrence.String())
}

func TestSendNow_StatusCodes(t *testing.T) {
	h, _, _ := newServer(t, secret)

	tests := []struct {
		path string
		want int
	}{
		{"/admin/send-now/missing", http.StatusNotFound},
		{"/admin/send-now/noemail", http.StatusUnprocessableEntity},
		{"/admin/send-now/bounce", http.StatusBadGateway},
		{"/admin/send-now/r1?test=maybe", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := do(t, h, http.MethodPost, tt.path, nil, true)
			assert.Equal(t, tt.want, w.Code)
			assert.NotEmpty(t, decode(t, w)["detail"])
		})
	}
}

func TestRunCatchUp(t *testing.T) {
	h, _, sender := newServer(t, secret)

	w := do(t, h, http.MethodPost, "/admin/run-catchup", nil, true)
	require.Equal(t, http.StatusOK, w.Code)

	var result service.SweepResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Counts.Days)
	assert.Equal(t, 1, result.Counts.Processed)
	assert.Equal(t, "2026-10-18", result.ProcessedRange.To.String())
	assert.Equal(t, []string{"maria@example.com"}, sender.sent)
}

func TestPreview(t *testing.T) {
	h, _, sender := newServer(t, secret)

	w := do(t, h, http.MethodGet, "/records/r1/preview", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	var p service.Preview
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, "Ricordo di Giovanni", p.Message.Subject)
	assert.Equal(t, "<p>Ciao Maria</p>", p.Message.HTML)
	assert.Empty(t, sender.sent)
}

func TestCORSPreflight(t *testing.T) {
	h, _, _ := newServer(t, secret)

	req := httptest.NewRequest(http.MethodOptions, "/admin/run-catchup", nil)
	req.Header.Set("Origin", "https://admin.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "X-Secret")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
