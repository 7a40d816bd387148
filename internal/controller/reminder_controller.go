// internal/controller/reminder_controller.go
package controller

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/unclebandit/anniversary-reminder/internal/errors"
	"github.com/unclebandit/anniversary-reminder/internal/service"
)

// Version is reported by /health.
const Version = "1.0.0"

type ReminderController struct {
	ReminderService *service.ReminderService
	RecordService   *service.RecordService
}

func (c *ReminderController) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": Version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (c *ReminderController) ListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := c.RecordService.ListRecords(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func decodeInput(r *http.Request) (service.RecordInput, error) {
	var in service.RecordInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		return in, fmt.Errorf("%w: invalid body: %v", appErrors.ErrInvalidInput, err)
	}
	return in, nil
}

func (c *ReminderController) CreateRecord(w http.ResponseWriter, r *http.Request) {
	in, err := decodeInput(r)
	if err != nil {
		writeError(w, err)
		return
	}
	record, err := c.RecordService.CreateRecord(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (c *ReminderController) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	in, err := decodeInput(r)
	if err != nil {
		writeError(w, err)
		return
	}
	record, err := c.RecordService.UpdateRecord(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (c *ReminderController) ListSent(w http.ResponseWriter, r *http.Request) {
	entries, err := c.RecordService.ListSent(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sent": entries})
}

func (c *ReminderController) Preview(w http.ResponseWriter, r *http.Request) {
	preview, err := c.ReminderService.Preview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// RunCatchUp runs a sweep synchronously and returns its result.
func (c *ReminderController) RunCatchUp(w http.ResponseWriter, r *http.Request) {
	log.Println("📥 Catch-up requested over HTTP")
	result, err := c.ReminderService.RunCatchUp(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// SendNow sends a record's reminder immediately. ?test=1 sends without
// advancing the schedule.
func (c *ReminderController) SendNow(w http.ResponseWriter, r *http.Request) {
	test, err := parseFlag(r.URL.Query().Get("test"))
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := c.ReminderService.SendNow(r.Context(), chi.URLParam(r, "id"), test)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func parseFlag(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: test must be a boolean, got %q", appErrors.ErrInvalidInput, v)
	}
	return b, nil
}
