// internal/handler/record_handler.go
package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/unclebandit/anniversary-reminder/internal/errors"
	"github.com/unclebandit/anniversary-reminder/internal/service"
)

// RecordHandler serves the record detail view
type RecordHandler struct {
	Service *service.RecordService
}

func NewRecordHandler(svc *service.RecordService) *RecordHandler {
	return &RecordHandler{Service: svc}
}

// GetRecordWithHistory returns a record with its send history and
// per-status counts.
func (h *RecordHandler) GetRecordWithHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	log.Println("📥 Handler called for record ID:", id)

	details, err := h.Service.GetRecordDetailsWithHistory(r.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		var nf *appErrors.ErrRecordNotFound
		if errors.As(err, &nf) {
			status = http.StatusNotFound
		} else {
			log.Println("❌ Error fetching record:", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]string{"detail": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(details)
}
