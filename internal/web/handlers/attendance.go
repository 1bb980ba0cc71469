package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/kozaktomas/face-attendance/internal/identity"
	"github.com/kozaktomas/face-attendance/internal/ledger"
)

// periodAll selects records of every period.
const periodAll = "all"

// AttendanceHandler handles attendance endpoints.
type AttendanceHandler struct {
	ledger ledger.Ledger
	now    func() time.Time
	logger *slog.Logger
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(l ledger.Ledger, now func() time.Time, logger *slog.Logger) *AttendanceHandler {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AttendanceHandler{ledger: l, now: now, logger: logger}
}

// AttendanceRecord is the wire format of a ledger record.
type AttendanceRecord struct {
	ID         string `json:"id"`
	EmployeeID string `json:"employee_id"`
	Timestamp  string `json:"timestamp"`
	Period     string `json:"period"`
}

// AttendanceResponse lists the records of a period.
type AttendanceResponse struct {
	Period  string             `json:"period"`
	Count   int                `json:"count"`
	Records []AttendanceRecord `json:"records"`
}

// List returns attendance records. The period query defaults to the current period;
// "all" returns every period. The identity query filters loosely (case and diacritics).
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	switch period {
	case "":
		period = h.ledger.Period()(h.now())
	case periodAll:
		period = ""
	}

	records, err := h.ledger.Records(r.Context(), period)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to read attendance", "error", err)
		if errors.Is(err, ledger.ErrUnavailable) {
			respondError(w, http.StatusServiceUnavailable, "attendance ledger unavailable")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to read attendance")
		return
	}

	filter := r.URL.Query().Get("identity")
	result := make([]AttendanceRecord, 0, len(records))
	for _, rec := range records {
		if filter != "" && !identity.Equal(rec.Identity, filter) {
			continue
		}
		result = append(result, AttendanceRecord{
			ID:         rec.ID,
			EmployeeID: rec.Identity,
			Timestamp:  rec.Timestamp.Format(ledger.FileTimeLayout),
			Period:     rec.PeriodKey,
		})
	}

	if period == "" {
		period = periodAll
	}
	respondJSON(w, http.StatusOK, AttendanceResponse{
		Period:  period,
		Count:   len(result),
		Records: result,
	})
}
