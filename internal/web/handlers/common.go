// Package handlers implements the HTTP endpoints of the attendance server.
package handlers

import (
	"encoding/json"
	"math"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// Wire statuses besides the recognition outcomes.
const statusError = "error"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// recognitionResponse is the wire format of every recognition endpoint.
type recognitionResponse struct {
	Status     string   `json:"status"`
	EmployeeID string   `json:"employee_id,omitempty"`
	Distance   *float64 `json:"distance,omitempty"`
	Timestamp  string   `json:"timestamp,omitempty"`
	Period     string   `json:"period,omitempty"`
	Message    string   `json:"message,omitempty"`
}

// respondStatus sends a recognition-style {"status", "message"} response.
func respondStatus(w http.ResponseWriter, code int, status, message string) {
	respondJSON(w, code, recognitionResponse{Status: status, Message: message})
}

func newRecognitionResponse(res recognition.Result) recognitionResponse {
	resp := recognitionResponse{Status: res.Outcome.Status()}
	if !math.IsInf(res.Distance, 0) && !math.IsNaN(res.Distance) {
		d := res.Distance
		resp.Distance = &d
	}

	switch res.Outcome {
	case recognition.OutcomeRecorded, recognition.OutcomeAlreadyMarked:
		resp.EmployeeID = res.Identity
		resp.Timestamp = res.Record.Timestamp.Format(ledger.FileTimeLayout)
		resp.Period = res.Record.PeriodKey
	default:
		resp.Message = "No matching face found"
	}
	return resp
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
