package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/embedding"
	"github.com/kozaktomas/face-attendance/internal/extractor"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

// Recognizer is the recognition service used by the handlers.
type Recognizer interface {
	Recognize(ctx context.Context, probe embedding.Vector) (recognition.Result, error)
	RecognizeImage(ctx context.Context, imageData []byte) (recognition.Result, error)
}

// RecognizeHandler handles recognition endpoints.
type RecognizeHandler struct {
	service Recognizer
	logger  *slog.Logger
}

// NewRecognizeHandler creates a new recognition handler.
func NewRecognizeHandler(service Recognizer, logger *slog.Logger) *RecognizeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecognizeHandler{service: service, logger: logger}
}

// RecognizeRequest is the body of an embedding recognition request.
type RecognizeRequest struct {
	Embedding []float64 `json:"embedding"`
}

// Recognize matches a probe embedding posted as JSON.
func (h *RecognizeHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	var req RecognizeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, constants.MaxEmbeddingBodySize)).Decode(&req); err != nil {
		respondStatus(w, http.StatusBadRequest, statusError, errInvalidRequestBody)
		return
	}
	if len(req.Embedding) == 0 {
		respondStatus(w, http.StatusBadRequest, statusError, "No embedding provided")
		return
	}

	res, err := h.service.Recognize(r.Context(), req.Embedding)
	h.respondResult(w, r, res, err)
}

// RecognizeImage matches the face in an uploaded image (multipart field "image").
func (h *RecognizeHandler) RecognizeImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	file, _, err := r.FormFile("image")
	if err != nil {
		respondStatus(w, http.StatusBadRequest, statusError, "No image provided")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil || len(data) == 0 {
		respondStatus(w, http.StatusBadRequest, statusError, "No image provided")
		return
	}

	res, err := h.service.RecognizeImage(r.Context(), data)
	h.respondResult(w, r, res, err)
}

func (h *RecognizeHandler) respondResult(w http.ResponseWriter, r *http.Request, res recognition.Result, err error) {
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, newRecognitionResponse(res))
	case errors.Is(err, embedding.ErrDimensionMismatch):
		respondStatus(w, http.StatusBadRequest, statusError, err.Error())
	case errors.Is(err, extractor.ErrNoFaceDetected):
		respondStatus(w, http.StatusOK, recognition.OutcomeNoMatch.Status(), "No face detected")
	case errors.Is(err, extractor.ErrInvalidImage):
		respondStatus(w, http.StatusBadRequest, statusError, "Invalid image")
	case errors.Is(err, extractor.ErrUnavailable), errors.Is(err, recognition.ErrNoExtractor):
		h.logger.ErrorContext(r.Context(), "face extraction unavailable", "error", err)
		respondStatus(w, http.StatusBadGateway, statusError, "Face extraction unavailable")
	case errors.Is(err, ledger.ErrUnavailable):
		h.logger.ErrorContext(r.Context(), "attendance ledger unavailable", "error", err)
		respondStatus(w, http.StatusServiceUnavailable, statusError, "Attendance ledger unavailable")
	default:
		h.logger.ErrorContext(r.Context(), "recognition failed", "error", sanitizeForLog(err.Error()))
		respondStatus(w, http.StatusInternalServerError, statusError, "Recognition failed")
	}
}
