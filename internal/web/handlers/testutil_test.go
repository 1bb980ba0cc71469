package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/embedding"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

var testNow = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

// fakeExtractor returns a fixed probe or error for every image
type fakeExtractor struct {
	probe embedding.Vector
	err   error
}

func (f *fakeExtractor) ProbeFromImage(ctx context.Context, data []byte) (embedding.Vector, error) {
	return f.probe, f.err
}

// testGallery creates a two-identity gallery: alice at (0,0) and bob at (0.9,0)
func testGallery(t *testing.T) *gallery.Store {
	t.Helper()
	store, err := gallery.NewStore(gallery.Options{Dim: 2})
	if err != nil {
		t.Fatalf("failed to create gallery store: %v", err)
	}
	err = store.Load([]gallery.Entry{
		{Identity: "alice", Embedding: embedding.Vector{0, 0}},
		{Identity: "bob", Embedding: embedding.Vector{0.9, 0}},
	})
	if err != nil {
		t.Fatalf("failed to load gallery: %v", err)
	}
	return store
}

// testService creates a recognition service over the test gallery and a mock ledger
func testService(t *testing.T, ext recognition.Extractor) (*recognition.Service, *mock.MockLedger) {
	t.Helper()
	l := mock.NewMockLedger()
	opts := []recognition.Option{recognition.WithClock(func() time.Time { return testNow })}
	if ext != nil {
		opts = append(opts, recognition.WithExtractor(ext))
	}
	return recognition.NewService(testGallery(t), l, opts...), l
}

// jsonRequest creates a request with a JSON body
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request body: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// imageRequest creates a multipart request with the given form field
func imageRequest(t *testing.T, path, field string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(field, "capture.jpg")
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	part.Write(data)
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// parseJSONResponse parses JSON response body into the given target
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks that the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks that the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	contentType := recorder.Header().Get("Content-Type")
	if contentType != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, contentType)
	}
}

// assertJSONError checks that the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var response map[string]string
	parseJSONResponse(t, recorder, &response)
	if response["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, response["error"])
	}
}

// assertRecognition checks the status and message of a recognition response
func assertRecognition(t *testing.T, recorder *httptest.ResponseRecorder, status, message string) recognitionResponse {
	t.Helper()
	var resp recognitionResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Status != status {
		t.Errorf("expected status '%s', got '%s'", status, resp.Status)
	}
	if resp.Message != message {
		t.Errorf("expected message '%s', got '%s'", message, resp.Message)
	}
	return resp
}
