package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/embedding"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/metrics"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

type staticExtractor embedding.Vector

func (s staticExtractor) ProbeFromImage(ctx context.Context, data []byte) (embedding.Vector, error) {
	return embedding.Vector(s), nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return newTestServerWithWeb(t, config.WebConfig{Host: "127.0.0.1", Port: 5000})
}

func newTestServerWithWeb(t *testing.T, web config.WebConfig) *Server {
	t.Helper()

	store, err := gallery.NewStore(gallery.Options{Dim: 2})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	loader := gallery.LoaderFunc(func(ctx context.Context) ([]gallery.Entry, error) {
		return []gallery.Entry{{Identity: "alice", Embedding: embedding.Vector{0, 0}}}, nil
	})
	refresher := gallery.NewRefresher(store, loader, nil)
	if _, err := refresher.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	m, err := metrics.NewMetrics()
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	svc := recognition.NewService(store, ledger.NewMemory(ledger.Daily(time.UTC)),
		recognition.WithExtractor(staticExtractor{0.1, 0}),
		recognition.WithObserver(m.Recognition),
	)

	cfg := &config.Config{Web: web}
	return NewServer(cfg, svc, WithRefresher(refresher), WithMetrics(m.Handler()))
}

func TestServer_Routes(t *testing.T) {
	srv := newTestServer(t)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, _ := writer.CreateFormFile("image", "capture.jpg")
	part.Write([]byte("jpeg"))
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/recognize-face", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("POST /recognize-face status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp["status"] != "success" || resp["employee_id"] != "alice" {
		t.Errorf("unexpected response %v", resp)
	}

	tests := []struct {
		method   string
		path     string
		wantCode int
		contains string
	}{
		{http.MethodGet, "/api/v1/health", http.StatusOK, `"ok"`},
		{http.MethodGet, "/api/v1/gallery", http.StatusOK, `"alice"`},
		{http.MethodPost, "/api/v1/gallery/refresh", http.StatusOK, `"size":1`},
		{http.MethodGet, "/api/v1/attendance", http.StatusOK, `"employee_id":"alice"`},
		{http.MethodGet, "/metrics", http.StatusOK, `recognition_outcomes_total`},
		{http.MethodGet, "/", http.StatusOK, `/recognize-face`},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if !strings.Contains(rec.Body.String(), tt.contains) {
				t.Errorf("body does not contain %q: %s", tt.contains, rec.Body.String())
			}
		})
	}
}

func TestServer_RateLimitKeyIgnoresForwardedHeadersByDefault(t *testing.T) {
	tests := []struct {
		name       string
		trustProxy bool
		wantSecond int
	}{
		{"untrusted", false, http.StatusTooManyRequests},
		{"behind proxy", true, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServerWithWeb(t, config.WebConfig{
				Host:       "127.0.0.1",
				Port:       5000,
				RateLimit:  0.001,
				RateBurst:  1,
				TrustProxy: tt.trustProxy,
			})

			do := func(forwardedFor string) int {
				req := httptest.NewRequest(http.MethodPost, "/recognize-face", nil)
				req.RemoteAddr = "10.0.0.1:1234"
				req.Header.Set("X-Forwarded-For", forwardedFor)
				rec := httptest.NewRecorder()
				srv.Router().ServeHTTP(rec, req)
				return rec.Code
			}

			if code := do("203.0.113.1"); code != http.StatusBadRequest {
				t.Fatalf("first request: status = %d, want %d", code, http.StatusBadRequest)
			}
			if code := do("203.0.113.2"); code != tt.wantSecond {
				t.Errorf("second request: status = %d, want %d", code, tt.wantSecond)
			}
		})
	}
}
