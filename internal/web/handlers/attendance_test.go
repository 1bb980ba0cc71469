package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/ledger"
)

func seededLedger(t *testing.T) *mock.MockLedger {
	t.Helper()
	ctx := context.Background()
	l := mock.NewMockLedger()
	for _, rec := range []struct {
		identity string
		ts       time.Time
	}{
		{"Jiří Novák", testNow.Add(-24 * time.Hour)},
		{"alice", testNow.Add(-time.Hour)},
		{"Jiří Novák", testNow},
	} {
		if _, err := l.CheckAndAppend(ctx, rec.identity, rec.ts); err != nil {
			t.Fatalf("failed to seed ledger: %v", err)
		}
	}
	return l
}

func TestAttendanceHandler_List(t *testing.T) {
	now := func() time.Time { return testNow }

	tests := []struct {
		name       string
		query      string
		wantPeriod string
		wantIDs    []string
	}{
		{"current period", "", "2024-03-15", []string{"alice", "Jiří Novák"}},
		{"explicit period", "?period=2024-03-14", "2024-03-14", []string{"Jiří Novák"}},
		{"all periods", "?period=all", "all", []string{"Jiří Novák", "alice", "Jiří Novák"}},
		{"identity filter ignores case and diacritics", "?period=all&identity=jiri-novak", "all", []string{"Jiří Novák", "Jiří Novák"}},
		{"unknown period", "?period=1999-01-01", "1999-01-01", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewAttendanceHandler(seededLedger(t), now, nil)

			recorder := httptest.NewRecorder()
			handler.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/attendance"+tt.query, nil))

			assertStatusCode(t, recorder, http.StatusOK)

			var resp AttendanceResponse
			parseJSONResponse(t, recorder, &resp)
			if resp.Period != tt.wantPeriod {
				t.Errorf("expected period '%s', got '%s'", tt.wantPeriod, resp.Period)
			}
			if resp.Count != len(tt.wantIDs) || len(resp.Records) != len(tt.wantIDs) {
				t.Fatalf("expected %d records, got %d (%d)", len(tt.wantIDs), resp.Count, len(resp.Records))
			}
			for i, want := range tt.wantIDs {
				if resp.Records[i].EmployeeID != want {
					t.Errorf("record %d: expected '%s', got '%s'", i, want, resp.Records[i].EmployeeID)
				}
			}
		})
	}
}

func TestAttendanceHandler_ListUnavailable(t *testing.T) {
	l := mock.NewMockLedger()
	l.RecordsError = fmt.Errorf("%w: connection reset", ledger.ErrUnavailable)
	handler := NewAttendanceHandler(l, nil, nil)

	recorder := httptest.NewRecorder()
	handler.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/attendance", nil))

	assertStatusCode(t, recorder, http.StatusServiceUnavailable)
	assertJSONError(t, recorder, "attendance ledger unavailable")
}
