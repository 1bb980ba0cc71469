package ledger_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/ledger/ledgertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"))
}

func TestMemory_Contract(t *testing.T) {
	ledgertest.Run(t, func(_ *testing.T, period ledger.PeriodFunc) ledger.Ledger {
		return ledger.NewMemory(period)
	})
}

func TestFile_Contract(t *testing.T) {
	ledgertest.Run(t, func(t *testing.T, period ledger.PeriodFunc) ledger.Ledger {
		l, err := ledger.OpenFile(filepath.Join(t.TempDir(), "attendance.csv"), time.UTC, period)
		require.NoError(t, err)
		return l
	})
}

func TestBolt_Contract(t *testing.T) {
	ledgertest.Run(t, func(t *testing.T, period ledger.PeriodFunc) ledger.Ledger {
		l, err := ledger.OpenBolt(filepath.Join(t.TempDir(), "attendance.db"), period)
		require.NoError(t, err)
		return l
	})
}

func TestCached_Contract(t *testing.T) {
	ledgertest.Run(t, func(_ *testing.T, period ledger.PeriodFunc) ledger.Ledger {
		return ledger.NewCached(ledger.NewMemory(period), time.Minute)
	})
}

func TestFile_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "attendance.csv")
	period := ledger.Daily(time.UTC)

	l, err := ledger.OpenFile(path, time.UTC, period)
	require.NoError(t, err)
	first, err := l.Append(ctx, "alice", ledgertest.Day)
	require.NoError(t, err)
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "timestamp,employee_id,period_key,id", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "2024-03-15 09:30:00,alice,2024-03-15,"))

	l, err = ledger.OpenFile(path, time.UTC, period)
	require.NoError(t, err)
	defer l.Close()

	out, err := l.CheckAndAppend(ctx, "alice", ledgertest.Day.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, out.Created)
	assert.Equal(t, first.ID, out.Record.ID)
}

func TestFile_LegacyRows(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "attendance.csv")
	legacy := "timestamp,employee_id\n" +
		"2024-03-14 08:00:00,alice\n" +
		"2024-03-15 08:00:00,alice\n" +
		"2024-03-15 08:05:00,alice\n" +
		"2024-03-15 10:00:00,bob\n"
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o600))

	l, err := ledger.OpenFile(path, time.UTC, ledger.Daily(time.UTC))
	require.NoError(t, err)
	defer l.Close()

	records, err := l.Records(ctx, "2024-03-15")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "alice", records[0].Identity)
	assert.Equal(t, 8, records[0].Timestamp.Hour())
	assert.Equal(t, 0, records[0].Timestamp.Minute())
	assert.Equal(t, "bob", records[1].Identity)

	ok, err := l.HasRecord(ctx, "alice", "2024-03-14")
	require.NoError(t, err)
	assert.True(t, ok)

	out, err := l.CheckAndAppend(ctx, "carol", ledgertest.Day)
	require.NoError(t, err)
	assert.True(t, out.Created)
}

func TestFile_LegacyIDsAreStable(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "attendance.csv")
	require.NoError(t, os.WriteFile(path, []byte("timestamp,employee_id\n2024-03-15 08:00:00,alice\n"), 0o600))

	ids := make([]string, 2)
	for i := range ids {
		l, err := ledger.OpenFile(path, time.UTC, ledger.Daily(time.UTC))
		require.NoError(t, err)
		records, err := l.Records(ctx, "")
		require.NoError(t, err)
		require.Len(t, records, 1)
		ids[i] = records[0].ID
		require.NoError(t, l.Close())
	}
	assert.Equal(t, ids[0], ids[1])
}

func TestFile_MalformedRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attendance.csv")
	require.NoError(t, os.WriteFile(path, []byte("timestamp,employee_id\nyesterday,alice\n"), 0o600))

	_, err := ledger.OpenFile(path, time.UTC, ledger.Daily(time.UTC))
	assert.ErrorIs(t, err, ledger.ErrUnavailable)
}

func TestFile_ClosedIsUnavailable(t *testing.T) {
	l, err := ledger.OpenFile(filepath.Join(t.TempDir(), "attendance.csv"), time.UTC, ledger.Daily(time.UTC))
	require.NoError(t, err)
	require.NoError(t, l.Close())

	assertClosedUnavailable(t, l)
}

func TestBolt_ClosedIsUnavailable(t *testing.T) {
	l, err := ledger.OpenBolt(filepath.Join(t.TempDir(), "attendance.db"), ledger.Daily(time.UTC))
	require.NoError(t, err)
	require.NoError(t, l.Close())

	assertClosedUnavailable(t, l)
}

func assertClosedUnavailable(t *testing.T, l ledger.Ledger) {
	t.Helper()
	ctx := context.Background()

	_, err := l.CheckAndAppend(ctx, "alice", ledgertest.Day)
	assert.ErrorIs(t, err, ledger.ErrUnavailable)

	found, err := l.HasRecord(ctx, "alice", "2024-03-15")
	assert.ErrorIs(t, err, ledger.ErrUnavailable)
	assert.False(t, found)

	records, err := l.Records(ctx, "")
	assert.ErrorIs(t, err, ledger.ErrUnavailable)
	assert.Empty(t, records)
}

func TestBolt_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "attendance.db")
	period := ledger.Daily(time.UTC)

	l, err := ledger.OpenBolt(path, period)
	require.NoError(t, err)
	first, err := l.Append(ctx, "alice", ledgertest.Day)
	require.NoError(t, err)
	require.NoError(t, l.Close())

	l, err = ledger.OpenBolt(path, period)
	require.NoError(t, err)
	defer l.Close()

	out, err := l.CheckAndAppend(ctx, "alice", ledgertest.Day.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, out.Created)
	assert.Equal(t, first.ID, out.Record.ID)
	assert.True(t, first.Timestamp.Equal(out.Record.Timestamp))
}

// countingLedger counts calls reaching the wrapped ledger.
type countingLedger struct {
	ledger.Ledger
	checks int
}

func (c *countingLedger) CheckAndAppend(ctx context.Context, identity string, ts time.Time) (ledger.Outcome, error) {
	c.checks++
	return c.Ledger.CheckAndAppend(ctx, identity, ts)
}

func TestCached_ServesRepeatsFromCache(t *testing.T) {
	ctx := context.Background()
	inner := &countingLedger{Ledger: ledger.NewMemory(ledger.Daily(time.UTC))}
	l := ledger.NewCached(inner, time.Minute)
	defer l.Close()

	for range 5 {
		_, err := l.CheckAndAppend(ctx, "alice", ledgertest.Day)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, inner.checks)

	_, err := l.CheckAndAppend(ctx, "alice", ledgertest.Day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, inner.checks)
}

func TestPeriods(t *testing.T) {
	prague, err := time.LoadLocation("Europe/Prague")
	require.NoError(t, err)

	// 23:30 UTC is already the next day in Prague.
	ts := time.Date(2024, 3, 15, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-15", ledger.Daily(time.UTC)(ts))
	assert.Equal(t, "2024-03-16", ledger.Daily(prague)(ts))

	shift := ledger.Window(time.UTC, 8*time.Hour)
	assert.Equal(t, "2024-03-15T00:00", shift(time.Date(2024, 3, 15, 7, 59, 0, 0, time.UTC)))
	assert.Equal(t, "2024-03-15T08:00", shift(time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-03-15T16:00", shift(ts))
}

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		spec    string
		ts      time.Time
		want    string
		wantErr bool
	}{
		{spec: "", ts: ledgertest.Day, want: "2024-03-15"},
		{spec: "daily", ts: ledgertest.Day, want: "2024-03-15"},
		{spec: "24h", ts: ledgertest.Day, want: "2024-03-15"},
		{spec: "4h", ts: ledgertest.Day, want: "2024-03-15T08:00"},
		{spec: "30m", ts: ledgertest.Day, want: "2024-03-15T09:30"},
		{spec: "weekly", wantErr: true},
		{spec: "30s", wantErr: true},
		{spec: "48h", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			period, err := ledger.ParsePeriod(tt.spec, time.UTC)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, period(tt.ts))
		})
	}
}
