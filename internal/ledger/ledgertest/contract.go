// Package ledgertest provides the behavior suite every ledger backend must pass.
package ledgertest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory creates an empty ledger using period for period keys.
type Factory func(t *testing.T, period ledger.PeriodFunc) ledger.Ledger

// Day is the reference timestamp used by the suite.
var Day = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

// Run executes the ledger contract against ledgers built by newLedger.
func Run(t *testing.T, newLedger Factory) {
	t.Helper()
	ctx := context.Background()
	period := ledger.Daily(time.UTC)

	open := func(t *testing.T) ledger.Ledger {
		t.Helper()
		l := newLedger(t, period)
		t.Cleanup(func() { _ = l.Close() })
		return l
	}

	t.Run("sequential check and append", func(t *testing.T) {
		l := open(t)

		first, err := l.CheckAndAppend(ctx, "alice", Day)
		require.NoError(t, err)
		assert.True(t, first.Created)
		assert.Equal(t, "alice", first.Record.Identity)
		assert.Equal(t, "2024-03-15", first.Record.PeriodKey)
		assert.NotEmpty(t, first.Record.ID)

		second, err := l.CheckAndAppend(ctx, "alice", Day.Add(3*time.Hour))
		require.NoError(t, err)
		assert.False(t, second.Created)
		assert.Equal(t, first.Record.ID, second.Record.ID)
		assert.True(t, first.Record.Timestamp.Equal(second.Record.Timestamp))
	})

	t.Run("has record", func(t *testing.T) {
		l := open(t)

		ok, err := l.HasRecord(ctx, "alice", "2024-03-15")
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = l.Append(ctx, "alice", Day)
		require.NoError(t, err)

		ok, err = l.HasRecord(ctx, "alice", "2024-03-15")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = l.HasRecord(ctx, "alice", "2024-03-16")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = l.HasRecord(ctx, "bob", "2024-03-15")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("append rejects second record in period", func(t *testing.T) {
		l := open(t)

		rec, err := l.Append(ctx, "alice", Day)
		require.NoError(t, err)
		assert.Equal(t, "2024-03-15", rec.PeriodKey)

		_, err = l.Append(ctx, "alice", Day.Add(time.Minute))
		assert.ErrorIs(t, err, ledger.ErrAlreadyRecorded)

		records, err := l.Records(ctx, "2024-03-15")
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("period rollover", func(t *testing.T) {
		l := open(t)

		today, err := l.CheckAndAppend(ctx, "alice", Day)
		require.NoError(t, err)
		assert.True(t, today.Created)

		tomorrow, err := l.CheckAndAppend(ctx, "alice", Day.Add(24*time.Hour))
		require.NoError(t, err)
		assert.True(t, tomorrow.Created)
		assert.Equal(t, "2024-03-16", tomorrow.Record.PeriodKey)
		assert.NotEqual(t, today.Record.ID, tomorrow.Record.ID)
	})

	t.Run("identities are independent", func(t *testing.T) {
		l := open(t)

		for _, id := range []string{"alice", "bob", "carol"} {
			out, err := l.CheckAndAppend(ctx, id, Day)
			require.NoError(t, err)
			assert.True(t, out.Created, id)
		}
	})

	t.Run("concurrent check and append creates once", func(t *testing.T) {
		l := open(t)

		const workers = 32
		outcomes := make([]ledger.Outcome, workers)
		errs := make([]error, workers)
		start := make(chan struct{})

		var wg sync.WaitGroup
		for i := range workers {
			wg.Go(func() {
				<-start
				outcomes[i], errs[i] = l.CheckAndAppend(ctx, "alice", Day.Add(time.Duration(i)*time.Second))
			})
		}
		close(start)
		wg.Wait()

		created := 0
		for i := range workers {
			require.NoError(t, errs[i])
			if outcomes[i].Created {
				created++
			}
			assert.Equal(t, outcomes[0].Record.ID, outcomes[i].Record.ID)
		}
		assert.Equal(t, 1, created)

		records, err := l.Records(ctx, "2024-03-15")
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("records keep append order", func(t *testing.T) {
		l := open(t)

		ids := []string{"carol", "alice", "bob"}
		for i, id := range ids {
			_, err := l.Append(ctx, id, Day.Add(time.Duration(i)*time.Minute))
			require.NoError(t, err)
		}
		_, err := l.Append(ctx, "alice", Day.Add(24*time.Hour))
		require.NoError(t, err)

		records, err := l.Records(ctx, "2024-03-15")
		require.NoError(t, err)
		require.Len(t, records, 3)
		for i, r := range records {
			assert.Equal(t, ids[i], r.Identity)
		}

		all, err := l.Records(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 4)
	})
}
