package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Memory is a process-local ledger. Records are lost when the process exits.
type Memory struct {
	period PeriodFunc

	mu      sync.Mutex
	index   map[string]int
	records []Record
}

// NewMemory creates an empty in-memory ledger.
func NewMemory(period PeriodFunc) *Memory {
	return &Memory{
		period: period,
		index:  make(map[string]int),
	}
}

func (m *Memory) HasRecord(_ context.Context, identity, periodKey string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.index[indexKey(periodKey, identity)]
	return ok, nil
}

func (m *Memory) Append(ctx context.Context, identity string, ts time.Time) (Record, error) {
	out, err := m.CheckAndAppend(ctx, identity, ts)
	if err != nil {
		return Record{}, err
	}
	if !out.Created {
		return Record{}, fmt.Errorf("%w: %s in %s", ErrAlreadyRecorded, identity, out.Record.PeriodKey)
	}
	return out.Record, nil
}

func (m *Memory) CheckAndAppend(_ context.Context, identity string, ts time.Time) (Outcome, error) {
	rec := NewRecord(identity, ts, m.period)
	key := indexKey(rec.PeriodKey, identity)

	m.mu.Lock()
	defer m.mu.Unlock()

	if i, ok := m.index[key]; ok {
		return Outcome{Record: m.records[i]}, nil
	}
	m.index[key] = len(m.records)
	m.records = append(m.records, rec)
	return Outcome{Record: rec, Created: true}, nil
}

func (m *Memory) Records(_ context.Context, periodKey string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return filterPeriod(m.records, periodKey), nil
}

func (m *Memory) Period() PeriodFunc {
	return m.period
}

func (m *Memory) Close() error {
	return nil
}

func filterPeriod(records []Record, periodKey string) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if periodKey == "" || r.PeriodKey == periodKey {
			out = append(out, r)
		}
	}
	return out
}
