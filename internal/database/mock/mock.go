// Package mock provides mock implementations of storage interfaces for testing.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/embedding"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/ledger"
)

// MockIdentityStore is a mock implementation of database.IdentityWriter
type MockIdentityStore struct {
	mu         sync.RWMutex
	identities []database.StoredIdentity
	nextSeq    int64

	// Error injection
	ListError   error
	CountError  error
	UpsertError error
	DeleteError error

	// Call tracking
	UpsertCalls []string
}

var _ database.IdentityWriter = (*MockIdentityStore)(nil)

// NewMockIdentityStore creates a new mock identity store
func NewMockIdentityStore() *MockIdentityStore {
	return &MockIdentityStore{}
}

// List returns identities in insertion order
func (m *MockIdentityStore) List(ctx context.Context) ([]database.StoredIdentity, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.StoredIdentity, len(m.identities))
	copy(out, m.identities)
	return out, nil
}

// LoadEntries returns the stored identities as gallery entries
func (m *MockIdentityStore) LoadEntries(ctx context.Context) ([]gallery.Entry, error) {
	stored, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]gallery.Entry, len(stored))
	for i, s := range stored {
		entries[i] = s.Entry()
	}
	return entries, nil
}

// Count returns the number of stored identities
func (m *MockIdentityStore) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.identities), nil
}

// Upsert stores or replaces an identity, keeping the position of an existing one
func (m *MockIdentityStore) Upsert(ctx context.Context, identity string, vec embedding.Vector) error {
	if m.UpsertError != nil {
		return m.UpsertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertCalls = append(m.UpsertCalls, identity)

	for i := range m.identities {
		if m.identities[i].Identity == identity {
			m.identities[i].Embedding = vec.Clone()
			m.identities[i].UpdatedAt = time.Now()
			return nil
		}
	}
	m.nextSeq++
	m.identities = append(m.identities, database.StoredIdentity{
		Seq:       m.nextSeq,
		Identity:  identity,
		Embedding: vec.Clone(),
		UpdatedAt: time.Now(),
	})
	return nil
}

// Delete removes an identity
func (m *MockIdentityStore) Delete(ctx context.Context, identity string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.identities {
		if m.identities[i].Identity == identity {
			m.identities = append(m.identities[:i], m.identities[i+1:]...)
			return nil
		}
	}
	return nil
}

// MockLedger is a ledger.Ledger backed by ledger.Memory with error injection
type MockLedger struct {
	*ledger.Memory

	mu sync.Mutex
	// Error injection
	HasRecordError      error
	CheckAndAppendError error
	RecordsError        error

	// Call tracking
	CheckAndAppendCalls []string
}

var _ ledger.Ledger = (*MockLedger)(nil)

// NewMockLedger creates a new mock ledger keyed by calendar day in UTC
func NewMockLedger() *MockLedger {
	return &MockLedger{Memory: ledger.NewMemory(ledger.Daily(time.UTC))}
}

// HasRecord checks membership unless an error is injected
func (m *MockLedger) HasRecord(ctx context.Context, identity, periodKey string) (bool, error) {
	if m.HasRecordError != nil {
		return false, m.HasRecordError
	}
	return m.Memory.HasRecord(ctx, identity, periodKey)
}

// CheckAndAppend records the call and delegates unless an error is injected
func (m *MockLedger) CheckAndAppend(ctx context.Context, identity string, ts time.Time) (ledger.Outcome, error) {
	m.mu.Lock()
	m.CheckAndAppendCalls = append(m.CheckAndAppendCalls, identity)
	m.mu.Unlock()

	if m.CheckAndAppendError != nil {
		return ledger.Outcome{}, m.CheckAndAppendError
	}
	return m.Memory.CheckAndAppend(ctx, identity, ts)
}

// Records lists records unless an error is injected
func (m *MockLedger) Records(ctx context.Context, periodKey string) ([]ledger.Record, error) {
	if m.RecordsError != nil {
		return nil, m.RecordsError
	}
	return m.Memory.Records(ctx, periodKey)
}

// Calls returns a copy of the identities passed to CheckAndAppend
func (m *MockLedger) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.CheckAndAppendCalls))
	copy(out, m.CheckAndAppendCalls)
	return out
}
