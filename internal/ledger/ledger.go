// Package ledger stores attendance records and enforces at most one record per identity per period.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrUnavailable is returned when the backing store cannot be read or written.
	// Callers cannot tell whether the operation took effect.
	ErrUnavailable = errors.New("attendance ledger unavailable")
	// ErrAlreadyRecorded is returned by Append when the identity already has a record in the period.
	ErrAlreadyRecorded = errors.New("attendance already recorded for period")
)

// Record is a single attendance event. Records are never changed or removed once appended.
type Record struct {
	ID        string    `json:"id"`
	Identity  string    `json:"identity"`
	Timestamp time.Time `json:"timestamp"`
	PeriodKey string    `json:"period_key"`
}

// Outcome is the result of CheckAndAppend.
// Created reports whether Record was appended by this call; otherwise Record is the existing one.
type Outcome struct {
	Record  Record
	Created bool
}

// Ledger is an append-only attendance store partitioned by period.
type Ledger interface {
	// HasRecord reports whether identity has a record in periodKey.
	HasRecord(ctx context.Context, identity, periodKey string) (bool, error)
	// Append records identity at ts. It fails with ErrAlreadyRecorded when the period already has a record.
	Append(ctx context.Context, identity string, ts time.Time) (Record, error)
	// CheckAndAppend appends a record unless one already exists for the identity and period of ts.
	// Concurrent calls for the same identity and period yield exactly one Created outcome.
	CheckAndAppend(ctx context.Context, identity string, ts time.Time) (Outcome, error)
	// Records returns the records of periodKey in append order, or all records when periodKey is empty.
	Records(ctx context.Context, periodKey string) ([]Record, error)
	// Period returns the function used to derive period keys.
	Period() PeriodFunc
	Close() error
}

// NewRecord builds a record for identity at ts with a fresh ID.
func NewRecord(identity string, ts time.Time, period PeriodFunc) Record {
	return Record{
		ID:        uuid.NewString(),
		Identity:  identity,
		Timestamp: ts,
		PeriodKey: period(ts),
	}
}

// indexKey is the (period, identity) membership key used by the in-process backends.
func indexKey(periodKey, identity string) string {
	return periodKey + "\x00" + identity
}
