package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/ledger"
)

// AttendanceRepository is a ledger stored in the attendance table.
// The (identity, period_key) unique constraint enforces one record per period across processes.
type AttendanceRepository struct {
	pool   *Pool
	period ledger.PeriodFunc
}

var _ ledger.Ledger = (*AttendanceRepository)(nil)

// NewAttendanceRepository creates a PostgreSQL ledger that derives period keys with period.
func NewAttendanceRepository(pool *Pool, period ledger.PeriodFunc) *AttendanceRepository {
	return &AttendanceRepository{pool: pool, period: period}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ledger.ErrUnavailable, op, err)
}

func (r *AttendanceRepository) HasRecord(ctx context.Context, identity, periodKey string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM attendance WHERE identity = $1 AND period_key = $2)",
		identity, periodKey,
	).Scan(&exists)
	if err != nil {
		return false, unavailable("check attendance", err)
	}
	return exists, nil
}

func (r *AttendanceRepository) Append(ctx context.Context, identity string, ts time.Time) (ledger.Record, error) {
	out, err := r.CheckAndAppend(ctx, identity, ts)
	if err != nil {
		return ledger.Record{}, err
	}
	if !out.Created {
		return ledger.Record{}, fmt.Errorf("%w: %s in %s", ledger.ErrAlreadyRecorded, identity, out.Record.PeriodKey)
	}
	return out.Record, nil
}

func (r *AttendanceRepository) CheckAndAppend(ctx context.Context, identity string, ts time.Time) (ledger.Outcome, error) {
	rec := ledger.NewRecord(identity, ts, r.period)

	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO attendance (id, identity, ts, period_key)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (identity, period_key) DO NOTHING
		RETURNING id
	`, rec.ID, rec.Identity, rec.Timestamp, rec.PeriodKey).Scan(&id)
	switch {
	case err == nil:
		return ledger.Outcome{Record: rec, Created: true}, nil
	case !errors.Is(err, sql.ErrNoRows):
		return ledger.Outcome{}, unavailable("insert attendance", err)
	}

	// Conflict: another record already holds this identity and period.
	var existing ledger.Record
	err = r.pool.QueryRow(ctx, `
		SELECT id, identity, ts, period_key
		FROM attendance
		WHERE identity = $1 AND period_key = $2
	`, identity, rec.PeriodKey).Scan(&existing.ID, &existing.Identity, &existing.Timestamp, &existing.PeriodKey)
	if err != nil {
		return ledger.Outcome{}, unavailable("load existing attendance", err)
	}
	return ledger.Outcome{Record: existing}, nil
}

func (r *AttendanceRepository) Records(ctx context.Context, periodKey string) ([]ledger.Record, error) {
	query := "SELECT id, identity, ts, period_key FROM attendance ORDER BY seq"
	args := []any{}
	if periodKey != "" {
		query = "SELECT id, identity, ts, period_key FROM attendance WHERE period_key = $1 ORDER BY seq"
		args = append(args, periodKey)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, unavailable("query attendance", err)
	}
	defer rows.Close()

	var records []ledger.Record
	for rows.Next() {
		var rec ledger.Record
		if err := rows.Scan(&rec.ID, &rec.Identity, &rec.Timestamp, &rec.PeriodKey); err != nil {
			return nil, unavailable("scan attendance", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate attendance", err)
	}
	return records, nil
}

func (r *AttendanceRepository) Period() ledger.PeriodFunc {
	return r.period
}

// Close is a no-op; the pool is owned and closed by the caller.
func (r *AttendanceRepository) Close() error {
	return nil
}
