package mariadb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/kozaktomas/face-attendance/internal/ledger"
)

// erDupEntry is the server error for a unique key violation.
const erDupEntry = 1062

// AttendanceRepository is a ledger stored in a MariaDB attendance table.
// The (identity, period_key) unique key enforces one record per period; a duplicate key error
// on insert means the period is already recorded. Any other insert error is reported.
type AttendanceRepository struct {
	pool   *Pool
	period ledger.PeriodFunc
}

var _ ledger.Ledger = (*AttendanceRepository)(nil)

// NewAttendanceRepository creates a MariaDB ledger that derives period keys with period.
func NewAttendanceRepository(pool *Pool, period ledger.PeriodFunc) *AttendanceRepository {
	return &AttendanceRepository{pool: pool, period: period}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ledger.ErrUnavailable, op, err)
}

func isDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == erDupEntry
}

func (r *AttendanceRepository) HasRecord(ctx context.Context, identity, periodKey string) (bool, error) {
	var exists bool
	err := r.pool.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM attendance WHERE identity = ? AND period_key = ?)",
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

	_, err := r.pool.db.ExecContext(ctx,
		"INSERT INTO attendance (id, identity, ts, period_key) VALUES (?, ?, ?, ?)",
		rec.ID, rec.Identity, rec.Timestamp.UTC(), rec.PeriodKey,
	)
	if err == nil {
		return ledger.Outcome{Record: rec, Created: true}, nil
	}
	if !isDuplicateKey(err) {
		return ledger.Outcome{}, unavailable("insert attendance", err)
	}

	var existing ledger.Record
	err = r.pool.db.QueryRowContext(ctx,
		"SELECT id, identity, ts, period_key FROM attendance WHERE identity = ? AND period_key = ?",
		identity, rec.PeriodKey,
	).Scan(&existing.ID, &existing.Identity, &existing.Timestamp, &existing.PeriodKey)
	if err != nil {
		return ledger.Outcome{}, unavailable("load existing attendance", err)
	}
	return ledger.Outcome{Record: existing}, nil
}

func (r *AttendanceRepository) Records(ctx context.Context, periodKey string) ([]ledger.Record, error) {
	query := "SELECT id, identity, ts, period_key FROM attendance ORDER BY seq"
	args := []any{}
	if periodKey != "" {
		query = "SELECT id, identity, ts, period_key FROM attendance WHERE period_key = ? ORDER BY seq"
		args = append(args, periodKey)
	}

	rows, err := r.pool.db.QueryContext(ctx, query, args...)
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
