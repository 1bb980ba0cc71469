package ledger

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileTimeLayout is the timestamp format of the attendance CSV file.
const FileTimeLayout = "2006-01-02 15:04:05"

var fileHeader = []string{"timestamp", "employee_id", "period_key", "id"}

// File is a ledger backed by an append-only CSV file.
//
// The file starts with a "timestamp,employee_id" header. Rows written by File carry the period key
// and record ID as extra columns; two-column rows from older files get both derived on open.
// The whole file is indexed in memory on open, so membership checks never rescan it.
type File struct {
	path   string
	loc    *time.Location
	period PeriodFunc

	mu      sync.Mutex
	f       *os.File
	w       *csv.Writer
	index   map[string]int
	records []Record
}

// OpenFile opens or creates the CSV ledger at path. Timestamps are written and read in loc.
func OpenFile(path string, loc *time.Location, period PeriodFunc) (*File, error) {
	if loc == nil {
		loc = time.Local
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o600) //nolint:gosec // path is operator-configured
	if err != nil {
		return nil, fmt.Errorf("%w: opening attendance file: %w", ErrUnavailable, err)
	}

	l := &File{
		path:   path,
		loc:    loc,
		period: period,
		f:      f,
		w:      csv.NewWriter(f),
		index:  make(map[string]int),
	}

	empty, err := l.load()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if empty {
		if err := l.writeRow(fileHeader); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return l, nil
}

// load indexes the existing rows and reports whether the file was empty.
func (l *File) load() (bool, error) {
	if _, err := l.f.Seek(0, io.SeekStart); err != nil {
		return false, fmt.Errorf("%w: reading attendance file: %w", ErrUnavailable, err)
	}

	r := csv.NewReader(l.f)
	r.FieldsPerRecord = -1

	line := 0
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return false, fmt.Errorf("%w: parsing %s: %w", ErrUnavailable, l.path, err)
		}
		line++
		if line == 1 && len(row) > 0 && strings.EqualFold(row[0], "timestamp") {
			continue
		}

		rec, err := l.parseRow(row)
		if err != nil {
			return false, fmt.Errorf("%w: %s line %d: %w", ErrUnavailable, l.path, line, err)
		}
		key := indexKey(rec.PeriodKey, rec.Identity)
		if _, ok := l.index[key]; ok {
			// Older files may hold duplicates; the first record of the period stands.
			continue
		}
		l.index[key] = len(l.records)
		l.records = append(l.records, rec)
	}
	return line == 0, nil
}

func (l *File) parseRow(row []string) (Record, error) {
	if len(row) < 2 {
		return Record{}, fmt.Errorf("expected at least 2 columns, got %d", len(row))
	}

	ts, err := time.ParseInLocation(FileTimeLayout, row[0], l.loc)
	if err != nil {
		if ts, err = time.Parse(time.RFC3339, row[0]); err != nil {
			return Record{}, fmt.Errorf("invalid timestamp %q", row[0])
		}
	}

	rec := Record{Identity: row[1], Timestamp: ts, PeriodKey: l.period(ts)}
	if len(row) > 2 && row[2] != "" {
		rec.PeriodKey = row[2]
	}
	if len(row) > 3 && row[3] != "" {
		rec.ID = row[3]
	} else {
		rec.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(row[0]+","+row[1])).String()
	}
	return rec, nil
}

func (l *File) writeRow(row []string) error {
	if err := l.w.Write(row); err != nil {
		return fmt.Errorf("%w: writing attendance file: %w", ErrUnavailable, err)
	}
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		return fmt.Errorf("%w: writing attendance file: %w", ErrUnavailable, err)
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("%w: syncing attendance file: %w", ErrUnavailable, err)
	}
	return nil
}

var errFileClosed = fmt.Errorf("%w: attendance file closed", ErrUnavailable)

func (l *File) HasRecord(_ context.Context, identity, periodKey string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return false, errFileClosed
	}
	_, ok := l.index[indexKey(periodKey, identity)]
	return ok, nil
}

func (l *File) Append(ctx context.Context, identity string, ts time.Time) (Record, error) {
	out, err := l.CheckAndAppend(ctx, identity, ts)
	if err != nil {
		return Record{}, err
	}
	if !out.Created {
		return Record{}, fmt.Errorf("%w: %s in %s", ErrAlreadyRecorded, identity, out.Record.PeriodKey)
	}
	return out.Record, nil
}

func (l *File) CheckAndAppend(_ context.Context, identity string, ts time.Time) (Outcome, error) {
	// Stored timestamps have second precision; keep the returned record identical to what a reopen yields.
	rec := NewRecord(identity, ts.In(l.loc).Truncate(time.Second), l.period)
	key := indexKey(rec.PeriodKey, identity)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f == nil {
		return Outcome{}, errFileClosed
	}
	if i, ok := l.index[key]; ok {
		return Outcome{Record: l.records[i]}, nil
	}

	row := []string{rec.Timestamp.Format(FileTimeLayout), rec.Identity, rec.PeriodKey, rec.ID}
	if err := l.writeRow(row); err != nil {
		return Outcome{}, err
	}
	l.index[key] = len(l.records)
	l.records = append(l.records, rec)
	return Outcome{Record: rec, Created: true}, nil
}

func (l *File) Records(_ context.Context, periodKey string) ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil, errFileClosed
	}
	return filterPeriod(l.records, periodKey), nil
}

func (l *File) Period() PeriodFunc {
	return l.period
}

// Close flushes and closes the file.
func (l *File) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}
