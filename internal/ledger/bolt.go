package ledger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketIndex = []byte("idx")
	bucketLog   = []byte("log")
)

// Bolt is a ledger stored in a bbolt database file.
// CheckAndAppend runs in a single read-write transaction, and bbolt allows one writer at a time.
type Bolt struct {
	db     *bolt.DB
	period PeriodFunc
}

// OpenBolt opens or creates the bbolt ledger at path.
func OpenBolt(path string, period PeriodFunc) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: opening bolt ledger: %w", ErrUnavailable, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketIndex, bucketLog} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: creating bolt buckets: %w", ErrUnavailable, err)
	}
	return &Bolt{db: db, period: period}, nil
}

func sequenceKey(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}

func (b *Bolt) HasRecord(_ context.Context, identity, periodKey string) (bool, error) {
	var found bool
	err := b.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketIndex).Get([]byte(indexKey(periodKey, identity))) != nil
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return found, nil
}

func (b *Bolt) Append(ctx context.Context, identity string, ts time.Time) (Record, error) {
	out, err := b.CheckAndAppend(ctx, identity, ts)
	if err != nil {
		return Record{}, err
	}
	if !out.Created {
		return Record{}, fmt.Errorf("%w: %s in %s", ErrAlreadyRecorded, identity, out.Record.PeriodKey)
	}
	return out.Record, nil
}

func (b *Bolt) CheckAndAppend(_ context.Context, identity string, ts time.Time) (Outcome, error) {
	rec := NewRecord(identity, ts, b.period)
	key := []byte(indexKey(rec.PeriodKey, identity))

	var out Outcome
	err := b.db.Update(func(tx *bolt.Tx) error {
		idx := tx.Bucket(bucketIndex)
		log := tx.Bucket(bucketLog)

		if seqKey := idx.Get(key); seqKey != nil {
			var existing Record
			if err := json.Unmarshal(log.Get(seqKey), &existing); err != nil {
				return fmt.Errorf("decoding record: %w", err)
			}
			out = Outcome{Record: existing}
			return nil
		}

		seq, err := log.NextSequence()
		if err != nil {
			return err
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		seqKey := sequenceKey(seq)
		if err := log.Put(seqKey, data); err != nil {
			return err
		}
		if err := idx.Put(key, seqKey); err != nil {
			return err
		}
		out = Outcome{Record: rec, Created: true}
		return nil
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return out, nil
}

func (b *Bolt) Records(_ context.Context, periodKey string) ([]Record, error) {
	var records []Record
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketLog).ForEach(func(_, v []byte) error {
			var r Record
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("decoding record: %w", err)
			}
			if periodKey == "" || r.PeriodKey == periodKey {
				records = append(records, r)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return records, nil
}

func (b *Bolt) Period() PeriodFunc {
	return b.period
}

func (b *Bolt) Close() error {
	return b.db.Close()
}
