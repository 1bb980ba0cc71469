package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/embedding"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/pgvector/pgvector-go"
)

// IdentityRepository stores known identity embeddings in the identities table.
// Embeddings are stored as pgvector vectors, so components round-trip at float32 precision.
type IdentityRepository struct {
	pool *Pool
}

var _ database.IdentityWriter = (*IdentityRepository)(nil)

// NewIdentityRepository creates a new PostgreSQL identity repository.
func NewIdentityRepository(pool *Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

// List returns all identities ordered by insertion sequence.
func (r *IdentityRepository) List(ctx context.Context) ([]database.StoredIdentity, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT seq, identity, embedding, updated_at
		FROM identities
		ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	return scanIdentities(rows)
}

// LoadEntries returns the gallery entries in insertion order.
func (r *IdentityRepository) LoadEntries(ctx context.Context) ([]gallery.Entry, error) {
	stored, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]gallery.Entry, len(stored))
	for i, s := range stored {
		entries[i] = s.Entry()
	}
	return entries, nil
}

// Count returns the total number of identities stored.
func (r *IdentityRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM identities").Scan(&count); err != nil {
		return 0, fmt.Errorf("count identities: %w", err)
	}
	return count, nil
}

// Upsert stores the embedding for identity. An existing identity keeps its sequence number.
func (r *IdentityRepository) Upsert(ctx context.Context, identity string, vec embedding.Vector) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO identities (identity, embedding, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (identity) DO UPDATE
		SET embedding = EXCLUDED.embedding, updated_at = NOW()
	`, identity, pgvector.NewVector(vec.Float32()))
	if err != nil {
		return fmt.Errorf("upsert identity %s: %w", identity, err)
	}
	return nil
}

// Delete removes identity.
func (r *IdentityRepository) Delete(ctx context.Context, identity string) error {
	if _, err := r.pool.Exec(ctx, "DELETE FROM identities WHERE identity = $1", identity); err != nil {
		return fmt.Errorf("delete identity %s: %w", identity, err)
	}
	return nil
}

func scanIdentities(rows *sql.Rows) ([]database.StoredIdentity, error) {
	var out []database.StoredIdentity
	for rows.Next() {
		var s database.StoredIdentity
		var vec pgvector.Vector
		if err := rows.Scan(&s.Seq, &s.Identity, &vec, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		s.Embedding = embedding.FromFloat32(vec.Slice())
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return out, nil
}
