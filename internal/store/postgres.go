package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seawatch/threat-monitor/backend/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS threats (
	id               BIGSERIAL PRIMARY KEY,
	title            TEXT NOT NULL,
	region           TEXT NOT NULL,
	countries        TEXT[],
	category         TEXT NOT NULL,
	description      TEXT NOT NULL,
	potential_impact TEXT NOT NULL,
	source_urls      TEXT[],
	date_mentioned   TEXT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS threats_created_at_idx ON threats (created_at DESC);
`

// Postgres is the authoritative store of canonical threat records.
type Postgres struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewPostgres connects a pool and verifies connectivity.
func NewPostgres(ctx context.Context, dsn string, log *slog.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{pool: pool, log: log}, nil
}

// EnsureSchema creates the threats table if it does not exist yet.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// CreateThreat inserts a canonical record inside a scoped transaction and
// returns it with the generated id and created_at. On any failure the
// transaction is rolled back and the record does not exist.
func (s *Postgres) CreateThreat(ctx context.Context, rec models.ThreatRecord) (models.ThreatRecord, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.ThreatRecord{}, fmt.Errorf("begin transaction: %w", err)
	}
	// Rollback is a no-op once the transaction commits.
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO threats (title, region, countries, category, description, potential_impact, source_urls, date_mentioned)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`,
		rec.Title, rec.Region, rec.Countries, rec.Category,
		rec.Description, rec.PotentialImpact, rec.SourceURLs, rec.DateMentioned,
	)
	if err := row.Scan(&rec.ID, &rec.CreatedAt); err != nil {
		return models.ThreatRecord{}, fmt.Errorf("insert threat: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.ThreatRecord{}, fmt.Errorf("commit threat: %w", err)
	}

	return rec, nil
}

// ListThreats returns stored records ordered by created_at descending.
func (s *Postgres) ListThreats(ctx context.Context, skip, limit int) ([]models.ThreatRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, region, countries, category, description, potential_impact, source_urls, date_mentioned, created_at
		FROM threats
		ORDER BY created_at DESC, id DESC
		OFFSET $1 LIMIT $2`,
		skip, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list threats: %w", err)
	}
	defer rows.Close()

	out := make([]models.ThreatRecord, 0, limit)
	for rows.Next() {
		var rec models.ThreatRecord
		if err := rows.Scan(
			&rec.ID, &rec.Title, &rec.Region, &rec.Countries, &rec.Category,
			&rec.Description, &rec.PotentialImpact, &rec.SourceURLs, &rec.DateMentioned, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan threat: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate threats: %w", err)
	}

	return out, nil
}

// Close releases the underlying pool.
func (s *Postgres) Close() {
	s.pool.Close()
}
