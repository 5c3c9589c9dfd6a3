// Package postgres provides a PostgreSQL-backed lead store with optional
// pgvector similarity search over project descriptions.
//
// The pgvector extension must be available in the target database; [Migrate]
// installs it automatically via CREATE EXTENSION IF NOT EXISTS. When an
// embeddings provider is configured, each lead's project description is
// embedded at record time so the owner can later ask for past leads similar
// to a new one.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn, 1536, embedder)
//	if err != nil { … }
//	defer store.Close()
//
//	id, _ := store.Record(ctx, l)
//	similar, _ := store.SimilarLeads(ctx, "tienda online con pagos", 5)
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/lucasbarrios/leadline/internal/lead"
	"github.com/lucasbarrios/leadline/pkg/provider/embeddings"
)

// Compile-time interface check.
var _ lead.Store = (*Store)(nil)

// ErrNoEmbedder is returned by SimilarLeads when the store was built without
// an embeddings provider.
var ErrNoEmbedder = errors.New("lead postgres: no embeddings provider configured")

// Store persists leads in PostgreSQL. All operations are safe for
// concurrent use.
type Store struct {
	pool     *pgxpool.Pool
	embedder embeddings.Provider
}

// ddlLeads returns the leads DDL with the embedding dimension substituted.
// The vector dimension is baked into the column type at schema creation time.
func ddlLeads(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS leads (
    id                 TEXT         PRIMARY KEY,
    name               TEXT         NOT NULL,
    email              TEXT         NOT NULL,
    phone              TEXT         NOT NULL DEFAULT '',
    project            TEXT         NOT NULL,
    transcript         TEXT[]       NOT NULL DEFAULT '{}',
    summary            TEXT         NOT NULL DEFAULT '',
    project_embedding  vector(%d),
    created_at         TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_leads_created_at
    ON leads (created_at);

CREATE INDEX IF NOT EXISTS idx_leads_email
    ON leads (email);

CREATE INDEX IF NOT EXISTS idx_leads_embedding
    ON leads USING hnsw (project_embedding vector_cosine_ops);
`, embeddingDimensions)
}

// Migrate creates or ensures the leads table and pgvector extension exist.
// Idempotent and safe to call on every application start.
//
// embeddingDimensions must match the configured embedding model (e.g., 1536
// for OpenAI text-embedding-3-small). Changing it after the first migration
// requires a manual schema update.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	if _, err := pool.Exec(ctx, ddlLeads(embeddingDimensions)); err != nil {
		return fmt.Errorf("lead postgres: migrate: %w", err)
	}
	return nil
}

// NewStore connects to PostgreSQL at dsn, registers pgvector types on every
// connection, and runs [Migrate]. embedder may be nil; leads are then stored
// without embeddings and SimilarLeads is unavailable.
func NewStore(ctx context.Context, dsn string, embeddingDimensions int, embedder embeddings.Provider) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("lead postgres: parse dsn: %w", err)
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("lead postgres: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("lead postgres: ping: %w", err)
	}

	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, err
	}

	return &Store{pool: pool, embedder: embedder}, nil
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Record implements lead.Store. When an embedder is configured the project
// description is embedded inline; an embedding failure is logged and the
// lead is stored without one — capturing the data always wins.
func (s *Store) Record(ctx context.Context, l lead.Lead) (string, error) {
	if l.ID == "" {
		l.ID = lead.NewID()
	}

	var embedding any
	if s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, l.Project)
		if err != nil {
			slog.Warn("lead postgres: embed project failed; storing without embedding",
				"lead_id", l.ID, "err", err)
		} else {
			embedding = pgvector.NewVector(vec)
		}
	}

	const q = `
		INSERT INTO leads
		    (id, name, email, phone, project, transcript, summary, project_embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, q,
		l.ID,
		l.Name,
		l.Email,
		l.Phone,
		l.Project,
		l.Transcript,
		l.Summary,
		embedding,
		l.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("lead postgres: insert: %w", err)
	}
	return l.ID, nil
}

// List returns all stored leads, most recent first.
func (s *Store) List(ctx context.Context) ([]lead.Lead, error) {
	const q = `
		SELECT id, name, email, phone, project, transcript, summary, created_at
		FROM   leads
		ORDER  BY created_at DESC`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("lead postgres: list: %w", err)
	}

	leads, err := pgx.CollectRows(rows, scanLead)
	if err != nil {
		return nil, fmt.Errorf("lead postgres: collect leads: %w", err)
	}
	return leads, nil
}

// SimilarLead pairs a stored lead with its cosine distance to a query.
type SimilarLead struct {
	Lead lead.Lead

	// Distance is the cosine distance to the query description; lower is
	// more similar.
	Distance float64
}

// SimilarLeads embeds description and returns the topK stored leads whose
// project embeddings are closest by cosine distance, most similar first.
// Leads stored without an embedding are never returned.
func (s *Store) SimilarLeads(ctx context.Context, description string, topK int) ([]SimilarLead, error) {
	if s.embedder == nil {
		return nil, ErrNoEmbedder
	}

	vec, err := s.embedder.Embed(ctx, description)
	if err != nil {
		return nil, fmt.Errorf("lead postgres: embed query: %w", err)
	}

	const q = `
		SELECT id, name, email, phone, project, transcript, summary, created_at,
		       project_embedding <=> $1 AS distance
		FROM   leads
		WHERE  project_embedding IS NOT NULL
		ORDER  BY distance
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(vec), topK)
	if err != nil {
		return nil, fmt.Errorf("lead postgres: similarity search: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (SimilarLead, error) {
		var sl SimilarLead
		err := row.Scan(
			&sl.Lead.ID,
			&sl.Lead.Name,
			&sl.Lead.Email,
			&sl.Lead.Phone,
			&sl.Lead.Project,
			&sl.Lead.Transcript,
			&sl.Lead.Summary,
			&sl.Lead.CreatedAt,
			&sl.Distance,
		)
		return sl, err
	})
	if err != nil {
		return nil, fmt.Errorf("lead postgres: collect similar leads: %w", err)
	}
	return results, nil
}

// scanLead scans one leads row into a lead.Lead.
func scanLead(row pgx.CollectableRow) (lead.Lead, error) {
	var l lead.Lead
	err := row.Scan(
		&l.ID,
		&l.Name,
		&l.Email,
		&l.Phone,
		&l.Project,
		&l.Transcript,
		&l.Summary,
		&l.CreatedAt,
	)
	return l, err
}
