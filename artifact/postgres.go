package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists artifacts as JSONB blobs keyed by (project_id,
// kind), the schema-light layout SPEC_FULL.md calls for rather than a
// normalized relational schema — the workflow's own state types are already
// the source of truth for shape, and this module owns no migration tooling.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const createArtifactsTableSQL = `
CREATE TABLE IF NOT EXISTS artifacts (
	project_id TEXT NOT NULL,
	kind       TEXT NOT NULL,
	body       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (project_id, kind)
)`

const (
	kindInsights = "insights"
	kindProposal = "proposal"
	kindProject  = "project"
)

// NewPostgresStore connects to dsn and ensures the artifacts table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("artifact: connect: %w", err)
	}
	if _, err := pool.Exec(ctx, createArtifactsTableSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("artifact: ensure schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() { s.pool.Close() }

func (s *PostgresStore) upsert(ctx context.Context, projectID, kind string, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("artifact: encode %s: %w", kind, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO artifacts (project_id, kind, body, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (project_id, kind) DO UPDATE SET body = $3, updated_at = now()
	`, projectID, kind, raw)
	if err != nil {
		return fmt.Errorf("artifact: upsert %s: %w", kind, err)
	}
	return nil
}

func (s *PostgresStore) get(ctx context.Context, projectID, kind string, out any) error {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT body FROM artifacts WHERE project_id = $1 AND kind = $2`, projectID, kind).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("artifact: get %s: %w", kind, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("artifact: decode %s: %w", kind, err)
	}
	return nil
}

func (s *PostgresStore) UpsertInsights(ctx context.Context, insights Insights) error {
	return s.upsert(ctx, insights.ProjectID, kindInsights, insights)
}

func (s *PostgresStore) GetInsights(ctx context.Context, projectID string) (Insights, error) {
	var out Insights
	err := s.get(ctx, projectID, kindInsights, &out)
	return out, err
}

func (s *PostgresStore) UpsertProposal(ctx context.Context, proposal Proposal) error {
	existing, err := s.GetProposal(ctx, proposal.ProjectID)
	if err == nil {
		proposal.CreatedAt = existing.CreatedAt
	} else {
		proposal.CreatedAt = proposal.UpdatedAt
	}
	return s.upsert(ctx, proposal.ProjectID, kindProposal, proposal)
}

func (s *PostgresStore) GetProposal(ctx context.Context, projectID string) (Proposal, error) {
	var out Proposal
	err := s.get(ctx, projectID, kindProposal, &out)
	return out, err
}

func (s *PostgresStore) UpsertProjectArtifacts(ctx context.Context, artifacts ProjectArtifacts) error {
	return s.upsert(ctx, artifacts.ProjectID, kindProject, artifacts)
}

func (s *PostgresStore) GetProjectArtifacts(ctx context.Context, projectID string) (ProjectArtifacts, error) {
	var out ProjectArtifacts
	err := s.get(ctx, projectID, kindProject, &out)
	return out, err
}
