package modelstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores artifacts in the policy_artifacts table.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository creates a repository backed by pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates the artifact table if it does not exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Save upserts blob under name.
func (r *PostgresRepository) Save(ctx context.Context, name string, blob []byte) error {
	if err := validateName(name); err != nil {
		return err
	}

	query := `
		INSERT INTO policy_artifacts (name, blob, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET blob = EXCLUDED.blob, updated_at = EXCLUDED.updated_at
	`

	if _, err := r.pool.Exec(ctx, query, name, blob); err != nil {
		return fmt.Errorf("save model %q: %w", name, err)
	}
	return nil
}

// Load returns the blob stored under name.
func (r *PostgresRepository) Load(ctx context.Context, name string) ([]byte, error) {
	query := `SELECT blob FROM policy_artifacts WHERE name = $1`

	var blob []byte
	if err := r.pool.QueryRow(ctx, query, name).Scan(&blob); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load model %q: %w", name, err)
	}
	return blob, nil
}

// List returns all artifacts ordered by name.
func (r *PostgresRepository) List(ctx context.Context) ([]Artifact, error) {
	query := `
		SELECT name, octet_length(blob), updated_at
		FROM policy_artifacts
		ORDER BY name
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}

	artifacts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Artifact, error) {
		var a Artifact
		err := row.Scan(&a.Name, &a.Size, &a.UpdatedAt)
		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	return artifacts, nil
}
