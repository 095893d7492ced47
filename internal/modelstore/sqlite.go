package modelstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// schemaSQL creates the artifact table. SQLite accepts the PostgreSQL column
// types through type affinity, so both backends share it.
//
//go:embed schema.sql
var schemaSQL string

// SQLiteRepository stores artifacts in a local SQLite file.
type SQLiteRepository struct {
	conn    *sql.DB
	writeMu sync.Mutex
	logger  zerolog.Logger
}

var _ Repository = (*SQLiteRepository)(nil)

// OpenSQLite opens (or creates) the database at path with WAL enabled and
// ensures the schema exists. Use ":memory:" for a throwaway store.
func OpenSQLite(ctx context.Context, path string, logger zerolog.Logger) (*SQLiteRepository, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A single connection serialises writers and keeps ":memory:" databases alive.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := conn.ExecContext(ctx, schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	logger.Info().Str("path", path).Msg("model store opened")
	return &SQLiteRepository{conn: conn, logger: logger}, nil
}

// Close closes the database.
func (r *SQLiteRepository) Close() error {
	return r.conn.Close()
}

// Save upserts blob under name.
func (r *SQLiteRepository) Save(ctx context.Context, name string, blob []byte) error {
	if err := validateName(name); err != nil {
		return err
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	query := `
		INSERT INTO policy_artifacts (name, blob, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE
		SET blob = excluded.blob, updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := r.conn.ExecContext(ctx, query, name, blob, now); err != nil {
		return fmt.Errorf("save model %q: %w", name, err)
	}
	return nil
}

// Load returns the blob stored under name.
func (r *SQLiteRepository) Load(ctx context.Context, name string) ([]byte, error) {
	var blob []byte
	err := r.conn.QueryRowContext(ctx, `SELECT blob FROM policy_artifacts WHERE name = ?`, name).Scan(&blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load model %q: %w", name, err)
	}
	return blob, nil
}

// List returns all artifacts ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Artifact, error) {
	rows, err := r.conn.QueryContext(ctx, `
		SELECT name, length(blob), updated_at
		FROM policy_artifacts
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer rows.Close()

	var artifacts []Artifact
	for rows.Next() {
		var (
			a       Artifact
			updated string
		)
		if err := rows.Scan(&a.Name, &a.Size, &updated); err != nil {
			return nil, fmt.Errorf("list models: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, updated); err == nil {
			a.UpdatedAt = t
		} else {
			r.logger.Warn().Err(err).Str("name", a.Name).Msg("unparseable artifact timestamp")
		}
		artifacts = append(artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	return artifacts, nil
}
