package facts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS fact_documents (
	name        TEXT PRIMARY KEY,
	article_url TEXT NOT NULL DEFAULT '',
	fun_facts   JSONB NOT NULL DEFAULT '{}'::jsonb,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresRepository keeps each document as a JSONB row keyed by name
type PostgresRepository struct {
	pool *pgxpool.Pool
	name string
}

// NewPostgresRepository connects and makes sure the table exists
func NewPostgresRepository(ctx context.Context, connString, name string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to reach database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &PostgresRepository{pool: pool, name: name}, nil
}

// Close releases the connection pool
func (r *PostgresRepository) Close() {
	r.pool.Close()
}

// LoadDocument reads the whole document
func (r *PostgresRepository) LoadDocument(ctx context.Context) (*Document, error) {
	var (
		url  string
		data []byte
	)
	err := r.pool.QueryRow(ctx,
		`SELECT article_url, fun_facts FROM fact_documents WHERE name = $1`, r.name,
	).Scan(&url, &data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", r.name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	doc := NewDocument(url)
	if err := json.Unmarshal(data, &doc.Facts); err != nil {
		return nil, fmt.Errorf("failed to decode facts of %s: %w", r.name, err)
	}
	return doc, nil
}

// SaveDocument upserts the whole document
func (r *PostgresRepository) SaveDocument(ctx context.Context, doc *Document) error {
	data, err := json.Marshal(doc.Facts)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO fact_documents (name, article_url, fun_facts, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (name) DO UPDATE
		SET article_url = EXCLUDED.article_url, fun_facts = EXCLUDED.fun_facts, updated_at = now()`,
		r.name, doc.ArticleURL, data)
	return err
}

// Load returns a copy of one fact
func (r *PostgresRepository) Load(ctx context.Context, key string) (Record, error) {
	var data []byte
	err := r.pool.QueryRow(ctx,
		`SELECT fun_facts -> $2 FROM fact_documents WHERE name = $1`, r.name, key,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && data == nil) {
		return Record{}, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return Record{}, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return rec, nil
}

// Save replaces one fact inside the JSONB document
func (r *PostgresRepository) Save(ctx context.Context, key string, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO fact_documents (name, fun_facts, updated_at)
		VALUES ($1, jsonb_build_object($2::text, $3::jsonb), now())
		ON CONFLICT (name) DO UPDATE
		SET fun_facts = fact_documents.fun_facts || jsonb_build_object($2::text, $3::jsonb), updated_at = now()`,
		r.name, key, data)
	return err
}
