package article

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog"

	"github.com/keagan/factreel/internal/llm"
)

// Index stores article chunks with embeddings so fact extraction can work
// from the passages closest to a query instead of the whole page.
type Index struct {
	logger     zerolog.Logger
	pool       *pgxpool.Pool
	embedder   llm.Embedder
	chunkWords int
	overlap    int
}

// IndexOptions configures chunking
type IndexOptions struct {
	ChunkWords int
	Overlap    int
	Dimensions int
}

// NewIndex connects to Postgres and creates the chunk table if needed
func NewIndex(ctx context.Context, logger zerolog.Logger, connString string, embedder llm.Embedder, opts IndexOptions) (*Index, error) {
	if opts.ChunkWords <= 0 {
		opts.ChunkWords = 50
	}
	if opts.Overlap < 0 || opts.Overlap >= opts.ChunkWords {
		opts.Overlap = 0
	}
	if opts.Dimensions <= 0 {
		opts.Dimensions = 1024
	}

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS article_chunks (
			id        BIGSERIAL PRIMARY KEY,
			source    TEXT NOT NULL,
			position  INT NOT NULL,
			content   TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			UNIQUE (source, position)
		)`, opts.Dimensions),
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create index schema: %w", err)
		}
	}

	return &Index{
		logger:     logger.With().Str("component", "article-index").Logger(),
		pool:       pool,
		embedder:   embedder,
		chunkWords: opts.ChunkWords,
		overlap:    opts.Overlap,
	}, nil
}

// Close releases the pool
func (ix *Index) Close() {
	ix.pool.Close()
}

// Add chunks text, embeds every chunk and replaces what was stored for source
func (ix *Index) Add(ctx context.Context, source, text string) (int, error) {
	chunks := Chunk(text, ix.chunkWords, ix.overlap)

	tx, err := ix.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM article_chunks WHERE source = $1`, source); err != nil {
		return 0, fmt.Errorf("failed to clear chunks of %s: %w", source, err)
	}

	for i, chunk := range chunks {
		emb, err := ix.embedder.Embed(ctx, chunk)
		if err != nil {
			return 0, fmt.Errorf("failed to embed chunk %d: %w", i, err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO article_chunks (source, position, content, embedding) VALUES ($1, $2, $3, $4)`,
			source, i, chunk, pgvector.NewVector(emb))
		if err != nil {
			return 0, fmt.Errorf("failed to store chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	ix.logger.Info().Str("source", source).Int("chunks", len(chunks)).Msg("article indexed")
	return len(chunks), nil
}

// Query returns the k chunks of source nearest to query, best first
func (ix *Index) Query(ctx context.Context, source, query string, k int) ([]string, error) {
	emb, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	rows, err := ix.pool.Query(ctx, `
		SELECT content FROM article_chunks
		WHERE source = $1
		ORDER BY embedding <=> $2
		LIMIT $3`,
		source, pgvector.NewVector(emb), k)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, err
		}
		out = append(out, content)
	}
	return out, rows.Err()
}

// Context joins the top-k chunks into one extraction context
func (ix *Index) Context(ctx context.Context, source, query string, k int) (string, error) {
	chunks, err := ix.Query(ctx, source, query, k)
	if err != nil {
		return "", err
	}
	return strings.Join(chunks, "\n"), nil
}

// Chunk splits text into windows of size words that overlap by overlap words
func Chunk(text string, size, overlap int) []string {
	words := strings.Fields(text)
	if len(words) == 0 || size <= 0 {
		return nil
	}
	step := size - overlap
	if step <= 0 {
		step = size
	}

	var chunks []string
	for start := 0; start < len(words); start += step {
		end := min(start+size, len(words))
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}
