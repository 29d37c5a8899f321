package memory

import (
	"context"
	"fmt"
	"strings"

	"script-translator/internal/textutil"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
)

// TranslationMemory stores completed translations with their embeddings
// and retrieves similar past lines as an optional free-text hint for
// new requests. Everything here is best-effort: lookup failures degrade
// to no hint, never to a failed translation.
type TranslationMemory struct {
	pool       *pgxpool.Pool
	embeddings *EmbeddingClient
	dimensions int
	topK       int
}

// New creates a translation memory.
func New(pool *pgxpool.Pool, embeddings *EmbeddingClient, dimensions int) *TranslationMemory {
	if dimensions <= 0 {
		dimensions = 768
	}
	return &TranslationMemory{
		pool:       pool,
		embeddings: embeddings,
		dimensions: dimensions,
		topK:       3,
	}
}

// EnsureSchema creates the pgvector extension and memory table.
func (tm *TranslationMemory) EnsureSchema(ctx context.Context) error {
	if _, err := tm.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("ensure vector extension: %w", err)
	}
	_, err := tm.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS translation_memory (
			hash TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			translated TEXT NOT NULL,
			context TEXT NOT NULL DEFAULT '',
			embedding vector(%d)
		)`, tm.dimensions))
	if err != nil {
		return fmt.Errorf("ensure memory schema: %w", err)
	}
	return nil
}

// Record embeds and stores one completed translation.
func (tm *TranslationMemory) Record(ctx context.Context, source, translated, context string) error {
	vec, err := tm.embeddings.EmbedQuery(ctx, source)
	if err != nil {
		return fmt.Errorf("embed source: %w", err)
	}

	_, err = tm.pool.Exec(ctx, `
		INSERT INTO translation_memory (hash, source, translated, context, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (hash) DO UPDATE SET translated = EXCLUDED.translated, context = EXCLUDED.context`,
		textutil.Hash(source), source, translated, context, pgvector.NewVector(vec))
	if err != nil {
		return fmt.Errorf("store memory record: %w", err)
	}

	return nil
}

// Match is one similar past translation.
type Match struct {
	Source     string
	Translated string
	Context    string
	Score      float64
}

// Search finds the most similar stored translations to a source text.
func (tm *TranslationMemory) Search(ctx context.Context, source string) ([]Match, error) {
	vec, err := tm.embeddings.EmbedQuery(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	rows, err := tm.pool.Query(ctx, `
		SELECT source, translated, context, 1 - (embedding <=> $1) AS similarity
		FROM translation_memory
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $2`,
		pgvector.NewVector(vec), tm.topK)
	if err != nil {
		return nil, fmt.Errorf("memory search: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.Source, &m.Translated, &m.Context, &m.Score); err != nil {
			return nil, fmt.Errorf("scan memory row: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("memory search: %w", err)
	}

	return matches, nil
}

// Hint implements the batch protocol's hint provider: a short context
// fragment built from similar past translations, or "" when nothing
// useful is stored.
func (tm *TranslationMemory) Hint(ctx context.Context, payload string) string {
	matches, err := tm.Search(ctx, payload)
	if err != nil {
		log.Warn().Err(err).Msg("Translation memory lookup failed")
		return ""
	}
	if len(matches) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("=== Similar past translations (reference only) ===\n")
	for _, m := range matches {
		fmt.Fprintf(&sb, "• %s → %s", textutil.Truncate(m.Source, 80), textutil.Truncate(m.Translated, 80))
		if m.Context != "" {
			fmt.Fprintf(&sb, " (%s)", m.Context)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
