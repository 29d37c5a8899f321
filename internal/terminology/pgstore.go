package terminology

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// PGStore persists terminology lists and rules in PostgreSQL. Items are
// loaded at startup and written through on every change; disabling an
// item keeps it in storage with its flag cleared.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// EnsureSchema creates the terminology tables if they do not exist.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS keywords (
			id BIGSERIAL PRIMARY KEY,
			value TEXT NOT NULL UNIQUE,
			enabled BOOLEAN NOT NULL DEFAULT TRUE
		)`,
		`CREATE TABLE IF NOT EXISTS proper_nouns (
			id BIGSERIAL PRIMARY KEY,
			source TEXT NOT NULL UNIQUE,
			translation TEXT NOT NULL,
			enabled BOOLEAN NOT NULL DEFAULT TRUE
		)`,
		`CREATE TABLE IF NOT EXISTS rules (
			id BIGSERIAL PRIMARY KEY,
			text TEXT NOT NULL UNIQUE,
			enabled BOOLEAN NOT NULL DEFAULT TRUE
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure terminology schema: %w", err)
		}
	}
	return nil
}

// Load reads the full terminology set.
func (s *PGStore) Load(ctx context.Context) (Set, error) {
	var set Set

	rows, err := s.pool.Query(ctx, `SELECT id, value, enabled FROM keywords ORDER BY id`)
	if err != nil {
		return set, fmt.Errorf("load keywords: %w", err)
	}
	for rows.Next() {
		var k Keyword
		if err := rows.Scan(&k.ID, &k.Value, &k.Enabled); err != nil {
			rows.Close()
			return set, fmt.Errorf("scan keyword: %w", err)
		}
		set.Keywords = append(set.Keywords, k)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return set, fmt.Errorf("load keywords: %w", err)
	}

	rows, err = s.pool.Query(ctx, `SELECT id, source, translation, enabled FROM proper_nouns ORDER BY id`)
	if err != nil {
		return set, fmt.Errorf("load proper nouns: %w", err)
	}
	for rows.Next() {
		var p ProperNoun
		if err := rows.Scan(&p.ID, &p.Source, &p.Translation, &p.Enabled); err != nil {
			rows.Close()
			return set, fmt.Errorf("scan proper noun: %w", err)
		}
		set.ProperNouns = append(set.ProperNouns, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return set, fmt.Errorf("load proper nouns: %w", err)
	}

	rows, err = s.pool.Query(ctx, `SELECT id, text, enabled FROM rules ORDER BY id`)
	if err != nil {
		return set, fmt.Errorf("load rules: %w", err)
	}
	for rows.Next() {
		var r Rule
		if err := rows.Scan(&r.ID, &r.Text, &r.Enabled); err != nil {
			rows.Close()
			return set, fmt.Errorf("scan rule: %w", err)
		}
		set.Rules = append(set.Rules, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return set, fmt.Errorf("load rules: %w", err)
	}

	log.Debug().
		Int("keywords", len(set.Keywords)).
		Int("proper_nouns", len(set.ProperNouns)).
		Int("rules", len(set.Rules)).
		Msg("Loaded terminology")

	return set, nil
}

// AddKeyword inserts a do-not-translate keyword, enabled by default.
func (s *PGStore) AddKeyword(ctx context.Context, value string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO keywords (value) VALUES ($1) ON CONFLICT (value) DO NOTHING`, value)
	if err != nil {
		return fmt.Errorf("add keyword: %w", err)
	}
	return nil
}

// AddProperNoun inserts or updates a forced-translation pair.
func (s *PGStore) AddProperNoun(ctx context.Context, source, translation string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO proper_nouns (source, translation) VALUES ($1, $2)
		 ON CONFLICT (source) DO UPDATE SET translation = EXCLUDED.translation`,
		source, translation)
	if err != nil {
		return fmt.Errorf("add proper noun: %w", err)
	}
	return nil
}

// AddRule inserts a contextual rule, enabled by default.
func (s *PGStore) AddRule(ctx context.Context, text string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO rules (text) VALUES ($1) ON CONFLICT (text) DO NOTHING`, text)
	if err != nil {
		return fmt.Errorf("add rule: %w", err)
	}
	return nil
}

// SetEnabled toggles one item of the given kind (keyword, noun, rule).
func (s *PGStore) SetEnabled(ctx context.Context, kind string, id int64, enabled bool) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET enabled = $1 WHERE id = $2`, table), enabled, id)
	if err != nil {
		return fmt.Errorf("toggle %s %d: %w", kind, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no %s with id %d", kind, id)
	}
	return nil
}

// Remove deletes one item of the given kind permanently.
func (s *PGStore) Remove(ctx context.Context, kind string, id int64) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table), id)
	if err != nil {
		return fmt.Errorf("remove %s %d: %w", kind, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no %s with id %d", kind, id)
	}
	return nil
}

func tableFor(kind string) (string, error) {
	switch kind {
	case "keyword":
		return "keywords", nil
	case "noun":
		return "proper_nouns", nil
	case "rule":
		return "rules", nil
	default:
		return "", fmt.Errorf("unknown terminology kind %q", kind)
	}
}
