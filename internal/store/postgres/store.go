// Package postgres implements the document store on a single JSONB table.
package postgres

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stocksavvy/stocksavvy/internal/platform/db"
	"github.com/stocksavvy/stocksavvy/internal/store"
)

var _ store.Store = (*Store)(nil)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	seq BIGSERIAL,
	body JSONB NOT NULL,
	PRIMARY KEY (collection, id)
)`,
	`CREATE INDEX IF NOT EXISTS documents_seq_idx ON documents (collection, seq)`,
	`CREATE INDEX IF NOT EXISTS documents_product_ref_idx ON documents (collection, (body->>'productId'))`,
	`CREATE INDEX IF NOT EXISTS documents_sold_idx ON documents (collection, (body->>'status'), (body->>'saleDate'))`,
}

// Store persists documents as JSONB rows keyed by (collection, id).
type Store struct {
	pool  *pgxpool.Pool
	clock *store.Clock
}

// New wraps a pgx pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, clock: store.NewClock(nil)}
}

// Migrate creates the documents table and its indexes in one transaction.
func (s *Store) Migrate(ctx context.Context) error {
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store/postgres: migrate: %w", err)
	}
	return nil
}

func (s *Store) ListAll(ctx context.Context, collection string) ([]store.Document, error) {
	return s.query(ctx, `SELECT id, body FROM documents WHERE collection = $1 ORDER BY seq`, collection)
}

func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	var body []byte
	err := s.pool.QueryRow(ctx, `SELECT body FROM documents WHERE collection = $1 AND id = $2`, collection, id).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("store/postgres: get %s: %w", collection, err)
	}
	return decode(id, body)
}

func (s *Store) Put(ctx context.Context, collection string, doc store.Document) (string, error) {
	id := doc.ID()
	if id == "" {
		id = uuid.NewString()
	}
	body, err := json.Marshal(s.clock.Resolve(doc))
	if err != nil {
		return "", fmt.Errorf("store/postgres: encode: %w", err)
	}
	if _, err := s.pool.Exec(ctx, `INSERT INTO documents (collection, id, body) VALUES ($1, $2, $3::jsonb)`, collection, id, body); err != nil {
		return "", fmt.Errorf("store/postgres: put %s: %w", collection, err)
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields store.Document) error {
	patch, err := json.Marshal(s.clock.Resolve(fields))
	if err != nil {
		return fmt.Errorf("store/postgres: encode: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `UPDATE documents SET body = body || $3::jsonb WHERE collection = $1 AND id = $2`, collection, id, patch)
	if err != nil {
		return fmt.Errorf("store/postgres: update %s: %w", collection, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListWhere(ctx context.Context, collection string, filters ...store.Filter) ([]store.Document, error) {
	if err := store.ValidateFilters(filters); err != nil {
		return nil, err
	}
	where, args, err := buildWhere(collection, filters)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, `SELECT id, body FROM documents WHERE `+where+` ORDER BY seq`, args...)
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close(context.Context) error {
	s.pool.Close()
	return nil
}

func (s *Store) query(ctx context.Context, sql string, args ...any) ([]store.Document, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: query: %w", err)
	}
	defer rows.Close()

	out := make([]store.Document, 0)
	for rows.Next() {
		var id string
		var body []byte
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("store/postgres: scan: %w", err)
		}
		doc, err := decode(id, body)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store/postgres: rows: %w", err)
	}
	return out, nil
}

// buildWhere translates filters to jsonb comparisons. Both sides are
// compared only when their JSON types agree.
func buildWhere(collection string, filters []store.Filter) (string, []any, error) {
	clauses := []string{"collection = $1"}
	args := []any{collection}
	for _, f := range filters {
		value, err := json.Marshal(f.Value)
		if err != nil {
			return "", nil, fmt.Errorf("store/postgres: encode filter %s: %w", f.Field, err)
		}
		args = append(args, f.Field, string(value))
		field := fmt.Sprintf("($%d::text)", len(args)-1)
		param := fmt.Sprintf("$%d::jsonb", len(args))
		op := "="
		switch f.Op {
		case store.OpLte:
			op = "<="
		case store.OpGte:
			op = ">="
		}
		clauses = append(clauses, fmt.Sprintf("(jsonb_typeof(body->%s) = jsonb_typeof(%s) AND body->%s %s %s)", field, param, field, op, param))
	}
	return strings.Join(clauses, " AND "), args, nil
}

func decode(id string, body []byte) (store.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	raw := map[string]any{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("store/postgres: decode %s: %w", id, err)
	}
	doc := make(store.Document, len(raw)+1)
	for k, v := range raw {
		doc[k] = normalize(v)
	}
	doc["id"] = id
	return doc, nil
}

func normalize(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
