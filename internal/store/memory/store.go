// Package memory provides an in-process document store.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stocksavvy/stocksavvy/internal/store"
)

var _ store.Store = (*Store)(nil)

type collection struct {
	docs  map[string]store.Document
	order []string
}

// Store keeps documents in maps guarded by a RWMutex. Listings preserve
// insertion order.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
	clock       *store.Clock
	newID       func() string
}

// Option configures the memory store.
type Option func(*Store)

// WithClock overrides the write clock used for ServerTimestamp fields.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.clock = store.NewClock(now)
	}
}

// WithIDGenerator overrides document id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		collections: make(map[string]*collection),
		clock:       store.NewClock(nil),
		newID:       func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) ListAll(_ context.Context, name string) ([]store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[name]
	if !ok {
		return []store.Document{}, nil
	}
	out := make([]store.Document, 0, len(col.order))
	for _, id := range col.order {
		out = append(out, withID(col.docs[id], id))
	}
	return out, nil
}

func (s *Store) Get(_ context.Context, name, id string) (store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[name]
	if !ok {
		return nil, store.ErrNotFound
	}
	doc, ok := col.docs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return withID(doc, id), nil
}

func (s *Store) Put(_ context.Context, name string, doc store.Document) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.collection(name)
	id := doc.ID()
	if id == "" {
		id = s.newID()
	}
	if _, exists := col.docs[id]; exists {
		return "", fmt.Errorf("memory: document %s/%s already exists", name, id)
	}
	col.docs[id] = s.clock.Resolve(doc)
	col.order = append(col.order, id)
	return id, nil
}

func (s *Store) Update(_ context.Context, name, id string, fields store.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.collections[name]
	if !ok {
		return store.ErrNotFound
	}
	current, ok := col.docs[id]
	if !ok {
		return store.ErrNotFound
	}
	next := current.Clone()
	for k, v := range s.clock.Resolve(fields) {
		next[k] = v
	}
	col.docs[id] = next
	return nil
}

func (s *Store) ListWhere(_ context.Context, name string, filters ...store.Filter) ([]store.Document, error) {
	if err := store.ValidateFilters(filters); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[name]
	if !ok {
		return []store.Document{}, nil
	}
	out := make([]store.Document, 0)
	for _, id := range col.order {
		doc := col.docs[id]
		if store.Match(doc, filters) {
			out = append(out, withID(doc, id))
		}
	}
	return out, nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close(context.Context) error { return nil }

func (s *Store) collection(name string) *collection {
	col, ok := s.collections[name]
	if !ok {
		col = &collection{docs: make(map[string]store.Document)}
		s.collections[name] = col
	}
	return col
}

func withID(doc store.Document, id string) store.Document {
	out := doc.Clone()
	out["id"] = id
	return out
}
