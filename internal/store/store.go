// Package store defines the document persistence port used by the ledger
// together with helpers shared by the concrete backends.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Collection names used by the application.
const (
	CollectionProducts = "products"
	CollectionHistory  = "productHistory"
	CollectionUsers    = "users"
	CollectionRoles    = "roles"
)

// ErrNotFound is returned by Get and Update when the id does not exist.
var ErrNotFound = errors.New("store: document not found")

// Document is a schemaless record. The "id" key is reserved for the
// store-assigned identifier and is populated on every read.
type Document map[string]any

// Op enumerates the comparison operators supported by ListWhere.
type Op string

const (
	OpEq  Op = "=="
	OpLte Op = "<="
	OpGte Op = ">="
)

// Filter is a single field predicate. Multiple filters are combined with AND.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Where is shorthand for building a Filter.
func Where(field string, op Op, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

type serverTimestamp struct{}

// ServerTimestamp marks a field to be replaced with the store's write clock.
var ServerTimestamp any = serverTimestamp{}

// Store is the persistence port.
type Store interface {
	ListAll(ctx context.Context, collection string) ([]Document, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	Put(ctx context.Context, collection string, doc Document) (string, error)
	Update(ctx context.Context, collection, id string, fields Document) error
	ListWhere(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Clone returns a shallow copy of the document without the id key.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		if k == "id" {
			continue
		}
		out[k] = v
	}
	return out
}

// ID returns the document identifier or an empty string.
func (d Document) ID() string {
	id, _ := d["id"].(string)
	return id
}

// ValidateFilters rejects unsupported operators and empty field names.
func ValidateFilters(filters []Filter) error {
	for _, f := range filters {
		if strings.TrimSpace(f.Field) == "" {
			return errors.New("store: filter field required")
		}
		switch f.Op {
		case OpEq, OpLte, OpGte:
		default:
			return fmt.Errorf("store: unsupported operator %q", f.Op)
		}
	}
	return nil
}

// Match evaluates the filters against a document in memory. Values of
// different kinds never match, mirroring document-store semantics.
func Match(doc Document, filters []Filter) bool {
	for _, f := range filters {
		got, ok := doc[f.Field]
		if !ok {
			return false
		}
		cmp, comparable := compare(got, f.Value)
		if !comparable {
			return false
		}
		switch f.Op {
		case OpEq:
			if cmp != 0 {
				return false
			}
		case OpLte:
			if cmp > 0 {
				return false
			}
		case OpGte:
			if cmp < 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func compare(a, b any) (int, bool) {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		if av == bv {
			return 0, true
		}
		if !av {
			return -1, true
		}
		return 1, true
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	}
	af, ok := toFloat(a)
	if !ok {
		return 0, false
	}
	bf, ok := toFloat(b)
	if !ok {
		return 0, false
	}
	switch {
	case af < bf:
		return -1, true
	case af > bf:
		return 1, true
	default:
		return 0, true
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
