// Package memrel is a reference, in-memory implementation of
// querybuilder.QueryBuilder (SPEC_FULL.md §3), used by this module's own
// tests to exercise the optimizer core end to end without a real database.
// A production host supplies its own implementation over its actual
// relational engine; memrel exists only to give the core something
// concrete to compile plans against.
package memrel

import (
	"sync"
	"sync/atomic"
)

// Row is a single record: stored column name to value.
type Row map[string]interface{}

// RelationKind distinguishes a to-one join from a to-many keyed fetch.
type RelationKind int

const (
	ToOne RelationKind = iota
	ToMany
)

// Relation describes how an accessor name on FromTable resolves to rows on
// ToTable. A concrete query builder implementation owns its own relational
// metadata independently of the GraphQL-facing schema.Adapter
// (the boundary SPEC_FULL.md §3 draws) — memrel's Relation duplicates the
// shape schema.FieldDescriptor carries for this reason, not by oversight.
type Relation struct {
	Kind      RelationKind
	FromTable string
	ToTable   string
	Accessor  string
	// FKColumn is the column, on the "many" (or owning, for to-one) side,
	// that holds the referenced row's primary key.
	FKColumn string
}

// Table is one model's row storage.
type Table struct {
	Name string
	PK   string
	Rows []Row
}

// Store is the in-memory reference relational store memrel.Query reads
// from and resolves joins/prefetches against.
type Store struct {
	mu        sync.RWMutex
	tables    map[string]*Table
	relations map[string][]Relation // keyed by FromTable

	// fetchCount counts every call to rows: one per underlying table scan a
	// Query.Count/Fetch issues, whether from a top-level query or a keyed
	// prefetch's own child query. This is what makes spec.md §8.1's
	// "1 + P queries" Minimal-queries invariant checkable against the real
	// walk→compile→fetch pipeline, rather than just asserted by inspection
	// of the compiled plan shape.
	fetchCount int64
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{tables: map[string]*Table{}, relations: map[string][]Relation{}}
}

// CreateTable registers a table with the given primary-key column name.
func (s *Store) CreateTable(name, pk string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[name] = &Table{Name: name, PK: pk}
}

// Insert appends row to table.
func (s *Store) Insert(table string, row Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[table]
	if !ok {
		t = &Table{Name: table, PK: "id"}
		s.tables[table] = t
	}
	t.Rows = append(t.Rows, row)
}

// RegisterRelation records how an accessor name on a relation's owning
// table resolves to rows on the related table.
func (s *Store) RegisterRelation(rel Relation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relations[rel.FromTable] = append(s.relations[rel.FromTable], rel)
}

func (s *Store) relation(fromTable, accessor string) (Relation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.relations[fromTable] {
		if r.Accessor == accessor {
			return r, true
		}
	}
	return Relation{}, false
}

// relationByAccessor finds a registered relation by accessor name alone,
// regardless of owning table. Used when resolving a partitioned window on
// a prefetch's own child Query, which only knows the accessor name its
// parent used, not the parent's table (SPEC_FULL.md's memrel is a bounded
// reference implementation; this assumes accessor names are unique across
// the registered schema, true for the fixtures this module's tests use).
func (s *Store) relationByAccessor(accessor string) (Relation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rels := range s.relations {
		for _, r := range rels {
			if r.Accessor == accessor {
				return r, true
			}
		}
	}
	return Relation{}, false
}

func (s *Store) rows(table string) []Row {
	atomic.AddInt64(&s.fetchCount, 1)

	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[table]
	if !ok {
		return nil
	}
	out := make([]Row, len(t.Rows))
	copy(out, t.Rows)
	return out
}

// FetchCount reports how many times this Store has been scanned via rows,
// across every Query (top-level and prefetch alike) derived from it.
func (s *Store) FetchCount() int64 {
	return atomic.LoadInt64(&s.fetchCount)
}

// ResetFetchCount zeroes the fetch counter, so a test can set up fixture
// data (which itself issues no Query reads) and then measure only the
// round-trips a subsequent Optimize/Fetch call makes.
func (s *Store) ResetFetchCount() {
	atomic.StoreInt64(&s.fetchCount, 0)
}

func (s *Store) primaryKey(table string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tables[table]; ok && t.PK != "" {
		return t.PK
	}
	return "id"
}

// Model is a querybuilder.ModelRef backed by a plain table name.
type Model string

// Name implements querybuilder.ModelRef.
func (m Model) Name() string { return string(m) }
