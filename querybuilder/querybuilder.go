// Package querybuilder defines the abstract relational query-builder
// contract the optimizer core compiles its Optimization Plan down to
// (SPEC_FULL.md §3). The core never generates SQL and never touches a
// database directly; it only issues these directives. A concrete
// implementation supplies the SQL dialect, driver, and result
// materialization — all out of scope for this module. See the memrel
// package for a reference, in-memory implementation used by this module's
// own tests.
package querybuilder

import "context"

// ModelRef is an opaque handle to a model/table in the host's data layer.
// The core never inspects it; it only threads it between the schema adapter
// and the query builder.
type ModelRef interface {
	// Name returns a stable identifier for the model (conventionally its
	// table name), used for cache-key and log namespacing.
	Name() string
}

// Filter is a conjunctive (AND-of-equalities) predicate map, column name to
// required value, mirroring the host's native filter/kwargs shape.
type Filter map[string]interface{}

// Expression is an opaque relational expression (an annotation or alias
// body). The core treats expressions as tokens to thread through and to
// fingerprint for cache keys; it never evaluates them.
type Expression interface {
	// Token returns a stable, opaque string identifying this expression's
	// shape, such that two structurally identical expressions return equal
	// tokens. Used by the query cache's plan-fingerprint derivation.
	Token() string
}

// SortKey is a single order-by term: a snake_case column or accessor path,
// optionally prefixed with "-" for descending order.
type SortKey string

// Window describes a ROW_NUMBER()-style expression, partitioned by a column
// and ordered within each partition — the mechanism nested connections use
// for per-parent pagination (SPEC_FULL.md / spec.md §4.5). Start/Stop, when
// set, bound the partition-relative row index to a [Start, Stop) window;
// a concrete implementation is expected to clamp these per-partition (the
// Go analogue of the conditional Case/When bounds the reference Python
// implementation builds per partition size, since a partition can hold
// fewer rows than the requested window).
type Window struct {
	PartitionBy string
	OrderBy     []SortKey
	Start       *int
	Stop        *int
}

// Prefetch is a (accessor, child query, optional to_attr) descriptor: a
// secondary, keyed fetch for a to-many relation, resolved independently of
// the parent query and stitched back onto parent rows by the accessor (or,
// if ToAttr is non-empty, under that attribute instead).
type Prefetch struct {
	Accessor string
	Query    QueryBuilder
	ToAttr   string
}

// QueryBuilder is the downstream collaborator the optimizer core targets.
// Every method returns a new QueryBuilder reflecting the added directive,
// in the spirit of an immutable chained builder (as with Django querysets,
// or thunder's own chained sqlgen queries) — EXCEPT for the map returned by
// Hints, which implementations must share (by reference) across every
// value produced by chaining from a common ancestor, so that marking one
// link in the chain as optimized is visible to every other link derived
// from it.
type QueryBuilder interface {
	// Filter applies a conjunctive predicate.
	Filter(predicate Filter) QueryBuilder
	// Only restricts the projected columns.
	Only(columns []string) QueryBuilder
	// SelectRelated inlines joins along the given dotted to-one paths.
	SelectRelated(paths []string) QueryBuilder
	// PrefetchRelated attaches secondary keyed fetches.
	PrefetchRelated(prefetches []Prefetch) QueryBuilder
	// Annotate attaches a materialized computed column.
	Annotate(name string, expr Expression) QueryBuilder
	// Alias attaches a non-materialized helper expression, reusable by name
	// inside other expressions on the same query.
	Alias(name string, expr Expression) QueryBuilder
	// OrderBy applies ordering; keys with a leading "-" sort descending.
	OrderBy(keys []SortKey) QueryBuilder
	// Distinct requests row deduplication after ordering/joins.
	Distinct() QueryBuilder
	// Slice applies a top-level [start, stop) LIMIT/OFFSET window.
	Slice(start, stop int) QueryBuilder
	// Window attaches a partitioned ROW_NUMBER()-style expression under the
	// given alias, for nested-connection pagination.
	Window(alias string, w Window) QueryBuilder

	// Count evaluates a scalar count of the current query.
	Count(ctx context.Context) (int64, error)
	// Fetch executes the query and returns its materialized rows.
	Fetch(ctx context.Context) ([]interface{}, error)

	// Hints returns the mutable hints map this query builder value shares
	// with every other value derived from the same chain root. The core
	// stores its optimized-marker here under a configurable key.
	Hints() map[string]interface{}
}
