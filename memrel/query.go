package memrel

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/samsarahq/queryopt/querybuilder"
)

// Query is memrel's querybuilder.QueryBuilder implementation: each chained
// method returns a new Query value carrying the added directive, except for
// hints, which every Query derived from a common root shares by reference
// (querybuilder.QueryBuilder's documented contract).
type Query struct {
	store *Store
	table string

	filters       []querybuilder.Filter
	only          []string
	selectRelated []string
	prefetches    []querybuilder.Prefetch
	annotations   map[string]querybuilder.Expression
	aliases       map[string]querybuilder.Expression
	orderBy       []querybuilder.SortKey
	distinct      bool
	sliceStart    *int
	sliceStop     *int
	windows       map[string]querybuilder.Window

	hints map[string]interface{}
}

// NewQuery constructs a fresh, unfiltered Query scoped to table.
func NewQuery(store *Store, table string) *Query {
	return &Query{store: store, table: table, hints: map[string]interface{}{}}
}

func (q *Query) clone() *Query {
	c := *q
	c.filters = append([]querybuilder.Filter(nil), q.filters...)
	c.only = append([]string(nil), q.only...)
	c.selectRelated = append([]string(nil), q.selectRelated...)
	c.prefetches = append([]querybuilder.Prefetch(nil), q.prefetches...)
	c.orderBy = append([]querybuilder.SortKey(nil), q.orderBy...)

	c.annotations = make(map[string]querybuilder.Expression, len(q.annotations))
	for k, v := range q.annotations {
		c.annotations[k] = v
	}
	c.aliases = make(map[string]querybuilder.Expression, len(q.aliases))
	for k, v := range q.aliases {
		c.aliases[k] = v
	}
	c.windows = make(map[string]querybuilder.Window, len(q.windows))
	for k, v := range q.windows {
		c.windows[k] = v
	}
	// hints is deliberately NOT copied: it stays the same map reference
	// across every Query derived from this one.
	return &c
}

func (q *Query) Filter(predicate querybuilder.Filter) querybuilder.QueryBuilder {
	c := q.clone()
	c.filters = append(c.filters, predicate)
	return c
}

func (q *Query) Only(columns []string) querybuilder.QueryBuilder {
	c := q.clone()
	c.only = append(c.only, columns...)
	return c
}

func (q *Query) SelectRelated(paths []string) querybuilder.QueryBuilder {
	c := q.clone()
	c.selectRelated = append(c.selectRelated, paths...)
	return c
}

func (q *Query) PrefetchRelated(prefetches []querybuilder.Prefetch) querybuilder.QueryBuilder {
	c := q.clone()
	c.prefetches = append(c.prefetches, prefetches...)
	return c
}

func (q *Query) Annotate(name string, expr querybuilder.Expression) querybuilder.QueryBuilder {
	c := q.clone()
	c.annotations[name] = expr
	return c
}

func (q *Query) Alias(name string, expr querybuilder.Expression) querybuilder.QueryBuilder {
	c := q.clone()
	c.aliases[name] = expr
	return c
}

func (q *Query) OrderBy(keys []querybuilder.SortKey) querybuilder.QueryBuilder {
	c := q.clone()
	c.orderBy = append([]querybuilder.SortKey(nil), keys...)
	return c
}

func (q *Query) Distinct() querybuilder.QueryBuilder {
	c := q.clone()
	c.distinct = true
	return c
}

// IsDistinct reports whether Distinct has been chained onto this Query, so
// a caller driving memrel directly (chiefly this module's own tests) can
// assert on it without a database round trip.
func (q *Query) IsDistinct() bool {
	return q.distinct
}

func (q *Query) Slice(start, stop int) querybuilder.QueryBuilder {
	c := q.clone()
	c.sliceStart = &start
	c.sliceStop = &stop
	return c
}

func (q *Query) Window(alias string, w querybuilder.Window) querybuilder.QueryBuilder {
	c := q.clone()
	c.windows[alias] = w
	return c
}

func (q *Query) Hints() map[string]interface{} {
	return q.hints
}

// Count evaluates the number of rows this Query matches, ignoring any
// top-level Slice: unlike Django's QuerySet.count() on a sliced queryset,
// an applied Slice never narrows the count.
func (q *Query) Count(ctx context.Context) (int64, error) {
	rows, err := q.matchedRows()
	if err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

// Fetch executes the query: filtering, windowed partition slicing,
// ordering, distinct de-duplication, the top-level slice, and finally
// resolving select_related/prefetch_related onto each returned row.
func (q *Query) Fetch(ctx context.Context) ([]interface{}, error) {
	rows, err := q.matchedRows()
	if err != nil {
		return nil, err
	}

	rows = q.applyWindows(rows)
	rows = applyOrderBy(rows, q.orderBy)
	if q.distinct {
		rows = dedupeRows(rows, q.store.primaryKey(q.table))
	}
	if q.sliceStart != nil && q.sliceStop != nil {
		rows = sliceRows(rows, *q.sliceStart, *q.sliceStop)
	}

	if err := q.resolveSelectRelated(ctx, rows); err != nil {
		return nil, err
	}
	if err := q.resolvePrefetches(ctx, rows); err != nil {
		return nil, err
	}

	out := make([]interface{}, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out, nil
}

func (q *Query) matchedRows() ([]Row, error) {
	rows := q.store.rows(q.table)
	var matched []Row
	for _, row := range rows {
		if rowMatchesAll(row, q.filters) {
			matched = append(matched, row)
		}
	}
	return matched, nil
}

// rowMatchesAll reports whether row satisfies every filter (each filter is
// itself a conjunctive equality predicate; multiple Filter() calls AND
// together, mirroring chained QuerySet.filter() calls).
func rowMatchesAll(row Row, filters []querybuilder.Filter) bool {
	for _, filter := range filters {
		for col, want := range filter {
			if got, ok := row[col]; !ok || !valuesEqual(got, want) {
				return false
			}
		}
	}
	return true
}

func valuesEqual(a, b interface{}) bool {
	return a == b
}

// applyWindows partitions rows by each configured window's owning
// relation, sorts each partition, and bounds it to [Start, Stop) — the
// in-memory analogue of a ROW_NUMBER() OVER (PARTITION BY ... ORDER BY ...)
// filter (spec.md §4.5), adapted from the Relay slicing algorithm in the
// teacher's graphql/schemabuilder/pagination.go.
func (q *Query) applyWindows(rows []Row) []Row {
	for _, w := range q.windows {
		partitionCol := w.PartitionBy
		if rel, ok := q.store.relationByAccessor(w.PartitionBy); ok {
			partitionCol = rel.FKColumn
		}

		groups := map[interface{}][]Row{}
		var order []interface{}
		for _, row := range rows {
			key := row[partitionCol]
			if _, seen := groups[key]; !seen {
				order = append(order, key)
			}
			groups[key] = append(groups[key], row)
		}

		var result []Row
		for _, key := range order {
			partition := applyOrderBy(groups[key], w.OrderBy)
			start, stop := 0, len(partition)
			if w.Start != nil {
				start = minInt(*w.Start, stop)
			}
			if w.Stop != nil {
				stop = minInt(*w.Stop, stop)
			}
			if start > stop {
				start = stop
			}
			result = append(result, partition[start:stop]...)
		}
		rows = result
	}
	return rows
}

func applyOrderBy(rows []Row, keys []querybuilder.SortKey) []Row {
	if len(keys) == 0 {
		return rows
	}
	sorted := append([]Row(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		for _, key := range keys {
			desc := strings.HasPrefix(string(key), "-")
			col := strings.TrimPrefix(string(key), "-")
			cmp := compareValues(sorted[i][col], sorted[j][col])
			if cmp == 0 {
				continue
			}
			if desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	return sorted
}

func compareValues(a, b interface{}) int {
	as, bs := toComparable(a), toComparable(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

// toComparable renders a value to a string for ordering purposes. memrel is
// a reference/test implementation; a real relational backend compares
// native column types directly.
func toComparable(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func dedupeRows(rows []Row, pk string) []Row {
	seen := map[interface{}]bool{}
	var out []Row
	for _, row := range rows {
		key := row[pk]
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, row)
	}
	return out
}

func sliceRows(rows []Row, start, stop int) []Row {
	if start > len(rows) {
		start = len(rows)
	}
	if stop > len(rows) {
		stop = len(rows)
	}
	if start > stop {
		start = stop
	}
	return rows[start:stop]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
