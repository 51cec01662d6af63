package optimize

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samsarahq/queryopt/memrel"
)

func TestOptimizeEndToEndAttachesRelations(t *testing.T) {
	adapter, companyType := buildFixture()
	cfg := NewConfig()
	ctx := context.Background()

	set := selectionSet(
		field("name"),
		fieldWith("developer", nil, field("name")),
		fieldWith("apartments", nil,
			fieldWith("edges", nil, fieldWith("node", nil, field("street"))),
		),
	)

	qb := adapter.NewQueryBuilder(companyType.Model())
	optimized, err := Optimize(ctx, adapter, cfg, companyType, set, qb, nil)
	require.NoError(t, err)

	rows, err := optimized.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0].(memrel.Row)
	assert.Equal(t, "Sunshine Housing", row["name"])

	developer, ok := row["developer"].(memrel.Row)
	require.True(t, ok)
	assert.Equal(t, "Acme Developer", developer["name"])

	apartments, ok := row["apartments"].([]interface{})
	require.True(t, ok)
	assert.Len(t, apartments, 2)
}

func TestOptimizeIsIdempotentOnAlreadyOptimizedQuery(t *testing.T) {
	adapter, companyType := buildFixture()
	cfg := NewConfig()
	ctx := context.Background()

	qb := adapter.NewQueryBuilder(companyType.Model())
	qb.Hints()[cfg.OptimizerMark] = true

	set := selectionSet(field("doesNotExist")) // would otherwise raise SchemaMismatch
	result, err := Optimize(ctx, adapter, cfg, companyType, set, qb, nil)
	require.NoError(t, err)
	assert.Same(t, qb, result)
}

func TestOptimizeSkipsOnErrorWhenConfigured(t *testing.T) {
	adapter, companyType := buildFixture()
	cfg := NewConfig(WithSkipOptimizationOnError(true))
	ctx := context.Background()

	qb := adapter.NewQueryBuilder(companyType.Model())
	set := selectionSet(field("doesNotExist"))

	result, err := Optimize(ctx, adapter, cfg, companyType, set, qb, nil)
	require.NoError(t, err)
	require.NotNil(t, result)
}

func TestOptimizePropagatesSchemaMismatchByDefault(t *testing.T) {
	adapter, companyType := buildFixture()
	cfg := NewConfig()
	ctx := context.Background()

	qb := adapter.NewQueryBuilder(companyType.Model())
	set := selectionSet(field("doesNotExist"))

	_, err := Optimize(ctx, adapter, cfg, companyType, set, qb, nil)
	require.Error(t, err)
	assert.Equal(t, KindSchemaMismatch, Kind(err))
}

func TestOptimizeSingleUsesCacheOnSecondCall(t *testing.T) {
	adapter, companyType := buildFixture()
	cfg := NewConfig()
	cache := NewCache()
	ctx := context.Background()

	set := selectionSet(field("name"))

	qb1 := adapter.NewQueryBuilder(companyType.Model())
	row1, err := OptimizeSingle(ctx, adapter, cfg, cache, companyType, set, qb1, 1)
	require.NoError(t, err)
	require.NotNil(t, row1)

	adapter.store.ResetFetchCount()
	qb2 := adapter.NewQueryBuilder(companyType.Model())
	row2, err := OptimizeSingle(ctx, adapter, cfg, cache, companyType, set, qb2, 1)
	require.NoError(t, err)
	assert.Equal(t, row1, row2)
	assert.EqualValues(t, 0, adapter.store.FetchCount(), "a cache hit must not read the store")
}

// TestOptimizeOrdersByToManyAppliesDistinct exercises Optimize's own
// distinct-on-order-by-to-many wiring (api.go), not just OrderByTraversesToMany
// in isolation: a root-level order_by argument naming a path through the
// apartments (to-many) relation must result in a query builder carrying
// both the OrderBy and Distinct directives.
func TestOptimizeOrdersByToManyAppliesDistinct(t *testing.T) {
	adapter, companyType := buildFixture()
	cfg := NewConfig()
	ctx := context.Background()

	set := selectionSet(field("name"))
	qb := adapter.NewQueryBuilder(companyType.Model())

	optimized, err := Optimize(ctx, adapter, cfg, companyType, set, qb, map[string]interface{}{"order_by": "apartments.floor"})
	require.NoError(t, err)

	memQuery, ok := optimized.(*memrel.Query)
	require.True(t, ok)
	assert.True(t, memQuery.IsDistinct())
}

// TestOptimizeOrdersWithoutToManyDoesNotApplyDistinct is the negative case:
// a root order_by that never crosses a to-many relation must not trigger
// Distinct, since it can't multiply rows.
func TestOptimizeOrdersWithoutToManyDoesNotApplyDistinct(t *testing.T) {
	adapter, companyType := buildFixture()
	cfg := NewConfig()
	ctx := context.Background()

	set := selectionSet(field("name"))
	qb := adapter.NewQueryBuilder(companyType.Model())

	optimized, err := Optimize(ctx, adapter, cfg, companyType, set, qb, map[string]interface{}{"order_by": "name"})
	require.NoError(t, err)

	memQuery, ok := optimized.(*memrel.Query)
	require.True(t, ok)
	assert.False(t, memQuery.IsDistinct())
}

// TestOptimizeSurfacesInvalidPaginationFromNestedConnection drives
// spec.md §7's "pagination errors surface as InvalidPagination
// unconditionally" end to end: a nested connection's own malformed
// pagination arguments must fail Optimize itself, not just the isolated
// ValidatePaginationArgs unit tests.
func TestOptimizeSurfacesInvalidPaginationFromNestedConnection(t *testing.T) {
	adapter, companyType := buildFixture()
	cfg := NewConfig()
	ctx := context.Background()

	set := selectionSet(
		field("name"),
		fieldWith("apartments", map[string]interface{}{"first": -5},
			fieldWith("edges", nil, fieldWith("node", nil, field("street"))),
		),
	)

	qb := adapter.NewQueryBuilder(companyType.Model())
	_, err := Optimize(ctx, adapter, cfg, companyType, set, qb, nil)
	require.Error(t, err)
	assert.Equal(t, KindInvalidPagination, Kind(err))
}

// TestOptimizeCapsNestedConnectionToConfiguredMaxLimit resolves spec.md
// §4.5's max_limit behavior end to end: a relation whose schema.FieldDescriptor
// carries a MaxLimit caps the number of children returned even when the
// client's own requested first exceeds it.
func TestOptimizeCapsNestedConnectionToConfiguredMaxLimit(t *testing.T) {
	adapter, companyType := buildFixture()
	ct := companyType.(*fixtureType)
	apartmentsField := ct.fields["apartments"]
	apartmentsField.MaxLimit = intp(1)
	ct.fields["apartments"] = apartmentsField

	cfg := NewConfig()
	ctx := context.Background()

	set := selectionSet(
		field("name"),
		fieldWith("apartments", map[string]interface{}{"first": 10},
			fieldWith("edges", nil, fieldWith("node", nil, field("street"))),
		),
	)

	qb := adapter.NewQueryBuilder(companyType.Model())
	optimized, err := Optimize(ctx, adapter, cfg, companyType, set, qb, nil)
	require.NoError(t, err)

	rows, err := optimized.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0].(memrel.Row)
	apartments, ok := row["apartments"].([]interface{})
	require.True(t, ok)
	assert.Len(t, apartments, 1, "max_limit of 1 must cap the two available apartments down to one")
}

// TestOptimizeIssuesOnePlusPQueries checks spec.md §8.1's Minimal-queries
// invariant against the real pipeline: optimizing a root selection with one
// to-many (prefetch) relation must issue exactly one query for the root
// plus one keyed query per distinct prefetch accessor (P=1 here), never one
// query per parent row.
func TestOptimizeIssuesOnePlusPQueries(t *testing.T) {
	adapter, companyType := buildFixture()
	cfg := NewConfig()
	ctx := context.Background()

	adapter.store.ResetFetchCount()

	set := selectionSet(
		field("name"),
		fieldWith("apartments", nil,
			fieldWith("edges", nil, fieldWith("node", nil, field("street"))),
		),
	)

	qb := adapter.NewQueryBuilder(companyType.Model())
	optimized, err := Optimize(ctx, adapter, cfg, companyType, set, qb, nil)
	require.NoError(t, err)

	_, err = optimized.Fetch(ctx)
	require.NoError(t, err)

	assert.EqualValues(t, 2, adapter.store.FetchCount(), "one query for companies plus one keyed prefetch for apartments")
}
