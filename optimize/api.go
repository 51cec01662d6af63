package optimize

import (
	"context"

	"github.com/samsarahq/queryopt/ast"
	"github.com/samsarahq/queryopt/querybuilder"
	"github.com/samsarahq/queryopt/schema"
)

// Optimize runs the full pipeline — walk, compile, apply — over qb for the
// given root selection, and applies any top-level order_by found in the
// filter info, adding Distinct only when that ordering traverses a to-many
// relation (spec.md §9 open question, resolved in DESIGN.md). args carries
// the arguments of the field that resolves this list/connection (first,
// last, order_by, filterset args) — the same role sel.Args plays for a
// relation accessor one level down; pass nil when the caller has none.
// This is the Entry API's plural form, grounded on
// `original_source/query_optimizer/compiler.py`'s top-level `optimize`
// function.
func Optimize(ctx context.Context, adapter schema.Adapter, cfg Config, rootType schema.ObjectType, set *ast.SelectionSet, qb querybuilder.QueryBuilder, args map[string]interface{}) (querybuilder.QueryBuilder, error) {
	if IsOptimized(cfg, qb) {
		return qb, nil
	}

	opt, filterInfo, err := compilePlan(adapter, cfg, rootType, set, args)
	if err != nil {
		return handleOptimizeError(cfg, qb, err)
	}

	optimized, err := ApplyToQueryBuilder(ctx, adapter, cfg, opt, qb, filterInfo)
	if err != nil {
		return handleOptimizeError(cfg, qb, err)
	}

	// Top-level ordering falls back to the model's declared default when no
	// explicit order_by argument was given, mirroring `parse_order_by_args`.
	var keys []querybuilder.SortKey
	if orderBy, ok := filterInfo.OrderBy(); ok {
		keys = splitOrderBy(orderBy)
	}
	if len(keys) == 0 {
		keys = adapter.DefaultOrdering(rootType.Model())
	}
	if len(keys) > 0 {
		optimized = optimized.OrderBy(keys)
		if OrderByTraversesToMany(adapter, rootType, keys) {
			optimized = optimized.Distinct()
		}
	}

	return optimized, nil
}

// OptimizeSingle is the Entry API's singular form: it narrows qb to pk,
// consults the per-request Cache, and — on a miss — optimizes and fetches
// the row, storing it back into cache. It never re-applies ordering after
// the pk filter, since ordering a single-row result is pointless and
// historically defeated the exact prefetch-partitioning the optimizer had
// just set up (the "don't call .first()" note on `optimize_single`).
func OptimizeSingle(ctx context.Context, adapter schema.Adapter, cfg Config, cache *Cache, rootType schema.ObjectType, set *ast.SelectionSet, qb querybuilder.QueryBuilder, pk interface{}) (interface{}, error) {
	qb = qb.Filter(querybuilder.Filter{adapter.PrimaryKeyColumn(rootType.Model()): pk})

	opt, filterInfo, err := compilePlan(adapter, cfg, rootType, set, nil)
	if err != nil {
		fallbackQB, handledErr := handleOptimizeError(cfg, qb, err)
		if handledErr != nil {
			return nil, handledErr
		}
		rows, fetchErr := fallbackQB.Fetch(ctx)
		if fetchErr != nil {
			return nil, fetchErr
		}
		return firstRow(rows), nil
	}

	if cached, ok := cache.Get(rootType.Model(), pk, opt); ok {
		return cached, nil
	}

	optimized, err := ApplyToQueryBuilder(ctx, adapter, cfg, opt, qb, filterInfo)
	if err != nil {
		return nil, err
	}

	rows, err := optimized.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	row := firstRow(rows)
	cache.Store(rootType.Model(), pk, opt, row)
	return row, nil
}

// compilePlan runs the Selection Walker and Filter-Info Extractor together,
// the shared first half of both Optimize and OptimizeSingle.
func compilePlan(adapter schema.Adapter, cfg Config, rootType schema.ObjectType, set *ast.SelectionSet, args map[string]interface{}) (*Optimizer, *FilterInfo, error) {
	opt, err := Walk(adapter, cfg, rootType, set)
	if err != nil {
		return nil, nil, err
	}
	filterInfo := ExtractFilterInfo(adapter, rootType, set, args)
	return opt, filterInfo, nil
}

// handleOptimizeError implements spec.md §7's skip_optimization_on_error
// behavior: ComplexityExceeded and InvalidPagination and FilterValidation
// always propagate (they reflect a client-supplied query the host should
// reject), while SchemaMismatch and UnexpectedInternal fall back to the
// original, unoptimized query builder when configured to do so.
func handleOptimizeError(cfg Config, qb querybuilder.QueryBuilder, err error) (querybuilder.QueryBuilder, error) {
	switch Kind(err) {
	case KindSchemaMismatch, KindUnexpectedInternal:
		if cfg.SkipOptimizationOnError {
			cfg.Logger.Warn("optimization skipped after error", "error", err.Error())
			return qb, nil
		}
	}
	return nil, err
}

func firstRow(rows []interface{}) interface{} {
	if len(rows) == 0 {
		return nil
	}
	return rows[0]
}

func splitOrderBy(orderBy string) []querybuilder.SortKey {
	if orderBy == "" {
		return nil
	}
	var keys []querybuilder.SortKey
	start := 0
	for i := 0; i <= len(orderBy); i++ {
		if i == len(orderBy) || orderBy[i] == ',' {
			if i > start {
				keys = append(keys, querybuilder.SortKey(orderBy[start:i]))
			}
			start = i + 1
		}
	}
	return keys
}
