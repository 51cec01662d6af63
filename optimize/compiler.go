package optimize

import (
	"context"
	"sort"
	"strings"

	"github.com/samsarahq/queryopt/querybuilder"
	"github.com/samsarahq/queryopt/schema"
)

// CompilationResult is the flattened set of directives produced by
// compiling a single Optimizer node (spec.md §3/C5), grounded directly on
// `CompilationResults` in `original_source/query_optimizer/optimizer.py`.
type CompilationResult struct {
	OnlyFields      []string
	RelatedFields   []string
	SelectRelated   []string
	PrefetchRelated []querybuilder.Prefetch
	Annotations     map[string]querybuilder.Expression
	Aliases         map[string]querybuilder.Expression

	// TypeNarrowed holds one compiled result per concrete GraphQL type for a
	// union/interface relation (spec.md §8 S7), keyed the same way
	// Optimizer.TypeNarrowed is. It is nil unless the node it was compiled
	// from narrowed to at least one concrete type. Since each
	// entry backs a different underlying model, issuing the per-type query
	// and merging results by the union's own discriminator is left to the
	// host — this core's job ends at producing one compiled plan per type.
	TypeNarrowed map[string]*CompilationResult
}

// Compile runs the Plan Compiler (C5) over opt: a bottom-up pass that
// flattens the Optimizer tree into dotted select_related paths and
// keyed/optimized prefetch_related child query builders, promoting any
// select_related edge that (transitively) needs annotations into a
// prefetch_related instead, since a single joined row can't carry
// per-parent computed columns the way a keyed secondary fetch can
// (spec.md §4.4 rule 2, §9 design note: this runs as an explicit separate
// pass over the already-built tree, not inline during the walk).
func Compile(ctx context.Context, adapter schema.Adapter, cfg Config, opt *Optimizer, filterInfo *FilterInfo) (*CompilationResult, error) {
	opt.frozen = true

	result := &CompilationResult{
		OnlyFields:    appendMissing(append([]string(nil), opt.OnlyFields...), adapter.PrimaryKeyColumn(opt.Model)),
		RelatedFields: append([]string(nil), opt.RelatedFields...),
		Annotations:   opt.Annotations,
		Aliases:       opt.Aliases,
	}

	// select_related keys are sorted for deterministic plan fingerprints
	// (cache-key canonicalization, spec.md §9).
	selectNames := sortedKeys(opt.SelectRelated)
	for _, name := range selectNames {
		child := opt.SelectRelated[name]
		if child.hasAnnotations() {
			if err := compilePrefetch(ctx, adapter, cfg, name, child, result, filterInfo); err != nil {
				return nil, err
			}
			continue
		}
		if err := compileSelect(ctx, adapter, cfg, name, child, result, filterInfo); err != nil {
			return nil, err
		}
	}

	prefetchNames := sortedKeys(opt.PrefetchRelated)
	for _, name := range prefetchNames {
		if err := compilePrefetch(ctx, adapter, cfg, name, opt.PrefetchRelated[name], result, filterInfo); err != nil {
			return nil, err
		}
	}

	if len(opt.TypeNarrowed) > 0 {
		result.TypeNarrowed = map[string]*CompilationResult{}
		for _, typeName := range sortedTypeNarrowedKeys(opt.TypeNarrowed) {
			branch, err := Compile(ctx, adapter, cfg, opt.TypeNarrowed[typeName], filterInfo)
			if err != nil {
				return nil, err
			}
			result.TypeNarrowed[typeName] = branch
		}
	}

	return result, nil
}

// appendMissing adds column to fields unless it's empty or already present,
// keeping only_fields free of duplicate entries when a selection already
// named the primary-key column as an ordinary scalar.
func appendMissing(fields []string, column string) []string {
	if column == "" {
		return fields
	}
	for _, f := range fields {
		if f == column {
			return fields
		}
	}
	return append(fields, column)
}

func sortedTypeNarrowedKeys(m map[string]*Optimizer) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeys(m map[string]*Optimizer) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// compileSelect folds a non-annotated to-one child into the parent's own
// select_related/only_fields lists, dotted-prefixed by accessor name.
func compileSelect(ctx context.Context, adapter schema.Adapter, cfg Config, name string, child *Optimizer, result *CompilationResult, filterInfo *FilterInfo) error {
	result.SelectRelated = append(result.SelectRelated, name)

	nested, err := Compile(ctx, adapter, cfg, child, filterInfo.Child(name))
	if err != nil {
		return err
	}
	for _, only := range nested.OnlyFields {
		result.OnlyFields = append(result.OnlyFields, name+"."+only)
	}
	for _, rel := range nested.RelatedFields {
		result.OnlyFields = append(result.OnlyFields, name+"."+rel)
	}
	for _, sel := range nested.SelectRelated {
		result.SelectRelated = append(result.SelectRelated, name+"."+sel)
	}
	for _, prefetch := range nested.PrefetchRelated {
		prefetch.Accessor = name + "." + prefetch.Accessor
		result.PrefetchRelated = append(result.PrefetchRelated, prefetch)
	}
	return nil
}

// compilePrefetch builds and optimizes a keyed child query builder for a
// to-many relation (or a select_related edge promoted to one), grounded on
// `compile_prefetch`/`get_prefetch_queryset`.
func compilePrefetch(ctx context.Context, adapter schema.Adapter, cfg Config, name string, child *Optimizer, result *CompilationResult, filterInfo *FilterInfo) error {
	childFilterInfo := filterInfo.Child(name)

	qb := adapter.NewQueryBuilder(child.Model)
	qb, err := applyPrefetchPagination(qb, adapter, child.Model, name, childFilterInfo, child.MaxLimit, cfg)
	if err != nil {
		return err
	}

	optimizedQB, err := ApplyToQueryBuilder(ctx, adapter, cfg, child, qb, childFilterInfo)
	if err != nil {
		return err
	}

	result.PrefetchRelated = append(result.PrefetchRelated, querybuilder.Prefetch{
		Accessor: name,
		Query:    optimizedQB,
		ToAttr:   child.ToAttr,
	})
	return nil
}

// applyPrefetchPagination attaches a partitioned ROW_NUMBER()-style window
// to qb when childFilterInfo names a connection with pagination arguments,
// so each parent's slice of children is computed in one round trip instead
// of one query per parent (spec.md §4.5, grounded on `get_prefetch_queryset`'s
// `models.Window(expression=RowNumber(), partition_by=..., order_by=...)`
// plus a `_row_number__gte/__lte` filter, re-expressed here as a single
// `querybuilder.Window` directive whose Start/Stop carry the bound; no
// separate Filter is added).
// maxLimit is the schema-configured cap for this relation, if any; the raw
// arguments always pass through ValidatePaginationArgs first, so a malformed
// client request (negative first, after past before, ...) surfaces as
// InvalidPagination here instead of reaching CalculateSlice's arithmetic.
func applyPrefetchPagination(qb querybuilder.QueryBuilder, adapter schema.Adapter, model schema.ModelRef, accessor string, filterInfo *FilterInfo, maxLimit *int, cfg Config) (querybuilder.QueryBuilder, error) {
	if !filterInfo.IsConnection {
		return qb, nil
	}

	args := PaginationArgs{MaxLimit: maxLimit}
	if v, ok := filterInfo.Filters["first"].(int); ok {
		args.First = &v
	}
	if v, ok := filterInfo.Filters["last"].(int); ok {
		args.Last = &v
	}
	if v, ok := filterInfo.Filters["offset"].(int); ok {
		args.Offset = &v
	}
	if v, ok := filterInfo.Filters["after"].(int); ok {
		args.After = &v
	}
	if v, ok := filterInfo.Filters["before"].(int); ok {
		args.Before = &v
	}

	args, err := ValidatePaginationArgs(args)
	if err != nil {
		return nil, err
	}
	if args.IsUnbounded() {
		return qb, nil
	}

	orderBy, hasOrderBy := filterInfo.OrderBy()
	var keys []querybuilder.SortKey
	if hasOrderBy {
		for _, part := range strings.Split(orderBy, ",") {
			if part != "" {
				keys = append(keys, querybuilder.SortKey(part))
			}
		}
	} else {
		keys = adapter.DefaultOrdering(model)
	}

	// The exact [start, stop) bound depends on each partition's own size,
	// which isn't known until query time; Window.Start/Stop carry the
	// requested bound and a concrete implementation clamps it per
	// partition (the Go analogue of the conditional Case/When bounds
	// `calculate_slice_for_queryset` builds). Here we only need a single
	// representative size to drive the pure Relay math in CalculateSlice;
	// a concrete implementation applies the same arithmetic per partition.
	slice := CalculateSlice(args, 1<<31-1)
	start, stop := slice.Start, slice.Stop
	return qb.Window(cfg.PrefetchPartitionIndexKey, querybuilder.Window{
		PartitionBy: accessor,
		OrderBy:     keys,
		Start:       &start,
		Stop:        &stop,
	}), nil
}

// ApplyToQueryBuilder is the Plan Executor (spec.md's "optimize_queryset"):
// it compiles opt, applies the per-model filter_queryset hook, and issues
// the resulting select_related/prefetch_related/only/annotate/alias
// directives against qb, marking the result optimized.
func ApplyToQueryBuilder(ctx context.Context, adapter schema.Adapter, cfg Config, opt *Optimizer, qb querybuilder.QueryBuilder, filterInfo *FilterInfo) (querybuilder.QueryBuilder, error) {
	result, err := Compile(ctx, adapter, cfg, opt, filterInfo)
	if err != nil {
		return nil, err
	}

	qb = adapter.FilterQueryset(ctx, opt.Model, qb)

	if filterInfo != nil && filterInfo.FilterSetClass != nil {
		qb = qb.Filter(querybuilder.Filter(filterInfo.Filters))
	}

	if len(result.PrefetchRelated) > 0 {
		qb = qb.PrefetchRelated(result.PrefetchRelated)
	}
	if len(result.SelectRelated) > 0 {
		qb = qb.SelectRelated(result.SelectRelated)
	}
	if !cfg.DisableOnlyFieldsOptimization && (len(result.OnlyFields) > 0 || len(result.RelatedFields) > 0) {
		only := append([]string(nil), result.OnlyFields...)
		only = append(only, result.RelatedFields...)
		qb = qb.Only(only)
	}
	for name, expr := range result.Annotations {
		qb = qb.Annotate(name, expr)
	}
	for name, expr := range result.Aliases {
		qb = qb.Alias(name, expr)
	}

	qb.Hints()[cfg.OptimizerMark] = true
	return qb, nil
}

// OrderByTraversesToMany walks orderBy's dotted accessor paths against
// rootType's schema and reports whether any of them crosses a to-many
// relation before reaching its final segment. This resolves spec.md §9's
// open question: `Distinct` is required only in that case, since ordering
// by a to-many-joined column is the only situation that can multiply rows.
func OrderByTraversesToMany(adapter schema.Adapter, rootType schema.ObjectType, orderBy []querybuilder.SortKey) bool {
	for _, key := range orderBy {
		path := strings.TrimPrefix(string(key), "-")
		segments := strings.Split(path, ".")
		if len(segments) < 2 {
			continue
		}

		currentType := rootType
		for _, segment := range segments[:len(segments)-1] {
			field, ok := currentType.Field(segment)
			if !ok {
				break
			}
			if field.Kind == schema.FieldToMany {
				return true
			}
			if field.Kind != schema.FieldToOne {
				break
			}
			next, ok := adapter.ObjectTypeFor(field.RelatedModel)
			if !ok {
				break
			}
			currentType = next
		}
	}
	return false
}
