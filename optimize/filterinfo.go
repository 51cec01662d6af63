package optimize

import (
	"github.com/iancoleman/strcase"
	"golang.org/x/sync/errgroup"

	"github.com/samsarahq/queryopt/ast"
	"github.com/samsarahq/queryopt/schema"
)

// FilterInfo is per-selection filter metadata (spec.md §3/C3): filter
// arguments, order-by, and pagination arguments derived from a selection,
// plus the same information recursively for every relation accessor
// reached from it.
type FilterInfo struct {
	Name           string
	Filters        map[string]interface{}
	Children       map[string]*FilterInfo
	FilterSetClass interface{}
	IsConnection   bool
	IsNode         bool
}

// paginationKeys lists the argument names treated as pagination/order
// inputs rather than opaque filterset arguments (spec.md §4.2).
var paginationKeys = map[string]bool{
	"first": true, "last": true, "offset": true, "after": true, "before": true, "order_by": true,
}

// ExtractFilterInfo runs the Filter-Info Extractor (C3) over set, which is
// understood to represent objType's selection. This is a parallel pass to
// the Selection Walker (C2): it shares the same fragment-resolved input but
// builds an independent tree, since the two components serve different
// consumers (the Optimizer tree vs. filterset/pagination application).
//
// args carries the arguments of the *enclosing* field — the one whose
// resolver returns this selection's list/connection (e.g. a root query
// field like `companies(orderBy: ..., first: ...)`) — since that field's
// own first/last/order_by/filterset arguments govern this FilterInfo the
// same way a relation accessor's own args govern its child FilterInfo.
// Pass nil when set is resolving an already-narrowed single object (no
// enclosing list arguments apply, as with OptimizeSingle).
func ExtractFilterInfo(adapter schema.Adapter, objType schema.ObjectType, set *ast.SelectionSet, args map[string]interface{}) *FilterInfo {
	info := &FilterInfo{Name: objType.Name(), Filters: splitFilters(adapter, args)}
	if class, ok := objType.FilterSetClass(); ok {
		info.FilterSetClass = class
	}

	children := extractChildInfo(adapter, objType, set)
	if len(children) > 0 {
		info.Children = children
	}
	return info
}

// extractChildInfo walks set's fields, resolving connection wrappers
// (edges -> node) into their logical child, and recurses concurrently per
// child using golang.org/x/sync/errgroup — grounded on the teacher's own
// concurrent per-node resolution in graphql/schemabuilder/pagination.go
// (applyTextFilter, applySort), since sibling children are independent and
// extraction does no shared mutation beyond populating disjoint map keys.
func extractChildInfo(adapter schema.Adapter, objType schema.ObjectType, set *ast.SelectionSet) map[string]*FilterInfo {
	if set == nil {
		return nil
	}

	type job struct {
		accessor string
		field    schema.FieldDescriptor
		args     map[string]interface{}
		selSet   *ast.SelectionSet
		conn     bool
	}

	var jobs []job
	for _, sel := range mergedSelections(set) {
		if sel.Name == "__typename" {
			continue
		}
		name := strcase.ToSnake(sel.Name)
		field, ok := objType.Field(name)
		if !ok || (field.Kind != schema.FieldToOne && field.Kind != schema.FieldToMany) {
			continue
		}
		accessor := field.Accessor
		if accessor == "" {
			accessor = name
		}

		nodeSet, isConn := connectionNodeSelectionSet(sel.SelectionSet)
		jobs = append(jobs, job{accessor: accessor, field: field, args: sel.Args, selSet: nodeSet, conn: isConn})
	}

	if len(jobs) == 0 {
		return nil
	}

	results := make([]*FilterInfo, len(jobs))
	var g errgroup.Group
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			childType, ok := adapter.ObjectTypeFor(j.field.RelatedModel)
			if !ok {
				return nil
			}
			child := &FilterInfo{
				Name:         j.accessor,
				Filters:      splitFilters(adapter, j.args),
				IsConnection: j.conn,
				IsNode:       true,
			}
			if class, ok := childType.FilterSetClass(); ok && len(j.args) > 0 {
				child.FilterSetClass = class
			}
			if nested := extractChildInfo(adapter, childType, j.selSet); len(nested) > 0 {
				child.Children = nested
			}
			// Prune children with nothing of interest: no filters, not a
			// pagination-capable connection, and no recursive children
			// (spec.md §4.2).
			if len(child.Filters) == 0 && !child.IsConnection && len(child.Children) == 0 {
				return nil
			}
			results[i] = child
			return nil
		})
	}
	_ = g.Wait() // extraction never fails; ObjectTypeFor lookup misses are simply skipped.

	out := map[string]*FilterInfo{}
	for i, j := range jobs {
		if results[i] != nil {
			out[j.accessor] = results[i]
		}
	}
	return out
}

// splitFilters separates pagination/order-by arguments from opaque
// filterset arguments, normalizing enum-like values via the adapter
// (spec.md §9 / original process_filters), and returns a single map
// holding both, as spec.md §3's FilterInfo.filters does.
func splitFilters(adapter schema.Adapter, args map[string]interface{}) map[string]interface{} {
	if len(args) == 0 {
		return map[string]interface{}{}
	}
	out := make(map[string]interface{}, len(args))
	for k, v := range args {
		key := strcase.ToSnake(k)
		if paginationKeys[key] {
			out[key] = v
			continue
		}
		out[key] = adapter.NormalizeFilterValue(v)
	}
	return out
}

// connectionNodeSelectionSet detects the Relay { edges { node { ... } } }
// shape and, if present, returns the node's selection set along with true.
// Otherwise it returns set unchanged with false, so plain list/to-one
// selections are handled identically to connections from here on.
func connectionNodeSelectionSet(set *ast.SelectionSet) (*ast.SelectionSet, bool) {
	if set == nil {
		return nil, false
	}
	for _, sel := range mergedSelections(set) {
		if sel.Name != "edges" || sel.SelectionSet == nil {
			continue
		}
		for _, edgeSel := range mergedSelections(sel.SelectionSet) {
			if edgeSel.Name == "node" {
				return edgeSel.SelectionSet, true
			}
		}
	}
	return set, false
}

// hasTotalCountField reports whether set directly selects the distinguished
// total-count sentinel field (spec.md §4.1).
func hasTotalCountField(set *ast.SelectionSet) bool {
	if set == nil {
		return false
	}
	for _, sel := range mergedSelections(set) {
		if strcase.ToSnake(sel.Name) == "total_count" {
			return true
		}
	}
	return false
}

// OrderBy returns the order_by filter value for this FilterInfo, if any
// (spec.md §4.4/§4.8).
func (f *FilterInfo) OrderBy() (string, bool) {
	if f == nil || f.Filters == nil {
		return "", false
	}
	v, ok := f.Filters["order_by"].(string)
	return v, ok && v != ""
}

// Child looks up a relation accessor's FilterInfo, returning an empty,
// non-nil FilterInfo if none was recorded (mirroring the Python
// `filter_info.get("children", {}).get(name, {})` fallback).
func (f *FilterInfo) Child(accessor string) *FilterInfo {
	if f == nil || f.Children == nil {
		return &FilterInfo{Filters: map[string]interface{}{}}
	}
	if child, ok := f.Children[accessor]; ok {
		return child
	}
	return &FilterInfo{Filters: map[string]interface{}{}}
}
