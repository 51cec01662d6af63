package optimize

import "github.com/samsarahq/queryopt/ast"

// SelectionField is the normalized, flattened shape of a single field
// selection (spec.md §3): a GraphQL selection with its fragments already
// merged in and its name already converted to the host's snake_case
// attribute convention. The walker and filter-info extractor do not build
// SelectionField values; they work on *ast.Selection directly and convert
// names as they go.
type SelectionField struct {
	Name         string
	EffectiveName string
	Args         map[string]interface{}
	SelectionSet *ast.SelectionSet
}

// mergedSelections flattens set's direct selections together with every
// selection contributed by its fragments (named or inline), regardless of
// type condition. This is the general case: most fragments apply to the
// selection's own concrete type, or to an interface every reachable member
// implements identically, so folding them all together is correct. Callers
// that must discriminate union/interface member types (the walker's
// inline-fragment narrowing for polymorphic to-one/to-many fields) use
// fragmentsByTypeCondition instead.
func mergedSelections(set *ast.SelectionSet) []*ast.Selection {
	if set == nil {
		return nil
	}
	out := append([]*ast.Selection(nil), set.Selections...)
	for _, frag := range set.Fragments {
		out = append(out, mergedSelections(frag.SelectionSet)...)
	}
	return out
}

// fragmentsByTypeCondition groups set's fragments by their declared type
// condition, merging in set's own direct selections (which apply to every
// concrete type) under each group. Used where a field's static type is a
// union or interface and each concrete member may project different
// relations (spec.md §8 S7).
func fragmentsByTypeCondition(set *ast.SelectionSet) map[string][]*ast.Selection {
	if set == nil {
		return nil
	}
	base := append([]*ast.Selection(nil), set.Selections...)
	out := map[string][]*ast.Selection{}
	for _, frag := range set.Fragments {
		if frag.TypeCondition == "" {
			base = append(base, mergedSelections(frag.SelectionSet)...)
			continue
		}
		out[frag.TypeCondition] = append(out[frag.TypeCondition], mergedSelections(frag.SelectionSet)...)
	}
	for cond := range out {
		out[cond] = append(out[cond], base...)
	}
	return out
}

// hasInlineFragments reports whether set narrows to one or more concrete
// types via a non-empty type condition, as opposed to only containing plain
// named-fragment spreads against its own type.
func hasInlineFragments(set *ast.SelectionSet) bool {
	if set == nil {
		return false
	}
	for _, frag := range set.Fragments {
		if frag.TypeCondition != "" {
			return true
		}
	}
	return false
}
