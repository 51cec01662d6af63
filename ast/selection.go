// Package ast models the already-parsed shape of a single GraphQL operation
// that the optimizer core consumes. Parsing the operation document, running
// validation, and resolving the schema are external collaborators (out of
// scope for this module, per SPEC_FULL.md §1); this package only describes
// the shape a parser hands off once that work is done.
package ast

// SelectionSet is a GraphQL selection set: a group of field selections plus
// any fragment spreads or inline fragments that were applied to it. Fragment
// spreads are expected to already be resolved to their target selection sets
// upstream (the operation document and its named fragments have already been
// parsed); inline fragments are represented the same way, distinguished by
// their TypeCondition.
type SelectionSet struct {
	Selections []*Selection
	Fragments  []*Fragment
}

// Selection is a single field selection within a SelectionSet.
//
//	me: user(id: 166) { name }
//
// has Name "user" (the field being queried), Alias "me" (the name under
// which the result should be reported), Args {id: 166}, and a nested
// SelectionSet for "name".
type Selection struct {
	Name         string
	Alias        string
	Args         map[string]interface{}
	SelectionSet *SelectionSet
}

// Fragment is a named fragment spread or inline fragment, already resolved
// to the selection set it contributes.
//
// TypeCondition is the concrete object-type name the fragment narrows to
// (e.g. "Person" for "... on Person { ... }"). For a fragment spread against
// a non-union type, TypeCondition is typically the same as the enclosing
// type and can be ignored; it matters when the enclosing field is a union or
// interface and the walker must discriminate between concrete member types.
type Fragment struct {
	TypeCondition string
	SelectionSet  *SelectionSet
}

// EffectiveName returns the name under which a selection's result should be
// reported, preferring the alias when one was given.
func (s *Selection) EffectiveName() string {
	if s.Alias != "" {
		return s.Alias
	}
	return s.Name
}
