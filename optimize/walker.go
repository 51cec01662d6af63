package optimize

import (
	"github.com/iancoleman/strcase"

	"github.com/samsarahq/queryopt/ast"
	"github.com/samsarahq/queryopt/schema"
)

// maxNamedBackingDepth bounds FieldCustomNamedBacking indirection chains, the
// same way the original implementation bounds `attname.split("__")`
// recursion: a backing field naming itself, directly or through a cycle, is
// a schema-authoring bug, not something the walker should loop on forever.
const maxNamedBackingDepth = 8

// genericContentTypeModel stands in for the otherwise-unresolvable related
// model on the content-type side of a generic foreign key: the walker only
// needs something satisfying schema.ModelRef to record the join under
// select_related, never an actual ObjectType to recurse into.
type genericContentTypeModel string

func (m genericContentTypeModel) Name() string { return string(m) }

// Walk runs the Selection Compiler (C2) over set, understood to be a
// selection against objType, and returns the accumulated (still-unfolded)
// Optimizer tree plus any SchemaMismatch/ComplexityExceeded error
// encountered along the way.
func Walk(adapter schema.Adapter, cfg Config, objType schema.ObjectType, set *ast.SelectionSet) (*Optimizer, error) {
	rootMax, rootHasOverride := objType.MaxComplexity()
	guard := newComplexityGuard(rootMax, rootHasOverride, cfg.MaxComplexity)
	return walkInto(adapter, cfg, guard, objType, set)
}

func walkInto(adapter schema.Adapter, cfg Config, guard *complexityGuard, objType schema.ObjectType, set *ast.SelectionSet) (*Optimizer, error) {
	opt := NewOptimizer(objType.Model())
	if set == nil {
		return opt, nil
	}

	if hasInlineFragments(set) {
		return walkNarrowed(adapter, cfg, guard, objType, set)
	}

	for _, sel := range mergedSelections(set) {
		if sel.Name == "__typename" || sel.Name == "pageInfo" || sel.Name == "edges" {
			continue
		}
		if err := walkField(adapter, cfg, guard, opt, objType, sel, 0); err != nil {
			return nil, err
		}
	}
	return opt, nil
}

// walkNarrowed handles a selection set that narrows to one or more concrete
// types via inline fragments (spec.md §8 S7): each concrete type walks
// independently against its own ObjectType/model, and the results are
// recorded under Optimizer.TypeNarrowed rather than folded into a single
// node, since a union/interface field spans more than one underlying model.
func walkNarrowed(adapter schema.Adapter, cfg Config, guard *complexityGuard, objType schema.ObjectType, set *ast.SelectionSet) (*Optimizer, error) {
	opt := NewOptimizer(objType.Model())
	opt.TypeNarrowed = map[string]*Optimizer{}

	for typeName, selections := range fragmentsByTypeCondition(set) {
		branchType, ok := adapter.ObjectTypeByName(typeName)
		if !ok {
			return nil, SchemaMismatchError("no object type registered for inline fragment type condition %q", typeName)
		}
		branch := NewOptimizer(branchType.Model())
		for _, sel := range selections {
			if sel.Name == "__typename" || sel.Name == "pageInfo" || sel.Name == "edges" {
				continue
			}
			if err := walkField(adapter, cfg, guard, branch, branchType, sel, 0); err != nil {
				return nil, err
			}
		}
		opt.TypeNarrowed[typeName] = branch
	}
	return opt, nil
}

// walkField classifies and dispatches a single selection against objType,
// mutating opt in place. depth bounds FieldCustomNamedBacking indirection.
func walkField(adapter schema.Adapter, cfg Config, guard *complexityGuard, opt *Optimizer, objType schema.ObjectType, sel *ast.Selection, depth int) error {
	name := strcase.ToSnake(sel.Name)

	for _, generic := range objType.GenericRelations() {
		if generic != name {
			continue
		}
		// A generic (content-type + object-id) relation can't be resolved to
		// a concrete related model without introspecting the referenced
		// content type at runtime, which is out of scope here; the walker
		// instead joins the content-type side (a to-one relation in its own
		// right) via select_related, and records the object-id column as a
		// related field the same way an ordinary forward FK would, so the
		// host can resolve the polymorphic reference itself.
		joinAccessor := name + "_content_type"
		if _, ok := opt.SelectRelated[joinAccessor]; !ok {
			opt.SelectRelated[joinAccessor] = NewOptimizer(genericContentTypeModel(joinAccessor))
		}
		opt.addRelatedField(name + "_object_id")
		return nil
	}

	field, ok := objType.Field(name)
	if !ok {
		return SchemaMismatchError("field %q is not declared on object type %q", name, objType.Name())
	}

	switch field.Kind {
	case schema.FieldScalar:
		opt.addOnlyField(field.Column)
		return nil

	case schema.FieldTotalCount:
		opt.TotalCount = true
		return nil

	case schema.FieldCustomAnnotation:
		opt.Annotations[name] = field.Annotation
		for aliasName, expr := range field.Aliases {
			opt.Aliases[aliasName] = expr
		}
		return nil

	case schema.FieldCustomMultiColumn:
		for _, col := range field.Columns {
			opt.addOnlyField(col)
		}
		return nil

	case schema.FieldCustomNamedBacking:
		if depth >= maxNamedBackingDepth {
			return SchemaMismatchError("field %q's backing chain exceeds the maximum depth of %d (likely a cyclic schema declaration)", name, maxNamedBackingDepth)
		}
		backing, ok := objType.Field(field.BackingFieldName)
		if !ok {
			return SchemaMismatchError("field %q names backing field %q, which is not declared on object type %q", name, field.BackingFieldName, objType.Name())
		}
		backingSel := &ast.Selection{Name: field.BackingFieldName, Args: sel.Args, SelectionSet: sel.SelectionSet}
		return walkFieldDescriptor(adapter, cfg, guard, opt, objType, backing, backingSel, depth+1)

	case schema.FieldToOne, schema.FieldToMany:
		return walkRelation(adapter, cfg, guard, opt, field, sel)

	default:
		return SchemaMismatchError("field %q on object type %q has an unrecognized kind", name, objType.Name())
	}
}

// walkFieldDescriptor re-dispatches using an already-resolved descriptor,
// used by the FieldCustomNamedBacking indirection in walkField.
func walkFieldDescriptor(adapter schema.Adapter, cfg Config, guard *complexityGuard, opt *Optimizer, objType schema.ObjectType, field schema.FieldDescriptor, sel *ast.Selection, depth int) error {
	switch field.Kind {
	case schema.FieldScalar:
		opt.addOnlyField(field.Column)
		return nil
	case schema.FieldTotalCount:
		opt.TotalCount = true
		return nil
	case schema.FieldCustomAnnotation:
		opt.Annotations[sel.Name] = field.Annotation
		for aliasName, expr := range field.Aliases {
			opt.Aliases[aliasName] = expr
		}
		return nil
	case schema.FieldCustomMultiColumn:
		for _, col := range field.Columns {
			opt.addOnlyField(col)
		}
		return nil
	case schema.FieldCustomNamedBacking:
		if depth >= maxNamedBackingDepth {
			return SchemaMismatchError("field %q's backing chain exceeds the maximum depth of %d (likely a cyclic schema declaration)", sel.Name, maxNamedBackingDepth)
		}
		backing, ok := objType.Field(field.BackingFieldName)
		if !ok {
			return SchemaMismatchError("field %q names backing field %q, which is not declared on object type %q", sel.Name, field.BackingFieldName, objType.Name())
		}
		backingSel := &ast.Selection{Name: field.BackingFieldName, Args: sel.Args, SelectionSet: sel.SelectionSet}
		return walkFieldDescriptor(adapter, cfg, guard, opt, objType, backing, backingSel, depth+1)
	case schema.FieldToOne, schema.FieldToMany:
		return walkRelation(adapter, cfg, guard, opt, field, sel)
	default:
		return SchemaMismatchError("field %q on object type %q has an unrecognized kind", sel.Name, objType.Name())
	}
}

// walkRelation descends into a to-one/to-many relation, counting complexity,
// resolving the related object type, unwrapping the Relay connection shape
// for to-many fields, and recursing.
func walkRelation(adapter schema.Adapter, cfg Config, guard *complexityGuard, opt *Optimizer, field schema.FieldDescriptor, sel *ast.Selection) error {
	if err := guard.enter(); err != nil {
		return err
	}

	childType, ok := adapter.ObjectTypeFor(field.RelatedModel)
	if !ok {
		return SchemaMismatchError("no object type registered for related model %q", field.RelatedModel.Name())
	}

	accessor := field.Accessor
	if accessor == "" {
		accessor = strcase.ToSnake(sel.Name)
	}

	if field.Kind == schema.FieldToOne {
		child, err := walkInto(adapter, cfg, guard, childType, sel.SelectionSet)
		if err != nil {
			return err
		}
		if field.ForeignKeyColumn != "" {
			opt.addRelatedField(field.ForeignKeyColumn)
		}
		if existing, ok := opt.SelectRelated[accessor]; ok {
			existing.Merge(child)
		} else {
			opt.SelectRelated[accessor] = child
		}
		return nil
	}

	nodeSet, _ := connectionNodeSelectionSet(sel.SelectionSet)
	child, err := walkInto(adapter, cfg, guard, childType, nodeSet)
	if err != nil {
		return err
	}
	if field.InverseForeignKeyColumn != "" {
		child.addRelatedField(field.InverseForeignKeyColumn)
	}
	if field.MaxLimit != nil {
		child.MaxLimit = field.MaxLimit
	}
	if hasTotalCountField(sel.SelectionSet) {
		child.TotalCount = true
	}
	if existing, ok := opt.PrefetchRelated[accessor]; ok {
		existing.Merge(child)
	} else {
		opt.PrefetchRelated[accessor] = child
	}
	return nil
}
