// Package schema abstracts the model/object-type metadata the optimizer
// core needs (SPEC_FULL.md §1 / spec.md C1): field classification,
// relation kinds, primary keys, default ordering, and the optional
// per-type filterset/complexity overrides. Defining the object-type
// classes themselves, and introspecting a real schema to build these
// adapters, are external collaborators — out of scope here.
package schema

import (
	"context"

	"github.com/samsarahq/queryopt/querybuilder"
)

// ModelRef is re-exported from querybuilder so that schema adapters and
// query builders agree on a single model-handle type without the two
// packages importing each other.
type ModelRef = querybuilder.ModelRef

// FieldKind is the closed sum of ways a GraphQL selection can resolve
// against a model (spec.md §4.1): a tagged variant, dispatched by the
// walker through a handler per kind rather than open-ended reflection.
type FieldKind int

const (
	// FieldUnknown means the selection could not be classified; the walker
	// raises SchemaMismatch.
	FieldUnknown FieldKind = iota
	// FieldScalar is a plain stored column.
	FieldScalar
	// FieldToOne is a many-to-one or one-to-one relation, forward or
	// reverse.
	FieldToOne
	// FieldToMany is a one-to-many or many-to-many relation, either
	// direction.
	FieldToMany
	// FieldTotalCount is the distinguished edge-count sentinel field on
	// Connection types.
	FieldTotalCount
	// FieldCustomAnnotation is a computed column backed by a relational
	// expression.
	FieldCustomAnnotation
	// FieldCustomMultiColumn is a computed field whose resolver needs more
	// than one stored column projected.
	FieldCustomMultiColumn
	// FieldCustomNamedBacking is a computed field that is really just an
	// alias for another declared model field (scalar or relation), resolved
	// by descending into that backing field under its own rules.
	FieldCustomNamedBacking
)

// FieldDescriptor describes how a single normalized (snake_case) GraphQL
// field name resolves against a model.
type FieldDescriptor struct {
	Kind FieldKind

	// Column is the stored attribute name, set for FieldScalar.
	Column string

	// Columns lists the stored attributes a FieldCustomMultiColumn field
	// needs projected.
	Columns []string

	// Accessor is the relation accessor name used as the select_related /
	// prefetch_related key, set for FieldToOne / FieldToMany.
	Accessor string

	// RelatedModel is the model reached through a relation field.
	RelatedModel ModelRef

	// ForeignKeyColumn is the FK column on the owning model, set for a
	// forward FieldToOne relation backed by a foreign key.
	ForeignKeyColumn string

	// InverseForeignKeyColumn is the FK column on the *related* model, set
	// for a reverse one-to-many FieldToMany relation.
	InverseForeignKeyColumn string

	// BackingFieldName names the declared model field a FieldCustomNamedBacking
	// field actually resolves through.
	BackingFieldName string

	// Annotation is the relational expression for FieldCustomAnnotation.
	Annotation querybuilder.Expression
	// Aliases are helper expressions merged alongside Annotation.
	Aliases map[string]querybuilder.Expression

	// MaxLimit caps first/last on a FieldToMany connection (spec.md §4.5).
	// Nil means unconfigured: first/last pass through uncapped, and a nested
	// connection with no pagination arguments at all is left unwindowed.
	MaxLimit *int
}

// ObjectType is the GraphQL object type bound to a model.
type ObjectType interface {
	// Name is the GraphQL type name, used to resolve inline-fragment type
	// conditions against union/interface members.
	Name() string
	// Model is this type's backing model.
	Model() ModelRef
	// Field resolves a normalized (snake_case) field name.
	Field(name string) (FieldDescriptor, bool)
	// FilterSetClass returns the opaque filterset class registered for this
	// type, if any.
	FilterSetClass() (interface{}, bool)
	// MaxComplexity overrides the global complexity ceiling for this type.
	MaxComplexity() (int, bool)
	// GenericRelations names accessor fields on this type backed by a
	// generic foreign key (content-type + object-id style polymorphic
	// reference) on the underlying model.
	GenericRelations() []string
}

// Adapter is the upstream collaborator the optimizer core queries for
// model/schema metadata.
type Adapter interface {
	// ObjectTypeFor resolves the GraphQL object type bound to a model.
	ObjectTypeFor(model ModelRef) (ObjectType, bool)
	// ObjectTypeByName resolves an object type by its GraphQL type name,
	// used to discriminate inline fragments over a union/interface field.
	ObjectTypeByName(name string) (ObjectType, bool)
	// PrimaryKeyColumn returns the primary-key column name for a model.
	PrimaryKeyColumn(model ModelRef) string
	// DefaultOrdering returns the model's declared default ordering
	// (snake_case names, "-"-prefixed for descending), or nil if none.
	DefaultOrdering(model ModelRef) []querybuilder.SortKey
	// NewQueryBuilder creates a fresh, unfiltered query builder scoped to
	// model — the Go analogue of Django's `model._default_manager.all()`,
	// used to seed a prefetch's child query.
	NewQueryBuilder(model ModelRef) querybuilder.QueryBuilder
	// FilterQueryset applies a per-model narrowing hook, if one is
	// registered for model; otherwise it returns qb unchanged.
	FilterQueryset(ctx context.Context, model ModelRef, qb querybuilder.QueryBuilder) querybuilder.QueryBuilder
	// NormalizeFilterValue converts a single raw filter argument value
	// (e.g. a GraphQL enum) into the form a filterset class expects.
	NormalizeFilterValue(value interface{}) interface{}
}
