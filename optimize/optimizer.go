package optimize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samsarahq/queryopt/querybuilder"
	"github.com/samsarahq/queryopt/schema"
)

// Optimizer is a per-model accumulator (spec.md §3/C4), built up by the
// Selection Walker and consumed by the Plan Compiler. One Optimizer is
// constructed per distinct model reached during a walk; it lives for the
// duration of a single request.
//
// frozen tracks the state-machine from spec.md §4.9: an Optimizer starts
// "unfolded" (mutable, while the walker is still visiting it) and becomes
// "frozen" the first time Compile runs over it. Mutating a frozen node is a
// programming error and panics, the same way mutating a receiver during an
// iterator's Close would be.
type Optimizer struct {
	Model schema.ModelRef

	OnlyFields    []string
	RelatedFields []string

	Annotations map[string]querybuilder.Expression
	Aliases     map[string]querybuilder.Expression

	SelectRelated   map[string]*Optimizer
	PrefetchRelated map[string]*Optimizer

	TotalCount bool
	ToAttr     string

	// MaxLimit carries the schema-configured cap on first/last for a
	// FieldToMany relation (spec.md §4.5), set by the walker from
	// schema.FieldDescriptor.MaxLimit and read back by the compiler when
	// building this node's prefetch query.
	MaxLimit *int

	// TypeNarrowed holds, keyed by concrete GraphQL type name, one Optimizer
	// per union/interface member reached through an inline fragment on this
	// relation (spec.md §8 S7). It is nil unless the selection narrowed to
	// at least one concrete type via an inline fragment; the Plan Compiler
	// compiles each entry separately into CompilationResult.TypeNarrowed in
	// that case, since a union spans more than one underlying model and
	// cannot be folded into this node's own OnlyFields/SelectRelated/
	// PrefetchRelated.
	TypeNarrowed map[string]*Optimizer

	frozen bool
}

// NewOptimizer constructs an empty Optimizer for model.
func NewOptimizer(model schema.ModelRef) *Optimizer {
	return &Optimizer{
		Model:           model,
		Annotations:     map[string]querybuilder.Expression{},
		Aliases:         map[string]querybuilder.Expression{},
		SelectRelated:   map[string]*Optimizer{},
		PrefetchRelated: map[string]*Optimizer{},
	}
}

func (o *Optimizer) checkMutable() {
	if o.frozen {
		panic("optimize: attempted to mutate a frozen Optimizer node after compilation")
	}
}

// addOnlyField appends a column to project, keeping the set free of
// duplicates while preserving first-seen order (so generated projection
// lists stay stable/deterministic across identical plans, per the
// cache-fingerprint canonicalization in spec.md §9).
func (o *Optimizer) addOnlyField(column string) {
	o.checkMutable()
	for _, existing := range o.OnlyFields {
		if existing == column {
			return
		}
	}
	o.OnlyFields = append(o.OnlyFields, column)
}

func (o *Optimizer) addRelatedField(column string) {
	o.checkMutable()
	for _, existing := range o.RelatedFields {
		if existing == column {
			return
		}
	}
	o.RelatedFields = append(o.RelatedFields, column)
}

// Merge unions other into o: only_fields, related_fields, select_related,
// prefetch_related, and annotations are combined (spec.md §4.3 / the
// original QueryOptimizer.__add__). Used when two selection paths converge
// on the same submodel, e.g. a custom field's backing name mapping to an
// already-present accessor.
func (o *Optimizer) Merge(other *Optimizer) *Optimizer {
	o.checkMutable()
	for _, f := range other.OnlyFields {
		o.addOnlyField(f)
	}
	for _, f := range other.RelatedFields {
		o.addRelatedField(f)
	}
	for name, expr := range other.Annotations {
		o.Annotations[name] = expr
	}
	for name, expr := range other.Aliases {
		o.Aliases[name] = expr
	}
	for name, child := range other.SelectRelated {
		if existing, ok := o.SelectRelated[name]; ok {
			existing.Merge(child)
		} else {
			o.SelectRelated[name] = child
		}
	}
	for name, child := range other.PrefetchRelated {
		if existing, ok := o.PrefetchRelated[name]; ok {
			existing.Merge(child)
		} else {
			o.PrefetchRelated[name] = child
		}
	}
	if other.TotalCount {
		o.TotalCount = true
	}
	if o.MaxLimit == nil {
		o.MaxLimit = other.MaxLimit
	}
	for typeName, child := range other.TypeNarrowed {
		if o.TypeNarrowed == nil {
			o.TypeNarrowed = map[string]*Optimizer{}
		}
		if existing, ok := o.TypeNarrowed[typeName]; ok {
			existing.Merge(child)
		} else {
			o.TypeNarrowed[typeName] = child
		}
	}
	return o
}

// hasAnnotations reports whether o or any transitive descendant requires
// row-level computation via annotations — the trigger for promoting a
// select_related edge to prefetch_related at compile time (spec.md §3
// invariant, §4.4 rule 2).
func (o *Optimizer) hasAnnotations() bool {
	if len(o.Annotations) > 0 {
		return true
	}
	for _, child := range o.SelectRelated {
		if child.hasAnnotations() {
			return true
		}
	}
	for _, child := range o.TypeNarrowed {
		if child.hasAnnotations() {
			return true
		}
	}
	return false
}

// String renders a debug summary of the (uncompiled) accumulator shape,
// grounded on the original QueryOptimizer.__str__. It reports the raw tree
// as accumulated by the walker, before the select→prefetch promotion pass
// compile performs, since that pass requires a schema.Adapter and context
// this method doesn't have access to.
func (o *Optimizer) String() string {
	only := append([]string(nil), o.OnlyFields...)
	sort.Strings(only)

	selectNames := make([]string, 0, len(o.SelectRelated))
	for name := range o.SelectRelated {
		selectNames = append(selectNames, name)
	}
	sort.Strings(selectNames)

	prefetchNames := make([]string, 0, len(o.PrefetchRelated))
	for name := range o.PrefetchRelated {
		prefetchNames = append(prefetchNames, name)
	}
	sort.Strings(prefetchNames)

	return fmt.Sprintf(
		"only=%q|select=%q|prefetch=%q",
		strings.Join(only, ","), strings.Join(selectNames, ","), strings.Join(prefetchNames, ","),
	)
}
