package optimize

import (
	"context"

	"github.com/samsarahq/queryopt/ast"
	"github.com/samsarahq/queryopt/memrel"
	"github.com/samsarahq/queryopt/querybuilder"
	"github.com/samsarahq/queryopt/schema"
)

// fixtureExpr is a trivial querybuilder.Expression used by fixture
// annotations/aliases in tests.
type fixtureExpr string

func (e fixtureExpr) Token() string { return string(e) }

// fixtureType is a minimal schema.ObjectType backing one memrel table.
type fixtureType struct {
	name          string
	model         schema.ModelRef
	fields        map[string]schema.FieldDescriptor
	filterClass   interface{}
	maxComplexity int
	hasMax        bool
	generic       []string
}

func (t *fixtureType) Name() string                  { return t.name }
func (t *fixtureType) Model() schema.ModelRef         { return t.model }
func (t *fixtureType) GenericRelations() []string     { return t.generic }
func (t *fixtureType) FilterSetClass() (interface{}, bool) {
	return t.filterClass, t.filterClass != nil
}
func (t *fixtureType) MaxComplexity() (int, bool) { return t.maxComplexity, t.hasMax }
func (t *fixtureType) Field(name string) (schema.FieldDescriptor, bool) {
	f, ok := t.fields[name]
	return f, ok
}

// fixtureAdapter is a minimal schema.Adapter backed by a memrel.Store,
// shared by every test in this package that needs an end-to-end plan
// compiled against something concrete.
type fixtureAdapter struct {
	store       *memrel.Store
	byModel     map[string]*fixtureType
	byName      map[string]*fixtureType
	defaultSort map[string][]querybuilder.SortKey
	pkColumn    map[string]string
}

func newFixtureAdapter(store *memrel.Store) *fixtureAdapter {
	return &fixtureAdapter{
		store:       store,
		byModel:     map[string]*fixtureType{},
		byName:      map[string]*fixtureType{},
		defaultSort: map[string][]querybuilder.SortKey{},
		pkColumn:    map[string]string{},
	}
}

func (a *fixtureAdapter) register(t *fixtureType, pk string, defaultOrder ...querybuilder.SortKey) {
	a.byModel[t.model.Name()] = t
	a.byName[t.name] = t
	a.pkColumn[t.model.Name()] = pk
	a.defaultSort[t.model.Name()] = defaultOrder
}

func (a *fixtureAdapter) ObjectTypeFor(model schema.ModelRef) (schema.ObjectType, bool) {
	t, ok := a.byModel[model.Name()]
	return t, ok
}

func (a *fixtureAdapter) ObjectTypeByName(name string) (schema.ObjectType, bool) {
	t, ok := a.byName[name]
	return t, ok
}

func (a *fixtureAdapter) PrimaryKeyColumn(model schema.ModelRef) string {
	return a.pkColumn[model.Name()]
}

func (a *fixtureAdapter) DefaultOrdering(model schema.ModelRef) []querybuilder.SortKey {
	return a.defaultSort[model.Name()]
}

func (a *fixtureAdapter) NewQueryBuilder(model schema.ModelRef) querybuilder.QueryBuilder {
	return memrel.NewQuery(a.store, model.Name())
}

func (a *fixtureAdapter) FilterQueryset(ctx context.Context, model schema.ModelRef, qb querybuilder.QueryBuilder) querybuilder.QueryBuilder {
	return qb
}

func (a *fixtureAdapter) NormalizeFilterValue(value interface{}) interface{} {
	return value
}

// buildFixture wires a small HousingCompany -> Developer (to-one),
// HousingCompany -> Apartment (to-many/connection) schema, backed by a
// populated memrel.Store, used throughout this package's tests.
func buildFixture() (*fixtureAdapter, schema.ObjectType) {
	store := memrel.NewStore()
	store.CreateTable("developer", "id")
	store.CreateTable("company", "id")
	store.CreateTable("apartment", "id")

	store.Insert("developer", memrel.Row{"id": 1, "name": "Acme Developer"})
	store.Insert("company", memrel.Row{"id": 1, "name": "Sunshine Housing", "developer_id": 1})
	store.Insert("apartment", memrel.Row{"id": 1, "street": "Main St", "floor": 1, "company_id": 1})
	store.Insert("apartment", memrel.Row{"id": 2, "street": "Side St", "floor": 2, "company_id": 1})

	store.RegisterRelation(memrel.Relation{
		Kind: memrel.ToOne, FromTable: "company", ToTable: "developer",
		Accessor: "developer", FKColumn: "developer_id",
	})
	store.RegisterRelation(memrel.Relation{
		Kind: memrel.ToMany, FromTable: "company", ToTable: "apartment",
		Accessor: "apartments", FKColumn: "company_id",
	})

	adapter := newFixtureAdapter(store)

	developerType := &fixtureType{
		name:  "DeveloperType",
		model: memrel.Model("developer"),
		fields: map[string]schema.FieldDescriptor{
			"name": {Kind: schema.FieldScalar, Column: "name"},
		},
	}
	apartmentType := &fixtureType{
		name:  "ApartmentType",
		model: memrel.Model("apartment"),
		fields: map[string]schema.FieldDescriptor{
			"street": {Kind: schema.FieldScalar, Column: "street"},
			"floor":  {Kind: schema.FieldScalar, Column: "floor"},
			"label": {
				Kind:       schema.FieldCustomAnnotation,
				Annotation: fixtureExpr("concat(street, floor)"),
			},
		},
	}
	companyType := &fixtureType{
		name:  "HousingCompanyType",
		model: memrel.Model("company"),
		fields: map[string]schema.FieldDescriptor{
			"name": {Kind: schema.FieldScalar, Column: "name"},
			"developer": {
				Kind: schema.FieldToOne, Accessor: "developer",
				RelatedModel: memrel.Model("developer"), ForeignKeyColumn: "developer_id",
			},
			"apartments": {
				Kind: schema.FieldToMany, Accessor: "apartments",
				RelatedModel: memrel.Model("apartment"), InverseForeignKeyColumn: "company_id",
			},
		},
	}

	adapter.register(developerType, "id")
	adapter.register(apartmentType, "id")
	adapter.register(companyType, "id")

	return adapter, companyType
}

// field builds an *ast.Selection with no arguments and no nested selection.
func field(name string) *ast.Selection {
	return &ast.Selection{Name: name}
}

// fieldWith builds an *ast.Selection with a nested selection set.
func fieldWith(name string, args map[string]interface{}, children ...*ast.Selection) *ast.Selection {
	var set *ast.SelectionSet
	if len(children) > 0 {
		set = &ast.SelectionSet{Selections: children}
	}
	return &ast.Selection{Name: name, Args: args, SelectionSet: set}
}

func selectionSet(selections ...*ast.Selection) *ast.SelectionSet {
	return &ast.SelectionSet{Selections: selections}
}
