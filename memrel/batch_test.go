package memrel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samsarahq/queryopt/querybuilder"
)

func buildParentChildStore() *Store {
	store := NewStore()
	store.CreateTable("parent", "id")
	store.CreateTable("child", "id")

	store.Insert("parent", Row{"id": 1, "name": "p1"})
	store.Insert("parent", Row{"id": 2, "name": "p2"})

	store.Insert("child", Row{"id": 10, "parent_id": 1, "label": "c1"})
	store.Insert("child", Row{"id": 11, "parent_id": 1, "label": "c2"})
	store.Insert("child", Row{"id": 12, "parent_id": 2, "label": "c3"})

	store.RegisterRelation(Relation{
		Kind: ToOne, FromTable: "child", ToTable: "parent",
		Accessor: "parent", FKColumn: "parent_id",
	})
	store.RegisterRelation(Relation{
		Kind: ToMany, FromTable: "parent", ToTable: "child",
		Accessor: "children", FKColumn: "parent_id",
	})
	return store
}

func TestResolveSelectRelatedAttachesJoinedRow(t *testing.T) {
	store := buildParentChildStore()
	q := NewQuery(store, "child").SelectRelated([]string{"parent"})

	rows, err := q.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 3)

	for _, r := range rows {
		row := r.(Row)
		parent, ok := row["parent"].(Row)
		require.True(t, ok)
		assert.Equal(t, row["parent_id"], parent["id"])
	}
}

func TestResolvePrefetchesGroupsChildRowsByForeignKey(t *testing.T) {
	store := buildParentChildStore()
	childQuery := NewQuery(store, "child")

	q := NewQuery(store, "parent").PrefetchRelated([]querybuilder.Prefetch{
		{Accessor: "children", Query: childQuery},
	})

	rows, err := q.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byName := map[string]Row{}
	for _, r := range rows {
		row := r.(Row)
		byName[row["name"].(string)] = row
	}

	p1Children, ok := byName["p1"]["children"].([]interface{})
	require.True(t, ok)
	assert.Len(t, p1Children, 2)

	p2Children, ok := byName["p2"]["children"].([]interface{})
	require.True(t, ok)
	assert.Len(t, p2Children, 1)
}

func TestResolvePrefetchesHonorsToAttr(t *testing.T) {
	store := buildParentChildStore()
	childQuery := NewQuery(store, "child")

	q := NewQuery(store, "parent").PrefetchRelated([]querybuilder.Prefetch{
		{Accessor: "children", ToAttr: "kids", Query: childQuery},
	})

	rows, err := q.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	for _, r := range rows {
		row := r.(Row)
		_, hasDefault := row["children"]
		assert.False(t, hasDefault)
		_, hasAlias := row["kids"]
		assert.True(t, hasAlias)
	}
}

func TestApplyWindowsPartitionsAndBoundsPerParent(t *testing.T) {
	store := buildParentChildStore()
	store.Insert("child", Row{"id": 13, "parent_id": 2, "label": "c4"})

	start, stop := 0, 1
	q := NewQuery(store, "child").Window("_row_number", querybuilder.Window{
		PartitionBy: "children",
		OrderBy:     []querybuilder.SortKey{"id"},
		Start:       &start,
		Stop:        &stop,
	})

	rows, err := q.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2, "one row per partition after bounding to [0, 1)")

	labels := map[string]bool{}
	for _, r := range rows {
		labels[r.(Row)["label"].(string)] = true
	}
	assert.True(t, labels["c1"], "lowest id in the parent_id=1 partition")
	assert.True(t, labels["c3"], "lowest id in the parent_id=2 partition")
}
