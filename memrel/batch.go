package memrel

import (
	"context"
	"strings"

	"github.com/samsarahq/queryopt/querybuilder"
)

// resolveSelectRelated attaches a joined row under each distinct top-level
// select_related accessor, grounded on the "group by shape, resolve once"
// strategy in the teacher's sqlgen/batch.go (makeBatchQuery): every row
// needing the same join is resolved against one pass over the related
// table's primary-key index, rather than one lookup per row. Dotted nested
// paths are a bounded simplification here (see DESIGN.md): only the first
// segment is resolved, and the attached row is the stored related row
// as-is, so segments beyond the first are not joined.
func (q *Query) resolveSelectRelated(ctx context.Context, rows []Row) error {
	seen := map[string]bool{}
	for _, path := range q.selectRelated {
		accessor := strings.SplitN(path, ".", 2)[0]
		if seen[accessor] {
			continue
		}
		seen[accessor] = true

		rel, ok := q.store.relation(q.table, accessor)
		if !ok {
			continue
		}

		pkCol := q.store.primaryKey(rel.ToTable)
		index := map[interface{}]Row{}
		for _, related := range q.store.rows(rel.ToTable) {
			index[related[pkCol]] = related
		}

		for _, row := range rows {
			row[accessor] = index[row[rel.FKColumn]]
		}
	}
	return nil
}

// resolvePrefetches executes each prefetch's own (already-optimized) child
// query once, then groups the results by the owning relation's foreign key
// — the same batching idea as sqlgen/batch.go, adapted from "one SQL IN
// query per filter shape" to "one child Fetch, then one grouping pass" for
// keyed to-many attachment.
func (q *Query) resolvePrefetches(ctx context.Context, rows []Row) error {
	for _, prefetch := range q.prefetches {
		accessor := strings.SplitN(prefetch.Accessor, ".", 2)[0]

		rel, ok := q.store.relation(q.table, accessor)
		if !ok {
			continue
		}

		childRows, err := fetchPrefetch(ctx, prefetch.Query)
		if err != nil {
			return err
		}

		byParent := map[interface{}][]interface{}{}
		for _, childRow := range childRows {
			row, ok := childRow.(Row)
			if !ok {
				continue
			}
			byParent[row[rel.FKColumn]] = append(byParent[row[rel.FKColumn]], childRow)
		}

		attr := accessor
		if prefetch.ToAttr != "" {
			attr = prefetch.ToAttr
		}
		pkCol := q.store.primaryKey(q.table)
		for _, row := range rows {
			row[attr] = byParent[row[pkCol]]
		}
	}
	return nil
}

func fetchPrefetch(ctx context.Context, qb querybuilder.QueryBuilder) ([]interface{}, error) {
	return qb.Fetch(ctx)
}
