package strix

import (
	"context"
	"fmt"

	"github.com/strixdb/strix/dialect/sql"
	"github.com/strixdb/strix/schema"
)

// Query is a fluent query builder over one model. It owns a Selector plus the
// terminal operations that execute it. Deriving a new scope always clones;
// a Query is never shared by aliasing.
type Query struct {
	client   *Client
	model    *schema.Model
	sel      *sql.Selector
	useCache bool
	err      error
}

// Err returns the deferred construction error, if any (e.g. an unregistered
// model name). Terminal operations return it as-is.
func (q *Query) Err() error { return q.err }

// Clone returns a deep copy of the query.
func (q *Query) Clone() *Query {
	c := *q
	c.sel = q.sel.Clone()
	return &c
}

// C returns a column reference for the model's table, qualified whenever the
// statement has joins.
func (q *Query) C(name string) sql.Column {
	return q.sel.C(name)
}

// Where conjoins the predicate with the current predicate tree.
func (q *Query) Where(p sql.Expr) *Query {
	if q.err == nil {
		q.sel.Where(p)
	}
	return q
}

// Join appends an INNER JOIN with an explicit on-predicate. The on-predicate
// is carried as given; it is never auto-qualified.
func (q *Query) Join(table string, on sql.Expr) *Query {
	if q.err == nil {
		q.sel.Join(table, on)
	}
	return q
}

// LeftJoin appends a LEFT JOIN with an explicit on-predicate.
func (q *Query) LeftJoin(table string, on sql.Expr) *Query {
	if q.err == nil {
		q.sel.LeftJoin(table, on)
	}
	return q
}

// JoinModel appends an INNER JOIN against another registered model, deriving
// the on-predicate from the foreign-key relationship between the two tables.
// The generated equality is always table-qualified: the side belonging to
// this query's root table renders first, the joined side second, regardless
// of which model declares the association.
func (q *Query) JoinModel(name string) *Query {
	if q.err != nil {
		return q
	}
	target, err := q.client.Model(name)
	if err != nil {
		q.err = err
		return q
	}
	left, right, err := joinColumns(q.model, target)
	if err != nil {
		q.err = err
		return q
	}
	q.sel.Join(target.Table, sql.EQ(left, right))
	return q
}

// joinColumns resolves the foreign-key pair between root and target. The
// returned left column is on the root table, the right on the joined table.
func joinColumns(root, target *schema.Model) (sql.Column, sql.Column, error) {
	// Root holds the key when it belongs-to the target.
	for _, a := range root.Associations {
		if a.Kind == schema.BelongsTo && a.Target == target.Name {
			fk := root.ForeignKeyFor(a, target.Table)
			return sql.T(root.Table, fk), sql.T(target.Table, target.IDColumn()), nil
		}
	}
	// Otherwise the target holds the key pointing back at root.
	for _, a := range root.Associations {
		if (a.Kind == schema.HasMany || a.Kind == schema.HasOne) && a.Target == target.Name {
			fk := root.ForeignKeyFor(a, target.Table)
			return sql.T(root.Table, root.IDColumn()), sql.T(target.Table, fk), nil
		}
	}
	return sql.Column{}, sql.Column{}, fmt.Errorf("strix: no association between %q and %q", root.Name, target.Name)
}

// Select appends projection nodes.
func (q *Query) Select(columns ...sql.Expr) *Query {
	if q.err == nil {
		q.sel.Select(columns...)
	}
	return q
}

// GroupBy appends group-by terms.
func (q *Query) GroupBy(columns ...sql.Expr) *Query {
	if q.err == nil {
		q.sel.GroupBy(columns...)
	}
	return q
}

// Having conjoins the having predicate.
func (q *Query) Having(p sql.Expr) *Query {
	if q.err == nil {
		q.sel.Having(p)
	}
	return q
}

// OrderBy appends order-by terms.
func (q *Query) OrderBy(terms ...sql.Expr) *Query {
	if q.err == nil {
		q.sel.OrderBy(terms...)
	}
	return q
}

// Limit sets the limit. The last call wins.
func (q *Query) Limit(n int) *Query {
	if q.err == nil {
		q.sel.Limit(n)
	}
	return q
}

// Offset sets the offset. The last call wins.
func (q *Query) Offset(n int) *Query {
	if q.err == nil {
		q.sel.Offset(n)
	}
	return q
}

// Distinct marks the statement as SELECT DISTINCT.
func (q *Query) Distinct() *Query {
	if q.err == nil {
		q.sel.Distinct()
	}
	return q
}

// DistinctOn marks the statement as SELECT DISTINCT ON (columns).
func (q *Query) DistinctOn(columns ...sql.Expr) *Query {
	if q.err == nil {
		q.sel.DistinctOn(columns...)
	}
	return q
}

// Cached makes All consult and populate the client's result cache.
func (q *Query) Cached() *Query {
	q.useCache = true
	return q
}

// Selector exposes the underlying selector, e.g. for nesting the query as a
// subquery of another statement.
func (q *Query) Selector() *sql.Selector { return q.sel }

// SQL renders the statement. Rendering is deterministic and has no side
// effects on the query: calling SQL twice yields byte-identical text.
func (q *Query) SQL() (string, []any) {
	if q.err != nil {
		return "", nil
	}
	return q.sel.Query()
}

// All executes the statement and returns the matching records.
func (q *Query) All(ctx context.Context) ([]*Record, error) {
	if q.err != nil {
		return nil, q.err
	}
	query, args := q.sel.Query()
	var key string
	if q.useCache && q.client.cache != nil {
		// %#v keeps arg boundaries unambiguous: adjacent string args must
		// not concatenate into the same key.
		key = CacheKey{Table: q.model.Table, Operation: "all", SQL: query, Args: fmt.Sprintf("%#v", args)}.String()
		if data, err := q.client.cache.Get(ctx, key); err == nil && data != nil {
			fields, err := decodeRows(data)
			if err == nil {
				recs := make([]*Record, len(fields))
				for i := range fields {
					recs[i] = loadedRecord(q.model, fields[i])
				}
				return recs, nil
			}
			// A stale or undecodable entry falls through to the database.
		}
	}
	var rows sql.Rows
	if err := q.client.driver.Query(ctx, query, args, &rows); err != nil {
		return nil, err
	}
	recs, err := scanRecords(q.model, &rows)
	if err != nil {
		return nil, err
	}
	if key != "" {
		fields := make([]map[string]any, len(recs))
		for i, r := range recs {
			fields[i] = r.Fields()
		}
		if data, err := encodeRows(fields); err == nil {
			_ = q.client.cache.Set(ctx, key, data, 0)
		}
	}
	return recs, nil
}

// Each executes the statement and calls fn for every matching record.
func (q *Query) Each(ctx context.Context, fn func(*Record) error) error {
	recs, err := q.All(ctx)
	if err != nil {
		return err
	}
	for _, r := range recs {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

// First returns the first matching record. When the query has no explicit
// order, an ascending primary-key order is applied so the result is stable.
// A *NotFoundError is returned when no row matches.
func (q *Query) First(ctx context.Context) (*Record, error) {
	return q.one(ctx, false)
}

// FirstX is like First, but panics on error.
func (q *Query) FirstX(ctx context.Context) *Record {
	r, err := q.First(ctx)
	if err != nil {
		panic(err)
	}
	return r
}

// Last returns the last matching record by descending primary key (unless an
// explicit order was set). A *NotFoundError is returned when no row matches.
func (q *Query) Last(ctx context.Context) (*Record, error) {
	return q.one(ctx, true)
}

// LastX is like Last, but panics on error.
func (q *Query) LastX(ctx context.Context) *Record {
	r, err := q.Last(ctx)
	if err != nil {
		panic(err)
	}
	return r
}

func (q *Query) one(ctx context.Context, last bool) (*Record, error) {
	if q.err != nil {
		return nil, q.err
	}
	c := q.Clone()
	if !c.sel.HasOrder() {
		pk := c.C(q.model.IDColumn())
		if last {
			c.sel.OrderBy(sql.Desc(pk))
		} else {
			c.sel.OrderBy(sql.Asc(pk))
		}
	}
	c.sel.Limit(1)
	recs, err := c.All(ctx)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, NewNotFoundError(q.model.Name)
	}
	return recs[0], nil
}

// Count returns the number of matching rows. When the statement carries
// limit/offset/group-by/distinct it is wrapped as a subquery; otherwise the
// projection list is rewritten to COUNT(*) directly.
func (q *Query) Count(ctx context.Context) (int, error) {
	if q.err != nil {
		return 0, q.err
	}
	query, args := q.sel.CountQuery()
	var rows sql.Rows
	if err := q.client.driver.Query(ctx, query, args, &rows); err != nil {
		return 0, err
	}
	defer rows.Close()
	var n int
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, err
		}
	}
	return n, rows.Err()
}

// EachBatch iterates all matching records in batches of the given size,
// re-issuing the statement with LIMIT batch OFFSET n*batch per page. When the
// caller set no explicit order, an ascending primary-key order is synthesized
// so no row is skipped or visited twice across batches. Iteration is lazy:
// one blocking statement per batch.
func (q *Query) EachBatch(ctx context.Context, batch int, fn func(*Record) error) error {
	if q.err != nil {
		return q.err
	}
	if batch <= 0 {
		return fmt.Errorf("strix: invalid batch size %d", batch)
	}
	base := q.Clone()
	if !base.sel.HasOrder() {
		base.sel.OrderBy(sql.Asc(base.C(q.model.IDColumn())))
	}
	for n := 0; ; n++ {
		page := base.Clone()
		page.sel.Limit(batch).Offset(n * batch)
		recs, err := page.All(ctx)
		if err != nil {
			return err
		}
		for _, r := range recs {
			if err := fn(r); err != nil {
				return err
			}
		}
		if len(recs) < batch {
			return nil
		}
	}
}

// Page is one page of a paginated result set.
type Page struct {
	Records    []*Record
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}

// Paginate returns the given 1-based page of the result set together with
// the total row count of the unpaginated query.
func (q *Query) Paginate(ctx context.Context, page, perPage int) (*Page, error) {
	if q.err != nil {
		return nil, q.err
	}
	if page < 1 || perPage < 1 {
		return nil, fmt.Errorf("strix: invalid page %d/%d", page, perPage)
	}
	total, err := q.Count(ctx)
	if err != nil {
		return nil, err
	}
	p := q.Clone()
	p.sel.Limit(perPage).Offset((page - 1) * perPage)
	recs, err := p.All(ctx)
	if err != nil {
		return nil, err
	}
	pages := total / perPage
	if total%perPage != 0 {
		pages++
	}
	return &Page{
		Records:    recs,
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: pages,
	}, nil
}

// scanRecords drains the rows into clean persisted records.
func scanRecords(m *schema.Model, rows *sql.Rows) ([]*Record, error) {
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var recs []*Record
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		fields := make(map[string]any, len(cols))
		for i, c := range cols {
			fields[c] = vals[i]
		}
		recs = append(recs, loadedRecord(m, fields))
	}
	return recs, rows.Err()
}
