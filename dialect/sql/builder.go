package sql

import (
	"database/sql/driver"
	"reflect"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// Expr is a node in the expression tree. The variant set is closed: every
// node type lives in this package and renders itself through expr. Combinators
// never look inside their children, so any node can be the child of any other.
type Expr interface {
	expr(*Builder)
}

// Builder is the accumulator every node renders through. A fresh Builder is
// used per render, which keeps rendering idempotent: nodes never mutate, so
// rendering the same tree twice yields byte-identical SQL and args.
type Builder struct {
	sb   strings.Builder
	args []any
}

// WriteString appends raw text to the buffer.
func (b *Builder) WriteString(s string) {
	b.sb.WriteString(s)
}

// WriteByte appends a single byte to the buffer.
func (b *Builder) WriteByte(c byte) error {
	return b.sb.WriteByte(c)
}

// Ident appends a double-quoted identifier. Embedded quotes are doubled.
func (b *Builder) Ident(s string) {
	b.sb.WriteByte('"')
	b.sb.WriteString(strings.ReplaceAll(s, `"`, `""`))
	b.sb.WriteByte('"')
}

// Arg appends a $n placeholder and records the value in the arg list.
// Slices (except []byte) are bound through pq.Array.
func (b *Builder) Arg(v any) {
	b.args = append(b.args, wrapArg(v))
	b.sb.WriteByte('$')
	b.sb.WriteString(strconv.Itoa(len(b.args)))
}

// String returns the accumulated SQL text.
func (b *Builder) String() string { return b.sb.String() }

// Args returns the accumulated arg list.
func (b *Builder) Args() []any { return b.args }

func wrapArg(v any) any {
	switch v.(type) {
	case nil, []byte, driver.Valuer:
		return v
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Slice {
		return pq.Array(v)
	}
	return v
}

// nested renders x, wrapping compound logical nodes (AND/OR chains and
// negations) in parentheses so that composing any two nodes with a binary
// operator never changes precedence meaning. Plain comparisons bind tighter
// than AND/OR already and render bare.
func (b *Builder) nested(x Expr) {
	if compound(x) {
		b.WriteByte('(')
		x.expr(b)
		b.WriteByte(')')
		return
	}
	x.expr(b)
}

func compound(x Expr) bool {
	switch n := x.(type) {
	case Binary:
		return n.Op == OpAnd || n.Op == OpOr
	case Not:
		return true
	}
	return false
}

// Render renders a single expression tree to SQL text and args. Rendering is
// total for well-typed children and free of side effects on the tree.
func Render(x Expr) (string, []any) {
	b := &Builder{}
	x.expr(b)
	return b.String(), b.Args()
}

// Column is a column reference, optionally table-qualified.
type Column struct {
	Table string
	Name  string
}

func (c Column) expr(b *Builder) {
	if c.Table != "" {
		b.Ident(c.Table)
		b.WriteByte('.')
	}
	b.Ident(c.Name)
}

// C returns an unqualified column reference.
func C(name string) Column { return Column{Name: name} }

// T returns a table-qualified column reference.
func T(table, name string) Column { return Column{Table: table, Name: name} }

// Excluded references a column of the excluded pseudo-row in a DO UPDATE
// conflict action.
func Excluded(name string) Column { return Column{Table: "excluded", Name: name} }

// star is a table-qualified wildcard projection.
type star string

func (s star) expr(b *Builder) {
	b.Ident(string(s))
	b.WriteString(".*")
}

// Star returns the wildcard projection of the given table, e.g. "posts".*.
func Star(table string) Expr { return star(table) }

// Literal is a typed scalar value. It always renders as a placeholder, never
// as inline text, except for nil which renders as NULL.
type Literal struct {
	V any
}

func (l Literal) expr(b *Builder) {
	if l.V == nil {
		b.WriteString("NULL")
		return
	}
	b.Arg(l.V)
}

// Value returns a literal node for v.
func Value(v any) Literal { return Literal{V: v} }

// Raw is the verbatim escape hatch. The text is emitted exactly as given,
// with no escaping, quoting, or qualification. The caller is responsible
// for its safety.
type Raw string

func (r Raw) expr(b *Builder) {
	b.WriteString(string(r))
}

// Op is a binary operator.
type Op string

// Operators supported by Binary nodes.
const (
	OpEQ   Op = "="
	OpNEQ  Op = "<>"
	OpLT   Op = "<"
	OpLTE  Op = "<="
	OpGT   Op = ">"
	OpGTE  Op = ">="
	OpAnd  Op = "AND"
	OpOr   Op = "OR"
	OpIn   Op = "IN"
	OpLike Op = "LIKE"
	OpIs   Op = "IS"
)

// Binary combines two child nodes with an operator. Both sides are rendered
// through nested, so compound children keep their own parentheses.
type Binary struct {
	Op    Op
	Left  Expr
	Right Expr
}

func (p Binary) expr(b *Builder) {
	b.nested(p.Left)
	b.WriteByte(' ')
	b.WriteString(string(p.Op))
	b.WriteByte(' ')
	b.nested(p.Right)
}

// Not negates its child.
type Not struct {
	X Expr
}

func (n Not) expr(b *Builder) {
	b.WriteString("NOT (")
	n.X.expr(b)
	b.WriteByte(')')
}

// Func is a function call over child nodes.
type Func struct {
	Name string
	Args []Expr
}

func (f Func) expr(b *Builder) {
	b.WriteString(f.Name)
	b.WriteByte('(')
	for i, a := range f.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		a.expr(b)
	}
	b.WriteByte(')')
}

// InSelect tests membership of X in a nested select. The subquery renders
// through the same Builder, so placeholder numbering is consistent across
// any nesting depth.
type InSelect struct {
	X     Expr
	Query *Selector
}

func (in InSelect) expr(b *Builder) {
	b.nested(in.X)
	b.WriteString(" IN (")
	in.Query.appendSelect(b)
	b.WriteByte(')')
}

// tuple is a parenthesized expression list, used as the right side of IN.
type tuple []Expr

func (t tuple) expr(b *Builder) {
	b.WriteByte('(')
	for i, x := range t {
		if i > 0 {
			b.WriteString(", ")
		}
		x.expr(b)
	}
	b.WriteByte(')')
}

// orderExpr is an order-by term with an optional direction suffix.
type orderExpr struct {
	x    Expr
	desc bool
}

func (o orderExpr) expr(b *Builder) {
	o.x.expr(b)
	if o.desc {
		b.WriteString(" DESC")
	}
}

// Asc returns x as an ascending order term.
func Asc(x Expr) Expr { return orderExpr{x: x} }

// Desc returns x as a descending order term.
func Desc(x Expr) Expr { return orderExpr{x: x, desc: true} }

// alias renders x AS "name" in a projection list.
type alias struct {
	x  Expr
	as string
}

func (a alias) expr(b *Builder) {
	b.nested(a.x)
	b.WriteString(" AS ")
	b.Ident(a.as)
}

// As returns x aliased to name.
func As(x Expr, name string) Expr { return alias{x: x, as: name} }

// EQ returns an equality predicate between two nodes.
func EQ(left, right Expr) Expr { return Binary{Op: OpEQ, Left: left, Right: right} }

// NEQ returns an inequality predicate between two nodes.
func NEQ(left, right Expr) Expr { return Binary{Op: OpNEQ, Left: left, Right: right} }

// LT returns a less-than predicate.
func LT(left, right Expr) Expr { return Binary{Op: OpLT, Left: left, Right: right} }

// LTE returns a less-than-or-equal predicate.
func LTE(left, right Expr) Expr { return Binary{Op: OpLTE, Left: left, Right: right} }

// GT returns a greater-than predicate.
func GT(left, right Expr) Expr { return Binary{Op: OpGT, Left: left, Right: right} }

// GTE returns a greater-than-or-equal predicate.
func GTE(left, right Expr) Expr { return Binary{Op: OpGTE, Left: left, Right: right} }

// Like returns a LIKE predicate.
func Like(left, right Expr) Expr { return Binary{Op: OpLike, Left: left, Right: right} }

// And folds the given predicates into a conjunction.
func And(ps ...Expr) Expr { return fold(OpAnd, ps) }

// Or folds the given predicates into a disjunction.
func Or(ps ...Expr) Expr { return fold(OpOr, ps) }

func fold(op Op, ps []Expr) Expr {
	switch len(ps) {
	case 0:
		return Raw("")
	case 1:
		return ps[0]
	}
	x := ps[0]
	for _, p := range ps[1:] {
		x = Binary{Op: op, Left: x, Right: p}
	}
	return x
}

// In returns a membership predicate over a value list. An empty list renders
// as FALSE, since IN () is not valid SQL.
func In(x Expr, vs ...any) Expr {
	if len(vs) == 0 {
		return Raw("FALSE")
	}
	t := make(tuple, len(vs))
	for i := range vs {
		t[i] = Literal{V: vs[i]}
	}
	return Binary{Op: OpIn, Left: x, Right: t}
}

// NotIn returns a negated membership predicate over a value list.
func NotIn(x Expr, vs ...any) Expr {
	if len(vs) == 0 {
		return Raw("TRUE")
	}
	return Not{X: In(x, vs...)}
}

// InSubquery returns a membership predicate over a nested select.
func InSubquery(x Expr, s *Selector) Expr {
	return InSelect{X: x, Query: s}
}

// IsNull returns an IS NULL predicate.
func IsNull(x Expr) Expr { return Binary{Op: OpIs, Left: x, Right: Raw("NULL")} }

// NotNull returns an IS NOT NULL predicate.
func NotNull(x Expr) Expr { return Binary{Op: OpIs, Left: x, Right: Raw("NOT NULL")} }

// join is a single join spec of a Selector.
type join struct {
	kind  string
	table string
	on    Expr
}

// Selector accumulates the clauses of a SELECT statement and renders them in
// canonical order. Deriving a scoped statement from an existing one must go
// through Clone; a Selector is never shared by aliasing.
type Selector struct {
	table      string
	columns    []Expr
	joins      []join
	where      Expr
	groupBy    []Expr
	having     Expr
	orderBy    []Expr
	limit      *int
	offset     *int
	distinct   bool
	distinctOn []Expr
}

// From returns a Selector rooted at the given table.
func From(table string) *Selector {
	return &Selector{table: table}
}

// Table returns the root table of the selector.
func (s *Selector) Table() string { return s.table }

// C returns a column reference for the selector's root table. The reference
// is table-qualified whenever the statement has joins, so that columns shared
// between the joined tables stay unambiguous.
func (s *Selector) C(name string) Column {
	if len(s.joins) > 0 {
		return Column{Table: s.table, Name: name}
	}
	return Column{Name: name}
}

// Select appends projection nodes. The default projection, when none were
// appended, is *.
func (s *Selector) Select(columns ...Expr) *Selector {
	s.columns = append(s.columns, columns...)
	return s
}

// Where conjoins the predicate with any previously set one. The first call
// sets it directly. No deduplication is performed.
func (s *Selector) Where(p Expr) *Selector {
	if s.where == nil {
		s.where = p
	} else {
		s.where = Binary{Op: OpAnd, Left: s.where, Right: p}
	}
	return s
}

// Join appends an INNER JOIN spec. The on predicate is carried as-is and does
// not alter the where tree.
func (s *Selector) Join(table string, on Expr) *Selector {
	s.joins = append(s.joins, join{kind: "INNER JOIN", table: table, on: on})
	return s
}

// LeftJoin appends a LEFT JOIN spec.
func (s *Selector) LeftJoin(table string, on Expr) *Selector {
	s.joins = append(s.joins, join{kind: "LEFT JOIN", table: table, on: on})
	return s
}

// RightJoin appends a RIGHT JOIN spec.
func (s *Selector) RightJoin(table string, on Expr) *Selector {
	s.joins = append(s.joins, join{kind: "RIGHT JOIN", table: table, on: on})
	return s
}

// GroupBy appends group-by terms.
func (s *Selector) GroupBy(columns ...Expr) *Selector {
	s.groupBy = append(s.groupBy, columns...)
	return s
}

// Having conjoins the having predicate, like Where.
func (s *Selector) Having(p Expr) *Selector {
	if s.having == nil {
		s.having = p
	} else {
		s.having = Binary{Op: OpAnd, Left: s.having, Right: p}
	}
	return s
}

// OrderBy appends order-by terms.
func (s *Selector) OrderBy(terms ...Expr) *Selector {
	s.orderBy = append(s.orderBy, terms...)
	return s
}

// OrderReset drops any previously set order-by terms.
func (s *Selector) OrderReset() *Selector {
	s.orderBy = nil
	return s
}

// HasOrder reports whether an explicit order was set.
func (s *Selector) HasOrder() bool { return len(s.orderBy) > 0 }

// HasLimit reports whether a limit was set.
func (s *Selector) HasLimit() bool { return s.limit != nil }

// NeedsWrapping reports whether the selector cannot have its projection list
// rewritten in place (e.g. for COUNT) without changing meaning.
func (s *Selector) NeedsWrapping() bool {
	return s.limit != nil || s.offset != nil || len(s.groupBy) > 0 || s.distinct || len(s.distinctOn) > 0
}

// Limit sets the limit. The last call wins.
func (s *Selector) Limit(n int) *Selector {
	s.limit = &n
	return s
}

// Offset sets the offset. The last call wins.
func (s *Selector) Offset(n int) *Selector {
	s.offset = &n
	return s
}

// Distinct marks the statement as SELECT DISTINCT.
func (s *Selector) Distinct() *Selector {
	s.distinct = true
	return s
}

// DistinctOn marks the statement as SELECT DISTINCT ON (columns).
func (s *Selector) DistinctOn(columns ...Expr) *Selector {
	s.distinctOn = append(s.distinctOn, columns...)
	return s
}

// Clone returns a deep copy of the selector. Nodes are immutable values, so
// the clause trees are shared structurally; the clause lists are copied.
func (s *Selector) Clone() *Selector {
	if s == nil {
		return nil
	}
	c := *s
	c.columns = append([]Expr(nil), s.columns...)
	c.joins = append([]join(nil), s.joins...)
	c.groupBy = append([]Expr(nil), s.groupBy...)
	c.orderBy = append([]Expr(nil), s.orderBy...)
	c.distinctOn = append([]Expr(nil), s.distinctOn...)
	if s.limit != nil {
		n := *s.limit
		c.limit = &n
	}
	if s.offset != nil {
		n := *s.offset
		c.offset = &n
	}
	return &c
}

// Query renders the statement and returns the SQL text with its args.
func (s *Selector) Query() (string, []any) {
	b := &Builder{}
	s.appendSelect(b)
	return b.String(), b.Args()
}

// appendSelect renders the statement into an existing builder. Nested selects
// go through here so the arg numbering of the outer statement carries over.
func (s *Selector) appendSelect(b *Builder) {
	b.WriteString("SELECT ")
	switch {
	case len(s.distinctOn) > 0:
		b.WriteString("DISTINCT ON (")
		for i, c := range s.distinctOn {
			if i > 0 {
				b.WriteString(", ")
			}
			c.expr(b)
		}
		b.WriteString(") ")
	case s.distinct:
		b.WriteString("DISTINCT ")
	}
	if len(s.columns) == 0 {
		b.WriteByte('*')
	} else {
		for i, c := range s.columns {
			if i > 0 {
				b.WriteString(", ")
			}
			c.expr(b)
		}
	}
	b.WriteString(" FROM ")
	b.Ident(s.table)
	for _, j := range s.joins {
		b.WriteByte(' ')
		b.WriteString(j.kind)
		b.WriteByte(' ')
		b.Ident(j.table)
		if j.on != nil {
			b.WriteString(" ON ")
			j.on.expr(b)
		}
	}
	if s.where != nil {
		b.WriteString(" WHERE ")
		s.where.expr(b)
	}
	if len(s.groupBy) > 0 {
		b.WriteString(" GROUP BY ")
		for i, c := range s.groupBy {
			if i > 0 {
				b.WriteString(", ")
			}
			c.expr(b)
		}
	}
	if s.having != nil {
		b.WriteString(" HAVING ")
		s.having.expr(b)
	}
	if len(s.orderBy) > 0 {
		b.WriteString(" ORDER BY ")
		for i, c := range s.orderBy {
			if i > 0 {
				b.WriteString(", ")
			}
			c.expr(b)
		}
	}
	if s.limit != nil {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(*s.limit))
	}
	if s.offset != nil {
		b.WriteString(" OFFSET ")
		b.WriteString(strconv.Itoa(*s.offset))
	}
}

// CountQuery renders a row-count statement for the selector. When the
// statement carries limit/offset/group-by/distinct, the whole select is
// wrapped as a subquery so the count respects them; otherwise the projection
// list is rewritten to COUNT(*) directly.
func (s *Selector) CountQuery() (string, []any) {
	b := &Builder{}
	if s.NeedsWrapping() {
		b.WriteString("SELECT COUNT(*) FROM (")
		s.appendSelect(b)
		b.WriteString(") AS ")
		b.Ident("count_alias")
		return b.String(), b.Args()
	}
	c := s.Clone()
	c.columns = []Expr{Raw("COUNT(*)")}
	c.orderBy = nil
	c.appendSelect(b)
	return b.String(), b.Args()
}

// Assignment is a column assignment used by DO UPDATE and UPDATE SET lists.
type Assignment struct {
	Column string
	Value  Expr
}

// Set returns an assignment of column to the literal v.
func Set(column string, v any) Assignment {
	return Assignment{Column: column, Value: Literal{V: v}}
}

// SetExpr returns an assignment of column to an arbitrary expression node,
// e.g. SetExpr("name", Excluded("name")).
func SetExpr(column string, x Expr) Assignment {
	return Assignment{Column: column, Value: x}
}

// Conflict is the ON CONFLICT clause of an insert statement.
type Conflict struct {
	columns []string
	nothing bool
	updates []Assignment
	where   Expr
}

// Columns sets the conflict target column list.
func (c *Conflict) Columns(columns ...string) *Conflict {
	c.columns = append(c.columns, columns...)
	return c
}

// DoNothing resolves the conflict by skipping the row.
func (c *Conflict) DoNothing() *Conflict {
	c.nothing = true
	c.updates = nil
	return c
}

// DoUpdate resolves the conflict by applying the given assignments. Postgres
// requires a conflict target for DO UPDATE, so Columns must be set before the
// clause renders.
func (c *Conflict) DoUpdate(assignments ...Assignment) *Conflict {
	c.nothing = false
	c.updates = append(c.updates, assignments...)
	return c
}

// Where restricts the DO UPDATE action with a predicate.
func (c *Conflict) Where(p Expr) *Conflict {
	if c.where == nil {
		c.where = p
	} else {
		c.where = Binary{Op: OpAnd, Left: c.where, Right: p}
	}
	return c
}

func (c *Conflict) append(b *Builder) {
	b.WriteString(" ON CONFLICT")
	if len(c.columns) > 0 {
		b.WriteString(" (")
		for i, col := range c.columns {
			if i > 0 {
				b.WriteString(", ")
			}
			b.Ident(col)
		}
		b.WriteByte(')')
	}
	if c.nothing || len(c.updates) == 0 {
		b.WriteString(" DO NOTHING")
		return
	}
	if len(c.columns) == 0 {
		panic("sql: ON CONFLICT DO UPDATE requires a conflict target; call Columns first")
	}
	b.WriteString(" DO UPDATE SET ")
	for i, a := range c.updates {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Ident(a.Column)
		b.WriteString(" = ")
		a.Value.expr(b)
	}
	if c.where != nil {
		b.WriteString(" WHERE ")
		c.where.expr(b)
	}
}

// Inserter builds an INSERT statement. Column order follows insertion order
// of Set calls, so rendering is deterministic.
type Inserter struct {
	table     string
	columns   []string
	values    []any
	returning []string
	conflict  *Conflict
}

// InsertInto returns an Inserter for the given table.
func InsertInto(table string) *Inserter {
	return &Inserter{table: table}
}

// Set appends a column/value pair.
func (i *Inserter) Set(column string, v any) *Inserter {
	i.columns = append(i.columns, column)
	i.values = append(i.values, v)
	return i
}

// Returning sets the RETURNING column list.
func (i *Inserter) Returning(columns ...string) *Inserter {
	i.returning = columns
	return i
}

// OnConflict attaches a conflict clause targeting the given columns and
// returns it for configuring the action.
func (i *Inserter) OnConflict(columns ...string) *Conflict {
	i.conflict = &Conflict{columns: columns}
	return i.conflict
}

// SetConflict attaches a previously built conflict clause.
func (i *Inserter) SetConflict(c *Conflict) *Inserter {
	i.conflict = c
	return i
}

// Query renders the statement and returns the SQL text with its args.
func (i *Inserter) Query() (string, []any) {
	b := &Builder{}
	b.WriteString("INSERT INTO ")
	b.Ident(i.table)
	if len(i.columns) == 0 {
		b.WriteString(" DEFAULT VALUES")
	} else {
		b.WriteString(" (")
		for j, c := range i.columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.Ident(c)
		}
		b.WriteString(") VALUES (")
		for j, v := range i.values {
			if j > 0 {
				b.WriteString(", ")
			}
			Literal{V: v}.expr(b)
		}
		b.WriteByte(')')
	}
	if i.conflict != nil {
		i.conflict.append(b)
	}
	if len(i.returning) > 0 {
		b.WriteString(" RETURNING ")
		for j, c := range i.returning {
			if j > 0 {
				b.WriteString(", ")
			}
			b.Ident(c)
		}
	}
	return b.String(), b.Args()
}

// Updater builds an UPDATE statement restricted to the assigned columns.
type Updater struct {
	table   string
	assigns []Assignment
	where   Expr
}

// Update returns an Updater for the given table.
func Update(table string) *Updater {
	return &Updater{table: table}
}

// Set appends a column assignment.
func (u *Updater) Set(column string, v any) *Updater {
	u.assigns = append(u.assigns, Set(column, v))
	return u
}

// SetExpr appends a column assignment to an expression node.
func (u *Updater) SetExpr(column string, x Expr) *Updater {
	u.assigns = append(u.assigns, SetExpr(column, x))
	return u
}

// Where conjoins the update predicate.
func (u *Updater) Where(p Expr) *Updater {
	if u.where == nil {
		u.where = p
	} else {
		u.where = Binary{Op: OpAnd, Left: u.where, Right: p}
	}
	return u
}

// Empty reports whether no assignment was added.
func (u *Updater) Empty() bool { return len(u.assigns) == 0 }

// Query renders the statement and returns the SQL text with its args.
func (u *Updater) Query() (string, []any) {
	b := &Builder{}
	b.WriteString("UPDATE ")
	b.Ident(u.table)
	b.WriteString(" SET ")
	for i, a := range u.assigns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Ident(a.Column)
		b.WriteString(" = ")
		a.Value.expr(b)
	}
	if u.where != nil {
		b.WriteString(" WHERE ")
		u.where.expr(b)
	}
	return b.String(), b.Args()
}

// Deleter builds a DELETE statement.
type Deleter struct {
	table string
	where Expr
}

// Delete returns a Deleter for the given table.
func Delete(table string) *Deleter {
	return &Deleter{table: table}
}

// Where conjoins the delete predicate.
func (d *Deleter) Where(p Expr) *Deleter {
	if d.where == nil {
		d.where = p
	} else {
		d.where = Binary{Op: OpAnd, Left: d.where, Right: p}
	}
	return d
}

// Query renders the statement and returns the SQL text with its args.
func (d *Deleter) Query() (string, []any) {
	b := &Builder{}
	b.WriteString("DELETE FROM ")
	b.Ident(d.table)
	if d.where != nil {
		b.WriteString(" WHERE ")
		d.where.expr(b)
	}
	return b.String(), b.Args()
}
