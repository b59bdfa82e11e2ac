package strix

import (
	"context"
	"fmt"

	"github.com/strixdb/strix/dialect/sql"
	"github.com/strixdb/strix/schema"
)

// Relation is a declared association resolved against one owning record.
// Its Query derives a fresh, independently composable builder scoped by the
// appropriate foreign-key equality; the owner's builder is never aliased.
type Relation struct {
	client *Client
	owner  *Record
	assoc  schema.Association
	target *schema.Model
}

// Relation resolves the named association of the record against the registry.
func (c *Client) Relation(r *Record, name string) (*Relation, error) {
	assoc, ok := r.model.Association(name)
	if !ok {
		return nil, fmt.Errorf("strix: model %q has no association %q", r.model.Name, name)
	}
	target, err := c.Model(assoc.Target)
	if err != nil {
		return nil, err
	}
	return &Relation{client: c, owner: r, assoc: assoc, target: target}, nil
}

// Query returns the scoped query builder for the association. For a
// belongs-to with an unset foreign key the returned query is nil: there is
// nothing to load and no statement should be issued.
func (rel *Relation) Query() (*Query, error) {
	q := rel.client.Query(rel.target.Name)
	if q.err != nil {
		return nil, q.err
	}
	switch rel.assoc.Kind {
	case schema.BelongsTo:
		fk := rel.owner.model.ForeignKeyFor(rel.assoc, rel.target.Table)
		v, ok := rel.owner.Get(fk)
		if !ok || v == nil {
			return nil, nil
		}
		return q.Where(sql.EQ(q.C(rel.target.IDColumn()), sql.Value(v))), nil
	case schema.HasOne, schema.HasMany:
		fk := rel.owner.model.ForeignKeyFor(rel.assoc, rel.target.Table)
		return q.Where(sql.EQ(q.C(fk), sql.Value(rel.owner.ID()))), nil
	case schema.HasManyThrough:
		return rel.throughQuery(q), nil
	}
	return nil, fmt.Errorf("strix: unknown association kind %v", rel.assoc.Kind)
}

// throughQuery builds the join-through statement:
//
//	SELECT DISTINCT ON (target.pk) target.* FROM target
//	INNER JOIN through ON through.fk = target.pk
//	WHERE through.own_key = owner.pk
//
// DISTINCT ON deduplicates targets reachable via multiple through-rows.
func (rel *Relation) throughQuery(q *Query) *Query {
	var (
		target = rel.target
		pk     = sql.T(target.Table, target.IDColumn())
		fk     = rel.assoc.ForeignKey
		own    = rel.assoc.OwnKey
	)
	if fk == "" {
		fk = schema.ForeignKeyColumn(target.Table)
	}
	if own == "" {
		own = schema.ForeignKeyColumn(rel.owner.model.Table)
	}
	return q.
		DistinctOn(pk).
		Select(sql.Star(target.Table)).
		Join(rel.assoc.Through, sql.EQ(sql.T(rel.assoc.Through, fk), pk)).
		Where(sql.EQ(sql.T(rel.assoc.Through, own), sql.Value(rel.owner.ID())))
}

// One loads the single associated record of a belongs-to or has-one. For a
// belongs-to with an unset foreign key it returns (nil, nil) without issuing
// a query. The result is memoized on the owner by association name.
func (rel *Relation) One(ctx context.Context) (*Record, error) {
	if v, ok := rel.owner.cachedRelation(rel.assoc.Name); ok {
		r, _ := v.(*Record)
		return r, nil
	}
	q, err := rel.Query()
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, nil
	}
	r, err := q.First(ctx)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	rel.owner.storeRelation(rel.assoc.Name, r)
	return r, nil
}

// All loads the associated record set of a has-many or join-through. The
// result is memoized on the owner by association name; only Reload
// invalidates it.
func (rel *Relation) All(ctx context.Context) ([]*Record, error) {
	if v, ok := rel.owner.cachedRelation(rel.assoc.Name); ok {
		rs, _ := v.([]*Record)
		return rs, nil
	}
	q, err := rel.Query()
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, nil
	}
	rs, err := q.All(ctx)
	if err != nil {
		return nil, err
	}
	rel.owner.storeRelation(rel.assoc.Name, rs)
	return rs, nil
}

// Reload drops the memoized result and loads the record set again.
func (rel *Relation) Reload(ctx context.Context) ([]*Record, error) {
	rel.owner.InvalidateRelations(rel.assoc.Name)
	return rel.All(ctx)
}

// Build constructs a new unsaved target record with the foreign key
// pre-populated from the owner's primary key. No query is issued. Valid for
// has-many and has-one associations only.
func (rel *Relation) Build(fields map[string]any) (*Record, error) {
	if rel.assoc.Kind != schema.HasMany && rel.assoc.Kind != schema.HasOne {
		return nil, fmt.Errorf("strix: cannot build through %s association %q", rel.assoc.Kind, rel.assoc.Name)
	}
	fk := rel.owner.model.ForeignKeyFor(rel.assoc, rel.target.Table)
	r := newRecord(rel.target, fields)
	r.Set(fk, rel.owner.ID())
	return r, nil
}
