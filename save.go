package strix

import (
	"context"
	"fmt"
	"maps"
	"sort"

	"github.com/google/uuid"
	"github.com/strixdb/strix/dialect"
	"github.com/strixdb/strix/dialect/sql"
	"github.com/strixdb/strix/schema"
)

// SaveOption configures one Save call.
type SaveOption func(*saveConfig)

type saveConfig struct {
	conflict *sql.Conflict
}

// WithConflictDoNothing attaches an ON CONFLICT (columns) DO NOTHING clause
// to the insert issued by this save.
func WithConflictDoNothing(columns ...string) SaveOption {
	return func(cfg *saveConfig) {
		c := &sql.Conflict{}
		cfg.conflict = c.Columns(columns...).DoNothing()
	}
}

// WithConflictUpdate attaches an ON CONFLICT (columns) DO UPDATE clause with
// the given assignments to the insert issued by this save.
func WithConflictUpdate(columns []string, assignments ...sql.Assignment) SaveOption {
	return func(cfg *saveConfig) {
		c := &sql.Conflict{}
		cfg.conflict = c.Columns(columns...).DoUpdate(assignments...)
	}
}

// WithConflict attaches a fully built conflict clause.
func WithConflict(c *sql.Conflict) SaveOption {
	return func(cfg *saveConfig) { cfg.conflict = c }
}

// Save persists the record. Belongs-to dependencies attached with Associate
// and still missing their foreign key are saved first, inside one
// transaction with the dependent row; a failure anywhere rolls everything
// back and leaves the record states untouched. A persisted record with an
// empty dirty set issues no SQL at all.
func (c *Client) Save(ctx context.Context, r *Record, opts ...SaveOption) error {
	cfg := &saveConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	adoptSavedDependencies(r)
	// Validation and the no-op check happen before any statement or
	// transaction is started.
	if err := validate(r); err != nil {
		return err
	}
	if r.persisted && !r.IsDirty() {
		return nil
	}
	if !needsTx(r) {
		return c.saveOne(ctx, c.driver, r, cfg.conflict)
	}
	tx, err := c.driver.Tx(ctx)
	if err != nil {
		return err
	}
	states := captureStates(r)
	if err := c.saveTree(ctx, tx, r, cfg.conflict, map[*Record]struct{}{}); err != nil {
		restoreStates(states)
		if rerr := tx.Rollback(); rerr != nil {
			return fmt.Errorf("%w: %v", err, &RollbackError{Err: rerr})
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		restoreStates(states)
		return err
	}
	return nil
}

// SaveX is like Save, but panics on error.
func (c *Client) SaveX(ctx context.Context, r *Record, opts ...SaveOption) {
	if err := c.Save(ctx, r, opts...); err != nil {
		panic(err)
	}
}

// Delete removes the record's row. Valid only for persisted records. On
// success the persisted flag and primary-key tracking are cleared; the other
// field values are kept.
func (c *Client) Delete(ctx context.Context, r *Record) error {
	if !r.persisted {
		return ErrNotPersisted
	}
	pk := r.model.IDColumn()
	query, args := sql.Delete(r.model.Table).
		Where(sql.EQ(sql.C(pk), sql.Value(r.ID()))).
		Query()
	if err := c.driver.Exec(ctx, query, args, nil); err != nil {
		return err
	}
	r.markDeleted()
	return nil
}

// DeleteX is like Delete, but panics on error.
func (c *Client) DeleteX(ctx context.Context, r *Record) {
	if err := c.Delete(ctx, r); err != nil {
		panic(err)
	}
}

// adoptSavedDependencies copies the key of any attached dependency that is
// already persisted onto the owner's foreign key. Those need no save of
// their own.
func adoptSavedDependencies(r *Record) {
	for _, a := range r.model.BelongsToAssociations() {
		dep := r.pending[a.Name]
		if dep == nil || !dep.persisted {
			continue
		}
		fk := r.model.ForeignKeyFor(a, dep.model.Table)
		if v, ok := r.Get(fk); !ok || v == nil {
			r.Set(fk, dep.ID())
		}
	}
}

// needsTx reports whether the save will issue more than one statement, i.e.
// at least one unpersisted belongs-to dependency must be saved first.
func needsTx(r *Record) bool {
	for _, a := range r.model.BelongsToAssociations() {
		dep := r.pending[a.Name]
		if dep == nil || dep.persisted {
			continue
		}
		fk := r.model.ForeignKeyFor(a, dep.model.Table)
		if v, ok := r.Get(fk); !ok || v == nil {
			return true
		}
	}
	return false
}

// recordState is the restorable dirty-tracking state of one record.
type recordState struct {
	record    *Record
	fields    map[string]any
	snapshot  map[string]any
	persisted bool
}

// captureStates snapshots the record and its pending dependency chain so a
// failed transaction leaves every record exactly as it was.
func captureStates(r *Record) []recordState {
	var states []recordState
	seen := map[*Record]struct{}{}
	var walk func(*Record)
	walk = func(rec *Record) {
		if _, ok := seen[rec]; ok {
			return
		}
		seen[rec] = struct{}{}
		states = append(states, recordState{
			record:    rec,
			fields:    rec.Fields(),
			snapshot:  maps.Clone(rec.snapshot),
			persisted: rec.persisted,
		})
		for _, dep := range rec.pending {
			walk(dep)
		}
	}
	walk(r)
	return states
}

func restoreStates(states []recordState) {
	for _, s := range states {
		s.record.fields = s.fields
		s.record.snapshot = s.snapshot
		s.record.persisted = s.persisted
	}
}

// saveTree saves the record's unpersisted belongs-to dependencies, then the
// record itself. visiting guards against association cycles: re-entering a
// record already on the path fails with ErrCyclicDependency instead of
// recursing unboundedly.
func (c *Client) saveTree(ctx context.Context, conn dialect.ExecQuerier, r *Record, conflict *sql.Conflict, visiting map[*Record]struct{}) error {
	if _, ok := visiting[r]; ok {
		return ErrCyclicDependency
	}
	visiting[r] = struct{}{}
	defer delete(visiting, r)

	adoptSavedDependencies(r)
	for _, a := range r.model.BelongsToAssociations() {
		dep := r.pending[a.Name]
		if dep == nil || dep.persisted {
			continue
		}
		fk := r.model.ForeignKeyFor(a, dep.model.Table)
		if v, ok := r.Get(fk); ok && v != nil {
			continue
		}
		if err := validate(dep); err != nil {
			return &DependencyError{Assoc: a.Name, Err: err}
		}
		// The dependency save carries no conflict clause; the clause the
		// caller supplied applies to the root record's insert only.
		if err := c.saveTree(ctx, conn, dep, nil, visiting); err != nil {
			return &DependencyError{Assoc: a.Name, Err: err}
		}
		r.Set(fk, dep.ID())
	}
	return c.saveOne(ctx, conn, r, conflict)
}

// saveOne issues the single INSERT or UPDATE for the record over the given
// connection scope.
func (c *Client) saveOne(ctx context.Context, conn dialect.ExecQuerier, r *Record, conflict *sql.Conflict) error {
	if err := validate(r); err != nil {
		return err
	}
	if !r.persisted {
		return c.insert(ctx, conn, r, conflict)
	}
	return c.update(ctx, conn, r)
}

func (c *Client) insert(ctx context.Context, conn dialect.ExecQuerier, r *Record, conflict *sql.Conflict) error {
	pk := r.model.IDColumn()
	if r.model.IDKind == schema.KeyUUID {
		if v, ok := r.Get(pk); !ok || v == nil {
			r.Set(pk, uuid.New())
		}
	}
	ins := sql.InsertInto(r.model.Table)
	for _, k := range sortedKeys(r.fields) {
		ins.Set(k, r.fields[k])
	}
	if conflict != nil {
		ins.SetConflict(conflict)
	}
	returning := r.model.IDKind == schema.KeySerial && r.ID() == nil
	if returning {
		ins.Returning(pk)
	}
	query, args := ins.Query()
	if returning {
		var rows sql.Rows
		if err := conn.Query(ctx, query, args, &rows); err != nil {
			return wrapConstraint(err, conflict)
		}
		defer rows.Close()
		var scanned bool
		if rows.Next() {
			var id any
			if err := rows.Scan(&id); err != nil {
				return err
			}
			r.Set(pk, id)
			scanned = true
		}
		if err := rows.Err(); err != nil {
			return err
		}
		// A DO NOTHING conflict skips the row entirely, so RETURNING yields
		// nothing. The record stays unpersisted with its key unset.
		if !scanned {
			return nil
		}
	} else {
		if err := conn.Exec(ctx, query, args, nil); err != nil {
			return wrapConstraint(err, conflict)
		}
	}
	r.markSaved()
	return nil
}

func (c *Client) update(ctx context.Context, conn dialect.ExecQuerier, r *Record) error {
	dirty := r.Dirty()
	if len(dirty) == 0 {
		return nil
	}
	pk := r.model.IDColumn()
	// The pinned key is the snapshot's: updating the key itself must address
	// the existing row.
	pkVal := r.snapshot[pk]
	upd := sql.Update(r.model.Table)
	for _, k := range sortedKeys(dirty) {
		upd.Set(k, dirty[k])
	}
	upd.Where(sql.EQ(sql.C(pk), sql.Value(pkVal)))
	query, args := upd.Query()
	if err := conn.Exec(ctx, query, args, nil); err != nil {
		return wrapConstraint(err, nil)
	}
	r.markSaved()
	return nil
}

// wrapConstraint converts driver constraint violations into the typed error
// when no conflict clause was in play; with a clause attached the database
// already resolved the conflict, so anything surfacing here is passed as-is.
func wrapConstraint(err error, conflict *sql.Conflict) error {
	if conflict == nil && sql.IsConstraintError(err) {
		return NewConstraintError(err.Error(), err)
	}
	return err
}

// validate runs the model's validators in order. It never issues SQL.
func validate(r *Record) error {
	for _, v := range r.model.Validators {
		if err := v(r.fields); err != nil {
			return NewValidationError(r.model.Name, err)
		}
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
