package strix

import (
	"maps"
	"reflect"
	"time"

	"github.com/strixdb/strix/schema"
)

// Record is one in-memory row of a registered model. It holds the current
// field values alongside a snapshot of the values as last confirmed
// persisted; the difference between the two is the dirty set.
//
// A Record is not safe for concurrent mutation. Field values are treated as
// immutable once set: replace a slice value, do not mutate it in place.
type Record struct {
	model     *schema.Model
	fields    map[string]any
	snapshot  map[string]any
	persisted bool

	// pending holds in-memory belongs-to objects attached before their
	// primary key exists. The persistence engine saves them first.
	pending map[string]*Record

	// loaded memoizes resolved relation results by association name.
	// Invalidated only by Reload, never by field mutation.
	loaded map[string]any
}

func newRecord(m *schema.Model, fields map[string]any) *Record {
	r := &Record{model: m, fields: map[string]any{}}
	for k, v := range fields {
		r.fields[k] = v
	}
	return r
}

// loadedRecord wraps a scanned row as a clean persisted record.
func loadedRecord(m *schema.Model, fields map[string]any) *Record {
	r := newRecord(m, fields)
	r.snapshot = maps.Clone(r.fields)
	r.persisted = true
	return r
}

// Model returns the record's model metadata.
func (r *Record) Model() *schema.Model { return r.model }

// Set assigns a field value and returns the record for chaining.
func (r *Record) Set(name string, v any) *Record {
	r.fields[name] = v
	return r
}

// Get returns a field value and whether it was set.
func (r *Record) Get(name string) (any, bool) {
	v, ok := r.fields[name]
	return v, ok
}

// ID returns the primary-key value, or nil when unset.
func (r *Record) ID() any {
	return r.fields[r.model.IDColumn()]
}

// Persisted reports whether the record has a confirmed row behind it.
func (r *Record) Persisted() bool { return r.persisted }

// Fields returns a copy of the current field values.
func (r *Record) Fields() map[string]any {
	return maps.Clone(r.fields)
}

// Dirty returns the fields whose current value differs from the persisted
// snapshot, including fields set since the last save. Comparison is by value:
// re-assigning a field to its snapshot value leaves it clean.
func (r *Record) Dirty() map[string]any {
	dirty := map[string]any{}
	for k, v := range r.fields {
		old, ok := r.snapshot[k]
		if !ok || !valuesEqual(old, v) {
			dirty[k] = v
		}
	}
	return dirty
}

// IsDirty reports whether any field differs from the snapshot.
func (r *Record) IsDirty() bool {
	return len(r.Dirty()) > 0
}

// Associate attaches an in-memory record as the given belongs-to association.
// When the owner is saved with the foreign key still unset, the attached
// record is saved first and its key copied over.
func (r *Record) Associate(name string, dep *Record) *Record {
	if r.pending == nil {
		r.pending = map[string]*Record{}
	}
	r.pending[name] = dep
	return r
}

// Associated returns the in-memory record attached under the association
// name, if any.
func (r *Record) Associated(name string) *Record {
	return r.pending[name]
}

// markSaved confirms the current values as persisted.
func (r *Record) markSaved() {
	r.snapshot = maps.Clone(r.fields)
	r.persisted = true
}

// markDeleted drops persisted-state and primary-key tracking. Field values
// other than the key are kept.
func (r *Record) markDeleted() {
	delete(r.fields, r.model.IDColumn())
	r.snapshot = nil
	r.persisted = false
}

// cachedRelation returns the memoized result of a relation load.
func (r *Record) cachedRelation(name string) (any, bool) {
	v, ok := r.loaded[name]
	return v, ok
}

// storeRelation memoizes the result of a relation load.
func (r *Record) storeRelation(name string, v any) {
	if r.loaded == nil {
		r.loaded = map[string]any{}
	}
	r.loaded[name] = v
}

// InvalidateRelations drops memoized relation results. With no names given
// all of them are dropped.
func (r *Record) InvalidateRelations(names ...string) {
	if len(names) == 0 {
		r.loaded = nil
		return
	}
	for _, n := range names {
		delete(r.loaded, n)
	}
}

// valuesEqual compares two field values. time.Time values compare with
// Equal so equivalent instants in different locations stay clean.
func valuesEqual(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}
