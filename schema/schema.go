// Package schema holds the static model metadata the runtime consults:
// table names, primary-key columns, declared associations, and validators.
// Metadata is read at model-registration time only; nothing here issues SQL.
package schema

import (
	"fmt"

	"github.com/go-openapi/inflect"
)

// Kind is the association kind of a declared relation.
type Kind int

// Association kinds. The set is terminal and non-overlapping.
const (
	BelongsTo Kind = iota
	HasOne
	HasMany
	HasManyThrough
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case BelongsTo:
		return "belongs_to"
	case HasOne:
		return "has_one"
	case HasMany:
		return "has_many"
	case HasManyThrough:
		return "has_many_through"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// KeyKind describes how a model's primary key is produced.
type KeyKind int

const (
	// KeySerial keys are generated by the database and read back via RETURNING.
	KeySerial KeyKind = iota
	// KeyUUID keys are generated client-side when unset at insert time.
	KeyUUID
)

// Association declares a relation from an owning model to a target model.
type Association struct {
	// Name is the accessor name of the association (e.g. "posts").
	Name string
	// Kind tags the association variant.
	Kind Kind
	// Target is the registered name of the target model.
	Target string
	// ForeignKey is the foreign-key column. When empty it defaults to the
	// convention: singularized owner (or target, for belongs-to) table + "_id".
	ForeignKey string
	// Through is the intermediate table of a has-many-through association.
	Through string
	// OwnKey is the through-table column pointing back at the owner.
	OwnKey string
}

// Validator is a caller-defined invariant over a record's field values.
// It runs before any SQL is issued; a non-nil error aborts the save.
type Validator func(fields map[string]any) error

// Model is the static metadata of one record type.
type Model struct {
	// Name identifies the model in the registry (e.g. "User").
	Name string
	// Table is the relational table name (e.g. "users").
	Table string
	// ID is the primary-key column. Defaults to "id".
	ID string
	// IDKind selects serial or client-generated UUID keys.
	IDKind KeyKind
	// Associations are the declared relations of the model.
	Associations []Association
	// Validators run before every save, in order.
	Validators []Validator
}

// IDColumn returns the primary-key column, applying the default.
func (m *Model) IDColumn() string {
	if m.ID == "" {
		return "id"
	}
	return m.ID
}

// Association returns the declared association with the given name.
func (m *Model) Association(name string) (Association, bool) {
	for _, a := range m.Associations {
		if a.Name == name {
			return a, true
		}
	}
	return Association{}, false
}

// BelongsToAssociations returns the declared belongs-to associations, in
// declaration order. The persistence engine saves these dependencies first.
func (m *Model) BelongsToAssociations() []Association {
	var out []Association
	for _, a := range m.Associations {
		if a.Kind == BelongsTo {
			out = append(out, a)
		}
	}
	return out
}

// ForeignKeyFor returns the foreign-key column of the association, applying
// the naming convention when none was declared. For belongs-to the key names
// the target table; for the has-* kinds it names the owner table.
func (m *Model) ForeignKeyFor(a Association, targetTable string) string {
	if a.ForeignKey != "" {
		return a.ForeignKey
	}
	if a.Kind == BelongsTo {
		return ForeignKeyColumn(targetTable)
	}
	return ForeignKeyColumn(m.Table)
}

// ForeignKeyColumn derives the conventional foreign-key column name from a
// table name: the singularized table plus "_id".
func ForeignKeyColumn(table string) string {
	return inflect.Singularize(table) + "_id"
}

// Tableize derives a conventional table name from a model name, e.g.
// "BlogPost" becomes "blog_posts".
func Tableize(name string) string {
	return inflect.Tableize(name)
}
