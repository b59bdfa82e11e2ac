package sql

import "time"

// StringField is a generic string field that provides type-safe predicate
// constructors over the expression algebra. Generated model packages declare
// one value per column:
//
//	var Email = sql.StringField("email")
//	q.Where(user.Email.EQ("test@example.com"))
type StringField string

// Name returns the field name.
func (f StringField) Name() string { return string(f) }

// EQ returns a predicate that checks if the field equals the given value.
func (f StringField) EQ(v string) Expr { return EQ(C(string(f)), Value(v)) }

// NEQ returns a predicate that checks if the field does not equal the given value.
func (f StringField) NEQ(v string) Expr { return NEQ(C(string(f)), Value(v)) }

// In returns a predicate that checks if the field value is in the given list.
func (f StringField) In(vs ...string) Expr { return In(C(string(f)), anys(vs)...) }

// GT returns a predicate that checks if the field is greater than the given value.
func (f StringField) GT(v string) Expr { return GT(C(string(f)), Value(v)) }

// LT returns a predicate that checks if the field is less than the given value.
func (f StringField) LT(v string) Expr { return LT(C(string(f)), Value(v)) }

// Like returns a predicate that matches the field against the given pattern.
func (f StringField) Like(pattern string) Expr { return Like(C(string(f)), Value(pattern)) }

// IsNull returns a predicate that checks if the field is NULL.
func (f StringField) IsNull() Expr { return IsNull(C(string(f))) }

// NotNull returns a predicate that checks if the field is not NULL.
func (f StringField) NotNull() Expr { return NotNull(C(string(f))) }

// IntField is a generic integer field that provides type-safe predicate constructors.
type IntField string

// Name returns the field name.
func (f IntField) Name() string { return string(f) }

// EQ returns a predicate that checks if the field equals the given value.
func (f IntField) EQ(v int64) Expr { return EQ(C(string(f)), Value(v)) }

// NEQ returns a predicate that checks if the field does not equal the given value.
func (f IntField) NEQ(v int64) Expr { return NEQ(C(string(f)), Value(v)) }

// In returns a predicate that checks if the field value is in the given list.
func (f IntField) In(vs ...int64) Expr { return In(C(string(f)), anys(vs)...) }

// GT returns a predicate that checks if the field is greater than the given value.
func (f IntField) GT(v int64) Expr { return GT(C(string(f)), Value(v)) }

// GTE returns a predicate that checks if the field is greater than or equal to the given value.
func (f IntField) GTE(v int64) Expr { return GTE(C(string(f)), Value(v)) }

// LT returns a predicate that checks if the field is less than the given value.
func (f IntField) LT(v int64) Expr { return LT(C(string(f)), Value(v)) }

// LTE returns a predicate that checks if the field is less than or equal to the given value.
func (f IntField) LTE(v int64) Expr { return LTE(C(string(f)), Value(v)) }

// IsNull returns a predicate that checks if the field is NULL.
func (f IntField) IsNull() Expr { return IsNull(C(string(f))) }

// NotNull returns a predicate that checks if the field is not NULL.
func (f IntField) NotNull() Expr { return NotNull(C(string(f))) }

// BoolField is a generic boolean field that provides type-safe predicate constructors.
type BoolField string

// Name returns the field name.
func (f BoolField) Name() string { return string(f) }

// EQ returns a predicate that checks if the field equals the given value.
func (f BoolField) EQ(v bool) Expr { return EQ(C(string(f)), Value(v)) }

// NEQ returns a predicate that checks if the field does not equal the given value.
func (f BoolField) NEQ(v bool) Expr { return NEQ(C(string(f)), Value(v)) }

// TimeField is a generic timestamp field that provides type-safe predicate constructors.
type TimeField string

// Name returns the field name.
func (f TimeField) Name() string { return string(f) }

// EQ returns a predicate that checks if the field equals the given value.
func (f TimeField) EQ(v time.Time) Expr { return EQ(C(string(f)), Value(v)) }

// NEQ returns a predicate that checks if the field does not equal the given value.
func (f TimeField) NEQ(v time.Time) Expr { return NEQ(C(string(f)), Value(v)) }

// GT returns a predicate that checks if the field is after the given value.
func (f TimeField) GT(v time.Time) Expr { return GT(C(string(f)), Value(v)) }

// GTE returns a predicate that checks if the field is at or after the given value.
func (f TimeField) GTE(v time.Time) Expr { return GTE(C(string(f)), Value(v)) }

// LT returns a predicate that checks if the field is before the given value.
func (f TimeField) LT(v time.Time) Expr { return LT(C(string(f)), Value(v)) }

// LTE returns a predicate that checks if the field is at or before the given value.
func (f TimeField) LTE(v time.Time) Expr { return LTE(C(string(f)), Value(v)) }

// IsNull returns a predicate that checks if the field is NULL.
func (f TimeField) IsNull() Expr { return IsNull(C(string(f))) }

// NotNull returns a predicate that checks if the field is not NULL.
func (f TimeField) NotNull() Expr { return NotNull(C(string(f))) }

// UUIDField is a generic UUID field that provides type-safe predicate
// constructors. T is the UUID type (e.g. uuid.UUID).
type UUIDField[T any] string

// Name returns the field name.
func (f UUIDField[T]) Name() string { return string(f) }

// EQ returns a predicate that checks if the field equals the given value.
func (f UUIDField[T]) EQ(v T) Expr { return EQ(C(string(f)), Value(v)) }

// NEQ returns a predicate that checks if the field does not equal the given value.
func (f UUIDField[T]) NEQ(v T) Expr { return NEQ(C(string(f)), Value(v)) }

// In returns a predicate that checks if the field value is in the given list.
func (f UUIDField[T]) In(vs ...T) Expr { return In(C(string(f)), anys(vs)...) }

// IsNull returns a predicate that checks if the field is NULL.
func (f UUIDField[T]) IsNull() Expr { return IsNull(C(string(f))) }

// NotNull returns a predicate that checks if the field is not NULL.
func (f UUIDField[T]) NotNull() Expr { return NotNull(C(string(f))) }

func anys[T any](vs []T) []any {
	out := make([]any, len(vs))
	for i := range vs {
		out[i] = vs[i]
	}
	return out
}
