package strix_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strixdb/strix"
	"github.com/strixdb/strix/dialect"
	sql "github.com/strixdb/strix/dialect/sql"
	"github.com/strixdb/strix/schema"
)

// saveClient wires a sqlmock connection through a StatsDriver so tests can
// assert exact statement counts, zero included.
func saveClient(t *testing.T, models ...*schema.Model) (*strix.Client, sqlmock.Sqlmock, *sql.StatsDriver) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	drv := sql.NewStatsDriver(sql.OpenDB(dialect.Postgres, db))
	c := strix.NewClient(strix.Driver(drv))
	if len(models) == 0 {
		models = []*schema.Model{userModel()}
	}
	c.MustRegister(models...)
	return c, mock, drv
}

func TestSaveInsert(t *testing.T) {
	ctx := context.Background()

	t.Run("SerialKey", func(t *testing.T) {
		c, mock, _ := saveClient(t)
		// Columns render in sorted order, so the statement is deterministic.
		mock.ExpectQuery(`INSERT INTO "users" ("age", "name") VALUES ($1, $2) RETURNING "id"`).
			WithArgs(30, "a8m").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))

		r, err := c.New("User", map[string]any{"name": "a8m", "age": 30})
		require.NoError(t, err)
		require.NoError(t, c.Save(ctx, r))
		require.NoError(t, mock.ExpectationsWereMet())

		assert.True(t, r.Persisted())
		assert.Equal(t, int64(5), r.ID())
		assert.False(t, r.IsDirty())
	})

	t.Run("UUIDKey", func(t *testing.T) {
		c, mock, _ := saveClient(t, &schema.Model{
			Name:   "Session",
			Table:  "sessions",
			IDKind: schema.KeyUUID,
		})
		// The key is generated client-side; no RETURNING round trip.
		mock.ExpectExec(`INSERT INTO "sessions" ("id", "token") VALUES ($1, $2)`).
			WithArgs(sqlmock.AnyArg(), "tok").
			WillReturnResult(sqlmock.NewResult(0, 1))

		r, err := c.New("Session", map[string]any{"token": "tok"})
		require.NoError(t, err)
		require.NoError(t, c.Save(ctx, r))
		require.NoError(t, mock.ExpectationsWereMet())

		assert.True(t, r.Persisted())
		assert.NotNil(t, r.ID())
	})

	t.Run("ConstraintViolation", func(t *testing.T) {
		c, mock, _ := saveClient(t)
		mock.ExpectQuery(`INSERT INTO "users" ("email") VALUES ($1) RETURNING "id"`).
			WithArgs("a8m@example.com").
			WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})

		r, err := c.New("User", map[string]any{"email": "a8m@example.com"})
		require.NoError(t, err)
		err = c.Save(ctx, r)
		require.Error(t, err)
		assert.True(t, strix.IsConstraintError(err))
		assert.False(t, r.Persisted())
	})
}

func TestSaveUpsert(t *testing.T) {
	ctx := context.Background()

	t.Run("DoNothing", func(t *testing.T) {
		c, mock, _ := saveClient(t)
		mock.ExpectQuery(`INSERT INTO "users" ("email") VALUES ($1) ON CONFLICT ("email") DO NOTHING RETURNING "id"`).
			WithArgs("a8m@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

		r, err := c.New("User", map[string]any{"email": "a8m@example.com"})
		require.NoError(t, err)
		require.NoError(t, c.Save(ctx, r, strix.WithConflictDoNothing("email")))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DoNothingConflictHit", func(t *testing.T) {
		c, mock, _ := saveClient(t)
		// A conflicting row skips the insert: RETURNING yields no rows and
		// the record stays unpersisted.
		mock.ExpectQuery(`INSERT INTO "users" ("email") VALUES ($1) ON CONFLICT ("email") DO NOTHING RETURNING "id"`).
			WithArgs("a8m@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		r, err := c.New("User", map[string]any{"email": "a8m@example.com"})
		require.NoError(t, err)
		require.NoError(t, c.Save(ctx, r, strix.WithConflictDoNothing("email")))
		require.NoError(t, mock.ExpectationsWereMet())
		assert.False(t, r.Persisted())
		assert.Nil(t, r.ID())
	})

	t.Run("DoUpdate", func(t *testing.T) {
		c, mock, _ := saveClient(t)
		mock.ExpectQuery(`INSERT INTO "users" ("email", "name") VALUES ($1, $2) ON CONFLICT ("email") DO UPDATE SET "name" = "excluded"."name" RETURNING "id"`).
			WithArgs("a8m@example.com", "a8m").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))

		r, err := c.New("User", map[string]any{"email": "a8m@example.com", "name": "a8m"})
		require.NoError(t, err)
		err = c.Save(ctx, r, strix.WithConflictUpdate(
			[]string{"email"},
			sql.SetExpr("name", sql.Excluded("name")),
		))
		require.NoError(t, err)
		assert.Equal(t, int64(3), r.ID())
	})
}

func TestSaveUpdate(t *testing.T) {
	ctx := context.Background()

	// load fetches one clean persisted record through the query path.
	load := func(t *testing.T, c *strix.Client, mock sqlmock.Sqlmock) *strix.Record {
		t.Helper()
		mock.ExpectQuery(`SELECT * FROM "users" ORDER BY "id" LIMIT 1`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "age"}).
				AddRow(int64(1), "a8m", 30))
		r, err := c.Query("User").First(ctx)
		require.NoError(t, err)
		return r
	}

	t.Run("DirtyColumnsOnly", func(t *testing.T) {
		c, mock, _ := saveClient(t)
		r := load(t, c, mock)

		r.Set("name", "nati")
		mock.ExpectExec(`UPDATE "users" SET "name" = $1 WHERE "id" = $2`).
			WithArgs("nati", int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, c.Save(ctx, r))
		require.NoError(t, mock.ExpectationsWereMet())
		assert.False(t, r.IsDirty())
	})

	t.Run("KeyChangeAddressesOldRow", func(t *testing.T) {
		c, mock, _ := saveClient(t)
		r := load(t, c, mock)

		// Updating the key itself pins the WHERE clause to the loaded value.
		r.Set("id", int64(2))
		mock.ExpectExec(`UPDATE "users" SET "id" = $1 WHERE "id" = $2`).
			WithArgs(int64(2), int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, c.Save(ctx, r))
		require.NoError(t, mock.ExpectationsWereMet())
		assert.Equal(t, int64(2), r.ID())
	})

	t.Run("CleanRecordIssuesNothing", func(t *testing.T) {
		c, mock, drv := saveClient(t)
		r := load(t, c, mock)
		before := drv.QueryStats().Stats().Statements()

		require.NoError(t, c.Save(ctx, r))

		// Zero statements: the counter did not move and no expectation was
		// pending.
		assert.Equal(t, before, drv.QueryStats().Stats().Statements())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RevertedChangeIssuesNothing", func(t *testing.T) {
		c, mock, drv := saveClient(t)
		r := load(t, c, mock)
		before := drv.QueryStats().Stats().Statements()

		r.Set("name", "changed")
		r.Set("name", "a8m")
		require.NoError(t, c.Save(ctx, r))
		assert.Equal(t, before, drv.QueryStats().Stats().Statements())
	})
}

func TestSaveValidation(t *testing.T) {
	ctx := context.Background()
	c, mock, drv := saveClient(t, &schema.Model{
		Name:  "User",
		Table: "users",
		Validators: []schema.Validator{
			func(fields map[string]any) error {
				if fields["name"] == nil || fields["name"] == "" {
					return errors.New("name is required")
				}
				return nil
			},
		},
	})

	r, err := c.New("User", map[string]any{"email": "x@example.com"})
	require.NoError(t, err)
	err = c.Save(ctx, r)
	require.Error(t, err)
	assert.True(t, strix.IsValidationError(err))
	assert.False(t, r.Persisted())

	// The validator ran before any SQL.
	assert.Equal(t, int64(0), drv.QueryStats().Stats().Statements())
	require.NoError(t, mock.ExpectationsWereMet())
}

func saveGraphModels() []*schema.Model {
	return []*schema.Model{
		{
			Name:  "User",
			Table: "users",
		},
		{
			Name:  "Post",
			Table: "posts",
			Associations: []schema.Association{
				{Name: "author", Kind: schema.BelongsTo, Target: "User"},
			},
		},
	}
}

func TestSaveDependencies(t *testing.T) {
	ctx := context.Background()

	t.Run("SavesDependencyFirstInOneTx", func(t *testing.T) {
		c, mock, _ := saveClient(t, saveGraphModels()...)

		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO "users" ("name") VALUES ($1) RETURNING "id"`).
			WithArgs("a8m").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))
		mock.ExpectQuery(`INSERT INTO "posts" ("title", "user_id") VALUES ($1, $2) RETURNING "id"`).
			WithArgs("hello", int64(9)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
		mock.ExpectCommit()

		author, err := c.New("User", map[string]any{"name": "a8m"})
		require.NoError(t, err)
		post, err := c.New("Post", map[string]any{"title": "hello"})
		require.NoError(t, err)
		post.Associate("author", author)

		require.NoError(t, c.Save(ctx, post))
		require.NoError(t, mock.ExpectationsWereMet())

		assert.True(t, author.Persisted())
		assert.True(t, post.Persisted())
		fk, _ := post.Get("user_id")
		assert.Equal(t, int64(9), fk)
	})

	t.Run("PersistedDependencyNeedsNoTx", func(t *testing.T) {
		c, mock, _ := saveClient(t, saveGraphModels()...)

		// Load a persisted author.
		mock.ExpectQuery(`SELECT * FROM "users" ORDER BY "id" LIMIT 1`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(4)))
		author, err := c.Query("User").First(ctx)
		require.NoError(t, err)

		// Its key is adopted directly; one INSERT, no transaction.
		mock.ExpectQuery(`INSERT INTO "posts" ("title", "user_id") VALUES ($1, $2) RETURNING "id"`).
			WithArgs("hello", int64(4)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

		post, err := c.New("Post", map[string]any{"title": "hello"})
		require.NoError(t, err)
		post.Associate("author", author)
		require.NoError(t, c.Save(ctx, post))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("SetKeySkipsDependency", func(t *testing.T) {
		c, mock, _ := saveClient(t, saveGraphModels()...)
		mock.ExpectQuery(`INSERT INTO "posts" ("title", "user_id") VALUES ($1, $2) RETURNING "id"`).
			WithArgs("hello", int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

		// The foreign key is already set; the attached record is not saved.
		author, err := c.New("User", map[string]any{"name": "ignored"})
		require.NoError(t, err)
		post, err := c.New("Post", map[string]any{"title": "hello", "user_id": int64(7)})
		require.NoError(t, err)
		post.Associate("author", author)

		require.NoError(t, c.Save(ctx, post))
		require.NoError(t, mock.ExpectationsWereMet())
		assert.False(t, author.Persisted())
	})

	t.Run("DependencyFailureRollsBack", func(t *testing.T) {
		c, mock, _ := saveClient(t, saveGraphModels()...)

		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO "users" ("name") VALUES ($1) RETURNING "id"`).
			WithArgs("a8m").
			WillReturnError(&pq.Error{Code: "23505"})
		mock.ExpectRollback()

		author, err := c.New("User", map[string]any{"name": "a8m"})
		require.NoError(t, err)
		post, err := c.New("Post", map[string]any{"title": "hello"})
		require.NoError(t, err)
		post.Associate("author", author)

		err = c.Save(ctx, post)
		require.Error(t, err)
		require.NoError(t, mock.ExpectationsWereMet())

		assert.True(t, strix.IsDependencyError(err))
		// The record states were restored: neither side half-saved.
		assert.False(t, author.Persisted())
		assert.False(t, post.Persisted())
		_, ok := post.Get("user_id")
		assert.False(t, ok)
	})

	t.Run("CycleDetected", func(t *testing.T) {
		c, mock, _ := saveClient(t,
			&schema.Model{
				Name:  "A",
				Table: "alphas",
				Associations: []schema.Association{
					{Name: "beta", Kind: schema.BelongsTo, Target: "B", ForeignKey: "beta_id"},
				},
			},
			&schema.Model{
				Name:  "B",
				Table: "betas",
				Associations: []schema.Association{
					{Name: "alpha", Kind: schema.BelongsTo, Target: "A", ForeignKey: "alpha_id"},
				},
			},
		)
		mock.ExpectBegin()
		mock.ExpectRollback()

		a, err := c.New("A", nil)
		require.NoError(t, err)
		b, err := c.New("B", nil)
		require.NoError(t, err)
		a.Associate("beta", b)
		b.Associate("alpha", a)

		err = c.Save(ctx, a)
		require.Error(t, err)
		assert.ErrorIs(t, err, strix.ErrCyclicDependency)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSaveX(t *testing.T) {
	c, mock, _ := saveClient(t)
	mock.ExpectQuery(`INSERT INTO "users" ("name") VALUES ($1) RETURNING "id"`).
		WithArgs("boom").
		WillReturnError(errors.New("connection refused"))

	r, err := c.New("User", map[string]any{"name": "boom"})
	require.NoError(t, err)
	assert.Panics(t, func() {
		c.SaveX(context.Background(), r)
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("Persisted", func(t *testing.T) {
		c, mock, _ := saveClient(t)
		mock.ExpectQuery(`SELECT * FROM "users" ORDER BY "id" LIMIT 1`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "a8m"))
		r, err := c.Query("User").First(ctx)
		require.NoError(t, err)

		mock.ExpectExec(`DELETE FROM "users" WHERE "id" = $1`).
			WithArgs(int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, c.Delete(ctx, r))
		require.NoError(t, mock.ExpectationsWereMet())

		// Persisted-state and key tracking are gone; the other fields stay.
		assert.False(t, r.Persisted())
		assert.Nil(t, r.ID())
		name, _ := r.Get("name")
		assert.Equal(t, "a8m", name)
	})

	t.Run("NotPersisted", func(t *testing.T) {
		c, _, drv := saveClient(t)
		r, err := c.New("User", map[string]any{"name": "a8m"})
		require.NoError(t, err)

		err = c.Delete(ctx, r)
		assert.ErrorIs(t, err, strix.ErrNotPersisted)
		assert.Equal(t, int64(0), drv.QueryStats().Stats().Statements())
	})

	t.Run("DeleteXPanics", func(t *testing.T) {
		c, _, _ := saveClient(t)
		r, err := c.New("User", nil)
		require.NoError(t, err)
		assert.Panics(t, func() {
			c.DeleteX(ctx, r)
		})
	})
}
