package strix_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strixdb/strix"
)

func TestBeginTx(t *testing.T) {
	ctx := context.Background()

	t.Run("Commit", func(t *testing.T) {
		c, mock, _ := saveClient(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO "users" ("name") VALUES ($1) RETURNING "id"`).
			WithArgs("a8m").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
		mock.ExpectCommit()

		tx, err := c.BeginTx(ctx)
		require.NoError(t, err)
		r, err := tx.New("User", map[string]any{"name": "a8m"})
		require.NoError(t, err)
		require.NoError(t, tx.Save(ctx, r))
		require.NoError(t, tx.Commit())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Rollback", func(t *testing.T) {
		c, mock, _ := saveClient(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO "users" ("name") VALUES ($1) RETURNING "id"`).
			WithArgs("a8m").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
		mock.ExpectRollback()

		tx, err := c.BeginTx(ctx)
		require.NoError(t, err)
		r, err := tx.New("User", map[string]any{"name": "a8m"})
		require.NoError(t, err)
		require.NoError(t, tx.Save(ctx, r))
		require.NoError(t, tx.Rollback())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NestedFails", func(t *testing.T) {
		c, mock, _ := saveClient(t)
		mock.ExpectBegin()
		tx, err := c.BeginTx(ctx)
		require.NoError(t, err)
		_, err = tx.BeginTx(ctx)
		assert.ErrorIs(t, err, strix.ErrTxStarted)
	})

	t.Run("DependencySaveJoinsCallerTx", func(t *testing.T) {
		c, mock, _ := saveClient(t, saveGraphModels()...)

		// One BEGIN only: the multi-statement save runs inside the caller's
		// transaction instead of opening its own.
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO "users" ("name") VALUES ($1) RETURNING "id"`).
			WithArgs("a8m").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(2)))
		mock.ExpectQuery(`INSERT INTO "posts" ("title", "user_id") VALUES ($1, $2) RETURNING "id"`).
			WithArgs("hello", int64(2)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
		mock.ExpectCommit()

		tx, err := c.BeginTx(ctx)
		require.NoError(t, err)
		author, err := tx.New("User", map[string]any{"name": "a8m"})
		require.NoError(t, err)
		post, err := tx.New("Post", map[string]any{"title": "hello"})
		require.NoError(t, err)
		post.Associate("author", author)

		require.NoError(t, tx.Save(ctx, post))
		require.NoError(t, tx.Commit())
		require.NoError(t, mock.ExpectationsWereMet())
		assert.True(t, author.Persisted())
		assert.True(t, post.Persisted())
	})
}
