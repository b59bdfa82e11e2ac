package gen

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strixdb/strix/schema"
)

func writeDescriptors(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "models.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("Full", func(t *testing.T) {
		path := writeDescriptors(t, `{
			"models": [
				{
					"name": "User",
					"table": "accounts",
					"id": "uuid",
					"columns": [
						{"name": "name"},
						{"name": "age", "type": "int"},
						{"name": "active", "type": "bool"},
						{"name": "created_at", "type": "time"},
						{"name": "tenant_id", "type": "uuid"}
					],
					"associations": [
						{"name": "posts", "kind": "has_many", "target": "Post"},
						{"name": "groups", "kind": "has_many_through", "target": "Group", "through": "user_groups", "own_key": "member_id"}
					]
				},
				{
					"name": "Post",
					"columns": [{"name": "title"}],
					"associations": [
						{"name": "author", "kind": "belongs_to", "target": "User", "foreign_key": "author_id"}
					]
				}
			]
		}`)
		types, err := Load(path)
		require.NoError(t, err)
		require.Len(t, types, 2)

		user := types[0]
		assert.Equal(t, "accounts", user.Table)
		assert.Equal(t, schema.KeyUUID, user.IDKind)
		require.Len(t, user.Columns, 5)
		assert.Equal(t, KindString, user.Columns[0].Kind)
		assert.Equal(t, KindInt, user.Columns[1].Kind)
		assert.Equal(t, KindBool, user.Columns[2].Kind)
		assert.Equal(t, KindTime, user.Columns[3].Kind)
		assert.Equal(t, KindUUID, user.Columns[4].Kind)
		require.Len(t, user.Associations, 2)
		assert.Equal(t, schema.HasManyThrough, user.Associations[1].Kind)
		assert.Equal(t, "user_groups", user.Associations[1].Through)
		assert.Equal(t, "member_id", user.Associations[1].OwnKey)

		// Omitted table and id kind fall back to the conventions.
		post := types[1]
		assert.Equal(t, "posts", post.Table)
		assert.Equal(t, schema.KeySerial, post.IDKind)
		assert.Equal(t, schema.BelongsTo, post.Associations[0].Kind)
		assert.Equal(t, "author_id", post.Associations[0].ForeignKey)
	})

	t.Run("TableizedDefault", func(t *testing.T) {
		path := writeDescriptors(t, `{"models": [{"name": "BlogPost", "columns": []}]}`)
		types, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "blog_posts", types[0].Table)
	})

	t.Run("UnknownIDKind", func(t *testing.T) {
		path := writeDescriptors(t, `{"models": [{"name": "User", "id": "snowflake"}]}`)
		_, err := Load(path)
		assert.ErrorContains(t, err, `unknown id kind "snowflake"`)
	})

	t.Run("UnknownColumnType", func(t *testing.T) {
		path := writeDescriptors(t, `{"models": [{"name": "User", "columns": [{"name": "blob", "type": "bytea"}]}]}`)
		_, err := Load(path)
		assert.ErrorContains(t, err, `unknown column type "bytea"`)
	})

	t.Run("UnknownAssociationKind", func(t *testing.T) {
		path := writeDescriptors(t, `{"models": [{"name": "User", "associations": [{"name": "posts", "kind": "habtm", "target": "Post"}]}]}`)
		_, err := Load(path)
		assert.ErrorContains(t, err, `unknown association kind "habtm"`)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		path := writeDescriptors(t, `{"models": [`)
		_, err := Load(path)
		assert.ErrorContains(t, err, "parse descriptors")
	})
}
