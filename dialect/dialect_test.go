package dialect

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	method string
	query  string
}

type fakeDriver struct {
	calls []recordedCall
}

func (d *fakeDriver) Exec(_ context.Context, query string, _, _ any) error {
	d.calls = append(d.calls, recordedCall{"Exec", query})
	return nil
}

func (d *fakeDriver) Query(_ context.Context, query string, _, _ any) error {
	d.calls = append(d.calls, recordedCall{"Query", query})
	return nil
}

func (d *fakeDriver) Tx(context.Context) (Tx, error) { return NopTx(d), nil }
func (d *fakeDriver) Close() error                   { return nil }
func (d *fakeDriver) Dialect() string                { return Postgres }

func TestDebugDriver(t *testing.T) {
	ctx := context.Background()
	var logs []string
	fake := &fakeDriver{}
	drv := Debug(fake, func(_ context.Context, v ...any) {
		var b strings.Builder
		for _, x := range v {
			b.WriteString(x.(string))
		}
		logs = append(logs, b.String())
	})

	require.NoError(t, drv.Exec(ctx, `DELETE FROM "users"`, []any{}, nil))
	require.NoError(t, drv.Query(ctx, `SELECT 1`, []any{}, nil))

	tx, err := drv.Tx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Exec(ctx, `UPDATE "users" SET "x" = $1`, []any{1}, nil))
	require.NoError(t, tx.Commit())

	// Every operation went through to the wrapped driver.
	require.Len(t, fake.calls, 3)
	assert.Equal(t, "Exec", fake.calls[0].method)
	assert.Equal(t, "Query", fake.calls[1].method)

	// And each was logged.
	require.Len(t, logs, 5) // exec, query, tx start, tx exec, commit
	assert.Contains(t, logs[0], `DELETE FROM "users"`)
	assert.Contains(t, logs[1], "SELECT 1")
	assert.Contains(t, logs[2], "driver.Tx")
	assert.Contains(t, logs[3], `UPDATE "users"`)
	assert.Contains(t, logs[4], "Tx.Commit")
}

func TestNopTx(t *testing.T) {
	fake := &fakeDriver{}
	tx := NopTx(fake)
	assert.NoError(t, tx.Commit())
	assert.NoError(t, tx.Rollback())
	assert.NoError(t, tx.Exec(context.Background(), "SELECT 1", []any{}, nil))
	assert.Len(t, fake.calls, 1)
}
