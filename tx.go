package strix

import (
	"context"

	"github.com/strixdb/strix/dialect"
)

// Tx is a transactional client: every operation of the embedded Client runs
// on one driver transaction until Commit or Rollback.
type Tx struct {
	*Client
	tx dialect.Tx
}

// BeginTx starts a transaction and returns a client bound to it. The
// transactional client shares the model registry and cache of its parent.
// Beginning a transaction on a transactional client fails with ErrTxStarted.
func (c *Client) BeginTx(ctx context.Context) (*Tx, error) {
	if _, ok := c.driver.(*txDriver); ok {
		return nil, ErrTxStarted
	}
	tx, err := c.driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &Tx{
		Client: &Client{
			driver: &txDriver{tx: tx, dialect: c.driver.Dialect()},
			cache:  c.cache,
			models: c.models,
		},
		tx: tx,
	}, nil
}

// Commit commits the transaction.
func (tx *Tx) Commit() error { return tx.tx.Commit() }

// Rollback rolls the transaction back.
func (tx *Tx) Rollback() error { return tx.tx.Rollback() }

// txDriver adapts a dialect.Tx back into a dialect.Driver so client
// operations run on it unchanged. A nested transaction request joins the
// ongoing one with a no-op Commit/Rollback: a multi-statement save inside a
// caller transaction stays in the caller's scope.
type txDriver struct {
	tx      dialect.Tx
	dialect string
}

func (d *txDriver) Exec(ctx context.Context, query string, args, v any) error {
	return d.tx.Exec(ctx, query, args, v)
}

func (d *txDriver) Query(ctx context.Context, query string, args, v any) error {
	return d.tx.Query(ctx, query, args, v)
}

func (d *txDriver) Tx(context.Context) (dialect.Tx, error) { return dialect.NopTx(d), nil }

func (d *txDriver) Close() error { return nil }

func (d *txDriver) Dialect() string { return d.dialect }

var _ dialect.Driver = (*txDriver)(nil)
