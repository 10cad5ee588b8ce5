package ocigo

import (
	"context"
	"database/sql/driver"
)

// ociTx adapts the connection's transaction calls to driver.Tx. The state
// lives on the connection, a Tx is only a view of it.
type ociTx struct {
	conn *ociConn
}

var _ driver.Tx = (*ociTx)(nil)

func (tx *ociTx) Commit() error {
	return tx.conn.Commit(context.Background())
}

func (tx *ociTx) Rollback() error {
	return tx.conn.Rollback(context.Background())
}
