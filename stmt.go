package oggo

import (
	"context"
	"database/sql/driver"
)

// Stmt adapts one prepared query text to driver.Stmt. It carries no
// server-side state of its own — when MaxAutoPrepare > 0,
// connector.Execute's extended-query path promotes a statement to a named,
// server-side prepare once it crosses AutoPrepareMinUsages, keyed by SQL
// text and parameter OIDs, so repeated
// use of the same Stmt naturally benefits without this type tracking a
// statement name.
type Stmt struct {
	conn  *Conn
	query string
}

var (
	_ driver.Stmt             = (*Stmt)(nil)
	_ driver.StmtExecContext  = (*Stmt)(nil)
	_ driver.StmtQueryContext = (*Stmt)(nil)
)

// Close is a no-op: there is no server-side resource tied to a Stmt that
// outlives the connector's own prepared-statement LRU.
func (s *Stmt) Close() error { return nil }

// NumInput reports -1 (unknown), since openGauss does not report a
// parameter count without a round trip; database/sql then skips its
// argument-count check and the server validates the arguments.
func (s *Stmt) NumInput() int { return -1 }

// Exec implements the legacy driver.Stmt.Exec.
func (s *Stmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), valuesToNamed(args))
}

// Query implements the legacy driver.Stmt.Query.
func (s *Stmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), valuesToNamed(args))
}

// ExecContext implements driver.StmtExecContext.
func (s *Stmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	return s.conn.execDrain(ctx, s.query, args)
}

// QueryContext implements driver.StmtQueryContext.
func (s *Stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	return s.conn.queryStart(ctx, s.query, args)
}

// Tx adapts a BEGIN/COMMIT/ROLLBACK cycle on one Conn to driver.Tx.
type Tx struct {
	conn *Conn
}

var _ driver.Tx = (*Tx)(nil)

// Commit sends COMMIT and drains the result.
func (t *Tx) Commit() error {
	_, err := t.conn.execDrain(context.Background(), "COMMIT", nil)
	return err
}

// Rollback sends ROLLBACK and drains the result.
func (t *Tx) Rollback() error {
	_, err := t.conn.execDrain(context.Background(), "ROLLBACK", nil)
	return err
}
