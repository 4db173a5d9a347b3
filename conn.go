package oggo

import (
	"context"
	"database/sql/driver"
	"sync"

	"oggo/connector"
	"oggo/connstring"
	"oggo/pool"
)

// Conn wraps one rented connector.Connector for the lifetime database/sql
// keeps this driver.Conn checked out. Every method here runs against the
// same underlying socket, matching the one-command-at-a-time contract
// connector.Connector already assumes.
type Conn struct {
	mu     sync.Mutex
	conn   *connector.Connector
	pool   *pool.Pool
	cfg    *connstring.Config
	closed bool
}

var (
	_ driver.Conn               = (*Conn)(nil)
	_ driver.ConnPrepareContext = (*Conn)(nil)
	_ driver.ConnBeginTx        = (*Conn)(nil)
	_ driver.ExecerContext      = (*Conn)(nil)
	_ driver.QueryerContext     = (*Conn)(nil)
	_ driver.Pinger             = (*Conn)(nil)
	_ driver.SessionResetter    = (*Conn)(nil)
	_ driver.Validator          = (*Conn)(nil)
)

// Prepare implements driver.Conn. The extended-query sub-protocol already
// auto-prepares by SQL fingerprint, so Stmt only needs to remember the
// query text.
func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

// PrepareContext implements driver.ConnPrepareContext.
func (c *Conn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	if c.isClosed() {
		return nil, driver.ErrBadConn
	}
	return &Stmt{conn: c, query: query}, nil
}

// Close returns the connector to its pool. It never errors on a
// double-close.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	broken := c.conn.State() == connector.Broken
	c.pool.Return(c.conn, c.conn.HostSpec(), broken)
	return nil
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Begin implements the legacy driver.Conn.Begin.
func (c *Conn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// BeginTx implements driver.ConnBeginTx. Isolation levels beyond the
// driver default are rejected: mapping every database/sql
// sql.IsolationLevel onto openGauss's SET TRANSACTION syntax is out of
// scope for this adapter.
func (c *Conn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if opts.Isolation != driver.IsolationLevel(0) {
		return nil, ogerrUnsupportedIsolation
	}
	sql := "BEGIN"
	if opts.ReadOnly {
		sql = "BEGIN READ ONLY"
	}
	if _, err := c.execDrain(ctx, sql, nil); err != nil {
		return nil, err
	}
	return &Tx{conn: c}, nil
}

// Ping implements driver.Pinger with a trivial round trip.
func (c *Conn) Ping(ctx context.Context) error {
	if c.conn.State() != connector.Ready {
		return driver.ErrBadConn
	}
	if _, err := c.execDrain(ctx, "SELECT 1", nil); err != nil {
		return driver.ErrBadConn
	}
	return nil
}

// ResetSession implements driver.SessionResetter, run by database/sql
// before handing a pooled *Conn back out.
func (c *Conn) ResetSession(ctx context.Context) error {
	if c.conn.State() == connector.Broken {
		return driver.ErrBadConn
	}
	if err := c.conn.Reset(ctx); err != nil {
		return driver.ErrBadConn
	}
	return nil
}

// IsValid implements driver.Validator.
func (c *Conn) IsValid() bool { return c.conn.State() == connector.Ready }

// ExecContext implements driver.ExecerContext, bypassing the
// database/sql-level Stmt wrapper for one-shot statements.
func (c *Conn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	return c.execDrain(ctx, query, args)
}

// QueryContext implements driver.QueryerContext.
func (c *Conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	return c.queryStart(ctx, query, args)
}

func (c *Conn) execDrain(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	stream, err := c.conn.Execute(ctx, query, convertArgs(args), c.cfg.CommandTimeout)
	if err != nil {
		return nil, err
	}
	for stream.Next() {
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}
	return Result{tag: stream.CommandTag()}, nil
}

func (c *Conn) queryStart(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	stream, err := c.conn.Execute(ctx, query, convertArgs(args), c.cfg.CommandTimeout)
	if err != nil {
		return nil, err
	}
	return newRows(stream)
}
