// Package oggo is a database/sql driver for openGauss/PostgreSQL built on
// the connector/pool/mux packages: connector.Connector drives the wire
// protocol for one physical socket, pool.Pool rents and returns connectors
// against a host set, and this package adapts that pair to
// database/sql/driver so the core is usable through the standard library
// without pulling in the multiplexing scheduler. Register with
// sql.Open("oggo", dsn), where dsn is any string connstring.Parse accepts.
package oggo

import (
	"context"
	"database/sql"
	"database/sql/driver"

	"oggo/connstring"
	"oggo/pool"
)

func init() {
	sql.Register("oggo", Driver{})
}

// Driver implements database/sql/driver.Driver and driver.DriverContext.
type Driver struct{}

// Open parses name as a connection string and rents a connector from the
// process-wide pool for it, blocking until one becomes available.
func (d Driver) Open(name string) (driver.Conn, error) {
	c, err := d.OpenConnector(name)
	if err != nil {
		return nil, err
	}
	return c.Connect(context.Background())
}

// OpenConnector parses name once and returns a reusable driver.Connector,
// per database/sql's DriverContext extension.
func (d Driver) OpenConnector(name string) (driver.Connector, error) {
	cfg, err := connstring.Parse(name)
	if err != nil {
		return nil, err
	}
	return &Connector{cfg: cfg}, nil
}

// Connector binds a parsed connection string to the driver so
// database/sql can open new connections without re-parsing the DSN on
// every call.
type Connector struct {
	cfg *connstring.Config
}

// Connect rents a connector from cfg's pool.
func (c *Connector) Connect(ctx context.Context) (driver.Conn, error) {
	p := pool.Get(c.cfg)
	conn, err := p.Rent(ctx)
	if err != nil {
		return nil, err
	}
	return &Conn{conn: conn, pool: p, cfg: c.cfg}, nil
}

// Driver returns the Driver that created this Connector.
func (c *Connector) Driver() driver.Driver { return Driver{} }
