package oggo

import (
	"database/sql/driver"
	"io"
	"strconv"
	"strings"

	"oggo/connector"
)

// Rows adapts a connector.ResultStream to driver.Rows. database/sql calls
// Columns before the first Next, but RowDescription only arrives lazily
// as part of the stream's first Next call, so newRows eagerly advances
// once and buffers whatever row that call produced.
type Rows struct {
	stream  *connector.ResultStream
	columns []string
	pending bool
}

func newRows(stream *connector.ResultStream) (*Rows, error) {
	r := &Rows{stream: stream}
	if stream.Next() {
		r.pending = true
	} else if err := stream.Err(); err != nil {
		return nil, err
	}
	if rd := stream.RowDescription(); rd != nil {
		cols := make([]string, len(rd.Fields))
		for i, f := range rd.Fields {
			cols[i] = f.Name
		}
		r.columns = cols
	}
	return r, nil
}

// Columns returns the result set's column names, per driver.Rows.
func (r *Rows) Columns() []string { return r.columns }

// Close drains any remaining rows so the connector reaches ReadyForQuery
// and can serve the next command on this Conn.
func (r *Rows) Close() error {
	r.pending = false
	for r.stream.Next() {
	}
	return r.stream.Err()
}

// Next fills dest with the next row's values, returning io.EOF once the
// stream is exhausted.
func (r *Rows) Next(dest []driver.Value) error {
	if !r.pending {
		if !r.stream.Next() {
			if err := r.stream.Err(); err != nil {
				return err
			}
			return io.EOF
		}
	}
	r.pending = false
	row := r.stream.Row()
	for i, v := range row.Values {
		if v == nil {
			dest[i] = nil
			continue
		}
		dest[i] = append([]byte(nil), v...)
	}
	return nil
}

// Result adapts a completed command's tag to driver.Result.
type Result struct {
	tag string
}

// LastInsertId is not supported: openGauss/PostgreSQL has no
// auto-increment return value on INSERT; callers use RETURNING instead.
func (r Result) LastInsertId() (int64, error) {
	return 0, ogerrLastInsertIDUnsupported
}

// RowsAffected parses the trailing integer off a command tag such as
// "SELECT 3", "INSERT 0 3", "UPDATE 2", or "DELETE 1". Tags with no
// numeric suffix (e.g. "CREATE TABLE") report zero rows affected.
func (r Result) RowsAffected() (int64, error) {
	fields := strings.Fields(r.tag)
	if len(fields) == 0 {
		return 0, nil
	}
	n, err := strconv.ParseInt(fields[len(fields)-1], 10, 64)
	if err != nil {
		return 0, nil
	}
	return n, nil
}
