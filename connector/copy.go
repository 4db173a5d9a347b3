package connector

import (
	"context"
	"io"

	"oggo/ogerr"
	"oggo/protocol"
)

// CopyInStream lets a caller stream rows into a COPY ... FROM STDIN
// command, matching the shape of jackc/pgx's CopyFrom.
type CopyInStream struct {
	conn *Connector
	err  error
}

// StartCopyIn issues sql (expected to be a "COPY ... FROM STDIN" command)
// and returns a stream to write row data through.
func (c *Connector) StartCopyIn(ctx context.Context, sql string) (*CopyInStream, error) {
	c.mu.Lock()
	if c.state != Ready {
		c.mu.Unlock()
		return nil, ogerr.Newf(ogerr.OperationInProgress, "connector is %s, not ready", c.state)
	}
	c.state = Executing
	c.mu.Unlock()

	protocol.WriteQuery(c.wb, sql)
	if err := c.wb.Flush(); err != nil {
		return nil, c.markBroken(err)
	}

	for {
		tag, bodyLen, err := c.rb.ReadHeader()
		if err != nil {
			return nil, c.markBroken(err)
		}
		switch tag {
		case protocol.TagCopyInResponse:
			if _, err := protocol.DecodeCopyResponse(c.rb); err != nil {
				return nil, c.markBroken(err)
			}
			c.setState(CopyIn)
			return &CopyInStream{conn: c}, nil
		case protocol.TagErrorResponse:
			return nil, c.errorResponse(bodyLen, ogerr.ServerError)
		case protocol.TagParameterStatus:
			ps, err := protocol.DecodeParameterStatus(c.rb)
			if err != nil {
				return nil, c.markBroken(err)
			}
			c.serverParams[ps.Name] = ps.Value
		default:
			if _, err := c.rb.ReadBytes(bodyLen); err != nil {
				return nil, c.markBroken(err)
			}
		}
	}
}

// Write sends a chunk of COPY data.
func (s *CopyInStream) Write(p []byte) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	protocol.WriteCopyData(s.conn.wb, p)
	if err := s.conn.wb.Flush(); err != nil {
		s.err = s.conn.markBroken(err)
		return 0, s.err
	}
	return len(p), nil
}

// Close sends CopyDone (or CopyFail if reason is non-empty) and drains to
// ReadyForQuery, returning the connector to Ready.
func (s *CopyInStream) Close(reason string) error {
	if reason != "" {
		protocol.WriteCopyFail(s.conn.wb, reason)
	} else {
		protocol.WriteCopyDone(s.conn.wb)
	}
	protocol.WriteSync(s.conn.wb)
	if err := s.conn.wb.Flush(); err != nil {
		return s.conn.markBroken(err)
	}
	return s.conn.drainToReady()
}

// CopyOutStream lets a caller stream rows out of a COPY ... TO STDOUT
// command.
type CopyOutStream struct {
	conn *Connector
	err  error
}

// StartCopyOut issues sql (expected to be a "COPY ... TO STDOUT" command)
// and returns a stream to read row data from.
func (c *Connector) StartCopyOut(ctx context.Context, sql string) (*CopyOutStream, error) {
	c.mu.Lock()
	if c.state != Ready {
		c.mu.Unlock()
		return nil, ogerr.Newf(ogerr.OperationInProgress, "connector is %s, not ready", c.state)
	}
	c.state = Executing
	c.mu.Unlock()

	protocol.WriteQuery(c.wb, sql)
	if err := c.wb.Flush(); err != nil {
		return nil, c.markBroken(err)
	}

	for {
		tag, bodyLen, err := c.rb.ReadHeader()
		if err != nil {
			return nil, c.markBroken(err)
		}
		switch tag {
		case protocol.TagCopyOutResponse:
			if _, err := protocol.DecodeCopyResponse(c.rb); err != nil {
				return nil, c.markBroken(err)
			}
			c.setState(CopyOut)
			return &CopyOutStream{conn: c}, nil
		case protocol.TagErrorResponse:
			return nil, c.errorResponse(bodyLen, ogerr.ServerError)
		default:
			if _, err := c.rb.ReadBytes(bodyLen); err != nil {
				return nil, c.markBroken(err)
			}
		}
	}
}

// Read returns the next CopyData chunk, or io.EOF once CopyDone has been
// observed and the connector has drained back to Ready.
func (s *CopyOutStream) Read() ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	for {
		tag, bodyLen, err := s.conn.rb.ReadHeader()
		if err != nil {
			s.err = s.conn.markBroken(err)
			return nil, s.err
		}
		switch tag {
		case protocol.TagCopyData:
			data, err := s.conn.rb.CopyBytes(bodyLen)
			if err != nil {
				s.err = s.conn.markBroken(err)
				return nil, s.err
			}
			return data, nil
		case protocol.TagCopyDone:
			if _, err := s.conn.rb.ReadBytes(bodyLen); err != nil {
				s.err = s.conn.markBroken(err)
				return nil, s.err
			}
			if err := s.conn.drainToReady(); err != nil {
				s.err = err
				return nil, err
			}
			s.err = io.EOF
			return nil, io.EOF
		case protocol.TagCommandComplete:
			if _, err := protocol.DecodeCommandComplete(s.conn.rb, bodyLen); err != nil {
				s.err = s.conn.markBroken(err)
				return nil, s.err
			}
		default:
			if _, err := s.conn.rb.ReadBytes(bodyLen); err != nil {
				s.err = s.conn.markBroken(err)
				return nil, s.err
			}
		}
	}
}

// drainToReady reads messages until ReadyForQuery, since a connector
// always drains to ReadyForQuery before becoming available, then
// transitions back to Ready.
func (c *Connector) drainToReady() error {
	for {
		tag, bodyLen, err := c.rb.ReadHeader()
		if err != nil {
			return c.markBroken(err)
		}
		switch tag {
		case protocol.TagReadyForQuery:
			if _, err := protocol.DecodeReadyForQuery(c.rb); err != nil {
				return c.markBroken(err)
			}
			c.setState(Ready)
			return nil
		case protocol.TagErrorResponse:
			if _, err := c.rb.ReadBytes(bodyLen); err != nil {
				return c.markBroken(err)
			}
		default:
			if _, err := c.rb.ReadBytes(bodyLen); err != nil {
				return c.markBroken(err)
			}
		}
	}
}
