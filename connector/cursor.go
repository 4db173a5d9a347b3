package connector

import (
	"context"
	"time"

	"oggo/ogerr"
	"oggo/protocol"
)

// ResultStream is a forward-only cursor over one command's results,
// produced by Execute. Callers call Next until it returns false, then
// check Err. RowDescription/Row/Tag reflect the most recently observed
// values.
type ResultStream struct {
	conn *Connector
	ctx  context.Context

	rowDesc *protocol.RowDescription
	row     *protocol.DataRow
	tag     string

	done bool
	err  error
}

func newResultStream(c *Connector, ctx context.Context) *ResultStream {
	return &ResultStream{conn: c, ctx: ctx}
}

// RowDescription returns the column descriptors for the current result
// set, or nil if the command produced no rows (e.g. an INSERT).
func (r *ResultStream) RowDescription() *protocol.RowDescription { return r.rowDesc }

// Row returns the most recently read row's raw column values.
func (r *ResultStream) Row() *protocol.DataRow { return r.row }

// CommandTag returns the server's command tag ("SELECT 3") once the
// stream has completed the current command.
func (r *ResultStream) CommandTag() string { return r.tag }

// Err returns the error, if any, that ended iteration. A server-reported
// ErrorResponse is not itself fatal to the connector: it still drains to
// ReadyForQuery and returns to Ready; only I/O errors and protocol
// violations mark it Broken.
func (r *ResultStream) Err() error { return r.err }

// Next advances the cursor. It returns false once the command has fully
// completed (ReadyForQuery observed) or an unrecoverable error occurred.
func (r *ResultStream) Next() bool {
	if r.done {
		return false
	}
	c := r.conn
	for {
		select {
		case <-r.ctx.Done():
			r.err = ogerr.Wrap(ogerr.Timeout, r.ctx.Err(), "execute")
			r.finish(true)
			return false
		default:
		}

		tag, bodyLen, err := c.rb.ReadHeader()
		if err != nil {
			r.err = c.markBroken(err)
			r.finish(false)
			return false
		}

		switch tag {
		case protocol.TagParseComplete, protocol.TagBindComplete, protocol.TagCloseComplete, protocol.TagNoData, protocol.TagPortalSuspended:
			if _, err := c.rb.ReadBytes(bodyLen); err != nil {
				r.err = c.markBroken(err)
				r.finish(false)
				return false
			}
			continue
		case protocol.TagParameterDesc:
			if _, err := protocol.DecodeParameterDescription(c.rb); err != nil {
				r.err = c.markBroken(err)
				r.finish(false)
				return false
			}
			continue
		case protocol.TagRowDescription:
			rd, err := protocol.DecodeRowDescription(c.rb)
			if err != nil {
				r.err = c.markBroken(err)
				r.finish(false)
				return false
			}
			r.rowDesc = rd
			c.setState(Executing)
			continue
		case protocol.TagDataRow:
			row, err := protocol.DecodeDataRow(c.rb)
			if err != nil {
				r.err = c.markBroken(err)
				r.finish(false)
				return false
			}
			r.row = row
			c.setState(Fetching)
			return true
		case protocol.TagCommandComplete:
			cc, err := protocol.DecodeCommandComplete(c.rb, bodyLen)
			if err != nil {
				r.err = c.markBroken(err)
				r.finish(false)
				return false
			}
			r.tag = cc.Tag
			continue
		case protocol.TagEmptyQueryResponse:
			if _, err := c.rb.ReadBytes(bodyLen); err != nil {
				r.err = c.markBroken(err)
				r.finish(false)
				return false
			}
			continue
		case protocol.TagParameterStatus:
			ps, err := protocol.DecodeParameterStatus(c.rb)
			if err != nil {
				r.err = c.markBroken(err)
				r.finish(false)
				return false
			}
			c.serverParams[ps.Name] = ps.Value
			if c.onParameterStatus != nil {
				c.onParameterStatus(ps.Name, ps.Value)
			}
			continue
		case protocol.TagNoticeResponse:
			if _, err := c.readNotice(bodyLen); err != nil {
				r.err = c.markBroken(err)
				r.finish(false)
				return false
			}
			continue
		case protocol.TagNotificationResp:
			nr, err := protocol.DecodeNotificationResponse(c.rb)
			if err != nil {
				r.err = c.markBroken(err)
				r.finish(false)
				return false
			}
			if c.onNotification != nil {
				c.onNotification(nr)
			}
			continue
		case protocol.TagErrorResponse:
			// A command-level error causes the server to swallow subsequent
			// messages until Sync; keep reading to ReadyForQuery rather than
			// returning immediately.
			if err := c.errorResponse(bodyLen, ogerr.ServerError); err != nil {
				r.err = err
			}
			continue
		case protocol.TagCopyInResponse, protocol.TagCopyOutResponse, protocol.TagCopyBothResponse:
			if _, err := protocol.DecodeCopyResponse(c.rb); err != nil {
				r.err = c.markBroken(err)
				r.finish(false)
				return false
			}
			// Copy sub-protocol streams are driven through StartCopyIn/
			// StartCopyOut instead of this cursor; a cursor observing one
			// here means the caller issued COPY through plain Execute.
			continue
		case protocol.TagReadyForQuery:
			if _, err := protocol.DecodeReadyForQuery(c.rb); err != nil {
				r.err = c.markBroken(err)
				r.finish(false)
				return false
			}
			r.finish(true)
			return false
		default:
			if _, err := c.rb.ReadBytes(bodyLen); err != nil {
				r.err = c.markBroken(err)
				r.finish(false)
				return false
			}
			c.log.Warn("unhandled message tag during execute", "tag", string(tag))
			continue
		}
	}
}

func (r *ResultStream) finish(keepState bool) {
	r.done = true
	c := r.conn
	if keepState {
		c.setState(Ready)
		c.mu.Lock()
		c.lastUsedAt = time.Now()
		c.mu.Unlock()
	}
	if c.currentDone != nil {
		close(c.currentDone)
		c.currentDone = nil
	}
}
