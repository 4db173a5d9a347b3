package connector

import (
	"context"
	"fmt"
	"time"

	"oggo/ogerr"
	"oggo/pgtype"
	"oggo/protocol"
)

// ReplicationStream drives the physical or logical replication
// sub-protocol started by START_REPLICATION: keepalive/standby-status
// exchange over the CopyBoth stream, after the connector's Ready to
// Replication transition.
type ReplicationStream struct {
	conn *Connector

	writtenLSN pgtype.LSN
	flushedLSN pgtype.LSN
	appliedLSN pgtype.LSN
}

// StartReplication issues a START_REPLICATION command and returns a
// stream that yields WAL data and drives keepalive acknowledgements.
func (c *Connector) StartReplication(ctx context.Context, command string, startLSN pgtype.LSN) (*ReplicationStream, error) {
	c.mu.Lock()
	if c.state != Ready {
		c.mu.Unlock()
		return nil, ogerr.Newf(ogerr.OperationInProgress, "connector is %s, not ready", c.state)
	}
	c.state = Executing
	c.mu.Unlock()

	sql := fmt.Sprintf("%s %s", command, startLSN)
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
		case protocol.TagCopyBothResponse:
			if _, err := protocol.DecodeCopyResponse(c.rb); err != nil {
				return nil, c.markBroken(err)
			}
			c.setState(Replication)
			return &ReplicationStream{conn: c, writtenLSN: startLSN, flushedLSN: startLSN, appliedLSN: startLSN}, nil
		case protocol.TagErrorResponse:
			return nil, c.errorResponse(bodyLen, ogerr.ServerError)
		default:
			if _, err := c.rb.ReadBytes(bodyLen); err != nil {
				return nil, c.markBroken(err)
			}
		}
	}
}

// Recv blocks for the next replication sub-message. XLogData deliveries
// advance the stream's writtenLSN; PrimaryKeepalive messages that request
// a reply are acknowledged immediately via SendStatusUpdate.
func (r *ReplicationStream) Recv() (*protocol.XLogData, error) {
	c := r.conn
	for {
		tag, bodyLen, err := c.rb.ReadHeader()
		if err != nil {
			return nil, c.markBroken(err)
		}
		switch tag {
		case protocol.TagCopyData:
			payload, err := c.rb.CopyBytes(bodyLen)
			if err != nil {
				return nil, c.markBroken(err)
			}
			msg, err := protocol.DecodeReplicationMessage(payload)
			if err != nil {
				return nil, c.markBroken(err)
			}
			if msg.XLogData != nil {
				r.writtenLSN = pgtype.LSN(msg.XLogData.EndLSN)
				return msg.XLogData, nil
			}
			if msg.Keepalive != nil && msg.Keepalive.ReplyRequested {
				if err := r.SendStatusUpdate(false); err != nil {
					return nil, err
				}
			}
		case protocol.TagErrorResponse:
			return nil, c.errorResponse(bodyLen, ogerr.ServerError)
		case protocol.TagCopyDone:
			if _, err := c.rb.ReadBytes(bodyLen); err != nil {
				return nil, c.markBroken(err)
			}
			if err := c.drainToReady(); err != nil {
				return nil, err
			}
			return nil, nil
		default:
			if _, err := c.rb.ReadBytes(bodyLen); err != nil {
				return nil, c.markBroken(err)
			}
		}
	}
}

// Ack records that the caller has durably applied WAL up to lsn, used as
// flushedLSN/appliedLSN in the next SendStatusUpdate.
func (r *ReplicationStream) Ack(lsn pgtype.LSN) {
	r.flushedLSN = lsn
	r.appliedLSN = lsn
}

// SendStatusUpdate sends a StandbyStatusUpdate CopyData message reporting
// the stream's current written/flushed/applied LSNs.
func (r *ReplicationStream) SendStatusUpdate(replyRequested bool) error {
	c := r.conn
	// PostgreSQL/openGauss client timestamps are microseconds since
	// 2000-01-01, not Unix epoch; approximate with wall-clock offset.
	clientTime := time.Now().UnixMicro() - pgEpochOffsetMicros
	protocol.WriteStandbyStatusUpdate(c.wb, int64(r.writtenLSN), int64(r.flushedLSN), int64(r.appliedLSN), clientTime, replyRequested)
	if err := c.wb.Flush(); err != nil {
		return c.markBroken(err)
	}
	return nil
}

// pgEpochOffsetMicros is the number of microseconds between the Unix
// epoch and 2000-01-01 00:00:00 UTC, the epoch PostgreSQL/openGauss use
// for replication protocol timestamps.
const pgEpochOffsetMicros = 946684800000000
