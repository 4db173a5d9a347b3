package protocol

import (
	"io"

	"oggo/ogerr"
)

// XLogData is a replication WAL chunk, delivered as the payload of a
// CopyData message once a replication stream has started.
type XLogData struct {
	StartLSN   int64
	EndLSN     int64
	ServerTime int64
	Data       []byte
}

// PrimaryKeepalive asks the standby to acknowledge receipt, optionally
// urgently (ReplyRequested).
type PrimaryKeepalive struct {
	EndLSN         int64
	ServerTime     int64
	ReplyRequested bool
}

// ReplicationMessage is a decoded sub-message of the replication
// CopyData stream: exactly one of XLogData or Keepalive is non-nil.
type ReplicationMessage struct {
	XLogData  *XLogData
	Keepalive *PrimaryKeepalive
}

// DecodeReplicationMessage decodes a CopyData payload received while a
// connector is in the Replication state.
func DecodeReplicationMessage(payload []byte) (*ReplicationMessage, error) {
	if len(payload) == 0 {
		return nil, ogerr.New(ogerr.ProtocolViolation, "empty replication CopyData payload")
	}
	body := NewReadBuffer(&sliceReader{b: payload}, len(payload), "")
	switch payload[0] {
	case ReplTagXLogData:
		if _, err := body.ReadByte(); err != nil {
			return nil, err
		}
		start, err := body.ReadInt64()
		if err != nil {
			return nil, err
		}
		end, err := body.ReadInt64()
		if err != nil {
			return nil, err
		}
		serverTime, err := body.ReadInt64()
		if err != nil {
			return nil, err
		}
		data, err := body.CopyBytes(len(payload) - 25)
		if err != nil {
			return nil, err
		}
		return &ReplicationMessage{XLogData: &XLogData{StartLSN: start, EndLSN: end, ServerTime: serverTime, Data: data}}, nil
	case ReplTagPrimaryKeepalive:
		if _, err := body.ReadByte(); err != nil {
			return nil, err
		}
		end, err := body.ReadInt64()
		if err != nil {
			return nil, err
		}
		serverTime, err := body.ReadInt64()
		if err != nil {
			return nil, err
		}
		reply, err := body.ReadByte()
		if err != nil {
			return nil, err
		}
		return &ReplicationMessage{Keepalive: &PrimaryKeepalive{EndLSN: end, ServerTime: serverTime, ReplyRequested: reply != 0}}, nil
	default:
		return nil, ogerr.Newf(ogerr.ProtocolViolation, "unknown replication sub-message tag %q", payload[0])
	}
}

// sliceReader adapts an in-memory byte slice already fully received (a
// CopyData payload) to the io.Reader ReadBuffer expects, so the same
// cursor-based decoders used for the socket can be reused here.
type sliceReader struct {
	b   []byte
	pos int
}

func (s *sliceReader) Read(p []byte) (int, error) {
	if s.pos >= len(s.b) {
		return 0, io.EOF
	}
	n := copy(p, s.b[s.pos:])
	s.pos += n
	return n, nil
}
