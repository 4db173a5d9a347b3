package protocol

// FieldFormat selects text (0) or binary (1) wire encoding for a bound
// parameter or a result column.
type FieldFormat int16

const (
	FormatText   FieldFormat = 0
	FormatBinary FieldFormat = 1
)

// Parameter is a single bound value: its wire-format bytes (nil for SQL
// NULL) and the format it is encoded in.
type Parameter struct {
	Value  []byte
	Format FieldFormat
}

// WriteStartup encodes a StartupMessage. params should already contain
// the canonical keys (user, database, application_name, client_encoding,
// search_path, TimeZone, options, ...); order is preserved on the wire.
func WriteStartup(w *WriteBuffer, params [][2]string) {
	w.WriteStartupPacket(ProtocolVersion, params)
}

// WriteSSLRequest encodes the pre-startup SSLRequest packet.
func WriteSSLRequest(w *WriteBuffer) { w.WriteSSLRequest() }

// WriteCancelRequest encodes a CancelRequest on a transient connection.
func WriteCancelRequest(w *WriteBuffer, pid, secret int32) {
	w.WriteCancelRequest(pid, secret)
}

// WritePasswordMessage encodes a cleartext or MD5-digest password
// response, and any other single-blob SASL/GSS response — the wire shape
// is identical: tag 'p', the blob, no terminator required by the wire
// format itself (callers pass an already null-terminated string when the
// server expects a C-string, or a raw blob for SASL/GSS token exchanges).
func WritePasswordMessage(w *WriteBuffer, blob []byte) {
	w.BeginMessage(TagPasswordMessage)
	w.WriteBytes(blob)
	w.EndMessage()
}

// WriteSASLInitialResponse encodes the SASL initial response: mechanism
// name, then a counted (possibly empty/-1) response blob.
func WriteSASLInitialResponse(w *WriteBuffer, mechanism string, response []byte) {
	w.BeginMessage(TagPasswordMessage)
	w.WriteCString(mechanism)
	w.WriteCounted(response)
	w.EndMessage()
}

// WriteQuery encodes a simple-query message.
func WriteQuery(w *WriteBuffer, sql string) {
	w.BeginMessage(TagQuery)
	w.WriteCString(sql)
	w.EndMessage()
}

// WriteParse encodes a Parse message for the extended query protocol.
// stmtName == "" is the unnamed statement. paramOIDs may be empty to let
// the server infer types.
func WriteParse(w *WriteBuffer, stmtName, sql string, paramOIDs []int32) {
	w.BeginMessage(TagParse)
	w.WriteCString(stmtName)
	w.WriteCString(sql)
	w.WriteInt16(int16(len(paramOIDs)))
	for _, oid := range paramOIDs {
		w.WriteInt32(oid)
	}
	w.EndMessage()
}

// WriteBind encodes a Bind message binding portalName to stmtName with
// the given parameters and result column formats.
func WriteBind(w *WriteBuffer, portalName, stmtName string, params []Parameter, resultFormats []FieldFormat) {
	w.BeginMessage(TagBind)
	w.WriteCString(portalName)
	w.WriteCString(stmtName)

	w.WriteInt16(int16(len(params)))
	for _, p := range params {
		w.WriteInt16(int16(p.Format))
	}

	w.WriteInt16(int16(len(params)))
	for _, p := range params {
		w.WriteCounted(p.Value)
	}

	w.WriteInt16(int16(len(resultFormats)))
	for _, f := range resultFormats {
		w.WriteInt16(int16(f))
	}
	w.EndMessage()
}

// DescribeTarget selects whether a Describe message targets a prepared
// statement or a portal.
type DescribeTarget byte

const (
	DescribeStatement DescribeTarget = 'S'
	DescribePortal    DescribeTarget = 'P'
)

// WriteDescribe encodes a Describe message.
func WriteDescribe(w *WriteBuffer, target DescribeTarget, name string) {
	w.BeginMessage(TagDescribe)
	w.WriteByte(byte(target))
	w.WriteCString(name)
	w.EndMessage()
}

// WriteExecute encodes an Execute message. maxRows == 0 means "no limit".
func WriteExecute(w *WriteBuffer, portalName string, maxRows int32) {
	w.BeginMessage(TagExecute)
	w.WriteCString(portalName)
	w.WriteInt32(maxRows)
	w.EndMessage()
}

// WriteClose encodes a Close message for a statement or portal.
func WriteClose(w *WriteBuffer, target DescribeTarget, name string) {
	w.BeginMessage(TagClose)
	w.WriteByte(byte(target))
	w.WriteCString(name)
	w.EndMessage()
}

// WriteFlush encodes a Flush message.
func WriteFlush(w *WriteBuffer) {
	w.BeginMessage(TagFlush)
	w.EndMessage()
}

// WriteSync encodes a Sync message, the extended-query batch boundary.
func WriteSync(w *WriteBuffer) {
	w.BeginMessage(TagSync)
	w.EndMessage()
}

// WriteTerminate encodes a Terminate message.
func WriteTerminate(w *WriteBuffer) {
	w.BeginMessage(TagTerminate)
	w.EndMessage()
}

// WriteCopyData encodes a CopyData chunk.
func WriteCopyData(w *WriteBuffer, data []byte) {
	w.BeginMessage(TagCopyData)
	w.WriteBytes(data)
	w.EndMessage()
}

// WriteCopyDone encodes CopyDone.
func WriteCopyDone(w *WriteBuffer) {
	w.BeginMessage(TagCopyDone)
	w.EndMessage()
}

// WriteCopyFail encodes CopyFail with a caller-supplied reason.
func WriteCopyFail(w *WriteBuffer, reason string) {
	w.BeginMessage(TagCopyFail)
	w.WriteCString(reason)
	w.EndMessage()
}

// WriteStandbyStatusUpdate encodes a replication standby status update
// (CopyData payload with sub-tag 'r').
func WriteStandbyStatusUpdate(w *WriteBuffer, writtenLSN, flushedLSN, appliedLSN int64, clientTime int64, replyRequested bool) {
	w.BeginMessage(TagCopyData)
	w.WriteByte(ReplTagStandbyStatus)
	w.WriteInt64(writtenLSN)
	w.WriteInt64(flushedLSN)
	w.WriteInt64(appliedLSN)
	w.WriteInt64(clientTime)
	if replyRequested {
		w.WriteByte(1)
	} else {
		w.WriteByte(0)
	}
	w.EndMessage()
}
