package protocol

import (
	"bytes"
	"testing"
)

func TestFrontendBackendRoundTrip(t *testing.T) {
	var out bytes.Buffer
	w := NewWriteBuffer(&out, DefaultBufferSize)

	WriteParse(w, "stmt1", "SELECT $1", []int32{23})
	WriteBind(w, "", "stmt1", []Parameter{{Value: []byte("42"), Format: FormatText}}, []FieldFormat{FormatText})
	WriteDescribe(w, DescribePortal, "")
	WriteExecute(w, "", 0)
	WriteSync(w)

	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	r := NewReadBuffer(&out, DefaultBufferSize, "UTF8")

	tag, bodyLen, err := r.ReadHeader()
	if err != nil {
		t.Fatalf("read header: %v", err)
	}
	if tag != TagParse {
		t.Fatalf("tag = %q, want Parse", tag)
	}
	name, err := r.ReadCString()
	if err != nil || name != "stmt1" {
		t.Fatalf("stmt name = %q, %v", name, err)
	}
	sql, err := r.ReadCString()
	if err != nil || sql != "SELECT $1" {
		t.Fatalf("sql = %q, %v", sql, err)
	}
	nParams, err := r.ReadInt16()
	if err != nil || nParams != 1 {
		t.Fatalf("nParams = %d, %v", nParams, err)
	}
	oid, err := r.ReadInt32()
	if err != nil || oid != 23 {
		t.Fatalf("oid = %d, %v", oid, err)
	}
	_ = bodyLen

	tag, _, err = r.ReadHeader()
	if err != nil || tag != TagBind {
		t.Fatalf("expected Bind, got %q, %v", tag, err)
	}
	// drain rest of Bind body by decoding it structurally.
	portal, _ := r.ReadCString()
	stmt, _ := r.ReadCString()
	if portal != "" || stmt != "stmt1" {
		t.Fatalf("bind portal/stmt = %q/%q", portal, stmt)
	}
	nFormats, _ := r.ReadInt16()
	for i := int16(0); i < nFormats; i++ {
		r.ReadInt16()
	}
	nVals, _ := r.ReadInt16()
	for i := int16(0); i < nVals; i++ {
		l, _ := r.ReadInt32()
		if l >= 0 {
			r.ReadBytes(int(l))
		}
	}
	nResultFormats, _ := r.ReadInt16()
	for i := int16(0); i < nResultFormats; i++ {
		r.ReadInt16()
	}

	tag, _, err = r.ReadHeader()
	if err != nil || tag != TagDescribe {
		t.Fatalf("expected Describe, got %q, %v", tag, err)
	}
	target, _ := r.ReadByte()
	dname, _ := r.ReadCString()
	if DescribeTarget(target) != DescribePortal || dname != "" {
		t.Fatalf("describe target/name = %c/%q", target, dname)
	}

	tag, _, err = r.ReadHeader()
	if err != nil || tag != TagExecute {
		t.Fatalf("expected Execute, got %q, %v", tag, err)
	}
	ePortal, _ := r.ReadCString()
	maxRows, _ := r.ReadInt32()
	if ePortal != "" || maxRows != 0 {
		t.Fatalf("execute portal/maxRows = %q/%d", ePortal, maxRows)
	}

	tag, bodyLen, err = r.ReadHeader()
	if err != nil || tag != TagSync || bodyLen != 0 {
		t.Fatalf("expected empty Sync, got %q len=%d %v", tag, bodyLen, err)
	}
}

func TestDecodeRowDescriptionAndDataRow(t *testing.T) {
	var out bytes.Buffer
	w := NewWriteBuffer(&out, DefaultBufferSize)

	w.BeginMessage(TagRowDescription)
	w.WriteInt16(1)
	w.WriteCString("id")
	w.WriteInt32(0)
	w.WriteInt16(0)
	w.WriteInt32(23)
	w.WriteInt16(4)
	w.WriteInt32(-1)
	w.WriteInt16(int16(FormatText))
	w.EndMessage()

	w.BeginMessage(TagDataRow)
	w.WriteInt16(1)
	w.WriteCounted([]byte("1"))
	w.EndMessage()

	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	r := NewReadBuffer(&out, DefaultBufferSize, "UTF8")

	tag, bodyLen, err := r.ReadHeader()
	if err != nil || tag != TagRowDescription {
		t.Fatalf("expected RowDescription, got %q, %v", tag, err)
	}
	_ = bodyLen
	rd, err := DecodeRowDescription(r)
	if err != nil {
		t.Fatalf("decode row description: %v", err)
	}
	if len(rd.Fields) != 1 || rd.Fields[0].Name != "id" || rd.Fields[0].DataTypeOID != 23 {
		t.Fatalf("unexpected row description: %+v", rd)
	}

	tag, _, err = r.ReadHeader()
	if err != nil || tag != TagDataRow {
		t.Fatalf("expected DataRow, got %q, %v", tag, err)
	}
	dr, err := DecodeDataRow(r)
	if err != nil {
		t.Fatalf("decode data row: %v", err)
	}
	if len(dr.Values) != 1 || string(dr.Values[0]) != "1" {
		t.Fatalf("unexpected data row: %+v", dr)
	}
}

func TestDecodeErrorResponse(t *testing.T) {
	var out bytes.Buffer
	w := NewWriteBuffer(&out, DefaultBufferSize)
	w.BeginMessage(TagErrorResponse)
	w.WriteByte('S')
	w.WriteCString("ERROR")
	w.WriteByte('C')
	w.WriteCString("42601")
	w.WriteByte('M')
	w.WriteCString("syntax error")
	w.WriteByte(0)
	w.EndMessage()
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	r := NewReadBuffer(&out, DefaultBufferSize, "UTF8")
	tag, bodyLen, err := r.ReadHeader()
	if err != nil || tag != TagErrorResponse {
		t.Fatalf("expected ErrorResponse, got %q, %v", tag, err)
	}
	e, err := DecodeErrorOrNotice(r, bodyLen)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if e.Severity != "ERROR" || e.SQLState != "42601" || e.Message != "syntax error" {
		t.Fatalf("unexpected fields: %+v", e)
	}
}

func TestReadBufferGrowsPastInitialSize(t *testing.T) {
	var out bytes.Buffer
	w := NewWriteBuffer(&out, 16)
	longName := make([]byte, 100)
	for i := range longName {
		longName[i] = 'a'
	}
	w.BeginMessage(TagParameterStatus)
	w.WriteBytes(longName)
	w.WriteByte(0)
	w.WriteCString("v")
	w.EndMessage()
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	r := NewReadBuffer(&out, 8, "UTF8")
	tag, _, err := r.ReadHeader()
	if err != nil || tag != TagParameterStatus {
		t.Fatalf("expected ParameterStatus, got %q, %v", tag, err)
	}
	ps, err := DecodeParameterStatus(r)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ps.Name != string(longName) || ps.Value != "v" {
		t.Fatalf("unexpected name/value: %q/%q", ps.Name, ps.Value)
	}
}
