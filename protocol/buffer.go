package protocol

import (
	"encoding/binary"
	"io"

	"oggo/ogerr"
)

const (
	// DefaultBufferSize matches the connection string default of 8 KiB
	// (ReadBufferSize/WriteBufferSize).
	DefaultBufferSize = 8192
	// MaxBufferSize is 64 KiB. ReadBuffer growth does not consult it, so it
	// does not cap how large a buffer may grow.
	MaxBufferSize = 64 * 1024
)

// ReadBuffer is the connector's owned inbound buffer: a byte array with a
// read cursor and a fill cursor, grown on demand to fit the largest
// message read so far; growth has no upper bound.
// It never interprets message semantics — only frames bytes.
type ReadBuffer struct {
	r        io.Reader
	buf      []byte
	pos      int // next unread byte
	end      int // one past last filled byte
	encoding string
}

// NewReadBuffer wraps r with an inbound buffer of the given initial size.
func NewReadBuffer(r io.Reader, size int, encoding string) *ReadBuffer {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &ReadBuffer{r: r, buf: make([]byte, size), encoding: encoding}
}

// ensure guarantees n unread bytes are buffered, growing and compacting
// the backing array as needed. It fails with ogerr.Broken if EOF is
// reached mid-message.
func (b *ReadBuffer) ensure(n int) error {
	if b.end-b.pos >= n {
		return nil
	}
	if b.pos > 0 {
		copy(b.buf, b.buf[b.pos:b.end])
		b.end -= b.pos
		b.pos = 0
	}
	if n > len(b.buf) {
		grown := make([]byte, n)
		copy(grown, b.buf[:b.end])
		b.buf = grown
	}
	for b.end < n {
		m, err := b.r.Read(b.buf[b.end:])
		b.end += m
		if err != nil {
			if err == io.EOF {
				return ogerr.New(ogerr.Broken, "connection closed mid-message")
			}
			return ogerr.Wrap(ogerr.Broken, err, "read frame")
		}
	}
	return nil
}

// ReadByte consumes and returns a single byte.
func (b *ReadBuffer) ReadByte() (byte, error) {
	if err := b.ensure(1); err != nil {
		return 0, err
	}
	v := b.buf[b.pos]
	b.pos++
	return v, nil
}

// ReadInt16 consumes a big-endian int16.
func (b *ReadBuffer) ReadInt16() (int16, error) {
	if err := b.ensure(2); err != nil {
		return 0, err
	}
	v := int16(binary.BigEndian.Uint16(b.buf[b.pos:]))
	b.pos += 2
	return v, nil
}

// ReadUint16 consumes a big-endian uint16.
func (b *ReadBuffer) ReadUint16() (uint16, error) {
	v, err := b.ReadInt16()
	return uint16(v), err
}

// ReadInt32 consumes a big-endian int32.
func (b *ReadBuffer) ReadInt32() (int32, error) {
	if err := b.ensure(4); err != nil {
		return 0, err
	}
	v := int32(binary.BigEndian.Uint32(b.buf[b.pos:]))
	b.pos += 4
	return v, nil
}

// ReadUint32 consumes a big-endian uint32.
func (b *ReadBuffer) ReadUint32() (uint32, error) {
	v, err := b.ReadInt32()
	return uint32(v), err
}

// ReadInt64 consumes a big-endian int64 (used by LSNs and replication
// timestamps).
func (b *ReadBuffer) ReadInt64() (int64, error) {
	if err := b.ensure(8); err != nil {
		return 0, err
	}
	v := int64(binary.BigEndian.Uint64(b.buf[b.pos:]))
	b.pos += 8
	return v, nil
}

// ReadBytes consumes and returns exactly n raw bytes. The returned slice
// aliases the internal buffer and is only valid until the next read.
func (b *ReadBuffer) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, ogerr.New(ogerr.ProtocolViolation, "negative length in frame")
	}
	if err := b.ensure(n); err != nil {
		return nil, err
	}
	v := b.buf[b.pos : b.pos+n]
	b.pos += n
	return v, nil
}

// CopyBytes behaves like ReadBytes but returns an owned copy, safe to
// retain past the next read (used for row values handed to callers).
func (b *ReadBuffer) CopyBytes(n int) ([]byte, error) {
	v, err := b.ReadBytes(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// ReadCString consumes bytes up to and including a NUL terminator and
// returns the string without the terminator.
func (b *ReadBuffer) ReadCString() (string, error) {
	var start = b.pos
	for {
		for i := start; i < b.end; i++ {
			if b.buf[i] == 0 {
				s := string(b.buf[b.pos:i])
				b.pos = i + 1
				return s, nil
			}
		}
		start = b.end
		if err := b.growAndFillOne(); err != nil {
			return "", err
		}
	}
}

// growAndFillOne pulls in at least one more byte for ReadCString's scan,
// growing the buffer if it is already full.
func (b *ReadBuffer) growAndFillOne() error {
	if b.pos > 0 {
		copy(b.buf, b.buf[b.pos:b.end])
		b.end -= b.pos
		b.pos = 0
	}
	if b.end == len(b.buf) {
		grown := make([]byte, len(b.buf)*2)
		copy(grown, b.buf[:b.end])
		b.buf = grown
	}
	m, err := b.r.Read(b.buf[b.end:])
	b.end += m
	if err != nil {
		if err == io.EOF {
			return ogerr.New(ogerr.Broken, "connection closed mid-message")
		}
		return ogerr.Wrap(ogerr.Broken, err, "read frame")
	}
	return nil
}

// ReadString consumes exactly len bytes and returns them as a string.
func (b *ReadBuffer) ReadString(length int) (string, error) {
	v, err := b.ReadBytes(length)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// ReadHeader reads a message's 1-byte tag and 4-byte big-endian length
// (inclusive of the length field itself), returning the tag and the
// remaining body length.
func (b *ReadBuffer) ReadHeader() (tag byte, bodyLen int, err error) {
	tag, err = b.ReadByte()
	if err != nil {
		return 0, 0, err
	}
	length, err := b.ReadInt32()
	if err != nil {
		return 0, 0, err
	}
	if length < 4 {
		return 0, 0, ogerr.Newf(ogerr.ProtocolViolation, "message length %d shorter than length field", length)
	}
	return tag, int(length) - 4, nil
}

// WriteBuffer is the connector's owned outbound buffer: a byte array, a
// write cursor, and a running outbound byte counter.
type WriteBuffer struct {
	w            io.Writer
	buf          []byte
	msgStart     int
	outboundByte int64
}

// NewWriteBuffer wraps w with an outbound buffer of the given capacity.
func NewWriteBuffer(w io.Writer, size int) *WriteBuffer {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &WriteBuffer{w: w, buf: make([]byte, 0, size)}
}

// BeginMessage starts a new tagged message, reserving space for the
// length field to be back-patched by EndMessage.
func (w *WriteBuffer) BeginMessage(tag byte) {
	w.msgStart = len(w.buf)
	w.buf = append(w.buf, tag, 0, 0, 0, 0)
}

// EndMessage back-patches the length field of the message begun by the
// most recent BeginMessage call.
func (w *WriteBuffer) EndMessage() {
	length := uint32(len(w.buf) - w.msgStart - 1)
	binary.BigEndian.PutUint32(w.buf[w.msgStart+1:w.msgStart+5], length)
}

func (w *WriteBuffer) WriteByte(v byte) { w.buf = append(w.buf, v) }

func (w *WriteBuffer) WriteInt16(v int16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(v))
}

func (w *WriteBuffer) WriteInt32(v int32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(v))
}

func (w *WriteBuffer) WriteInt64(v int64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(v))
}

func (w *WriteBuffer) WriteBytes(v []byte) { w.buf = append(w.buf, v...) }

func (w *WriteBuffer) WriteCString(s string) {
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}

// WriteCounted writes a big-endian int32 length followed by v, using -1
// for a nil v (the wire protocol's NULL marker for parameter/column
// values).
func (w *WriteBuffer) WriteCounted(v []byte) {
	if v == nil {
		w.WriteInt32(-1)
		return
	}
	w.WriteInt32(int32(len(v)))
	w.buf = append(w.buf, v...)
}

// WriteStartupPacket writes the untagged startup packet: a 4-byte
// length, the protocol version, then NUL-terminated key/value pairs, then
// a trailing NUL. Startup packets have no leading tag byte.
func (w *WriteBuffer) WriteStartupPacket(version int32, params [][2]string) {
	start := len(w.buf)
	w.buf = append(w.buf, 0, 0, 0, 0)
	w.WriteInt32(version)
	for _, kv := range params {
		w.WriteCString(kv[0])
		w.WriteCString(kv[1])
	}
	w.buf = append(w.buf, 0)
	binary.BigEndian.PutUint32(w.buf[start:start+4], uint32(len(w.buf)-start))
}

// WriteCancelRequest writes the untagged CancelRequest packet.
func (w *WriteBuffer) WriteCancelRequest(pid, secret int32) {
	start := len(w.buf)
	w.buf = append(w.buf, 0, 0, 0, 0)
	w.WriteInt32(CancelRequestCode)
	w.WriteInt32(pid)
	w.WriteInt32(secret)
	binary.BigEndian.PutUint32(w.buf[start:start+4], uint32(len(w.buf)-start))
}

// WriteSSLRequest writes the untagged SSLRequest packet.
func (w *WriteBuffer) WriteSSLRequest() {
	start := len(w.buf)
	w.buf = append(w.buf, 0, 0, 0, 0)
	w.WriteInt32(SSLRequestCode)
	binary.BigEndian.PutUint32(w.buf[start:start+4], uint32(len(w.buf)-start))
}

// Len reports the number of buffered, unflushed bytes.
func (w *WriteBuffer) Len() int { return len(w.buf) }

// OutboundBytes reports the cumulative number of bytes written to the
// underlying writer across the lifetime of this buffer.
func (w *WriteBuffer) OutboundBytes() int64 { return w.outboundByte }

// Flush writes any buffered bytes to the underlying writer and resets
// the buffer. Flush writes whatever has been buffered, however large;
// WriteDirect is the unbuffered alternative.
func (w *WriteBuffer) Flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	n, err := w.w.Write(w.buf)
	w.outboundByte += int64(n)
	w.buf = w.buf[:0]
	if err != nil {
		return ogerr.Wrap(ogerr.Broken, err, "flush")
	}
	return nil
}

// WriteDirect flushes any buffered bytes, then writes payload straight to
// the underlying writer, bypassing the buffer. No caller in the driver
// uses it; CopyData chunks go through the buffer and Flush.
func (w *WriteBuffer) WriteDirect(payload []byte) error {
	if err := w.Flush(); err != nil {
		return err
	}
	n, err := w.w.Write(payload)
	w.outboundByte += int64(n)
	if err != nil {
		return ogerr.Wrap(ogerr.Broken, err, "direct write")
	}
	return nil
}
