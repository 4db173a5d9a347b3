package connector

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"oggo/connstring"
	"oggo/oglog"
	"oggo/protocol"
)

// fakeBackend drives one side of a net.Pipe as a minimal PostgreSQL
// backend for handshake/command tests, using the same protocol package
// the connector uses to read/write frames. Every method returns an error
// instead of failing the test directly, since it runs on a goroutine
// other than the one running the test.
type fakeBackend struct {
	rb *protocol.ReadBuffer
	wb *protocol.WriteBuffer
}

func newFakeBackend(conn net.Conn) *fakeBackend {
	return &fakeBackend{
		rb: protocol.NewReadBuffer(conn, protocol.DefaultBufferSize, "UTF8"),
		wb: protocol.NewWriteBuffer(conn, protocol.DefaultBufferSize),
	}
}

// readStartup consumes the untagged StartupMessage and returns its
// parameters.
func (b *fakeBackend) readStartup() (map[string]string, error) {
	length, err := b.rb.ReadInt32()
	if err != nil {
		return nil, fmt.Errorf("read startup length: %w", err)
	}
	version, err := b.rb.ReadInt32()
	if err != nil {
		return nil, fmt.Errorf("read startup version: %w", err)
	}
	if version != protocol.ProtocolVersion {
		return nil, fmt.Errorf("version = %d, want %d", version, protocol.ProtocolVersion)
	}
	params := map[string]string{}
	remaining := int(length) - 8
	for remaining > 0 {
		k, err := b.rb.ReadCString()
		if err != nil {
			return nil, fmt.Errorf("read startup key: %w", err)
		}
		if k == "" {
			remaining--
			break
		}
		v, err := b.rb.ReadCString()
		if err != nil {
			return nil, fmt.Errorf("read startup value: %w", err)
		}
		params[k] = v
		remaining -= len(k) + len(v) + 2
	}
	return params, nil
}

func (b *fakeBackend) authOK() error {
	b.wb.BeginMessage(protocol.TagAuthentication)
	b.wb.WriteInt32(protocol.AuthOK)
	b.wb.EndMessage()
	return b.finishHandshake()
}

func (b *fakeBackend) requestCleartext() error {
	b.wb.BeginMessage(protocol.TagAuthentication)
	b.wb.WriteInt32(protocol.AuthCleartextPassword)
	b.wb.EndMessage()
	if err := b.wb.Flush(); err != nil {
		return fmt.Errorf("flush auth request: %w", err)
	}
	tag, bodyLen, err := b.rb.ReadHeader()
	if err != nil {
		return fmt.Errorf("read password message: %w", err)
	}
	if tag != protocol.TagPasswordMessage {
		return fmt.Errorf("expected PasswordMessage, got %q", tag)
	}
	if _, err := b.rb.ReadBytes(bodyLen); err != nil {
		return fmt.Errorf("drain password: %w", err)
	}
	return b.authOK()
}

func (b *fakeBackend) finishHandshake() error {
	b.wb.BeginMessage(protocol.TagParameterStatus)
	b.wb.WriteCString("server_version")
	b.wb.WriteCString("15.0")
	b.wb.EndMessage()

	b.wb.BeginMessage(protocol.TagBackendKeyData)
	b.wb.WriteInt32(4242)
	b.wb.WriteInt32(9999)
	b.wb.EndMessage()

	b.wb.BeginMessage(protocol.TagReadyForQuery)
	b.wb.WriteByte('I')
	b.wb.EndMessage()

	if err := b.wb.Flush(); err != nil {
		return fmt.Errorf("flush handshake tail: %w", err)
	}
	return nil
}

// serveSimpleQuery answers one simple-query round trip with a single row.
func (b *fakeBackend) serveSimpleQuery() error {
	tag, bodyLen, err := b.rb.ReadHeader()
	if err != nil {
		return fmt.Errorf("read query: %w", err)
	}
	if tag != protocol.TagQuery {
		return fmt.Errorf("expected Query, got %q", tag)
	}
	if _, err := b.rb.ReadBytes(bodyLen); err != nil {
		return fmt.Errorf("drain query body: %w", err)
	}

	b.wb.BeginMessage(protocol.TagRowDescription)
	b.wb.WriteInt16(1)
	b.wb.WriteCString("n")
	b.wb.WriteInt32(0)
	b.wb.WriteInt16(0)
	b.wb.WriteInt32(23)
	b.wb.WriteInt16(4)
	b.wb.WriteInt32(-1)
	b.wb.WriteInt16(int16(protocol.FormatText))
	b.wb.EndMessage()

	b.wb.BeginMessage(protocol.TagDataRow)
	b.wb.WriteInt16(1)
	b.wb.WriteCounted([]byte("1"))
	b.wb.EndMessage()

	b.wb.BeginMessage(protocol.TagCommandComplete)
	b.wb.WriteCString("SELECT 1")
	b.wb.EndMessage()

	b.wb.BeginMessage(protocol.TagReadyForQuery)
	b.wb.WriteByte('I')
	b.wb.EndMessage()

	if err := b.wb.Flush(); err != nil {
		return fmt.Errorf("flush query response: %w", err)
	}
	return nil
}

func dialingConfig() *connstring.Config {
	cfg := connstring.Defaults()
	cfg.Username = "u"
	cfg.Database = "d"
	cfg.Password = "secret"
	cfg.SslMode = connstring.SslDisable
	return cfg
}

func newTestConnector(conn net.Conn) *Connector {
	c := &Connector{
		state:        Connecting,
		cfg:          dialingConfig(),
		host:         connstring.HostSpec{Host: "127.0.0.1", Port: 5432},
		serverParams: map[string]string{},
		prepared:     newPreparedCache(0, 5),
		log:          discardLogger{},
	}
	c.conn = conn
	c.rb = protocol.NewReadBuffer(conn, protocol.DefaultBufferSize, "UTF8")
	c.wb = protocol.NewWriteBuffer(conn, protocol.DefaultBufferSize)
	return c
}

func TestOpenCleartextHandshake(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	backendErr := make(chan error, 1)
	go func() {
		backend := newFakeBackend(server)
		params, err := backend.readStartup()
		if err != nil {
			backendErr <- err
			return
		}
		if params["user"] != "u" || params["database"] != "d" {
			backendErr <- fmt.Errorf("unexpected startup params: %+v", params)
			return
		}
		backendErr <- backend.requestCleartext()
	}()

	c := newTestConnector(client)
	if err := c.startup(context.Background(), nil); err != nil {
		t.Fatalf("startup: %v", err)
	}
	if err := <-backendErr; err != nil {
		t.Fatalf("fake backend: %v", err)
	}

	if c.backendPID != 4242 || c.backendSecret != 9999 {
		t.Fatalf("unexpected backend key data: pid=%d secret=%d", c.backendPID, c.backendSecret)
	}
	if v, _ := c.ServerParameter("server_version"); v != "15.0" {
		t.Fatalf("server_version = %q", v)
	}
}

func TestExecuteSimpleQueryRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	backendErr := make(chan error, 1)
	go func() {
		backend := newFakeBackend(server)
		if _, err := backend.readStartup(); err != nil {
			backendErr <- err
			return
		}
		if err := backend.authOK(); err != nil {
			backendErr <- err
			return
		}
		backendErr <- backend.serveSimpleQuery()
	}()

	c := newTestConnector(client)
	if err := c.startup(context.Background(), nil); err != nil {
		t.Fatalf("startup: %v", err)
	}
	c.state = Ready
	c.openedAt = time.Now()
	c.lastUsedAt = time.Now()

	stream, err := c.Execute(context.Background(), "SELECT 1", nil, time.Second)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	rows := 0
	for stream.Next() {
		rows++
		if len(stream.Row().Values) != 1 || string(stream.Row().Values[0]) != "1" {
			t.Fatalf("unexpected row: %+v", stream.Row())
		}
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if rows != 1 {
		t.Fatalf("rows = %d, want 1", rows)
	}
	if stream.CommandTag() != "SELECT 1" {
		t.Fatalf("tag = %q", stream.CommandTag())
	}
	if c.State() != Ready {
		t.Fatalf("state after execute = %s, want ready", c.State())
	}
	if err := <-backendErr; err != nil {
		t.Fatalf("fake backend: %v", err)
	}
}

func TestPreparedCachePromotionAndEviction(t *testing.T) {
	pc := newPreparedCache(2, 2)
	fp := fingerprint("SELECT $1", []int32{23})

	if _, ok := pc.touch(fp); ok {
		t.Fatal("expected cache miss on first use")
	}
	pc.recordMiss(fp)
	if pc.shouldPromote(fp) {
		t.Fatal("should not promote after a single use with minUsages=2")
	}
	pc.recordMiss(fp)
	if !pc.shouldPromote(fp) {
		t.Fatal("expected promotion eligibility after minUsages uses")
	}

	stmt, victim := pc.promote(fp, []int32{23})
	if victim != "" {
		t.Fatalf("unexpected victim on first promotion: %q", victim)
	}
	if stmt.name == "" {
		t.Fatal("expected a non-empty statement name")
	}

	got, ok := pc.touch(fp)
	if !ok || got.name != stmt.name {
		t.Fatal("expected cache hit for promoted fingerprint")
	}

	fp2 := fingerprint("SELECT $1, $2", []int32{23, 25})
	pc.recordMiss(fp2)
	pc.recordMiss(fp2)
	if _, victim2 := pc.promote(fp2, []int32{23, 25}); victim2 != "" {
		t.Fatalf("unexpected victim before cache is full: %q", victim2)
	}

	fp3 := fingerprint("SELECT $1, $2, $3", []int32{23, 25, 26})
	pc.recordMiss(fp3)
	pc.recordMiss(fp3)
	_, victim3 := pc.promote(fp3, []int32{23, 25, 26})
	if victim3 != stmt.name {
		t.Fatalf("expected LRU eviction of %q, got %q", stmt.name, victim3)
	}
	if _, ok := pc.touch(fp); ok {
		t.Fatal("expected evicted fingerprint to be gone")
	}
}

// discardLogger silences log output during tests.
type discardLogger struct{}

func (discardLogger) Trace(string, ...interface{}) {}
func (discardLogger) Debug(string, ...interface{}) {}
func (discardLogger) Info(string, ...interface{})  {}
func (discardLogger) Warn(string, ...interface{})  {}
func (discardLogger) Error(string, ...interface{}) {}
func (discardLogger) Named(string) oglog.Logger    { return discardLogger{} }
