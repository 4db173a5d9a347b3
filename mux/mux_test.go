package mux

import (
	"context"
	"net"
	"testing"
	"time"

	"oggo/connstring"
	"oggo/pool"
	"oggo/protocol"
)

// fakeServer answers the startup handshake and a fixed one-row response
// to every simple query, enough to exercise the scheduler's batching
// without a real backend.
type fakeServer struct {
	ln net.Listener
}

func startFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &fakeServer{ln: ln}
	go s.acceptLoop()
	return s
}

func (s *fakeServer) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.serve(conn)
	}
}

func (s *fakeServer) serve(conn net.Conn) {
	defer conn.Close()
	rb := protocol.NewReadBuffer(conn, protocol.DefaultBufferSize, "UTF8")
	wb := protocol.NewWriteBuffer(conn, protocol.DefaultBufferSize)

	length, err := rb.ReadInt32()
	if err != nil {
		return
	}
	if _, err := rb.ReadInt32(); err != nil {
		return
	}
	if _, err := rb.ReadBytes(int(length) - 8); err != nil {
		return
	}

	wb.BeginMessage(protocol.TagAuthentication)
	wb.WriteInt32(protocol.AuthOK)
	wb.EndMessage()
	wb.BeginMessage(protocol.TagBackendKeyData)
	wb.WriteInt32(1)
	wb.WriteInt32(2)
	wb.EndMessage()
	wb.BeginMessage(protocol.TagReadyForQuery)
	wb.WriteByte('I')
	wb.EndMessage()
	if err := wb.Flush(); err != nil {
		return
	}

	for {
		tag, bodyLen, err := rb.ReadHeader()
		if err != nil {
			return
		}
		switch tag {
		case protocol.TagQuery:
			if _, err := rb.ReadBytes(bodyLen); err != nil {
				return
			}
			wb.BeginMessage(protocol.TagRowDescription)
			wb.WriteInt16(1)
			wb.WriteCString("n")
			wb.WriteInt32(0)
			wb.WriteInt16(0)
			wb.WriteInt32(23)
			wb.WriteInt16(4)
			wb.WriteInt32(-1)
			wb.WriteInt16(int16(protocol.FormatText))
			wb.EndMessage()
			wb.BeginMessage(protocol.TagDataRow)
			wb.WriteInt16(1)
			wb.WriteCounted([]byte("1"))
			wb.EndMessage()
			wb.BeginMessage(protocol.TagCommandComplete)
			wb.WriteCString("SELECT 1")
			wb.EndMessage()
			wb.BeginMessage(protocol.TagReadyForQuery)
			wb.WriteByte('I')
			wb.EndMessage()
			if err := wb.Flush(); err != nil {
				return
			}
		default:
			if _, err := rb.ReadBytes(bodyLen); err != nil {
				return
			}
		}
	}
}

func (s *fakeServer) close() { s.ln.Close() }

func (s *fakeServer) config(t *testing.T) *connstring.Config {
	t.Helper()
	host, portStr, err := net.SplitHostPort(s.ln.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	cfg, err := connstring.Parse("host=" + host + " port=" + portStr + " username=u database=d sslmode=disable multiplexing=true pooling=true")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg.Timeout = 2 * time.Second
	cfg.ConnectionPruningInterval = 0
	cfg.MaxPoolSize = 4
	return cfg
}

func TestSchedulerCompletesSubmittedHandles(t *testing.T) {
	s := startFakeServer(t)
	defer s.close()

	cfg := s.config(t)
	p := pool.New(cfg)
	defer p.Close()

	sched := New(p, cfg)
	sched.Run()
	defer sched.Close()

	ctx := context.Background()
	const n = 10
	handles := make([]*CommandHandle, n)
	for i := 0; i < n; i++ {
		handles[i] = sched.Submit("SELECT 1", nil, time.Second)
	}

	for i, h := range handles {
		result, err := h.Wait(ctx)
		if err != nil {
			t.Fatalf("handle %d: %v", i, err)
		}
		if result.CommandTag != "SELECT 1" {
			t.Fatalf("handle %d: tag = %q", i, result.CommandTag)
		}
		if len(result.Rows) != 1 || string(result.Rows[0].Values[0]) != "1" {
			t.Fatalf("handle %d: unexpected rows: %+v", i, result.Rows)
		}
	}

	avgCommands, _ := sched.Metrics()
	if avgCommands <= 0 {
		t.Fatalf("expected a positive average commands per batch, got %v", avgCommands)
	}
}

func TestCancelBeforeWriteCompletesImmediately(t *testing.T) {
	s := startFakeServer(t)
	defer s.close()

	cfg := s.config(t)
	p := pool.New(cfg)
	defer p.Close()

	sched := New(p, cfg)
	// Note: writer task is not started, so the handle can never be written.

	h := sched.Submit("SELECT 1", nil, time.Second)
	if err := h.Cancel(context.Background()); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	result, err := h.Wait(context.Background())
	if err == nil {
		t.Fatal("expected canceled handle to complete with an error")
	}
	if result != nil {
		t.Fatalf("expected nil result for a canceled handle, got %+v", result)
	}
}
