package pool

import (
	"context"
	"net"
	"testing"
	"time"

	"oggo/connstring"
	"oggo/protocol"
)

// fakeServer accepts TCP connections and answers the minimal startup
// handshake plus one always-succeeding simple query, enough to exercise
// Pool.Rent/Return without a real openGauss/PostgreSQL backend.
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
	if _, err := rb.ReadInt32(); err != nil { // version
		return
	}
	remaining := int(length) - 8
	if _, err := rb.ReadBytes(remaining); err != nil {
		return
	}

	wb.BeginMessage(protocol.TagAuthentication)
	wb.WriteInt32(protocol.AuthOK)
	wb.EndMessage()
	wb.BeginMessage(protocol.TagParameterStatus)
	wb.WriteCString("server_version")
	wb.WriteCString("15.0")
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
			wb.BeginMessage(protocol.TagCommandComplete)
			wb.WriteCString("DISCARD ALL")
			wb.EndMessage()
			wb.BeginMessage(protocol.TagReadyForQuery)
			wb.WriteByte('I')
			wb.EndMessage()
			if err := wb.Flush(); err != nil {
				return
			}
		case protocol.TagTerminate:
			return
		default:
			if _, err := rb.ReadBytes(bodyLen); err != nil {
				return
			}
		}
	}
}

func (s *fakeServer) close() { s.ln.Close() }

func (s *fakeServer) config(t *testing.T, maxPoolSize int) *connstring.Config {
	t.Helper()
	host, portStr, err := net.SplitHostPort(s.ln.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	cfg, err := connstring.Parse("host=" + host + " port=" + portStr + " username=u database=d sslmode=disable")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg.MaxPoolSize = maxPoolSize
	cfg.Timeout = 2 * time.Second
	cfg.ConnectionPruningInterval = 0
	return cfg
}

func TestRentReturnReusesIdleConnector(t *testing.T) {
	s := startFakeServer(t)
	defer s.close()

	p := New(s.config(t, 2))
	defer p.Close()

	ctx := context.Background()
	c1, err := p.Rent(ctx)
	if err != nil {
		t.Fatalf("rent: %v", err)
	}
	host := c1.HostSpec()
	pid := c1.BackendPID()
	p.Return(c1, host, false)

	if stats := p.Stats(); stats.Idle != 1 || stats.Busy != 0 {
		t.Fatalf("stats after return = %+v", stats)
	}

	c2, err := p.Rent(ctx)
	if err != nil {
		t.Fatalf("rent again: %v", err)
	}
	if c2.BackendPID() != pid {
		t.Fatalf("expected the idle connector to be reused")
	}
	p.Return(c2, host, false)
}

func TestRentBlocksAtMaxPoolSizeAndTimesOut(t *testing.T) {
	s := startFakeServer(t)
	defer s.close()

	cfg := s.config(t, 1)
	cfg.Timeout = 200 * time.Millisecond
	p := New(cfg)
	defer p.Close()

	ctx := context.Background()
	c1, err := p.Rent(ctx)
	if err != nil {
		t.Fatalf("rent: %v", err)
	}

	_, err = p.Rent(ctx)
	if err == nil {
		t.Fatal("expected second rent to time out while pool is at MaxPoolSize")
	}

	p.Return(c1, c1.HostSpec(), false)
}

func TestRentWakesWaiterOnReturn(t *testing.T) {
	s := startFakeServer(t)
	defer s.close()

	cfg := s.config(t, 1)
	cfg.Timeout = 2 * time.Second
	p := New(cfg)
	defer p.Close()

	ctx := context.Background()
	c1, err := p.Rent(ctx)
	if err != nil {
		t.Fatalf("rent: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		c2, err := p.Rent(ctx)
		if err == nil {
			p.Return(c2, c2.HostSpec(), false)
		}
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	p.Return(c1, c1.HostSpec(), false)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("waiter rent: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was never woken")
	}
}
