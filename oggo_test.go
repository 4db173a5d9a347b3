package oggo

import (
	"context"
	"database/sql"
	"net"
	"testing"

	"oggo/protocol"
)

// fakeServer answers the startup handshake, then serves canned responses
// for the small set of statements the tests below issue.
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
			body, err := rb.ReadBytes(bodyLen)
			if err != nil {
				return
			}
			sql := string(body[:len(body)-1]) // trim the trailing NUL
			if err := s.answer(wb, sql); err != nil {
				return
			}
		default:
			if _, err := rb.ReadBytes(bodyLen); err != nil {
				return
			}
		}
	}
}

func (s *fakeServer) answer(wb *protocol.WriteBuffer, sql string) error {
	switch sql {
	case "BEGIN", "COMMIT", "ROLLBACK":
		wb.BeginMessage(protocol.TagCommandComplete)
		wb.WriteCString(sql)
		wb.EndMessage()
	case "UPDATE widgets SET name = 'x'":
		wb.BeginMessage(protocol.TagCommandComplete)
		wb.WriteCString("UPDATE 3")
		wb.EndMessage()
	default:
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
	}
	wb.BeginMessage(protocol.TagReadyForQuery)
	wb.WriteByte('I')
	wb.EndMessage()
	return wb.Flush()
}

func (s *fakeServer) close() { s.ln.Close() }

func (s *fakeServer) dsn(t *testing.T) string {
	t.Helper()
	host, port, err := net.SplitHostPort(s.ln.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	return "host=" + host + " port=" + port + " username=u database=d sslmode=disable pooling=true maxpoolsize=4 connectionpruninginterval=0"
}

func TestQueryContextReturnsRows(t *testing.T) {
	s := startFakeServer(t)
	defer s.close()

	db, err := sql.Open("oggo", s.dsn(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(context.Background(), "SELECT 1")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		t.Fatalf("columns: %v", err)
	}
	if len(cols) != 1 || cols[0] != "n" {
		t.Fatalf("columns = %v", cols)
	}

	n := 0
	for rows.Next() {
		n++
		var v string
		if err := rows.Scan(&v); err != nil {
			t.Fatalf("scan: %v", err)
		}
		if v != "1" {
			t.Fatalf("value = %q, want 1", v)
		}
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows err: %v", err)
	}
	if n != 1 {
		t.Fatalf("rows = %d, want 1", n)
	}
}

func TestExecContextReportsRowsAffected(t *testing.T) {
	s := startFakeServer(t)
	defer s.close()

	db, err := sql.Open("oggo", s.dsn(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	result, err := db.ExecContext(context.Background(), "UPDATE widgets SET name = 'x'")
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		t.Fatalf("rows affected: %v", err)
	}
	if n != 3 {
		t.Fatalf("rows affected = %d, want 3", n)
	}
}

func TestTxCommit(t *testing.T) {
	s := startFakeServer(t)
	defer s.close()

	db, err := sql.Open("oggo", s.dsn(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := tx.ExecContext(context.Background(), "SELECT 1"); err != nil {
		t.Fatalf("exec in tx: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestPreparedStatementReuse(t *testing.T) {
	s := startFakeServer(t)
	defer s.close()

	db, err := sql.Open("oggo", s.dsn(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	stmt, err := db.PrepareContext(context.Background(), "SELECT 1")
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	defer stmt.Close()

	for i := 0; i < 3; i++ {
		row := stmt.QueryRowContext(context.Background())
		var v string
		if err := row.Scan(&v); err != nil {
			t.Fatalf("iteration %d: scan: %v", i, err)
		}
		if v != "1" {
			t.Fatalf("iteration %d: value = %q", i, v)
		}
	}
}

func TestPingSucceeds(t *testing.T) {
	s := startFakeServer(t)
	defer s.close()

	db, err := sql.Open("oggo", s.dsn(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if err := db.PingContext(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
