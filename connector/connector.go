// Package connector implements the client-side connection lifecycle: the
// state machine, the authentication handshake, command execution over the
// simple and extended query sub-protocols, cancellation, keepalive, reset,
// and TLS upgrade. One goroutine drives a state machine over a socket,
// the same shape a backend connection handler uses, turned around to
// speak the frontend role instead.
package connector

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"oggo/auth"
	"oggo/connstring"
	"oggo/oglog"
	"oggo/ogerr"
	"oggo/protocol"
)

// State is one of the connector's lifecycle states.
type State int

const (
	Closed State = iota
	Connecting
	Ready
	Executing
	Fetching
	CopyIn
	CopyOut
	Broken
	Replication
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	case Executing:
		return "executing"
	case Fetching:
		return "fetching"
	case CopyIn:
		return "copy_in"
	case CopyOut:
		return "copy_out"
	case Broken:
		return "broken"
	case Replication:
		return "replication"
	default:
		return "unknown"
	}
}

// NoticeHandler receives asynchronous NoticeResponse bags.
type NoticeHandler func(ogerr.ServerFields)

// ParameterStatusHandler receives ParameterStatus updates as they arrive.
type ParameterStatusHandler func(name, value string)

// NotificationHandler receives LISTEN/NOTIFY payloads.
type NotificationHandler func(*protocol.NotificationResponse)

// Connector owns one physical socket and drives it through its lifecycle
// states. It is not safe for concurrent command submission except in the
// mux package's writer/reader split, which serializes writes and reads
// separately by construction.
type Connector struct {
	mu    sync.Mutex
	state State

	conn net.Conn
	rb   *protocol.ReadBuffer
	wb   *protocol.WriteBuffer

	cfg  *connstring.Config
	host connstring.HostSpec
	log  oglog.Logger

	backendPID    int32
	backendSecret int32
	serverParams  map[string]string

	prepared *preparedCache

	openedAt   time.Time
	lastUsedAt time.Time

	currentDone chan struct{}

	onNotice          NoticeHandler
	onParameterStatus ParameterStatusHandler
	onNotification    NotificationHandler
}

// Open dials host, performs the optional TLS upgrade, the startup
// handshake, and the authentication sub-protocol, and leaves the
// connector in the Ready state. It fails with ConnectionFailed,
// AuthenticationFailed, Timeout, or Canceled.
func Open(ctx context.Context, cfg *connstring.Config, host connstring.HostSpec, provider auth.TokenProvider) (*Connector, error) {
	c := &Connector{
		state:        Connecting,
		cfg:          cfg,
		host:         host,
		log:          oglog.Default().Named("connector"),
		serverParams: map[string]string{},
		prepared:     newPreparedCache(cfg.MaxAutoPrepare, cfg.AutoPrepareMinUsages),
	}

	dialer := net.Dialer{Timeout: cfg.Timeout}
	addr := fmt.Sprintf("%s:%d", host.Host, host.Port)
	if cfg.UnixSocket {
		addr = connstring.UnixSocketFile(host.Host, host.Port)
	}
	network := "tcp"
	if cfg.UnixSocket {
		network = "unix"
	}

	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		c.state = Broken
		return nil, ogerr.Wrapf(ogerr.ConnectionFailed, err, "dial %s", addr)
	}
	c.conn = conn

	if !cfg.UnixSocket && cfg.SslMode != connstring.SslDisable {
		upgraded, err := upgradeTLS(conn, cfg, host.Host)
		if err != nil {
			conn.Close()
			c.state = Broken
			return nil, err
		}
		c.conn = upgraded
	}

	c.rb = protocol.NewReadBuffer(c.conn, cfg.ReadBufferSize, cfg.ClientEncoding)
	c.wb = protocol.NewWriteBuffer(c.conn, cfg.WriteBufferSize)

	if err := c.startup(ctx, provider); err != nil {
		c.conn.Close()
		c.state = Broken
		return nil, err
	}

	c.state = Ready
	now := time.Now()
	c.openedAt, c.lastUsedAt = now, now
	c.log.Debug("open", "host", host.Host, "port", host.Port)
	return c, nil
}

func (c *Connector) startupParams() [][2]string {
	params := [][2]string{
		{"user", c.cfg.Username},
	}
	if c.cfg.Database != "" {
		params = append(params, [2]string{"database", c.cfg.Database})
	}
	if c.cfg.ApplicationName != "" {
		params = append(params, [2]string{"application_name", c.cfg.ApplicationName})
	}
	if c.cfg.ClientEncoding != "" {
		params = append(params, [2]string{"client_encoding", connstring.CanonicalEncodingName(c.cfg.ClientEncoding)})
	}
	if c.cfg.SearchPath != "" {
		params = append(params, [2]string{"search_path", c.cfg.SearchPath})
	}
	if c.cfg.TimeZone != "" {
		params = append(params, [2]string{"TimeZone", c.cfg.TimeZone})
	}
	if c.cfg.Options != "" {
		params = append(params, [2]string{"options", c.cfg.Options})
	}
	return params
}

// startup writes the StartupMessage, completes authentication, and reads
// through BackendKeyData and the trailing ReadyForQuery.
func (c *Connector) startup(ctx context.Context, provider auth.TokenProvider) error {
	protocol.WriteStartup(c.wb, c.startupParams())
	if err := c.wb.Flush(); err != nil {
		return err
	}

	haveBackendKey := false
	for {
		tag, bodyLen, err := c.rb.ReadHeader()
		if err != nil {
			return ogerr.Wrap(ogerr.ConnectionFailed, err, "read startup response")
		}
		switch tag {
		case protocol.TagAuthentication:
			req, err := protocol.DecodeAuthentication(c.rb, bodyLen)
			if err != nil {
				return err
			}
			done, err := c.handleAuth(ctx, req, provider)
			if err != nil {
				return err
			}
			if done {
				continue
			}
		case protocol.TagParameterStatus:
			ps, err := protocol.DecodeParameterStatus(c.rb)
			if err != nil {
				return err
			}
			c.serverParams[ps.Name] = ps.Value
		case protocol.TagBackendKeyData:
			bkd, err := protocol.DecodeBackendKeyData(c.rb)
			if err != nil {
				return err
			}
			c.backendPID, c.backendSecret = bkd.PID, bkd.Secret
			haveBackendKey = true
		case protocol.TagNoticeResponse:
			if _, err := c.readNotice(bodyLen); err != nil {
				return err
			}
		case protocol.TagReadyForQuery:
			if !haveBackendKey {
				return ogerr.New(ogerr.ProtocolViolation, "ReadyForQuery received before BackendKeyData")
			}
			if _, err := protocol.DecodeReadyForQuery(c.rb); err != nil {
				return err
			}
			return nil
		case protocol.TagErrorResponse:
			return c.errorResponse(bodyLen, ogerr.AuthenticationFailed)
		default:
			if _, err := c.rb.ReadBytes(bodyLen); err != nil {
				return err
			}
		}
	}
}

// handleAuth dispatches one Authentication sub-message. It returns
// done=true once AuthenticationOk has been observed (the caller keeps
// reading the remaining startup messages regardless).
func (c *Connector) handleAuth(ctx context.Context, req *protocol.AuthenticationRequest, provider auth.TokenProvider) (bool, error) {
	switch req.Code {
	case protocol.AuthOK:
		return true, nil
	case protocol.AuthCleartextPassword:
		protocol.WritePasswordMessage(c.wb, append([]byte(c.cfg.LookupPassword(c.host.Host, c.host.Port)), 0))
		return false, c.wb.Flush()
	case protocol.AuthMD5Password:
		digest := auth.MD5Digest(c.cfg.Username, c.cfg.LookupPassword(c.host.Host, c.host.Port), req.MD5Salt)
		protocol.WritePasswordMessage(c.wb, append([]byte(digest), 0))
		return false, c.wb.Flush()
	case protocol.AuthSHA256:
		password := c.cfg.LookupPassword(c.host.Host, c.host.Port)
		switch req.PasswordStoredMethod {
		case protocol.PasswordStoredMD5:
			digest := auth.MD5Digest(c.cfg.Username, password, req.MD5Salt)
			protocol.WritePasswordMessage(c.wb, append([]byte(digest), 0))
		default:
			proof, err := auth.SHA256ClientProof(password, req.Random64Code, req.Token, req.Iteration)
			if err != nil {
				return false, err
			}
			protocol.WritePasswordMessage(c.wb, append([]byte(proof), 0))
		}
		return false, c.wb.Flush()
	case protocol.AuthMD5SHA256:
		password := c.cfg.LookupPassword(c.host.Host, c.host.Port)
		digest := auth.MD5SHA256Digest(password, req.Random64Code, req.MD5Salt)
		protocol.WritePasswordMessage(c.wb, append([]byte(digest), 0))
		return false, c.wb.Flush()
	case protocol.AuthGSS, protocol.AuthSSPI, protocol.AuthGSSContinue:
		if provider == nil {
			return false, ogerr.New(ogerr.AuthenticationFailed, "server requested GSS/SSPI authentication but no TokenProvider was configured")
		}
		var token []byte
		var err error
		if req.Code == protocol.AuthGSSContinue {
			var done bool
			token, done, err = provider.Continue(ctx, req.Opaque)
			if err != nil {
				return false, ogerr.Wrap(ogerr.AuthenticationFailed, err, "GSS continue")
			}
			if done && len(token) == 0 {
				return false, nil
			}
		} else {
			token, err = provider.InitialToken(ctx, c.host.Host, "postgres")
			if err != nil {
				return false, ogerr.Wrap(ogerr.AuthenticationFailed, err, "GSS initial token")
			}
		}
		protocol.WritePasswordMessage(c.wb, token)
		return false, c.wb.Flush()
	default:
		return false, ogerr.Newf(ogerr.AuthenticationFailed, "unsupported authentication code %d", req.Code)
	}
}

func (c *Connector) readNotice(bodyLen int) (*ogerr.ServerFields, error) {
	eon, err := protocol.DecodeErrorOrNotice(c.rb, bodyLen)
	if err != nil {
		return nil, err
	}
	f := toServerFields(eon)
	if c.onNotice != nil {
		c.onNotice(f)
	} else {
		c.log.Debug("notice", "message", f.Message, "sqlstate", f.SQLState)
	}
	return &f, nil
}

func toServerFields(e *protocol.ErrorOrNotice) ogerr.ServerFields {
	return ogerr.ServerFields{
		Severity: e.Severity, SQLState: e.SQLState, Message: e.Message,
		Detail: e.Detail, Hint: e.Hint, Position: e.Position, Where: e.Where,
		Schema: e.Schema, Table: e.Table, Column: e.Column, DataType: e.DataType,
		Constraint: e.Constraint, File: e.File, Line: e.Line, Routine: e.Routine,
	}
}

func (c *Connector) errorResponse(bodyLen int, kind ogerr.Kind) error {
	eon, err := protocol.DecodeErrorOrNotice(c.rb, bodyLen)
	if err != nil {
		return err
	}
	se := &ogerr.ServerErr{Fields: toServerFields(eon), IncludeDetail: c.cfg.IncludeErrorDetail}
	if kind == ogerr.ServerError {
		return se.AsDriverError()
	}
	return ogerr.Wrap(kind, se, "server error")
}

// State returns the connector's current lifecycle state.
func (c *Connector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Connector) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// ServerParameter returns the last reported value of a GUC ParameterStatus
// key ("server_version", "TimeZone", ...), and whether it has been seen.
func (c *Connector) ServerParameter(name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.serverParams[name]
	return v, ok
}

// BackendPID returns the process ID reported in BackendKeyData, used by
// the pool to correlate connectors with server-side activity.
func (c *Connector) BackendPID() int32 { return c.backendPID }

// HostSpec returns the host this connector was opened against, used by
// the pool to track which idle slot a returned connector belongs to.
func (c *Connector) HostSpec() connstring.HostSpec { return c.host }

// Age reports how long ago the connector completed its handshake.
func (c *Connector) Age() time.Duration { return time.Since(c.openedAt) }

// IdleFor reports how long the connector has been idle since its last
// completed command.
func (c *Connector) IdleFor() time.Duration { return time.Since(c.lastUsedAt) }

// SetNoticeHandler registers a callback for asynchronous NoticeResponse
// delivery. A nil handler restores the default (log-only) behavior.
func (c *Connector) SetNoticeHandler(h NoticeHandler) { c.onNotice = h }

// SetParameterStatusHandler registers a callback for ParameterStatus
// updates observed after the initial handshake.
func (c *Connector) SetParameterStatusHandler(h ParameterStatusHandler) { c.onParameterStatus = h }

// SetNotificationHandler registers a callback for LISTEN/NOTIFY delivery.
func (c *Connector) SetNotificationHandler(h NotificationHandler) { c.onNotification = h }

// Terminate sends a Terminate message and closes the socket. It is safe
// to call from any state, including Broken.
func (c *Connector) Terminate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Closed {
		return nil
	}
	if c.conn != nil && c.state != Broken {
		protocol.WriteTerminate(c.wb)
		_ = c.wb.Flush()
	}
	var err error
	if c.conn != nil {
		err = c.conn.Close()
	}
	c.state = Closed
	return err
}

// markBroken transitions the connector to Broken and reports the cause.
func (c *Connector) markBroken(err error) error {
	c.mu.Lock()
	c.state = Broken
	c.mu.Unlock()
	oglog.ReportBroken(err, map[string]string{"host": c.host.Host})
	c.log.Warn("broken", "host", c.host.Host, "error", err)
	return err
}
