package connector

import (
	"context"
	"fmt"
	"net"
	"time"

	"oggo/ogerr"
	"oggo/protocol"
)

// Cancel opens a transient socket to the connector's host, sends
// CancelRequest(PID, secret), and closes it — the wire protocol's
// out-of-band cancellation path. It then waits up to CancellationTimeout
// for the current
// command to terminate server-side; past that deadline the connector is
// marked Broken. CancellationTimeoutMs of -1 skips the wait entirely; 0
// waits indefinitely.
func (c *Connector) Cancel(ctx context.Context) error {
	c.mu.Lock()
	done := c.currentDone
	host, port := c.host.Host, c.host.Port
	pid, secret := c.backendPID, c.backendSecret
	unix := c.cfg.UnixSocket
	c.mu.Unlock()

	if done == nil {
		return nil // nothing in flight
	}

	network, addr := "tcp", fmt.Sprintf("%s:%d", host, port)
	if unix {
		network = "unix"
	}
	conn, err := net.DialTimeout(network, addr, c.cfg.Timeout)
	if err != nil {
		return ogerr.Wrap(ogerr.ConnectionFailed, err, "dial for cancel")
	}
	defer conn.Close()

	wb := protocol.NewWriteBuffer(conn, 16)
	protocol.WriteCancelRequest(wb, pid, secret)
	if err := wb.Flush(); err != nil {
		return ogerr.Wrap(ogerr.ConnectionFailed, err, "send CancelRequest")
	}

	if c.cfg.CancellationTimeoutMs < 0 {
		return nil
	}

	var timer <-chan time.Time
	if c.cfg.CancellationTimeoutMs > 0 {
		t := time.NewTimer(time.Duration(c.cfg.CancellationTimeoutMs) * time.Millisecond)
		defer t.Stop()
		timer = t.C
	}

	select {
	case <-done:
		return nil
	case <-timer:
		return c.markBroken(ogerr.New(ogerr.Canceled, "server did not acknowledge cancel within CancellationTimeout"))
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Keepalive sends an application-level ping (an empty simple query) when
// the connector has been idle at least KeepAlive seconds. It is a no-op
// if the connector is not Ready or KeepAlive is 0.
func (c *Connector) Keepalive(ctx context.Context) error {
	if c.cfg.KeepAlive <= 0 {
		return nil
	}
	if c.State() != Ready {
		return nil
	}
	if c.IdleFor() < c.cfg.KeepAlive {
		return nil
	}

	deadline, cancel := context.WithTimeout(ctx, c.cfg.EffectiveInternalCommandTimeout())
	defer cancel()

	stream, err := c.Execute(deadline, "", nil, c.cfg.EffectiveInternalCommandTimeout())
	if err != nil {
		return c.markBroken(err)
	}
	for stream.Next() {
	}
	if err := stream.Err(); err != nil {
		return c.markBroken(err)
	}
	c.log.Trace("keepalive", "host", c.host.Host)
	return nil
}

// Reset prepares the connector to return to the pool: unless
// NoResetOnClose is set, it issues a DISCARD ALL-equivalent statement to
// clear session state (temp tables, prepared statements, session GUCs)
// and drops the local prepared-statement LRU, since server-side names
// were just invalidated.
func (c *Connector) Reset(ctx context.Context) error {
	if c.cfg.NoResetOnClose {
		return nil
	}
	if c.State() != Ready {
		return ogerr.Newf(ogerr.OperationInProgress, "cannot reset connector in state %s", c.State())
	}

	deadline, cancel := context.WithTimeout(ctx, c.cfg.EffectiveInternalCommandTimeout())
	defer cancel()

	stream, err := c.Execute(deadline, "DISCARD ALL", nil, c.cfg.EffectiveInternalCommandTimeout())
	if err != nil {
		return c.markBroken(err)
	}
	for stream.Next() {
	}
	if err := stream.Err(); err != nil {
		return c.markBroken(err)
	}
	c.prepared.clear()
	return nil
}
