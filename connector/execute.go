package connector

import (
	"context"
	"time"

	"oggo/ogerr"
	"oggo/protocol"
)

// Param is a caller-supplied bind value: wire-format bytes (nil for SQL
// NULL), its format, and its type OID (0 lets the server infer it).
type Param struct {
	Value  []byte
	Format protocol.FieldFormat
	OID    int32
}

// Execute submits sql with params and returns a forward-only cursor over
// the result. If params is empty and
// MaxAutoPrepare is 0, the simple-query sub-protocol is used; otherwise
// the extended-query sub-protocol runs Parse/Bind/Describe/Execute/Sync,
// reusing or promoting a prepared statement from the LRU.
func (c *Connector) Execute(ctx context.Context, sql string, params []Param, timeout time.Duration) (*ResultStream, error) {
	c.mu.Lock()
	if c.state != Ready {
		c.mu.Unlock()
		return nil, ogerr.Newf(ogerr.OperationInProgress, "connector is %s, not ready", c.state)
	}
	c.state = Executing
	c.currentDone = make(chan struct{})
	c.mu.Unlock()

	deadline, cancelDeadline := deadlineFromTimeout(ctx, timeout)
	if cancelDeadline != nil {
		// The returned stream reads under this deadline, so release it only
		// once the stream finishes (finish closes currentDone) or it fires.
		done := c.currentDone
		go func() {
			select {
			case <-done:
			case <-deadline.Done():
			}
			cancelDeadline()
		}()
	}

	if len(params) == 0 && c.cfg.MaxAutoPrepare == 0 {
		if err := c.executeSimple(sql); err != nil {
			return nil, c.markBroken(err)
		}
		return newResultStream(c, deadline), nil
	}

	if err := c.executeExtended(sql, params); err != nil {
		return nil, c.markBroken(err)
	}
	return newResultStream(c, deadline), nil
}

func deadlineFromTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, nil
	}
	return context.WithTimeout(ctx, timeout)
}

func (c *Connector) executeSimple(sql string) error {
	protocol.WriteQuery(c.wb, sql)
	return c.wb.Flush()
}

func paramOIDsOf(params []Param) []int32 {
	oids := make([]int32, len(params))
	for i, p := range params {
		oids[i] = p.OID
	}
	return oids
}

func (c *Connector) executeExtended(sql string, params []Param) error {
	oids := paramOIDsOf(params)
	fp := fingerprint(sql, oids)

	stmt, cached := c.prepared.touch(fp)
	stmtName := ""
	if cached {
		stmtName = stmt.name
	} else {
		uses := c.prepared.recordMiss(fp)
		if c.cfg.MaxAutoPrepare > 0 && uses >= c.prepared.minUsages {
			var victim string
			stmt, victim = c.prepared.promote(fp, oids)
			stmtName = stmt.name
			if victim != "" {
				protocol.WriteClose(c.wb, protocol.DescribeStatement, victim)
			}
			protocol.WriteParse(c.wb, stmtName, sql, oids)
			protocol.WriteDescribe(c.wb, protocol.DescribeStatement, stmtName)
		} else {
			// Below the promotion threshold: parse the unnamed statement,
			// which the server discards at the next Parse/simple-query.
			protocol.WriteParse(c.wb, "", sql, oids)
		}
	}

	wireParams := make([]protocol.Parameter, len(params))
	for i, p := range params {
		wireParams[i] = protocol.Parameter{Value: p.Value, Format: p.Format}
	}
	protocol.WriteBind(c.wb, "", stmtName, wireParams, nil)
	protocol.WriteDescribe(c.wb, protocol.DescribePortal, "")
	protocol.WriteExecute(c.wb, "", 0)
	protocol.WriteSync(c.wb)
	return c.wb.Flush()
}

// Prepared reports how many distinct statement fingerprints currently
// hold a server-side name on this connector.
func (c *Connector) Prepared() int { return c.prepared.order.Len() }
