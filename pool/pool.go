// Package pool implements the connector pool and host set: a bounded set
// of connectors rented out to callers by target-session-role, with
// idle/waiter queues, LRU-ish pruning, and per-host role caching. The
// rent/return shape and its accompanying WaitGroup/shutdown idiom mirror
// an accept-loop server turned inside out — "accept a socket, spawn a
// handler" becomes "admit a renter, hand back a connector".
package pool

import (
	"container/list"
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"oggo/connector"
	"oggo/connstring"
	"oggo/oglog"
	"oggo/ogerr"
)

// slot wraps one connector with pool bookkeeping: age, idle-since, and the
// host it was opened against.
type slot struct {
	conn      *connector.Connector
	host      connstring.HostSpec
	idleSince time.Time
}

// Pool is a process-wide connector pool for one connection string.
// Callers obtain one via Get, which memoizes by DSN.
type Pool struct {
	cfg *connstring.Config
	log oglog.Logger

	hosts *hostSet

	admit *semaphore.Weighted // bounds Busy+Idle at MaxPoolSize

	mu      sync.Mutex
	idle    *list.List // *slot, most-recently-returned at front
	busy    int
	opened  int
	waiters *list.List // chan *rentResult

	quit   chan struct{}
	prune  *errgroup.Group
	closed bool
}

type rentResult struct {
	conn *connector.Connector
	host connstring.HostSpec
	err  error
}

// New builds a pool for cfg. Callers normally reach this through the
// process-wide registry (Get), not directly, so that the same DSN maps
// to the same pool, created on first use per unique connection string.
func New(cfg *connstring.Config) *Pool {
	max := cfg.MaxPoolSize
	if max <= 0 {
		max = 1 << 20 // MaxPoolSize=0 means no cap
	}
	p := &Pool{
		cfg:     cfg,
		log:     oglog.Default().Named("pool"),
		hosts:   newHostSet(cfg.Hosts),
		admit:   semaphore.NewWeighted(int64(max)),
		idle:    list.New(),
		waiters: list.New(),
		quit:    make(chan struct{}),
	}
	if cfg.ConnectionPruningInterval > 0 {
		g, ctx := errgroup.WithContext(context.Background())
		p.prune = g
		g.Go(func() error {
			p.pruneLoop(ctx)
			return nil
		})
	}
	return p
}

// Rent obtains a connector matching cfg.TargetSessionAttributes: reuse
// an idle connector on a matching host if one exists, else open a new
// one if under MaxPoolSize, else wait up to Timeout for a return.
func (p *Pool) Rent(ctx context.Context) (*connector.Connector, error) {
	deadline := ctx
	var cancel context.CancelFunc
	if p.cfg.Timeout > 0 {
		deadline, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	for {
		if c, host, ok := p.tryIdle(deadline); ok {
			p.log.Trace("rent", "source", "idle", "host", host.Host)
			return c, nil
		}

		if p.admit.TryAcquire(1) {
			c, host, err := p.openOnMatchingHost(deadline)
			if err != nil {
				p.admit.Release(1)
				return nil, err
			}
			p.mu.Lock()
			p.busy++
			p.opened++
			p.mu.Unlock()
			p.log.Trace("rent", "source", "open", "host", host.Host)
			return c, nil
		}

		result := make(chan rentResult, 1)
		p.mu.Lock()
		el := p.waiters.PushBack(result)
		p.mu.Unlock()

		select {
		case r := <-result:
			if r.err != nil {
				return nil, r.err
			}
			return r.conn, nil
		case <-deadline.Done():
			p.mu.Lock()
			p.waiters.Remove(el)
			p.mu.Unlock()
			return nil, ogerr.Wrap(ogerr.Timeout, deadline.Err(), "rent")
		}
	}
}

// tryIdle pops the first idle connector whose host still matches target
// session attributes and whose age is under ConnectionLifetime.
func (p *Pool) tryIdle(ctx context.Context) (*connector.Connector, connstring.HostSpec, bool) {
	p.mu.Lock()
	var chosen *list.Element
	for el := p.idle.Front(); el != nil; el = el.Next() {
		s := el.Value.(*slot)
		if p.cfg.ConnectionLifetime > 0 && s.conn.Age() >= p.cfg.ConnectionLifetime {
			continue
		}
		if !p.hosts.matches(ctx, p.cfg, s.host, p.cfg.TargetSessionAttributes, p.dial) {
			continue
		}
		chosen = el
		break
	}
	if chosen == nil {
		p.mu.Unlock()
		return nil, connstring.HostSpec{}, false
	}
	s := p.idle.Remove(chosen).(*slot)
	p.busy++
	p.mu.Unlock()
	return s.conn, s.host, true
}

// openOnMatchingHost picks a candidate host (honoring LoadBalanceHosts and
// target-session-attributes) and opens a fresh connector against it.
func (p *Pool) openOnMatchingHost(ctx context.Context) (*connector.Connector, connstring.HostSpec, error) {
	for _, h := range p.hosts.candidates(p.cfg) {
		if !p.hosts.matches(ctx, p.cfg, h, p.cfg.TargetSessionAttributes, p.dial) {
			continue
		}
		c, err := p.dial(ctx, h)
		if err != nil {
			p.hosts.markOffline(h)
			continue
		}
		return c, h, nil
	}
	return nil, connstring.HostSpec{}, ogerr.New(ogerr.ConnectionFailed, "no candidate host satisfies TargetSessionAttributes")
}

func (p *Pool) dial(ctx context.Context, h connstring.HostSpec) (*connector.Connector, error) {
	return connector.Open(ctx, p.cfg, h, nil)
}

// Return releases c back to the pool. broken must be true if the caller
// observed the connector transition to Broken; broken connectors are
// dropped and never reused, and leave pool accounting before any waiter
// is woken.
func (p *Pool) Return(c *connector.Connector, host connstring.HostSpec, broken bool) {
	if broken || c.State() == connector.Broken {
		p.drop(c)
		return
	}

	if err := c.Reset(context.Background()); err != nil {
		p.drop(c)
		return
	}

	p.mu.Lock()
	p.busy--
	if w := p.waiters.Front(); w != nil {
		p.waiters.Remove(w)
		ch := w.Value.(chan rentResult)
		p.busy++
		p.mu.Unlock()
		ch <- rentResult{conn: c, host: host}
		return
	}
	p.idle.PushFront(&slot{conn: c, host: host, idleSince: time.Now()})
	p.mu.Unlock()
}

// drop discards c: closes the socket, releases its admission slot, and
// wakes a waiter with a freshly opened connector if any waiter is queued.
func (p *Pool) drop(c *connector.Connector) {
	_ = c.Terminate()
	p.mu.Lock()
	p.busy--
	p.opened--
	p.mu.Unlock()
	p.admit.Release(1)
	p.log.Debug("drop", "backend_pid", c.BackendPID())

	p.mu.Lock()
	w := p.waiters.Front()
	if w != nil {
		p.waiters.Remove(w)
	}
	p.mu.Unlock()
	if w == nil {
		return
	}
	ch := w.Value.(chan rentResult)
	if p.admit.TryAcquire(1) {
		nc, host, err := p.openOnMatchingHost(context.Background())
		if err != nil {
			p.admit.Release(1)
			ch <- rentResult{err: err}
			return
		}
		p.mu.Lock()
		p.busy++
		p.opened++
		p.mu.Unlock()
		ch <- rentResult{conn: nc, host: host}
	}
}

// Stats reports the pool's current idle/busy connector counts.
type Stats struct {
	Idle, Busy, Opened int
}

// Stats returns a snapshot of the pool's connector accounting.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Idle: p.idle.Len(), Busy: p.busy, Opened: p.opened}
}

// pruneLoop closes idle connectors older than ConnectionIdleLifetime,
// preserving at least MinPoolSize, on every ConnectionPruningInterval.
func (p *Pool) pruneLoop(ctx context.Context) {
	interval := p.cfg.ConnectionPruningInterval
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.quit:
			return
		case <-ticker.C:
			p.pruneOnce()
		}
	}
}

func (p *Pool) pruneOnce() {
	p.mu.Lock()
	defer p.mu.Unlock()
	var victims []*slot
	for el := p.idle.Back(); el != nil; {
		prev := el.Prev()
		s := el.Value.(*slot)
		if p.idle.Len()-len(victims) <= p.cfg.MinPoolSize {
			break
		}
		if time.Since(s.idleSince) > p.cfg.ConnectionIdleLifetime {
			p.idle.Remove(el)
			victims = append(victims, s)
		}
		el = prev
	}
	if len(victims) > 0 {
		p.log.Debug("prune", "count", len(victims))
	}
	for _, s := range victims {
		go func(s *slot) {
			_ = s.conn.Terminate()
			p.admit.Release(1)
			p.mu.Lock()
			p.opened--
			p.mu.Unlock()
		}(s)
	}
}

// Close stops the pruner and terminates every idle connector. In-flight
// rentals are not interrupted; callers should Return them normally.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.quit)
	var idle []*slot
	for el := p.idle.Front(); el != nil; el = el.Next() {
		idle = append(idle, el.Value.(*slot))
	}
	p.idle.Init()
	p.mu.Unlock()

	for _, s := range idle {
		_ = s.conn.Terminate()
	}
	if p.prune != nil {
		return p.prune.Wait()
	}
	return nil
}
