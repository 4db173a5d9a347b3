// Package mux implements the multiplexing scheduler: an unbounded command
// queue and a single writer task per pool that drains pending commands up
// to a byte threshold onto one rented connector, executes them there one
// after another, and completes each handle in FIFO order once its command
// has drained to ReadyForQuery. There is no separate reader task per
// connector, and Submit never blocks on queue depth. It only runs when
// Multiplexing=true (which requires Pooling=true).
package mux

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"oggo/connector"
	"oggo/connstring"
	"oggo/oglog"
	"oggo/ogerr"
	"oggo/pool"
	"oggo/protocol"
)

// Result is the materialized outcome of one CommandHandle: since the
// owning connector returns to the pool as soon as a batch finishes, a
// handle cannot hand back a live cursor tied to that connector — the next
// renter could start writing to it mid-iteration. Rows are copied out
// instead.
type Result struct {
	RowDescription *protocol.RowDescription
	Rows           []*protocol.DataRow
	CommandTag     string
}

// CommandHandle is one submitted command awaiting completion.
type CommandHandle struct {
	SQL     string
	Params  []connector.Param
	Timeout time.Duration

	mu        sync.Mutex
	written   bool
	canceled  bool
	completed chan struct{}
	result    *Result
	err       error
	owner     *connector.Connector
}

func newHandle(sql string, params []connector.Param, timeout time.Duration) *CommandHandle {
	return &CommandHandle{SQL: sql, Params: params, Timeout: timeout, completed: make(chan struct{})}
}

// Wait blocks until the handle completes (successfully or with an error)
// or ctx is done, whichever comes first.
func (h *CommandHandle) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-h.completed:
		return h.result, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *CommandHandle) complete(result *Result, err error) {
	h.mu.Lock()
	h.result, h.err = result, err
	h.mu.Unlock()
	close(h.completed)
}

// Cancel removes the handle from the queue if it has not yet been written
// to a connector; once written, cancellation routes through the owning
// connector's Cancel path instead.
func (h *CommandHandle) Cancel(ctx context.Context) error {
	h.mu.Lock()
	written := h.written
	owner := h.owner
	h.canceled = true
	h.mu.Unlock()

	if !written {
		h.complete(nil, ogerr.New(ogerr.Canceled, "canceled before being written"))
		return nil
	}
	if owner == nil {
		return ogerr.New(ogerr.Canceled, "handle already written but no connector reference recorded")
	}
	return owner.Cancel(ctx)
}

// Scheduler runs the writer task for a pool. Each acquired
// connector serves one batch's handles in FIFO order before returning to
// the pool, since this connector core drains one command to
// ReadyForQuery before starting the next (see connector.ResultStream).
type Scheduler struct {
	pool *pool.Pool
	cfg  *connstring.Config
	log  oglog.Logger

	queueMu sync.Mutex
	queue   *list.List // *CommandHandle

	notify chan struct{}

	metricsMu       sync.Mutex
	batchesSent     int64
	commandsBatched int64
	batchWriteNanos int64

	g      *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
}

// New builds a scheduler over p. Callers must call Run once before
// Submit, and Close to stop the writer task.
func New(p *pool.Pool, cfg *connstring.Config) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	return &Scheduler{
		pool:   p,
		cfg:    cfg,
		log:    oglog.Default().Named("mux"),
		queue:  list.New(),
		notify: make(chan struct{}, 1),
		g:      g,
		ctx:    gctx,
		cancel: cancel,
	}
}

// Run starts the writer task. It returns immediately; the task runs until
// Close is called.
func (s *Scheduler) Run() {
	s.g.Go(func() error {
		s.writerLoop()
		return nil
	})
}

// Close stops the writer task and waits for it to exit.
func (s *Scheduler) Close() error {
	s.cancel()
	return s.g.Wait()
}

// Submit enqueues a command and returns a handle the caller can Wait on.
// The internal queue is unbounded; backpressure comes from
// WriteCoalescingBufferThresholdBytes bounding how much of it rides on
// one connector rent, not from queue depth.
func (s *Scheduler) Submit(sql string, params []connector.Param, timeout time.Duration) *CommandHandle {
	h := newHandle(sql, params, timeout)
	s.queueMu.Lock()
	s.queue.PushBack(h)
	s.queueMu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
	return h
}

// writerLoop acquires an idle connector, drains the queue into it up to
// the byte threshold or until empty, executes each handle in order, and
// releases the connector.
func (s *Scheduler) writerLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.notify:
		case <-time.After(50 * time.Millisecond):
			// Poll periodically in case a Submit raced the notify channel
			// while the writer was between select iterations.
		}

		for {
			handles := s.drainQueue()
			if len(handles) == 0 {
				break
			}
			s.runBatch(handles)
		}
	}
}

func (s *Scheduler) drainQueue() []*CommandHandle {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()

	var handles []*CommandHandle
	budget := s.cfg.WriteCoalescingBufferThresholdBytes
	if budget <= 0 {
		budget = 1000
	}
	spent := 0
	for s.queue.Len() > 0 && spent < budget {
		el := s.queue.Front()
		h := el.Value.(*CommandHandle)
		h.mu.Lock()
		canceled := h.canceled
		h.mu.Unlock()
		s.queue.Remove(el)
		if canceled {
			continue
		}
		handles = append(handles, h)
		spent += len(h.SQL)
	}
	return handles
}

// runBatch rents one connector and serves handles against it in FIFO
// order, preserving server ordering within a single batch written to one
// connector. Each handle's rows are
// materialized before the next is started, since a fresh Execute cannot
// be issued until the connector has drained the previous command to
// ReadyForQuery.
func (s *Scheduler) runBatch(handles []*CommandHandle) {
	batchID := uuid.NewString()
	c, err := s.pool.Rent(s.ctx)
	if err != nil {
		for _, h := range handles {
			h.complete(nil, err)
		}
		return
	}

	start := time.Now()
	served := 0
	for _, h := range handles {
		h.mu.Lock()
		h.written = true
		h.owner = c
		canceled := h.canceled
		h.mu.Unlock()
		if canceled {
			h.complete(nil, ogerr.New(ogerr.Canceled, "canceled before execution"))
			continue
		}

		stream, err := c.Execute(s.ctx, h.SQL, h.Params, h.Timeout)
		if err != nil {
			h.complete(nil, err)
			continue
		}
		result := &Result{}
		for stream.Next() {
			if result.RowDescription == nil {
				result.RowDescription = stream.RowDescription()
			}
			result.Rows = append(result.Rows, stream.Row())
		}
		result.CommandTag = stream.CommandTag()
		if err := stream.Err(); err != nil {
			h.complete(result, err)
			continue
		}
		h.complete(result, nil)
		served++
	}
	elapsed := time.Since(start)

	s.metricsMu.Lock()
	s.batchesSent++
	s.commandsBatched += int64(served)
	s.batchWriteNanos += elapsed.Nanoseconds()
	s.metricsMu.Unlock()

	s.log.Trace("batch-sent", "batch_id", batchID, "commands", served, "elapsed", elapsed)
	s.pool.Return(c, c.HostSpec(), c.State() == connector.Broken)
}

// Metrics reports the average commands-per-batch and average per-batch
// write time (µs), the two multiplexing counters exposed to callers.
func (s *Scheduler) Metrics() (avgCommandsPerBatch float64, avgBatchWriteMicros float64) {
	s.metricsMu.Lock()
	defer s.metricsMu.Unlock()
	if s.batchesSent == 0 {
		return 0, 0
	}
	avgCommandsPerBatch = float64(s.commandsBatched) / float64(s.batchesSent)
	avgBatchWriteMicros = float64(s.batchWriteNanos) / float64(s.batchesSent) / 1000
	return avgCommandsPerBatch, avgBatchWriteMicros
}
