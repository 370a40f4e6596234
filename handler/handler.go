// Licensed to LinDB under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. LinDB licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

// Package handler implements the dual-queue Request scheduler of spec.md
// section 4.2: an immediate LIFO stack (backed by dstack.DStack) plus a
// time-sorted delayed queue, drained by a single cooperative goroutine at
// a time (the "busy" flag), the same own-mutex-and-condvar shape
// request.Request and internal/concurrent/pool.go's workerPool apply to
// their own long-lived state.
package handler

import (
	"sort"
	"sync"
	"time"

	uberatomic "go.uber.org/atomic"

	"github.com/lindb/common/pkg/logger"

	"github.com/taskloop/taskloop/clock"
	"github.com/taskloop/taskloop/dstack"
	"github.com/taskloop/taskloop/errorx"
	"github.com/taskloop/taskloop/internal/syncutil"
	"github.com/taskloop/taskloop/metrics"
	"github.com/taskloop/taskloop/request"
)

// DefaultRetryTimeout is the fallback wait (20ms) used when a Next call's
// retry path needs to bound a re-poll after a Request refuses readiness.
// Instance-scoped per spec.md section 9 ("prefer instance-scoped
// configuration"); Handler exposes it as a constructor option.
const DefaultRetryTimeout = 20 * time.Millisecond

// Sentinel timeouts for Next, mirroring spec.md section 4.2's -1/-2 convention.
const (
	// Infinite tells Next to wait with no deadline.
	Infinite time.Duration = -1
	// NoWait tells Next to make exactly one non-blocking pass.
	NoWait time.Duration = -2
)

// timedEntry pairs a Request with its absolute due time in epoch millis.
type timedEntry struct {
	req *request.Request
	at  int64
}

// Handler is a dual-queue Request scheduler: an immediate LIFO stack and a
// time-ordered delayed queue, drained by at most one goroutine at a time.
type Handler struct {
	name string

	mu   sync.Mutex
	cond *sync.Cond

	immediate *dstack.DStack[*request.Request]
	timed     []timedEntry // kept sorted so the next-due entry is at the tail

	busy   bool // guarded by mu; at most one goroutine dequeues at a time
	closed uberatomic.Bool

	clock        clock.Source
	retryTimeout time.Duration

	stats *metrics.HandlerStatistics
	log   logger.Logger
}

// Option configures a Handler at construction time.
type Option func(*Handler)

// WithClock overrides the clock source (default clock.Default).
func WithClock(src clock.Source) Option {
	return func(h *Handler) { h.clock = src }
}

// WithRetryTimeout overrides the retry timeout (default DefaultRetryTimeout).
func WithRetryTimeout(d time.Duration) Option {
	return func(h *Handler) { h.retryTimeout = d }
}

// New creates a Handler named name, used only to label its metrics and logs.
func New(name string, opts ...Option) *Handler {
	h := &Handler{
		name:         name,
		immediate:    dstack.NewDStack[*request.Request](0),
		clock:        clock.Default,
		retryTimeout: DefaultRetryTimeout,
		stats:        metrics.NewHandlerStatistics(name),
		log:          logger.GetLogger("Handler", name),
	}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// wrap turns a posted value into a *request.Request per spec.md section
// 4.2: a Request as-is, a zero-argument runnable, or a Request-consuming
// runnable. Anything else is errorx.ErrInvalidRunnable.
func wrap(v any) (*request.Request, error) {
	switch fn := v.(type) {
	case *request.Request:
		return fn, nil
	case func():
		return request.New(func(*request.Request) { fn() }, nil), nil
	case func(*request.Request):
		return request.New(fn, nil), nil
	default:
		return nil, errorx.ErrInvalidRunnable
	}
}

// Post accepts a *request.Request, a func(), or a func(*request.Request),
// starts it, and enqueues it on the immediate LIFO queue.
func (h *Handler) Post(v any) (*request.Request, error) {
	return h.post(v, 0, false)
}

// PostDelayed enqueues v onto the timed queue, due delay after now.
func (h *Handler) PostDelayed(v any, delay time.Duration) (*request.Request, error) {
	return h.post(v, delay, true)
}

// PostAtTime enqueues v onto the timed queue, due at absolute epoch millis atMillis.
func (h *Handler) PostAtTime(v any, atMillis int64) (*request.Request, error) {
	if h.closed.Load() {
		return nil, errorx.ErrClosed
	}
	r, err := wrap(v)
	if err != nil {
		return nil, err
	}
	r.Start()

	h.mu.Lock()
	h.timed = append(h.timed, timedEntry{req: r, at: atMillis})
	sortTimedDescendingByDue(h.timed)
	h.stats.TimedDepth.Incr()
	h.stats.Posted.Incr()
	h.cond.Broadcast()
	h.mu.Unlock()
	return r, nil
}

func (h *Handler) post(v any, delay time.Duration, timed bool) (*request.Request, error) {
	if h.closed.Load() {
		return nil, errorx.ErrClosed
	}
	r, err := wrap(v)
	if err != nil {
		return nil, err
	}
	r.Start()

	h.mu.Lock()
	if timed {
		h.timed = append(h.timed, timedEntry{req: r, at: h.clock.NowMillis() + delay.Milliseconds()})
		sortTimedDescendingByDue(h.timed)
		h.stats.TimedDepth.Incr()
	} else {
		_ = h.immediate.Push(r)
		h.stats.ImmediateDepth.Incr()
	}
	h.stats.Posted.Incr()
	h.cond.Broadcast()
	h.mu.Unlock()
	return r, nil
}

// sortTimedDescendingByDue keeps the soonest-due entry at the tail (so a
// pop-from-tail is O(1)); ties are broken so the most recently appended
// entry — i.e. the LIFO tie-break spec.md section 4.2 calls for — sorts
// last. sort.SliceStable preserves that append order among equal due times.
func sortTimedDescendingByDue(entries []timedEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return sign(entries[j].at-entries[i].at) < 0
	})
}

// sign is the open-question fix from spec.md section 9: a direct
// sign(b-a) comparator, no division, so no divide-by-zero at equality.
func sign(d int64) int {
	switch {
	case d > 0:
		return 1
	case d < 0:
		return -1
	default:
		return 0
	}
}

// GetAll returns a snapshot of pending Requests, order-preserving within
// each queue. If excludeTimed, only the immediate queue is included.
func (h *Handler) GetAll(excludeTimed bool) []*request.Request {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := h.immediate.Snapshot()
	if !excludeTimed {
		for _, e := range h.timed {
			out = append(out, e.req)
		}
	}
	return out
}

// CancelAll clears both queues (or just the immediate queue if
// excludeTimed) and cancels every Request that was in them. Clearing the
// queue before canceling avoids re-entry from a concurrent Next.
func (h *Handler) CancelAll(excludeTimed bool) {
	h.mu.Lock()
	toCancel := h.immediate.Snapshot()
	h.immediate.Clear()
	h.stats.ImmediateDepth.Reset()
	if !excludeTimed {
		for _, e := range h.timed {
			toCancel = append(toCancel, e.req)
		}
		h.timed = nil
		h.stats.TimedDepth.Reset()
	}
	h.mu.Unlock()

	for _, r := range toCancel {
		r.Cancel()
	}
}

// RemoveAll clears both queues (or just the immediate queue if
// excludeTimed) without canceling the removed Requests.
func (h *Handler) RemoveAll(excludeTimed bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.immediate.Clear()
	h.stats.ImmediateDepth.Reset()
	if !excludeTimed {
		h.timed = nil
		h.stats.TimedDepth.Reset()
	}
}

// Close cancels every pending Request (as CancelAll(false) would) and
// marks the Handler closed; subsequent Post/PostDelayed/PostAtTime/Next
// calls return errorx.ErrClosed or nil immediately.
func (h *Handler) Close() {
	if h.closed.Swap(true) {
		return
	}
	h.CancelAll(false)
	h.mu.Lock()
	h.cond.Broadcast()
	h.mu.Unlock()
	h.log.Info("handler closed")
}

// Closed reports whether Close was called.
func (h *Handler) Closed() bool {
	return h.closed.Load()
}

// WakeAll pulses the condition variable without touching either queue, so
// any goroutine blocked in waitAndRetry re-checks its wake predicate. Used
// by callers (such as a Looper) that need Next to notice an external state
// change that isn't a post, cancel, or close.
func (h *Handler) WakeAll() {
	h.mu.Lock()
	h.cond.Broadcast()
	h.mu.Unlock()
}

// Next implements the Next algorithm of spec.md section 4.2: a single
// draining goroutine at a time pops the next ready Request from either
// queue, retrying transient refusals up to retryTimeout, and waiting on
// the Handler's condition variable in between. Returns nil if timeout
// elapses (or the Handler is/becomes closed) without finding a ready
// Request. After its wait, Next makes a single further dequeue pass; if
// another goroutine is mid-dequeue at that moment, Next returns nil even
// though Requests may still be pending and the timeout has not elapsed.
func (h *Handler) Next(timeout time.Duration) *request.Request {
	if h.closed.Load() {
		return nil
	}

	if !h.mu.TryLock() {
		// contended: another goroutine holds the lock (likely inside its
		// own dequeue pass); go straight to WAIT rather than block here.
		return h.waitAndRetry(timeout)
	}
	if h.busy {
		h.mu.Unlock()
		return h.waitAndRetry(timeout)
	}
	h.busy = true
	r, retry, waitCap := h.tryDequeue()
	h.busy = false
	h.mu.Unlock()

	if r != nil {
		h.stats.Dispatched.Incr()
		return r
	}
	if retry {
		h.stats.Retries.Incr()
		if timeout != NoWait {
			timeout = capTimeout(timeout, h.retryTimeout)
		}
	}
	if waitCap >= 0 && timeout != NoWait {
		timeout = capTimeout(timeout, waitCap)
	}
	return h.waitAndRetry(timeout)
}

// capTimeout returns the smaller of timeout and limit, treating a negative
// timeout (Infinite) as unbounded.
func capTimeout(timeout, limit time.Duration) time.Duration {
	if timeout < 0 || limit < timeout {
		return limit
	}
	return timeout
}

// waitAndRetry implements step 6 of the Next algorithm: wait on the
// condition variable (bounded by timeout, infinite if Infinite, not at
// all if NoWait), then make exactly one more non-blocking dequeue pass.
func (h *Handler) waitAndRetry(timeout time.Duration) *request.Request {
	h.mu.Lock()
	if timeout != NoWait {
		waitFor := timeout
		if timeout == Infinite {
			waitFor = -1
		}
		syncutil.WaitTimeout(h.cond, waitFor, func() bool {
			return h.closed.Load() || (!h.busy && h.hasCandidate())
		})
	}
	h.mu.Unlock()

	if h.closed.Load() {
		return nil
	}

	h.mu.Lock()
	if h.busy {
		h.mu.Unlock()
		return nil
	}
	h.busy = true
	r, _, _ := h.tryDequeue()
	h.busy = false
	h.mu.Unlock()

	if r != nil {
		h.stats.Dispatched.Incr()
	}
	return r
}

// tryDequeue runs the timed-then-immediate dequeue pass. Caller holds h.mu
// and must not re-lock. Returns the ready Request (nil if none found),
// whether a retryable refusal was observed, and, if a valid timed entry
// was seen but not yet due, how long until it becomes due (-1 if no such
// entry was seen) — the caller should cap its subsequent wait by this so
// Next wakes up right when the timed entry matures.
func (h *Handler) tryDequeue() (*request.Request, bool, time.Duration) {
	retry := false
	waitCap := time.Duration(-1)

	for len(h.timed) > 0 {
		last := len(h.timed) - 1
		e := h.timed[last]
		if !e.req.State().IsWaiting() {
			h.timed = h.timed[:last]
			h.stats.TimedDepth.Decr()
			continue
		}
		remaining := e.at - h.clock.NowMillis()
		if remaining > 0 {
			// not due yet; fall through to the immediate branch without
			// removing it.
			waitCap = time.Duration(remaining) * time.Millisecond
			break
		}
		h.timed = h.timed[:last]
		h.stats.TimedDepth.Decr()
		if h.readyLocked(e.req) {
			return e.req, false, waitCap
		}
		retry = true
		break
	}

	for {
		r, ok := h.immediate.Pop()
		if !ok {
			break
		}
		h.stats.ImmediateDepth.Decr()
		if !r.State().IsWaiting() {
			continue
		}
		if h.readyLocked(r) {
			return r, false, waitCap
		}
		// refused: push back at the top, preserving the LIFO invariant.
		_ = h.immediate.Push(r)
		h.stats.ImmediateDepth.Incr()
		retry = true
		break
	}

	return nil, retry, waitCap
}

// readyLocked calls Request.Ready() without holding h.mu, since Ready
// acquires the Request's own lock and user code (OnPrepare) must never run
// while a Handler lock is held (outer->inner lock order, spec.md
// section 5).
func (h *Handler) readyLocked(r *request.Request) bool {
	h.mu.Unlock()
	defer h.mu.Lock()
	ok := r.Ready()
	return ok
}

// hasCandidate is a cheap, lock-already-held peek used only to decide
// whether WaitTimeout's predicate should wake early; it does not dequeue.
func (h *Handler) hasCandidate() bool {
	return h.immediate.Len() > 0 || len(h.timed) > 0
}
