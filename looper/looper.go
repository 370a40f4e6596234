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

// Package looper implements the Looper driver of spec.md section 4.3: a
// thread that repeatedly pulls one ready Request from a Handler and runs
// it, following the same own-mutex-and-condvar shape as request.Request.
package looper

import (
	"sync"
	"time"

	"github.com/lindb/common/pkg/logger"

	"github.com/taskloop/taskloop/handler"
	"github.com/taskloop/taskloop/request"
	"github.com/taskloop/taskloop/state"
)

// DefaultTimeout is the default per-iteration wait passed to Handler.Next
// by Run, per spec.md section 6 (700ms), instance-scoped per section 9.
const DefaultTimeout = 700 * time.Millisecond

// FailFunc is invoked when Handle observes a failure: either the Looper
// was stopped while waiting on Handler.Next, or Request.Execute did not
// succeed. err is nil in the former case.
type FailFunc func(err error)

// Looper's own state is the NONE/STARTED/READY subset of state.State.
type Looper struct {
	mu   sync.Mutex
	cond *sync.Cond

	st state.State

	// stopping distinguishes an external Stop() call from Handle's own
	// transient drop to Started while it waits on Handler.Next — both
	// leave st at the same bit pattern, so the race in spec.md section
	// 4.3 step 3 ("was the Looper stopped while waiting") needs a signal
	// independent of st.
	stopping bool

	h       *handler.Handler
	onFail  FailFunc
	timeout time.Duration

	log logger.Logger
}

// New creates a Looper driving h. onFail may be nil.
func New(h *handler.Handler, onFail FailFunc) *Looper {
	if onFail == nil {
		onFail = func(error) {}
	}
	l := &Looper{
		h:       h,
		onFail:  onFail,
		timeout: DefaultTimeout,
		log:     logger.GetLogger("Looper", "Looper"),
	}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// SetTimeout overrides the per-iteration Handler.Next timeout used by Run.
func (l *Looper) SetTimeout(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.timeout = d
}

// State returns a snapshot of the Looper's own state.
func (l *Looper) State() state.State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.st
}

// Start transitions NONE -> READY.
func (l *Looper) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.st = state.Ready
	l.stopping = false
}

// Stop transitions READY -> STARTED (not ready) and pulses both the
// Looper's and the Handler's condition variables, so anything blocked in
// Handle or Handler.Next wakes up and observes the stop.
func (l *Looper) Stop() {
	l.mu.Lock()
	l.st = state.Started
	l.stopping = true
	l.cond.Broadcast()
	l.mu.Unlock()

	if l.h != nil {
		l.h.WakeAll()
	}
}

// Handle runs one iteration: pulls a Request from the Handler and
// executes it. Returns false if the Looper wasn't ready, Handler.Next
// timed out, or the run failed — in the first two cases nothing was
// executed; in the last, onFail was already invoked.
func (l *Looper) Handle(timeout time.Duration) bool {
	l.mu.Lock()
	if !l.st.IsReady() {
		l.mu.Unlock()
		return false
	}
	l.st = state.None
	h := l.h
	if h != nil && !h.Closed() {
		l.st = state.Started
	}
	l.mu.Unlock()

	if h == nil {
		return false
	}
	r := h.Next(timeout)
	if r == nil {
		return false
	}

	l.mu.Lock()
	stopped := l.stopping
	l.mu.Unlock()
	if stopped {
		l.onFail(nil)
		return false
	}

	ok := r.Execute()

	l.mu.Lock()
	if l.st == state.Started && h != nil && !h.Closed() {
		l.st = state.Ready
	}
	l.mu.Unlock()

	if !ok {
		l.onFail(firstError(r))
		return false
	}
	return true
}

func firstError(r *request.Request) error {
	errs := r.Errors()
	if len(errs) == 0 {
		return nil
	}
	return errs[0]
}

// Run loops Handle(DEFAULT_TIMEOUT) while READY.
func (l *Looper) Run() {
	for l.State().IsReady() {
		l.Handle(l.currentTimeout())
	}
}

func (l *Looper) currentTimeout() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.timeout
}

// StartOnThread starts l and runs it on a dedicated goroutine, returning
// immediately.
func StartOnThread(l *Looper) {
	l.Start()
	go l.Run()
}
