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

// Package request implements the single-phase Request state machine
// (spec.md section 4.1): Start/Ready/Execute/Cancel driven by the
// state.State bitfield, with its own mutex and condition variable,
// following the same own-a-lock, own-a-logger shape the teacher applies
// to its long-lived goroutine-owning types (internal/concurrent/pool.go's
// workerPool/worker).
package request

import (
	"sync"
	"time"

	"github.com/lindb/common/pkg/logger"

	"github.com/taskloop/taskloop/errorx"
	"github.com/taskloop/taskloop/internal/syncutil"
	"github.com/taskloop/taskloop/state"
)

// AttachWait is how long Execute waits for a just-constructed Request's
// exec closure to be attached before giving up and treating it as absent.
// It is a package variable, not a constant, so tests can shrink it.
var AttachWait = 20 * time.Millisecond

// rawOutcomeMask isolates the raw Success/Failed bits without the Started
// or Done bits, i.e. the "skip bit" hint spec.md's glossary describes.
const rawOutcomeMask = state.State(0x10000000 | 0x20000000)

// ExecFunc is the primary body of a Request. It may panic to signal
// failure; panicking with (or wrapping) errorx.ErrCanceled signals
// cancellation instead of a plain failure.
type ExecFunc func(r *Request)

// PostExecFunc observes the terminal state and accumulated errors after
// Execute finishes dispatching.
type PostExecFunc func(st state.State, errs []error)

// PrepareFunc is the OnPrepare hook; it may panic the same way ExecFunc can.
type PrepareFunc func() bool

// DispatchFunc runs body, possibly asynchronously (e.g. posted to a
// Handler) or inline — the OnPostExecute hook's shape.
type DispatchFunc func(body func())

// Request is a single-phase work unit with explicit bitfield state and
// cooperative cancellation.
type Request struct {
	mu   sync.Mutex
	cond *sync.Cond

	st   state.State
	errs []error

	exec     ExecFunc
	postExec PostExecFunc

	onPrepare     PrepareFunc
	onPostExecute DispatchFunc

	log logger.Logger
}

// New creates a Request wrapping exec and an optional postExec callback.
func New(exec ExecFunc, postExec PostExecFunc) *Request {
	r := &Request{
		exec:          exec,
		postExec:      postExec,
		onPrepare:     func() bool { return true },
		onPostExecute: func(body func()) { body() },
		log:           logger.GetLogger("Request", "Request"),
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// SetExec attaches (or replaces) the exec body, waking any Execute call
// waiting for it to appear.
func (r *Request) SetExec(exec ExecFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exec = exec
	r.cond.Broadcast()
}

// SetOnPrepare overrides the OnPrepare hook (default: always ready).
func (r *Request) SetOnPrepare(fn PrepareFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onPrepare = fn
}

// SetOnPostExecute overrides the OnPostExecute hook (default: inline).
func (r *Request) SetOnPostExecute(fn DispatchFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onPostExecute = fn
}

// State returns a snapshot of the current state.
func (r *Request) State() state.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st
}

// Errors returns a snapshot of the accumulated errors.
func (r *Request) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errSnapshotLocked()
}

func (r *Request) errSnapshotLocked() []error {
	if len(r.errs) == 0 {
		return nil
	}
	out := make([]error, len(r.errs))
	copy(out, r.errs)
	return out
}

func (r *Request) appendErrorLocked(err error) {
	if err == nil {
		return
	}
	next := make([]error, len(r.errs)+1)
	copy(next, r.errs)
	next[len(r.errs)] = err
	r.errs = next
}

// PresetOutcome marks the Request as already succeeded or failed before
// Execute runs, so Execute skips the exec body and goes straight to
// post-exec dispatch (the "skip bit" of the glossary).
func (r *Request) PresetOutcome(success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if success {
		r.st |= state.Success & rawOutcomeMask
	} else {
		r.st |= state.Failed & rawOutcomeMask
	}
}

// Start transitions NONE -> STARTED, clearing errors. A Request already
// started (or beyond) is left untouched.
func (r *Request) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.st.IsStarted() {
		return
	}
	r.st = state.Started | (r.st & rawOutcomeMask)
	r.errs = nil
}

// Ready transitions STARTED -> READY via OnPrepare. See spec.md section
// 4.1 for the three outcomes: prepared (true), refused (false, stays
// STARTED), and exception (caught, becomes READY|FAILED so the scheduler
// can still pick it up and let Execute skip the body).
func (r *Request) Ready() bool {
	r.mu.Lock()
	if r.st.IsCanceled() {
		r.mu.Unlock()
		return false
	}
	if !r.st.IsStarted() {
		r.mu.Unlock()
		return false
	}
	if r.st.IsReady() || r.st.IsDone() {
		ready := r.st.IsReady() && !r.st.IsDone()
		r.mu.Unlock()
		return ready
	}
	prepare := r.onPrepare
	r.mu.Unlock()

	ok, err := runPrepare(prepare)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.st.IsCanceled() {
		// cancellation observed during preparation short-circuits to
		// not-ready, regardless of what OnPrepare returned.
		return false
	}
	switch {
	case err != nil && errorx.IsCancellation(err):
		r.st = state.Canceled
		r.cond.Broadcast()
		return false
	case err != nil:
		r.appendErrorLocked(errorx.User(err))
		r.st = state.Ready | (state.Failed & rawOutcomeMask)
		r.cond.Broadcast()
		return true
	case !ok:
		return false
	default:
		r.st = state.Ready | (r.st & rawOutcomeMask)
		r.cond.Broadcast()
		return true
	}
}

func runPrepare(fn PrepareFunc) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errorx.Recover(r)
		}
	}()
	return fn(), nil
}

// Cancel is advisory: it sets CANCELED and pulses waiters. It returns
// false only when the Request already reached a non-canceled terminal
// state.
func (r *Request) Cancel() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.st.IsDone() && !r.st.IsCanceled() {
		return false
	}
	r.st = state.Canceled
	r.cond.Broadcast()
	return true
}

// Execute is the scheduling entry point: precondition state == READY.
// Returns true iff the primary body ran and succeeded.
func (r *Request) Execute() bool {
	r.mu.Lock()
	if !r.st.IsReady() || r.st.IsRunning() || r.st.IsDone() {
		r.mu.Unlock()
		return false
	}

	outcomeHint := r.st & rawOutcomeMask
	r.st = state.Running | outcomeHint
	r.cond.Broadcast()

	if r.exec == nil {
		syncutil.WaitTimeout(r.cond, AttachWait, func() bool { return r.exec != nil })
	}
	exec := r.exec
	skip := outcomeHint != 0
	r.mu.Unlock()

	var runErr error
	ran := false
	if !skip && exec != nil {
		ran = true
		runErr = runExec(exec, r)
	}

	r.mu.Lock()
	switch {
	case skip:
		if outcomeHint == state.Failed&rawOutcomeMask {
			r.st = state.Failed
		} else {
			r.st = state.Success
		}
	case errorx.IsCancellation(runErr):
		r.st = state.Canceled
	case runErr != nil:
		r.appendErrorLocked(errorx.User(runErr))
		r.st = state.Failed
	default:
		r.st = state.Success
	}
	finalState := r.st
	errsSnapshot := r.errSnapshotLocked()
	postExec := r.postExec
	dispatch := r.onPostExecute
	r.cond.Broadcast()
	r.mu.Unlock()

	if postExec != nil {
		r.dispatchPostExec(dispatch, postExec, finalState, errsSnapshot)
	}

	return ran && finalState.IsSuccessful()
}

func (r *Request) dispatchPostExec(dispatch DispatchFunc, postExec PostExecFunc, st state.State, errs []error) {
	body := func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.mu.Lock()
				r.appendErrorLocked(errorx.User(errorx.Recover(rec)))
				r.st |= state.PostFailed
				r.mu.Unlock()
				r.log.Warn("post-exec callback failed", logger.Error(errorx.Recover(rec)))
			}
		}()
		postExec(st, errs)
	}
	dispatch(body)
}

func runExec(exec ExecFunc, r *Request) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errorx.Recover(rec)
		}
	}()
	exec(r)
	return nil
}
