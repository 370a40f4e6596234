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

// Package task implements the two-phase Task of spec.md section 4.4: an
// exec body that returns a post-body closure, with the exec and post
// phases individually dispatchable (so exec can run on a worker pool while
// post runs on a UI-thread Handler). Generalizes request.Request's
// single-phase Execute into two independently hookable dispatch points,
// built the same own-mutex-and-condvar way.
package task

import (
	"sync"
	"time"

	"github.com/lindb/common/pkg/logger"

	"github.com/taskloop/taskloop/errorx"
	"github.com/taskloop/taskloop/internal/syncutil"
	"github.com/taskloop/taskloop/state"
)

// AttachWait mirrors request.AttachWait: how long taskClosure waits for a
// just-constructed Task's exec body to be attached.
var AttachWait = 20 * time.Millisecond

const rawOutcomeMask = state.State(0x10000000 | 0x20000000)

// PostBody is the closure a Task's exec body returns, run on the post
// phase after exec completes successfully.
type PostBody func()

// ExecFunc is a Task's primary body. It may return nil if there is no
// post-phase work, and may panic the same way request.ExecFunc can.
type ExecFunc func(t *Task) PostBody

// PostExecFunc observes the terminal state and accumulated errors once
// both phases have run.
type PostExecFunc func(st state.State, errs []error)

// DispatchFunc runs closure, possibly asynchronously — the shape of both
// OnExecute and OnPostExecute.
type DispatchFunc func(closure func())

// Task is a two-phase work unit: Execute dispatches the exec phase via
// OnExecute; the post phase (post-body, then post-handle) dispatches via
// OnPostExecute.
type Task struct {
	mu   sync.Mutex
	cond *sync.Cond

	st   state.State
	errs []error

	exec     ExecFunc
	postExec PostExecFunc

	onExecute     DispatchFunc
	onPostExecute DispatchFunc

	log logger.Logger
}

// New creates a Task wrapping exec and an optional postExec callback.
// Defaults: OnExecute spawns a fresh goroutine, OnPostExecute runs inline.
func New(exec ExecFunc, postExec PostExecFunc) *Task {
	t := &Task{
		exec:          exec,
		postExec:      postExec,
		onExecute:     func(closure func()) { go closure() },
		onPostExecute: func(closure func()) { closure() },
		log:           logger.GetLogger("Task", "Task"),
	}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// SetExec attaches (or replaces) the exec body, waking any Execute call
// waiting for it to appear.
func (t *Task) SetExec(exec ExecFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.exec = exec
	t.cond.Broadcast()
}

// SetOnExecute overrides the OnExecute hook.
func (t *Task) SetOnExecute(fn DispatchFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onExecute = fn
}

// SetOnPostExecute overrides the OnPostExecute hook.
func (t *Task) SetOnPostExecute(fn DispatchFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onPostExecute = fn
}

// State returns a snapshot of the current state.
func (t *Task) State() state.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st
}

// Errors returns a snapshot of the accumulated errors.
func (t *Task) Errors() []error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.errSnapshotLocked()
}

func (t *Task) errSnapshotLocked() []error {
	if len(t.errs) == 0 {
		return nil
	}
	out := make([]error, len(t.errs))
	copy(out, t.errs)
	return out
}

func (t *Task) appendErrorLocked(err error) {
	if err == nil {
		return
	}
	next := make([]error, len(t.errs)+1)
	copy(next, t.errs)
	next[len(t.errs)] = err
	t.errs = next
}

// PresetOutcome marks the Task as already succeeded or failed before
// Execute runs, so taskClosure skips the exec body (the "skip bit").
func (t *Task) PresetOutcome(success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if success {
		t.st |= state.Success & rawOutcomeMask
	} else {
		t.st |= state.Failed & rawOutcomeMask
	}
}

// Cancel is advisory: it sets CANCELED and pulses waiters. Returns false
// only when the Task already reached a non-canceled terminal state.
func (t *Task) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.st.IsDone() && !t.st.IsCanceled() {
		return false
	}
	t.st = state.Canceled
	t.cond.Broadcast()
	return true
}

// Execute starts the Task if needed, then dispatches taskClosure through
// OnExecute. If OnExecute itself panics (e.g. a closed Handler or pool),
// falls back to running taskClosure through OnPostExecute; if that also
// panics, the Task is left FAILED|POST_FAILED with both errors recorded.
// Returns whether the Task is not (yet) canceled — dispatch is typically
// asynchronous, so this does not wait for the body to finish.
func (t *Task) Execute() bool {
	t.mu.Lock()
	if !t.st.IsStarted() {
		t.st = state.Started | (t.st & rawOutcomeMask)
		t.errs = nil
	}
	onExecute := t.onExecute
	onPostExecute := t.onPostExecute
	t.mu.Unlock()

	if dispatchErr := runDispatch(onExecute, t.taskClosure); dispatchErr != nil {
		t.mu.Lock()
		t.st |= state.Failed & rawOutcomeMask
		t.mu.Unlock()
		t.log.Warn("OnExecute dispatch failed, falling back to OnPostExecute", logger.Error(dispatchErr))

		if fallbackErr := runDispatch(onPostExecute, t.taskClosure); fallbackErr != nil {
			t.mu.Lock()
			t.appendErrorLocked(errorx.User(dispatchErr))
			t.appendErrorLocked(errorx.User(fallbackErr))
			t.st = state.Failed | state.PostFailed
			t.mu.Unlock()
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.st.IsCanceled()
}

func runDispatch(dispatch DispatchFunc, closure func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errorx.Recover(r)
		}
	}()
	dispatch(closure)
	return nil
}

// taskClosure is the two-phase body spec.md section 4.4 describes: run
// exec (unless skipping on a preset outcome), settle RUNNING into DONE,
// then dispatch the post phase.
func (t *Task) taskClosure() {
	t.mu.Lock()
	if t.st.IsCanceled() {
		// cancellation observed before this phase started: exec/post
		// bodies are skipped entirely, per the advisory-cancellation rule.
		t.mu.Unlock()
		return
	}
	outcomeHint := t.st & rawOutcomeMask
	t.st = state.Running | outcomeHint
	t.cond.Broadcast()

	if t.exec == nil {
		syncutil.WaitTimeout(t.cond, AttachWait, func() bool { return t.exec != nil })
	}
	exec := t.exec
	skip := outcomeHint != 0
	t.mu.Unlock()

	var postBody PostBody
	var runErr error
	if !skip && exec != nil {
		postBody, runErr = runTaskExec(exec, t)
	}

	t.mu.Lock()
	var end bool
	switch {
	case t.st.IsDone():
		end = true
	case skip:
		if outcomeHint == state.Failed&rawOutcomeMask {
			t.st = state.Failed
		} else {
			t.st = state.Success
		}
	case errorx.IsCancellation(runErr):
		t.st = state.Canceled
	case runErr != nil:
		t.appendErrorLocked(errorx.User(runErr))
		t.st = state.Failed
	default:
		t.st = state.Success
	}
	finalState := t.st
	postExec := t.postExec
	onPostExecute := t.onPostExecute
	t.cond.Broadcast()
	t.mu.Unlock()

	if end || (postBody == nil && postExec == nil) {
		return
	}

	if skip {
		t.runPostClosure(postBody, postExec, finalState)
		return
	}
	dispatch := onPostExecute
	if dispatch == nil {
		t.runPostClosure(postBody, postExec, finalState)
		return
	}
	dispatch(func() { t.runPostClosure(postBody, postExec, finalState) })
}

// runPostClosure invokes postBody (if the primary body succeeded), then
// postExec, each independently recovered: a panic in either leg appends
// to the error list and sets POST_FAILED without affecting the other leg.
func (t *Task) runPostClosure(postBody PostBody, postExec PostExecFunc, st state.State) {
	if postBody != nil && st.IsSuccessful() {
		t.runPostLeg(func() { postBody() })
	}
	if postExec != nil {
		t.mu.Lock()
		errsSnapshot := t.errSnapshotLocked()
		finalState := t.st
		t.mu.Unlock()
		t.runPostLeg(func() { postExec(finalState, errsSnapshot) })
	}
}

func (t *Task) runPostLeg(leg func()) {
	defer func() {
		if r := recover(); r != nil {
			err := errorx.Recover(r)
			t.mu.Lock()
			t.appendErrorLocked(errorx.User(err))
			t.st |= state.PostFailed
			t.mu.Unlock()
			t.log.Warn("post-exec leg failed", logger.Error(err))
		}
	}()
	leg()
}

func runTaskExec(exec ExecFunc, t *Task) (postBody PostBody, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errorx.Recover(r)
		}
	}()
	return exec(t), nil
}
