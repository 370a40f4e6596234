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

// Package executor implements the four external-interface bindings of
// spec.md section 4.6 as pairs of task.DispatchFunc hooks, so a Task,
// TaskStack or TaskSpawner can be pointed at any of them with
// SetOnExecute/SetOnPostExecute. PoolBound and Async bind to internal/concurrent.Pool,
// the teacher's own goroutine pool.
package executor

import (
	"context"

	"github.com/lindb/common/pkg/logger"

	"github.com/taskloop/taskloop/errorx"
	"github.com/taskloop/taskloop/handler"
	"github.com/taskloop/taskloop/internal/concurrent"
	"github.com/taskloop/taskloop/task"
)

// log reports pool-level failures that PoolBound/Async route through a
// Task's closure — these never panic a worker's own business logic (that
// failure path is a Task's concern, recovered and recorded on the Task
// itself) but instead indicate the dispatch plumbing broke, e.g. a
// taskClosure that escaped its own recover.
var log = logger.GetLogger("Executor", "Executor")

// Binding is a pair of dispatch hooks plus an optional Close for the
// collaborator(s) it owns.
type Binding struct {
	OnExecute     task.DispatchFunc
	OnPostExecute task.DispatchFunc
	// Close releases owned collaborators (e.g. a Handler created with
	// shutdown=true). Nil if the binding owns nothing.
	Close func()
}

// Direct spawns a dedicated goroutine per exec phase and inlines the post
// phase — the same defaults task.New itself uses, exposed here so callers
// can name the binding explicitly (e.g. to undo a prior SetOnExecute).
func Direct() Binding {
	return Binding{
		OnExecute:     func(closure func()) { go closure() },
		OnPostExecute: func(closure func()) { closure() },
	}
}

// HandlerBound posts both phases to Handlers (which may be the same
// instance for both). If shutdown is true, Close closes both distinct
// Handlers; closing a Handler twice is a no-op (handler.Handler.Close is
// idempotent).
func HandlerBound(execHandler, postHandler *handler.Handler, shutdown bool) Binding {
	b := Binding{
		OnExecute: func(closure func()) {
			if execHandler == nil {
				panic(errorx.ErrMissingAttachment)
			}
			if _, err := execHandler.Post(closure); err != nil {
				panic(err)
			}
		},
		OnPostExecute: func(closure func()) {
			if postHandler == nil {
				panic(errorx.ErrMissingAttachment)
			}
			if _, err := postHandler.Post(closure); err != nil {
				panic(err)
			}
		},
	}
	if shutdown {
		b.Close = func() {
			if execHandler != nil {
				execHandler.Close()
			}
			if postHandler != nil && postHandler != execHandler {
				postHandler.Close()
			}
		}
	}
	return b
}

// submitToPool wraps closure as a concurrent.Task whose handle always
// returns nil (the Task types have no error-returning exec signature to
// thread through), so any failure can only reach the pool as a panic;
// errHandle is still wired so that panic is reported to the binding's
// own logger instead of being swallowed once pool.go's own recovery logs
// it at the pool level.
func submitToPool(pool concurrent.Pool, closure func()) {
	pool.Submit(context.Background(), concurrent.NewTask(
		func() error { closure(); return nil },
		func(err error) { log.Warn("pool-dispatched closure failed", logger.Error(err)) },
	))
}

// PoolBound submits the exec phase to pool and inlines the post phase.
func PoolBound(pool concurrent.Pool) Binding {
	return Binding{
		OnExecute: func(closure func()) {
			if pool == nil {
				panic(errorx.ErrMissingAttachment)
			}
			submitToPool(pool, closure)
		},
		OnPostExecute: func(closure func()) { closure() },
	}
}

// Async submits the exec phase to pool (worker does the work) and posts
// the post phase to postHandler (the Looper driving postHandler runs the
// callback) — "run on worker, callback on UI thread."
func Async(pool concurrent.Pool, postHandler *handler.Handler) Binding {
	return Binding{
		OnExecute: func(closure func()) {
			if pool == nil {
				panic(errorx.ErrMissingAttachment)
			}
			submitToPool(pool, closure)
		},
		OnPostExecute: func(closure func()) {
			if postHandler == nil {
				panic(errorx.ErrMissingAttachment)
			}
			if _, err := postHandler.Post(closure); err != nil {
				panic(err)
			}
		},
	}
}

// Apply wires b's hooks onto t.
func (b Binding) Apply(t *task.Task) {
	t.SetOnExecute(b.OnExecute)
	t.SetOnPostExecute(b.OnPostExecute)
}
