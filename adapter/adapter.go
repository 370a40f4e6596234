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

// Package adapter implements four families of function-signature adapters:
// converting between request-style callables ((req) -> void) and
// task-style callables ((task) -> postBody), and cross-promoting narrower
// zero-argument runnables and wider one-argument handlers into either
// world. Each adapter is a thin closure; none needs an external
// dependency, so this package stays on the standard library (see
// DESIGN.md).
package adapter

import (
	"github.com/taskloop/taskloop/request"
	"github.com/taskloop/taskloop/task"
)

// FromRunnable promotes a zero-argument runnable into a request-style exec
// body, for attaching to a Request with SetExec.
func FromRunnable(fn func()) request.ExecFunc {
	return func(*request.Request) { fn() }
}

// FromRunnableTask promotes a zero-argument runnable into a task-style exec
// body. postBody is the default PostBody returned after fn runs; pass nil
// if the runnable has no post-execution work.
func FromRunnableTask(fn func(), postBody task.PostBody) task.ExecFunc {
	return func(*task.Task) task.PostBody {
		fn()
		return postBody
	}
}

// FromHandler promotes a one-argument handler into a request-style exec
// body, supplying arg as the default value the handler is invoked with
// since request.ExecFunc itself carries no caller argument of type T.
func FromHandler[T any](fn func(T), arg T) request.ExecFunc {
	return func(*request.Request) { fn(arg) }
}

// FromHandlerTask promotes a one-argument handler into a task-style exec
// body, supplying arg as the default value and postBody as the default
// PostBody returned after fn runs.
func FromHandlerTask[T any](fn func(T), arg T, postBody task.PostBody) task.ExecFunc {
	return func(*task.Task) task.PostBody {
		fn(arg)
		return postBody
	}
}

// RequestToTask adapts a request-style exec body into a task-style one.
// fn is handed a throwaway *request.Request as its receiver, so a body
// that calls r.Cancel()/r.State() on its argument still sees a live
// object rather than nil; the request world has no post-execution phase,
// so the adapted exec always returns a nil PostBody.
func RequestToTask(fn request.ExecFunc) task.ExecFunc {
	return func(*task.Task) task.PostBody {
		fn(request.New(fn, nil))
		return nil
	}
}

// TaskToRequest adapts a task-style exec body into a request-style one.
// fn is handed a throwaway *task.Task as its receiver, for the same
// nil-safety reason as RequestToTask. Since Request has only a single
// phase, the PostBody fn returns (if any) runs synchronously, inline,
// before the adapted exec returns.
func TaskToRequest(fn task.ExecFunc) request.ExecFunc {
	return func(*request.Request) {
		if postBody := fn(task.New(fn, nil)); postBody != nil {
			postBody()
		}
	}
}
