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

// Package errorx implements the error taxonomy of the task-execution
// library: invalid-argument, closed, missing-attachment, user-error and
// cancellation, following the recover-to-error idiom the teacher applies
// at its single panic-recovery call site (internal/concurrent/pool.go's
// execTask, "errorpkg.Error(r)").
package errorx

import (
	"errors"
	"fmt"
)

// Sentinel errors for the structural kinds of spec.md section 7. These are
// raised synchronously to the caller of the posting/spawning API. When a
// Task's dispatch hook panics with one (e.g. executor.HandlerBound with a
// nil Handler), Task.Execute records it, wrapped, in the Task's error list.
var (
	// ErrInvalidRunnable is returned when a posted value is none of the
	// supported callable shapes.
	ErrInvalidRunnable = errors.New("taskloop: invalid runnable")
	// ErrClosed is returned by an operation on a closed Handler, TaskStack
	// or TaskSpawner.
	ErrClosed = errors.New("taskloop: closed")
	// ErrMissingAttachment is returned when OnExecute/OnPostExecute needed
	// a collaborator (handler/factory) that was nil.
	ErrMissingAttachment = errors.New("taskloop: missing attachment")
	// ErrCanceled marks a cancellation-typed error recognized by IsCancellation.
	ErrCanceled = errors.New("taskloop: canceled")
)

// userError wraps an error thrown by user code (exec/post body/hook),
// kept distinct from structural errors so IsUserError can recognize it
// even if the underlying cause also happens to be one of the sentinels
// above.
type userError struct {
	cause error
}

// User wraps err as a user-code error: recorded on a Request/Task's error
// list and reflected in state as Failed or PostFailed, never propagated
// out of Execute.
func User(err error) error {
	if err == nil {
		return nil
	}
	return &userError{cause: err}
}

func (e *userError) Error() string {
	return fmt.Sprintf("user error: %v", e.cause)
}

func (e *userError) Unwrap() error {
	return e.cause
}

// IsUserError reports whether err was produced by User.
func IsUserError(err error) bool {
	var ue *userError
	return errors.As(err, &ue)
}

// IsCancellation reports whether err is, or wraps, ErrCanceled — the
// cancellation-typed predicate spec.md section 4.1 leaves to the
// implementation to choose.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// Recover converts a recovered panic value into an error, mirroring the
// teacher's errorpkg.Error(r) call in internal/concurrent/pool.go's
// execTask. Returns nil if r is nil (i.e. there was nothing to recover).
func Recover(r any) error {
	if r == nil {
		return nil
	}
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", r)
}
