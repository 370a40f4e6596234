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

// Package state defines the 32-bit lifecycle bitfield shared by Request,
// Task and Looper, and the predicates derived from it.
package state

// State is a bitfield tracking the lifecycle of a Request or Task.
// Bits are composed by OR; semantics come from the bit *patterns* below,
// not from individual bit positions, so callers must always test with the
// named patterns rather than raw bit masks.
type State int32

const (
	// None is the fresh, never-started state.
	None State = 0x00000000
	// Started marks a Request/Task as posted or claimed; required before
	// any later state.
	Started State = 0x02000000
	// Ready marks a Request/Task as prepared and eligible to run.
	Ready = Started | 0x01000000
	// Running marks a Request/Task as currently executing user code.
	Running = Ready | 0x04000000
	// Done is the terminal state; one of the outcome bits below also applies.
	// -0x80000000 is the int32 spelling of the bit pattern 0x80000000.
	Done = Started | -0x80000000
	// Canceled marks that cancellation was observed.
	Canceled = Done | 0x08000000
	// Success marks that the primary body completed without error.
	Success = Done | 0x10000000
	// Failed marks that the primary body returned an error.
	Failed = Done | 0x20000000
	// PostFailed marks that the post body returned an error, independent
	// of Success/Failed on the primary body.
	PostFailed = Done | 0x40000000
)

// Has reports whether all bits of pattern are set in s.
func (s State) Has(pattern State) bool {
	return s&pattern == pattern
}

// IsNone reports whether s is the fresh, never-started state.
func (s State) IsNone() bool {
	return s == None
}

// IsStarted reports whether s has been posted or claimed.
func (s State) IsStarted() bool {
	return s.Has(Started)
}

// IsReady reports whether s has passed preparation and is runnable.
func (s State) IsReady() bool {
	return s.Has(Ready)
}

// IsRunning reports whether user code is currently executing.
func (s State) IsRunning() bool {
	return s.Has(Running)
}

// IsDone reports whether s is terminal.
func (s State) IsDone() bool {
	return s.Has(Done)
}

// IsCanceled reports whether cancellation was observed.
func (s State) IsCanceled() bool {
	return s.Has(Canceled)
}

// successBit and failedBit are the raw outcome bits in isolation, with
// neither Started nor Done folded in. IsSuccess/IsFailed test these alone
// so a pre-set outcome is visible as a skip hint before Done is reached.
const successBit = State(0x10000000)
const failedBit = State(0x20000000)

// IsSuccess is the raw bit test for the success pattern. Per the success
// bit being usable as a pre-DONE skip hint (see SkipBit), this may be true
// before the Request/Task is actually Done. Callers that need the final
// outcome must use IsSuccessful instead.
func (s State) IsSuccess() bool {
	return s&successBit != 0
}

// IsSuccessful reports the final, terminal success outcome: Done and
// Success both hold. This is the predicate callers should use to decide
// whether a Request/Task's primary body ultimately succeeded.
func (s State) IsSuccessful() bool {
	return s.IsDone() && s.IsSuccess()
}

// IsFailed is the raw bit test for the failed pattern; like IsSuccess it
// may be preset before Done as a skip hint.
func (s State) IsFailed() bool {
	return s&failedBit != 0
}

// IsPostFailed reports whether the post body failed, independent of the
// primary body's outcome.
func (s State) IsPostFailed() bool {
	return s.Has(PostFailed)
}

// IsWaiting reports whether s is started but not yet running or done —
// the shape a Request/Task must have to sit in a Handler queue.
func (s State) IsWaiting() bool {
	return s.IsStarted() && !s.IsRunning() && !s.IsDone()
}

// SkipBit reports whether s carries a pre-set outcome (Success or Failed)
// that should cause Execute to bypass the user body and go straight to
// post-exec dispatch.
func (s State) SkipBit() bool {
	return s.IsSuccess() || s.IsFailed()
}

// String renders the state for logging/debugging.
func (s State) String() string {
	switch {
	case s.IsPostFailed() && s.IsSuccess():
		return "SUCCESS|POST_FAILED|DONE"
	case s.IsPostFailed() && s.IsFailed():
		return "FAILED|POST_FAILED|DONE"
	case s.IsCanceled():
		return "CANCELED|DONE"
	case s.IsSuccessful():
		return "SUCCESS|DONE"
	case s.IsFailed() && s.IsDone():
		return "FAILED|DONE"
	case s.IsRunning():
		return "RUNNING"
	case s.IsReady():
		return "READY"
	case s.IsStarted():
		return "STARTED"
	default:
		return "NONE"
	}
}
