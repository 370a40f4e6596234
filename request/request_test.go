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

package request

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/taskloop/taskloop/errorx"
	"github.com/taskloop/taskloop/state"
)

func TestStart_Idempotent(t *testing.T) {
	r := New(func(*Request) {}, nil)
	r.Start()
	first := r.State()
	r.Start()
	assert.Equal(t, first, r.State())
	assert.True(t, first.IsStarted())
}

func TestReadyThenExecute_Success(t *testing.T) {
	r := New(func(*Request) {}, nil)
	r.Start()
	assert.True(t, r.Ready())
	ok := r.Execute()
	assert.True(t, ok)
	assert.True(t, r.State().IsSuccessful())
}

func TestReady_RefusedStaysStarted(t *testing.T) {
	r := New(func(*Request) {}, nil)
	r.Start()
	r.SetOnPrepare(func() bool { return false })
	assert.False(t, r.Ready())
	assert.True(t, r.State().IsStarted())
	assert.False(t, r.State().IsReady())
}

func TestReady_PanicBecomesReadyFailed(t *testing.T) {
	r := New(func(*Request) {}, nil)
	r.Start()
	r.SetOnPrepare(func() bool { panic("boom") })
	assert.True(t, r.Ready())
	assert.True(t, r.State().IsReady())
	assert.True(t, r.State().IsFailed())
	assert.Len(t, r.Errors(), 1)
}

func TestExecute_FailureRecordsError(t *testing.T) {
	r := New(func(*Request) { panic(errors.New("exec boom")) }, nil)
	r.Start()
	assert.True(t, r.Ready())
	ok := r.Execute()
	assert.False(t, ok)
	assert.True(t, r.State().IsDone())
	assert.False(t, r.State().IsSuccessful())
	assert.True(t, (r.State() & state.Failed) == state.Failed)
	assert.Len(t, r.Errors(), 1)
}

func TestExecute_CancellationPanicPromotesToCanceled(t *testing.T) {
	r := New(func(*Request) { panic(errorx.ErrCanceled) }, nil)
	r.Start()
	assert.True(t, r.Ready())
	ok := r.Execute()
	assert.False(t, ok)
	assert.True(t, r.State().IsCanceled())
}

func TestCancel_AdvisoryBeforeExecute(t *testing.T) {
	r := New(func(*Request) { t.Fatal("exec body must not run once canceled before Ready") }, nil)
	r.Start()
	assert.True(t, r.Cancel())
	assert.False(t, r.Ready())
	assert.True(t, r.State().IsCanceled())
}

func TestCancel_FalseAfterNonCanceledTerminal(t *testing.T) {
	r := New(func(*Request) {}, nil)
	r.Start()
	r.Ready()
	r.Execute()
	assert.True(t, r.State().IsSuccessful())
	assert.False(t, r.Cancel())
}

func TestCancel_RepeatReturnsTrue(t *testing.T) {
	r := New(func(*Request) {}, nil)
	r.Start()
	assert.True(t, r.Cancel())
	assert.True(t, r.Cancel())
}

func TestExecute_SkipBitBypassesExecBody(t *testing.T) {
	ran := false
	r := New(func(*Request) { ran = true }, nil)
	r.Start()
	r.PresetOutcome(true)
	assert.True(t, r.Ready())
	ok := r.Execute()
	assert.False(t, ran)
	// skip bit -> body never ran, so Execute's "ran and succeeded" is false
	// even though the terminal state is successful.
	assert.False(t, ok)
	assert.True(t, r.State().IsSuccessful())
}

func TestExecute_PostExecIndependentFailure(t *testing.T) {
	var gotState state.State
	var gotErrs []error
	r := New(func(*Request) {}, func(st state.State, errs []error) {
		gotState = st
		gotErrs = errs
		panic(errors.New("post boom"))
	})
	r.Start()
	r.Ready()
	ok := r.Execute()
	assert.True(t, ok)
	assert.True(t, gotState.IsSuccessful())
	assert.Empty(t, gotErrs)
	assert.True(t, r.State().IsPostFailed())
	assert.True(t, r.State().IsSuccess())
	assert.Len(t, r.Errors(), 1)
}

func TestExecute_WaitsBrieflyForLateAttachedExec(t *testing.T) {
	r := New(nil, nil)
	r.Start()
	r.Ready()

	var wg sync.WaitGroup
	wg.Add(1)
	ran := false
	go func() {
		defer wg.Done()
		time.Sleep(AttachWait / 4)
		r.SetExec(func(*Request) { ran = true })
	}()

	ok := r.Execute()
	wg.Wait()
	assert.True(t, ran)
	assert.True(t, ok)
}

func TestErrors_AreAppendOnlyAndSnapshotted(t *testing.T) {
	r := New(func(*Request) { panic(errors.New("first")) }, nil)
	r.Start()
	r.Ready()
	r.Execute()
	snap1 := r.Errors()
	assert.Len(t, snap1, 1)

	// mutating the snapshot must not affect the Request's own state.
	snap1[0] = nil
	assert.Len(t, r.Errors(), 1)
	assert.NotNil(t, r.Errors()[0])
}
