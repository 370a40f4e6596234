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

package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPatterns(t *testing.T) {
	assert.True(t, None.IsNone())
	assert.False(t, Started.IsNone())

	assert.True(t, Started.IsStarted())
	assert.False(t, Started.IsReady())
	assert.False(t, Started.IsRunning())
	assert.False(t, Started.IsDone())
	assert.True(t, Started.IsWaiting())

	assert.True(t, Ready.IsStarted())
	assert.True(t, Ready.IsReady())
	assert.True(t, Ready.IsWaiting())

	assert.True(t, Running.IsReady())
	assert.True(t, Running.IsRunning())
	assert.False(t, Running.IsWaiting())
	assert.False(t, Running.IsDone())

	assert.True(t, Done.IsStarted())
	assert.True(t, Done.IsDone())
	assert.False(t, Done.IsRunning())

	assert.True(t, Canceled.IsDone())
	assert.True(t, Canceled.IsCanceled())

	assert.True(t, Success.IsDone())
	assert.True(t, Success.IsSuccess())
	assert.True(t, Success.IsSuccessful())

	assert.True(t, Failed.IsDone())
	assert.True(t, Failed.IsFailed())

	assert.True(t, PostFailed.IsDone())
	assert.True(t, PostFailed.IsPostFailed())
}

func TestIsSuccess_PreDoneSkipHint(t *testing.T) {
	// raw success bit can be set without Done, per the open question in
	// spec.md section 9: used internally to preset the skip hint.
	preset := Started | (Success &^ Done)
	assert.True(t, preset.IsSuccess())
	assert.False(t, preset.IsDone())
	assert.False(t, preset.IsSuccessful())
}

func TestSkipBit(t *testing.T) {
	assert.False(t, Started.SkipBit())
	assert.True(t, Success.SkipBit())
	assert.True(t, Failed.SkipBit())
	assert.False(t, Canceled.SkipBit())
}

func TestRunningAndDoneMutuallyExclusive(t *testing.T) {
	// invariant 2: a Request/Task is never simultaneously Running and Done.
	assert.False(t, Running.IsDone())
	assert.False(t, Done.IsRunning())
}

func TestString(t *testing.T) {
	assert.Equal(t, "NONE", None.String())
	assert.Equal(t, "STARTED", Started.String())
	assert.Equal(t, "READY", Ready.String())
	assert.Equal(t, "RUNNING", Running.String())
	assert.Equal(t, "SUCCESS|DONE", Success.String())
	assert.Equal(t, "CANCELED|DONE", Canceled.String())
	assert.Equal(t, "SUCCESS|POST_FAILED|DONE", (Success | PostFailed).String())
}
