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

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	gomock "go.uber.org/mock/gomock"
)

func TestWall_NowMillis(t *testing.T) {
	before := time.Now().UnixMilli()
	got := Wall{}.NowMillis()
	after := time.Now().UnixMilli()
	assert.GreaterOrEqual(t, got, before)
	assert.LessOrEqual(t, got, after)
}

func TestFake_AdvanceAndSet(t *testing.T) {
	f := NewFake(1000)
	assert.EqualValues(t, 1000, f.NowMillis())

	assert.EqualValues(t, 1050, f.Advance(50))
	assert.EqualValues(t, 1050, f.NowMillis())

	f.Set(5000)
	assert.EqualValues(t, 5000, f.NowMillis())
}

func TestMockSource(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := NewMockSource(ctrl)
	m.EXPECT().NowMillis().Return(int64(42))
	assert.EqualValues(t, 42, m.NowMillis())
}
