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

package dstack

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeque_PushPopBothEnds(t *testing.T) {
	d := NewDeque[int](4)
	d.PushBack(1)
	d.PushBack(2)
	d.PushFront(0)
	assert.Equal(t, 3, d.Len())
	assert.Equal(t, []int{0, 1, 2}, d.Snapshot())

	v, ok := d.PopFront()
	assert.True(t, ok)
	assert.Equal(t, 0, v)

	v, ok = d.PopBack()
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	assert.Equal(t, 1, d.Len())
}

func TestDeque_EnsureGrows(t *testing.T) {
	d := NewDeque[int](2)
	for i := 0; i < 10; i++ {
		err := d.Ensure(1, 2)
		assert.NoError(t, err)
		d.PushBack(i)
	}
	assert.Equal(t, 10, d.Len())
	assert.GreaterOrEqual(t, d.Cap(), 10)
	for i := 0; i < 10; i++ {
		v, err := d.GetAt(i)
		assert.NoError(t, err)
		assert.Equal(t, i, v)
	}
}

func TestDeque_EnsureFailsNonPositiveGrowth(t *testing.T) {
	d := NewDeque[int](1)
	d.PushBack(1)
	err := d.Ensure(1, 0)
	assert.ErrorIs(t, err, ErrNonPositiveGrowth)
}

func TestDeque_ResizeLossless(t *testing.T) {
	d := NewDeque[int](4)
	d.PushBack(1)
	d.PushBack(2)
	d.PushBack(3)
	err := d.Resize(2, true)
	assert.ErrorIs(t, err, ErrLossyResize)

	err = d.Resize(2, false)
	assert.NoError(t, err)
	assert.Equal(t, 2, d.Len())
}

func TestDeque_GetAtOutOfRange(t *testing.T) {
	d := NewDeque[int](2)
	d.PushBack(1)
	_, err := d.GetAt(5)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = d.GetAt(-1)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestDeque_PushWhenFullOverwritesOppositeEnd(t *testing.T) {
	d := NewDeque[int](2)
	d.PushBack(1)
	d.PushBack(2)
	// full: pushing at front overwrites the tail (2)
	d.PushFront(0)
	assert.Equal(t, 2, d.Len())
	assert.Equal(t, []int{0, 1}, d.Snapshot())
}

func TestDeque_WrapAroundIndexing(t *testing.T) {
	d := NewDeque[int](3)
	d.PushBack(1)
	d.PushBack(2)
	d.PushBack(3)
	_, _ = d.PopFront()
	d.PushBack(4) // wraps around the backing array
	assert.Equal(t, []int{2, 3, 4}, d.Snapshot())
}

func TestDeque_Clear(t *testing.T) {
	d := NewDeque[int](3)
	d.PushBack(1)
	d.PushBack(2)
	d.Clear()
	assert.Equal(t, 0, d.Len())
	_, ok := d.PopBack()
	assert.False(t, ok)
}
