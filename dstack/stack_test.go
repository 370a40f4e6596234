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

func TestDStack_LIFOOrder(t *testing.T) {
	s := NewDStack[string](0)
	assert.NoError(t, s.Push("1"))
	assert.NoError(t, s.Push("2"))
	assert.NoError(t, s.Push("3"))

	v, ok := s.Pop()
	assert.True(t, ok)
	assert.Equal(t, "3", v)

	v, ok = s.Pop()
	assert.True(t, ok)
	assert.Equal(t, "2", v)

	v, ok = s.Pop()
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	_, ok = s.Pop()
	assert.False(t, ok)
}

func TestDStack_PeekDoesNotRemove(t *testing.T) {
	s := NewDStack[int](0)
	_ = s.Push(1)
	_ = s.Push(2)
	v, ok := s.Peek()
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, 2, s.Len())
}

func TestDStack_EachIsOldestFirst(t *testing.T) {
	s := NewDStack[int](0)
	_ = s.Push(1)
	_ = s.Push(2)
	_ = s.Push(3)

	var seen []int
	s.Each(func(_ int, v int) bool {
		seen = append(seen, v)
		return true
	})
	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestDStack_GrowsRatherThanFull(t *testing.T) {
	s := NewDStack[int](1)
	for i := 0; i < 100; i++ {
		assert.NoError(t, s.Push(i))
	}
	assert.Equal(t, 100, s.Len())
}
