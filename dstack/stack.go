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

import "errors"

// ErrFull is returned by Push if the stack could not grow to accommodate
// the new element. In practice this should not happen since Push always
// grows the backing Deque first.
var ErrFull = errors.New("dstack: stack is full")

// growthFactor is DStack's fixed Deque growth factor.
const growthFactor = 2.0

// DStack is a LIFO stack backed by a Deque: Push and Pop/Peek both act on
// the same (tail) end, so the most recently pushed element is always the
// next one popped, while Each/Snapshot walk from the opposite end and so
// see elements oldest-first.
type DStack[T any] struct {
	d *Deque[T]
}

// NewDStack creates an empty DStack with the given initial capacity.
func NewDStack[T any](capacity int) *DStack[T] {
	return &DStack[T]{d: NewDeque[T](capacity)}
}

// Len returns the number of live elements.
func (s *DStack[T]) Len() int { return s.d.Len() }

// Push grows the backing Deque if needed, then inserts v so it is the
// next element Pop returns.
func (s *DStack[T]) Push(v T) error {
	if err := s.d.Ensure(1, growthFactor); err != nil {
		return ErrFull
	}
	s.d.PushBack(v)
	return nil
}

// Pop removes and returns the most recently pushed live element.
func (s *DStack[T]) Pop() (v T, ok bool) {
	return s.d.PopBack()
}

// Peek returns the most recently pushed live element without removing it.
func (s *DStack[T]) Peek() (v T, ok bool) {
	return s.d.PeekBack()
}

// Each iterates oldest-first (i.e. reverse pop order), stopping early if
// fn returns false.
func (s *DStack[T]) Each(fn func(i int, v T) bool) {
	s.d.Each(fn)
}

// Snapshot returns a copy of the live elements, oldest-first.
func (s *DStack[T]) Snapshot() []T {
	return s.d.Snapshot()
}

// Clear empties the stack.
func (s *DStack[T]) Clear() {
	s.d.Clear()
}
