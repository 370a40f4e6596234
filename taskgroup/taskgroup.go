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

// Package taskgroup implements TaskStack and TaskSpawner (spec.md section
// 4.5): owners of an OnExecute/OnPostExecute pair that Tasks they create
// delegate to, modeled on the teacher's ownership-of-a-list-of-sub-objects
// shape (coordinator state managers own and prune a list of live children
// the same lazy way TaskStack prunes DONE tasks before each read).
package taskgroup

import (
	"sync"

	"github.com/lindb/common/pkg/logger"

	"github.com/taskloop/taskloop/errorx"
	"github.com/taskloop/taskloop/task"
)

// defaultOnExecute/defaultOnPostExecute mirror task.New's own defaults, so
// a group with no hooks configured behaves exactly like a bare Task.
func defaultOnExecute(closure func())     { go closure() }
func defaultOnPostExecute(closure func()) { closure() }

// TaskStack is an ordered collection of Tasks with primary/secondary
// cancellation (spec.md section 4.5).
type TaskStack struct {
	mu sync.Mutex

	tasks  []*task.Task
	closed bool

	onExecute     task.DispatchFunc
	onPostExecute task.DispatchFunc

	log logger.Logger
}

// NewTaskStack creates an empty TaskStack.
func NewTaskStack() *TaskStack {
	return &TaskStack{
		onExecute:     defaultOnExecute,
		onPostExecute: defaultOnPostExecute,
		log:           logger.GetLogger("TaskStack", "TaskStack"),
	}
}

// SetOnExecute overrides the hook every Task created after this point (and
// every still-live Task created before it, since dispatch is delegated
// indirectly) will use for its exec phase.
func (s *TaskStack) SetOnExecute(fn task.DispatchFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn == nil {
		fn = defaultOnExecute
	}
	s.onExecute = fn
}

// SetOnPostExecute overrides the group's post-phase dispatch hook.
func (s *TaskStack) SetOnPostExecute(fn task.DispatchFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn == nil {
		fn = defaultOnPostExecute
	}
	s.onPostExecute = fn
}

func (s *TaskStack) dispatchExec(closure func()) {
	s.mu.Lock()
	fn := s.onExecute
	s.mu.Unlock()
	fn(closure)
}

func (s *TaskStack) dispatchPostExec(closure func()) {
	s.mu.Lock()
	fn := s.onPostExecute
	s.mu.Unlock()
	fn(closure)
}

func (s *TaskStack) newTask(exec task.ExecFunc, postExec task.PostExecFunc) *task.Task {
	t := task.New(exec, postExec)
	t.SetOnExecute(s.dispatchExec)
	t.SetOnPostExecute(s.dispatchPostExec)
	return t
}

// updateLocked lazily prunes entries that are DONE or were never started,
// per spec.md section 4.5 ("before any operation that reads the list").
// Caller must hold s.mu.
func (s *TaskStack) updateLocked() {
	live := s.tasks[:0]
	for _, t := range s.tasks {
		st := t.State()
		if st.IsDone() || st.IsNone() {
			continue
		}
		live = append(live, t)
	}
	s.tasks = live
}

// Next creates a Task bound to this stack, appends it, and returns it.
func (s *TaskStack) Next(exec task.ExecFunc, postExec task.PostExecFunc) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errorx.ErrClosed
	}
	s.updateLocked()
	t := s.newTask(exec, postExec)
	s.tasks = append(s.tasks, t)
	return t, nil
}

// Execute is Next followed by Execute on the returned Task.
func (s *TaskStack) Execute(exec task.ExecFunc, postExec task.PostExecFunc) (*task.Task, error) {
	t, err := s.Next(exec, postExec)
	if err != nil {
		return nil, err
	}
	t.Execute()
	return t, nil
}

// GetPrimaryTask returns the last (most recently added) live Task, or nil
// if the stack holds none.
func (s *TaskStack) GetPrimaryTask() *task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateLocked()
	if len(s.tasks) == 0 {
		return nil
	}
	return s.tasks[len(s.tasks)-1]
}

// Cancel removes and cancels the primary Task. Returns false if the stack
// held no live Task.
func (s *TaskStack) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateLocked()
	if len(s.tasks) == 0 {
		return false
	}
	last := len(s.tasks) - 1
	primary := s.tasks[last]
	s.tasks = s.tasks[:last]
	primary.Cancel()
	return true
}

// CancelAll cancels every Task and clears the list.
func (s *TaskStack) CancelAll() {
	s.mu.Lock()
	tasks := s.tasks
	s.tasks = nil
	s.mu.Unlock()

	for _, t := range tasks {
		t.Cancel()
	}
}

// CancelPrevious keeps only the primary Task, canceling the rest.
func (s *TaskStack) CancelPrevious() {
	s.mu.Lock()
	s.updateLocked()
	if len(s.tasks) <= 1 {
		s.mu.Unlock()
		return
	}
	last := len(s.tasks) - 1
	previous := make([]*task.Task, last)
	copy(previous, s.tasks[:last])
	s.tasks = s.tasks[last:]
	s.mu.Unlock()

	for _, t := range previous {
		t.Cancel()
	}
}

// Close cancels every Task, clears the list, and marks the stack closed:
// subsequent Next/Execute calls fail with errorx.ErrClosed.
func (s *TaskStack) Close() {
	s.CancelAll()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.log.Info("task stack closed")
}

// Closed reports whether Close was called.
func (s *TaskStack) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// TaskSpawner is the same shape as TaskStack without the list: every Spawn
// returns a fresh Task bound to the spawner's hooks, and Close simply
// flips a flag — existing Tasks continue running to completion.
type TaskSpawner struct {
	mu sync.Mutex

	closed bool

	onExecute     task.DispatchFunc
	onPostExecute task.DispatchFunc

	log logger.Logger
}

// NewTaskSpawner creates a TaskSpawner.
func NewTaskSpawner() *TaskSpawner {
	return &TaskSpawner{
		onExecute:     defaultOnExecute,
		onPostExecute: defaultOnPostExecute,
		log:           logger.GetLogger("TaskSpawner", "TaskSpawner"),
	}
}

// SetOnExecute overrides the spawner's exec-phase dispatch hook.
func (s *TaskSpawner) SetOnExecute(fn task.DispatchFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn == nil {
		fn = defaultOnExecute
	}
	s.onExecute = fn
}

// SetOnPostExecute overrides the spawner's post-phase dispatch hook.
func (s *TaskSpawner) SetOnPostExecute(fn task.DispatchFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn == nil {
		fn = defaultOnPostExecute
	}
	s.onPostExecute = fn
}

func (s *TaskSpawner) dispatchExec(closure func()) {
	s.mu.Lock()
	fn := s.onExecute
	s.mu.Unlock()
	fn(closure)
}

func (s *TaskSpawner) dispatchPostExec(closure func()) {
	s.mu.Lock()
	fn := s.onPostExecute
	s.mu.Unlock()
	fn(closure)
}

// Spawn creates a fresh Task bound to the spawner's hooks.
func (s *TaskSpawner) Spawn(exec task.ExecFunc, postExec task.PostExecFunc) (*task.Task, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errorx.ErrClosed
	}
	s.mu.Unlock()

	t := task.New(exec, postExec)
	t.SetOnExecute(s.dispatchExec)
	t.SetOnPostExecute(s.dispatchPostExec)
	return t, nil
}

// Close flips the spawner closed; Tasks already spawned continue running.
func (s *TaskSpawner) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.log.Info("task spawner closed")
}

// Closed reports whether Close was called.
func (s *TaskSpawner) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
