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

// Package syncutil holds small synchronization helpers shared by request,
// handler and task — none of these are part of the public API.
package syncutil

import (
	"sync"
	"time"
)

// WaitTimeout waits on cond, whose lock the caller must already hold,
// until predicate returns true or the timeout elapses. A negative timeout
// waits with no deadline. It returns the final predicate() result.
func WaitTimeout(cond *sync.Cond, timeout time.Duration, predicate func() bool) bool {
	if predicate() {
		return true
	}
	if timeout == 0 {
		return predicate()
	}

	infinite := timeout < 0
	var deadline time.Time
	var timer *time.Timer
	if infinite {
		// no timer: rely purely on Broadcast/Signal from the owner.
	} else {
		deadline = time.Now().Add(timeout)
		timer = time.AfterFunc(timeout, func() {
			cond.L.Lock()
			cond.Broadcast()
			cond.L.Unlock()
		})
		defer timer.Stop()
	}

	for !predicate() {
		if !infinite && !time.Now().Before(deadline) {
			return predicate()
		}
		cond.Wait()
	}
	return true
}
