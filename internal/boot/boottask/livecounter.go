// Copyright 2020 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package boottask

import "sync"

// liveCounter is the pool's total_work liveness counter (spec.md §4.3):
// an int64 guarded by a condition variable that only ever wakes waiters
// when the value reaches zero.
type liveCounter struct {
	mu    sync.Mutex
	cond  *sync.Cond
	value int64
	// forced is set by forceZero; waitForZero returns once it is set, even
	// if workers still winding down move value away from zero again.
	forced bool
}

func newLiveCounter(initial int64) *liveCounter {
	c := &liveCounter{value: initial}
	c.cond = sync.NewCond(&c.mu)
	return c
}

func (c *liveCounter) fetchInc(by int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.value
	c.value += by
	if c.value == 0 {
		c.cond.Broadcast()
	}
	return prev
}

func (c *liveCounter) fetchDec(by int64) int64 {
	return c.fetchInc(-by)
}

func (c *liveCounter) forceZero() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = 0
	c.forced = true
	c.cond.Broadcast()
}

func (c *liveCounter) waitForZero() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.value != 0 && !c.forced {
		c.cond.Wait()
	}
}
