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

// Package boottask is the worker pool (parallel variant) of spec.md §4.3: W
// worker goroutines, each owning one FIFO queue, fed round-robin, with a
// single liveness counter that Finish blocks on.
package boottask

import (
	"fmt"
	"runtime"
	"sync"

	"go.uber.org/atomic"
)

// Pool is a fixed-size worker pool with one FIFO queue per worker.
//
// Add never blocks the caller on anything but the destination queue's
// mutex: a task that would itself block (waiting on a child
// tree/action) must instead register a continuation and return, per
// spec.md §5 ("a realization that depends on a still-building tree/action
// does NOT spin; it registers a callback and releases its worker").
type Pool struct {
	numWorkers int
	queues     []*workQueue
	current    atomic.Uint64
	totalWork  *liveCounter
	shutdown   atomic.Bool

	errMu   sync.Mutex
	firstErr error

	wg sync.WaitGroup
}

type workQueue struct {
	mu    sync.Mutex
	cond  *sync.Cond
	tasks []func()
}

// NumWorkers returns the default worker count: the number of logical CPUs,
// at least one (spec.md §4.3).
func NumWorkers() int {
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return 1
}

// NewPool creates a pool with workers many worker goroutines. workers <= 0
// is treated as NumWorkers().
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = NumWorkers()
	}
	p := &Pool{
		numWorkers: workers,
		queues:     make([]*workQueue, workers),
		totalWork:  newLiveCounter(int64(workers)), // every worker starts active
	}
	for i := range p.queues {
		q := &workQueue{}
		q.cond = sync.NewCond(&q.mu)
		p.queues[i] = q
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.run(p.queues[i])
	}
	return p
}

// Add enqueues fn on the next queue in round-robin order. It is a no-op
// once the pool has begun shutting down.
func (p *Pool) Add(fn func()) {
	if p.shutdown.Load() {
		return
	}
	idx := p.current.Inc() - 1
	q := p.queues[idx%uint64(p.numWorkers)]
	p.totalWork.fetchInc(1)
	q.mu.Lock()
	q.tasks = append(q.tasks, fn)
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Finish blocks until every queued task and every active worker has
// settled (spec.md §4.3's total_work reaching zero), then returns the
// first error reported by any task, if any.
func (p *Pool) Finish() error {
	p.totalWork.waitForZero()
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.firstErr
}

// Shutdown initiates shutdown and waits for every worker goroutine to stop.
func (p *Pool) Shutdown() {
	p.shutdown.Store(true)
	for _, q := range p.queues {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	}
	p.wg.Wait()
}

// Fail records err as the pool's terminal error (if none is recorded yet),
// forces the liveness counter to zero so Finish unblocks, and raises the
// shutdown flag so every worker stops picking up new tasks (spec.md §4.3's
// "cancellation": "any unrecoverable worker exception triggers global
// shutdown; total_work is forced to zero").
func (p *Pool) Fail(err error) {
	p.errMu.Lock()
	if p.firstErr == nil {
		p.firstErr = err
	}
	p.errMu.Unlock()
	p.shutdown.Store(true)
	p.totalWork.forceZero()
	for _, q := range p.queues {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	}
}

func (p *Pool) run(q *workQueue) {
	defer p.wg.Done()
	for {
		if p.shutdown.Load() {
			return
		}
		q.mu.Lock()
		for len(q.tasks) == 0 && !p.shutdown.Load() {
			p.totalWork.fetchDec(1) // suspend: no longer counted as active
			q.cond.Wait()
			p.totalWork.fetchInc(1) // resumed: active again
		}
		if p.shutdown.Load() {
			q.mu.Unlock()
			return
		}
		task := q.tasks[0]
		q.tasks = q.tasks[1:]
		p.totalWork.fetchDec(1) // task dequeued, no longer counted as queued work
		q.mu.Unlock()
		p.runTask(task)
	}
}

func (p *Pool) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.Fail(fmt.Errorf("boottask: task panicked: %v", r))
		}
	}()
	task()
}
