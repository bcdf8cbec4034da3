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

package boottask_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/just-buildsystem/justbuild/internal/boot/boottask"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsAllTasks(t *testing.T) {
	t.Parallel()
	p := boottask.NewPool(4)
	defer p.Shutdown()

	var mu sync.Mutex
	seen := make(map[int]bool)
	const n = 200
	for i := 0; i < n; i++ {
		i := i
		p.Add(func() {
			mu.Lock()
			seen[i] = true
			mu.Unlock()
		})
	}
	require.NoError(t, p.Finish())
	assert.Len(t, seen, n)
}

func TestPoolChainedContinuations(t *testing.T) {
	t.Parallel()
	p := boottask.NewPool(2)
	defer p.Shutdown()

	done := make(chan struct{})
	p.Add(func() {
		p.Add(func() {
			close(done)
		})
	})
	require.NoError(t, p.Finish())
	select {
	case <-done:
	default:
		t.Fatal("chained continuation never ran before Finish returned")
	}
}

func TestPoolFailShortCircuitsFinish(t *testing.T) {
	t.Parallel()
	p := boottask.NewPool(2)
	defer p.Shutdown()

	sentinel := errors.New("boom")
	p.Add(func() {
		p.Fail(sentinel)
	})
	err := p.Finish()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestPoolFinishReturnsPromptlyWhenIdle(t *testing.T) {
	t.Parallel()
	p := boottask.NewPool(3)
	defer p.Shutdown()

	start := time.Now()
	require.NoError(t, p.Finish())
	assert.Less(t, time.Since(start), time.Second)
}

func TestOnceMapFirstDemandWins(t *testing.T) {
	t.Parallel()
	m := boottask.NewOnceMap()

	var buildCount int
	var mu sync.Mutex
	results := make([]any, 0, 3)
	record := func(v any) {
		mu.Lock()
		results = append(results, v)
		mu.Unlock()
	}

	isFirst := m.Demand("tree/abc", record)
	assert.True(t, isFirst)
	buildCount++

	assert.False(t, m.Demand("tree/abc", record))
	assert.False(t, m.Demand("tree/abc", record))

	// Nothing has run record yet: the build is still in flight and every
	// demand so far, including the first, is queued against Publish.
	mu.Lock()
	assert.Empty(t, results)
	mu.Unlock()

	m.Publish("tree/abc", "built")

	assert.False(t, m.Demand("tree/abc", record))

	mu.Lock()
	defer mu.Unlock()
	// 3 queued demands (the first one included) plus the one made after
	// Publish, which is handed the stored result immediately.
	assert.Equal(t, 4, len(results))
	for _, r := range results {
		assert.Equal(t, "built", r)
	}
	assert.Equal(t, 1, buildCount)
}
