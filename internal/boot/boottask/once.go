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

// entryState is the lifecycle of one OnceMap entry (spec.md §4.2's
// once-only guarantee): Created when first demanded, then Inserted and
// Cleared together inside Publish, under the map's lock, once the result
// is recorded and the queued continuations have been taken off the entry
// (Publish invokes them after releasing the lock).
type entryState int

const (
	created entryState = iota
	inserted
	cleared
)

type onceEntry struct {
	state    entryState
	result   any
	onInsert []func(any)
}

// OnceMap de-duplicates concurrent demand for the same key (a tree or
// action id): the first Demand call for a key runs build itself and
// fan-outs the result to every continuation registered by later Demand
// calls for that key, whether they arrived before or after the result was
// ready (spec.md §4.2, §4.3 "AtomicListMap").
type OnceMap struct {
	mu      sync.Mutex
	entries map[string]*onceEntry
}

// NewOnceMap returns an empty OnceMap.
func NewOnceMap() *OnceMap {
	return &OnceMap{entries: make(map[string]*onceEntry)}
}

// Demand registers continuation against key. If this is the first demand
// for key, build is invoked (by the caller, synchronously, after Demand
// returns true) and the caller must call Publish(key, result) when it
// completes; continuation itself is queued exactly like any other
// waiter's, so the first caller is notified through the same Publish
// fan-out rather than needing to handle its own result separately. If key
// is already Inserted, continuation is invoked immediately with the
// stored result and Demand returns false. If key is Created but not yet
// Inserted, continuation is queued and Demand returns false.
func (m *OnceMap) Demand(key string, continuation func(any)) (isFirst bool) {
	m.mu.Lock()
	entry, ok := m.entries[key]
	if !ok {
		entry = &onceEntry{state: created}
		m.entries[key] = entry
	}
	switch entry.state {
	case inserted, cleared:
		result := entry.result
		m.mu.Unlock()
		continuation(result)
		return false
	default: // created
		entry.onInsert = append(entry.onInsert, continuation)
		m.mu.Unlock()
		return !ok
	}
}

// Publish records result for key and invokes every continuation queued
// while the build was in flight, then marks the entry Cleared.
func (m *OnceMap) Publish(key string, result any) {
	m.mu.Lock()
	entry := m.entries[key]
	entry.state = inserted
	entry.result = result
	waiters := entry.onInsert
	entry.onInsert = nil
	entry.state = cleared
	m.mu.Unlock()

	for _, waiter := range waiters {
		waiter(result)
	}
}
