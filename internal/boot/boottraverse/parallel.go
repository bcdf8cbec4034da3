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

package boottraverse

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/just-buildsystem/justbuild/internal/boot/bootgraph"
	"github.com/just-buildsystem/justbuild/internal/boot/boottask"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// continuation receives the resolved path of a built artifact. Errors do
// not flow back through continuations: any failure is reported straight
// to the pool via Pool.Fail, which aborts the whole traversal, matching
// the fatal, non-recoverable treatment spec.md §7 gives graph
// inconsistencies and action failures.
type continuation func(path string)

// parallelRealizer is the continuation-passing counterpart of
// sequentialRealizer, grounded on
// original_source/bin/parallel-bootstrap-traverser.py: every build step
// that may block on a child artifact schedules a boottask.Pool task and
// returns immediately instead of occupying a worker while idle. Repeated
// demand for the same tree or action id is folded through a
// boottask.OnceMap keyed "TREE/<id>" / "ACTION/<id>", exactly as the
// reference implementation's AtomicListMap is keyed.
type parallelRealizer struct {
	graph      *bootgraph.Graph
	repoConfig *bootgraph.RepositoryConfig
	root       string
	logger     *zap.Logger
	pool       *boottask.Pool
	once       *boottask.OnceMap
}

func realizeParallel(ctx context.Context, graph *bootgraph.Graph, targets bootgraph.Targets, repoConfig *bootgraph.RepositoryConfig, opts Options, logger *zap.Logger) error {
	pool := boottask.NewPool(opts.Workers)
	defer pool.Shutdown()

	r := &parallelRealizer{
		graph:      graph,
		repoConfig: repoConfig,
		root:       opts.LocalBuildRoot,
		logger:     logger,
		pool:       pool,
		once:       boottask.NewOnceMap(),
	}

	for location, desc := range targets {
		location, desc := location, desc
		pool.Add(func() {
			r.build(ctx, desc, func(path string) {
				if err := link(path, opts.OutputDirectory, location); err != nil {
					pool.Fail(err)
				}
			})
		})
	}
	return pool.Finish()
}

func (r *parallelRealizer) build(ctx context.Context, desc bootgraph.Descriptor, cb continuation) {
	switch desc.Type {
	case bootgraph.DescriptorKnown:
		cb(knownPath(r.root, desc.ID))
	case bootgraph.DescriptorLocal:
		path, err := resolveLocal(r.repoConfig, desc.Repository, desc.Path)
		if err != nil {
			r.pool.Fail(err)
			return
		}
		cb(path)
	case bootgraph.DescriptorTree:
		r.buildTree(ctx, desc.ID, cb)
	case bootgraph.DescriptorAction:
		r.buildAction(ctx, desc.ActionID, func(actionDir string) {
			cb(filepath.Join(actionDir, desc.Path))
		})
	default:
		r.pool.Fail(fmt.Errorf("boottraverse: don't know how to build descriptor of type %q", desc.Type))
	}
}

func (r *parallelRealizer) buildTree(ctx context.Context, treeID string, cb continuation) {
	dir := treeDir(r.root, treeID)
	key := "TREE/" + treeID
	if isFirst := r.once.Demand(key, func(v any) { cb(v.(string)) }); !isFirst {
		return
	}

	tree, ok := r.graph.Trees[treeID]
	if !ok {
		r.pool.Fail(fmt.Errorf("boottraverse: unknown tree id %q", treeID))
		return
	}
	tmp := dir + ".tmp"
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		r.pool.Fail(fmt.Errorf("boottraverse: create tree staging dir %q: %w", tmp, err))
		return
	}

	publish := func() {
		if err := publishDir(tmp, dir); err != nil {
			r.pool.Fail(err)
			return
		}
		r.once.Publish(key, dir)
	}

	remaining := atomic.NewInt64(int64(len(tree)))
	if remaining.Load() == 0 { // empty tree: nothing to wait on
		publish()
		return
	}
	for location, entry := range tree {
		location, entry := location, entry
		r.pool.Add(func() {
			r.build(ctx, entry, func(path string) {
				if err := link(path, tmp, location); err != nil {
					r.pool.Fail(err)
					return
				}
				if remaining.Dec() == 0 {
					publish()
				}
			})
		})
	}
}

func (r *parallelRealizer) buildAction(ctx context.Context, actionID string, cb continuation) {
	dir := actionDirFor(r.root, actionID)
	key := "ACTION/" + actionID
	if isFirst := r.once.Demand(key, func(v any) { cb(v.(string)) }); !isFirst {
		return
	}

	action, ok := r.graph.Actions[actionID]
	if !ok {
		r.pool.Fail(fmt.Errorf("boottraverse: unknown action id %q", actionID))
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.pool.Fail(fmt.Errorf("boottraverse: create action dir %q: %w", dir, err))
		return
	}

	runAndPublish := func() {
		if err := runAction(ctx, actionID, action, dir, r.logger); err != nil {
			r.pool.Fail(err)
			return
		}
		r.once.Publish(key, dir)
	}

	remaining := atomic.NewInt64(int64(len(action.Input)))
	if remaining.Load() == 0 {
		runAndPublish()
		return
	}
	for location, entry := range action.Input {
		location, entry := location, entry
		r.pool.Add(func() {
			r.build(ctx, entry, func(path string) {
				if err := link(path, dir, location); err != nil {
					r.pool.Fail(err)
					return
				}
				if remaining.Dec() == 0 {
					runAndPublish()
				}
			})
		})
	}
}

// publishDir moves tmp into place at dir. If dir was published by a
// concurrent caller in the brief window before this one observed the
// OnceMap (never true within a single process today, since OnceMap
// already serializes first-demand, but kept defensive since a future
// multi-process cache could share the local build root), tmp is
// discarded instead of erroring.
func publishDir(tmp, dir string) error {
	if _, err := os.Stat(dir); err == nil {
		_ = os.RemoveAll(tmp)
		return nil
	}
	if err := os.Rename(tmp, dir); err != nil {
		_ = os.RemoveAll(tmp)
		return fmt.Errorf("boottraverse: publish %q: %w", dir, err)
	}
	return nil
}
