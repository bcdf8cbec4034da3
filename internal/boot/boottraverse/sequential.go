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
	"go.uber.org/zap"
)

// sequentialRealizer walks the descriptor graph by direct recursion,
// mirroring original_source/bin/bootstrap-traverser.py: no concurrency,
// so the once-only guarantee reduces to "check whether the directory
// already exists before building it".
type sequentialRealizer struct {
	graph      *bootgraph.Graph
	repoConfig *bootgraph.RepositoryConfig
	root       string
	logger     *zap.Logger
}

func realizeSequential(ctx context.Context, graph *bootgraph.Graph, targets bootgraph.Targets, repoConfig *bootgraph.RepositoryConfig, opts Options, logger *zap.Logger) error {
	r := &sequentialRealizer{graph: graph, repoConfig: repoConfig, root: opts.LocalBuildRoot, logger: logger}
	for location, desc := range targets {
		path, err := r.build(ctx, desc)
		if err != nil {
			return err
		}
		if err := link(path, opts.OutputDirectory, location); err != nil {
			return err
		}
	}
	return nil
}

func (r *sequentialRealizer) build(ctx context.Context, desc bootgraph.Descriptor) (string, error) {
	switch desc.Type {
	case bootgraph.DescriptorKnown:
		return knownPath(r.root, desc.ID), nil
	case bootgraph.DescriptorLocal:
		return resolveLocal(r.repoConfig, desc.Repository, desc.Path)
	case bootgraph.DescriptorTree:
		return r.buildTree(ctx, desc.ID)
	case bootgraph.DescriptorAction:
		actionDir, err := r.buildAction(ctx, desc.ActionID)
		if err != nil {
			return "", err
		}
		return filepath.Join(actionDir, desc.Path), nil
	default:
		return "", fmt.Errorf("boottraverse: don't know how to build descriptor of type %q", desc.Type)
	}
}

func (r *sequentialRealizer) buildTree(ctx context.Context, treeID string) (string, error) {
	dir := treeDir(r.root, treeID)
	tree, ok := r.graph.Trees[treeID]
	if !ok {
		return "", fmt.Errorf("boottraverse: unknown tree id %q", treeID)
	}
	err := mkdirAtomic(dir, func(tmp string) error {
		for location, entry := range tree {
			path, err := r.build(ctx, entry)
			if err != nil {
				return err
			}
			if err := link(path, tmp, location); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return dir, nil
}

func (r *sequentialRealizer) buildAction(ctx context.Context, actionID string) (string, error) {
	dir := actionDirFor(r.root, actionID)
	if _, err := os.Stat(dir); err == nil {
		return dir, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("boottraverse: stat action dir %q: %w", dir, err)
	}

	action, ok := r.graph.Actions[actionID]
	if !ok {
		return "", fmt.Errorf("boottraverse: unknown action id %q", actionID)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("boottraverse: create action dir %q: %w", dir, err)
	}
	for location, entry := range action.Input {
		path, err := r.build(ctx, entry)
		if err != nil {
			return "", err
		}
		if err := link(path, dir, location); err != nil {
			return "", err
		}
	}
	if err := runAction(ctx, actionID, action, dir, r.logger); err != nil {
		return "", err
	}
	return dir, nil
}
