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

// Package boottraverse realizes a bootgraph.Graph against a
// bootgraph.Targets mapping into concrete filesystem artifacts
// (spec.md §4.2), in a sequential variant (direct recursion) and a
// parallel variant (continuation-passing over an internal/boot/boottask
// worker pool).
package boottraverse

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/just-buildsystem/justbuild/internal/boot/bootcas"
	"github.com/just-buildsystem/justbuild/internal/boot/bootgraph"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Options configures a Realize call.
type Options struct {
	// LocalBuildRoot is the directory used for KNOWN/TREE/ACTION staging
	// (spec.md §3's root). Required.
	LocalBuildRoot string
	// OutputDirectory is where Targets are linked (spec.md §3's out).
	// Required.
	OutputDirectory string
	// Logger receives structured progress records (one per spawned action;
	// the action's own stdin/stdout/stderr are the process's); defaults to
	// zap.NewNop() when nil, matching library call sites that do not
	// want console noise.
	Logger *zap.Logger
	// Parallel selects the worker-pool traverser (spec.md §4.3) instead
	// of the direct-recursion one.
	Parallel bool
	// Workers is the worker-pool size used when Parallel is set; <= 0
	// means boottask.NumWorkers().
	Workers int
}

// Realize builds every artifact named in targets and links it into
// opts.OutputDirectory, using graph to resolve TREE/ACTION descriptors and
// repoConfig to resolve LOCAL descriptors (spec.md §4.2).
func Realize(ctx context.Context, graph *bootgraph.Graph, targets bootgraph.Targets, repoConfig *bootgraph.RepositoryConfig, opts Options) error {
	if opts.LocalBuildRoot == "" || opts.OutputDirectory == "" {
		return fmt.Errorf("boottraverse: LocalBuildRoot and OutputDirectory are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(opts.OutputDirectory, 0o755); err != nil {
		return fmt.Errorf("boottraverse: create output directory: %w", err)
	}
	if err := os.MkdirAll(opts.LocalBuildRoot, 0o755); err != nil {
		return fmt.Errorf("boottraverse: create local build root: %w", err)
	}
	if err := stageBlobs(opts.LocalBuildRoot, graph.Blobs); err != nil {
		return err
	}

	if opts.Parallel {
		return realizeParallel(ctx, graph, targets, repoConfig, opts, logger)
	}
	return realizeSequential(ctx, graph, targets, repoConfig, opts, logger)
}

// stageBlobs pre-populates root's content-addressed blob store with the
// graph's literal blobs, mirroring
// original_source/bin/bootstrap-traverser.py's create_blobs (spec.md §4.4).
//
// Every blob is independent (bootcas.Store.Add is safe for concurrent use:
// each write lands on its own uniquely-named temporary file before the
// final rename), so staging fans the writes out across an errgroup instead
// of writing them one at a time, matching the fan-out-then-wait shape of
// bufbuild-buf/internal/pkg/storage/copy.go.
func stageBlobs(localBuildRoot string, blobs []string) error {
	store, err := bootcas.NewStore(localBuildRoot)
	if err != nil {
		return fmt.Errorf("boottraverse: open blob store: %w", err)
	}
	group, _ := errgroup.WithContext(context.Background())
	for _, blob := range blobs {
		blob := blob
		group.Go(func() error {
			if _, err := store.Add([]byte(blob)); err != nil {
				return fmt.Errorf("boottraverse: stage blob: %w", err)
			}
			return nil
		})
	}
	return group.Wait()
}

func knownPath(localBuildRoot, id string) string {
	return filepath.Join(localBuildRoot, "KNOWN", id)
}

func treeDir(localBuildRoot, id string) string {
	return filepath.Join(localBuildRoot, "TREE", id)
}

func actionDirFor(localBuildRoot, id string) string {
	return filepath.Join(localBuildRoot, "ACTION", id)
}

// resolveLocal maps a LOCAL descriptor to its absolute path via repoConfig
// (spec.md §3, §4.2), mirroring build_local.
func resolveLocal(repoConfig *bootgraph.RepositoryConfig, repository, relPath string) (string, error) {
	root, err := repoConfig.WorkspaceRootOf(repository)
	if err != nil {
		return "", fmt.Errorf("boottraverse: resolve LOCAL(%s, %s): %w", repository, relPath, err)
	}
	return filepath.Join(root, relPath), nil
}
