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

package boottraverse_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/just-buildsystem/justbuild/internal/boot/bootgraph"
	"github.com/just-buildsystem/justbuild/internal/boot/boottraverse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func realizeBoth(t *testing.T, graph *bootgraph.Graph, targets bootgraph.Targets, repoConfig *bootgraph.RepositoryConfig) (sequentialOut, parallelOut string) {
	t.Helper()
	ctx := context.Background()

	sequentialOut = t.TempDir()
	require.NoError(t, boottraverse.Realize(ctx, graph, targets, repoConfig, boottraverse.Options{
		LocalBuildRoot:  filepath.Join(t.TempDir(), "root-seq"),
		OutputDirectory: sequentialOut,
	}))

	parallelOut = t.TempDir()
	require.NoError(t, boottraverse.Realize(ctx, graph, targets, repoConfig, boottraverse.Options{
		LocalBuildRoot:  filepath.Join(t.TempDir(), "root-par"),
		OutputDirectory: parallelOut,
		Parallel:        true,
		Workers:         4,
	}))
	return sequentialOut, parallelOut
}

func TestRealizeSingleBlob(t *testing.T) {
	t.Parallel()
	graph := &bootgraph.Graph{
		Blobs:   []string{"hello"},
		Trees:   map[string]bootgraph.Tree{},
		Actions: map[string]bootgraph.Action{},
	}
	targets := bootgraph.Targets{
		"out.txt": {Type: bootgraph.DescriptorKnown, ID: "b6fc4c620b67d95f953a5c1c1230aaab5db5a1b0"},
	}
	seqOut, parOut := realizeBoth(t, graph, targets, &bootgraph.RepositoryConfig{})

	for _, out := range []string{seqOut, parOut} {
		content, err := os.ReadFile(filepath.Join(out, "out.txt"))
		require.NoError(t, err)
		assert.Equal(t, "hello", string(content))
	}
}

func TestRealizeEmptyTree(t *testing.T) {
	t.Parallel()
	graph := &bootgraph.Graph{
		Blobs: []string{},
		Trees: map[string]bootgraph.Tree{
			"empty": {},
		},
		Actions: map[string]bootgraph.Action{},
	}
	targets := bootgraph.Targets{
		"dir": {Type: bootgraph.DescriptorTree, ID: "empty"},
	}
	seqOut, parOut := realizeBoth(t, graph, targets, &bootgraph.RepositoryConfig{})

	for _, out := range []string{seqOut, parOut} {
		info, err := os.Stat(filepath.Join(out, "dir"))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
		entries, err := os.ReadDir(filepath.Join(out, "dir"))
		require.NoError(t, err)
		assert.Empty(t, entries)
	}
}

func TestRealizeIdentityActionViaCp(t *testing.T) {
	t.Parallel()
	graph := &bootgraph.Graph{
		Blobs: []string{"payload"},
		Trees: map[string]bootgraph.Tree{},
		Actions: map[string]bootgraph.Action{
			"copy": {
				Input: map[string]bootgraph.Descriptor{
					"in.txt": {Type: bootgraph.DescriptorKnown, ID: "47d05ff6403c8e6c3cf635ea6eb9263738432773"},
				},
				Output:  []string{"out.txt"},
				Command: []string{"cp", "in.txt", "out.txt"},
			},
		},
	}
	targets := bootgraph.Targets{
		"result.txt": {Type: bootgraph.DescriptorAction, ActionID: "copy", Path: "out.txt"},
	}
	seqOut, parOut := realizeBoth(t, graph, targets, &bootgraph.RepositoryConfig{})

	for _, out := range []string{seqOut, parOut} {
		content, err := os.ReadFile(filepath.Join(out, "result.txt"))
		require.NoError(t, err)
		assert.Equal(t, "payload", string(content))
	}
}

func TestRealizeSharedSubtreeDedup(t *testing.T) {
	t.Parallel()
	graph := &bootgraph.Graph{
		Blobs: []string{"shared"},
		Trees: map[string]bootgraph.Tree{
			"leaf": {
				"file.txt": {Type: bootgraph.DescriptorKnown, ID: "26bcf9d8c52cf94eda9378a311a3f95b9849a60e"},
			},
			"branch-a": {
				"sub": {Type: bootgraph.DescriptorTree, ID: "leaf"},
			},
			"branch-b": {
				"sub": {Type: bootgraph.DescriptorTree, ID: "leaf"},
			},
		},
		Actions: map[string]bootgraph.Action{},
	}
	targets := bootgraph.Targets{
		"a": {Type: bootgraph.DescriptorTree, ID: "branch-a"},
		"b": {Type: bootgraph.DescriptorTree, ID: "branch-b"},
	}
	seqOut, parOut := realizeBoth(t, graph, targets, &bootgraph.RepositoryConfig{})

	for _, out := range []string{seqOut, parOut} {
		a, err := os.ReadFile(filepath.Join(out, "a", "sub", "file.txt"))
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(out, "b", "sub", "file.txt"))
		require.NoError(t, err)
		assert.Equal(t, "shared", string(a))
		assert.Equal(t, string(a), string(b))
	}
}

func TestRealizeRejectsEscapingTargetLocation(t *testing.T) {
	t.Parallel()
	graph := &bootgraph.Graph{
		Blobs:   []string{"hello"},
		Trees:   map[string]bootgraph.Tree{},
		Actions: map[string]bootgraph.Action{},
	}
	targets := bootgraph.Targets{
		"../escape.txt": {Type: bootgraph.DescriptorKnown, ID: "b6fc4c620b67d95f953a5c1c1230aaab5db5a1b0"},
	}
	outsideParent := t.TempDir()
	out := filepath.Join(outsideParent, "out")
	require.NoError(t, os.MkdirAll(out, 0o755))

	err := boottraverse.Realize(context.Background(), graph, targets, &bootgraph.RepositoryConfig{}, boottraverse.Options{
		LocalBuildRoot:  filepath.Join(t.TempDir(), "root"),
		OutputDirectory: out,
	})
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(outsideParent, "escape.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRealizeRejectsEscapingTreeEntryLocation(t *testing.T) {
	t.Parallel()
	graph := &bootgraph.Graph{
		Blobs: []string{"hello"},
		Trees: map[string]bootgraph.Tree{
			"evil": {
				"../../etc/passwd": {Type: bootgraph.DescriptorKnown, ID: "b6fc4c620b67d95f953a5c1c1230aaab5db5a1b0"},
			},
		},
		Actions: map[string]bootgraph.Action{},
	}
	targets := bootgraph.Targets{
		"dir": {Type: bootgraph.DescriptorTree, ID: "evil"},
	}
	err := boottraverse.Realize(context.Background(), graph, targets, &bootgraph.RepositoryConfig{}, boottraverse.Options{
		LocalBuildRoot:  filepath.Join(t.TempDir(), "root"),
		OutputDirectory: t.TempDir(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid location")
}

func TestRealizeLocalDescriptor(t *testing.T) {
	t.Parallel()
	workspace := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(workspace, "src.txt"), []byte("from-workspace"), 0o644))

	graph := &bootgraph.Graph{Blobs: []string{}, Trees: map[string]bootgraph.Tree{}, Actions: map[string]bootgraph.Action{}}
	targets := bootgraph.Targets{
		"out.txt": {Type: bootgraph.DescriptorLocal, Repository: "main", Path: "src.txt"},
	}
	repoConfig := &bootgraph.RepositoryConfig{
		Repositories: map[string]bootgraph.RepositoryEntry{
			"main": {WorkspaceRoot: &bootgraph.WorkspaceRoot{Kind: "file", Path: workspace}},
		},
	}
	seqOut, parOut := realizeBoth(t, graph, targets, repoConfig)

	for _, out := range []string{seqOut, parOut} {
		content, err := os.ReadFile(filepath.Join(out, "out.txt"))
		require.NoError(t, err)
		assert.Equal(t, "from-workspace", string(content))
	}
}
