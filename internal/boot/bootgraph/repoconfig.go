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

package bootgraph

import (
	"encoding/json"
	"fmt"
)

// WorkspaceRoot is a resolved repository root: a (kind, path) pair. Only
// kind "file" is supported by the traverser; other kinds fail at
// realization time (spec.md §3).
type WorkspaceRoot struct {
	Kind string
	Path string
}

// IsFile reports whether the root is the supported "file" kind.
func (w WorkspaceRoot) IsFile() bool {
	return w.Kind == "file"
}

// UnmarshalJSON decodes the wire form ["file", "/abs/path"].
func (w *WorkspaceRoot) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("bootgraph: decode workspace root: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("bootgraph: workspace root must be a 2-element array, got %d elements", len(pair))
	}
	w.Kind, w.Path = pair[0], pair[1]
	return nil
}

// MarshalJSON encodes the wire form ["file", "/abs/path"].
func (w WorkspaceRoot) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{w.Kind, w.Path})
}

// RepositoryEntry is one entry of a repository configuration's
// "repositories" map: just the workspace_root needed at realization time.
type RepositoryEntry struct {
	WorkspaceRoot *WorkspaceRoot `json:"workspace_root,omitempty"`
}

// RepositoryConfig is the resolved repository configuration consumed by the
// traverser (spec.md §3, §6): a mapping from logical repository name to a
// workspace root.
type RepositoryConfig struct {
	Repositories map[string]RepositoryEntry `json:"repositories"`
}

// DecodeRepositoryConfig decodes a RepositoryConfig from its wire JSON form.
func DecodeRepositoryConfig(data []byte) (*RepositoryConfig, error) {
	var c RepositoryConfig
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("bootgraph: decode repository config: %w", err)
	}
	return &c, nil
}

// ApplyDefaultWorkspace fills in ["file", defaultWorkspace] for every
// repository that has no workspace_root, per spec.md §6: "If a default
// workspace is supplied on the command line and a repo has no
// workspace_root, the traverser fills in [...] before building."
func (c *RepositoryConfig) ApplyDefaultWorkspace(defaultWorkspace string) {
	if defaultWorkspace == "" {
		return
	}
	for name, entry := range c.Repositories {
		if entry.WorkspaceRoot == nil {
			entry.WorkspaceRoot = &WorkspaceRoot{Kind: "file", Path: defaultWorkspace}
			c.Repositories[name] = entry
		}
	}
}

// WorkspaceRootOf returns the resolved workspace root for repoName, or an
// error identifying the repository if it is unknown, has no root, or is
// not the supported "file" kind.
func (c *RepositoryConfig) WorkspaceRootOf(repoName string) (string, error) {
	entry, ok := c.Repositories[repoName]
	if !ok {
		return "", fmt.Errorf("bootgraph: unknown repository %q", repoName)
	}
	if entry.WorkspaceRoot == nil {
		return "", fmt.Errorf("bootgraph: repository %q has no workspace_root", repoName)
	}
	if !entry.WorkspaceRoot.IsFile() {
		return "", fmt.Errorf("bootgraph: unsupported repository root kind %q for repository %q", entry.WorkspaceRoot.Kind, repoName)
	}
	return entry.WorkspaceRoot.Path, nil
}
