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

package bootcas

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// knownPermissions is the mode every published KNOWN blob is chmod'd to:
// files under KNOWN are immutable once linked at their canonical name.
const knownPermissions = 0o444

// Store is a content-addressed blob store rooted at a "KNOWN" directory
// under a local build root, per spec.md §4.4.
type Store struct {
	knownDir string
}

// NewStore returns a Store rooted at localBuildRoot/KNOWN, creating the
// directory if it does not already exist.
func NewStore(localBuildRoot string) (*Store, error) {
	knownDir := filepath.Join(localBuildRoot, "KNOWN")
	if err := os.MkdirAll(knownDir, 0o755); err != nil {
		return nil, fmt.Errorf("bootcas: create KNOWN directory: %w", err)
	}
	return &Store{knownDir: knownDir}, nil
}

// Path returns the canonical path a blob with the given id would be
// written to, whether or not it has been written yet.
func (s *Store) Path(id string) string {
	return filepath.Join(s.knownDir, id)
}

// Add writes content to its canonical path and returns that path, computing
// the id as the Git blob-hash of content. Add is safe for concurrent use,
// including concurrent Add calls for the same content: each call stages
// into its own uniquely-named temporary file before publishing.
//
// If the canonical file already exists, it is returned unmodified: blobs
// are immutable once published, so a repeat Add for the same content is a
// no-op other than recomputing the id.
func (s *Store) Add(content []byte) (string, error) {
	id := GitBlobHash(content)
	path := s.Path(id)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("bootcas: stat %s: %w", path, err)
	}
	tmpPath, err := writeBlobTempFile(s.knownDir, content)
	if err != nil {
		return "", err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		if _, statErr := os.Stat(path); statErr == nil {
			// A concurrent Add for the same content published first.
			_ = os.Remove(tmpPath)
			return path, nil
		}
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("bootcas: publish %s: %w", path, err)
	}
	return path, nil
}

// writeBlobTempFile writes content to a freshly-created, uniquely-named
// file inside dir and returns its path, ready to be renamed into place.
func writeBlobTempFile(dir string, content []byte) (string, error) {
	f, err := os.CreateTemp(dir, ".blob-*.tmp")
	if err != nil {
		return "", fmt.Errorf("bootcas: create temp blob in %s: %w", dir, err)
	}
	tmpPath := f.Name()
	if _, err := f.Write(content); err != nil {
		f.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("bootcas: write temp blob %s: %w", tmpPath, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("bootcas: fsync temp blob %s: %w", tmpPath, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("bootcas: close temp blob %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, knownPermissions); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("bootcas: chmod temp blob %s: %w", tmpPath, err)
	}
	epoch := time.Unix(0, 0)
	if err := os.Chtimes(tmpPath, epoch, epoch); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("bootcas: set epoch mtime on %s: %w", tmpPath, err)
	}
	return tmpPath, nil
}
