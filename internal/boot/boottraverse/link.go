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
	"fmt"
	"os"
	"path/filepath"

	"github.com/just-buildsystem/justbuild/internal/pkg/normalpath"
)

// link materializes src at location within base: it first tries a hard
// link, and falls back to a symlink when the filesystem cannot hard-link
// src (spec.md §4 leaves the linking policy an Open Question; SPEC_FULL.md
// resolves it to hard-link-with-symlink-fallback, both so dest survives
// src's removal when possible and so cross-device or directory sources
// still work).
//
// location is the stage-relative path named by a tree/action entry or a
// targets mapping; it is rejected if absolute or if it jumps outside base
// via a leading "../" component, so a malicious or malformed descriptor
// cannot place content outside the intended build root or output
// directory.
func link(src, base, location string) error {
	rel, err := normalpath.NormalizeAndValidate(location)
	if err != nil {
		return fmt.Errorf("boottraverse: invalid location %q: %w", location, err)
	}
	dest := filepath.Join(base, normalpath.Unnormalize(rel))

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("boottraverse: create parent of %q: %w", dest, err)
	}
	if err := os.Link(src, dest); err == nil {
		return nil
	}
	if err := os.Symlink(src, dest); err != nil {
		return fmt.Errorf("boottraverse: link %q to %q: %w", src, dest, err)
	}
	return nil
}

// mkdirAtomic creates dir by building it at a sibling temporary path and
// renaming it into place, so a concurrent or partially-completed build of
// the same id is never observed half-populated (spec.md §4.2's
// realize-or-reuse contract). build populates the temporary directory.
func mkdirAtomic(dir string, build func(tmp string) error) error {
	if _, err := os.Stat(dir); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("boottraverse: stat %q: %w", dir, err)
	}
	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("boottraverse: create parent of %q: %w", dir, err)
	}
	tmp := dir + fmt.Sprintf(".tmp.%d", os.Getpid())
	if err := os.RemoveAll(tmp); err != nil {
		return fmt.Errorf("boottraverse: clear stale temp dir %q: %w", tmp, err)
	}
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return fmt.Errorf("boottraverse: create temp dir %q: %w", tmp, err)
	}
	if err := build(tmp); err != nil {
		_ = os.RemoveAll(tmp)
		return err
	}
	if err := os.Rename(tmp, dir); err != nil {
		if _, statErr := os.Stat(dir); statErr == nil {
			// Another build published dir first; ours is redundant.
			_ = os.RemoveAll(tmp)
			return nil
		}
		_ = os.RemoveAll(tmp)
		return fmt.Errorf("boottraverse: publish %q: %w", dir, err)
	}
	return nil
}
