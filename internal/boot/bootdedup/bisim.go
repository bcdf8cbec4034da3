// Copyright 2023 Huawei Cloud Computing Technology Co., Ltd.
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

// Package bootdedup implements the repository deduplicator of spec.md
// §4.1: it computes the maximal bisimulation over a repository
// configuration's "repositories" map and folds each bisimilarity class
// down to a single representative, grounded directly on
// original_source/bin/just-deduplicate-repos.py. The configuration is
// handled as generic decoded JSON (map[string]any) rather than a fixed Go
// struct, because a repository root's shape depends on its own "type"
// field (file/archive/git/computed/tree structure/...), and the
// deduplicator must round-trip whatever keys it does not itself
// interpret.
package bootdedup

import (
	"fmt"
	"reflect"
)

// pairKey is an unordered pair of repository names, canonicalized so
// (a, b) and (b, a) hash to the same key, mirroring the Python
// implementation's `(name_a, name_b) if name_a < name_b else (name_b, name_a)`.
type pairKey struct {
	a, b string
}

func makePairKey(nameA, nameB string) pairKey {
	if nameA < nameB {
		return pairKey{nameA, nameB}
	}
	return pairKey{nameB, nameA}
}

type bisimEntry struct {
	different   bool
	differentIf []pairKey
}

// bisimilarity tracks the difference relation being built up during one
// BisimilarityClasses call.
type bisimilarity struct {
	repos map[string]JSON
	pairs map[pairKey]*bisimEntry
}

// JSON is a decoded JSON value: nil, bool, float64, string, []JSON, or
// map[string]JSON.
type JSON = any

func (b *bisimilarity) isDifferent(nameA, nameB string) bool {
	entry := b.pairs[makePairKey(nameA, nameB)]
	return entry != nil && entry.different
}

func (b *bisimilarity) markAsDifferent(nameA, nameB string) {
	key := makePairKey(nameA, nameB)
	entry := b.pairs[key]
	if entry == nil {
		entry = &bisimEntry{}
		b.pairs[key] = entry
	}
	if entry.different {
		return
	}
	entry.different = true
	for _, dep := range entry.differentIf {
		b.markAsDifferent(dep.a, dep.b)
	}
}

func (b *bisimilarity) registerDependency(nameA, nameB, depA, depB string) {
	key := makePairKey(nameA, nameB)
	entry := b.pairs[key]
	if entry == nil {
		entry = &bisimEntry{}
		b.pairs[key] = entry
	}
	entry.differentIf = append(entry.differentIf, pairKey{depA, depB})
}

// rootsEqual decides whether two resolved repository roots describe the
// same content, mirroring roots_equal. For "computed"/"tree structure"
// roots whose target repo equality is not yet known, it optimistically
// returns true and registers a dependency so a later markAsDifferent on
// the target repos propagates back here.
func (b *bisimilarity) rootsEqual(a, b2 JSON, nameA, nameB string) (bool, error) {
	am, ok := asObject(a)
	if !ok {
		return false, fmt.Errorf("bootdedup: repository root for %q is not an object: %#v", nameA, a)
	}
	bm, ok := asObject(b2)
	if !ok {
		return false, fmt.Errorf("bootdedup: repository root for %q is not an object: %#v", nameB, b2)
	}
	typeA, _ := am["type"].(string)
	typeB, _ := bm["type"].(string)
	if typeA != typeB {
		return false, nil
	}
	switch typeA {
	case "file":
		return am["path"] == bm["path"], nil
	case "archive", "zip":
		return reflect.DeepEqual(am["content"], bm["content"]) &&
			reflect.DeepEqual(getOr(am, "subdir", "."), getOr(bm, "subdir", ".")), nil
	case "git":
		return reflect.DeepEqual(am["commit"], bm["commit"]) &&
			reflect.DeepEqual(getOr(am, "subdir", "."), getOr(bm, "subdir", ".")), nil
	case "computed", "tree structure":
		if typeA == "computed" {
			if !reflect.DeepEqual(getOr(am, "config", map[string]JSON{}), getOr(bm, "config", map[string]JSON{})) ||
				!reflect.DeepEqual(am["target"], bm["target"]) {
				return false, nil
			}
		}
		repoA, _ := am["repo"].(string)
		repoB, _ := bm["repo"].(string)
		if repoA == repoB {
			return true, nil
		}
		if b.isDifferent(repoA, repoB) {
			return false, nil
		}
		b.registerDependency(repoA, repoB, nameA, nameB)
		return true, nil
	default:
		// Unknown repository type: the only safe comparison is full
		// structural equality.
		return reflect.DeepEqual(a, b2), nil
	}
}

// getRoot resolves name's root under rootName, following string
// references (one repository's root can be "the same as repository X's")
// until it lands on an object, mirroring get_root.
//
// The chain of references is followed iteratively with a visited set
// (spec.md:492): a repository configuration where two or more repositories'
// roots refer to each other in a loop is rejected with an error instead of
// recursing forever.
func (b *bisimilarity) getRoot(name, rootName string, defaultRoot JSON) (JSON, error) {
	visited := map[string]struct{}{}
	for {
		if _, seen := visited[name]; seen {
			return nil, fmt.Errorf("bootdedup: cycle in root %q indirection starting at repository %q", rootName, name)
		}
		visited[name] = struct{}{}

		entry, ok := asObject(b.repos[name])
		if !ok {
			return nil, fmt.Errorf("bootdedup: repository %q is not an object", name)
		}
		root, has := entry[rootName]
		if !has || root == nil {
			if defaultRoot != nil {
				return defaultRoot, nil
			}
			return nil, fmt.Errorf("bootdedup: repository %q has no mandatory root %q", name, rootName)
		}
		ref, ok := root.(string)
		if !ok {
			return root, nil
		}
		name, defaultRoot = ref, nil
	}
}

var rootNames = []string{"repository", "target_root", "rule_root", "expression_root"}

var fileNameKeys = []struct {
	key string
	def string
}{
	{"target_file_name", "TARGETS"},
	{"rule_file_name", "RULES"},
	{"expression_file_name", "EXPRESSIONS"},
}

// repoRootsEqual decides whether nameA and nameB describe observably
// identical repositories: equal roots (repository/target_root/rule_root/
// expression_root) and equal file-name overrides, mirroring
// repo_roots_equal. Bindings are compared by the caller, as in the
// original.
func (b *bisimilarity) repoRootsEqual(nameA, nameB string) (bool, error) {
	if nameA == nameB {
		return true, nil
	}
	var rootA, rootB JSON
	for _, rootName := range rootNames {
		var err error
		rootA, err = b.getRoot(nameA, rootName, rootA)
		if err != nil {
			return false, err
		}
		rootB, err = b.getRoot(nameB, rootName, rootB)
		if err != nil {
			return false, err
		}
		equal, err := b.rootsEqual(rootA, rootB, nameA, nameB)
		if err != nil {
			return false, err
		}
		if !equal {
			return false, nil
		}
	}
	objA, _ := asObject(b.repos[nameA])
	objB, _ := asObject(b.repos[nameB])
	for _, fn := range fileNameKeys {
		if getOr(objA, fn.key, fn.def) != getOr(objB, fn.key, fn.def) {
			return false, nil
		}
	}
	return true, nil
}

// BisimilarityClasses computes the maximal bisimulation between repos and
// returns its equivalence classes. Each class is a slice of repository
// names; the first element is always the class's "anchor" (the
// lexicographically-largest name visited by the reversed outer loop,
// matching the Python implementation so that output is deterministic
// between runs).
func BisimilarityClasses(repos map[string]JSON) ([][]string, error) {
	b := &bisimilarity{repos: repos, pairs: make(map[pairKey]*bisimEntry)}
	names := sortedKeys(repos)

	for j := 0; j < len(names); j++ {
		nameB := names[j]
		for i := 0; i < j; i++ {
			nameA := names[i]
			if b.isDifferent(nameA, nameB) {
				continue
			}
			equal, err := b.repoRootsEqual(nameA, nameB)
			if err != nil {
				return nil, err
			}
			if !equal {
				b.markAsDifferent(nameA, nameB)
				continue
			}
			objA, _ := asObject(repos[nameA])
			objB, _ := asObject(repos[nameB])
			linksA, _ := asObject(getOr(objA, "bindings", map[string]JSON{}))
			linksB, _ := asObject(getOr(objB, "bindings", map[string]JSON{}))
			if !sameKeySet(linksA, linksB) {
				b.markAsDifferent(nameA, nameB)
				continue
			}
			for link, nextA := range linksA {
				nextB := linksB[link]
				if nextA == nextB {
					continue
				}
				nextAStr, _ := nextA.(string)
				nextBStr, _ := nextB.(string)
				if b.isDifferent(nextAStr, nextBStr) {
					b.markAsDifferent(nameA, nameB)
					break
				}
				b.registerDependency(nextAStr, nextBStr, nameA, nameB)
			}
		}
	}

	var classes [][]string
	done := make(map[string]bool)
	for j := len(names) - 1; j >= 0; j-- {
		nameJ := names[j]
		if done[nameJ] {
			continue
		}
		class := []string{nameJ}
		for i := 0; i < j; i++ {
			nameI := names[i]
			entry := b.pairs[makePairKey(nameI, nameJ)]
			if entry == nil || !entry.different {
				class = append(class, nameI)
				done[nameI] = true
			}
		}
		classes = append(classes, class)
	}
	return classes, nil
}
