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

package bootdedup

import (
	"fmt"
	"sort"
	"strings"
)

// Dedup folds every bisimilarity class of config's "repositories" map down
// to a single representative, rewriting bindings and root references to
// match, and returns the updated top-level configuration. userKeep names
// repositories that must survive under their own name even if bisimilar
// to another (spec.md §4.1's "Protection" law); the repository named by
// config's top-level "main" string key, if there is one, is always kept.
// Mirrors original_source/bin/just-deduplicate-repos.py's dedup.
func Dedup(config map[string]JSON, userKeep []string) (map[string]JSON, error) {
	reposVal, ok := config["repositories"]
	if !ok {
		return nil, fmt.Errorf("bootdedup: configuration has no \"repositories\" entry")
	}
	repos, ok := asObject(reposVal)
	if !ok {
		return nil, fmt.Errorf("bootdedup: \"repositories\" is not an object")
	}

	keep := make(map[string]bool, len(userKeep))
	for _, name := range userKeep {
		keep[name] = true
	}
	if main, ok := config["main"].(string); ok {
		keep[main] = true
	}

	classes, err := BisimilarityClasses(repos)
	if err != nil {
		return nil, err
	}

	d := &deduper{repos: repos, keep: keep}

	renaming := make(map[string]string)
	updatedRepos := make(map[string]JSON)
	for _, class := range classes {
		if len(class) == 1 {
			continue
		}
		rep, err := d.chooseRepresentative(class)
		if err != nil {
			return nil, err
		}
		merged, err := d.mergePragma(rep, class)
		if err != nil {
			return nil, err
		}
		updatedRepos[rep] = merged
		for _, repo := range class {
			if !keep[repo] && repo != rep {
				renaming[repo] = rep
			}
		}
	}
	d.renaming = renaming

	newRepos := make(map[string]JSON)
	for _, name := range sortedKeys(repos) {
		if _, renamed := renaming[name]; renamed {
			continue
		}
		desc, ok := asObject(repos[name])
		if !ok {
			return nil, fmt.Errorf("bootdedup: repository %q is not an object", name)
		}
		desc = shallowCopy(desc)
		if merged, ok := updatedRepos[name]; ok {
			desc["repository"] = merged
		}
		if bindingsVal, ok := desc["bindings"]; ok {
			bindings, ok := asObject(bindingsVal)
			if !ok {
				return nil, fmt.Errorf("bootdedup: repository %q has non-object bindings", name)
			}
			newBindings := make(map[string]JSON, len(bindings))
			for k, v := range bindings {
				if vs, ok := v.(string); ok {
					if target, renamed := renaming[vs]; renamed {
						newBindings[k] = target
						continue
					}
				}
				newBindings[k] = v
			}
			desc["bindings"] = newBindings
		}
		for _, rootKey := range []string{"repository", "target_root", "rule_root", "expression_root"} {
			rootVal, ok := desc[rootKey]
			if !ok {
				continue
			}
			rootStr, ok := rootVal.(string)
			if !ok {
				continue
			}
			if _, renamed := renaming[rootStr]; !renamed {
				continue
			}
			ref, err := d.finalRootReference(rootStr)
			if err != nil {
				return nil, err
			}
			desc[rootKey] = ref
		}
		if repoRootVal, ok := desc["repository"]; ok {
			if repoRoot, ok := asObject(repoRootVal); ok {
				t, _ := repoRoot["type"].(string)
				if t == "computed" || t == "tree structure" {
					if repoName, ok := repoRoot["repo"].(string); ok {
						if target, renamed := renaming[repoName]; renamed {
							repoRoot = shallowCopy(repoRoot)
							repoRoot["repo"] = target
							desc["repository"] = repoRoot
						}
					}
				}
			}
		}
		newRepos[name] = desc
	}

	out := shallowCopy(config)
	out["repositories"] = newRepos
	return out, nil
}

type deduper struct {
	repos    map[string]JSON
	keep     map[string]bool
	renaming map[string]string
}

// chooseRepresentative picks the representative of a bisimilarity class,
// mirroring choose_representative: prefer members with a proper (object)
// root so an actual root is never lost to a reference, then prefer
// members the caller must keep anyway, then the name with the fewest path
// separators, then the shortest, then the lexicographically smallest.
func (d *deduper) chooseRepresentative(class []string) (string, error) {
	candidates := class

	var withRoot []string
	for _, n := range candidates {
		desc, ok := asObject(d.repos[n])
		if !ok {
			return "", fmt.Errorf("bootdedup: repository %q is not an object", n)
		}
		if _, isObject := asObject(desc["repository"]); isObject {
			withRoot = append(withRoot, n)
		}
	}
	if len(withRoot) > 0 {
		candidates = withRoot
	}

	var keepEntries []string
	for _, n := range candidates {
		if d.keep[n] {
			keepEntries = append(keepEntries, n)
		}
	}
	if len(keepEntries) > 0 {
		candidates = keepEntries
	}

	sorted := append([]string(nil), candidates...)
	sort.Slice(sorted, func(i, j int) bool {
		si, sj := sorted[i], sorted[j]
		ci, cj := strings.Count(si, "/"), strings.Count(sj, "/")
		if ci != cj {
			return ci < cj
		}
		if len(si) != len(sj) {
			return len(si) < len(sj)
		}
		return si < sj
	})
	return sorted[0], nil
}

// mergePragma returns the representative's "repository" root with its
// pragma updated so the merge preserves semantics: pragma.absent survives
// only if every merged repo with an object root also has it set (an AND
// over the class, since dropping a repo's absence marking would make it
// materialize unexpectedly); pragma.to_git is set if any merged repo
// requires it (an OR, since skipping the git mirror step for one would be
// observably different for that repo alone). Mirrors merge_pragma.
func (d *deduper) mergePragma(rep string, merged []string) (JSON, error) {
	repDesc, ok := asObject(d.repos[rep])
	if !ok {
		return nil, fmt.Errorf("bootdedup: repository %q is not an object", rep)
	}
	root := repDesc["repository"]
	rootObj, ok := asObject(root)
	if !ok {
		// A string alias has no pragma to merge; return as-is.
		return root, nil
	}

	pragma, _ := asObject(getOr(rootObj, "pragma", map[string]JSON{}))
	pragma = shallowCopy(pragma)

	absent, _ := getOr(pragma, "absent", false).(bool)
	for _, c := range merged {
		altDesc, ok := asObject(d.repos[c])
		if !ok {
			continue
		}
		if altRoot, ok := asObject(altDesc["repository"]); ok {
			altPragma, _ := asObject(getOr(altRoot, "pragma", map[string]JSON{}))
			v, _ := getOr(altPragma, "absent", false).(bool)
			absent = absent && v
		}
	}
	if absent {
		pragma["absent"] = true
	} else {
		delete(pragma, "absent")
	}

	toGit, _ := getOr(pragma, "to_git", false).(bool)
	for _, c := range merged {
		altDesc, ok := asObject(d.repos[c])
		if !ok {
			continue
		}
		if altRoot, ok := asObject(altDesc["repository"]); ok {
			altPragma, _ := asObject(getOr(altRoot, "pragma", map[string]JSON{}))
			v, _ := getOr(altPragma, "to_git", false).(bool)
			toGit = toGit || v
		}
	}
	if toGit {
		pragma["to_git"] = true
	} else {
		delete(pragma, "to_git")
	}

	rootObj = shallowCopy(rootObj)
	if len(pragma) == 0 {
		delete(rootObj, "pragma")
	} else {
		rootObj["pragma"] = pragma
	}
	return rootObj, nil
}

// finalRootReference resolves name to the name that should be used to
// reference its root in the rewritten configuration, following string
// aliases to the underlying object root and mapping it through renaming
// if that root itself was merged away. Mirrors final_root_reference.
func (d *deduper) finalRootReference(name string) (string, error) {
	desc, ok := asObject(d.repos[name])
	if !ok {
		return "", fmt.Errorf("bootdedup: repository %q is not an object", name)
	}
	root, ok := desc["repository"]
	if !ok {
		return "", fmt.Errorf("bootdedup: repository %q has no repository root", name)
	}
	switch r := root.(type) {
	case map[string]JSON:
		if target, renamed := d.renaming[name]; renamed {
			return target, nil
		}
		return name, nil
	case string:
		return d.finalRootReference(r)
	default:
		return "", fmt.Errorf("bootdedup: invalid root found for %q: %#v", name, root)
	}
}
