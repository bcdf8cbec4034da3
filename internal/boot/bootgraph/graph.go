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

	"github.com/just-buildsystem/justbuild/internal/boot/bootcas"
	"go.uber.org/multierr"
)

// Action is the declarative description of one subprocess invocation, keyed
// by action id in a Graph.
type Action struct {
	// Input maps stage-relative path to the descriptor staged there before
	// the command runs.
	Input map[string]Descriptor `json:"input"`
	// Output is the ordered set of stage-relative paths the command is
	// expected to produce.
	Output []string `json:"output"`
	// Command is the argument vector to execute.
	Command []string `json:"command"`
	// Env, when non-nil, fully replaces the subprocess environment; when
	// nil the subprocess inherits the traverser's environment.
	Env map[string]string `json:"env,omitempty"`
}

// Tree is a declarative description of a directory: a mapping from
// stage-relative location to the descriptor materialized there.
type Tree map[string]Descriptor

// Graph is the three top-level collections of spec.md §3: literal blobs,
// trees keyed by tree id, and actions keyed by action id.
type Graph struct {
	Blobs   []string          `json:"blobs"`
	Trees   map[string]Tree   `json:"trees"`
	Actions map[string]Action `json:"actions"`
}

// Targets maps output-relative path to the descriptor realized there.
type Targets map[string]Descriptor

// DecodeGraph decodes a Graph from its wire JSON form (spec.md §6).
func DecodeGraph(data []byte) (*Graph, error) {
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("bootgraph: decode graph: %w", err)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// DecodeTargets decodes a Targets mapping from its wire JSON form.
func DecodeTargets(data []byte) (Targets, error) {
	var t Targets
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("bootgraph: decode targets: %w", err)
	}
	return t, nil
}

// Validate checks the graph-inconsistency invariants of spec.md §3: every
// descriptor referenced from the graph must resolve to a known blob, tree,
// or action id, and tree/action cycles are rejected.
//
// Dangling references among multiple trees/actions are aggregated with
// multierr so a single Validate call reports every inconsistency found,
// not just the first (spec.md §7: "Graph inconsistency ... Terminate at
// the moment of lookup" still holds for Realize, which fails fast; this
// up-front pass exists so a malformed graph file is diagnosed completely
// before any action is spawned).
func (g *Graph) Validate() error {
	knownBlobIDs := make(map[string]struct{}, len(g.Blobs))
	for _, blob := range g.Blobs {
		knownBlobIDs[bootcas.GitBlobHash([]byte(blob))] = struct{}{}
	}

	var errs error
	checkDescriptor := func(context string, d Descriptor) {
		switch d.Type {
		case DescriptorKnown:
			if _, ok := knownBlobIDs[d.ID]; !ok {
				errs = multierr.Append(errs, fmt.Errorf("%s: unknown blob id %q", context, d.ID))
			}
		case DescriptorTree:
			if _, ok := g.Trees[d.ID]; !ok {
				errs = multierr.Append(errs, fmt.Errorf("%s: unknown tree id %q", context, d.ID))
			}
		case DescriptorAction:
			if _, ok := g.Actions[d.ActionID]; !ok {
				errs = multierr.Append(errs, fmt.Errorf("%s: unknown action id %q", context, d.ActionID))
			}
		case DescriptorLocal:
			// Repository existence is checked against the repository
			// configuration at realization time, not here: the graph
			// file and the repository-configuration file are decoded
			// independently (spec.md §6).
		default:
			errs = multierr.Append(errs, fmt.Errorf("%s: unknown descriptor type %q", context, d.Type))
		}
	}

	for treeID, tree := range g.Trees {
		for location, d := range tree {
			checkDescriptor(fmt.Sprintf("tree %q entry %q", treeID, location), d)
		}
	}
	for actionID, action := range g.Actions {
		for location, d := range action.Input {
			checkDescriptor(fmt.Sprintf("action %q input %q", actionID, location), d)
		}
	}
	if err := g.detectCycle(); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}

// color marks a node's state during detectCycle's depth-first search.
type color int

const (
	white color = iota // not yet visited
	gray               // on the current recursion stack
	black              // fully explored, acyclic below it
)

// detectCycle walks every TREE/ACTION reference chain looking for a node
// that reaches itself, per spec.md:94's acyclicity invariant. A node on
// the recursion stack (gray) that is visited again is a cycle: a tree
// that (transitively) contains itself, or an action whose input
// (transitively) depends on its own output, would otherwise stack-overflow
// the sequential builder or deadlock the parallel OnceMap-based one
// waiting on its own in-flight key.
func (g *Graph) detectCycle() error {
	colors := make(map[string]color)

	var visit func(key, kind, id string) error
	visit = func(key, kind, id string) error {
		switch colors[key] {
		case black:
			return nil
		case gray:
			return fmt.Errorf("cycle: %s %q depends on itself", kind, id)
		}
		colors[key] = gray

		var entries map[string]Descriptor
		switch kind {
		case "tree":
			entries = g.Trees[id]
		case "action":
			entries = g.Actions[id].Input
		}
		for _, d := range entries {
			var nextKind, nextID string
			switch d.Type {
			case DescriptorTree:
				nextKind, nextID = "tree", d.ID
			case DescriptorAction:
				nextKind, nextID = "action", d.ActionID
			default:
				continue
			}
			if err := visit(nextKind+"/"+nextID, nextKind, nextID); err != nil {
				return fmt.Errorf("%s %q: %w", kind, id, err)
			}
		}

		colors[key] = black
		return nil
	}

	for treeID := range g.Trees {
		if err := visit("tree/"+treeID, "tree", treeID); err != nil {
			return err
		}
	}
	for actionID := range g.Actions {
		if err := visit("action/"+actionID, "action", actionID); err != nil {
			return err
		}
	}
	return nil
}
