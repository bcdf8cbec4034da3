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

// Package bootgraph holds the declarative action-graph data model: artifact
// descriptors, action descriptors, tree descriptors, the graph itself, the
// targets mapping, and the resolved repository configuration, per spec.md §3
// and the wire formats of spec.md §6.
package bootgraph

import (
	"encoding/json"
	"fmt"
)

// DescriptorType tags the four cases of an artifact descriptor.
type DescriptorType string

// The four artifact descriptor cases of spec.md §3.
const (
	DescriptorKnown  DescriptorType = "KNOWN"
	DescriptorLocal  DescriptorType = "LOCAL"
	DescriptorTree   DescriptorType = "TREE"
	DescriptorAction DescriptorType = "ACTION"
)

// Descriptor is an artifact descriptor: a tagged variant naming a literal
// blob, a file in a local workspace, a composed directory tree, or one
// named output of an action invocation.
type Descriptor struct {
	Type DescriptorType

	// KNOWN / TREE
	ID string
	// LOCAL
	Repository string
	// LOCAL / ACTION
	Path string
	// ACTION
	ActionID string
}

// descriptorWire is the JSON wire form of a Descriptor:
// {"type": "...", "data": {...}}.
type descriptorWire struct {
	Type DescriptorType  `json:"type"`
	Data json.RawMessage `json:"data"`
}

type knownData struct {
	ID string `json:"id"`
}

type localData struct {
	Repository string `json:"repository"`
	Path       string `json:"path"`
}

type treeData struct {
	ID string `json:"id"`
}

type actionData struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// UnmarshalJSON implements json.Unmarshaler for the {"type","data"} wire form.
func (d *Descriptor) UnmarshalJSON(data []byte) error {
	var wire descriptorWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("bootgraph: decode artifact descriptor: %w", err)
	}
	switch wire.Type {
	case DescriptorKnown:
		var payload knownData
		if err := json.Unmarshal(wire.Data, &payload); err != nil {
			return fmt.Errorf("bootgraph: decode KNOWN descriptor: %w", err)
		}
		*d = Descriptor{Type: DescriptorKnown, ID: payload.ID}
	case DescriptorLocal:
		var payload localData
		if err := json.Unmarshal(wire.Data, &payload); err != nil {
			return fmt.Errorf("bootgraph: decode LOCAL descriptor: %w", err)
		}
		*d = Descriptor{Type: DescriptorLocal, Repository: payload.Repository, Path: payload.Path}
	case DescriptorTree:
		var payload treeData
		if err := json.Unmarshal(wire.Data, &payload); err != nil {
			return fmt.Errorf("bootgraph: decode TREE descriptor: %w", err)
		}
		*d = Descriptor{Type: DescriptorTree, ID: payload.ID}
	case DescriptorAction:
		var payload actionData
		if err := json.Unmarshal(wire.Data, &payload); err != nil {
			return fmt.Errorf("bootgraph: decode ACTION descriptor: %w", err)
		}
		*d = Descriptor{Type: DescriptorAction, ActionID: payload.ID, Path: payload.Path}
	default:
		return fmt.Errorf("bootgraph: unknown artifact descriptor type %q", wire.Type)
	}
	return nil
}

// MarshalJSON implements json.Marshaler, round-tripping to the same wire form.
func (d Descriptor) MarshalJSON() ([]byte, error) {
	switch d.Type {
	case DescriptorKnown:
		return json.Marshal(descriptorWireOf(d.Type, knownData{ID: d.ID}))
	case DescriptorLocal:
		return json.Marshal(descriptorWireOf(d.Type, localData{Repository: d.Repository, Path: d.Path}))
	case DescriptorTree:
		return json.Marshal(descriptorWireOf(d.Type, treeData{ID: d.ID}))
	case DescriptorAction:
		return json.Marshal(descriptorWireOf(d.Type, actionData{ID: d.ActionID, Path: d.Path}))
	default:
		return nil, fmt.Errorf("bootgraph: unknown artifact descriptor type %q", d.Type)
	}
}

func descriptorWireOf(t DescriptorType, data any) map[string]any {
	return map[string]any{"type": t, "data": data}
}

// String renders a human-readable form of the descriptor for log lines and
// error messages.
func (d Descriptor) String() string {
	switch d.Type {
	case DescriptorKnown:
		return fmt.Sprintf("KNOWN{%s}", d.ID)
	case DescriptorLocal:
		return fmt.Sprintf("LOCAL{%s, %s}", d.Repository, d.Path)
	case DescriptorTree:
		return fmt.Sprintf("TREE{%s}", d.ID)
	case DescriptorAction:
		return fmt.Sprintf("ACTION{%s, %s}", d.ActionID, d.Path)
	default:
		return fmt.Sprintf("UNKNOWN{%s}", d.Type)
	}
}
