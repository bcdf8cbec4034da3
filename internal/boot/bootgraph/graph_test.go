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

package bootgraph_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/just-buildsystem/justbuild/internal/boot/bootgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeGraphSingleBlob(t *testing.T) {
	t.Parallel()
	graphJSON := `{
		"blobs": ["hello"],
		"trees": {},
		"actions": {}
	}`
	g, err := bootgraph.DecodeGraph([]byte(graphJSON))
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, g.Blobs)
}

func TestDecodeGraphRejectsDanglingTreeReference(t *testing.T) {
	t.Parallel()
	graphJSON := `{
		"blobs": [],
		"trees": {"T1": {"x": {"type": "TREE", "data": {"id": "does-not-exist"}}}},
		"actions": {}
	}`
	_, err := bootgraph.DecodeGraph([]byte(graphJSON))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does-not-exist")
}

func TestDecodeGraphRejectsSelfReferentialTree(t *testing.T) {
	t.Parallel()
	graphJSON := `{
		"blobs": [],
		"trees": {"T1": {"x": {"type": "TREE", "data": {"id": "T1"}}}},
		"actions": {}
	}`
	_, err := bootgraph.DecodeGraph([]byte(graphJSON))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestDecodeGraphRejectsIndirectActionCycle(t *testing.T) {
	t.Parallel()
	graphJSON := `{
		"blobs": [],
		"trees": {"T1": {"x": {"type": "ACTION", "data": {"id": "A1", "path": "out"}}}},
		"actions": {
			"A1": {
				"input": {"y": {"type": "TREE", "data": {"id": "T1"}}},
				"output": ["out"],
				"command": ["true"]
			}
		}
	}`
	_, err := bootgraph.DecodeGraph([]byte(graphJSON))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestDescriptorJSONRoundTrip(t *testing.T) {
	t.Parallel()
	for _, d := range []bootgraph.Descriptor{
		{Type: bootgraph.DescriptorKnown, ID: "abc"},
		{Type: bootgraph.DescriptorLocal, Repository: "main", Path: "foo/bar"},
		{Type: bootgraph.DescriptorTree, ID: "abc"},
		{Type: bootgraph.DescriptorAction, ActionID: "a", Path: "out"},
	} {
		data, err := d.MarshalJSON()
		require.NoError(t, err)
		var got bootgraph.Descriptor
		require.NoError(t, got.UnmarshalJSON(data))
		if diff := cmp.Diff(d, got); diff != "" {
			t.Errorf("round trip mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestDecodeTargets(t *testing.T) {
	t.Parallel()
	targetsJSON := `{"out": {"type": "KNOWN", "data": {"id": "abc"}}}`
	targets, err := bootgraph.DecodeTargets([]byte(targetsJSON))
	require.NoError(t, err)
	assert.Equal(t, bootgraph.Descriptor{Type: bootgraph.DescriptorKnown, ID: "abc"}, targets["out"])
}
