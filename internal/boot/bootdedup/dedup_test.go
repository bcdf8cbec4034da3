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

package bootdedup_test

import (
	"testing"

	"github.com/just-buildsystem/justbuild/internal/boot/bootdedup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoIdenticalFileRepos() []byte {
	return []byte(`{
		"repositories": {
			"a": {"repository": {"type": "file", "path": "/p"}},
			"b": {"repository": {"type": "file", "path": "/p"}}
		}
	}`)
}

func TestDedupClassOfTwoNoKeep(t *testing.T) {
	t.Parallel()
	config, err := bootdedup.DecodeConfig(twoIdenticalFileRepos())
	require.NoError(t, err)

	out, err := bootdedup.Dedup(config, nil)
	require.NoError(t, err)

	repos := out["repositories"].(map[string]bootdedup.JSON)
	assert.Len(t, repos, 1, "one of {a, b} must be folded away")
	for name := range repos {
		assert.Contains(t, []string{"a", "b"}, name)
	}
}

func TestDedupRejectsCyclicRootIndirection(t *testing.T) {
	t.Parallel()
	config, err := bootdedup.DecodeConfig([]byte(`{
		"repositories": {
			"a": {"repository": "b"},
			"b": {"repository": "a"}
		}
	}`))
	require.NoError(t, err)

	_, err = bootdedup.Dedup(config, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestDedupClassOfTwoWithKeep(t *testing.T) {
	t.Parallel()
	config, err := bootdedup.DecodeConfig(twoIdenticalFileRepos())
	require.NoError(t, err)

	out, err := bootdedup.Dedup(config, []string{"b"})
	require.NoError(t, err)

	repos := out["repositories"].(map[string]bootdedup.JSON)
	require.Len(t, repos, 1)
	_, bSurvives := repos["b"]
	assert.True(t, bSurvives, "kept repository must survive under its own name")
}

func TestDedupRewritesBindingsToRepresentative(t *testing.T) {
	t.Parallel()
	configJSON := []byte(`{
		"repositories": {
			"a": {"repository": {"type": "file", "path": "/p"}},
			"b": {"repository": {"type": "file", "path": "/p"}},
			"main": {
				"repository": {"type": "file", "path": "/main"},
				"bindings": {"dep": "a"}
			}
		}
	}`)
	config, err := bootdedup.DecodeConfig(configJSON)
	require.NoError(t, err)

	out, err := bootdedup.Dedup(config, []string{"b"})
	require.NoError(t, err)

	repos := out["repositories"].(map[string]bootdedup.JSON)
	mainDesc := repos["main"].(map[string]bootdedup.JSON)
	bindings := mainDesc["bindings"].(map[string]bootdedup.JSON)
	assert.Equal(t, "b", bindings["dep"], "binding to the folded-away repo must be rewritten to the representative")
}

func TestDedupDistinguishesDifferentRoots(t *testing.T) {
	t.Parallel()
	configJSON := []byte(`{
		"repositories": {
			"a": {"repository": {"type": "file", "path": "/p"}},
			"b": {"repository": {"type": "file", "path": "/q"}}
		}
	}`)
	config, err := bootdedup.DecodeConfig(configJSON)
	require.NoError(t, err)

	out, err := bootdedup.Dedup(config, nil)
	require.NoError(t, err)

	repos := out["repositories"].(map[string]bootdedup.JSON)
	assert.Len(t, repos, 2, "repositories with different roots must not be merged")
}

func TestDedupIsIdempotent(t *testing.T) {
	t.Parallel()
	config, err := bootdedup.DecodeConfig(twoIdenticalFileRepos())
	require.NoError(t, err)

	once, err := bootdedup.Dedup(config, []string{"b"})
	require.NoError(t, err)
	twice, err := bootdedup.Dedup(once, []string{"b"})
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}

func TestDedupMergesPragmaAbsentAsAnd(t *testing.T) {
	t.Parallel()
	configJSON := []byte(`{
		"repositories": {
			"a": {"repository": {"type": "file", "path": "/p", "pragma": {"absent": true}}},
			"b": {"repository": {"type": "file", "path": "/p"}}
		}
	}`)
	config, err := bootdedup.DecodeConfig(configJSON)
	require.NoError(t, err)

	out, err := bootdedup.Dedup(config, []string{"b"})
	require.NoError(t, err)

	repos := out["repositories"].(map[string]bootdedup.JSON)
	bDesc := repos["b"].(map[string]bootdedup.JSON)
	bRoot := bDesc["repository"].(map[string]bootdedup.JSON)
	_, hasAbsent := bRoot["pragma"]
	assert.False(t, hasAbsent, "absent must clear when not every merged repo sets it")
}

func TestDedupMergesPragmaToGitAsOr(t *testing.T) {
	t.Parallel()
	configJSON := []byte(`{
		"repositories": {
			"a": {"repository": {"type": "file", "path": "/p", "pragma": {"to_git": true}}},
			"b": {"repository": {"type": "file", "path": "/p"}}
		}
	}`)
	config, err := bootdedup.DecodeConfig(configJSON)
	require.NoError(t, err)

	out, err := bootdedup.Dedup(config, []string{"b"})
	require.NoError(t, err)

	repos := out["repositories"].(map[string]bootdedup.JSON)
	bDesc := repos["b"].(map[string]bootdedup.JSON)
	bRoot := bDesc["repository"].(map[string]bootdedup.JSON)
	pragma := bRoot["pragma"].(map[string]bootdedup.JSON)
	assert.Equal(t, true, pragma["to_git"], "to_git must be set if any merged repo requires it")
}
