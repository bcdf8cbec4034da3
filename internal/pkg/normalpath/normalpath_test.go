// Copyright 2020 Buf Technologies Inc.
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

package normalpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAndValidate(t *testing.T) {
	t.Parallel()
	path, err := NormalizeAndValidate("a/./b/../c")
	require.NoError(t, err)
	assert.Equal(t, "a/c", path)

	_, err = NormalizeAndValidate("/a/b")
	assert.Error(t, err)

	_, err = NormalizeAndValidate("../a")
	assert.Error(t, err)

	_, err = NormalizeAndValidate("..")
	assert.Error(t, err)
}

func TestJoin(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "a/b/c", Join("a", "b", "c"))
	assert.Equal(t, "", Join())
}

func TestDir(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "a/b", Dir("a/b/c"))
}
