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

import "sort"

func asObject(v JSON) (map[string]JSON, bool) {
	m, ok := v.(map[string]JSON)
	return m, ok
}

// getOr returns m[key] if present and non-nil, otherwise def.
func getOr(m map[string]JSON, key string, def JSON) JSON {
	if m == nil {
		return def
	}
	if v, ok := m[key]; ok && v != nil {
		return v
	}
	return def
}

// shallowCopy returns a new map with the same entries as m, mirroring the
// Python implementation's habit of building updated dicts with
// `dict(m, **{...})` instead of mutating m in place.
func shallowCopy(m map[string]JSON) map[string]JSON {
	out := make(map[string]JSON, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]JSON) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sameKeySet(a, b map[string]JSON) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
