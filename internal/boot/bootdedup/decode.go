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
	"encoding/json"
	"fmt"
)

// DecodeConfig decodes a repository configuration from its wire JSON form
// into the generic representation Dedup operates on.
func DecodeConfig(data []byte) (map[string]JSON, error) {
	var config map[string]JSON
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("bootdedup: decode repository configuration: %w", err)
	}
	return config, nil
}

// EncodeConfig re-encodes a configuration produced by Dedup back to its
// wire JSON form.
func EncodeConfig(config map[string]JSON) ([]byte, error) {
	data, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("bootdedup: encode repository configuration: %w", err)
	}
	return data, nil
}
