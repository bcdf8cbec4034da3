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

// Package bootcas implements the content-addressed blob store of the
// bootstrap build-graph traverser.
//
// Content identifiers follow the Git blob-hash convention: for a byte
// string s, the identifier is
//
//	SHA-1("blob " + ascii-decimal-length(s) + "\x00" + s)
//
// rendered as lowercase hex.
package bootcas

import (
	"crypto/sha1" //nolint:gosec // the Git blob-hash convention is fixed to SHA-1
	"fmt"
)

// GitBlobHash returns the Git blob-hash identifier for content.
func GitBlobHash(content []byte) string {
	h := sha1.New() //nolint:gosec
	fmt.Fprintf(h, "blob %d\x00", len(content))
	h.Write(content)
	return fmt.Sprintf("%x", h.Sum(nil))
}
