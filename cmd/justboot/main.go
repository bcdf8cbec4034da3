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

// Command justboot realizes a bootstrap build graph into concrete
// filesystem artifacts (spec.md §6), mirroring
// original_source/bin/{bootstrap-traverser,parallel-bootstrap-traverser}.py.
package main

import (
	"context"

	"github.com/just-buildsystem/justbuild/internal/pkg/app/appcmd"
)

func main() {
	appcmd.Main(context.Background(), rootCommand())
}
