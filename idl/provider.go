// Copyright 2020 Google Inc. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package idl

import (
	"github.com/paniag/bazel"
	"github.com/paniag/bazel/depset"
)

// Info is the metadata record a module exports to dependents after IDL
// processing.  It is built once during the module's GenerateBuildActions and
// immutable afterwards; dependents fold it into their own record during
// aggregation.
type Info struct {
	// Roots is the transitive set of import search roots, one -I argument
	// per element in set order.  Inherited roots come before the module's
	// own.
	Roots depset.DepSet[string]

	// Imports is the transitive set of import files: every dependency's
	// sources and parcelables followed by the module's own parcelables and
	// sources.
	Imports depset.DepSet[bazel.Artifact]

	// Jars is the transitive set of packaged archives.  The module's own
	// class and source archive pair, when present, comes before inherited
	// ones.
	Jars depset.DepSet[bazel.Artifact]
}

// InfoProvider carries each module's Info record through the build graph.
// It is set for every module that runs IDL processing, including modules
// with no sources of their own and modules that failed validation.
var InfoProvider = bazel.NewProvider[Info]()
