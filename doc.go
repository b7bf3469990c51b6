// Copyright 2015 Google Inc. All rights reserved.
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

// Package bazel implements the analysis phase of a build orchestrator: it
// turns a set of pre-resolved module descriptions into a deterministic graph
// of build actions, serialized as a Ninja (https://ninja-build.org) manifest
// that an external engine can schedule, cache, and incrementally re-run.
// Where a full build system would parse build files and resolve
// configuration, this package deliberately starts after all of that: modules
// arrive as already-resolved values, and the package's only job is correct,
// reproducible action-graph construction.
//
// Analysis proceeds in three phases.  In the registration phase, Module
// values are handed to a Context.  In the resolve phase the Context binds
// each module's declared dependency names to registered modules and rejects
// dependency cycles.  In the generate phase the Context calls each module's
// GenerateBuildActions method in dependency order, always visiting a module
// after all of its dependencies; the ModuleContext passed to that method is
// used to register actions, report errors against the module or one of its
// properties, and read typed data published by dependencies (see
// NewProvider).  Finally WriteBuildFile serializes the recorded actions.
//
// Errors reported during the generate phase are accumulated, not
// short-circuited: a failing module contributes no actions to the written
// manifest, but analysis of the remaining modules continues so that a single
// run reports every problem.
//
// All outputs are deterministic functions of the registered modules.  The
// Context never consults the clock, the environment, or map iteration order
// when constructing paths, command lines, or the serialized manifest; the
// external engine relies on that stability for caching.
package bazel
