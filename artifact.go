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

package bazel

import "path"

// An Artifact identifies a single file in the build tree, either a source
// file or the declared output of an action.  Artifacts are small immutable
// values; two Artifacts naming the same file compare equal, which is what
// ordered-set deduplication across the dependency graph relies on.
type Artifact struct {
	// Root is the artifact root the file lives under, for example the
	// generated-files root for derived artifacts.  It is empty for source
	// files.
	Root string

	// Pkg is the package that owns the file.  For a derived artifact it is
	// the package of the module whose action produces it.
	Pkg string

	// Rel is the path of the file relative to Root.  It includes the
	// package path.
	Rel string
}

// SourceArtifact returns an Artifact for a source file owned by pkg at the
// root-relative path rel.
func SourceArtifact(pkg, rel string) Artifact {
	return Artifact{Pkg: pkg, Rel: rel}
}

// ExecPath returns the path of the file relative to the build execution
// root, the form used in commands and in the written build manifest.
func (a Artifact) ExecPath() string {
	if a.Root == "" {
		return a.Rel
	}
	return path.Join(a.Root, a.Rel)
}

// Base returns the last element of the artifact's path.
func (a Artifact) Base() string {
	return path.Base(a.Rel)
}

func (a Artifact) String() string {
	return a.ExecPath()
}

// ExecPaths returns the ExecPath of each artifact in the list.
func ExecPaths(artifacts []Artifact) []string {
	result := make([]string, len(artifacts))
	for i, a := range artifacts {
		result[i] = a.ExecPath()
	}
	return result
}
