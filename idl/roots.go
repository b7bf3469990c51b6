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
	"path"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/paniag/bazel"
)

// rootMemoSize bounds the classifier memo.  Import files repeat across the
// dependency graph far more often than they vary, so a small cache covers
// almost every lookup.
const rootMemoSize = 1024

// A rootClassifier computes the source root prefix of an import file: the
// directory a generate action must pass as a search path so that the file's
// package-qualified name resolves.  Classification is pure; the memo only
// avoids re-splitting paths that recur across modules.
type rootClassifier struct {
	markers []string
	memo    *lru.Cache[string, string]
}

func newRootClassifier(markers []string) *rootClassifier {
	memo, err := lru.New[string, string](rootMemoSize)
	if err != nil {
		panic(err)
	}
	return &rootClassifier{
		markers: markers,
		memo:    memo,
	}
}

// Root returns the source root prefix for an import file owned by a module
// in pkg.  The first path segment matching a marker name ends the prefix.
// A file with no marker segment that lives in the module's own package uses
// the package directory as its root.  Returns false when neither rule
// applies; the caller reports the error.
func (r *rootClassifier) Root(artifact bazel.Artifact, pkg string) (string, bool) {
	key := pkg + "\x00" + artifact.ExecPath()
	if root, ok := r.memo.Get(key); ok {
		return root, true
	}

	root, ok := r.classify(artifact, pkg)
	if ok {
		r.memo.Add(key, root)
	}
	return root, ok
}

func (r *rootClassifier) classify(artifact bazel.Artifact, pkg string) (string, bool) {
	segments := strings.Split(artifact.ExecPath(), "/")

	// The last segment is the file itself and cannot end a root.
	for i, segment := range segments[:len(segments)-1] {
		for _, marker := range r.markers {
			if segment == marker {
				return path.Join(segments[:i+1]...), true
			}
		}
	}

	if pkg != "" && artifact.Pkg == pkg {
		return path.Join(artifact.Root, pkg), true
	}

	return "", false
}
