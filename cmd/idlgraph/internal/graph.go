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

package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/paniag/bazel"
	"github.com/paniag/bazel/idl"
)

// A moduleDecl is one module in a graph description file.  All values are
// fully resolved; file references use the "[root:]path[@pkg]" syntax
// decoded by parseArtifact.
type moduleDecl struct {
	Name           string   `json:"name"`
	Pkg            string   `json:"pkg"`
	Deps           []string `json:"deps"`
	IdlSrcs        []string `json:"idl_srcs"`
	IdlParcelables []string `json:"idl_parcelables"`
	IdlImportRoot  *string  `json:"idl_import_root"`
	ClassJar       string   `json:"class_jar"`
	ManifestProto  string   `json:"manifest_proto"`
}

// parseArtifact decodes the "[root:]path[@pkg]" file reference syntax.  The
// package defaults to the path's directory.
func parseArtifact(s string) bazel.Artifact {
	if s == "" {
		return bazel.Artifact{}
	}

	var a bazel.Artifact
	if i := strings.Index(s, ":"); i >= 0 {
		a.Root = s[:i]
		s = s[i+1:]
	}
	if i := strings.LastIndex(s, "@"); i >= 0 {
		a.Pkg = s[i+1:]
		s = s[:i]
	} else if dir := path.Dir(s); dir != "." {
		a.Pkg = dir
	}
	a.Rel = s
	return a
}

func parseArtifacts(refs []string) []bazel.Artifact {
	artifacts := make([]bazel.Artifact, len(refs))
	for i, ref := range refs {
		artifacts[i] = parseArtifact(ref)
	}
	return artifacts
}

// loadToolchain returns the toolchain configuration at path, or the defaults
// when path is empty.
func loadToolchain(path string) (*idl.Config, error) {
	if path == "" {
		return idl.DefaultConfig(), nil
	}
	return idl.LoadConfig(path)
}

// loadGraph reads a graph description file and registers one idl.Library per
// module with a fresh Context.
func loadGraph(graphPath string, cfg *idl.Config) (*bazel.Context, []*idl.Library, error) {
	data, err := os.ReadFile(graphPath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading graph: %w", err)
	}

	var decls []moduleDecl
	if err := json.Unmarshal(data, &decls); err != nil {
		return nil, nil, fmt.Errorf("parsing graph %s: %w", graphPath, err)
	}

	ctx := bazel.NewContext()
	libs := make([]*idl.Library, 0, len(decls))
	for _, decl := range decls {
		lib := idl.NewLibrary(decl.Name, decl.Pkg, decl.Deps, cfg, idl.Description{
			Srcs:          parseArtifacts(decl.IdlSrcs),
			Parcelables:   parseArtifacts(decl.IdlParcelables),
			ImportRoot:    decl.IdlImportRoot,
			ClassJar:      parseArtifact(decl.ClassJar),
			ManifestProto: parseArtifact(decl.ManifestProto),
		})
		if err := ctx.RegisterModule(lib); err != nil {
			return nil, nil, fmt.Errorf("graph %s: %w", graphPath, err)
		}
		libs = append(libs, lib)
	}

	slog.Debug("loaded module graph", "path", graphPath, "modules", len(libs))
	return ctx, libs, nil
}

// analyzeGraph loads the toolchain configuration and the graph description,
// then runs the full analysis.  Module errors are printed one per line to
// errW before a summary error is returned.
func analyzeGraph(errW io.Writer, configPath, graphPath string) (*bazel.Context, []*idl.Library, error) {
	cfg, err := loadToolchain(configPath)
	if err != nil {
		return nil, nil, err
	}

	ctx, libs, err := loadGraph(graphPath, cfg)
	if err != nil {
		return nil, nil, err
	}

	if errs := ctx.PrepareBuildActions(nil); len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(errW, err)
		}
		return nil, nil, errors.New("analysis failed")
	}

	return ctx, libs, nil
}
