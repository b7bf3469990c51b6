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
)

// A Library is a build module whose declared IDL sources are compiled into
// generated sources and packaged into an archive pair.  It implements
// bazel.Module; registering it with a bazel.Context and preparing build
// actions runs the full pipeline.
type Library struct {
	name string
	pkg  string
	deps []string

	cfg  *Config
	desc Description

	helper *Helper
}

// NewLibrary returns a Library named name in package pkg that depends on
// the modules named in deps.  All modules in a build should share one
// Config.
func NewLibrary(name, pkg string, deps []string, cfg *Config, desc Description) *Library {
	return &Library{
		name: name,
		pkg:  pkg,
		deps: deps,
		cfg:  cfg,
		desc: desc,
	}
}

func (l *Library) Name() string       { return l.name }
func (l *Library) Pkg() string        { return l.pkg }
func (l *Library) DepNames() []string { return l.deps }

func (l *Library) GenerateBuildActions(ctx bazel.ModuleContext) {
	l.helper = NewHelper(ctx, l.cfg, l.desc)
	l.helper.AddTransitiveInfoProviders(ctx)
}

// Helper returns the module's Helper.  It is nil until GenerateBuildActions
// has run.
func (l *Library) Helper() *Helper {
	return l.helper
}
