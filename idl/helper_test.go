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
	"bytes"
	"path"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paniag/bazel"
)

// libraryDescription returns the declaration of a library named name in pkg
// with a single IDL source.
func libraryDescription(pkg, name, src string) Description {
	return Description{
		Srcs:          []bazel.Artifact{bazel.SourceArtifact(pkg, src)},
		ClassJar:      bazel.Artifact{Root: "bin", Pkg: pkg, Rel: path.Join(pkg, name+".jar")},
		ManifestProto: bazel.Artifact{Root: "bin", Pkg: pkg, Rel: path.Join(pkg, name+".proto")},
	}
}

func analyzeErrors(t *testing.T, libs ...*Library) (*bazel.Context, []error) {
	t.Helper()
	ctx := bazel.NewContext()
	for _, lib := range libs {
		require.NoError(t, ctx.RegisterModule(lib))
	}
	return ctx, ctx.PrepareBuildActions(nil)
}

func analyze(t *testing.T, libs ...*Library) *bazel.Context {
	t.Helper()
	ctx, errs := analyzeErrors(t, libs...)
	require.Empty(t, errs)
	return ctx
}

func writeManifest(t *testing.T, ctx *bazel.Context) string {
	t.Helper()
	buf := bytes.NewBuffer(nil)
	require.NoError(t, ctx.WriteBuildFile(buf))
	return buf.String()
}

// expectedExampleManifest is the full manifest for the bar/foo graph used by
// TestExampleGraph: bar in package p, foo in package p depending on bar, one
// source each, default toolchain configuration.
func expectedExampleManifest() string {
	stars := strings.Repeat("*", 78)
	sep := "#" + strings.Repeat(" #", 39)

	return "# " + stars + "\n" +
		"# ***            This file is generated and should not be edited             ***\n" +
		"# " + stars + "\n" +
		`
ninja_required_version = 1.7.0

rule IdlGenerate
    command = ${command}
    description = ${description}

rule IdlJars
    command = ${command}
    description = ${description}
    rspfile = ${rspfile}
    rspfile_content = ${rspfile_content}

rule IdlPreprocess
    command = ${command}
    description = ${description}

` + sep + `
# Module:  bar
# Package: p
# Type:    *idl.Library

build gen/bar_idl_preprocessed/p/Bar.aidl: IdlPreprocess p/Bar.aidl
    command = tools/aidl --preprocess gen/bar_idl_preprocessed/p/Bar.aidl p/Bar.aidl
    description = Preprocessing idl file p/Bar.aidl

# IdlMiddleman
build internal/bar_idl/idls.middleman: phony $
        gen/bar_idl_preprocessed/p/Bar.aidl

build gen/bar_idl/p/Bar.java: IdlGenerate p/Bar.aidl $
        internal/bar_idl/idls.middleman tools/framework.aidl
    command = tools/aidl -b -Ip -ptools/framework.aidl -pgen/bar_idl_preprocessed/p/Bar.aidl p/Bar.aidl gen/bar_idl/p/Bar.java
    description = Generating idl source gen/bar_idl/p/Bar.java

build bin/p/bar-idl.jar bin/p/bar-idl.srcjar: IdlJars bin/p/bar.proto $
        bin/p/bar.jar gen/bar_idl/p/Bar.java
    command = tools/idlclass @bin/p/bar-idl.jar.rsp
    description = Building idl jars bin/p/bar-idl.jar
    rspfile = bin/p/bar-idl.jar.rsp
    rspfile_content = --manifest_proto bin/p/bar.proto --class_jar bin/p/bar.jar --output_class_jar bin/p/bar-idl.jar --output_source_jar bin/p/bar-idl.srcjar --temp_dir bin/p/bar_idl/bar-idl_temp gen/bar_idl/p/Bar.java

` + sep + `
# Module:  foo
# Package: p
# Type:    *idl.Library

build gen/foo_idl_preprocessed/p/Foo.aidl: IdlPreprocess p/Foo.aidl
    command = tools/aidl --preprocess gen/foo_idl_preprocessed/p/Foo.aidl p/Foo.aidl
    description = Preprocessing idl file p/Foo.aidl

# IdlMiddleman
build internal/foo_idl/idls.middleman: phony $
        gen/foo_idl_preprocessed/p/Foo.aidl

build gen/foo_idl/p/Foo.java: IdlGenerate p/Foo.aidl p/Bar.aidl $
        internal/foo_idl/idls.middleman tools/framework.aidl
    command = tools/aidl -b -Ip -ptools/framework.aidl -pgen/foo_idl_preprocessed/p/Foo.aidl p/Foo.aidl gen/foo_idl/p/Foo.java
    description = Generating idl source gen/foo_idl/p/Foo.java

build bin/p/foo-idl.jar bin/p/foo-idl.srcjar: IdlJars bin/p/foo.proto $
        bin/p/foo.jar gen/foo_idl/p/Foo.java
    command = tools/idlclass @bin/p/foo-idl.jar.rsp
    description = Building idl jars bin/p/foo-idl.jar
    rspfile = bin/p/foo-idl.jar.rsp
    rspfile_content = --manifest_proto bin/p/foo.proto --class_jar bin/p/foo.jar --output_class_jar bin/p/foo-idl.jar --output_source_jar bin/p/foo-idl.srcjar --temp_dir bin/p/foo_idl/foo-idl_temp gen/foo_idl/p/Foo.java

`
}

func TestExampleGraph(t *testing.T) {
	cfg := DefaultConfig()
	bar := NewLibrary("bar", "p", nil, cfg, libraryDescription("p", "bar", "p/Bar.aidl"))
	foo := NewLibrary("foo", "p", []string{"bar"}, cfg, libraryDescription("p", "foo", "p/Foo.aidl"))
	ctx := analyze(t, bar, foo)

	barInfo, ok := bazel.ModuleProvider(ctx, bar, InfoProvider)
	require.True(t, ok)
	assert.Equal(t, []string{"p"}, barInfo.Roots.ToList())
	assert.Equal(t, []string{"bin/p/bar-idl.jar", "bin/p/bar-idl.srcjar"},
		bazel.ExecPaths(barInfo.Jars.ToList()))

	fooInfo, ok := bazel.ModuleProvider(ctx, foo, InfoProvider)
	require.True(t, ok)
	assert.Equal(t, []string{"p"}, fooInfo.Roots.ToList())
	assert.Equal(t, []bazel.Artifact{
		bazel.SourceArtifact("p", "p/Bar.aidl"),
		bazel.SourceArtifact("p", "p/Foo.aidl"),
	}, fooInfo.Imports.ToList())
	assert.Equal(t, []string{
		"bin/p/foo-idl.jar", "bin/p/foo-idl.srcjar",
		"bin/p/bar-idl.jar", "bin/p/bar-idl.srcjar",
	}, bazel.ExecPaths(fooInfo.Jars.ToList()))

	h := foo.Helper()
	require.NotNil(t, h)
	assert.Equal(t, []string{"gen/foo_idl/p/Foo.java"}, bazel.ExecPaths(h.GeneratedSources()))
	assert.Equal(t, h.GeneratedSources()[0], h.TranslatedSources()[bazel.SourceArtifact("p", "p/Foo.aidl")])

	classJar, ok := h.ClassJar()
	require.True(t, ok)
	assert.Equal(t, "bin/p/foo-idl.jar", classJar.ExecPath())
	sourceJar, ok := h.SourceJar()
	require.True(t, ok)
	assert.Equal(t, "bin/p/foo-idl.srcjar", sourceJar.ExecPath())

	groups, err := ctx.ModuleOutputGroups(foo)
	require.NoError(t, err)
	assert.Equal(t, fooInfo.Jars.ToList(), groups[JarsOutputGroup])

	assert.Equal(t, expectedExampleManifest(), writeManifest(t, ctx))
}

func TestManifestDeterminism(t *testing.T) {
	run := func(reverse bool) string {
		cfg := DefaultConfig()
		bar := NewLibrary("bar", "p", nil, cfg, libraryDescription("p", "bar", "p/Bar.aidl"))
		foo := NewLibrary("foo", "p", []string{"bar"}, cfg, libraryDescription("p", "foo", "p/Foo.aidl"))

		var ctx *bazel.Context
		if reverse {
			ctx = analyze(t, foo, bar)
		} else {
			ctx = analyze(t, bar, foo)
		}
		return writeManifest(t, ctx)
	}

	first := run(false)
	assert.Equal(t, first, run(false))
	assert.Equal(t, first, run(true))
}

func TestDerivedPathsCollisionFree(t *testing.T) {
	cfg := DefaultConfig()
	common := bazel.SourceArtifact("p", "p/Common.aidl")
	library := func(name string) *Library {
		return NewLibrary(name, "p", nil, cfg, Description{
			Srcs:          []bazel.Artifact{common},
			ClassJar:      bazel.Artifact{Root: "bin", Pkg: "p", Rel: "p/" + name + ".jar"},
			ManifestProto: bazel.Artifact{Root: "bin", Pkg: "p", Rel: "p/" + name + ".proto"},
		})
	}
	foo := library("foo")
	baz := library("baz")
	analyze(t, foo, baz)

	fooGen := foo.Helper().GeneratedSources()
	bazGen := baz.Helper().GeneratedSources()
	require.Len(t, fooGen, 1)
	require.Len(t, bazGen, 1)

	assert.Equal(t, "gen/foo_idl/p/Common.java", fooGen[0].ExecPath())
	assert.Equal(t, "gen/baz_idl/p/Common.java", bazGen[0].ExecPath())
	assert.NotEqual(t, fooGen[0], bazGen[0])
}

func TestNoSourcesForwardsInheritedInfo(t *testing.T) {
	cfg := DefaultConfig()
	bar := NewLibrary("bar", "p", nil, cfg, libraryDescription("p", "bar", "p/Bar.aidl"))
	agg := NewLibrary("agg", "q", []string{"bar"}, cfg, Description{})
	ctx := analyze(t, bar, agg)

	barInfo, ok := bazel.ModuleProvider(ctx, bar, InfoProvider)
	require.True(t, ok)
	aggInfo, ok := bazel.ModuleProvider(ctx, agg, InfoProvider)
	require.True(t, ok)

	assert.Equal(t, barInfo.Roots.ToList(), aggInfo.Roots.ToList())
	assert.Equal(t, barInfo.Imports.ToList(), aggInfo.Imports.ToList())
	assert.Equal(t, barInfo.Jars.ToList(), aggInfo.Jars.ToList())

	h := agg.Helper()
	assert.Empty(t, h.Sources())
	assert.Empty(t, h.GeneratedSources())
	_, ok = h.ClassJar()
	assert.False(t, ok)
	_, ok = h.SourceJar()
	assert.False(t, ok)

	groups, err := ctx.ModuleOutputGroups(agg)
	require.NoError(t, err)
	assert.Equal(t, barInfo.Jars.ToList(), groups[JarsOutputGroup])

	// A module with no sources registers no actions of its own.
	assert.NotContains(t, writeManifest(t, ctx), "Module:  agg")
}

func TestSrcsOutsidePackageRejected(t *testing.T) {
	desc := Description{
		Srcs: []bazel.Artifact{
			bazel.SourceArtifact("q", "q/Evil.aidl"),
			bazel.SourceArtifact("p", "p/Good.aidl"),
		},
		ClassJar:      bazel.Artifact{Root: "bin", Pkg: "p", Rel: "p/foo.jar"},
		ManifestProto: bazel.Artifact{Root: "bin", Pkg: "p", Rel: "p/foo.proto"},
	}
	foo := NewLibrary("foo", "p", nil, DefaultConfig(), desc)
	ctx, errs := analyzeErrors(t, foo)

	require.Len(t, errs, 1)
	assert.EqualError(t, errs[0], `module "foo": idl_srcs: do not import 'q/Evil.aidl' directly. `+
		`You should either move the file to this package or depend on an appropriate rule there`)

	// Validation failure suppresses artifact derivation entirely, including
	// for the source that was declared correctly.
	h := foo.Helper()
	assert.Empty(t, h.GeneratedSources())
	_, ok := h.ClassJar()
	assert.False(t, ok)

	// The metadata record is still published, with no own contribution.
	info, ok := bazel.ModuleProvider(ctx, foo, InfoProvider)
	require.True(t, ok)
	assert.Zero(t, info.Roots.Len())
	assert.Zero(t, info.Imports.Len())
	assert.Zero(t, info.Jars.Len())

	err := ctx.WriteBuildFile(bytes.NewBuffer(nil))
	assert.ErrorIs(t, err, bazel.ErrBuildActionsNotReady)
}

func TestImportRootOverride(t *testing.T) {
	t.Run("without sources or parcelables", func(t *testing.T) {
		root := "custom"
		solo := NewLibrary("solo", "p", nil, DefaultConfig(), Description{ImportRoot: &root})
		_, errs := analyzeErrors(t, solo)

		require.Len(t, errs, 1)
		assert.EqualError(t, errs[0], `module "solo": idl_import_root: Neither idl_srcs nor `+
			`idl_parcelables were specified, but 'idl_import_root' attribute was set`)
	})

	t.Run("replaces root classification", func(t *testing.T) {
		root := "custom"
		desc := libraryDescription("p", "widget", "p/A.aidl")
		desc.ImportRoot = &root
		desc.Parcelables = []bazel.Artifact{{Root: "gen", Pkg: "p", Rel: "p/parcel/P.aidl"}}
		widget := NewLibrary("widget", "p", nil, DefaultConfig(), desc)
		ctx := analyze(t, widget)

		info, ok := bazel.ModuleProvider(ctx, widget, InfoProvider)
		require.True(t, ok)

		// One synthetic root per distinct artifact root, parcelables first.
		assert.Equal(t, []string{"gen/p/custom", "p/custom"}, info.Roots.ToList())
	})
}

func TestTransitiveMergeOrder(t *testing.T) {
	cfg := DefaultConfig()
	libc := NewLibrary("libc", "c", nil, cfg, libraryDescription("c", "libc", "c/C.aidl"))
	libb := NewLibrary("libb", "b", []string{"libc"}, cfg, libraryDescription("b", "libb", "b/B.aidl"))
	liba := NewLibrary("liba", "a", []string{"libb"}, cfg, libraryDescription("a", "liba", "a/A.aidl"))
	ctx := analyze(t, liba, libb, libc)

	info, ok := bazel.ModuleProvider(ctx, liba, InfoProvider)
	require.True(t, ok)

	// Roots and imports inherit first; archives lead with the module's own.
	assert.Equal(t, []string{"c", "b", "a"}, info.Roots.ToList())
	assert.Equal(t, []string{"c/C.aidl", "b/B.aidl", "a/A.aidl"},
		bazel.ExecPaths(info.Imports.ToList()))
	assert.Equal(t, []string{
		"bin/a/liba-idl.jar", "bin/a/liba-idl.srcjar",
		"bin/b/libb-idl.jar", "bin/b/libb-idl.srcjar",
		"bin/c/libc-idl.jar", "bin/c/libc-idl.srcjar",
	}, bazel.ExecPaths(info.Jars.ToList()))
}

func TestNonIdlFilesIgnored(t *testing.T) {
	desc := Description{
		Srcs: []bazel.Artifact{
			bazel.SourceArtifact("p", "p/I.aidl"),
			bazel.SourceArtifact("p", "p/README.md"),
		},
		Parcelables: []bazel.Artifact{
			bazel.SourceArtifact("p", "p/Par.aidl"),
			bazel.SourceArtifact("p", "p/notes.txt"),
		},
		ClassJar:      bazel.Artifact{Root: "bin", Pkg: "p", Rel: "p/mix.jar"},
		ManifestProto: bazel.Artifact{Root: "bin", Pkg: "p", Rel: "p/mix.proto"},
	}
	mix := NewLibrary("mix", "p", nil, DefaultConfig(), desc)
	ctx := analyze(t, mix)

	h := mix.Helper()
	assert.Equal(t, []bazel.Artifact{bazel.SourceArtifact("p", "p/I.aidl")}, h.Sources())
	assert.Equal(t, []bazel.Artifact{bazel.SourceArtifact("p", "p/Par.aidl")}, h.Parcelables())
	assert.Equal(t, []string{"gen/mix_idl/p/I.java"}, bazel.ExecPaths(h.GeneratedSources()))

	info, ok := bazel.ModuleProvider(ctx, mix, InfoProvider)
	require.True(t, ok)
	assert.Equal(t, []string{"p/Par.aidl", "p/I.aidl"}, bazel.ExecPaths(info.Imports.ToList()))
}

func TestUnclassifiableImportRoot(t *testing.T) {
	desc := Description{
		Srcs:          []bazel.Artifact{bazel.SourceArtifact("p", "p/I.aidl")},
		Parcelables:   []bazel.Artifact{bazel.SourceArtifact("q", "q/Ref.aidl")},
		ClassJar:      bazel.Artifact{Root: "bin", Pkg: "p", Rel: "p/odd.jar"},
		ManifestProto: bazel.Artifact{Root: "bin", Pkg: "p", Rel: "p/odd.proto"},
	}
	odd := NewLibrary("odd", "p", nil, DefaultConfig(), desc)
	ctx, errs := analyzeErrors(t, odd)

	require.Len(t, errs, 1)
	assert.EqualError(t, errs[0],
		`module "odd": Cannot determine java/javatests root for import q/Ref.aidl`)

	// The classifiable source still contributes its root, and the offending
	// file remains an import.
	info, ok := bazel.ModuleProvider(ctx, odd, InfoProvider)
	require.True(t, ok)
	assert.Equal(t, []string{"p"}, info.Roots.ToList())
	assert.Equal(t, []bazel.Artifact{
		bazel.SourceArtifact("q", "q/Ref.aidl"),
		bazel.SourceArtifact("p", "p/I.aidl"),
	}, info.Imports.ToList())
}
