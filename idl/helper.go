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

// Package idl derives the build actions that compile interface definition
// language sources: per-file preprocessing, aggregation of the preprocessed
// files behind a single artifact, source generation against the transitive
// import set, and packaging of the generated sources into an archive pair.
// It also maintains the transitive metadata record (Info) that flows along
// the dependency graph to make imports from dependencies resolvable.
package idl

import (
	"path"
	"strings"

	"github.com/paniag/bazel"
	"github.com/paniag/bazel/depset"
	"github.com/paniag/bazel/pathtools"
)

// idlExt is the extension of IDL source files.  Declared entries with any
// other extension are ignored, not errors.
const idlExt = ".aidl"

// JarsOutputGroup is the output group name under which the transitive
// archive set is reported.
const JarsOutputGroup = "idl_jars"

// A Description holds a module's resolved IDL declarations.  Values arrive
// fully resolved; nothing here reaches back into a configuration system.
type Description struct {
	// Srcs are the declared IDL compilation sources.  Every source must
	// live in the declaring module's package.
	Srcs []bazel.Artifact

	// Parcelables are declared reference files: importable by sources here
	// and in dependents, but never compiled on their own.
	Parcelables []bazel.Artifact

	// ImportRoot, when non-nil, overrides per-file source root
	// classification with a single root relative to the module's package.
	ImportRoot *string

	// ClassJar is the module's primary compiled-class archive, the base the
	// packaged archive pair derives from.
	ClassJar bazel.Artifact

	// ManifestProto is the manifest descriptor consumed by the packaging
	// action.
	ManifestProto bazel.Artifact
}

// A Helper validates a module's IDL declarations, derives its output
// artifacts, aggregates transitive metadata, and registers the compilation
// pipeline.  Create one with NewHelper during the module's
// GenerateBuildActions, then call AddTransitiveInfoProviders to register
// actions and publish the metadata record.
type Helper struct {
	cfg  *Config
	desc Description

	idls        []bazel.Artifact
	parcelables []bazel.Artifact

	generated  []bazel.Artifact
	translated map[bazel.Artifact]bazel.Artifact

	classJar  bazel.Artifact
	sourceJar bazel.Artifact
	hasJars   bool

	info Info
}

// NewHelper validates the description, derives the module's output
// artifacts, and builds its transitive metadata record.  Validation errors
// are reported through ctx; they suppress artifact derivation for this
// module but never stop analysis.
func NewHelper(ctx bazel.ModuleContext, cfg *Config, desc Description) *Helper {
	h := &Helper{
		cfg:  cfg,
		desc: desc,
	}

	h.checkImportRoot(ctx)

	h.idls = filterIdlFiles(desc.Srcs)
	h.parcelables = filterIdlFiles(desc.Parcelables)
	h.checkSrcsSamePackage(ctx)

	if len(h.idls) > 0 && !ctx.Failed() {
		h.deriveGeneratedSources(ctx)
		h.classJar = deriveIdlJar(desc.ClassJar, "-idl.jar")
		h.sourceJar = deriveIdlJar(desc.ClassJar, "-idl.srcjar")
		h.hasJars = true
	}

	h.info = h.buildInfo(ctx)

	return h
}

// AddTransitiveInfoProviders registers the module's build actions, publishes
// its Info record, and reports the transitive archive set under
// JarsOutputGroup.  The record is published even when the module failed
// validation or has no sources; the actions are not.
func (h *Helper) AddTransitiveInfoProviders(ctx bazel.ModuleContext) {
	if h.hasJars && !ctx.Failed() {
		h.createCompilationActions(ctx)
		h.createJarAction(ctx)
	}

	bazel.SetProvider(ctx, InfoProvider, h.info)
	ctx.AddOutputGroup(JarsOutputGroup, h.info.Jars.ToList())
}

// Sources returns the module's own IDL compilation sources, filtered to
// IDL files, in declaration order.
func (h *Helper) Sources() []bazel.Artifact {
	return h.idls
}

// Parcelables returns the module's own parcelable reference files, filtered
// to IDL files, in declaration order.
func (h *Helper) Parcelables() []bazel.Artifact {
	return h.parcelables
}

// GeneratedSources returns the derived generated-source artifacts, ordered
// parallel to Sources.  It is empty when the module has no sources or
// failed validation.
func (h *Helper) GeneratedSources() []bazel.Artifact {
	return h.generated
}

// TranslatedSources returns the mapping from each IDL source to its derived
// generated-source artifact.
func (h *Helper) TranslatedSources() map[bazel.Artifact]bazel.Artifact {
	return h.translated
}

// ClassJar returns the derived class archive, or false when the module
// produces none.
func (h *Helper) ClassJar() (bazel.Artifact, bool) {
	return h.classJar, h.hasJars
}

// SourceJar returns the derived source archive, or false when the module
// produces none.
func (h *Helper) SourceJar() (bazel.Artifact, bool) {
	return h.sourceJar, h.hasJars
}

// Info returns the module's transitive metadata record.
func (h *Helper) Info() Info {
	return h.info
}

// checkImportRoot reports a validation error when an import root override
// is declared by a module with neither sources nor parcelables.
func (h *Helper) checkImportRoot(ctx bazel.ModuleContext) {
	if h.desc.ImportRoot == nil {
		return
	}
	if len(h.desc.Srcs) == 0 && len(h.desc.Parcelables) == 0 {
		ctx.PropertyErrorf("idl_import_root",
			"Neither idl_srcs nor idl_parcelables were specified, but 'idl_import_root' attribute was set")
	}
}

// checkSrcsSamePackage reports a validation error for every compilation
// source declared from a foreign package.  Parcelables are exempt; they are
// reference files and may live anywhere a root can be classified for them.
func (h *Helper) checkSrcsSamePackage(ctx bazel.ModuleContext) {
	pkg := ctx.ModulePkg()
	for _, idl := range h.idls {
		if idl.Pkg != pkg {
			ctx.PropertyErrorf("idl_srcs",
				"do not import '%s' directly. You should either move the file to this package or depend on an appropriate rule there",
				idl.ExecPath())
		}
	}
}

// deriveGeneratedSources computes the generated-source artifact for each IDL
// source.  The module-unique namespace keeps two modules compiling the same
// source file from colliding.
func (h *Helper) deriveGeneratedSources(ctx bazel.ModuleContext) {
	namespace := ctx.ModuleName() + "_idl"

	h.generated = make([]bazel.Artifact, 0, len(h.idls))
	h.translated = make(map[bazel.Artifact]bazel.Artifact, len(h.idls))
	for _, idl := range h.idls {
		output := deriveArtifact(h.cfg.GenRoot, ctx.ModulePkg(), namespace,
			pathtools.ReplaceExtension(idl.Rel, "java"))
		h.generated = append(h.generated, output)
		h.translated[idl] = output
	}
}

// buildInfo merges the module's own contribution with the records inherited
// from its dependencies, in declaration order.  Roots and imports inherit
// first and append own contributions; archives lead with the module's own
// pair.  A module that failed validation contributes nothing of its own and
// only forwards inherited data.  Unclassifiable import roots are
// module-level errors; classification continues for the remaining files.
func (h *Helper) buildInfo(ctx bazel.ModuleContext) Info {
	roots := depset.NewBuilder[string](depset.POSTORDER)
	imports := depset.NewBuilder[bazel.Artifact](depset.POSTORDER)
	jars := depset.NewBuilder[bazel.Artifact](depset.PREORDER)

	if h.hasJars {
		jars.Direct(h.classJar, h.sourceJar)
	}

	ctx.VisitDirectDeps(func(module bazel.Module) {
		dep, ok := bazel.OtherModuleProvider(ctx, module, InfoProvider)
		if !ok {
			return
		}
		roots.Transitive(dep.Roots)
		imports.Transitive(dep.Imports)
		jars.Transitive(dep.Jars)
	})

	if !ctx.Failed() {
		idlImports := h.ownImports()

		if h.desc.ImportRoot == nil {
			classifier := h.cfg.rootClassifier()
			for _, imp := range idlImports {
				root, ok := classifier.Root(imp, ctx.ModulePkg())
				if !ok {
					ctx.ModuleErrorf("Cannot determine %s root for import %s",
						strings.Join(h.cfg.JavaRoots, "/"), imp.ExecPath())
					continue
				}
				roots.Direct(root)
			}
		} else {
			// One synthetic root per distinct artifact root among the
			// import files, not one per file.
			for _, imp := range idlImports {
				roots.Direct(path.Join(imp.Root, ctx.ModulePkg(), *h.desc.ImportRoot))
			}
		}

		imports.Direct(idlImports...)
	}

	return Info{
		Roots:   roots.Build(),
		Imports: imports.Build(),
		Jars:    jars.Build(),
	}
}

// ownImports returns the module's contribution to the transitive import
// set: parcelables first, then sources.
func (h *Helper) ownImports() []bazel.Artifact {
	imports := make([]bazel.Artifact, 0, len(h.parcelables)+len(h.idls))
	imports = append(imports, h.parcelables...)
	imports = append(imports, h.idls...)
	return imports
}

// createCompilationActions registers the preprocess actions, the aggregation
// point over their outputs, and the generate actions.
func (h *Helper) createCompilationActions(ctx bazel.ModuleContext) {
	name := ctx.ModuleName()
	pkg := ctx.ModulePkg()

	// Arguments shared by every generate action: one -I per transitive
	// import root, the framework reference, then one -p per preprocessed
	// file in source declaration order.
	var sharedArgs []string
	for _, root := range h.info.Roots.ToList() {
		sharedArgs = append(sharedArgs, "-I"+root)
	}
	sharedArgs = append(sharedArgs, "-p"+h.cfg.FrameworkIdl)

	preprocessed := make([]bazel.Artifact, 0, len(h.idls))
	for _, idl := range h.idls {
		output := deriveArtifact(h.cfg.GenRoot, pkg, name+"_idl_preprocessed", idl.Rel)
		preprocessed = append(preprocessed, output)
		sharedArgs = append(sharedArgs, "-p"+output.ExecPath())

		ctx.Build(bazel.ActionParams{
			Mnemonic:    "IdlPreprocess",
			Command:     []string{h.cfg.Tool, "--preprocess", output.ExecPath(), idl.ExecPath()},
			Description: "Preprocessing idl file " + idl.ExecPath(),
			Outputs:     []bazel.Artifact{output},
			Inputs:      []bazel.Artifact{idl},
		})
	}

	middleman := deriveArtifact(h.cfg.MiddlemanRoot, pkg, name+"_idl", "idls.middleman")
	ctx.Middleman(bazel.MiddlemanParams{
		Comment: "IdlMiddleman",
		Output:  middleman,
		Inputs:  preprocessed,
	})

	framework := bazel.Artifact{Rel: h.cfg.FrameworkIdl}
	transitiveImports := h.info.Imports.ToList()

	for i, idl := range h.idls {
		output := h.generated[i]

		command := make([]string, 0, len(sharedArgs)+4)
		command = append(command, h.cfg.Tool, "-b")
		command = append(command, sharedArgs...)
		command = append(command, idl.ExecPath(), output.ExecPath())

		// The source file is usually in the transitive import set too;
		// fold the duplicate away.
		inputs := make([]bazel.Artifact, 0, len(transitiveImports)+3)
		inputs = append(inputs, idl)
		inputs = append(inputs, transitiveImports...)
		inputs = append(inputs, middleman, framework)
		inputs = depset.New(depset.PREORDER, inputs, nil).ToList()

		ctx.Build(bazel.ActionParams{
			Mnemonic:    "IdlGenerate",
			Command:     command,
			Description: "Generating idl source " + output.ExecPath(),
			Outputs:     []bazel.Artifact{output},
			Inputs:      inputs,
		})
	}
}

// createJarAction registers the packaging action that bundles the generated
// sources into the class and source archive pair.  The argument list rides
// in a shell-quoted response file next to the class archive.
func (h *Helper) createJarAction(ctx bazel.ModuleContext) {
	tempDir := path.Join(h.cfg.BinRoot, ctx.ModulePkg(), ctx.ModuleName()+"_idl",
		pathtools.RemoveExtension(h.classJar.Base())+"_temp")

	args := []string{
		"--manifest_proto", h.desc.ManifestProto.ExecPath(),
		"--class_jar", h.desc.ClassJar.ExecPath(),
		"--output_class_jar", h.classJar.ExecPath(),
		"--output_source_jar", h.sourceJar.ExecPath(),
		"--temp_dir", tempDir,
	}
	args = append(args, bazel.ExecPaths(h.generated)...)

	rspfile := h.classJar.ExecPath() + ".rsp"

	inputs := make([]bazel.Artifact, 0, len(h.generated)+2)
	inputs = append(inputs, h.desc.ManifestProto, h.desc.ClassJar)
	inputs = append(inputs, h.generated...)

	ctx.Build(bazel.ActionParams{
		Mnemonic:       "IdlJars",
		Command:        []string{h.cfg.Packager, "@" + rspfile},
		Description:    "Building idl jars " + h.classJar.ExecPath(),
		Outputs:        []bazel.Artifact{h.classJar, h.sourceJar},
		Inputs:         inputs,
		Rspfile:        rspfile,
		RspfileContent: args,
	})
}

// filterIdlFiles narrows a declared file list to IDL sources.
func filterIdlFiles(artifacts []bazel.Artifact) []bazel.Artifact {
	var idls []bazel.Artifact
	for _, a := range artifacts {
		if strings.HasSuffix(a.Rel, idlExt) {
			idls = append(idls, a)
		}
	}
	return idls
}

// deriveArtifact computes the collision-free output path for a file derived
// from a source: the module-unique namespace segment is prepended to the
// source's root-relative path under the given artifact root.
func deriveArtifact(root, pkg, namespace, srcRel string) bazel.Artifact {
	return bazel.Artifact{
		Root: root,
		Pkg:  pkg,
		Rel:  path.Join(namespace, srcRel),
	}
}

// deriveIdlJar names an archive next to the module's primary class archive,
// replacing its extension with suffix.
func deriveIdlJar(classJar bazel.Artifact, suffix string) bazel.Artifact {
	return bazel.Artifact{
		Root: classJar.Root,
		Pkg:  classJar.Pkg,
		Rel:  pathtools.RemoveExtension(classJar.Rel) + suffix,
	}
}
