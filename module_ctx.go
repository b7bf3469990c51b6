// Copyright 2014 Google Inc. All rights reserved.
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

import (
	"fmt"
)

// A Module handles generating all of the build actions needed to produce the
// outputs of a single rule.  Module objects are created by the caller and
// handed to a Context during its registration phase.  The Context records the
// module under the name, package, and dependency list the Module reports and
// resolves the dependency names to other registered modules during
// ResolveDependencies.
//
// The Module implementation can access the build configuration as well as any
// modules on which it depends using the ModuleContext passed to
// GenerateBuildActions.  The ModuleContext is also used to record build
// actions and to report errors to the user.
//
// In addition to implementing the GenerateBuildActions method, a Module
// should publish the information its dependents need using a provider (see
// NewProvider).  Providers set on a module are read by its dependents with
// OtherModuleProvider.  This is safe because the Context calls
// GenerateBuildActions in dependency order: a module's providers are complete
// before any module that depends on it runs.
//
// For example, a Module that compiles an interface library might publish the
// transitive set of interface definitions its dependents must compile
// against:
//
//	var InfoProvider = bazel.NewProvider[Info]()
//
//	func (m *myModule) GenerateBuildActions(ctx bazel.ModuleContext) {
//	    ...
//	    bazel.SetProvider(ctx, InfoProvider, info)
//	}
//
// A module depending on it would then do:
//
//	ctx.VisitDirectDeps(func(dep bazel.Module) {
//	    if info, ok := bazel.OtherModuleProvider(ctx, dep, InfoProvider); ok {
//	        ...
//	    }
//	})
//
// to collect the definitions that should be included in its own compile
// command.
//
// GenerateBuildActions is called on a single goroutine.  It is guaranteed to
// be called after it has finished being called on all dependencies of the
// module, and the order in which unrelated modules run is deterministic for
// a given set of registered modules.
type Module interface {
	// Name returns the name of the module.  Names must be unique across all
	// modules registered with a Context.
	Name() string

	// Pkg returns the package the module is defined in.  Artifacts derived
	// for the module are rooted under this package.
	Pkg() string

	// DepNames returns the names of the modules this module directly
	// depends on.  The Context resolves the names to modules after all
	// modules have been registered.
	DepNames() []string

	// GenerateBuildActions is called by the Context that the Module was
	// registered with during its generate phase.  This call should record
	// all build actions needed to produce the module's outputs.
	GenerateBuildActions(ModuleContext)
}

type BaseModuleContext interface {
	ModuleName() string
	ModulePkg() string
	Config() interface{}

	ModuleErrorf(fmt string, args ...interface{})
	PropertyErrorf(property, fmt string, args ...interface{})
	Failed() bool

	moduleInfo() *moduleInfo
	error(err error)
}

type ModuleContext interface {
	BaseModuleContext

	OtherModuleName(m Module) string
	OtherModuleErrorf(m Module, fmt string, args ...interface{})

	VisitDirectDeps(visit func(Module))
	VisitDirectDepsIf(pred func(Module) bool, visit func(Module))
	VisitDepsDepthFirst(visit func(Module))

	// Build records a single build action for the module.  It panics if
	// the parameters are malformed.
	Build(params ActionParams)

	// Middleman records a synthetic aggregating artifact for the module.
	// It panics if the parameters are malformed.
	Middleman(params MiddlemanParams)

	// AddOutputGroup registers artifacts under a named output group on the
	// module.  Calling it again with the same name appends to the group.
	AddOutputGroup(name string, artifacts []Artifact)

	setProvider(provider *providerKey, value interface{})
	otherModuleProvider(m Module, provider *providerKey) (interface{}, bool)
}

var _ BaseModuleContext = (*baseModuleContext)(nil)

type baseModuleContext struct {
	context *Context
	config  interface{}
	module  *moduleInfo
	errs    []error
}

func (d *baseModuleContext) moduleInfo() *moduleInfo {
	return d.module
}

func (d *baseModuleContext) ModuleName() string {
	return d.module.name
}

func (d *baseModuleContext) ModulePkg() string {
	return d.module.pkg
}

func (d *baseModuleContext) Config() interface{} {
	return d.config
}

func (d *baseModuleContext) error(err error) {
	if err != nil {
		d.errs = append(d.errs, err)
	}
}

func (d *baseModuleContext) ModuleErrorf(format string,
	args ...interface{}) {

	d.error(&ModuleError{
		module: d.module.name,
		Err:    fmt.Errorf(format, args...),
	})
}

func (d *baseModuleContext) PropertyErrorf(property, format string,
	args ...interface{}) {

	format = property + ": " + format

	d.error(&PropertyError{
		ModuleError: ModuleError{
			module: d.module.name,
			Err:    fmt.Errorf(format, args...),
		},
		property: property,
	})
}

func (d *baseModuleContext) Failed() bool {
	return len(d.errs) > 0
}

var _ ModuleContext = (*moduleContext)(nil)

type moduleContext struct {
	baseModuleContext
	actionDefs   localBuildActions
	outputGroups map[string][]Artifact
}

func (m *moduleContext) OtherModuleName(logicModule Module) string {
	module := m.context.moduleInfo[logicModule]
	return module.name
}

func (m *moduleContext) OtherModuleErrorf(logicModule Module, format string,
	args ...interface{}) {

	module := m.context.moduleInfo[logicModule]
	m.errs = append(m.errs, &ModuleError{
		module: module.name,
		Err:    fmt.Errorf(format, args...),
	})
}

func (m *moduleContext) VisitDirectDeps(visit func(Module)) {
	m.context.visitDirectDeps(m.module, visit)
}

func (m *moduleContext) VisitDirectDepsIf(pred func(Module) bool, visit func(Module)) {
	m.context.visitDirectDepsIf(m.module, pred, visit)
}

func (m *moduleContext) VisitDepsDepthFirst(visit func(Module)) {
	m.context.visitDepsDepthFirst(m.module, visit)
}

func (m *moduleContext) Build(params ActionParams) {
	def, err := parseActionParams(&params)
	if err != nil {
		panic(err)
	}

	m.actionDefs.defs = append(m.actionDefs.defs, def)
}

func (m *moduleContext) Middleman(params MiddlemanParams) {
	def, err := parseMiddlemanParams(&params)
	if err != nil {
		panic(err)
	}

	m.actionDefs.defs = append(m.actionDefs.defs, def)
}

func (m *moduleContext) AddOutputGroup(name string, artifacts []Artifact) {
	if m.outputGroups == nil {
		m.outputGroups = make(map[string][]Artifact)
	}
	m.outputGroups[name] = append(m.outputGroups[name], artifacts...)
}

func (m *moduleContext) setProvider(provider *providerKey, value interface{}) {
	m.context.setProvider(m.module, provider, value)
}

func (m *moduleContext) otherModuleProvider(logicModule Module,
	provider *providerKey) (interface{}, bool) {

	module := m.context.moduleInfo[logicModule]
	return m.context.provider(module, provider)
}
