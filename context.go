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
	"bytes"
	"errors"
	"fmt"
	"io"
	"reflect"
	"runtime"
	"sort"
	"text/template"
)

var ErrBuildActionsNotReady = errors.New("build actions are not ready")

const maxErrors = 10

// A Context contains all the state needed to analyze a set of modules and
// generate a build manifest from them.  The process proceeds through a series
// of three phases.  Each phase corresponds with some methods on the Context
// object
//
//	      Phase                            Methods
//	   ------------      -------------------------------------------
//	1. Registration                    RegisterModule
//
//	2. Generate          ResolveDependencies, PrepareBuildActions
//
//	3. Write                           WriteBuildFile
//
// The registration phase adds modules to the context and records their names
// and dependency lists.  The generate phase resolves the recorded dependency
// names to modules, checks the dependency graph for cycles, and invokes
// GenerateBuildActions on every module in dependency order to create an
// internal representation of the build actions that must be performed.
// Finally, the write phase generates the manifest text based on those
// actions.
type Context struct {
	// set during Registration
	modules       []*moduleInfo
	moduleInfo    map[Module]*moduleInfo
	modulesByName map[string]*moduleInfo

	// set during ResolveDependencies
	modulesSorted []*moduleInfo

	dependenciesReady bool // set to true on a successful ResolveDependencies
	buildActionsReady bool // set to true on a successful PrepareBuildActions

	requiredNinjaMajor int // For the ninja_required_version variable
	requiredNinjaMinor int // For the ninja_required_version variable
	requiredNinjaMicro int // For the ninja_required_version variable
}

// A ModuleError describes a problem that was encountered that is related to a
// particular module.
type ModuleError struct {
	Err    error // the error that occurred
	module string
}

// A PropertyError describes a problem that was encountered that is related to
// a particular property of a module.
type PropertyError struct {
	ModuleError
	property string
}

func (e *ModuleError) Error() string {
	return fmt.Sprintf("module %q: %s", e.module, e.Err)
}

func (e *ModuleError) Unwrap() error {
	return e.Err
}

type moduleInfo struct {
	// set during RegisterModule
	name        string
	pkg         string
	depNames    []string
	logicModule Module

	// set during ResolveDependencies
	directDeps []*moduleInfo

	// set during updateDependencies
	reverseDeps []*moduleInfo
	forwardDeps []*moduleInfo

	// set during PrepareBuildActions
	startedGenerateBuildActions  bool
	finishedGenerateBuildActions bool
	actionDefs                   localBuildActions
	outputGroups                 map[string][]Artifact
	providers                    []interface{}
}

func (module *moduleInfo) String() string {
	return fmt.Sprintf("module %q", module.name)
}

// NewContext creates a new Context object.  The created context initially has
// no modules registered.
func NewContext() *Context {
	return &Context{
		moduleInfo:    make(map[Module]*moduleInfo),
		modulesByName: make(map[string]*moduleInfo),

		requiredNinjaMajor: 1,
		requiredNinjaMinor: 7,
		requiredNinjaMicro: 0,
	}
}

// RegisterModule adds a module to the Context.  The module's Name, Pkg, and
// DepNames methods are called once, during registration, and their results
// are recorded.  Registering a second module with the name of an existing one
// is an error.
//
// RegisterModule may not be called once ResolveDependencies has succeeded.
func (c *Context) RegisterModule(module Module) error {
	if c.dependenciesReady {
		return errors.New("cannot register modules after ResolveDependencies")
	}

	name := module.Name()
	if name == "" {
		return errors.New("module name is empty")
	}

	if _, present := c.modulesByName[name]; present {
		return fmt.Errorf("module %q already defined", name)
	}

	info := &moduleInfo{
		name:        name,
		pkg:         module.Pkg(),
		depNames:    append([]string(nil), module.DepNames()...),
		logicModule: module,
	}

	c.modules = append(c.modules, info)
	c.moduleInfo[module] = info
	c.modulesByName[name] = info

	return nil
}

// ResolveDependencies resolves the dependency names recorded for every
// registered module to the modules they name, and checks the resulting graph
// for cycles.  A dependency on a name that no registered module has and a
// dependency cycle are both errors.
//
// ResolveDependencies is called automatically by PrepareBuildActions if it
// has not already been called.
func (c *Context) ResolveDependencies() []error {
	errs := c.resolveDependencies()
	if len(errs) > 0 {
		return errs
	}

	errs = c.updateDependencies()
	if len(errs) > 0 {
		return errs
	}

	c.dependenciesReady = true
	return nil
}

func (c *Context) resolveDependencies() (errs []error) {
	for _, module := range c.modules {
		module.directDeps = nil

		for _, depName := range module.depNames {
			if depName == module.name {
				errs = append(errs, fmt.Errorf("%q depends on itself", depName))
				continue
			}

			dep, ok := c.modulesByName[depName]
			if !ok {
				errs = append(errs, fmt.Errorf("%q depends on undefined module %q",
					module.name, depName))
				continue
			}

			module.directDeps = append(module.directDeps, dep)
		}
	}

	return errs
}

// sortedModules returns the registered modules sorted by name, so that the
// results of the analysis do not depend on registration order.
func (c *Context) sortedModules() []*moduleInfo {
	sorted := make([]*moduleInfo, len(c.modules))
	copy(sorted, c.modules)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].name < sorted[j].name
	})
	return sorted
}

// updateDependencies recomputes the forward and reverse dependency lists of
// every module and orders c.modulesSorted so that every module appears after
// all of its dependencies.  It returns errors for any dependency cycles it
// finds.
func (c *Context) updateDependencies() (errs []error) {
	visited := make(map[*moduleInfo]bool)  // modules that were already checked
	checking := make(map[*moduleInfo]bool) // modules actively being checked

	sorted := make([]*moduleInfo, 0, len(c.modules))

	var check func(module *moduleInfo) []*moduleInfo

	cycleError := func(cycle []*moduleInfo) {
		// We are the "start" of the cycle, so we're responsible
		// for generating the errors.  The cycle list is in
		// reverse order because all the 'check' calls append
		// their own module to the list.
		errs = append(errs, fmt.Errorf("encountered dependency cycle:"))

		// Iterate backwards through the cycle list.
		curModule := cycle[0]
		for i := len(cycle) - 1; i >= 0; i-- {
			nextModule := cycle[i]
			errs = append(errs, fmt.Errorf("    %q depends on %q",
				curModule.name,
				nextModule.name))
			curModule = nextModule
		}
	}

	check = func(module *moduleInfo) []*moduleInfo {
		visited[module] = true
		checking[module] = true
		defer delete(checking, module)

		module.reverseDeps = []*moduleInfo{}
		module.forwardDeps = []*moduleInfo{}

		deps := make(map[*moduleInfo]bool)

		for _, dep := range module.directDeps {
			if deps[dep] {
				continue
			}
			deps[dep] = true

			if checking[dep] {
				// This is a cycle.
				return []*moduleInfo{dep, module}
			}

			if !visited[dep] {
				cycle := check(dep)
				if cycle != nil {
					if cycle[0] == module {
						// We are the "start" of the cycle, so we're responsible
						// for generating the errors.  The cycle list is in
						// reverse order because all the 'check' calls append
						// their own module to the list.
						cycleError(cycle)

						// We can continue processing this module's children to
						// find more cycles.  Since all the modules that were
						// part of the found cycle were marked as visited we
						// won't run into that cycle again.
					} else {
						// We're not the "start" of the cycle, so we just append
						// our module to the list and return it.
						return append(cycle, module)
					}
				}
			}

			module.forwardDeps = append(module.forwardDeps, dep)
			dep.reverseDeps = append(dep.reverseDeps, module)
		}

		sorted = append(sorted, module)

		return nil
	}

	for _, module := range c.sortedModules() {
		if !visited[module] {
			cycle := check(module)
			if cycle != nil {
				if cycle[len(cycle)-1] != module {
					panic("inconceivable!")
				}
				cycleError(cycle)
			}
		}
	}

	c.modulesSorted = sorted

	return
}

// PrepareBuildActions generates an internal representation of all the build
// actions that need to be performed.  This process involves invoking the
// GenerateBuildActions method on each of the registered Module objects.
//
// If the ResolveDependencies method has not already been called it is called
// automatically by this method.
//
// The config argument is made available to all of the Module objects via the
// Config method on the ModuleContext objects passed to GenerateBuildActions.
//
// Modules are visited in dependency order on a single goroutine: a module's
// GenerateBuildActions runs only after it has finished for all of the
// module's dependencies.  An error reported by one module does not prevent
// other modules from being visited; the build actions of a failed module are
// discarded, and the errors accumulated across all modules are returned once
// the pass completes.
func (c *Context) PrepareBuildActions(config interface{}) []error {
	c.buildActionsReady = false

	if !c.dependenciesReady {
		errs := c.ResolveDependencies()
		if len(errs) > 0 {
			return errs
		}
	}

	errs := c.generateModuleBuildActions(config)
	if len(errs) > 0 {
		return errs
	}

	c.buildActionsReady = true
	return nil
}

func (c *Context) generateModuleBuildActions(config interface{}) []error {
	var errs []error

	for _, module := range c.modulesSorted {
		mctx := &moduleContext{
			baseModuleContext: baseModuleContext{
				context: c,
				config:  config,
				module:  module,
			},
		}

		module.startedGenerateBuildActions = true

		func() {
			defer func() {
				if r := recover(); r != nil {
					in := fmt.Sprintf("GenerateBuildActions for %s", module)
					if err, ok := r.(panicError); ok {
						err.addIn(in)
						mctx.error(err)
					} else {
						mctx.error(newPanicErrorf(r, in))
					}
				}
			}()
			mctx.module.logicModule.GenerateBuildActions(mctx)
		}()

		module.finishedGenerateBuildActions = true

		if len(mctx.errs) > 0 {
			errs = append(errs, mctx.errs...)
			if len(errs) > maxErrors {
				break
			}
			continue
		}

		module.actionDefs = mctx.actionDefs
		module.outputGroups = mctx.outputGroups
	}

	return errs
}

// ModuleByName returns the module registered under the given name, or nil if
// there is none.
func (c *Context) ModuleByName(name string) Module {
	if info, ok := c.modulesByName[name]; ok {
		return info.logicModule
	}
	return nil
}

func (c *Context) ModuleName(logicModule Module) string {
	module := c.moduleInfo[logicModule]
	return module.name
}

func (c *Context) ModulePkg(logicModule Module) string {
	module := c.moduleInfo[logicModule]
	return module.pkg
}

// ModuleOutputGroups returns the named output groups registered by a module
// during its GenerateBuildActions.  It returns ErrBuildActionsNotReady if
// PrepareBuildActions has not completed successfully.
func (c *Context) ModuleOutputGroups(logicModule Module) (map[string][]Artifact, error) {
	if !c.buildActionsReady {
		return nil, ErrBuildActionsNotReady
	}

	module := c.moduleInfo[logicModule]

	groups := make(map[string][]Artifact, len(module.outputGroups))
	for name, artifacts := range module.outputGroups {
		groups[name] = append([]Artifact(nil), artifacts...)
	}

	return groups, nil
}

// VisitAllModules calls visit on every registered module, ordered by module
// name.
func (c *Context) VisitAllModules(visit func(Module)) {
	var module *moduleInfo

	defer func() {
		if r := recover(); r != nil {
			panic(newPanicErrorf(r, "VisitAllModules(%s) for %s",
				funcName(visit), module))
		}
	}()

	for _, module = range c.sortedModules() {
		visit(module.logicModule)
	}
}

func (c *Context) visitDirectDeps(topModule *moduleInfo, visit func(Module)) {
	var visiting *moduleInfo

	defer func() {
		if r := recover(); r != nil {
			panic(newPanicErrorf(r, "VisitDirectDeps(%s, %s) for dependency %s",
				topModule, funcName(visit), visiting))
		}
	}()

	for _, dep := range topModule.directDeps {
		visiting = dep
		visit(dep.logicModule)
	}
}

func (c *Context) visitDirectDepsIf(topModule *moduleInfo, pred func(Module) bool,
	visit func(Module)) {

	var visiting *moduleInfo

	defer func() {
		if r := recover(); r != nil {
			panic(newPanicErrorf(r, "VisitDirectDepsIf(%s, %s, %s) for dependency %s",
				topModule, funcName(pred), funcName(visit), visiting))
		}
	}()

	for _, dep := range topModule.directDeps {
		visiting = dep
		if pred(dep.logicModule) {
			visit(dep.logicModule)
		}
	}
}

func (c *Context) visitDepsDepthFirst(topModule *moduleInfo, visit func(Module)) {
	visited := make(map[*moduleInfo]bool)
	var visiting *moduleInfo

	defer func() {
		if r := recover(); r != nil {
			panic(newPanicErrorf(r, "VisitDepsDepthFirst(%s, %s) for dependency %s",
				topModule, funcName(visit), visiting))
		}
	}()

	var walk func(module *moduleInfo)
	walk = func(module *moduleInfo) {
		for _, dep := range module.directDeps {
			if !visited[dep] {
				visited[dep] = true
				walk(dep)
				visiting = dep
				visit(dep.logicModule)
			}
		}
	}

	walk(topModule)
}

// WriteBuildFile writes the build manifest for all the registered modules to
// w.  PrepareBuildActions must have completed successfully before calling
// WriteBuildFile; otherwise it returns ErrBuildActionsNotReady.
//
// The manifest is deterministic: rules appear sorted by name, followed by the
// actions of each module, with modules sorted by name.
func (c *Context) WriteBuildFile(w io.Writer) error {
	if !c.buildActionsReady {
		return ErrBuildActionsNotReady
	}

	nw := newNinjaWriter(newStringWriter(w))

	err := c.writeBuildFileHeader(nw)
	if err != nil {
		return err
	}

	err = c.writeNinjaRequiredVersion(nw)
	if err != nil {
		return err
	}

	err = c.writeAllRules(nw)
	if err != nil {
		return err
	}

	err = c.writeAllModuleActions(nw)
	if err != nil {
		return err
	}

	return nil
}

func (c *Context) writeBuildFileHeader(nw *ninjaWriter) error {
	err := nw.Comment(fileHeader)
	if err != nil {
		return err
	}

	return nw.BlankLine()
}

func (c *Context) writeNinjaRequiredVersion(nw *ninjaWriter) error {
	value := fmt.Sprintf("%d.%d.%d", c.requiredNinjaMajor, c.requiredNinjaMinor,
		c.requiredNinjaMicro)

	err := nw.Assign("ninja_required_version", value)
	if err != nil {
		return err
	}

	return nw.BlankLine()
}

// writeAllRules writes one rule definition per action mnemonic in use,
// sorted by rule name.  Two actions sharing a mnemonic must agree on whether
// they use a response file; it is a programming error if they do not.
func (c *Context) writeAllRules(nw *ninjaWriter) error {
	rules := make(map[string]*ruleDef)
	var names []string

	for _, module := range c.modulesSorted {
		for _, def := range module.actionDefs.defs {
			name, rule := def.rule()
			if rule == nil {
				continue
			}

			if existing, present := rules[name]; present {
				if existing.hasRspfile != rule.hasRspfile {
					panic(fmt.Sprintf("rule %s is used both with and without a response file",
						name))
				}
				continue
			}

			rules[name] = rule
			names = append(names, name)
		}
	}

	sort.Strings(names)

	for _, name := range names {
		err := rules[name].WriteTo(nw, name)
		if err != nil {
			return err
		}

		err = nw.BlankLine()
		if err != nil {
			return err
		}
	}

	return nil
}

func (c *Context) writeAllModuleActions(nw *ninjaWriter) error {
	headerTemplate := template.New("moduleHeader")
	_, err := headerTemplate.Parse(moduleHeaderTemplate)
	if err != nil {
		// This is a programming error.
		panic(err)
	}

	buf := bytes.NewBuffer(nil)

	for _, module := range c.sortedModules() {
		if len(module.actionDefs.defs) == 0 {
			continue
		}

		buf.Reset()

		infoMap := map[string]interface{}{
			"name": module.name,
			"pkg":  module.pkg,
			"type": fmt.Sprintf("%T", module.logicModule),
		}
		err = headerTemplate.Execute(buf, infoMap)
		if err != nil {
			return err
		}

		err = nw.Comment(buf.String())
		if err != nil {
			return err
		}

		err = nw.BlankLine()
		if err != nil {
			return err
		}

		err = c.writeLocalBuildActions(nw, &module.actionDefs)
		if err != nil {
			return err
		}

		err = nw.BlankLine()
		if err != nil {
			return err
		}
	}

	return nil
}

func (c *Context) writeLocalBuildActions(nw *ninjaWriter,
	defs *localBuildActions) error {

	for _, def := range defs.defs {
		err := def.writeTo(nw)
		if err != nil {
			return err
		}
	}

	return nil
}

// newStringWriter adapts w to the io.StringWriter the manifest writer needs,
// avoiding a copy when w already implements it.
func newStringWriter(w io.Writer) io.StringWriter {
	if sw, ok := w.(io.StringWriter); ok {
		return sw
	}
	return &stringWriterAdaptor{w}
}

type stringWriterAdaptor struct {
	w io.Writer
}

func (a *stringWriterAdaptor) WriteString(s string) (n int, err error) {
	return a.w.Write([]byte(s))
}

type panicError struct {
	panic interface{}
	stack []byte
	in    string
}

func newPanicErrorf(panic interface{}, in string, a ...interface{}) error {
	buf := make([]byte, 4096)
	count := runtime.Stack(buf, false)
	return panicError{
		panic: panic,
		in:    fmt.Sprintf(in, a...),
		stack: buf[:count],
	}
}

func (p panicError) Error() string {
	return fmt.Sprintf("panic in %s\n%s\n%s\n", p.in, p.panic, p.stack)
}

func (p *panicError) addIn(in string) {
	p.in += " in " + in
}

func funcName(f interface{}) string {
	return runtime.FuncForPC(reflect.ValueOf(f).Pointer()).Name()
}

var fileHeader = `******************************************************************************
***            This file is generated and should not be edited             ***
******************************************************************************
`

var moduleHeaderTemplate = `# # # # # # # # # # # # # # # # # # # # # # # # # # # # # # # # # # # # # # #
Module:  {{.name}}
Package: {{.pkg}}
Type:    {{.type}}
`
