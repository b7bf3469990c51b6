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

import (
	"fmt"
	"regexp"
	"runtime"
	"strings"
)

// This file implements providers, modelled after Bazel
// (https://docs.bazel.build/versions/master/skylark/rules.html#providers).
// The value of a provider for a module can only be set during
// GenerateBuildActions for the module, and can only be retrieved after
// GenerateBuildActions for the module has finished.
//
// Providers are globally registered during init() and given a unique ID.  The
// value of a provider for a module is stored in an []interface{} indexed by
// the ID.  If the value of a provider has not been set, the value in the
// []interface{} will be nil.
//
// Values passed to providers should be treated as immutable by callers to
// both the getters and setters.  Go doesn't provide any way to enforce
// immutability on arbitrary types, so modules that need to mutate a value
// read through a provider must copy it first.

type providerKey struct {
	id   int
	typ  string
	zero interface{}
}

func (p *providerKey) provider() *providerKey { return p }

// AnyProviderKey is implemented by every ProviderKey regardless of its type
// parameter, for callers that handle providers generically.
type AnyProviderKey interface {
	provider() *providerKey
}

// A ProviderKey is the handle used to set and retrieve values of type K on
// modules.  Create one with NewProvider from an init function or package
// variable initialization.
type ProviderKey[K any] struct {
	*providerKey
}

var _ AnyProviderKey = ProviderKey[bool]{}

var providerRegistry []*providerKey

// NewProvider returns a ProviderKey for the given type.
//
// The returned ProviderKey can be used to set a value of the ProviderKey's
// type for a module inside GenerateBuildActions for the module, and to get
// the value from GenerateBuildActions from any module later in the build
// graph.
//
// NewProvider panics if not called from a Go package's init function or
// global variable initialization.
func NewProvider[K any]() ProviderKey[K] {
	checkCalledFromInit()

	var zero K

	provider := &providerKey{
		id:   len(providerRegistry),
		typ:  fmt.Sprintf("%T", zero),
		zero: zero,
	}

	providerRegistry = append(providerRegistry, provider)

	return ProviderKey[K]{provider}
}

// SetProvider sets the value of the given provider for the current module.
// It panics if the value for the provider has already been set, or if called
// outside GenerateBuildActions for the module.
func SetProvider[K any](ctx ModuleContext, provider ProviderKey[K], value K) {
	ctx.setProvider(provider.providerKey, value)
}

// OtherModuleProvider reads the value of the given provider from another
// module.  If the provider has been set the value is returned and the boolean
// is true.  If it has not been set the zero value of the provider's type is
// returned and the boolean is false.
//
// The module must be one that has already finished GenerateBuildActions,
// normally a dependency of the current module.
func OtherModuleProvider[K any](ctx ModuleContext, module Module,
	provider ProviderKey[K]) (K, bool) {

	value, ok := ctx.otherModuleProvider(module, provider.providerKey)
	if !ok {
		var zero K
		return zero, false
	}
	return value.(K), true
}

// ModuleProvider reads the value of the given provider from a module after
// the Context's generate phase has finished.  If the provider has been set
// the value is returned and the boolean is true.  If it has not been set the
// zero value of the provider's type is returned and the boolean is false.
func ModuleProvider[K any](ctx *Context, module Module,
	provider ProviderKey[K]) (K, bool) {

	value, ok := ctx.moduleProvider(module, provider.providerKey)
	if !ok {
		var zero K
		return zero, false
	}
	return value.(K), true
}

// setProvider sets the value for a provider on a moduleInfo.  Verifies that
// it is called during GenerateBuildActions for the module.  The value should
// not be modified after being passed to setProvider.
func (c *Context) setProvider(m *moduleInfo, provider *providerKey, value interface{}) {
	if !m.startedGenerateBuildActions {
		panic(fmt.Sprintf("Can't set value of provider %s before GenerateBuildActions started",
			provider.typ))
	} else if m.finishedGenerateBuildActions {
		panic(fmt.Sprintf("Can't set value of provider %s after GenerateBuildActions finished",
			provider.typ))
	}

	if m.providers == nil {
		m.providers = make([]interface{}, len(providerRegistry))
	}

	if m.providers[provider.id] != nil {
		panic(fmt.Sprintf("Value of provider %s is already set", provider.typ))
	}

	m.providers[provider.id] = value
}

// provider returns the value, if any, for a given provider for a module.
// Verifies that it is called after GenerateBuildActions for the module has
// finished.
func (c *Context) provider(m *moduleInfo, provider *providerKey) (interface{}, bool) {
	if !m.finishedGenerateBuildActions {
		panic(fmt.Sprintf("Can't get value of provider %s before GenerateBuildActions finished",
			provider.typ))
	}

	if len(m.providers) > provider.id {
		if p := m.providers[provider.id]; p != nil {
			return p, true
		}
	}

	return provider.zero, false
}

func (c *Context) moduleProvider(logicModule Module, provider *providerKey) (interface{}, bool) {
	module := c.moduleInfo[logicModule]
	if module == nil {
		panic(fmt.Sprintf("module %v is not registered with this context", logicModule))
	}
	return c.provider(module, provider)
}

// checkCalledFromInit panics if a Go package's init function is not on the
// call stack.
func checkCalledFromInit() {
	for skip := 3; ; skip++ {
		_, funcName, ok := callerName(skip)
		if !ok {
			panic("not called from an init func")
		}

		if funcName == "init" || strings.HasPrefix(funcName, "init·") ||
			funcName == "init.ializers" || strings.HasPrefix(funcName, "init.") {
			return
		}
	}
}

// A regex to find a package path within a function name. It finds the shortest string that is
// followed by '.' and doesn't have any '/'s left.
var pkgPathRe = regexp.MustCompile(`^(.*?)\.([^/]+)$`)

// callerName returns the package path and function name of the calling
// function.  The skip argument has the same meaning as the skip argument of
// runtime.Callers.
func callerName(skip int) (pkgPath, funcName string, ok bool) {
	var pc [1]uintptr
	n := runtime.Callers(skip+1, pc[:])
	if n != 1 {
		return "", "", false
	}
	frames := runtime.CallersFrames(pc[:])
	frame, _ := frames.Next()
	f := frame.Function
	s := pkgPathRe.FindStringSubmatch(f)
	if len(s) < 3 {
		panic(fmt.Errorf("failed to extract package path and function name from %q", f))
	}

	return s[1], s[2], true
}
