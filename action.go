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
	"errors"
	"strings"

	"github.com/paniag/bazel/proptools"
)

// An ActionParams object contains the set of parameters that make up a
// single build action.  Actions are connected into a graph implicitly
// through shared artifacts: an artifact that appears in one action's Outputs
// and another action's Inputs or Implicits forms an edge between them.
type ActionParams struct {
	// Mnemonic is a short category tag for the action, used for progress
	// reporting and as the name of the rule the action is written under.
	// Actions sharing a Mnemonic must agree on whether they use a response
	// file.
	Mnemonic string

	// Comment appears above the action in the written manifest.
	Comment string

	// Command is the fully resolved argument vector to execute.  No shell
	// expansion is performed; each element is escaped when the action is
	// serialized.
	Command []string

	// Description is the human-readable label printed when the action runs.
	Description string

	// Outputs is the list of artifacts the command writes.
	Outputs []Artifact

	// Inputs is the list of artifacts the command reads that are named on
	// its command line.
	Inputs []Artifact

	// Implicits is the list of artifacts the command reads that are not
	// named on its command line (tools, aggregated dependencies, files
	// referenced through a response file).
	Implicits []Artifact

	// Rspfile is the path of a response file to create just before running
	// the command, or empty for none.  RspfileContent is the argument list
	// written into it; each element is escaped when the action is
	// serialized.  Both must be set together.
	Rspfile        string
	RspfileContent []string
}

// A MiddlemanParams object describes a synthetic aggregating artifact: an
// artifact with no command and no content of its own whose only purpose is
// to let one downstream action depend on all of Inputs through a single
// edge.  It serializes as a ninja phony edge.
type MiddlemanParams struct {
	// Comment appears above the edge in the written manifest.
	Comment string

	// Output is the synthetic artifact.  Nothing writes it; other actions
	// may list it as an input.
	Output Artifact

	// Inputs is the list of artifacts the middleman stands for.
	Inputs []Artifact
}

// A ruleDef describes a rule definition shared by every action with the same
// mnemonic.  The rule body only forwards per-build variables, so two actions
// with the same mnemonic may carry entirely different commands; the rule
// exists to give the manifest ninja's usual rule/build shape and to carry
// the response-file declaration.
type ruleDef struct {
	hasRspfile bool
}

func (r *ruleDef) WriteTo(nw *ninjaWriter, name string) error {
	err := nw.Rule(name)
	if err != nil {
		return err
	}

	err = nw.ScopedAssign("command", "${command}")
	if err != nil {
		return err
	}

	err = nw.ScopedAssign("description", "${description}")
	if err != nil {
		return err
	}

	if r.hasRspfile {
		err = nw.ScopedAssign("rspfile", "${rspfile}")
		if err != nil {
			return err
		}

		err = nw.ScopedAssign("rspfile_content", "${rspfile_content}")
		if err != nil {
			return err
		}
	}

	return nil
}

// A buildStatement is one recorded entry in a module's action list, either
// an actionDef or a middlemanDef.
type buildStatement interface {
	// writeTo serializes the statement to the manifest.
	writeTo(nw *ninjaWriter) error

	// rule returns the rule name the statement is written under and the
	// definition it requires, or "" and nil for builtin rules.
	rule() (string, *ruleDef)
}

// An actionDef describes a parsed build action.  All artifact references
// have been flattened to exec paths and the command has been escaped into
// its serialized form.
type actionDef struct {
	comment        string
	ruleName       string
	command        string
	description    string
	outputs        []string
	inputs         []string
	implicits      []string
	rspfile        string
	rspfileContent string
}

func parseActionParams(params *ActionParams) (*actionDef, error) {
	if params.Mnemonic == "" {
		return nil, errors.New("Mnemonic param is missing")
	}

	if len(params.Command) == 0 {
		return nil, errors.New("encountered action params with no command specified")
	}

	if len(params.Outputs) == 0 {
		return nil, errors.New("Outputs param has no elements")
	}

	if (params.Rspfile == "") != (len(params.RspfileContent) == 0) {
		return nil, errors.New("Rspfile and RspfileContent params must be set together")
	}

	a := &actionDef{
		comment:     params.Comment,
		ruleName:    toNinjaName(params.Mnemonic),
		command:     strings.Join(proptools.NinjaAndShellEscapeList(params.Command), " "),
		description: proptools.NinjaEscape(params.Description),
		outputs:     ExecPaths(params.Outputs),
		inputs:      ExecPaths(params.Inputs),
		implicits:   ExecPaths(params.Implicits),
	}

	if params.Rspfile != "" {
		a.rspfile = proptools.NinjaEscape(params.Rspfile)
		a.rspfileContent = strings.Join(proptools.NinjaAndShellEscapeList(params.RspfileContent), " ")
	}

	return a, nil
}

func (a *actionDef) rule() (string, *ruleDef) {
	return a.ruleName, &ruleDef{hasRspfile: a.rspfile != ""}
}

func (a *actionDef) writeTo(nw *ninjaWriter) error {
	err := nw.Build(a.comment, a.ruleName,
		escapePaths(a.outputs, outputEscaper),
		escapePaths(a.inputs, inputEscaper),
		escapePaths(a.implicits, inputEscaper))
	if err != nil {
		return err
	}

	err = nw.ScopedAssign("command", a.command)
	if err != nil {
		return err
	}

	if a.description != "" {
		err = nw.ScopedAssign("description", a.description)
		if err != nil {
			return err
		}
	}

	if a.rspfile != "" {
		err = nw.ScopedAssign("rspfile", a.rspfile)
		if err != nil {
			return err
		}

		err = nw.ScopedAssign("rspfile_content", a.rspfileContent)
		if err != nil {
			return err
		}
	}

	return nw.BlankLine()
}

// A middlemanDef describes a parsed aggregation point.  It is written as a
// phony edge, ninja's native fan-in device.
type middlemanDef struct {
	comment string
	output  string
	inputs  []string
}

func parseMiddlemanParams(params *MiddlemanParams) (*middlemanDef, error) {
	if params.Output == (Artifact{}) {
		return nil, errors.New("encountered middleman params with no output specified")
	}

	if len(params.Inputs) == 0 {
		return nil, errors.New("Inputs param has no elements")
	}

	return &middlemanDef{
		comment: params.Comment,
		output:  params.Output.ExecPath(),
		inputs:  ExecPaths(params.Inputs),
	}, nil
}

func (m *middlemanDef) rule() (string, *ruleDef) {
	return "", nil
}

func (m *middlemanDef) writeTo(nw *ninjaWriter) error {
	err := nw.Build(m.comment, "phony",
		escapePaths([]string{m.output}, outputEscaper),
		escapePaths(m.inputs, inputEscaper), nil)
	if err != nil {
		return err
	}

	return nw.BlankLine()
}

// localBuildActions tracks the statements recorded by one module, in
// registration order.
type localBuildActions struct {
	defs []buildStatement
}

func escapePaths(paths []string, escaper *strings.Replacer) []string {
	result := make([]string, len(paths))
	for i, path := range paths {
		result[i] = escaper.Replace(path)
	}
	return result
}

var (
	inputEscaper = strings.NewReplacer(
		" ", "$ ",
		"$", "$$")
	outputEscaper = strings.NewReplacer(
		" ", "$ ",
		":", "$:",
		"$", "$$")
)
