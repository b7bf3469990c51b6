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
	"reflect"
	"testing"
)

var parseActionParamsErrorTestCases = []struct {
	name   string
	params ActionParams
	err    string
}{
	{
		name: "missing mnemonic",
		params: ActionParams{
			Command: []string{"touch", "out"},
			Outputs: []Artifact{{Root: "gen", Rel: "out"}},
		},
		err: "Mnemonic param is missing",
	},
	{
		name: "missing command",
		params: ActionParams{
			Mnemonic: "Touch",
			Outputs:  []Artifact{{Root: "gen", Rel: "out"}},
		},
		err: "encountered action params with no command specified",
	},
	{
		name: "missing outputs",
		params: ActionParams{
			Mnemonic: "Touch",
			Command:  []string{"touch", "out"},
		},
		err: "Outputs param has no elements",
	},
	{
		name: "rspfile without content",
		params: ActionParams{
			Mnemonic: "Jar",
			Command:  []string{"jar"},
			Outputs:  []Artifact{{Root: "bin", Rel: "a.jar"}},
			Rspfile:  "bin/a.jar.rsp",
		},
		err: "Rspfile and RspfileContent params must be set together",
	},
	{
		name: "content without rspfile",
		params: ActionParams{
			Mnemonic:       "Jar",
			Command:        []string{"jar"},
			Outputs:        []Artifact{{Root: "bin", Rel: "a.jar"}},
			RspfileContent: []string{"a.class"},
		},
		err: "Rspfile and RspfileContent params must be set together",
	},
}

func TestParseActionParamsErrors(t *testing.T) {
	for _, testCase := range parseActionParamsErrorTestCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := parseActionParams(&testCase.params)
			if err == nil {
				t.Fatalf("expected error %q, got none", testCase.err)
			}
			if err.Error() != testCase.err {
				t.Errorf("expected error %q, got %q", testCase.err, err)
			}
		})
	}
}

func TestParseActionParams(t *testing.T) {
	def, err := parseActionParams(&ActionParams{
		Mnemonic:    "Idl Generate",
		Comment:     "generate sources",
		Command:     []string{"tools/aidl", "-b", "arg with space", "a$b"},
		Description: "generating",
		Outputs:     []Artifact{{Root: "gen", Pkg: "java/com/app", Rel: "java/com/app/I.java"}},
		Inputs:      []Artifact{SourceArtifact("java/com/app", "java/com/app/I.aidl")},
		Implicits:   []Artifact{{Root: "", Rel: "tools/aidl"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if g, w := def.ruleName, "Idl_Generate"; g != w {
		t.Errorf("ruleName: want %q, got %q", w, g)
	}
	if g, w := def.command, "tools/aidl -b 'arg with space' 'a$$b'"; g != w {
		t.Errorf("command: want %q, got %q", w, g)
	}
	if g, w := def.outputs, []string{"gen/java/com/app/I.java"}; !reflect.DeepEqual(g, w) {
		t.Errorf("outputs: want %q, got %q", w, g)
	}
	if g, w := def.inputs, []string{"java/com/app/I.aidl"}; !reflect.DeepEqual(g, w) {
		t.Errorf("inputs: want %q, got %q", w, g)
	}
	if g, w := def.implicits, []string{"tools/aidl"}; !reflect.DeepEqual(g, w) {
		t.Errorf("implicits: want %q, got %q", w, g)
	}
	if def.rspfile != "" || def.rspfileContent != "" {
		t.Errorf("unexpected response file: %q %q", def.rspfile, def.rspfileContent)
	}
}

func TestParseMiddlemanParamsErrors(t *testing.T) {
	_, err := parseMiddlemanParams(&MiddlemanParams{
		Inputs: []Artifact{{Root: "gen", Rel: "a"}},
	})
	if err == nil || err.Error() != "encountered middleman params with no output specified" {
		t.Errorf("missing output: unexpected error %v", err)
	}

	_, err = parseMiddlemanParams(&MiddlemanParams{
		Output: Artifact{Root: "gen", Rel: "mid"},
	})
	if err == nil || err.Error() != "Inputs param has no elements" {
		t.Errorf("missing inputs: unexpected error %v", err)
	}
}

func TestActionDefWriteTo(t *testing.T) {
	def, err := parseActionParams(&ActionParams{
		Mnemonic:    "Copy",
		Command:     []string{"cp", "in dir/a", "out dir/a"},
		Description: "copying",
		Outputs:     []Artifact{{Root: "out dir", Rel: "a"}},
		Inputs:      []Artifact{{Root: "in dir", Rel: "a"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	buf := bytes.NewBuffer(nil)
	if err := def.writeTo(newNinjaWriter(buf)); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	expected := "build out$ dir/a: Copy in$ dir/a\n" +
		"    command = cp 'in dir/a' 'out dir/a'\n" +
		"    description = copying\n" +
		"\n"
	if buf.String() != expected {
		t.Errorf("incorrect output:\nexpected:\n%s\ngot:\n%s", expected, buf.String())
	}
}

func TestMiddlemanDefWriteTo(t *testing.T) {
	def, err := parseMiddlemanParams(&MiddlemanParams{
		Comment: "aggregate jars",
		Output:  Artifact{Root: "bin", Pkg: "app", Rel: "app/libs.mid"},
		Inputs: []Artifact{
			{Root: "bin", Pkg: "app", Rel: "app/a.jar"},
			{Root: "bin", Pkg: "lib", Rel: "lib/b.jar"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	buf := bytes.NewBuffer(nil)
	if err := def.writeTo(newNinjaWriter(buf)); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	expected := "# aggregate jars\n" +
		"build bin/app/libs.mid: phony bin/app/a.jar bin/lib/b.jar\n" +
		"\n"
	if buf.String() != expected {
		t.Errorf("incorrect output:\nexpected:\n%s\ngot:\n%s", expected, buf.String())
	}
}

func TestRuleDefWriteTo(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	rule := &ruleDef{hasRspfile: true}
	if err := rule.WriteTo(newNinjaWriter(buf), "Jar"); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	expected := "rule Jar\n" +
		"    command = ${command}\n" +
		"    description = ${description}\n" +
		"    rspfile = ${rspfile}\n" +
		"    rspfile_content = ${rspfile_content}\n"
	if buf.String() != expected {
		t.Errorf("incorrect output:\nexpected:\n%s\ngot:\n%s", expected, buf.String())
	}
}

func TestToNinjaName(t *testing.T) {
	testCases := []struct {
		in, out string
	}{
		{"Compile", "Compile"},
		{"IdlGenerate", "IdlGenerate"},
		{"a b/c:d", "a_b_c_d"},
		{"x-y.z_0", "x-y.z_0"},
	}
	for _, testCase := range testCases {
		if g := toNinjaName(testCase.in); g != testCase.out {
			t.Errorf("toNinjaName(%q): want %q, got %q", testCase.in, testCase.out, g)
		}
	}
}
