// Copyright 2016 Google Inc. All rights reserved.
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

// Package proptools escapes property values for the contexts they are
// written into: ninja manifests and the shell commands embedded in them.
package proptools

import "strings"

// NinjaEscape takes a string that may contain characters that are meaningful
// to ninja ($), and escapes it so that ninja will pass it through unchanged.
// It is not necessary on input, output, or dependency names, those are
// handled when a build statement is written.  It is required on command
// arguments and descriptions carried in action parameters.
func NinjaEscape(s string) string {
	return ninjaEscaper.Replace(s)
}

// NinjaEscapeList applies NinjaEscape to each element of slice, returning a
// new slice.
func NinjaEscapeList(slice []string) []string {
	slice = append([]string(nil), slice...)
	for i, s := range slice {
		slice[i] = NinjaEscape(s)
	}
	return slice
}

var ninjaEscaper = strings.NewReplacer(
	"$", "$$")

// ShellEscape takes a string that may contain characters that are meaningful
// to bash and escapes it if necessary by wrapping it in single quotes, and
// replacing internal single quotes with '\'' (one single quote to end the
// quoting, a shell-escaped single quote to insert a real single quote, and
// then a single quote to restart quoting).
func ShellEscape(s string) string {
	if strings.IndexFunc(s, shellUnsafeChar) == -1 {
		// No escaping necessary
		return s
	}

	return `'` + singleQuoteReplacer.Replace(s) + `'`
}

// ShellEscapeList applies ShellEscape to each element of slice, returning a
// new slice.
func ShellEscapeList(slice []string) []string {
	slice = append([]string(nil), slice...)
	for i, s := range slice {
		slice[i] = ShellEscape(s)
	}
	return slice
}

func shellUnsafeChar(r rune) bool {
	switch {
	case 'A' <= r && r <= 'Z',
		'a' <= r && r <= 'z',
		'0' <= r && r <= '9',
		r == '_',
		r == '+',
		r == '-',
		r == '=',
		r == '.',
		r == ',',
		r == '/',
		r == '@':
		return false
	default:
		return true
	}
}

// NinjaAndShellEscape escapes s first for ninja and then for the shell, the
// form required for command text written into a build statement.  Ninja
// expands $$ back to $ before the shell sees the command, so the ninja
// escaping must be applied inside the shell quoting.
func NinjaAndShellEscape(s string) string {
	return ShellEscape(NinjaEscape(s))
}

// NinjaAndShellEscapeList applies NinjaAndShellEscape to each element of
// slice, returning a new slice.
func NinjaAndShellEscapeList(slice []string) []string {
	return ShellEscapeList(NinjaEscapeList(slice))
}

var singleQuoteReplacer = strings.NewReplacer(`'`, `'\''`)
