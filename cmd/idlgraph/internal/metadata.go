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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/paniag/bazel"
	"github.com/paniag/bazel/idl"
)

var (
	metadataConfig   string
	metadataManifest string
	metadataModule   string
)

var metadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Print a module's transitive IDL metadata as JSON",
	Long: `Metadata runs the same analysis as generate, then prints the named
module's exported metadata record to stdout.`,
	RunE: runMetadata,
}

func init() {
	metadataCmd.Flags().StringVar(&metadataConfig, "config", "", "Toolchain configuration YAML")
	metadataCmd.Flags().StringVar(&metadataManifest, "manifest", "", "Module graph description JSON")
	metadataCmd.Flags().StringVarP(&metadataModule, "module", "m", "", "Module to query")
	rootCmd.AddCommand(metadataCmd)
}

// A metadataRecord is the JSON rendering of a module's exported metadata:
// the transitive sets it passes to dependents plus its own generated
// sources.
type metadataRecord struct {
	Module   string   `json:"module"`
	Roots    []string `json:"import_roots"`
	Imports  []string `json:"imports"`
	Archives []string `json:"archives"`
	Outputs  []string `json:"outputs"`
}

func runMetadata(cmd *cobra.Command, args []string) error {
	if metadataManifest == "" {
		return fmt.Errorf("--manifest is required")
	}
	if metadataModule == "" {
		return fmt.Errorf("--module is required")
	}

	ctx, libs, err := analyzeGraph(cmd.ErrOrStderr(), metadataConfig, metadataManifest)
	if err != nil {
		return err
	}

	var lib *idl.Library
	for _, l := range libs {
		if l.Name() == metadataModule {
			lib = l
			break
		}
	}
	if lib == nil {
		return fmt.Errorf("module %q not found in graph", metadataModule)
	}

	info, ok := bazel.ModuleProvider(ctx, lib, idl.InfoProvider)
	if !ok {
		return fmt.Errorf("module %q exported no IDL metadata", metadataModule)
	}

	record := metadataRecord{
		Module:   lib.Name(),
		Roots:    info.Roots.ToList(),
		Imports:  bazel.ExecPaths(info.Imports.ToList()),
		Archives: bazel.ExecPaths(info.Jars.ToList()),
		Outputs:  bazel.ExecPaths(lib.Helper().GeneratedSources()),
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(record)
}
