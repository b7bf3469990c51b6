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
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	generateConfig   string
	generateManifest string
	generateOutput   string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Derive build actions and write a ninja manifest",
	Long: `Generate loads the module graph, derives the IDL compilation actions for
every module, and serializes the action graph as a ninja build manifest.`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&generateConfig, "config", "", "Toolchain configuration YAML")
	generateCmd.Flags().StringVar(&generateManifest, "manifest", "", "Module graph description JSON")
	generateCmd.Flags().StringVarP(&generateOutput, "output", "o", "build.ninja", "Ninja manifest output path")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if generateManifest == "" {
		return fmt.Errorf("--manifest is required")
	}

	ctx, libs, err := analyzeGraph(cmd.ErrOrStderr(), generateConfig, generateManifest)
	if err != nil {
		return err
	}

	f, err := os.Create(generateOutput)
	if err != nil {
		return fmt.Errorf("creating manifest: %w", err)
	}
	if err := ctx.WriteBuildFile(f); err != nil {
		f.Close()
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}

	slog.Info("wrote build manifest", "path", generateOutput, "modules", len(libs))
	return nil
}
