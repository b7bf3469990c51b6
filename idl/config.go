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
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults for Config fields left at their zero value.
const (
	defaultTool          = "tools/aidl"
	defaultPackager      = "tools/idlclass"
	defaultFrameworkIdl  = "tools/framework.aidl"
	defaultGenRoot       = "gen"
	defaultBinRoot       = "bin"
	defaultMiddlemanRoot = "internal"
)

var defaultJavaRoots = []string{"java", "javatests"}

// A Config holds the toolchain half of the inputs to IDL processing: where
// the external tools live, which artifact roots derived files are placed
// under, and which directory names delimit a source tree root.  Module
// declarations are the other half (Description).
//
// The same Config value is shared by every module in a build, so the root
// classifier memo it carries is warm across modules.
type Config struct {
	// Tool is the IDL compiler executable, used for both the preprocess and
	// the generate actions.
	Tool string `yaml:"tool"`

	// Packager is the archive packaging executable.
	Packager string `yaml:"packager"`

	// FrameworkIdl is the platform framework import passed to every
	// generate action.
	FrameworkIdl string `yaml:"framework_idl"`

	// GenRoot is the artifact root for generated sources and preprocessed
	// files.
	GenRoot string `yaml:"gen_root"`

	// BinRoot is the artifact root for packaged archives and scratch
	// directories.
	BinRoot string `yaml:"bin_root"`

	// MiddlemanRoot is the artifact root for aggregation points.
	MiddlemanRoot string `yaml:"middleman_root"`

	// JavaRoots is the list of directory names that end a source root
	// prefix when classifying import files.
	JavaRoots []string `yaml:"java_roots"`

	classifier *rootClassifier
}

// DefaultConfig returns a Config with every field set to its default.
func DefaultConfig() *Config {
	c := &Config{}
	c.setDefaults()
	return c
}

// LoadConfig reads a YAML toolchain configuration from path.  Fields absent
// from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	c, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return c, nil
}

// ParseConfig decodes a YAML toolchain configuration.
func ParseConfig(data []byte) (*Config, error) {
	c := &Config{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, err
	}
	c.setDefaults()
	return c, nil
}

func (c *Config) setDefaults() {
	if c.Tool == "" {
		c.Tool = defaultTool
	}
	if c.Packager == "" {
		c.Packager = defaultPackager
	}
	if c.FrameworkIdl == "" {
		c.FrameworkIdl = defaultFrameworkIdl
	}
	if c.GenRoot == "" {
		c.GenRoot = defaultGenRoot
	}
	if c.BinRoot == "" {
		c.BinRoot = defaultBinRoot
	}
	if c.MiddlemanRoot == "" {
		c.MiddlemanRoot = defaultMiddlemanRoot
	}
	if len(c.JavaRoots) == 0 {
		c.JavaRoots = defaultJavaRoots
	}
}

// rootClassifier returns the classifier for this Config's marker names,
// creating it on first use.  Analysis is single-threaded, so lazy creation
// needs no locking.
func (c *Config) rootClassifier() *rootClassifier {
	if c.classifier == nil {
		c.classifier = newRootClassifier(c.JavaRoots)
	}
	return c.classifier
}
