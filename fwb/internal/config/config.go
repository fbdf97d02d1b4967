// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config holds the project configuration of fwb. It is read from
// fwbuild.yaml, then overridden by the FWB_* environment variables and
// finally by the command line flags.
package config

import (
	"io/fs"
	"os"
	"runtime"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/embeddedgo/fwbuild/fwb/internal/flash"
	"github.com/embeddedgo/fwbuild/fwb/internal/toolchain"
)

// DefaultFile is the project file looked up in the current directory.
const DefaultFile = "fwbuild.yaml"

type Toolchain struct {
	Prefix  string `yaml:"prefix"`
	CC      string `yaml:"cc"`
	CXX     string `yaml:"cxx"`
	Objdump string `yaml:"objdump"`
	GDB     string `yaml:"gdb"`
}

// Tools returns the command names of the toolchain.
func (t Toolchain) Tools() toolchain.Toolchain {
	return toolchain.New(t.Prefix, toolchain.Toolchain{
		CC: t.CC, CXX: t.CXX, Objdump: t.Objdump, GDB: t.GDB,
	})
}

type Flash struct {
	Tool  string   `yaml:"tool"`
	Flags []string `yaml:"flags"`
}

type Debug struct {
	Server   []string `yaml:"server"`   // debug server command line
	Endpoint string   `yaml:"endpoint"` // where gdb connects to
}

type Config struct {
	Part     string `yaml:"part"`
	Platform string `yaml:"platform"` // host platform for SDK selection
	Root     string `yaml:"root"`     // source tree
	OutDir   string `yaml:"out"`
	Name     string `yaml:"name"` // image name, the root directory name if empty
	Workers  int    `yaml:"workers"`
	Verbose  bool   `yaml:"verbose"`

	Exclude  []string `yaml:"exclude"` // doublestar patterns relative to Root
	Includes []string `yaml:"includes"`
	Defines  []string `yaml:"defines"`
	CFlags   []string `yaml:"cflags"`
	CXXFlags []string `yaml:"cxxflags"`
	ASFlags  []string `yaml:"asflags"`
	LDFlags  []string `yaml:"ldflags"`
	Embed    []string `yaml:"embed"` // FILE:ADDR binaries added to the flash image

	Parts   string `yaml:"parts"`   // extra part table tried before the built-in one
	SDKRoot string `yaml:"sdkRoot"` // overrides the part table

	Toolchain Toolchain `yaml:"toolchain"`
	Flash     Flash     `yaml:"flash"`
	Debug     Debug     `yaml:"debug"`
}

// Default returns the configuration used when no project file exists.
func Default() *Config {
	return &Config{
		Root:      ".",
		OutDir:    "build",
		Workers:   runtime.NumCPU(),
		Toolchain: Toolchain{Prefix: toolchain.DefaultPrefix},
		Flash:     Flash{Tool: flash.DefaultTool},
		Debug: Debug{
			Server:   []string{"openocd", "-f", "board/ek-tm4c123gxl.cfg"},
			Endpoint: flash.DefaultEndpoint,
		},
	}
}

// Parse decodes a project file over the defaults.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	return c, c.Check()
}

// Load reads the project file. If path is empty DefaultFile is used and
// may be missing.
func Load(path string) (*Config, error) {
	name := path
	if name == "" {
		name = DefaultFile
	}
	data, err := os.ReadFile(name)
	if err != nil {
		if path == "" && errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	c, err := Parse(data)
	if err != nil {
		return nil, errors.Wrap(err, name)
	}
	return c, nil
}

// ApplyEnv overrides c with the FWB_* variables returned by getenv. A nil
// getenv means os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Part, "FWB_PART")
	set(&c.Platform, "FWB_PLATFORM")
	set(&c.Toolchain.Prefix, "FWB_TOOLCHAIN_PREFIX")
	set(&c.SDKRoot, "FWB_SDK_ROOT")
	if v := getenv("FWB_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, "FWB_WORKERS")
		}
		c.Workers = n
	}
	return c.Check()
}

// Check reports values that no component can work with.
func (c *Config) Check() error {
	switch {
	case c.Workers < 0:
		return errors.Errorf("workers: %d is negative", c.Workers)
	case c.Root == "":
		return errors.New("root: empty")
	case c.OutDir == "":
		return errors.New("out: empty")
	}
	return nil
}
