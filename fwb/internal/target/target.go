// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package target maps a part identifier to the toolchain and driver library
// configuration of the microcontroller.
package target

import (
	_ "embed"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed parts.yaml
var rawParts []byte

// DefaultPlatform is used when the SDK has no root for the host platform.
const DefaultPlatform = "linux"

// Memory is an address range of the on-chip memory.
type Memory struct {
	Origin uint64 `yaml:"origin"`
	Length uint64 `yaml:"length"`
}

// Family is one entry of the part table.
type Family struct {
	Pattern       string   `yaml:"pattern"`
	CPU           string   `yaml:"cpu"`
	FPU           []string `yaml:"fpu"`
	SDK           string   `yaml:"sdk"`
	DriverLib     string   `yaml:"driverlib"`
	DriverLibPath string   `yaml:"driverlibPath"`
	Defines       []string `yaml:"defines"`
	Flash         Memory   `yaml:"flash"`
	RAM           Memory   `yaml:"ram"`
}

// Table is an ordered list of part families and the SDK roots they refer
// to.
type Table struct {
	Families []Family                     `yaml:"families"`
	SDKs     map[string]map[string]string `yaml:"sdks"`
}

// Config is the toolchain configuration of a single part.
type Config struct {
	Part          string
	Family        string // pattern of the matching family
	CPU           string
	FPU           []string
	DriverLib     string
	DriverLibPath string // absolute path to the driver library archive
	SDKRoot       string
	Defines       []string
	Flash         Memory
	RAM           Memory
}

// HasFPU reports whether the configuration enables the floating-point unit.
func (c *Config) HasFPU() bool { return len(c.FPU) != 0 }

// MachineFlags returns the compiler flags that select the CPU and the FPU.
func (c *Config) MachineFlags() []string {
	flags := []string{"-mthumb", "-mcpu=" + c.CPU}
	if c.HasFPU() {
		flags = append(flags, c.FPU...)
	} else {
		flags = append(flags, "-mfloat-abi=soft")
	}
	return flags
}

// Options modify the SDK root selection.
type Options struct {
	Platform string // host platform, runtime.GOOS if empty
	SDKRoot  string // overrides the table
}

// ParseTable decodes a part table and checks its entries. SDK selectors
// are checked by Table.Check.
func ParseTable(data []byte) (*Table, error) {
	t := new(Table)
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, errors.Wrap(err, "parse part table")
	}
	for i := range t.Families {
		f := &t.Families[i]
		switch {
		case f.Pattern == "":
			return nil, errors.Errorf("part table entry %d: no pattern", i)
		case f.CPU == "":
			return nil, errors.Errorf("part table entry %s: no cpu", f.Pattern)
		case f.DriverLib == "" || f.DriverLibPath == "":
			return nil, errors.Errorf("part table entry %s: no driverlib", f.Pattern)
		case f.Flash.Length == 0 || f.RAM.Length == 0:
			return nil, errors.Errorf("part table entry %s: no memory sizes", f.Pattern)
		}
		if !doublestar.ValidatePattern(f.Pattern) {
			return nil, errors.Errorf("part table entry %s: bad pattern", f.Pattern)
		}
		f.Pattern = strings.ToUpper(f.Pattern)
	}
	return t, nil
}

// Check reports a family whose SDK selector has no roots in t. A table
// prepended to another one may use the SDKs of the other, so Check is run
// on the combined table.
func (t *Table) Check() error {
	for _, f := range t.Families {
		if _, ok := t.SDKs[f.SDK]; !ok {
			return errors.Errorf("part table entry %s: unknown sdk %q", f.Pattern, f.SDK)
		}
	}
	return nil
}

// LoadTable reads a part table from the named file.
func LoadTable(name string) (*Table, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	t, err := ParseTable(data)
	return t, errors.Wrap(err, name)
}

// Builtin returns the built-in part table.
func Builtin() *Table {
	t, err := ParseTable(rawParts)
	if err == nil {
		err = t.Check()
	}
	if err != nil {
		panic(err)
	}
	return t
}

// Prepend returns a table whose families are tried before the families of
// t. SDK roots of u replace the ones of t.
func (t *Table) Prepend(u *Table) *Table {
	nt := &Table{
		Families: append(append([]Family{}, u.Families...), t.Families...),
		SDKs:     make(map[string]map[string]string),
	}
	for k, v := range t.SDKs {
		nt.SDKs[k] = v
	}
	for k, v := range u.SDKs {
		nt.SDKs[k] = v
	}
	return nt
}

// Lookup returns the first family whose pattern matches the part.
func (t *Table) Lookup(part string) (*Family, bool) {
	part = strings.ToUpper(strings.TrimSpace(part))
	if part == "" {
		return nil, false
	}
	for i := range t.Families {
		if ok, _ := doublestar.Match(t.Families[i].Pattern, part); ok {
			return &t.Families[i], true
		}
	}
	return nil, false
}

// Resolve returns the configuration for the part.
func (t *Table) Resolve(part string, opts Options) (*Config, error) {
	f, ok := t.Lookup(part)
	if !ok {
		return nil, &ConfigError{Part: part, Err: ErrUnknownPart}
	}
	part = strings.ToUpper(strings.TrimSpace(part))
	if opts.Platform == "" {
		opts.Platform = runtime.GOOS
	}
	root := opts.SDKRoot
	if root == "" {
		roots := t.SDKs[f.SDK]
		if root = roots[opts.Platform]; root == "" {
			root = roots[DefaultPlatform]
		}
		if root == "" {
			return nil, &ConfigError{Part: part, Err: errors.Errorf("no %s root for platform %q", f.SDK, opts.Platform)}
		}
	}
	root = filepath.FromSlash(root)
	c := &Config{
		Part:          part,
		Family:        f.Pattern,
		CPU:           f.CPU,
		FPU:           append([]string(nil), f.FPU...),
		DriverLib:     f.DriverLib,
		DriverLibPath: filepath.Join(root, filepath.FromSlash(f.DriverLibPath)),
		SDKRoot:       root,
		Defines:       append([]string{"PART_" + part}, f.Defines...),
		Flash:         f.Flash,
		RAM:           f.RAM,
	}
	return c, nil
}

// Resolve resolves the part using the built-in table.
func Resolve(part string, opts Options) (*Config, error) {
	return Builtin().Resolve(part, opts)
}
