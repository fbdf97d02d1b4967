// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/embeddedgo/fwbuild/fwb/internal/config"
)

func addGlobalFlags(root *cobra.Command) {
	def := config.Default()
	fs := root.PersistentFlags()
	fs.SortFlags = false
	fs.String("config", "", fmt.Sprintf("path to the project file (default %q if it exists)", config.DefaultFile))
	fs.String("part", "", "part identifier of the microcontroller, e.g. TM4C123GH6PM")
	fs.String("platform", "", "host platform used to select the SDK root (default the running OS)")
	fs.IntP("workers", "j", 0, fmt.Sprintf("number of parallel compilations (default %d)", def.Workers))
	fs.BoolP("verbose", "v", false, "log every step")
	fs.String("root", "", fmt.Sprintf("root of the source tree (default %q)", def.Root))
	fs.String("out", "", fmt.Sprintf("output directory, relative to the source root (default %q)", def.OutDir))
}

// loadConfig reads the project file, applies the environment and then the
// flags set on the command line.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	fs := cmd.Flags()
	path, err := fs.GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(nil); err != nil {
		return nil, err
	}
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"part", &cfg.Part},
		{"platform", &cfg.Platform},
		{"root", &cfg.Root},
		{"out", &cfg.OutDir},
	} {
		if err := changedString(fs, f.name, f.dst); err != nil {
			return nil, err
		}
	}
	if fs.Changed("workers") {
		if cfg.Workers, err = fs.GetInt("workers"); err != nil {
			return nil, err
		}
	}
	if fs.Changed("verbose") {
		if cfg.Verbose, err = fs.GetBool("verbose"); err != nil {
			return nil, err
		}
	}
	return cfg, cfg.Check()
}

// changedString sets *dst to the value of the named flag if it was given.
func changedString(fs *pflag.FlagSet, name string, dst *string) error {
	if !fs.Changed(name) {
		return nil
	}
	v, err := fs.GetString(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}
