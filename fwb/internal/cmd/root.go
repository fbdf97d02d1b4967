// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cmd implements the command line interface of fwb.
package cmd

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/embeddedgo/fwbuild/fwb/internal/config"
	"github.com/embeddedgo/fwbuild/fwb/internal/logging"
	"github.com/embeddedgo/fwbuild/fwb/internal/session"
	"github.com/embeddedgo/fwbuild/fwb/internal/toolchain"
)

// Version is the version of fwb.
const Version = "0.1.0"

// app is the state shared by the subcommands. cfg and log are set by the
// persistent pre-run hook of the root command.
type app struct {
	runner toolchain.Runner
	extra  []session.Option
	cfg    *config.Config
	log    zerolog.Logger
}

func (a *app) session() (*session.Session, error) {
	opts := append([]session.Option{
		session.WithRunner(a.runner),
		session.WithLogger(a.log),
	}, a.extra...)
	return session.New(a.cfg, opts...)
}

// New returns the root command. A nil runner runs the real tools. The
// options are passed to every build session.
func New(r toolchain.Runner, opts ...session.Option) *cobra.Command {
	if r == nil {
		r = toolchain.ExecRunner{}
	}
	a := &app{runner: r, extra: opts}
	root := &cobra.Command{
		Use:   "fwb",
		Short: "Build, flash and debug Cortex-M firmware",
		Long: "fwb compiles the assembly, C and C++ sources of a firmware project for\n" +
			"the selected Stellaris or Tiva part, links them using the memory layout\n" +
			"of the part and derives the binary, hex, listing and size report files.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = logging.New(cmd.ErrOrStderr(), cfg.Verbose)
			return nil
		},
	}
	addGlobalFlags(root)
	root.AddCommand(
		buildCmd(a),
		cleanCmd(a),
		flashCmd(a),
		debugCmd(a),
		partsCmd(a),
		versionCmd(a),
	)
	return root
}
