// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/embeddedgo/fwbuild/fwb/internal/artifact"
	"github.com/embeddedgo/fwbuild/fwb/internal/session"
)

func buildCmd(a *app) *cobra.Command {
	c := &cobra.Command{
		Use:   "build",
		Short: "Compile the stale sources, link the image and derive the artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session()
			if err != nil {
				return err
			}
			res, err := s.Build(cmd.Context())
			if err != nil {
				return err
			}
			if size, _ := cmd.Flags().GetBool("size"); size {
				fmt.Fprint(cmd.OutOrStdout(), artifact.FormatSize(res.Image, s.Layout()))
			}
			return nil
		},
	}
	c.Flags().Bool("size", false, "print the size report")
	return c
}

func cleanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove the output directory: objects, dependency records and artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return session.Clean(a.cfg, a.log)
		},
	}
}

func flashCmd(a *app) *cobra.Command {
	c := &cobra.Command{
		Use:   "flash",
		Short: "Build and write the binary image to the device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := cmd.Flags()
			if err := changedString(fs, "tool", &a.cfg.Flash.Tool); err != nil {
				return err
			}
			if fs.Changed("flags") {
				a.cfg.Flash.Flags, _ = fs.GetStringSlice("flags")
			}
			s, err := a.session()
			if err != nil {
				return err
			}
			return s.Flash(cmd.Context())
		},
	}
	c.Flags().String("tool", "", "flashing tool (default from the project file or lm4flash)")
	c.Flags().StringSlice("flags", nil, "flags passed to the flashing tool before the image")
	return c
}

func debugCmd(a *app) *cobra.Command {
	c := &cobra.Command{
		Use:   "debug",
		Short: "Build, write the gdb command file and start a debug session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := cmd.Flags()
			if fs.Changed("no-server") {
				if off, _ := fs.GetBool("no-server"); off {
					a.cfg.Debug.Server = nil
				}
			}
			if err := changedString(fs, "endpoint", &a.cfg.Debug.Endpoint); err != nil {
				return err
			}
			s, err := a.session()
			if err != nil {
				return err
			}
			return s.Debug(cmd.Context())
		},
	}
	c.Flags().Bool("no-server", false, "do not start the debug server, connect to a running one")
	c.Flags().String("endpoint", "", "address of the debug server (default localhost:3333)")
	return c
}
