// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/embeddedgo/fwbuild/fwb/internal/toolchain"
	"github.com/embeddedgo/fwbuild/fwb/internal/util"
)

func versionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of fwb and of the cross compiler",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "fwb %s\n", Version)
			cc := a.cfg.Toolchain.Tools().CC
			v, err := toolchain.Version(cmd.Context(), a.runner, cc)
			if err != nil {
				util.Warn("%v", err)
				return
			}
			fmt.Fprintf(w, "%s %s\n", cc, v)
		},
	}
}
