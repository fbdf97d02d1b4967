// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/embeddedgo/fwbuild/fwb/internal/session"
)

func partsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "parts",
		Short: "List the supported part families in matching order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := session.PartTable(a.cfg)
			if err != nil {
				return err
			}
			t := tablewriter.NewWriter(cmd.OutOrStdout())
			t.SetHeader([]string{"PATTERN", "CPU", "FPU", "DRIVERLIB", "SDK", "FLASH", "RAM"})
			t.SetAutoFormatHeaders(false)
			t.SetAutoWrapText(false)
			t.SetBorder(false)
			for _, f := range table.Families {
				fpu := strings.Join(f.FPU, " ")
				if fpu == "" {
					fpu = "-"
				}
				t.Append([]string{
					f.Pattern,
					f.CPU,
					fpu,
					f.DriverLib,
					f.SDK,
					fmt.Sprintf("%dK", f.Flash.Length/1024),
					fmt.Sprintf("%dK", f.RAM.Length/1024),
				})
			}
			t.Render()
			return nil
		},
	}
}
