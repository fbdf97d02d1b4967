// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Fwb builds firmware for Stellaris and Tiva Cortex-M microcontrollers.
//
// Usage:
//
//	fwb [--part PART] [--root DIR] [--out DIR] [-j N] [-v] COMMAND
//
// Commands:
//
//	build   compile, link and derive bin, hex, lst and size files
//	clean   remove the output directory
//	flash   build and write the image to the device
//	debug   build and start a gdb session through the debug server
//	parts   list the supported part families
//	version print the version of fwb and of the compiler
//
// The configuration is read from fwbuild.yaml, then from the FWB_PART,
// FWB_PLATFORM, FWB_WORKERS, FWB_TOOLCHAIN_PREFIX and FWB_SDK_ROOT
// environment variables, then from the command line.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/embeddedgo/fwbuild/fwb/internal/cmd"
	"github.com/embeddedgo/fwbuild/fwb/internal/util"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := cmd.New(nil).ExecuteContext(ctx)
	stop()
	util.FatalErr(os.Stderr, err)
}
