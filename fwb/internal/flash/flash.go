// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package flash hands the built image to the external flashing and
// debugging tools.
package flash

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/embeddedgo/fwbuild/fwb/internal/toolchain"
)

const (
	// DefaultTool programs the flash of Stellaris and Tiva launchpads.
	DefaultTool = "lm4flash"

	// DefaultEndpoint is where the debug server listens for gdb.
	DefaultEndpoint = "localhost:3333"
)

// ToolError is returned when an external tool fails. Output is the
// unmodified output of the tool.
type ToolError struct {
	Tool   string
	Args   []string
	Output string
	Err    error
}

func (e *ToolError) Error() string {
	s := e.Tool + ": " + e.Err.Error()
	if out := strings.TrimSpace(e.Output); out != "" {
		s += "\n" + out
	}
	return s
}

func (e *ToolError) Unwrap() error { return e.Err }

// ExitCode returns the exit status of the tool or -1 if it did not run.
func (e *ToolError) ExitCode() int { return toolchain.ExitCode(e.Err) }

func toolError(cmd toolchain.Command, res toolchain.Result, err error) error {
	return &ToolError{Tool: cmd.Path, Args: cmd.Args, Output: string(res.Combined()), Err: err}
}

// Flash writes the binary image to the device using tool. The flags are
// passed before the image path. A failure is not retried.
func Flash(ctx context.Context, r toolchain.Runner, tool string, flags []string, bin string) error {
	if tool == "" {
		tool = DefaultTool
	}
	cmd := toolchain.Command{
		Path: tool,
		Args: append(append([]string{}, flags...), bin),
	}
	res, err := r.Run(ctx, cmd)
	if err != nil {
		return toolError(cmd, res, err)
	}
	return nil
}

// DebugScript writes the gdb commands that load the image through the
// debug server at endpoint and leave the core halted at reset.
func DebugScript(w io.Writer, elf, endpoint string) error {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	_, err := fmt.Fprintf(w,
		"file %s\n"+
			"target extended-remote %s\n"+
			"monitor reset halt\n"+
			"load\n"+
			"monitor reset halt\n",
		quote(elf), endpoint,
	)
	return err
}

// WriteDebugScript writes the debug script to the named file.
func WriteDebugScript(name, elf, endpoint string) error {
	var b bytes.Buffer
	DebugScript(&b, elf, endpoint)
	tmp := name + ".tmp"
	if err := os.WriteFile(tmp, b.Bytes(), 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, name); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func quote(path string) string {
	if !strings.ContainsAny(path, " \t\"") {
		return path
	}
	return `"` + strings.ReplaceAll(path, `"`, `\"`) + `"`
}

type DebugOptions struct {
	GDB    string
	Script string   // gdb command file
	Server []string // debug server command line, not started if empty
}

// Debug starts the debug server, if any, and runs an interactive gdb session
// that executes the script. The server is stopped when gdb exits.
func Debug(ctx context.Context, r toolchain.Runner, opts DebugOptions) error {
	if len(opts.Server) != 0 {
		srv := toolchain.Command{Path: opts.Server[0], Args: opts.Server[1:]}
		p, err := r.Start(ctx, srv)
		if err != nil {
			return toolError(srv, toolchain.Result{}, err)
		}
		defer p.Stop()
	}
	cmd := toolchain.Command{
		Path:        opts.GDB,
		Args:        []string{"-x", opts.Script},
		Interactive: true,
	}
	res, err := r.Run(ctx, cmd)
	if err != nil {
		return toolError(cmd, res, err)
	}
	return nil
}
