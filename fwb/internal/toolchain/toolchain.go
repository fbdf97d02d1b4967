// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package toolchain runs the external cross toolchain.
package toolchain

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/Masterminds/semver"
	"github.com/pkg/errors"
)

// DefaultPrefix is the prefix of the GNU Arm Embedded Toolchain commands.
const DefaultPrefix = "arm-none-eabi-"

// Toolchain names the commands used to build and inspect the image.
type Toolchain struct {
	CC      string // C compiler, assembler and linker driver
	CXX     string // C++ compiler
	Objdump string
	GDB     string
}

// New returns the toolchain for the command prefix. Non-empty fields of
// override replace the derived names.
func New(prefix string, override Toolchain) Toolchain {
	tc := Toolchain{
		CC:      prefix + "gcc",
		CXX:     prefix + "g++",
		Objdump: prefix + "objdump",
		GDB:     prefix + "gdb",
	}
	if override.CC != "" {
		tc.CC = override.CC
	}
	if override.CXX != "" {
		tc.CXX = override.CXX
	}
	if override.Objdump != "" {
		tc.Objdump = override.Objdump
	}
	if override.GDB != "" {
		tc.GDB = override.GDB
	}
	return tc
}

// Command describes a single invocation of an external tool.
type Command struct {
	Path        string
	Args        []string
	Dir         string
	Interactive bool // connect the tool to the terminal
}

// Interactive commands and background processes are not bound to the
// context: an interrupt typed in the debugger halts the target, it must not
// kill the debugger or its server.

func (c Command) String() string {
	return strings.Join(append([]string{c.Path}, c.Args...), " ")
}

// Result holds the output of a finished command. Both fields are empty for
// interactive commands.
type Result struct {
	Stdout []byte
	Stderr []byte
}

// Combined returns stdout followed by stderr.
func (r Result) Combined() []byte {
	return append(append([]byte(nil), r.Stdout...), r.Stderr...)
}

// Process is a started background command.
type Process interface {
	Stop() error
}

// Runner runs external commands.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
	Start(ctx context.Context, cmd Command) (Process, error)
}

// ExecRunner runs commands using os/exec.
type ExecRunner struct{}

func (ExecRunner) command(ctx context.Context, c Command, bound bool) (*exec.Cmd, error) {
	path, err := exec.LookPath(c.Path)
	if err != nil {
		return nil, err
	}
	var cmd *exec.Cmd
	if bound {
		cmd = exec.CommandContext(ctx, path, c.Args...)
	} else {
		cmd = exec.Command(path, c.Args...)
	}
	cmd.Dir = c.Dir
	return cmd, nil
}

func (r ExecRunner) Run(ctx context.Context, c Command) (Result, error) {
	cmd, err := r.command(ctx, c, !c.Interactive)
	if err != nil {
		return Result{}, err
	}
	var stdout, stderr bytes.Buffer
	if c.Interactive {
		cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	} else {
		cmd.Stdout, cmd.Stderr = &stdout, &stderr
	}
	err = cmd.Run()
	return Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}, err
}

type execProcess struct{ cmd *exec.Cmd }

func (p execProcess) Stop() error {
	if err := p.cmd.Process.Kill(); err != nil {
		return err
	}
	p.cmd.Wait()
	return nil
}

func (r ExecRunner) Start(ctx context.Context, c Command) (Process, error) {
	cmd, err := r.command(ctx, c, false)
	if err != nil {
		return nil, err
	}
	cmd.Stdout, cmd.Stderr = os.Stderr, os.Stderr
	detach(cmd)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return execProcess{cmd}, nil
}

// ExitCode returns the exit status of a failed command or -1 if the
// command did not run to completion.
func ExitCode(err error) int {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ProcessState.ExitCode()
	}
	return -1
}

// Version returns the version reported by cc -dumpversion.
func Version(ctx context.Context, r Runner, cc string) (*semver.Version, error) {
	res, err := r.Run(ctx, Command{Path: cc, Args: []string{"-dumpversion"}})
	if err != nil {
		return nil, errors.Wrapf(err, "%s -dumpversion", cc)
	}
	v, err := semver.NewVersion(strings.TrimSpace(string(res.Stdout)))
	if err != nil {
		return nil, errors.Wrapf(err, "%s: bad version %q", cc, bytes.TrimSpace(res.Stdout))
	}
	return v, nil
}
