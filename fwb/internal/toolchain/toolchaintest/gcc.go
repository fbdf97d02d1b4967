// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package toolchaintest

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/embeddedgo/fwbuild/fwb/internal/toolchain"
)

// ErrExit is returned by the simulated tools in place of *exec.ExitError.
var ErrExit = errors.New("exit status 1")

// GCC simulates the compiler and the linker driver well enough for the
// build pipeline: "-c" compiles a file by copying it to the object
// resolving #include "..." lines against the working directory and the -I
// directories, otherwise the input objects are concatenated into the
// output file.
func GCC(cmd toolchain.Command) (toolchain.Result, error) {
	var (
		src, out, dep string
		compile       bool
		includes      []string
		inputs        []string
	)
	for i := 0; i < len(cmd.Args); i++ {
		a := cmd.Args[i]
		switch {
		case a == "-c":
			compile = true
			i++
			src = cmd.Args[i]
		case a == "-o":
			i++
			out = cmd.Args[i]
		case a == "-MF":
			i++
			dep = cmd.Args[i]
		case a == "-T" || a == "-x":
			i++
		case strings.HasPrefix(a, "-I"):
			includes = append(includes, a[2:])
		case !strings.HasPrefix(a, "-"):
			inputs = append(inputs, a)
		}
	}
	if compile {
		return compileFile(cmd.Dir, src, out, dep, includes)
	}
	var image bytes.Buffer
	for _, in := range inputs {
		data, err := os.ReadFile(in)
		if err != nil {
			return toolchain.Result{Stderr: []byte(err.Error())}, ErrExit
		}
		image.Write(data)
	}
	if err := os.WriteFile(out, image.Bytes(), 0o644); err != nil {
		return toolchain.Result{}, err
	}
	return toolchain.Result{}, nil
}

func compileFile(dir, src, out, dep string, includes []string) (toolchain.Result, error) {
	data, err := os.ReadFile(filepath.Join(dir, src))
	if err != nil {
		return toolchain.Result{Stderr: []byte(err.Error())}, ErrExit
	}
	headers := []string{src}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, `#include "`) {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(line, `#include "`), `"`)
		found := ""
		for _, d := range append([]string{"."}, includes...) {
			p := filepath.Join(d, name)
			if !filepath.IsAbs(p) {
				if _, err := os.Stat(filepath.Join(dir, p)); err == nil {
					found = p
					break
				}
			} else if _, err := os.Stat(p); err == nil {
				found = p
				break
			}
		}
		if found == "" {
			msg := fmt.Sprintf("%s:1: fatal error: %s: No such file or directory\ncompilation terminated.\n", src, name)
			return toolchain.Result{Stderr: []byte(msg)}, ErrExit
		}
		headers = append(headers, filepath.ToSlash(found))
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return toolchain.Result{}, err
	}
	if dep != "" {
		rule := out + ": " + strings.Join(headers, " \\\n ") + "\n"
		if err := os.WriteFile(dep, []byte(rule), 0o644); err != nil {
			return toolchain.Result{}, err
		}
	}
	return toolchain.Result{}, nil
}
