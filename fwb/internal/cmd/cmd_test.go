// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embeddedgo/fwbuild/fwb/internal/target"
	"github.com/embeddedgo/fwbuild/fwb/internal/toolchain"
	"github.com/embeddedgo/fwbuild/fwb/internal/toolchain/toolchaintest"
)

// run executes fwb with args in dir.
func run(t *testing.T, dir string, r toolchain.Runner, args ...string) (string, error) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	root := New(r)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err = root.Execute()
	return out.String(), err
}

func clearEnv(t *testing.T) {
	for _, k := range []string{"FWB_PART", "FWB_PLATFORM", "FWB_WORKERS", "FWB_TOOLCHAIN_PREFIX", "FWB_SDK_ROOT"} {
		t.Setenv(k, "")
	}
}

func TestParts(t *testing.T) {
	clearEnv(t)
	out, err := run(t, t.TempDir(), nil, "parts")
	require.NoError(t, err)
	lines := strings.Split(out, "\n")
	var patterns []string
	for _, l := range lines {
		f := strings.Fields(strings.ReplaceAll(l, "|", " "))
		if len(f) != 0 && strings.HasSuffix(f[0], "*") {
			patterns = append(patterns, f[0])
		}
	}
	assert.Equal(t, []string{"TM4C129*", "TM4C*", "LM4*", "LM3*"}, patterns)
	assert.Contains(t, out, "driverlib-cm3")
}

func TestPartsUserTable(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "parts.yaml"), []byte(`
families:
  - pattern: LM3S6965*
    cpu: cortex-m3
    sdk: qemu
    driverlib: driverlib-qemu
    driverlibPath: libdriver.a
    flash: {origin: 0, length: 0x40000}
    ram: {origin: 0x20000000, length: 0x10000}
sdks:
  qemu:
    linux: /opt/qemu-sdk
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fwbuild.yaml"), []byte("parts: parts.yaml\n"), 0o644))
	out, err := run(t, dir, nil, "parts")
	require.NoError(t, err)
	assert.Less(t, strings.Index(out, "LM3S6965*"), strings.Index(out, "TM4C129*"))
}

func TestUnknownPart(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	_, err := run(t, dir, new(toolchaintest.Runner), "build", "--part", "STM32F103")
	var ce *target.ConfigError
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, "STM32F103", ce.Part)

	// The environment is used when the flag is not given.
	t.Setenv("FWB_PART", "MSP430")
	_, err = run(t, dir, new(toolchaintest.Runner), "flash")
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, "MSP430", ce.Part)
}

func TestCleanNeedsNoPart(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "build", "obj")
	require.NoError(t, os.MkdirAll(out, 0o755))
	r := new(toolchaintest.Runner)
	_, err := run(t, dir, r, "clean")
	require.NoError(t, err)
	assert.NoDirExists(t, filepath.Join(dir, "build"))

	_, err = run(t, dir, r, "clean", "--part", "STM32F103")
	require.NoError(t, err)
	assert.Empty(t, r.Commands())
}

func TestFlagsOverrideConfig(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "out"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fwbuild.yaml"), []byte("part: STM32\nroot: src\nout: build\n"), 0o644))

	// The flags point clean at src/out.
	_, err := run(t, dir, new(toolchaintest.Runner), "clean", "--out", "out")
	require.NoError(t, err)
	assert.NoDirExists(t, filepath.Join(src, "out"))
	assert.DirExists(t, src)

	// The part of the project file is unknown, the flag replaces it.
	var ce *target.ConfigError
	_, err = run(t, dir, new(toolchaintest.Runner), "build")
	require.True(t, errors.As(err, &ce), "got %v", err)
	_, err = run(t, dir, new(toolchaintest.Runner), "build", "--part", "TM4C123GH6PM")
	require.Error(t, err, "no sources")
	assert.False(t, errors.As(err, &ce), "got %v", err)
}

func TestVersion(t *testing.T) {
	clearEnv(t)
	r := &toolchaintest.Runner{Handler: func(cmd toolchain.Command) (toolchain.Result, error) {
		return toolchain.Result{Stdout: []byte("12.3.1\n")}, nil
	}}
	out, err := run(t, t.TempDir(), r, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "fwb "+Version+"\n")
	assert.Contains(t, out, "arm-none-eabi-gcc 12.3.1\n")
	require.Len(t, r.Commands(), 1)
	assert.Equal(t, []string{"-dumpversion"}, r.Commands()[0].Args)
}

func TestBadConfigFile(t *testing.T) {
	clearEnv(t)
	_, err := run(t, t.TempDir(), nil, "parts", "--config", "nope.yaml")
	assert.Error(t, err)
}
