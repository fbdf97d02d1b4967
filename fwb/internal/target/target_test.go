// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package target

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveEveryFamily(t *testing.T) {
	tab := Builtin()
	require.NotEmpty(t, tab.Families)
	for _, f := range tab.Families {
		// Replace the trailing wildcard with a plausible suffix.
		part := f.Pattern[:len(f.Pattern)-1] + "123X"
		c, err := tab.Resolve(part, Options{Platform: "linux"})
		require.NoError(t, err, part)
		assert.NotEmpty(t, c.CPU, part)
		assert.NotEmpty(t, c.DriverLib, part)
		assert.Equal(t, f.Pattern, c.Family, part)
		assert.Contains(t, c.Defines, "PART_"+part)
	}
}

func TestResolveLM4(t *testing.T) {
	c, err := Resolve("LM4xxx", Options{Platform: "linux"})
	require.NoError(t, err)
	assert.Equal(t, "cortex-m4", c.CPU)
	assert.True(t, c.HasFPU())
	assert.Equal(t, "driverlib-cm4f", c.DriverLib)
	assert.Equal(t, filepath.FromSlash("/opt/ti/StellarisWare"), c.SDKRoot)
	assert.Equal(t, filepath.Join(c.SDKRoot, "driverlib", "gcc-cm4f", "libdriver-cm4f.a"), c.DriverLibPath)
	assert.Equal(t, []string{"-mthumb", "-mcpu=cortex-m4", "-mfpu=fpv4-sp-d16", "-mfloat-abi=hard"}, c.MachineFlags())
}

func TestResolveLM3HasNoFPU(t *testing.T) {
	c, err := Resolve("lm3s6965", Options{Platform: "linux"})
	require.NoError(t, err)
	assert.Equal(t, "LM3S6965", c.Part)
	assert.Equal(t, "cortex-m3", c.CPU)
	assert.False(t, c.HasFPU())
	assert.Contains(t, c.MachineFlags(), "-mfloat-abi=soft")
}

func TestResolveFirstMatchWins(t *testing.T) {
	c, err := Resolve("TM4C1294NCPDT", Options{Platform: "linux"})
	require.NoError(t, err)
	assert.Equal(t, "TM4C129*", c.Family)
	assert.Equal(t, uint64(0x100000), c.Flash.Length)

	c, err = Resolve("TM4C123GH6PM", Options{Platform: "linux"})
	require.NoError(t, err)
	assert.Equal(t, "TM4C*", c.Family)
	assert.Equal(t, uint64(0x8000), c.RAM.Length)
}

func TestResolveUnknownPart(t *testing.T) {
	for _, part := range []string{"", "  ", "STM32F407", "XLM4F", "MSP430"} {
		_, err := Resolve(part, Options{})
		require.Error(t, err, part)
		var ce *ConfigError
		assert.True(t, errors.As(err, &ce), part)
		assert.True(t, errors.Is(err, ErrUnknownPart), part)
	}
}

func TestResolvePlatformRoots(t *testing.T) {
	cases := map[string]string{
		"linux":   "/opt/ti/TivaWare",
		"darwin":  "/Applications/ti/TivaWare",
		"windows": "C:/ti/TivaWare_C_Series",
		"plan9":   "/opt/ti/TivaWare",
	}
	for platform, root := range cases {
		c, err := Resolve("TM4C123GH6PM", Options{Platform: platform})
		require.NoError(t, err)
		assert.Equal(t, filepath.FromSlash(root), c.SDKRoot, platform)
	}

	c, err := Resolve("TM4C123GH6PM", Options{Platform: "linux", SDKRoot: "/sdk"})
	require.NoError(t, err)
	assert.Equal(t, filepath.FromSlash("/sdk"), c.SDKRoot)
}

func TestParseTableRejectsIncompleteEntries(t *testing.T) {
	bad := []string{
		"families: [{cpu: cortex-m4}]",
		"families: [{pattern: 'X*', driverlib: d, driverlibPath: d.a, flash: {length: 1}, ram: {length: 1}, sdk: s}]\nsdks: {s: {linux: /}}",
		"families: [{pattern: 'X*', cpu: c, flash: {length: 1}, ram: {length: 1}, sdk: s}]\nsdks: {s: {linux: /}}",
		"families: [{pattern: 'X*', cpu: c, driverlib: d, driverlibPath: d.a, sdk: s}]\nsdks: {s: {linux: /}}",
		"families: [",
	}
	for _, doc := range bad {
		_, err := ParseTable([]byte(doc))
		assert.Error(t, err, doc)
	}
}

func TestPrependUserTable(t *testing.T) {
	user := `
families:
  - pattern: LM4F120*
    cpu: cortex-m4
    sdk: custom
    driverlib: custom
    driverlibPath: lib/libcustom.a
    flash: {origin: 0, length: 0x1000}
    ram: {origin: 0x20000000, length: 0x100}
sdks:
  custom:
    linux: /custom
`
	name := filepath.Join(t.TempDir(), "parts.yaml")
	require.NoError(t, os.WriteFile(name, []byte(user), 0o644))
	u, err := LoadTable(name)
	require.NoError(t, err)
	tab := Builtin().Prepend(u)

	c, err := tab.Resolve("LM4F120H5QR", Options{Platform: "linux"})
	require.NoError(t, err)
	assert.Equal(t, "custom", c.DriverLib)
	assert.False(t, c.HasFPU())

	c, err = tab.Resolve("LM4F232", Options{Platform: "linux"})
	require.NoError(t, err)
	assert.Equal(t, "driverlib-cm4f", c.DriverLib)
}

func TestUserTableUsesBuiltinSDK(t *testing.T) {
	u, err := ParseTable([]byte(`
families:
  - pattern: TM4C1294*
    cpu: cortex-m4
    fpu: [-mfpu=fpv4-sp-d16, -mfloat-abi=hard]
    sdk: tivaware
    driverlib: driverlib-cm4f
    driverlibPath: driverlib/gcc/libdriver.a
    flash: {origin: 0, length: 0x100000}
    ram: {origin: 0x20000000, length: 0x40000}
`))
	require.NoError(t, err)
	assert.Error(t, u.Check())

	tab := Builtin().Prepend(u)
	require.NoError(t, tab.Check())
	c, err := tab.Resolve("TM4C1294NCPDT", Options{Platform: "linux"})
	require.NoError(t, err)
	assert.Equal(t, "TM4C1294*", c.Family)

	u.Families[0].SDK = "nosuch"
	assert.Error(t, Builtin().Prepend(u).Check())
}
