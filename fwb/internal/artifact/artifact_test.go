// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package artifact

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/marcinbor85/gohex"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embeddedgo/fwbuild/fwb/internal/image"
	"github.com/embeddedgo/fwbuild/fwb/internal/layout"
	"github.com/embeddedgo/fwbuild/fwb/internal/toolchain"
	"github.com/embeddedgo/fwbuild/fwb/internal/toolchain/toolchaintest"
)

func seq(n int, start byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = start + byte(i)
	}
	return b
}

func testImage() *image.Image {
	vectors := seq(0x40, 0)
	text := seq(0x35, 0x80)
	data := seq(0x08, 0x10)
	return &image.Image{
		Path:  "/out/app.elf",
		Entry: 0x41,
		Sections: image.Sections{
			{Name: ".isr_vector", Addr: 0, Paddr: 0, Size: 0x40, Load: true, Data: vectors},
			{Name: ".text", Addr: 0x40, Paddr: 0x40, Size: 0x35, Load: true, Data: text},
			{Name: ".data", Addr: 0x20000000, Paddr: 0x78, Size: 0x08, Load: true, Data: data},
			{Name: ".bss", Addr: 0x20000008, Paddr: 0x20000008, Size: 0x100},
		},
	}
}

func testLayout() *layout.Layout { return layout.Default(0, 0x40000, 0x20000000, 0x8000) }

func TestWriteBin(t *testing.T) {
	img := testImage()
	var b bytes.Buffer
	require.NoError(t, WriteBin(&b, img))

	want := append([]byte{}, seq(0x40, 0)...)
	want = append(want, seq(0x35, 0x80)...)
	want = append(want, 0xff, 0xff, 0xff) // .text ends at 0x75
	want = append(want, seq(0x08, 0x10)...)
	assert.Equal(t, want, b.Bytes())

	// The image is not reordered.
	assert.Equal(t, ".isr_vector", img.Sections[0].Name)
	assert.Equal(t, ".bss", img.Sections[3].Name)
}

func TestWriteHex(t *testing.T) {
	img := testImage()
	var b bytes.Buffer
	require.NoError(t, WriteHex(&b, img))
	assert.Contains(t, b.String(), ":00000001FF")

	mem := gohex.NewMemory()
	require.NoError(t, mem.ParseIntelHex(bytes.NewReader(b.Bytes())))
	got := make(map[uint32]byte)
	for _, seg := range mem.GetDataSegments() {
		for i, v := range seg.Data {
			got[seg.Address+uint32(i)] = v
		}
	}
	want := make(map[uint32]byte)
	for _, s := range img.Sections.Loadable() {
		for i, v := range s.Data {
			want[uint32(s.Paddr)+uint32(i)] = v
		}
	}
	assert.Equal(t, want, got)
	start, ok := mem.GetStartAddress()
	assert.True(t, ok)
	assert.Equal(t, uint32(0x41), start)
}

func TestWriteHexOverlap(t *testing.T) {
	img := testImage()
	img.Sections[2].Paddr = 0x50
	var b bytes.Buffer
	assert.Error(t, WriteHex(&b, img))
}

func TestWriteSize(t *testing.T) {
	s := FormatSize(testImage(), testLayout())
	lines := strings.Split(s, "\n")
	find := func(prefix string) string {
		for _, l := range lines {
			if strings.HasPrefix(strings.TrimSpace(l), prefix) {
				return l
			}
		}
		return ""
	}
	flash := find("FLASH")
	require.NotEmpty(t, flash, s)
	assert.Contains(t, flash, "0x00000000")
	assert.Contains(t, flash, "128") // 0x80
	assert.Contains(t, flash, "262144")
	ram := find("RAM")
	require.NotEmpty(t, ram, s)
	assert.Contains(t, ram, "264") // 0x108
	assert.Contains(t, ram, "32768")

	bss := find(".bss")
	require.NotEmpty(t, bss, s)
	assert.Contains(t, bss, "0x20000008")
	assert.Contains(t, bss, "256")
	data := find(".data")
	assert.Contains(t, data, "0x00000078")

	assert.Less(t, strings.Index(s, "FLASH"), strings.Index(s, ".isr_vector"))
}

func TestWriteListing(t *testing.T) {
	r := &toolchaintest.Runner{Handler: func(cmd toolchain.Command) (toolchain.Result, error) {
		return toolchain.Result{Stdout: []byte("00000040 <ResetISR>:\n"), Stderr: []byte("warning\n")}, nil
	}}
	var b bytes.Buffer
	require.NoError(t, WriteListing(context.Background(), &b, r, "arm-none-eabi-objdump", testImage()))
	assert.Equal(t, "00000040 <ResetISR>:\n", b.String())
	cmds := r.Commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, "arm-none-eabi-objdump -d -S /out/app.elf", cmds[0].String())

	r.Handler = func(cmd toolchain.Command) (toolchain.Result, error) {
		return toolchain.Result{Stderr: []byte("objdump: bad file\n")}, toolchaintest.ErrExit
	}
	err := WriteListing(context.Background(), &b, r, "arm-none-eabi-objdump", testImage())
	var le *ListingError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "objdump: bad file\n", le.Output)
	assert.Equal(t, "arm-none-eabi-objdump: exit status 1\nobjdump: bad file", err.Error())
}

func TestDeriveAll(t *testing.T) {
	dir := t.TempDir()
	set := Paths(filepath.Join(dir, "build"), "app")
	assert.Equal(t, filepath.Join(dir, "build", "app.hex"), set.Hex)

	r := &toolchaintest.Runner{Handler: func(cmd toolchain.Command) (toolchain.Result, error) {
		return toolchain.Result{Stdout: []byte("listing\n")}, nil
	}}
	d := &Deriver{Layout: testLayout(), Objdump: "objdump", Runner: r}
	require.NoError(t, d.DeriveAll(context.Background(), testImage(), set))

	read := func() map[string][]byte {
		m := make(map[string][]byte)
		for _, p := range []string{set.Bin, set.Hex, set.Listing, set.Size} {
			data, err := os.ReadFile(p)
			require.NoError(t, err)
			assert.NoFileExists(t, p+".tmp")
			m[p] = data
		}
		return m
	}
	first := read()
	require.NoError(t, d.DeriveAll(context.Background(), testImage(), set))
	assert.Equal(t, first, read())
}

func TestDeriveAllRemovesSetOnFailure(t *testing.T) {
	dir := t.TempDir()
	set := Paths(dir, "app")
	for _, p := range []string{set.Bin, set.Hex, set.Listing, set.Size} {
		require.NoError(t, os.WriteFile(p, []byte("old\n"), 0o644))
	}
	r := &toolchaintest.Runner{Handler: func(cmd toolchain.Command) (toolchain.Result, error) {
		return toolchain.Result{}, toolchaintest.ErrExit
	}}
	d := &Deriver{Layout: testLayout(), Objdump: "objdump", Runner: r}
	require.Error(t, d.DeriveAll(context.Background(), testImage(), set))
	for _, p := range []string{set.Bin, set.Hex, set.Listing, set.Size} {
		assert.NoFileExists(t, p)
		assert.NoFileExists(t, p+".tmp")
	}
}

func TestCurrent(t *testing.T) {
	dir := t.TempDir()
	set := Paths(dir, "app")
	elf := filepath.Join(dir, "app.elf")
	require.NoError(t, os.WriteFile(elf, nil, 0o644))
	_, err := set.Current(filepath.Join(dir, "none.elf"))
	assert.Error(t, err)

	ok, err := set.Current(elf)
	require.NoError(t, err)
	assert.False(t, ok, "no artifacts")

	for _, p := range []string{set.Bin, set.Hex, set.Listing, set.Size} {
		require.NoError(t, os.WriteFile(p, nil, 0o644))
	}
	ok, err = set.Current(elf)
	require.NoError(t, err)
	assert.True(t, ok)

	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(set.Hex, old, old))
	ok, err = set.Current(elf)
	require.NoError(t, err)
	assert.False(t, ok, "hex older than the image")

	require.NoError(t, set.Remove())
	require.NoError(t, set.Remove())
	assert.NoFileExists(t, set.Bin)
}
