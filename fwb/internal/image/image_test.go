// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package image

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlattenPadsGaps(t *testing.T) {
	ss := Sections{
		{Name: ".data", Addr: 0x20000000, Paddr: 0x10, Size: 2, Load: true, Data: []byte{5, 6}},
		{Name: ".bss", Addr: 0x20000002, Paddr: 0x20000002, Size: 64},
		{Name: ".isr_vector", Paddr: 0, Size: 4, Load: true, Data: []byte{1, 2, 3, 4}},
		{Name: ".text", Paddr: 8, Size: 2, Load: true, Data: []byte{7, 8}},
	}
	var buf bytes.Buffer
	n, err := ss.Flatten(&buf, 0xff)
	require.NoError(t, err)
	want := []byte{1, 2, 3, 4, 0xff, 0xff, 0xff, 0xff, 7, 8, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 5, 6}
	assert.Equal(t, want, buf.Bytes())
	assert.Equal(t, len(want), n)

	// The receiver keeps its order.
	assert.Equal(t, ".data", ss[0].Name)
}

func TestFlattenOverlap(t *testing.T) {
	ss := Sections{
		{Name: "a", Paddr: 0, Load: true, Data: []byte{1, 2, 3, 4}},
		{Name: "b", Paddr: 2, Load: true, Data: []byte{1}},
	}
	_, err := ss.Flatten(new(bytes.Buffer), 0)
	assert.Error(t, err)
}

func TestFlattenEmpty(t *testing.T) {
	var buf bytes.Buffer
	n, err := Sections{{Name: ".bss", Size: 16}}.Flatten(&buf, 0xff)
	assert.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, buf.Len())
}

func TestSize(t *testing.T) {
	ss := Sections{
		{Load: true, Data: make([]byte, 10)},
		{Size: 100},
		{Load: true, Data: make([]byte, 3)},
	}
	assert.Equal(t, 13, ss.Size())
	assert.Len(t, ss.Loadable(), 2)
}

func TestPadBytes(t *testing.T) {
	var cache []byte
	b := PadBytes(&cache, 3, 0xff)
	assert.Equal(t, []byte{0xff, 0xff, 0xff}, b)
	assert.Len(t, PadBytes(&cache, 2, 0xff), 2)
	assert.Equal(t, []byte{0, 0}, PadBytes(nil, 2, 0))
}

func TestReadBins(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "boot.bin"), []byte{1, 2, 3}, 0o644))
	abs := filepath.Join(dir, "cfg.bin")
	require.NoError(t, os.WriteFile(abs, []byte{9}, 0o644))

	ss, err := ReadBins(dir, []string{"boot.bin:0x3f000", abs + ":4096"})
	require.NoError(t, err)
	require.Len(t, ss, 2)
	assert.Equal(t, "boot.bin", ss[0].Name)
	assert.Equal(t, uint64(0x3f000), ss[0].Paddr)
	assert.Equal(t, uint64(0x3f000), ss[0].Addr)
	assert.Equal(t, uint64(3), ss[0].Size)
	assert.True(t, ss[0].Load)
	assert.Equal(t, uint64(4096), ss[1].Paddr)

	for _, bad := range []string{"boot.bin", ":0x100", "boot.bin:zz", "none.bin:0"} {
		_, err := ReadBins(dir, []string{bad})
		assert.Error(t, err, bad)
	}
}

func TestWith(t *testing.T) {
	img := &Image{Sections: Sections{{Name: ".text"}}}
	ni := img.With(Sections{{Name: "boot.bin"}})
	assert.Len(t, ni.Sections, 2)
	assert.Len(t, img.Sections, 1)
}
