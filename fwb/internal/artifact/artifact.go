// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package artifact derives the flashable and human readable outputs from
// the linked image. Every output depends only on the image.
package artifact

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/marcinbor85/gohex"
	"github.com/pkg/errors"

	"github.com/embeddedgo/fwbuild/fwb/internal/image"
	"github.com/embeddedgo/fwbuild/fwb/internal/layout"
	"github.com/embeddedgo/fwbuild/fwb/internal/toolchain"
)

// Pad fills the gaps between sections of the binary image. It is the value
// of erased flash.
const Pad = 0xff

// Set holds the paths of the derived files.
type Set struct {
	Bin     string
	Hex     string
	Listing string
	Size    string
}

// Paths returns the artifact paths for the image name in dir.
func Paths(dir, name string) Set {
	p := func(ext string) string { return filepath.Join(dir, name+ext) }
	return Set{Bin: p(".bin"), Hex: p(".hex"), Listing: p(".lst"), Size: p(".size")}
}

func (set Set) paths() []string {
	return []string{set.Bin, set.Hex, set.Listing, set.Size}
}

// Remove removes the artifacts of set. Missing files are ignored.
func (set Set) Remove() error {
	for _, p := range set.paths() {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// Current reports whether every artifact of set exists and is not older
// than the image file elf.
func (set Set) Current(elf string) (bool, error) {
	ei, err := os.Stat(elf)
	if err != nil {
		return false, err
	}
	for _, p := range set.paths() {
		fi, err := os.Stat(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return false, nil
			}
			return false, err
		}
		if fi.ModTime().Before(ei.ModTime()) {
			return false, nil
		}
	}
	return true, nil
}

// WriteBin writes the raw flash image: loadable sections ordered by load
// address with gaps filled with Pad.
func WriteBin(w io.Writer, img *image.Image) error {
	_, err := img.Sections.Loadable().Flatten(w, Pad)
	return err
}

// WriteHex writes the loadable sections in the Intel HEX format, 16 data
// bytes per record, followed by the entry point.
func WriteHex(w io.Writer, img *image.Image) error {
	mem := gohex.NewMemory()
	ss := img.Sections.Loadable()
	ss.SortByPaddr()
	for _, s := range ss {
		if len(s.Data) == 0 {
			continue
		}
		if s.Paddr+uint64(len(s.Data)) > 1<<32 {
			return errors.Errorf("hex: section %s beyond 4 GiB", s.Name)
		}
		if err := mem.AddBinary(uint32(s.Paddr), s.Data); err != nil {
			return errors.Wrapf(err, "hex: section %s", s.Name)
		}
	}
	mem.SetStartAddress(uint32(img.Entry))
	return mem.DumpIntelHex(w, 16)
}

// WriteListing writes the disassembly of the image, interleaved with
// source where debug information allows it.
func WriteListing(ctx context.Context, w io.Writer, r toolchain.Runner, objdump string, img *image.Image) error {
	res, err := r.Run(ctx, toolchain.Command{
		Path: objdump,
		Args: []string{"-d", "-S", img.Path},
	})
	if err != nil {
		return &ListingError{Tool: objdump, Output: string(res.Combined()), Err: err}
	}
	_, err = w.Write(res.Stdout)
	return err
}

// ListingError is returned when the disassembler fails.
type ListingError struct {
	Tool   string
	Output string
	Err    error
}

func (e *ListingError) Error() string {
	s := e.Tool + ": " + e.Err.Error()
	if out := strings.TrimSpace(e.Output); out != "" {
		s += "\n" + out
	}
	return s
}

func (e *ListingError) Unwrap() error { return e.Err }

// Deriver writes all artifacts of an image.
type Deriver struct {
	Layout  *layout.Layout
	Objdump string
	Runner  toolchain.Runner
}

// DeriveAll writes every artifact of img to the paths of set. Each file is
// replaced only when its content is complete. If any artifact cannot be
// derived the whole set is removed, so no file of an older image remains.
func (d *Deriver) DeriveAll(ctx context.Context, img *image.Image, set Set) error {
	if err := d.derive(ctx, img, set); err != nil {
		set.Remove()
		return err
	}
	return nil
}

func (d *Deriver) derive(ctx context.Context, img *image.Image, set Set) error {
	steps := []struct {
		path  string
		write func(w io.Writer) error
	}{
		{set.Bin, func(w io.Writer) error { return WriteBin(w, img) }},
		{set.Hex, func(w io.Writer) error { return WriteHex(w, img) }},
		{set.Size, func(w io.Writer) error { return WriteSize(w, img, d.Layout) }},
		{set.Listing, func(w io.Writer) error {
			return WriteListing(ctx, w, d.Runner, d.Objdump, img)
		}},
	}
	for _, s := range steps {
		if s.path == "" {
			continue
		}
		var b bytes.Buffer
		if err := s.write(&b); err != nil {
			return err
		}
		if err := writeFile(s.path, b.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(name string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return err
	}
	tmp := name + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, name); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
