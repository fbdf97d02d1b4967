// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package link links the object files into the executable image.
package link

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/embeddedgo/fwbuild/fwb/internal/compile"
	"github.com/embeddedgo/fwbuild/fwb/internal/image"
	"github.com/embeddedgo/fwbuild/fwb/internal/layout"
	"github.com/embeddedgo/fwbuild/fwb/internal/target"
	"github.com/embeddedgo/fwbuild/fwb/internal/toolchain"
)

// Libraries linked after the objects and the driver library.
var runtimeLibs = []string{"-Wl,--start-group", "-lm", "-lc", "-lgcc", "-Wl,--end-group"}

type Options struct {
	OutDir    string
	Name      string // base name of the image files
	Target    *target.Config
	Layout    *layout.Layout
	Toolchain toolchain.Toolchain
	LDFlags   []string
	Runner    toolchain.Runner
	Log       zerolog.Logger

	// ReadImage reads the linked file. The default is image.ReadELF.
	ReadImage func(name string) (*image.Image, error)
}

// Result is the outcome of Link.
type Result struct {
	Image    *image.Image
	Relinked bool // false if the previous image was up to date
}

type Linker struct {
	opts Options
}

func New(opts Options) *Linker {
	if opts.Runner == nil {
		opts.Runner = toolchain.ExecRunner{}
	}
	if opts.ReadImage == nil {
		opts.ReadImage = image.ReadELF
	}
	return &Linker{opts}
}

func (l *Linker) path(ext string) string {
	return filepath.Join(l.opts.OutDir, l.opts.Name+ext)
}

// ImagePath returns the path of the ELF image.
func (l *Linker) ImagePath() string { return l.path(".elf") }

// ScriptPath returns the path of the generated linker script.
func (l *Linker) ScriptPath() string { return l.path(".ld") }

// MapPath returns the path of the linker map file.
func (l *Linker) MapPath() string { return l.path(".map") }

// recordPath returns the path of the file that holds the command line of
// the last successful link.
func (l *Linker) recordPath() string { return l.path(".link") }

// WriteScript writes the linker script if its content differs from the
// file on disk, so an unchanged layout does not force a relink.
func (l *Linker) WriteScript() error {
	script := l.opts.Layout.Script()
	if old, err := os.ReadFile(l.ScriptPath()); err == nil && bytes.Equal(old, script) {
		return nil
	}
	return writeFile(l.ScriptPath(), script)
}

// Command returns the link command for the objects.
func (l *Linker) Command(objects []compile.Object) toolchain.Command {
	o := &l.opts
	args := append([]string{}, o.Target.MachineFlags()...)
	args = append(args,
		"-nostartfiles",
		"-T", l.ScriptPath(),
		"-Wl,--gc-sections",
		"-Wl,--entry="+o.Layout.Entry,
		"-Wl,-Map="+l.MapPath(),
	)
	args = append(args, o.LDFlags...)
	args = append(args, "-o", l.ImagePath()+".tmp")
	paths := make([]string, len(objects))
	for i, obj := range objects {
		paths[i] = obj.Path
	}
	sort.Strings(paths)
	args = append(args, paths...)
	if o.Target.DriverLibPath != "" {
		args = append(args, o.Target.DriverLibPath)
	}
	args = append(args, runtimeLibs...)
	return toolchain.Command{Path: o.Toolchain.CC, Args: args, Dir: o.OutDir}
}

// UpToDate reports whether the image on disk was linked by the same
// command from inputs that have not changed since.
func (l *Linker) UpToDate(objects []compile.Object) (bool, error) {
	ii, err := os.Stat(l.ImagePath())
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	rec, err := os.ReadFile(l.recordPath())
	if err != nil || string(rec) != l.Command(objects).String()+"\n" {
		return false, nil
	}
	for _, o := range objects {
		if o.ModTime.After(ii.ModTime()) {
			return false, nil
		}
	}
	for _, name := range []string{l.ScriptPath(), l.opts.Target.DriverLibPath} {
		if name == "" {
			continue
		}
		fi, err := os.Stat(name)
		if err != nil || fi.ModTime().After(ii.ModTime()) {
			return false, nil
		}
	}
	return true, nil
}

// Link validates the layout, links the objects and checks the result
// against the layout. The previous image is replaced only if all steps
// succeed.
func (l *Linker) Link(ctx context.Context, objects []compile.Object) (Result, error) {
	o := &l.opts
	if err := o.Layout.Validate(); err != nil {
		return Result{}, err
	}
	if len(objects) == 0 {
		return Result{}, &Error{Kind: Failed, Err: errors.New("no object files")}
	}
	if err := os.MkdirAll(o.OutDir, 0o755); err != nil {
		return Result{}, err
	}
	if err := l.WriteScript(); err != nil {
		return Result{}, err
	}
	ok, err := l.UpToDate(objects)
	if err != nil {
		return Result{}, err
	}
	if ok {
		img, err := o.ReadImage(l.ImagePath())
		if err != nil {
			return Result{}, err
		}
		o.Log.Debug().Str("elf", l.ImagePath()).Msg("image up to date")
		return Result{Image: img}, Check(img, o.Layout)
	}

	tmp := l.ImagePath() + ".tmp"
	cmd := l.Command(objects)
	o.Log.Debug().Str("cmd", cmd.String()).Msg("link")
	res, err := o.Runner.Run(ctx, cmd)
	if err != nil {
		os.Remove(tmp)
		return Result{}, parseOutput(res.Combined(), err)
	}
	img, err := o.ReadImage(tmp)
	if err != nil {
		os.Remove(tmp)
		return Result{}, &Error{Kind: Failed, Output: string(res.Combined()), Err: err}
	}
	if err := Check(img, o.Layout); err != nil {
		os.Remove(tmp)
		return Result{}, err
	}
	os.Remove(l.recordPath())
	if err := os.Rename(tmp, l.ImagePath()); err != nil {
		os.Remove(tmp)
		return Result{}, err
	}
	img.Path = l.ImagePath()
	if err := writeFile(l.recordPath(), []byte(cmd.String()+"\n")); err != nil {
		return Result{}, err
	}
	return Result{Image: img, Relinked: true}, nil
}

// Check verifies the linked image against the layout: no region is
// overflowed, the entry point is defined, the heap starts after bss and the
// stack starts at the top of RAM.
func Check(img *image.Image, l *layout.Layout) error {
	for _, u := range l.Usage(img.Sections) {
		if n := u.Overflow(); n != 0 {
			return &Error{Kind: RegionOverflow, Region: u.Region.Name, Overflow: n}
		}
	}
	if _, ok := img.Symbol(l.Entry); !ok {
		return &Error{Kind: UnresolvedSymbol, Symbols: []string{l.Entry}}
	}
	top, err := l.StackTopAddr()
	if err != nil {
		return err
	}
	if v, ok := img.Symbol(l.StackTop); !ok || v != top {
		return &Error{
			Kind:    BadSymbol,
			Symbols: []string{l.StackTop},
			Detail:  "must be the end of " + l.RAM,
		}
	}
	if v, ok := img.Symbol(l.HeapStart); !ok || v < l.BSSEnd(img.Sections) {
		return &Error{
			Kind:    BadSymbol,
			Symbols: []string{l.HeapStart},
			Detail:  "must not be below the end of bss",
		}
	}
	return nil
}

func writeFile(name string, data []byte) error {
	tmp := name + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, name); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
