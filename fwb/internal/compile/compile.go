// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package compile turns stale source files into object files.
package compile

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/embeddedgo/fwbuild/fwb/internal/deps"
	"github.com/embeddedgo/fwbuild/fwb/internal/source"
	"github.com/embeddedgo/fwbuild/fwb/internal/target"
	"github.com/embeddedgo/fwbuild/fwb/internal/toolchain"
)

// Options configure a Compiler.
type Options struct {
	SourceRoot string // absolute
	ObjDir     string // absolute, mirrors SourceRoot
	Target     *target.Config
	Toolchain  toolchain.Toolchain
	Includes   []string
	Defines    []string
	CFlags     []string // C and C++
	CXXFlags   []string // C++ only
	ASFlags    []string // assembly only
	Workers    int
	Runner     toolchain.Runner
	Store      *deps.Store
	Log        zerolog.Logger
}

// Object is a compiled source file.
type Object struct {
	Path    string
	Source  source.File
	ModTime time.Time
	Rebuilt bool
}

type Compiler struct {
	opts Options
}

func New(opts Options) *Compiler {
	if opts.Workers < 1 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Runner == nil {
		opts.Runner = toolchain.ExecRunner{}
	}
	if opts.Store == nil {
		opts.Store = new(deps.Store)
	}
	return &Compiler{opts}
}

// ObjectPath returns the path of the object file of f.
func (c *Compiler) ObjectPath(f source.File) string {
	return filepath.Join(c.opts.ObjDir, filepath.FromSlash(f.Path)+".o")
}

func (c *Compiler) sourcePath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.opts.SourceRoot, filepath.FromSlash(name))
}

// Stale reports whether f must be compiled and why.
func (c *Compiler) Stale(f source.File) (bool, string, error) {
	obj := c.ObjectPath(f)
	oi, err := os.Stat(obj)
	if errors.Is(err, fs.ErrNotExist) {
		return true, "no object", nil
	}
	if err != nil {
		return false, "", err
	}
	si, err := os.Stat(c.sourcePath(f.Path))
	if err != nil {
		return false, "", err
	}
	if si.ModTime().After(oi.ModTime()) {
		return true, "source changed", nil
	}
	headers, err := deps.Read(obj)
	if errors.Is(err, fs.ErrNotExist) {
		return true, "no dependency record", nil
	}
	if err != nil {
		return true, "bad dependency record", nil
	}
	for _, h := range headers {
		hi, err := os.Stat(c.sourcePath(h))
		if err != nil {
			return true, h + " missing", nil
		}
		if hi.ModTime().After(oi.ModTime()) {
			return true, h + " changed", nil
		}
	}
	return false, "", nil
}

// Command returns the command that compiles f into obj writing the
// dependencies of C and C++ files to dep.
func (c *Compiler) Command(f source.File, obj, dep string) toolchain.Command {
	o := &c.opts
	cc := o.Toolchain.CC
	if f.Kind == source.CXX {
		cc = o.Toolchain.CXX
	}
	args := append([]string{}, o.Target.MachineFlags()...)
	args = append(args, "-ffunction-sections", "-fdata-sections")
	if f.Kind != source.Asm {
		args = append(args, "-MD", "-MF", dep)
	} else {
		args = append(args, "-x", "assembler-with-cpp")
	}
	for _, d := range o.Target.Defines {
		args = append(args, "-D"+d)
	}
	for _, d := range o.Defines {
		args = append(args, "-D"+d)
	}
	args = append(args, "-I"+o.Target.SDKRoot)
	for _, inc := range o.Includes {
		args = append(args, "-I"+inc)
	}
	switch f.Kind {
	case source.Asm:
		args = append(args, o.ASFlags...)
	case source.C:
		args = append(args, o.CFlags...)
	case source.CXX:
		args = append(args, o.CFlags...)
		args = append(args, o.CXXFlags...)
	}
	args = append(args, "-c", filepath.FromSlash(f.Path), "-o", obj)
	return toolchain.Command{Path: cc, Args: args, Dir: o.SourceRoot}
}

// Build compiles f if it is stale. On failure the previous object file and
// its dependency record are left in place.
func (c *Compiler) Build(ctx context.Context, f source.File) (Object, error) {
	obj := c.ObjectPath(f)
	unlock := c.opts.Store.Lock(obj)
	defer unlock()

	stale, reason, err := c.Stale(f)
	if err != nil {
		return Object{}, &Error{Source: f, Err: err}
	}
	if stale {
		c.opts.Log.Debug().Str("src", f.Path).Str("reason", reason).Msg("compile")
		if err := c.compile(ctx, f, obj); err != nil {
			return Object{}, err
		}
	}
	oi, err := os.Stat(obj)
	if err != nil {
		return Object{}, &Error{Source: f, Err: err}
	}
	return Object{Path: obj, Source: f, ModTime: oi.ModTime(), Rebuilt: stale}, nil
}

func (c *Compiler) compile(ctx context.Context, f source.File, obj string) error {
	if err := os.MkdirAll(filepath.Dir(obj), 0o755); err != nil {
		return &Error{Source: f, Err: err}
	}
	var (
		tmpObj    = obj + ".tmp"
		tmpGCCDep = obj + ".gcc.d"
		tmpDep    = deps.Path(obj) + ".tmp"
	)
	defer os.Remove(tmpGCCDep)
	fail := func(err error, out []byte) error {
		os.Remove(tmpObj)
		os.Remove(tmpDep)
		return &Error{Source: f, Output: string(out), Err: err}
	}
	res, err := c.opts.Runner.Run(ctx, c.Command(f, tmpObj, tmpGCCDep))
	if err != nil {
		return fail(err, res.Combined())
	}
	if _, err := os.Stat(tmpObj); err != nil {
		return fail(errors.New("compiler produced no object file"), res.Combined())
	}
	var headers []string
	if f.Kind != source.Asm {
		r, err := os.Open(tmpGCCDep)
		if err != nil {
			return fail(errors.Wrap(err, "read dependencies"), nil)
		}
		_, prereqs, err := deps.Parse(r)
		r.Close()
		if err != nil {
			return fail(err, nil)
		}
		src := filepath.Clean(filepath.FromSlash(f.Path))
		for _, p := range prereqs {
			if filepath.Clean(filepath.FromSlash(p)) != src {
				headers = append(headers, p)
			}
		}
	}
	if err := deps.Write(tmpDep, obj, headers); err != nil {
		return fail(err, nil)
	}
	if err := os.Rename(tmpObj, obj); err != nil {
		return fail(err, nil)
	}
	if err := os.Rename(tmpDep, deps.Path(obj)); err != nil {
		// The object is newer than anything else but its record is gone.
		// Removing the object forces the next build to redo it.
		os.Remove(obj)
		return fail(err, nil)
	}
	return nil
}

// BuildAll builds all files using up to Workers parallel tasks. A failed
// file does not stop the others. All failures are returned as Errors.
func (c *Compiler) BuildAll(ctx context.Context, files []source.File) ([]Object, error) {
	var (
		g      errgroup.Group
		mu     sync.Mutex
		failed Errors
	)
	objs := make([]Object, len(files))
	g.SetLimit(c.opts.Workers)
	for i, f := range files {
		g.Go(func() error {
			o, err := c.Build(ctx, f)
			if err != nil {
				var ce *Error
				if !errors.As(err, &ce) {
					ce = &Error{Source: f, Err: err}
				}
				mu.Lock()
				failed = append(failed, ce)
				mu.Unlock()
				return nil
			}
			objs[i] = o
			return nil
		})
	}
	g.Wait()
	if len(failed) != 0 {
		sort.Slice(failed, func(i, j int) bool {
			return failed[i].Source.Path < failed[j].Source.Path
		})
		return nil, failed
	}
	return objs, nil
}

// Rebuilt returns the sources of the objects that were compiled.
func Rebuilt(objs []Object) []string {
	var names []string
	for _, o := range objs {
		if o.Rebuilt {
			names = append(names, o.Source.Path)
		}
	}
	return names
}
