// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package session runs the build pipeline for one project configuration.
package session

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/embeddedgo/fwbuild/fwb/internal/artifact"
	"github.com/embeddedgo/fwbuild/fwb/internal/compile"
	"github.com/embeddedgo/fwbuild/fwb/internal/config"
	"github.com/embeddedgo/fwbuild/fwb/internal/deps"
	"github.com/embeddedgo/fwbuild/fwb/internal/flash"
	"github.com/embeddedgo/fwbuild/fwb/internal/image"
	"github.com/embeddedgo/fwbuild/fwb/internal/layout"
	"github.com/embeddedgo/fwbuild/fwb/internal/link"
	"github.com/embeddedgo/fwbuild/fwb/internal/source"
	"github.com/embeddedgo/fwbuild/fwb/internal/target"
	"github.com/embeddedgo/fwbuild/fwb/internal/toolchain"
)

// Session owns the resolved configuration of a build and every component
// that uses it.
type Session struct {
	cfg       config.Config
	root      string
	out       string
	name      string
	target    *target.Config
	layout    *layout.Layout
	tools     toolchain.Toolchain
	runner    toolchain.Runner
	readImage func(string) (*image.Image, error)
	log       zerolog.Logger

	compiler *compile.Compiler
	linker   *link.Linker
	deriver  *artifact.Deriver
}

type Option func(*Session)

// WithRunner replaces the runner of the external tools.
func WithRunner(r toolchain.Runner) Option { return func(s *Session) { s.runner = r } }

// WithImageReader replaces the ELF reader.
func WithImageReader(f func(string) (*image.Image, error)) Option {
	return func(s *Session) { s.readImage = f }
}

func WithLogger(log zerolog.Logger) Option { return func(s *Session) { s.log = log } }

// PartTable returns the built-in part table preceded by the table named in
// the configuration, if any.
func PartTable(cfg *config.Config) (*target.Table, error) {
	t := target.Builtin()
	if cfg.Parts == "" {
		return t, nil
	}
	u, err := target.LoadTable(cfg.Parts)
	if err != nil {
		return nil, err
	}
	t = t.Prepend(u)
	if err := t.Check(); err != nil {
		return nil, errors.Wrap(err, cfg.Parts)
	}
	return t, nil
}

// dirs returns the absolute source root and output directory of cfg and
// the image name.
func dirs(cfg *config.Config) (root, out, name string, err error) {
	if root, err = filepath.Abs(cfg.Root); err != nil {
		return "", "", "", err
	}
	out = cfg.OutDir
	if !filepath.IsAbs(out) {
		out = filepath.Join(root, out)
	}
	out = filepath.Clean(out)
	if name = cfg.Name; name == "" {
		name = filepath.Base(root)
	}
	return root, out, name, nil
}

// New resolves the target and the memory layout of cfg. Relative OutDir is
// relative to Root.
func New(cfg *config.Config, opts ...Option) (*Session, error) {
	s := &Session{
		cfg:    *cfg,
		runner: toolchain.ExecRunner{},
		log:    zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	var err error
	if s.root, s.out, s.name, err = dirs(cfg); err != nil {
		return nil, err
	}

	table, err := PartTable(cfg)
	if err != nil {
		return nil, err
	}
	s.target, err = table.Resolve(cfg.Part, target.Options{
		Platform: cfg.Platform,
		SDKRoot:  cfg.SDKRoot,
	})
	if err != nil {
		return nil, err
	}
	t := s.target
	s.layout = layout.Default(t.Flash.Origin, t.Flash.Length, t.RAM.Origin, t.RAM.Length)
	if err := s.layout.Validate(); err != nil {
		return nil, err
	}
	s.tools = cfg.Toolchain.Tools()
	s.log.Debug().
		Str("part", t.Part).
		Str("family", t.Family).
		Str("cpu", t.CPU).
		Bool("fpu", t.HasFPU()).
		Str("driverlib", t.DriverLib).
		Str("sdk", t.SDKRoot).
		Msg("target")

	s.compiler = compile.New(compile.Options{
		SourceRoot: s.root,
		ObjDir:     filepath.Join(s.out, "obj"),
		Target:     t,
		Toolchain:  s.tools,
		Includes:   cfg.Includes,
		Defines:    cfg.Defines,
		CFlags:     cfg.CFlags,
		CXXFlags:   cfg.CXXFlags,
		ASFlags:    cfg.ASFlags,
		Workers:    cfg.Workers,
		Runner:     s.runner,
		Store:      new(deps.Store),
		Log:        s.log,
	})
	s.linker = link.New(link.Options{
		OutDir:    s.out,
		Name:      s.name,
		Target:    t,
		Layout:    s.layout,
		Toolchain: s.tools,
		LDFlags:   cfg.LDFlags,
		Runner:    s.runner,
		Log:       s.log,
		ReadImage: s.readImage,
	})
	s.deriver = &artifact.Deriver{
		Layout:  s.layout,
		Objdump: s.tools.Objdump,
		Runner:  s.runner,
	}
	return s, nil
}

// Target returns the resolved target configuration.
func (s *Session) Target() *target.Config { return s.target }

// Layout returns the memory layout of the target.
func (s *Session) Layout() *layout.Layout { return s.layout }

// OutDir returns the absolute output directory.
func (s *Session) OutDir() string { return s.out }

// Artifacts returns the paths of the derived files.
func (s *Session) Artifacts() artifact.Set { return artifact.Paths(s.out, s.name) }

// Result describes a finished build.
type Result struct {
	Image     *image.Image
	Artifacts artifact.Set
	Rebuilt   []string // compiled sources
	Relinked  bool
	Usage     []layout.Usage
}

func (s *Session) exclude() []string {
	ex := append([]string{}, s.cfg.Exclude...)
	if rel, err := filepath.Rel(s.root, s.out); err == nil && !strings.HasPrefix(rel, "..") {
		ex = append(ex, filepath.ToSlash(rel))
	}
	return ex
}

// Build compiles the stale sources, links the image if any input changed
// and derives the artifacts.
func (s *Session) Build(ctx context.Context) (*Result, error) {
	files, err := source.Discover(s.root, s.exclude()...)
	if err != nil {
		return nil, err
	}
	s.log.Debug().Int("files", len(files)).Str("root", s.root).Msg("sources")
	objs, err := s.compiler.BuildAll(ctx, files)
	if err != nil {
		return nil, err
	}
	res := &Result{Artifacts: s.Artifacts(), Rebuilt: compile.Rebuilt(objs)}
	lr, err := s.linker.Link(ctx, objs)
	if err != nil {
		return nil, err
	}
	res.Image, res.Relinked = lr.Image, lr.Relinked
	if len(s.cfg.Embed) != 0 {
		bins, err := image.ReadBins(s.root, s.cfg.Embed)
		if err != nil {
			return nil, err
		}
		res.Image = res.Image.With(bins)
		if err := link.Check(res.Image, s.layout); err != nil {
			return nil, err
		}
	}
	res.Usage = s.layout.Usage(res.Image.Sections)
	current, err := res.Artifacts.Current(res.Image.Path)
	if err != nil {
		return nil, err
	}
	if res.Relinked || len(s.cfg.Embed) != 0 || !current {
		if err := s.deriver.DeriveAll(ctx, res.Image, res.Artifacts); err != nil {
			return nil, err
		}
	}
	ev := s.log.Info().
		Int("compiled", len(res.Rebuilt)).
		Bool("linked", res.Relinked).
		Int("bytes", res.Image.Sections.Size())
	for _, u := range res.Usage {
		ev = ev.Uint64(strings.ToLower(u.Region.Name), u.Used)
	}
	ev.Msg(filepath.Base(res.Image.Path))
	return res, nil
}

// Clean removes the output directory with all objects, dependency records
// and artifacts. The source tree is never touched.
func (s *Session) Clean() error { return clean(s.root, s.out, s.log) }

// Clean removes the output directory of cfg. Unlike Session.Clean it does
// not resolve the target, so it works for a missing or unknown part.
func Clean(cfg *config.Config, log zerolog.Logger) error {
	root, out, _, err := dirs(cfg)
	if err != nil {
		return err
	}
	return clean(root, out, log)
}

func clean(root, out string, log zerolog.Logger) error {
	rel, err := filepath.Rel(out, root)
	if err != nil {
		return err
	}
	if rel == "." || !strings.HasPrefix(rel, "..") {
		return errors.Errorf("refusing to remove %s: it contains the source tree", out)
	}
	log.Debug().Str("dir", out).Msg("clean")
	return os.RemoveAll(out)
}

// Flash builds the image and writes it to the device.
func (s *Session) Flash(ctx context.Context) error {
	res, err := s.Build(ctx)
	if err != nil {
		return err
	}
	s.log.Info().Str("tool", s.cfg.Flash.Tool).Str("bin", res.Artifacts.Bin).Msg("flash")
	return flash.Flash(ctx, s.runner, s.cfg.Flash.Tool, s.cfg.Flash.Flags, res.Artifacts.Bin)
}

// DebugScriptPath returns the path of the gdb command file.
func (s *Session) DebugScriptPath() string {
	return filepath.Join(s.out, s.name+".gdbinit")
}

// Debug builds the image, writes the gdb command file and runs an
// interactive debug session.
func (s *Session) Debug(ctx context.Context) error {
	res, err := s.Build(ctx)
	if err != nil {
		return err
	}
	script := s.DebugScriptPath()
	if err := flash.WriteDebugScript(script, res.Image.Path, s.cfg.Debug.Endpoint); err != nil {
		return err
	}
	return flash.Debug(ctx, s.runner, flash.DebugOptions{
		GDB:    s.tools.GDB,
		Script: script,
		Server: s.cfg.Debug.Server,
	})
}
