// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package source enumerates the source files of a firmware project.
package source

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
)

type Kind uint8

const (
	Asm Kind = iota + 1
	C
	CXX
)

func (k Kind) String() string {
	switch k {
	case Asm:
		return "asm"
	case C:
		return "c"
	case CXX:
		return "c++"
	}
	return "unknown"
}

var kinds = map[string]Kind{
	".s":   Asm,
	".S":   Asm,
	".c":   C,
	".cc":  CXX,
	".cpp": CXX,
	".cxx": CXX,
}

// KindOf returns the kind of the named file.
func KindOf(name string) (Kind, bool) {
	k, ok := kinds[filepath.Ext(name)]
	return k, ok
}

// File is a source file. Path is relative to the source root and uses
// forward slashes.
type File struct {
	Path string
	Kind Kind
}

// Discover returns all source files found under root, sorted by path.
// Directories and files whose relative path matches one of the exclude
// patterns (doublestar syntax) are skipped, as are hidden directories.
func Discover(root string, exclude ...string) ([]File, error) {
	for _, p := range exclude {
		if !doublestar.ValidatePattern(p) {
			return nil, errors.Errorf("bad exclude pattern %q", p)
		}
	}
	excluded := func(rel string) bool {
		for _, p := range exclude {
			if ok, _ := doublestar.Match(p, rel); ok {
				return true
			}
		}
		return false
	}
	seen := make(map[string]bool)
	var files []File
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") || excluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		k, ok := KindOf(rel)
		if !ok || excluded(rel) || seen[rel] {
			return nil
		}
		seen[rel] = true
		files = append(files, File{Path: rel, Kind: k})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "discover sources")
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}
