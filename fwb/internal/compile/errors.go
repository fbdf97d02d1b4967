// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compile

import (
	"strings"

	"github.com/embeddedgo/fwbuild/fwb/internal/source"
)

// Error is a failed compilation of a single source file. Output holds the
// diagnostics of the compiler.
type Error struct {
	Source source.File
	Output string
	Err    error
}

func (e *Error) Error() string {
	s := e.Source.Path + ": " + e.Err.Error()
	if out := strings.TrimSpace(e.Output); out != "" {
		s += "\n" + out
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Errors are all compile failures of one build.
type Errors []*Error

func (es Errors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "\n")
}

func (es Errors) Unwrap() []error {
	errs := make([]error, len(es))
	for i, e := range es {
		errs[i] = e
	}
	return errs
}
