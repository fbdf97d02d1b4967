// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package layout

import "github.com/pkg/errors"

var (
	ErrNoRegions      = errors.New("no memory regions")
	ErrBadRegion      = errors.New("bad memory region")
	ErrOverlap        = errors.New("overlapping memory regions")
	ErrUnknownRegion  = errors.New("unknown memory region")
	ErrVectorsOrder   = errors.New("vector table must be the first kept rule in flash")
	ErrBoundary       = errors.New("missing boundary symbols")
	ErrBSS            = errors.New("bad bss placement")
	ErrAlign          = errors.New("alignment is not a power of two")
	ErrDuplicate      = errors.New("duplicate name")
	ErrIncompleteRule = errors.New("incomplete rule")
)

// Error reports an invalid layout.
type Error struct {
	Rule   string // output section, if the error concerns a rule
	Region string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	s := "layout"
	if e.Rule != "" {
		s += ": " + e.Rule
	}
	if e.Region != "" {
		s += ": " + e.Region
	}
	s += ": " + e.Err.Error()
	if e.Detail != "" {
		s += " (" + e.Detail + ")"
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }
