// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package exitcodes maps the error categories of fwb to process exit
// codes.
package exitcodes

import (
	"github.com/pkg/errors"

	"github.com/embeddedgo/fwbuild/fwb/internal/artifact"
	"github.com/embeddedgo/fwbuild/fwb/internal/compile"
	"github.com/embeddedgo/fwbuild/fwb/internal/flash"
	"github.com/embeddedgo/fwbuild/fwb/internal/layout"
	"github.com/embeddedgo/fwbuild/fwb/internal/link"
	"github.com/embeddedgo/fwbuild/fwb/internal/target"
)

const (
	Success      = 0
	GeneralError = 1

	// Codes 2 to 5 are commonly used by shells and flag parsers.

	ConfigError  = 6
	CompileError = 7
	LayoutError  = 8
	LinkError    = 9
	ToolError    = 10
)

// Classify returns the category name and the exit code of err.
func Classify(err error) (string, int) {
	if err == nil {
		return "", Success
	}
	var (
		ce  *target.ConfigError
		cpe compile.Errors
		cp1 *compile.Error
		le  *layout.Error
		lke *link.Error
		te  *flash.ToolError
		lse *artifact.ListingError
	)
	switch {
	case errors.As(err, &ce):
		return "config error", ConfigError
	case errors.As(err, &cpe), errors.As(err, &cp1):
		return "compile error", CompileError
	case errors.As(err, &le):
		return "layout error", LayoutError
	case errors.As(err, &lke):
		return "link error", LinkError
	case errors.As(err, &te), errors.As(err, &lse):
		return "tool error", ToolError
	}
	return "error", GeneralError
}
