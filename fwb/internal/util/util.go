// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package util

import (
	"fmt"
	"io"
	"os"

	"github.com/embeddedgo/fwbuild/fwb/internal/exitcodes"
)

func Warn(f string, args ...any) {
	fmt.Fprintf(os.Stderr, f+"\n", args...)
}

// Describe returns the line printed for a fatal error: the error category
// followed by the message.
func Describe(err error) (string, int) {
	cat, code := exitcodes.Classify(err)
	return cat + ": " + err.Error() + "\n", code
}

// FatalErr prints the category and the description of err to w and exits
// the program with the exit code of the category. It does nothing if err is
// nil.
func FatalErr(w io.Writer, err error) {
	if err == nil {
		return
	}
	s, code := Describe(err)
	io.WriteString(w, s)
	os.Exit(code)
}
