// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package link

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind classifies a link failure.
type Kind int

const (
	Failed Kind = iota
	UnresolvedSymbol
	RegionOverflow
	BadSymbol
)

func (k Kind) String() string {
	switch k {
	case UnresolvedSymbol:
		return "unresolved symbol"
	case RegionOverflow:
		return "region overflow"
	case BadSymbol:
		return "bad boundary symbol"
	}
	return "link failed"
}

// Error is a LinkError.
type Error struct {
	Kind     Kind
	Symbols  []string // unresolved or misplaced symbols
	Region   string
	Overflow uint64 // bytes
	Detail   string
	Output   string // linker diagnostics
	Err      error
}

func (e *Error) Error() string {
	var s string
	switch e.Kind {
	case UnresolvedSymbol:
		s = "undefined reference to " + strings.Join(e.Symbols, ", ")
	case RegionOverflow:
		s = fmt.Sprintf("region %s overflowed by %d bytes", e.Region, e.Overflow)
	case BadSymbol:
		s = strings.Join(e.Symbols, ", ") + ": " + e.Detail
	default:
		s = "link failed"
		if e.Err != nil {
			s += ": " + e.Err.Error()
		}
		if out := strings.TrimSpace(e.Output); out != "" {
			s += "\n" + out
		}
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

var (
	undefinedRE = regexp.MustCompile("undefined reference to [`']([^']+)'")
	overflowRE  = regexp.MustCompile("region [`']([^']+)' overflowed by ([0-9]+) bytes")
)

// parseOutput classifies the diagnostics of a failed link.
func parseOutput(out []byte, err error) *Error {
	e := &Error{Kind: Failed, Output: string(out), Err: err}
	if m := overflowRE.FindSubmatch(out); m != nil {
		e.Kind = RegionOverflow
		e.Region = string(m[1])
		e.Overflow, _ = strconv.ParseUint(string(m[2]), 10, 64)
		return e
	}
	seen := make(map[string]bool)
	for _, m := range undefinedRE.FindAllSubmatch(out, -1) {
		sym := string(m[1])
		if !seen[sym] {
			seen[sym] = true
			e.Symbols = append(e.Symbols, sym)
		}
	}
	if len(e.Symbols) != 0 {
		e.Kind = UnresolvedSymbol
	}
	return e
}
