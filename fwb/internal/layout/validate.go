// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package layout

import (
	"fmt"
	"math/bits"
)

func pow2(n uint64) bool { return n == 0 || bits.OnesCount64(n) == 1 }

// Validate checks the layout invariants. It returns the first violation as
// an *Error.
func (l *Layout) Validate() error {
	if len(l.Regions) == 0 {
		return &Error{Err: ErrNoRegions}
	}
	names := make(map[string]bool)
	for i, r := range l.Regions {
		switch {
		case r.Name == "":
			return &Error{Err: ErrBadRegion, Detail: fmt.Sprintf("region %d has no name", i)}
		case names[r.Name]:
			return &Error{Region: r.Name, Err: ErrDuplicate}
		case r.Length == 0:
			return &Error{Region: r.Name, Err: ErrBadRegion, Detail: "zero length"}
		case r.End() < r.Origin:
			return &Error{Region: r.Name, Err: ErrBadRegion, Detail: "wraps around the address space"}
		}
		names[r.Name] = true
		for _, o := range l.Regions[:i] {
			if r.overlaps(o) {
				return &Error{Region: r.Name, Err: ErrOverlap, Detail: "with " + o.Name}
			}
		}
	}
	for _, name := range []string{l.Flash, l.RAM} {
		if !names[name] {
			return &Error{Region: name, Err: ErrUnknownRegion}
		}
	}
	if ram, _ := l.Region(l.RAM); ram.Access&Write == 0 {
		return &Error{Region: l.RAM, Err: ErrBadRegion, Detail: "RAM is not writable"}
	}
	for _, s := range []string{l.Entry, l.HeapStart, l.StackTop} {
		if s == "" {
			return &Error{Err: ErrBoundary, Detail: "entry, heap start and stack top symbols are required"}
		}
	}

	symbols := map[string]bool{l.HeapStart: true, l.StackTop: true}
	sections := make(map[string]bool)
	counts := make(map[Kind]int)
	firstInFlash := -1
	lastInRAM := -1
	for i := range l.Rules {
		r := &l.Rules[i]
		if err := l.validateRule(r, names); err != nil {
			return err
		}
		if sections[r.Section] {
			return &Error{Rule: r.Section, Err: ErrDuplicate}
		}
		sections[r.Section] = true
		for _, s := range []string{r.Start, r.End, r.LoadStart} {
			if s == "" {
				continue
			}
			if symbols[s] {
				return &Error{Rule: r.Section, Err: ErrDuplicate, Detail: "symbol " + s}
			}
			symbols[s] = true
		}
		counts[r.Kind]++
		if r.Region == l.Flash && firstInFlash < 0 {
			firstInFlash = i
		}
		if r.Region == l.RAM {
			lastInRAM = i
		}
	}

	if firstInFlash < 0 || l.Rules[firstInFlash].Kind != Vectors || !l.Rules[firstInFlash].Keep {
		return &Error{Region: l.Flash, Err: ErrVectorsOrder}
	}
	if counts[Vectors] != 1 {
		return &Error{Region: l.Flash, Err: ErrVectorsOrder, Detail: "exactly one vector table rule is allowed"}
	}
	for _, k := range []Kind{InitArray, FiniArray} {
		if counts[k] > 1 {
			return &Error{Err: ErrDuplicate, Detail: "more than one " + k.String() + " rule"}
		}
	}
	if counts[BSS] != 1 {
		return &Error{Err: ErrBSS, Detail: "exactly one bss rule is required"}
	}
	if l.Rules[lastInRAM].Kind != BSS {
		return &Error{Rule: l.Rules[lastInRAM].Section, Err: ErrBSS, Detail: "bss must be the last rule in " + l.RAM}
	}
	return nil
}

func (l *Layout) validateRule(r *Rule, regions map[string]bool) error {
	switch {
	case r.Section == "":
		return &Error{Err: ErrIncompleteRule, Detail: "no output section name"}
	case len(r.Inputs) == 0:
		return &Error{Rule: r.Section, Err: ErrIncompleteRule, Detail: "no input sections"}
	case !regions[r.Region]:
		return &Error{Rule: r.Section, Region: r.Region, Err: ErrUnknownRegion}
	case r.LoadRegion != "" && !regions[r.LoadRegion]:
		return &Error{Rule: r.Section, Region: r.LoadRegion, Err: ErrUnknownRegion}
	case r.LoadStart != "" && r.LoadRegion == "":
		return &Error{Rule: r.Section, Err: ErrIncompleteRule, Detail: "load symbol without load region"}
	case !pow2(r.Align) || !pow2(r.EndAlign):
		return &Error{Rule: r.Section, Err: ErrAlign}
	}
	switch r.Kind {
	case Vectors:
		if r.LoadRegion != "" || r.NoLoad {
			return &Error{Rule: r.Section, Err: ErrVectorsOrder, Detail: "vector table must be loaded in place"}
		}
	case InitArray, FiniArray:
		if !r.Keep || !r.Sort {
			return &Error{Rule: r.Section, Err: ErrBoundary, Detail: r.Kind.String() + " must be kept and sorted"}
		}
		if r.Start == "" || r.End == "" {
			return &Error{Rule: r.Section, Err: ErrBoundary}
		}
	case BSS:
		if !r.NoLoad {
			return &Error{Rule: r.Section, Err: ErrBSS, Detail: "bss must not be loaded"}
		}
		if r.EndAlign < 8 {
			return &Error{Rule: r.Section, Err: ErrBSS, Detail: "bss end must be 8-byte aligned"}
		}
		if r.Region != l.RAM || r.LoadRegion != "" {
			return &Error{Rule: r.Section, Region: r.Region, Err: ErrBSS, Detail: "bss must be placed in " + l.RAM}
		}
	case Text, Rodata, Extab, Exidx, Data:
	default:
		return &Error{Rule: r.Section, Err: ErrIncompleteRule, Detail: "unknown kind"}
	}
	return nil
}
