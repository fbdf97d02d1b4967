// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package layout describes how the linker places the program in the memory
// of the microcontroller. A Layout is an ordered list of memory regions and
// section rules. It is validated before use and rendered as a GNU ld
// script, so the script itself is never written by hand.
package layout

import (
	"strings"
)

// Access is the access class of a memory region.
type Access uint8

const (
	Read Access = 1 << iota
	Write
	Exec
)

func (a Access) String() string {
	var b strings.Builder
	if a&Read != 0 {
		b.WriteByte('r')
	}
	if a&Write != 0 {
		b.WriteByte('w')
	}
	if a&Exec != 0 {
		b.WriteByte('x')
	}
	return b.String()
}

type Region struct {
	Name   string
	Origin uint64
	Length uint64
	Access Access
}

// End returns the first address after the region.
func (r Region) End() uint64 { return r.Origin + r.Length }

// Contains reports whether addr belongs to the region.
func (r Region) Contains(addr uint64) bool {
	return addr >= r.Origin && addr < r.End()
}

func (r Region) overlaps(o Region) bool {
	return r.Origin < o.End() && o.Origin < r.End()
}

// Kind tells what a rule collects. Some kinds carry extra invariants.
type Kind uint8

const (
	Vectors Kind = iota + 1
	Text
	Rodata
	InitArray
	FiniArray
	Extab
	Exidx
	Data
	BSS
)

var kindNames = [...]string{
	Vectors:   "vectors",
	Text:      "text",
	Rodata:    "rodata",
	InitArray: "init array",
	FiniArray: "fini array",
	Extab:     "extab",
	Exidx:     "exidx",
	Data:      "data",
	BSS:       "bss",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "unknown"
}

// Rule places the input sections matching Inputs into the output section
// Section.
type Rule struct {
	Section    string
	Kind       Kind
	Region     string   // where the section lives at run time
	LoadRegion string   // where its initial contents are stored, if not Region
	Inputs     []string // input section name patterns
	Align      uint64   // alignment of the section start
	EndAlign   uint64   // alignment of the section end
	Keep       bool     // exempt from --gc-sections
	Sort       bool     // sort inputs by init priority
	NoLoad     bool     // zero filled, no space in the image
	Start      string   // symbol set to the section start
	End        string   // symbol set to the section end
	LoadStart  string   // symbol set to the load address
}

// Layout is the memory model of one target.
type Layout struct {
	Regions   []Region
	Rules     []Rule
	Flash     string // name of the flash region
	RAM       string // name of the RAM region
	Entry     string // entry point symbol
	HeapStart string // symbol marking the end of allocated RAM
	StackTop  string // symbol marking the initial stack pointer
}

// Region returns the named region.
func (l *Layout) Region(name string) (Region, bool) {
	for _, r := range l.Regions {
		if r.Name == name {
			return r, true
		}
	}
	return Region{}, false
}

// StackTopAddr returns the initial stack pointer: the end of the RAM region.
func (l *Layout) StackTopAddr() (uint64, error) {
	ram, ok := l.Region(l.RAM)
	if !ok {
		return 0, &Error{Region: l.RAM, Err: ErrUnknownRegion}
	}
	return ram.End(), nil
}

// Default returns the standard Cortex-M layout: vector table, code, read-only
// data, static constructors and destructors, unwind tables in flash, data
// loaded from flash to RAM and bss in RAM.
func Default(flashOrigin, flashLength, ramOrigin, ramLength uint64) *Layout {
	return &Layout{
		Regions: []Region{
			{Name: "FLASH", Origin: flashOrigin, Length: flashLength, Access: Read | Exec},
			{Name: "RAM", Origin: ramOrigin, Length: ramLength, Access: Read | Write | Exec},
		},
		Rules: []Rule{
			{
				Section: ".isr_vector", Kind: Vectors, Region: "FLASH",
				Inputs: []string{".isr_vector"}, Align: 4, Keep: true,
			},
			{
				Section: ".text", Kind: Text, Region: "FLASH",
				Inputs: []string{".text", ".text.*"}, Align: 4,
			},
			{
				Section: ".rodata", Kind: Rodata, Region: "FLASH",
				Inputs: []string{".rodata", ".rodata.*"}, Align: 4,
			},
			{
				Section: ".init_array", Kind: InitArray, Region: "FLASH",
				Inputs: []string{".init_array.*", ".init_array"}, Align: 4,
				Keep: true, Sort: true,
				Start: "__init_array_start", End: "__init_array_end",
			},
			{
				Section: ".fini_array", Kind: FiniArray, Region: "FLASH",
				Inputs: []string{".fini_array.*", ".fini_array"}, Align: 4,
				Keep: true, Sort: true,
				Start: "__fini_array_start", End: "__fini_array_end",
			},
			{
				Section: ".ARM.extab", Kind: Extab, Region: "FLASH",
				Inputs: []string{".ARM.extab*", ".gnu.linkonce.armextab.*"},
			},
			{
				Section: ".ARM.exidx", Kind: Exidx, Region: "FLASH",
				Inputs: []string{".ARM.exidx*", ".gnu.linkonce.armexidx.*"},
				Start: "__exidx_start", End: "__exidx_end",
			},
			{
				Section: ".data", Kind: Data, Region: "RAM", LoadRegion: "FLASH",
				Inputs: []string{".data", ".data.*"}, Align: 4, EndAlign: 4,
				Start: "_data", End: "_edata", LoadStart: "_ldata",
			},
			{
				Section: ".bss", Kind: BSS, Region: "RAM",
				Inputs: []string{".bss", ".bss.*", "COMMON"}, Align: 4, EndAlign: 8,
				NoLoad: true, Start: "_bss", End: "_ebss",
			},
		},
		Flash:     "FLASH",
		RAM:       "RAM",
		Entry:     "ResetISR",
		HeapStart: "end",
		StackTop:  "_stack_top",
	}
}
