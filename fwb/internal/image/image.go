// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package image describes the linked executable image.
package image

import (
	"debug/elf"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type Section struct {
	Name   string
	Addr   uint64 // address in the memory during execution
	Paddr  uint64 // phisical location of the section in the Flash/ROM
	Size   uint64
	Offset uint64 // offset in the ELF file to the beggining of the section data
	Load   bool   // section occupies space in the programmable image
	Data   []byte // section data, nil if !Load
}

// End returns the first address after the section.
func (s *Section) End() uint64 { return s.Addr + s.Size }

type Sections []*Section

// Image is the linked program.
type Image struct {
	Path     string
	Entry    uint64
	Sections Sections
	Symbols  map[string]uint64
}

// Symbol returns the value of the named symbol.
func (img *Image) Symbol(name string) (uint64, bool) {
	v, ok := img.Symbols[name]
	return v, ok
}

// ReadELF reads the allocatable sections and the symbol table of the
// program. Sections are returned in the ELF file order.
func ReadELF(name string) (*Image, error) {
	r, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, errors.Wrap(err, name)
	}
	defer f.Close()
	img := &Image{
		Path:     name,
		Entry:    f.Entry,
		Sections: make(Sections, 0, 16),
		Symbols:  make(map[string]uint64),
	}
	for _, s := range f.Sections {
		if s.Flags&elf.SHF_ALLOC == 0 || s.Size == 0 {
			continue
		}
		sec := &Section{
			Name:   s.Name,
			Addr:   s.Addr,
			Paddr:  s.Addr,
			Size:   s.Size,
			Offset: s.Offset,
		}
		if s.Type != elf.SHT_NOBITS {
			sec.Load = true
			if sec.Data, err = s.Data(); err != nil {
				return nil, errors.Wrap(err, s.Name)
			}
			for _, p := range f.Progs {
				if p.Type != elf.PT_LOAD {
					continue
				}
				if p.Off <= s.Offset && s.Offset < p.Off+p.Filesz {
					sec.Paddr = p.Paddr + s.Offset - p.Off
					break
				}
			}
		}
		img.Sections = append(img.Sections, sec)
	}
	syms, err := f.Symbols()
	if err != nil && !errors.Is(err, elf.ErrNoSymbols) {
		return nil, errors.Wrap(err, name)
	}
	for _, s := range syms {
		switch elf.ST_TYPE(s.Info) {
		case elf.STT_SECTION, elf.STT_FILE:
			continue
		}
		if s.Name != "" {
			img.Symbols[s.Name] = s.Value
		}
	}
	return img, nil
}

// ReadBins reads binary files described as FILE:ADDR and returns them as
// loadable sections placed at ADDR. Relative file names are relative to dir.
func ReadBins(dir string, descrs []string) (Sections, error) {
	ss := make(Sections, len(descrs))
	for k, ba := range descrs {
		i := strings.LastIndexByte(ba, ':')
		if i <= 0 {
			return nil, errors.Errorf("bad binary description '%s'", ba)
		}
		bin, addr := ba[:i], ba[i+1:]
		s := &Section{Name: filepath.Base(bin), Load: true}
		var err error
		s.Paddr, err = strconv.ParseUint(addr, 0, 64)
		if err != nil {
			return nil, errors.Errorf("bad address in '%s': %s", ba, err)
		}
		if !filepath.IsAbs(bin) {
			bin = filepath.Join(dir, bin)
		}
		s.Data, err = os.ReadFile(bin)
		if err != nil {
			return nil, err
		}
		s.Addr = s.Paddr
		s.Size = uint64(len(s.Data))
		ss[k] = s
	}
	return ss, nil
}

// With returns a copy of the image with the sections ss added.
func (img *Image) With(ss Sections) *Image {
	ni := *img
	ni.Sections = append(append(make(Sections, 0, len(img.Sections)+len(ss)), img.Sections...), ss...)
	return &ni
}

// Loadable returns a copy of the sections list that contains only the
// sections that are stored in the programmable image.
func (ss Sections) Loadable() Sections {
	ls := make(Sections, 0, len(ss))
	for _, s := range ss {
		if s.Load && len(s.Data) != 0 {
			ls = append(ls, s)
		}
	}
	return ls
}

// Size returns the number of data bytes in all loadable sections.
func (ss Sections) Size() int {
	n := 0
	for _, s := range ss {
		if s.Load {
			n += len(s.Data)
		}
	}
	return n
}

// SortByPaddr sorts sections according to the Paddr field.
func (ss Sections) SortByPaddr() {
	sort.SliceStable(
		ss,
		func(i, j int) bool {
			return ss[i].Paddr < ss[j].Paddr
		},
	)
}

// Flatten writes the data of the loadable sections to the provided io.Writer
// according to the Paddr field. The gaps between sections are filled using
// the pad byte. The receiver is not modified.
func (ss Sections) Flatten(w io.Writer, pad byte) (n int, err error) {
	ls := ss.Loadable()
	if len(ls) == 0 {
		return
	}
	ls.SortByPaddr()
	pa := ls[0].Paddr
	n, err = w.Write(ls[0].Data)
	if err != nil {
		return
	}
	pa += uint64(n)
	var padCache []byte
	for _, s := range ls[1:] {
		if s.Paddr < pa {
			err = errors.Errorf("flatten: section %s overlaps the previous one", s.Name)
			return
		}
		m := int(s.Paddr - pa)
		if m != 0 {
			m, err = w.Write(PadBytes(&padCache, m, pad))
			n += m
			if err != nil {
				return
			}
			pa += uint64(m)
		}
		m, err = w.Write(s.Data)
		n += m
		if err != nil {
			return
		}
		pa += uint64(m)
	}
	return
}

// PadBytes returns the slice containing n byte equal b.
func PadBytes(cache *[]byte, n int, b byte) []byte {
	if cache == nil {
		cache = new([]byte)
	}
	if len(*cache) < n {
		*cache = make([]byte, n)
		for i := range *cache {
			(*cache)[i] = b
		}
	}
	return (*cache)[:n]
}
