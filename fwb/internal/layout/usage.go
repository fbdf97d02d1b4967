// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package layout

import "github.com/embeddedgo/fwbuild/fwb/internal/image"

// Usage describes how much of a region the image occupies.
type Usage struct {
	Region   Region
	Used     uint64   // bytes from the region origin to the end of the last section
	Sections []string // sections that run from or are stored in the region
}

// Overflow returns the number of bytes that do not fit in the region.
func (u Usage) Overflow() uint64 {
	if u.Used <= u.Region.Length {
		return 0
	}
	return u.Used - u.Region.Length
}

// Percent returns the used part of the region in percent.
func (u Usage) Percent() float64 {
	return float64(u.Used) * 100 / float64(u.Region.Length)
}

// Usage computes the occupancy of every region, in region order. A section
// counts in the region that contains its run time address and, if it is
// loaded from elsewhere, in the region that contains its load address.
func (l *Layout) Usage(ss image.Sections) []Usage {
	us := make([]Usage, len(l.Regions))
	for i, r := range l.Regions {
		us[i].Region = r
		end := r.Origin
		for _, s := range ss {
			in := false
			if r.Contains(s.Addr) {
				in = true
				end = max(end, s.Addr+s.Size)
			}
			if s.Load && s.Paddr != s.Addr && r.Contains(s.Paddr) {
				in = true
				end = max(end, s.Paddr+s.Size)
			}
			if in {
				us[i].Sections = append(us[i].Sections, s.Name)
			}
		}
		us[i].Used = end - r.Origin
	}
	return us
}

// BSSEnd returns the first address after the zero filled sections placed in
// the RAM region.
func (l *Layout) BSSEnd(ss image.Sections) uint64 {
	ram, _ := l.Region(l.RAM)
	end := ram.Origin
	for _, s := range ss {
		if !s.Load && ram.Contains(s.Addr) {
			end = max(end, s.End())
		}
	}
	return end
}
