// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package artifact

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/embeddedgo/fwbuild/fwb/internal/image"
	"github.com/embeddedgo/fwbuild/fwb/internal/layout"
)

// WriteSize writes the size report: the occupancy of every memory region
// followed by the address and size of every section.
func WriteSize(w io.Writer, img *image.Image, l *layout.Layout) error {
	var b bytes.Buffer

	rt := newTable(&b, "REGION", "ORIGIN", "USED", "LENGTH", "USE%")
	for _, u := range l.Usage(img.Sections) {
		rt.Append([]string{
			u.Region.Name,
			hex(u.Region.Origin),
			strconv.FormatUint(u.Used, 10),
			strconv.FormatUint(u.Region.Length, 10),
			fmt.Sprintf("%.2f%%", u.Percent()),
		})
	}
	rt.Render()
	b.WriteByte('\n')

	st := newTable(&b, "SECTION", "ADDR", "LOAD", "SIZE", "REGION")
	for _, s := range img.Sections {
		load := "-"
		if s.Load {
			load = hex(s.Paddr)
		}
		st.Append([]string{
			s.Name,
			hex(s.Addr),
			load,
			strconv.FormatUint(s.Size, 10),
			regionOf(l, s.Addr),
		})
	}
	st.Render()

	_, err := w.Write(b.Bytes())
	return err
}

// FormatSize returns the size report as a string.
func FormatSize(img *image.Image, l *layout.Layout) string {
	var b bytes.Buffer
	WriteSize(&b, img, l)
	return b.String()
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetHeader(header)
	t.SetAutoFormatHeaders(false)
	t.SetAutoWrapText(false)
	t.SetAlignment(tablewriter.ALIGN_RIGHT)
	t.SetBorder(false)
	return t
}

func hex(v uint64) string { return fmt.Sprintf("0x%08x", v) }

func regionOf(l *layout.Layout, addr uint64) string {
	for _, r := range l.Regions {
		if r.Contains(addr) {
			return r.Name
		}
	}
	return "-"
}
