// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package layout

import (
	"bytes"
	"fmt"
	"io"
)

// WriteScript writes the GNU ld script of the layout. The output depends
// only on the layout.
func (l *Layout) WriteScript(w io.Writer) error {
	var b bytes.Buffer
	b.WriteString("/* Generated by fwb. DO NOT EDIT. */\n\n")
	b.WriteString("MEMORY\n{\n")
	for _, r := range l.Regions {
		fmt.Fprintf(&b, "    %s (%s) : ORIGIN = 0x%08x, LENGTH = 0x%08x\n", r.Name, r.Access, r.Origin, r.Length)
	}
	b.WriteString("}\n\n")
	fmt.Fprintf(&b, "ENTRY(%s)\n\n", l.Entry)
	b.WriteString("SECTIONS\n{\n")
	for i := range l.Rules {
		writeRule(&b, &l.Rules[i])
	}
	fmt.Fprintf(&b, "    . = ALIGN(8);\n")
	fmt.Fprintf(&b, "    %s = .;\n", l.HeapStart)
	fmt.Fprintf(&b, "    %s = ORIGIN(%s) + LENGTH(%s);\n", l.StackTop, l.RAM, l.RAM)
	b.WriteString("}\n")
	_, err := w.Write(b.Bytes())
	return err
}

// Script returns the GNU ld script of the layout.
func (l *Layout) Script() []byte {
	var b bytes.Buffer
	l.WriteScript(&b)
	return b.Bytes()
}

func writeRule(b *bytes.Buffer, r *Rule) {
	b.WriteString("    " + r.Section)
	if r.NoLoad {
		b.WriteString(" (NOLOAD)")
	}
	b.WriteString(" :\n    {\n")
	if r.Align > 1 {
		fmt.Fprintf(b, "        . = ALIGN(%d);\n", r.Align)
	}
	if r.Start != "" {
		fmt.Fprintf(b, "        %s = .;\n", r.Start)
	}
	for _, in := range r.Inputs {
		if r.Sort && in != "COMMON" {
			in = "SORT_BY_INIT_PRIORITY(" + in + ")"
		}
		in = "*(" + in + ")"
		if r.Keep {
			in = "KEEP(" + in + ")"
		}
		b.WriteString("        " + in + "\n")
	}
	if r.EndAlign > 1 {
		fmt.Fprintf(b, "        . = ALIGN(%d);\n", r.EndAlign)
	}
	if r.End != "" {
		fmt.Fprintf(b, "        %s = .;\n", r.End)
	}
	b.WriteString("    } > " + r.Region)
	if r.LoadRegion != "" {
		b.WriteString(" AT> " + r.LoadRegion)
	}
	b.WriteString("\n")
	if r.LoadStart != "" {
		fmt.Fprintf(b, "    %s = LOADADDR(%s);\n", r.LoadStart, r.Section)
	}
	b.WriteString("\n")
}
