// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package deps

import (
	"bytes"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGCCOutput(t *testing.T) {
	in := "build/obj/a.c.o: a.c inc/foo.h \\\n" +
		" /opt/ti/TivaWare/driverlib/gpio.h \\\n" +
		" inc/with\\ space.h inc/cost$$.h\n" +
		"\n" +
		"inc/foo.h:\n" +
		"/opt/ti/TivaWare/driverlib/gpio.h:\n"
	target, prereqs, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, "build/obj/a.c.o", target)
	assert.Equal(t, []string{
		"a.c",
		"inc/foo.h",
		"/opt/ti/TivaWare/driverlib/gpio.h",
		"inc/with space.h",
		"inc/cost$.h",
	}, prereqs)
}

func TestParseWindowsPaths(t *testing.T) {
	in := "C:/work/build/a.c.o: C:/work/a.c \\\r\n C:\\ti\\inc\\hw.h\r\n"
	target, prereqs, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, "C:/work/build/a.c.o", target)
	assert.Equal(t, []string{"C:/work/a.c", `C:\ti\inc\hw.h`}, prereqs)
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{"", "\n\n", "no rule here", ": a.h"} {
		_, _, err := Parse(strings.NewReader(in))
		assert.Error(t, err, "%q", in)
	}
}

func TestEncodeParse(t *testing.T) {
	var buf bytes.Buffer
	headers := []string{"inc/foo.h", "inc/my header.h"}
	require.NoError(t, Encode(&buf, "out/a.c.o", headers))
	assert.Equal(t, "out/a.c.o: \\\n inc/foo.h \\\n inc/my\\ header.h\n", buf.String())

	target, got, err := Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, "out/a.c.o", target)
	assert.Equal(t, headers, got)
}

func TestEmptyRecord(t *testing.T) {
	dir := t.TempDir()
	obj := filepath.Join(dir, "start.s.o")
	require.NoError(t, Write(Path(obj), obj, nil))
	headers, err := Read(obj)
	require.NoError(t, err)
	assert.Empty(t, headers)
}

func TestReadMissing(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "a.c.o"))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestStoreLockExcludes(t *testing.T) {
	var (
		s       Store
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := s.Lock("out/./a.c.o")
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)

	// Different paths do not block each other.
	u1 := s.Lock("a")
	u2 := s.Lock("b")
	u2()
	u1()
}
