// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package deps reads and writes the dependency records kept next to the
// object files. A record uses the Make syntax emitted by gcc -MD:
//
//	obj/main.c.o: \
//	 inc/foo.h \
//	 inc/bar.h
package deps

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Path returns the path of the dependency record of the object file.
func Path(obj string) string { return obj + ".d" }

// Parse parses the first rule of a Make dependency file and returns its
// target and prerequisites. Phony rules added by -MP are ignored.
func Parse(r io.Reader) (target string, prereqs []string, err error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", nil, err
	}
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	data = bytes.ReplaceAll(data, []byte("\\\n"), []byte(" "))
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), len(data)+1)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		i := ruleColon(line)
		if i < 0 {
			return "", nil, errors.Errorf("deps: malformed rule: %q", line)
		}
		targets := fields(line[:i])
		if len(targets) == 0 {
			return "", nil, errors.Errorf("deps: rule without target: %q", line)
		}
		return targets[0], fields(line[i+1:]), nil
	}
	if err := sc.Err(); err != nil {
		return "", nil, err
	}
	return "", nil, errors.New("deps: empty dependency file")
}

// ruleColon returns the index of the colon that separates targets from
// prerequisites. Drive letters (C:\x, C:/x) are not separators.
func ruleColon(line string) int {
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			i++
		case ':':
			if i == 1 && i+1 < len(line) && (line[i+1] == '\\' || line[i+1] == '/') {
				continue
			}
			if i+1 == len(line) || line[i+1] == ' ' || line[i+1] == '\t' {
				return i
			}
		}
	}
	return -1
}

// fields splits s on unescaped white space and removes the escapes gcc
// applies to file names.
func fields(s string) []string {
	var (
		out []string
		cur strings.Builder
	)
	flush := func() {
		if cur.Len() != 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s) && (s[i+1] == ' ' || s[i+1] == '#'):
			i++
			cur.WriteByte(s[i])
		case c == '$' && i+1 < len(s) && s[i+1] == '$':
			i++
			cur.WriteByte('$')
		case c == ' ' || c == '\t':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return out
}

func escape(name string) string {
	name = strings.ReplaceAll(name, "$", "$$")
	name = strings.ReplaceAll(name, "#", `\#`)
	return strings.ReplaceAll(name, " ", `\ `)
}

// Encode writes the record of the object file.
func Encode(w io.Writer, obj string, headers []string) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(escape(filepath.ToSlash(obj)))
	bw.WriteString(":")
	for _, h := range headers {
		bw.WriteString(" \\\n ")
		bw.WriteString(escape(filepath.ToSlash(h)))
	}
	bw.WriteString("\n")
	return bw.Flush()
}

// Read returns the headers listed in the record of the object file. The
// error satisfies errors.Is(err, fs.ErrNotExist) if there is no record.
func Read(obj string) ([]string, error) {
	f, err := os.Open(Path(obj))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	_, headers, err := Parse(f)
	if err != nil {
		return nil, errors.Wrap(err, Path(obj))
	}
	return headers, nil
}

// Write writes the record of the object file to name, which is usually
// Path(obj) or a temporary file renamed to it later.
func Write(name, obj string, headers []string) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if err = Encode(f, obj, headers); err != nil {
		f.Close()
		os.Remove(name)
		return err
	}
	return f.Close()
}

// Store serializes access to the object files and their records.
type Store struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Lock locks the given path and returns the function that unlocks it.
func (s *Store) Lock(path string) (unlock func()) {
	path = filepath.Clean(path)
	s.mu.Lock()
	if s.locks == nil {
		s.locks = make(map[string]*sync.Mutex)
	}
	m := s.locks[path]
	if m == nil {
		m = new(sync.Mutex)
		s.locks[path] = m
	}
	s.mu.Unlock()
	m.Lock()
	return m.Unlock
}
