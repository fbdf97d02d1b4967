// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package toolchaintest provides a scripted toolchain.Runner for tests.
package toolchaintest

import (
	"context"
	"sync"

	"github.com/embeddedgo/fwbuild/fwb/internal/toolchain"
)

// HandlerFunc simulates one command.
type HandlerFunc func(cmd toolchain.Command) (toolchain.Result, error)

// Runner records every command and passes it to Handler. A nil Handler
// succeeds without output.
type Runner struct {
	Handler HandlerFunc

	mu       sync.Mutex
	commands []toolchain.Command
	started  []*Process
}

func (r *Runner) Run(ctx context.Context, cmd toolchain.Command) (toolchain.Result, error) {
	r.mu.Lock()
	r.commands = append(r.commands, cmd)
	h := r.Handler
	r.mu.Unlock()
	if h == nil {
		return toolchain.Result{}, nil
	}
	return h(cmd)
}

func (r *Runner) Start(ctx context.Context, cmd toolchain.Command) (toolchain.Process, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := &Process{Command: cmd}
	r.started = append(r.started, p)
	return p, nil
}

// Commands returns the commands run so far.
func (r *Runner) Commands() []toolchain.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]toolchain.Command(nil), r.commands...)
}

// Started returns the background processes started so far.
func (r *Runner) Started() []*Process {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Process(nil), r.started...)
}

// Reset forgets the recorded commands.
func (r *Runner) Reset() {
	r.mu.Lock()
	r.commands = nil
	r.started = nil
	r.mu.Unlock()
}

// Process is a fake background process.
type Process struct {
	Command toolchain.Command

	mu      sync.Mutex
	stopped bool
}

func (p *Process) Stop() error {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	return nil
}

// Stopped reports whether Stop was called.
func (p *Process) Stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}
