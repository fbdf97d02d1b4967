// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !unix

package toolchain

import "os/exec"

func detach(cmd *exec.Cmd) {}
