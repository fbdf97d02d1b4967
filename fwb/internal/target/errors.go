// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package target

import "github.com/pkg/errors"

var ErrUnknownPart = errors.New("unknown part")

// ConfigError is returned when no usable configuration exists for a part.
type ConfigError struct {
	Part string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Part == "" {
		return e.Err.Error() + ": empty part identifier"
	}
	return e.Err.Error() + ": " + e.Part
}

func (e *ConfigError) Unwrap() error { return e.Err }
