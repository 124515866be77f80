// physics/errors.go
// Copyright(c) 2025 nodexec contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package physics

import "errors"

var (
	ErrNoThrust          = errors.New("No thrust available")
	ErrNoSpecificImpulse = errors.New("Specific impulse is zero")
)
