// executor/errors.go
// Copyright(c) 2025 nodexec contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package executor

import "errors"

var (
	ErrNoNode          = errors.New("No maneuver node to execute")
	ErrRecorderStarted = errors.New("Recording already in progress")
	ErrRecorderIdle    = errors.New("No recording in progress")
)
