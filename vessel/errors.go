// vessel/errors.go
// Copyright(c) 2025 nodexec contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package vessel

import (
	"errors"
)

var (
	ErrDuplicateNode    = errors.New("Maneuver node already exists")
	ErrInvalidDirection = errors.New("Attitude direction must be non-zero")
	ErrInvalidThrottle  = errors.New("Throttle must be between 0 and 1")
	ErrNoSuchNode       = errors.New("No such maneuver node")
	ErrStreamClosed     = errors.New("Stream is closed")
	ErrUnknownFrame     = errors.New("Unknown reference frame")
)
