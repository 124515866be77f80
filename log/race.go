// log/race.go
// Copyright(c) 2025 nodexec contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

//go:build race

package log

// RaceEnabled is set when built with -race; tests use it to scale down
// their workloads.
const RaceEnabled = true
