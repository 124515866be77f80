// vessel/port.go
// Copyright(c) 2025 nodexec contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package vessel defines the narrow set of reads and commands through
// which the executor talks to a vehicle, wherever it happens to live (a
// remote game session, the local simulator, a test fixture...).
package vessel

import (
	"log/slog"

	"github.com/nodexec/nodexec/maneuver"
	"github.com/nodexec/nodexec/math"
)

// Port is implemented by anything that can report vehicle telemetry and
// accept commands. All calls are synchronous round trips; commands return
// once they have been accepted (WarpTo and WaitForAttitude return once
// the effect has happened). Errors are connectivity failures and should
// be passed up as-is.
type Port interface {
	// Point reads.
	SimTime() (float64, error)
	AvailableThrust() (float64, error)
	SpecificImpulse() (float64, error)
	Mass() (float64, error)
	Throttle() (float64, error)
	AttitudeError() (float64, error)
	RemainingDeltaV(id maneuver.NodeID) (math.Vector3, error)

	// Live values; callers must Close them.
	StreamAttitudeError() (ScalarStream, error)
	StreamRemainingDeltaV(id maneuver.NodeID) (VectorStream, error)

	// Commands.
	SetThrottle(v float64) error
	SetAttitudeTarget(t AttitudeTarget) error
	EngageAttitudeHold() error
	DisengageAttitudeHold() error
	WaitForAttitude() error
	ActivateNextStage() error
	WarpTo(ut float64) error

	// Planning queue.
	Nodes() ([]maneuver.Node, error)
	RemoveNode(id maneuver.NodeID) error
}

// ScalarStream is a pollable live value. Get returns the most recent
// sample; Close releases it and must be called exactly once.
type ScalarStream interface {
	Get() (float64, error)
	Close() error
}

type VectorStream interface {
	Get() (math.Vector3, error)
	Close() error
}

// AttitudeTarget is a pointing request: Direction in Frame, with the
// given roll constraint.
type AttitudeTarget struct {
	Frame     maneuver.Frame      `json:"frame" msgpack:"frame"`
	Direction math.Vector3        `json:"direction" msgpack:"direction"`
	Roll      maneuver.RollTarget `json:"roll" msgpack:"roll"`
}

func (t AttitudeTarget) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("frame", string(t.Frame)),
		slog.String("direction", t.Direction.String()),
		slog.String("roll", t.Roll.String()))
}

// BurnTarget returns the attitude target for a node's burn: prograde in
// the node's frame with roll left free.
func BurnTarget(n maneuver.Node) AttitudeTarget {
	return AttitudeTarget{
		Frame:     n.Frame,
		Direction: maneuver.Prograde,
		Roll:      maneuver.FreeRoll(),
	}
}
