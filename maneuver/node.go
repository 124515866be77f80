// maneuver/node.go
// Copyright(c) 2025 nodexec contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package maneuver defines the descriptor for a planned impulsive burn.
// Nodes are produced by a planner elsewhere and are treated as immutable
// values here.
package maneuver

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/nodexec/nodexec/math"
)

type NodeID string

// Frame is an opaque reference-frame handle issued by the vehicle side.
// It is passed back unmodified when issuing attitude commands.
type Frame string

// Prograde is the burn direction in a node's own reference frame.
var Prograde = math.Vector3{0, 1, 0}

// Node is a single scheduled impulsive velocity change. UT is the instant
// at which the idealized instantaneous burn would happen; a real burn is
// centered on it.
type Node struct {
	ID     NodeID  `json:"id" msgpack:"id"`
	UT     float64 `json:"ut" msgpack:"ut"`
	DeltaV float64 `json:"delta_v" msgpack:"delta_v"`
	Frame  Frame   `json:"frame" msgpack:"frame"`
}

// BurnVector returns the target velocity change in the node's frame.
func (n Node) BurnVector() math.Vector3 {
	return Prograde.Scale(n.DeltaV)
}

func (n Node) String() string {
	return fmt.Sprintf("%s: %.1f m/s at UT %.1f", n.ID, n.DeltaV, n.UT)
}

func (n Node) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", string(n.ID)),
		slog.Float64("ut", n.UT),
		slog.Float64("delta_v", n.DeltaV),
		slog.String("frame", string(n.Frame)))
}

// Earliest returns the node with the smallest UT, or false if there are
// none. Ties go to the node that appears first.
func Earliest(nodes []Node) (Node, bool) {
	if len(nodes) == 0 {
		return Node{}, false
	}
	return slices.MinFunc(nodes, func(a, b Node) int {
		switch {
		case a.UT < b.UT:
			return -1
		case a.UT > b.UT:
			return 1
		default:
			return 0
		}
	}), true
}

///////////////////////////////////////////////////////////////////////////
// RollTarget

// RollTarget is either free (roll is unconstrained; the attitude
// controller may leave it wherever is cheapest) or fixed at an angle in
// degrees.
type RollTarget struct {
	Fixed   bool    `json:"fixed" msgpack:"fixed"`
	Degrees float64 `json:"degrees,omitempty" msgpack:"degrees,omitempty"`
}

func FreeRoll() RollTarget {
	return RollTarget{}
}

func FixedRoll(deg float64) RollTarget {
	return RollTarget{Fixed: true, Degrees: deg}
}

func (r RollTarget) String() string {
	if !r.Fixed {
		return "free"
	}
	return fmt.Sprintf("%.1f deg", r.Degrees)
}
