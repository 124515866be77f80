// physics/burn.go
// Copyright(c) 2025 nodexec contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package physics holds the pure functions used to size and shape a burn.
package physics

import (
	"fmt"
	gomath "math"

	"github.com/nodexec/nodexec/math"
)

// StandardGravity converts specific impulse in seconds to effective
// exhaust velocity. The value matches what the game uses rather than the
// SI 9.80665.
const StandardGravity = 9.82

const (
	// TaperStartRatio is the fraction of the initial delta-v remaining at
	// which the throttle starts to ramp down.
	TaperStartRatio = 0.1
	// TaperFloor is the lowest taper value; below it the loop could stall
	// before the remaining delta-v reaches its exit threshold.
	TaperFloor = 0.05
)

// BurnDurationAtMaxThrust returns the burn time in seconds needed to
// change velocity by deltaV at full thrust, from the rocket equation.
// Zero thrust or specific impulse is an expected transient (e.g., before
// ignition or mid-staging) and is reported as an error rather than as an
// Inf or NaN.
func BurnDurationAtMaxThrust(thrust, isp, mass, deltaV, g0 float64) (float64, error) {
	if thrust == 0 {
		return 0, ErrNoThrust
	}
	if isp == 0 || g0 == 0 {
		return 0, ErrNoSpecificImpulse
	}

	ve := isp * g0
	m1 := mass / gomath.Exp(deltaV/ve)
	flowRate := thrust / ve
	return (mass - m1) / flowRate, nil
}

// MaximumThrottle returns the throttle limit that stretches a burn to at
// least minimumDuration seconds.
func MaximumThrottle(durationAtMaxThrust, minimumDuration float64) float64 {
	if minimumDuration == 0 {
		return 1
	}
	return min(1, durationAtMaxThrust/minimumDuration)
}

func EffectiveDuration(durationAtMaxThrust, minimumDuration float64) float64 {
	return max(durationAtMaxThrust, minimumDuration)
}

// ThrottleTaper maps the ratio of remaining to initial delta-v to a
// throttle multiplier: 1 until TaperStartRatio remains, then linearly
// down to TaperFloor.
func ThrottleTaper(dvRatio float64) float64 {
	if gomath.IsNaN(dvRatio) {
		return 1
	}
	return math.Clamp(dvRatio/TaperStartRatio, TaperFloor, 1)
}

///////////////////////////////////////////////////////////////////////////
// Plan

// Plan sizes a burn for the vehicle's current thrust, specific impulse
// and mass.
type Plan struct {
	DurationAtMaxThrust float64 `json:"duration_at_max_thrust" msgpack:"duration_at_max_thrust"`
	MinimumDuration     float64 `json:"minimum_duration" msgpack:"minimum_duration"`
	MaximumThrottle     float64 `json:"maximum_throttle" msgpack:"maximum_throttle"`
	EffectiveDuration   float64 `json:"effective_duration" msgpack:"effective_duration"`
	// Fallback is set when the plan was made without any thrust to size
	// it with.
	Fallback bool `json:"fallback,omitempty" msgpack:"fallback,omitempty"`
}

func MakePlan(thrust, isp, mass, deltaV, minimumDuration, g0 float64) (Plan, error) {
	d, err := BurnDurationAtMaxThrust(thrust, isp, mass, deltaV, g0)
	if err != nil {
		return Plan{}, err
	}
	return Plan{
		DurationAtMaxThrust: d,
		MinimumDuration:     minimumDuration,
		MaximumThrottle:     MaximumThrottle(d, minimumDuration),
		EffectiveDuration:   EffectiveDuration(d, minimumDuration),
	}, nil
}

// FallbackPlan is used when no engine is producing thrust yet: the burn is
// assumed to take the minimum duration at full throttle.
func FallbackPlan(minimumDuration float64) Plan {
	return Plan{
		MinimumDuration:   minimumDuration,
		MaximumThrottle:   1,
		EffectiveDuration: minimumDuration,
		Fallback:          true,
	}
}

// StartTime returns the instant to ignite so that the burn is centered on
// the node's UT.
func (p Plan) StartTime(nodeUT float64) float64 {
	return nodeUT - p.EffectiveDuration/2
}

func (p Plan) String() string {
	return fmt.Sprintf("%.1fs at max thrust, %.1fs effective, max throttle %.3f",
		p.DurationAtMaxThrust, p.EffectiveDuration, p.MaximumThrottle)
}
