// sim/vessel.go
// Copyright(c) 2025 nodexec contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package sim provides a simulated point-mass vessel with staged engines
// that implements vessel.Port, so that node execution can be exercised
// without a game session.
package sim

import (
	"log/slog"
	gomath "math"
	"slices"
	"time"

	"github.com/nodexec/nodexec/log"
	"github.com/nodexec/nodexec/maneuver"
	"github.com/nodexec/nodexec/math"
	"github.com/nodexec/nodexec/util"
	"github.com/nodexec/nodexec/vessel"

	"github.com/brunoga/deep"
)

// PhysicsStep is the integration step used while the engines are running.
const PhysicsStep = 0.02

// State is the simulated vessel's complete state; it's exported so that
// it can be snapshotted and shipped to status pages.
type State struct {
	Name    string  `json:"name"`
	SimTime float64 `json:"sim_time"`
	// Stages still attached; Stages[0] is the active one.
	Stages   []Stage      `json:"stages"`
	Payload  float64      `json:"payload"`
	Throttle float64      `json:"throttle"`
	Heading  math.Vector3 `json:"heading"`
	Velocity math.Vector3 `json:"velocity"`

	Target       *vessel.AttitudeTarget `json:"target,omitempty"`
	AttitudeHold bool                   `json:"attitude_hold"`

	Nodes []NodeState `json:"nodes"`

	Stagings    int `json:"stagings"`
	OpenStreams int `json:"open_streams"`
}

// NodeState tracks a planned node along with the inertial delta-v
// delivered toward it while it was the next node.
type NodeState struct {
	Node    maneuver.Node `json:"node"`
	Applied math.Vector3  `json:"applied"`
}

// Vessel is a simulated vessel. All of its methods are safe to call
// concurrently.
type Vessel struct {
	mu util.LoggingMutex
	lg *log.Logger

	State State

	frames            map[maneuver.Frame]frameBasis
	attitudeRate      float64
	attitudeTolerance float64
	simRate           float64
	lockStep          float64
	g0                float64

	lastUpdateTime time.Time
	// pollInterval is how often WaitForAttitude checks for convergence
	// when the vessel is advanced by Update.
	pollInterval time.Duration
}

// NewVessel returns a simulated vessel initialized from the given
// scenario, which should already have been validated.
func NewVessel(s *Scenario, lg *log.Logger) *Vessel {
	v := &Vessel{
		lg: lg,
		State: State{
			Name:    s.Vessel.Name,
			SimTime: s.StartUT,
			Stages:  slices.Clone(s.Vessel.Stages),
			Payload: s.Vessel.PayloadMass,
			Heading: s.Heading.Normalize(),
		},
		frames:            make(map[maneuver.Frame]frameBasis),
		attitudeRate:      s.AttitudeRate,
		attitudeTolerance: s.AttitudeTolerance,
		simRate:           s.SimRate,
		lockStep:          s.LockStep,
		g0:                s.StandardGravity,
		lastUpdateTime:    time.Now(),
		pollInterval:      10 * time.Millisecond,
	}
	for name, dir := range s.Frames {
		v.frames[name] = makeFrameBasis(dir)
	}
	for _, n := range s.Nodes {
		v.State.Nodes = append(v.State.Nodes, NodeState{Node: n})
	}
	return v
}

func (v *Vessel) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("sim_time", v.State.SimTime),
		slog.Int("stages", len(v.State.Stages)),
		slog.Float64("throttle", v.State.Throttle),
		slog.Int("nodes", len(v.State.Nodes)))
}

// Snapshot returns a deep copy of the vessel's state.
func (v *Vessel) Snapshot() State {
	v.mu.Lock(v.lg)
	defer v.mu.Unlock(v.lg)

	return deep.MustCopy(v.State)
}

///////////////////////////////////////////////////////////////////////////
// Frames

// frameBasis holds the axes of a reference frame, expressed in inertial
// coordinates; Y is prograde.
type frameBasis struct {
	x, y, z math.Vector3
}

func makeFrameBasis(prograde math.Vector3) frameBasis {
	y := prograde.Normalize()
	a := math.Vector3{1, 0, 0}
	if gomath.Abs(y.X()) > 0.9 {
		a = math.Vector3{0, 0, 1}
	}
	x := a.Sub(y.Scale(a.Dot(y))).Normalize()
	return frameBasis{x: x, y: y, z: x.Cross(y)}
}

// toInertial converts a vector in the frame to inertial coordinates.
func (f frameBasis) toInertial(v math.Vector3) math.Vector3 {
	return f.x.Scale(v.X()).Add(f.y.Scale(v.Y())).Add(f.z.Scale(v.Z()))
}

func (f frameBasis) fromInertial(v math.Vector3) math.Vector3 {
	return math.Vector3{v.Dot(f.x), v.Dot(f.y), v.Dot(f.z)}
}

///////////////////////////////////////////////////////////////////////////
// Simulation

// Update advances the simulation by the wallclock time since the last
// update, scaled by the sim rate. It does nothing in lock-step mode.
func (v *Vessel) Update() {
	v.mu.Lock(v.lg)
	defer v.mu.Unlock(v.lg)

	if v.lockStep > 0 {
		return
	}

	elapsed := time.Since(v.lastUpdateTime)
	if elapsed > 5*time.Second {
		v.lg.Warn("unexpected hitch in update rate", slog.Duration("elapsed", elapsed))
	}
	v.step(elapsed.Seconds() * v.simRate)
	v.lastUpdateTime = time.Now()
}

// Step advances the simulation by the given number of seconds.
func (v *Vessel) Step(dt float64) {
	v.mu.Lock(v.lg)
	defer v.mu.Unlock(v.lg)

	v.step(dt)
}

func (v *Vessel) step(dt float64) {
	if dt <= 0 {
		return
	}

	if v.State.Throttle == 0 || v.availableThrust() == 0 {
		// Coasting: only the attitude changes.
		v.slew(dt)
		v.State.SimTime += dt
		return
	}

	for dt > 0 {
		h := min(dt, PhysicsStep)
		v.slew(h)
		v.burn(h)
		v.State.SimTime += h
		dt -= h
	}
}

// slew turns the vessel toward its attitude target at the attitude rate.
func (v *Vessel) slew(dt float64) {
	if !v.State.AttitudeHold || v.State.Target == nil {
		return
	}
	target := v.targetDirection()
	v.State.Heading = math.RotateTowards(v.State.Heading, target, v.attitudeRate*dt)
}

// burn runs the engines for dt seconds, delivering the delta-v given by
// the rocket equation for the propellant consumed along the current
// heading.
func (v *Vessel) burn(dt float64) {
	if len(v.State.Stages) == 0 {
		return
	}
	st := &v.State.Stages[0]
	if st.PropellantMass <= 0 || st.Thrust == 0 {
		return
	}

	ve := st.Isp * v.g0
	flow := st.Thrust * v.State.Throttle / ve
	dm := min(flow*dt, st.PropellantMass)

	m0 := v.mass()
	st.PropellantMass -= dm
	if st.PropellantMass < 1e-9 {
		st.PropellantMass = 0
		v.lg.Info("stage burned out", slog.String("stage", st.Name), slog.Float64("sim_time", v.State.SimTime))
	}
	dv := v.State.Heading.Scale(ve * gomath.Log(m0/(m0-dm)))

	v.State.Velocity = v.State.Velocity.Add(dv)
	if idx, ok := v.nextNode(); ok {
		v.State.Nodes[idx].Applied = v.State.Nodes[idx].Applied.Add(dv)
	}
}

func (v *Vessel) mass() float64 {
	m := v.State.Payload
	for _, st := range v.State.Stages {
		m += st.DryMass + st.PropellantMass
	}
	return m
}

func (v *Vessel) availableThrust() float64 {
	if len(v.State.Stages) == 0 || v.State.Stages[0].PropellantMass <= 0 {
		return 0
	}
	return v.State.Stages[0].Thrust
}

func (v *Vessel) specificImpulse() float64 {
	if v.availableThrust() == 0 {
		return 0
	}
	return v.State.Stages[0].Isp
}

func (v *Vessel) targetDirection() math.Vector3 {
	t := v.State.Target
	return v.frames[t.Frame].toInertial(t.Direction).Normalize()
}

func (v *Vessel) attitudeError() float64 {
	if v.State.Target == nil {
		return 0
	}
	return math.AngleBetween(v.State.Heading, v.targetDirection())
}

func (v *Vessel) findNode(id maneuver.NodeID) (int, bool) {
	idx := slices.IndexFunc(v.State.Nodes, func(n NodeState) bool { return n.Node.ID == id })
	return idx, idx != -1
}

// nextNode returns the index of the earliest node; delta-v delivered by
// the engines is credited to it alone.
func (v *Vessel) nextNode() (int, bool) {
	if len(v.State.Nodes) == 0 {
		return -1, false
	}
	idx := 0
	for i, ns := range v.State.Nodes {
		if ns.Node.UT < v.State.Nodes[idx].Node.UT {
			idx = i
		}
	}
	return idx, true
}

func (v *Vessel) remainingDeltaV(id maneuver.NodeID) (math.Vector3, error) {
	idx, ok := v.findNode(id)
	if !ok {
		return math.Vector3{}, vessel.ErrNoSuchNode
	}
	ns := v.State.Nodes[idx]
	f := v.frames[ns.Node.Frame]
	target := f.y.Scale(ns.Node.DeltaV)
	return f.fromInertial(target.Sub(ns.Applied)), nil
}
