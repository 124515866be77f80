// sim/port.go
// Copyright(c) 2025 nodexec contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"cmp"
	"log/slog"
	"slices"
	"time"

	"github.com/nodexec/nodexec/maneuver"
	"github.com/nodexec/nodexec/math"
	"github.com/nodexec/nodexec/vessel"
)

var _ vessel.Port = (*Vessel)(nil)

// SimTime returns the current simulation time. In lock-step mode, each
// call first advances the simulation by the lock step.
func (v *Vessel) SimTime() (float64, error) {
	v.mu.Lock(v.lg)
	defer v.mu.Unlock(v.lg)

	if v.lockStep > 0 {
		v.step(v.lockStep)
	}
	return v.State.SimTime, nil
}

func (v *Vessel) AvailableThrust() (float64, error) {
	v.mu.Lock(v.lg)
	defer v.mu.Unlock(v.lg)

	return v.availableThrust(), nil
}

func (v *Vessel) SpecificImpulse() (float64, error) {
	v.mu.Lock(v.lg)
	defer v.mu.Unlock(v.lg)

	return v.specificImpulse(), nil
}

func (v *Vessel) Mass() (float64, error) {
	v.mu.Lock(v.lg)
	defer v.mu.Unlock(v.lg)

	return v.mass(), nil
}

func (v *Vessel) Throttle() (float64, error) {
	v.mu.Lock(v.lg)
	defer v.mu.Unlock(v.lg)

	return v.State.Throttle, nil
}

func (v *Vessel) AttitudeError() (float64, error) {
	v.mu.Lock(v.lg)
	defer v.mu.Unlock(v.lg)

	return v.attitudeError(), nil
}

func (v *Vessel) RemainingDeltaV(id maneuver.NodeID) (math.Vector3, error) {
	v.mu.Lock(v.lg)
	defer v.mu.Unlock(v.lg)

	return v.remainingDeltaV(id)
}

///////////////////////////////////////////////////////////////////////////
// Streams

// stream is a live value backed by a read function on the vessel.
type stream[T any] struct {
	v      *Vessel
	read   func() (T, error)
	closed bool
}

func (s *stream[T]) Get() (T, error) {
	s.v.mu.Lock(s.v.lg)
	defer s.v.mu.Unlock(s.v.lg)

	if s.closed {
		var zero T
		return zero, vessel.ErrStreamClosed
	}
	return s.read()
}

func (s *stream[T]) Close() error {
	s.v.mu.Lock(s.v.lg)
	defer s.v.mu.Unlock(s.v.lg)

	if s.closed {
		return vessel.ErrStreamClosed
	}
	s.closed = true
	s.v.State.OpenStreams--
	return nil
}

func (v *Vessel) StreamAttitudeError() (vessel.ScalarStream, error) {
	v.mu.Lock(v.lg)
	defer v.mu.Unlock(v.lg)

	v.State.OpenStreams++
	return &stream[float64]{
		v:    v,
		read: func() (float64, error) { return v.attitudeError(), nil },
	}, nil
}

func (v *Vessel) StreamRemainingDeltaV(id maneuver.NodeID) (vessel.VectorStream, error) {
	v.mu.Lock(v.lg)
	defer v.mu.Unlock(v.lg)

	if _, ok := v.findNode(id); !ok {
		return nil, vessel.ErrNoSuchNode
	}

	v.State.OpenStreams++
	return &stream[math.Vector3]{
		v:    v,
		read: func() (math.Vector3, error) { return v.remainingDeltaV(id) },
	}, nil
}

///////////////////////////////////////////////////////////////////////////
// Commands

func (v *Vessel) SetThrottle(t float64) error {
	if t < 0 || t > 1 {
		return vessel.ErrInvalidThrottle
	}

	v.mu.Lock(v.lg)
	defer v.mu.Unlock(v.lg)

	v.State.Throttle = t
	return nil
}

func (v *Vessel) SetAttitudeTarget(t vessel.AttitudeTarget) error {
	v.mu.Lock(v.lg)
	defer v.mu.Unlock(v.lg)

	if _, ok := v.frames[t.Frame]; !ok {
		return vessel.ErrUnknownFrame
	}
	if t.Direction.Length() == 0 {
		return vessel.ErrInvalidDirection
	}
	v.State.Target = &t
	v.lg.Debug("attitude target set", slog.Any("target", t))
	return nil
}

func (v *Vessel) EngageAttitudeHold() error {
	v.mu.Lock(v.lg)
	defer v.mu.Unlock(v.lg)

	v.State.AttitudeHold = true
	return nil
}

func (v *Vessel) DisengageAttitudeHold() error {
	v.mu.Lock(v.lg)
	defer v.mu.Unlock(v.lg)

	v.State.AttitudeHold = false
	return nil
}

// WaitForAttitude returns once the vessel is pointed within the attitude
// tolerance of its target. In lock-step mode the simulation is advanced
// here until that happens; otherwise it's left to Update.
func (v *Vessel) WaitForAttitude() error {
	for {
		v.mu.Lock(v.lg)
		converged := !v.State.AttitudeHold || v.State.Target == nil ||
			v.attitudeError() <= v.attitudeTolerance
		if !converged && v.lockStep > 0 {
			v.step(v.lockStep)
		}
		v.mu.Unlock(v.lg)

		if converged {
			return nil
		}
		if v.lockStep == 0 {
			time.Sleep(v.pollInterval)
		}
	}
}

// ActivateNextStage drops the active stage. As in the game, it's a no-op
// if there's nothing left to stage to.
func (v *Vessel) ActivateNextStage() error {
	v.mu.Lock(v.lg)
	defer v.mu.Unlock(v.lg)

	if len(v.State.Stages) <= 1 {
		v.lg.Warn("no more stages to activate")
		return nil
	}

	v.lg.Info("staging", slog.String("dropped", v.State.Stages[0].Name),
		slog.String("active", v.State.Stages[1].Name), slog.Float64("sim_time", v.State.SimTime))
	v.State.Stages = v.State.Stages[1:]
	v.State.Stagings++
	return nil
}

// WarpTo advances the simulation to ut; it returns immediately if ut is
// in the past.
func (v *Vessel) WarpTo(ut float64) error {
	v.mu.Lock(v.lg)
	defer v.mu.Unlock(v.lg)

	if ut > v.State.SimTime {
		v.lg.Info("warping", slog.Float64("from", v.State.SimTime), slog.Float64("to", ut))
		v.step(ut - v.State.SimTime)
		// Don't let floating-point accumulation leave us just short.
		v.State.SimTime = max(v.State.SimTime, ut)
	}
	v.lastUpdateTime = time.Now()
	return nil
}

///////////////////////////////////////////////////////////////////////////
// Planning queue

// Nodes returns the planned nodes, sorted by UT.
func (v *Vessel) Nodes() ([]maneuver.Node, error) {
	v.mu.Lock(v.lg)
	defer v.mu.Unlock(v.lg)

	var nodes []maneuver.Node
	for _, ns := range v.State.Nodes {
		nodes = append(nodes, ns.Node)
	}
	slices.SortStableFunc(nodes, func(a, b maneuver.Node) int { return cmp.Compare(a.UT, b.UT) })
	return nodes, nil
}

func (v *Vessel) RemoveNode(id maneuver.NodeID) error {
	v.mu.Lock(v.lg)
	defer v.mu.Unlock(v.lg)

	idx, ok := v.findNode(id)
	if !ok {
		return vessel.ErrNoSuchNode
	}
	v.State.Nodes = slices.Delete(v.State.Nodes, idx, idx+1)
	return nil
}

// AddNode adds a node to the plan; its delta-v is measured from now.
func (v *Vessel) AddNode(n maneuver.Node) error {
	v.mu.Lock(v.lg)
	defer v.mu.Unlock(v.lg)

	if _, ok := v.frames[n.Frame]; !ok {
		return vessel.ErrUnknownFrame
	}
	if _, ok := v.findNode(n.ID); ok {
		return vessel.ErrDuplicateNode
	}
	v.State.Nodes = append(v.State.Nodes, NodeState{Node: n})
	return nil
}
