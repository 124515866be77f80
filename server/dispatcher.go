// server/dispatcher.go
// Copyright(c) 2025 nodexec contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package server

import (
	"github.com/nodexec/nodexec/maneuver"
	"github.com/nodexec/nodexec/math"
	"github.com/nodexec/nodexec/sim"
	"github.com/nodexec/nodexec/vessel"
)

type dispatcher struct {
	vs *VesselServer
}

type ConnectResult struct {
	RPCVersion int
	Name       string
	SimTime    float64
}

const ConnectRPC = "Vessel.Connect"

func (d *dispatcher) Connect(version int, result *ConnectResult) error {
	// The RPC server runs each request in its own goroutine, so each of
	// the methods here needs to catch its own panics.
	defer d.vs.lg.CatchAndReportCrash()

	if version != RPCVersion {
		d.vs.lg.Warnf("client RPC version %d, ours is %d", version, RPCVersion)
		return ErrRPCVersionMismatch
	}
	st := d.vs.vessel.Snapshot()
	*result = ConnectResult{RPCVersion: RPCVersion, Name: st.Name, SimTime: st.SimTime}
	return nil
}

const GetStateRPC = "Vessel.GetState"

func (d *dispatcher) GetState(_ struct{}, state *sim.State) error {
	defer d.vs.lg.CatchAndReportCrash()

	*state = d.vs.vessel.Snapshot()
	return nil
}

///////////////////////////////////////////////////////////////////////////
// Telemetry

const SimTimeRPC = "Vessel.SimTime"

func (d *dispatcher) SimTime(_ struct{}, t *float64) error {
	defer d.vs.lg.CatchAndReportCrash()

	var err error
	*t, err = d.vs.vessel.SimTime()
	return err
}

const AvailableThrustRPC = "Vessel.AvailableThrust"

func (d *dispatcher) AvailableThrust(_ struct{}, thrust *float64) error {
	defer d.vs.lg.CatchAndReportCrash()

	var err error
	*thrust, err = d.vs.vessel.AvailableThrust()
	return err
}

const SpecificImpulseRPC = "Vessel.SpecificImpulse"

func (d *dispatcher) SpecificImpulse(_ struct{}, isp *float64) error {
	defer d.vs.lg.CatchAndReportCrash()

	var err error
	*isp, err = d.vs.vessel.SpecificImpulse()
	return err
}

const MassRPC = "Vessel.Mass"

func (d *dispatcher) Mass(_ struct{}, m *float64) error {
	defer d.vs.lg.CatchAndReportCrash()

	var err error
	*m, err = d.vs.vessel.Mass()
	return err
}

const ThrottleRPC = "Vessel.Throttle"

func (d *dispatcher) Throttle(_ struct{}, t *float64) error {
	defer d.vs.lg.CatchAndReportCrash()

	var err error
	*t, err = d.vs.vessel.Throttle()
	return err
}

const AttitudeErrorRPC = "Vessel.AttitudeError"

func (d *dispatcher) AttitudeError(_ struct{}, e *float64) error {
	defer d.vs.lg.CatchAndReportCrash()

	var err error
	*e, err = d.vs.vessel.AttitudeError()
	return err
}

const RemainingDeltaVRPC = "Vessel.RemainingDeltaV"

func (d *dispatcher) RemainingDeltaV(id maneuver.NodeID, dv *math.Vector3) error {
	defer d.vs.lg.CatchAndReportCrash()

	var err error
	*dv, err = d.vs.vessel.RemainingDeltaV(id)
	return err
}

///////////////////////////////////////////////////////////////////////////
// Streams

const StreamAttitudeErrorRPC = "Vessel.StreamAttitudeError"

func (d *dispatcher) StreamAttitudeError(_ struct{}, id *StreamID) error {
	defer d.vs.lg.CatchAndReportCrash()

	s, err := d.vs.vessel.StreamAttitudeError()
	if err != nil {
		return err
	}
	*id = d.vs.addStream(openStream{scalar: s})
	return nil
}

const StreamRemainingDeltaVRPC = "Vessel.StreamRemainingDeltaV"

func (d *dispatcher) StreamRemainingDeltaV(node maneuver.NodeID, id *StreamID) error {
	defer d.vs.lg.CatchAndReportCrash()

	s, err := d.vs.vessel.StreamRemainingDeltaV(node)
	if err != nil {
		return err
	}
	*id = d.vs.addStream(openStream{vector: s})
	return nil
}

const GetScalarRPC = "Vessel.GetScalar"

func (d *dispatcher) GetScalar(id StreamID, v *float64) error {
	defer d.vs.lg.CatchAndReportCrash()

	s, ok := d.vs.lookupStream(id)
	if !ok || s.scalar == nil {
		return vessel.ErrStreamClosed
	}
	var err error
	*v, err = s.scalar.Get()
	return err
}

const GetVectorRPC = "Vessel.GetVector"

func (d *dispatcher) GetVector(id StreamID, v *math.Vector3) error {
	defer d.vs.lg.CatchAndReportCrash()

	s, ok := d.vs.lookupStream(id)
	if !ok || s.vector == nil {
		return vessel.ErrStreamClosed
	}
	var err error
	*v, err = s.vector.Get()
	return err
}

const CloseStreamRPC = "Vessel.CloseStream"

func (d *dispatcher) CloseStream(id StreamID, _ *struct{}) error {
	defer d.vs.lg.CatchAndReportCrash()

	// Removal from the LRU closes the underlying stream.
	if !d.vs.streams.Remove(id) {
		return vessel.ErrStreamClosed
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////
// Commands

const SetThrottleRPC = "Vessel.SetThrottle"

func (d *dispatcher) SetThrottle(t float64, _ *struct{}) error {
	defer d.vs.lg.CatchAndReportCrash()

	return d.vs.vessel.SetThrottle(t)
}

const SetAttitudeTargetRPC = "Vessel.SetAttitudeTarget"

func (d *dispatcher) SetAttitudeTarget(t *vessel.AttitudeTarget, _ *struct{}) error {
	defer d.vs.lg.CatchAndReportCrash()

	return d.vs.vessel.SetAttitudeTarget(*t)
}

const EngageAttitudeHoldRPC = "Vessel.EngageAttitudeHold"

func (d *dispatcher) EngageAttitudeHold(_ struct{}, _ *struct{}) error {
	defer d.vs.lg.CatchAndReportCrash()

	return d.vs.vessel.EngageAttitudeHold()
}

const DisengageAttitudeHoldRPC = "Vessel.DisengageAttitudeHold"

func (d *dispatcher) DisengageAttitudeHold(_ struct{}, _ *struct{}) error {
	defer d.vs.lg.CatchAndReportCrash()

	return d.vs.vessel.DisengageAttitudeHold()
}

const WaitForAttitudeRPC = "Vessel.WaitForAttitude"

func (d *dispatcher) WaitForAttitude(_ struct{}, _ *struct{}) error {
	defer d.vs.lg.CatchAndReportCrash()

	return d.vs.vessel.WaitForAttitude()
}

const ActivateNextStageRPC = "Vessel.ActivateNextStage"

func (d *dispatcher) ActivateNextStage(_ struct{}, _ *struct{}) error {
	defer d.vs.lg.CatchAndReportCrash()

	return d.vs.vessel.ActivateNextStage()
}

const WarpToRPC = "Vessel.WarpTo"

func (d *dispatcher) WarpTo(ut float64, _ *struct{}) error {
	defer d.vs.lg.CatchAndReportCrash()

	return d.vs.vessel.WarpTo(ut)
}

///////////////////////////////////////////////////////////////////////////
// Planning queue

const NodesRPC = "Vessel.Nodes"

func (d *dispatcher) Nodes(_ struct{}, nodes *[]maneuver.Node) error {
	defer d.vs.lg.CatchAndReportCrash()

	var err error
	*nodes, err = d.vs.vessel.Nodes()
	return err
}

const RemoveNodeRPC = "Vessel.RemoveNode"

func (d *dispatcher) RemoveNode(id maneuver.NodeID, _ *struct{}) error {
	defer d.vs.lg.CatchAndReportCrash()

	return d.vs.vessel.RemoveNode(id)
}

const AddNodeRPC = "Vessel.AddNode"

func (d *dispatcher) AddNode(n *maneuver.Node, _ *struct{}) error {
	defer d.vs.lg.CatchAndReportCrash()

	return d.vs.vessel.AddNode(*n)
}
