// client/client.go
// Copyright(c) 2025 nodexec contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package client provides a vessel.Port that talks to a vessel server
// over RPC.
package client

import (
	"log/slog"
	"net"
	"net/rpc"

	"github.com/nodexec/nodexec/log"
	"github.com/nodexec/nodexec/maneuver"
	"github.com/nodexec/nodexec/math"
	"github.com/nodexec/nodexec/server"
	"github.com/nodexec/nodexec/sim"
	"github.com/nodexec/nodexec/util"
	"github.com/nodexec/nodexec/vessel"
)

// Vessel is a remote vessel. Every method is a single blocking RPC; there
// are no timeouts, so a call only fails if the server reports an error or
// the connection goes away.
type Vessel struct {
	client *rpc.Client
	lg     *log.Logger

	Name string
}

var _ vessel.Port = (*Vessel)(nil)

// Dial connects to the vessel server at hostname (host:port) and checks
// that it speaks the same RPC version.
func Dial(hostname string, lg *log.Logger) (*Vessel, error) {
	conn, err := net.Dial("tcp", hostname)
	if err != nil {
		return nil, err
	}

	cc, err := util.MakeCompressedConn(util.MakeLoggingConn(conn, lg))
	if err != nil {
		conn.Close()
		return nil, err
	}

	codec := util.MakeMessagepackClientCodec(cc)
	codec = util.MakeLoggingClientCodec(hostname, codec, lg)
	v := &Vessel{client: rpc.NewClientWithCodec(codec), lg: lg}

	var cr server.ConnectResult
	if err := v.call(server.ConnectRPC, server.RPCVersion, &cr); err != nil {
		v.client.Close()
		return nil, err
	}
	v.Name = cr.Name
	lg.Info("connected", slog.String("server", hostname), slog.String("vessel", cr.Name),
		slog.Float64("sim_time", cr.SimTime))

	return v, nil
}

func (v *Vessel) Close() error {
	return v.client.Close()
}

// call makes a synchronous RPC, mapping errors that came from the server
// back to their sentinel values. Connection errors are returned as-is.
func (v *Vessel) call(method string, args any, reply any) error {
	return server.TryDecodeError(v.client.Call(method, args, reply))
}

func (v *Vessel) getFloat(method string) (float64, error) {
	var f float64
	err := v.call(method, struct{}{}, &f)
	return f, err
}

// State returns a snapshot of the simulated vessel's full state.
func (v *Vessel) State() (sim.State, error) {
	var st sim.State
	err := v.call(server.GetStateRPC, struct{}{}, &st)
	return st, err
}

///////////////////////////////////////////////////////////////////////////
// Telemetry

func (v *Vessel) SimTime() (float64, error) {
	return v.getFloat(server.SimTimeRPC)
}

func (v *Vessel) AvailableThrust() (float64, error) {
	return v.getFloat(server.AvailableThrustRPC)
}

func (v *Vessel) SpecificImpulse() (float64, error) {
	return v.getFloat(server.SpecificImpulseRPC)
}

func (v *Vessel) Mass() (float64, error) {
	return v.getFloat(server.MassRPC)
}

func (v *Vessel) Throttle() (float64, error) {
	return v.getFloat(server.ThrottleRPC)
}

func (v *Vessel) AttitudeError() (float64, error) {
	return v.getFloat(server.AttitudeErrorRPC)
}

func (v *Vessel) RemainingDeltaV(id maneuver.NodeID) (math.Vector3, error) {
	var dv math.Vector3
	err := v.call(server.RemainingDeltaVRPC, id, &dv)
	return dv, err
}

///////////////////////////////////////////////////////////////////////////
// Streams

type scalarStream struct {
	v  *Vessel
	id server.StreamID
}

func (s *scalarStream) Get() (float64, error) {
	var f float64
	err := s.v.call(server.GetScalarRPC, s.id, &f)
	return f, err
}

func (s *scalarStream) Close() error {
	return s.v.call(server.CloseStreamRPC, s.id, nil)
}

type vectorStream struct {
	v  *Vessel
	id server.StreamID
}

func (s *vectorStream) Get() (math.Vector3, error) {
	var dv math.Vector3
	err := s.v.call(server.GetVectorRPC, s.id, &dv)
	return dv, err
}

func (s *vectorStream) Close() error {
	return s.v.call(server.CloseStreamRPC, s.id, nil)
}

func (v *Vessel) StreamAttitudeError() (vessel.ScalarStream, error) {
	var id server.StreamID
	if err := v.call(server.StreamAttitudeErrorRPC, struct{}{}, &id); err != nil {
		return nil, err
	}
	return &scalarStream{v: v, id: id}, nil
}

func (v *Vessel) StreamRemainingDeltaV(node maneuver.NodeID) (vessel.VectorStream, error) {
	var id server.StreamID
	if err := v.call(server.StreamRemainingDeltaVRPC, node, &id); err != nil {
		return nil, err
	}
	return &vectorStream{v: v, id: id}, nil
}

///////////////////////////////////////////////////////////////////////////
// Commands

func (v *Vessel) SetThrottle(t float64) error {
	return v.call(server.SetThrottleRPC, t, nil)
}

func (v *Vessel) SetAttitudeTarget(t vessel.AttitudeTarget) error {
	return v.call(server.SetAttitudeTargetRPC, &t, nil)
}

func (v *Vessel) EngageAttitudeHold() error {
	return v.call(server.EngageAttitudeHoldRPC, struct{}{}, nil)
}

func (v *Vessel) DisengageAttitudeHold() error {
	return v.call(server.DisengageAttitudeHoldRPC, struct{}{}, nil)
}

func (v *Vessel) WaitForAttitude() error {
	return v.call(server.WaitForAttitudeRPC, struct{}{}, nil)
}

func (v *Vessel) ActivateNextStage() error {
	return v.call(server.ActivateNextStageRPC, struct{}{}, nil)
}

func (v *Vessel) WarpTo(ut float64) error {
	return v.call(server.WarpToRPC, ut, nil)
}

///////////////////////////////////////////////////////////////////////////
// Planning queue

func (v *Vessel) Nodes() ([]maneuver.Node, error) {
	var nodes []maneuver.Node
	err := v.call(server.NodesRPC, struct{}{}, &nodes)
	return nodes, err
}

func (v *Vessel) RemoveNode(id maneuver.NodeID) error {
	return v.call(server.RemoveNodeRPC, id, nil)
}

func (v *Vessel) AddNode(n maneuver.Node) error {
	return v.call(server.AddNodeRPC, &n, nil)
}
