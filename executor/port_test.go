// executor/port_test.go
// Copyright(c) 2025 nodexec contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package executor

import (
	"slices"
	"time"

	"github.com/nodexec/nodexec/log"
	"github.com/nodexec/nodexec/maneuver"
	"github.com/nodexec/nodexec/math"
	"github.com/nodexec/nodexec/vessel"
)

// scriptedPort is a vessel.Port whose telemetry is driven by the test.
// The clock advances by step on every SimTime read; remaining delta-v and
// attitude error come from functions of the number of stream reads so far.
type scriptedPort struct {
	now    float64
	step   float64
	thrust float64
	isp    float64
	mass   float64
	nodes  []maneuver.Node

	remaining func(read int) math.Vector3
	attitude  func(read int) float64
	// onRemainingRead runs after every remaining delta-v stream read.
	onRemainingRead func(p *scriptedPort, read int)
	onStage         func(p *scriptedPort)

	dvReads, attReads int
	throttles         []float64
	target            *vessel.AttitudeTarget
	stages            int
	warps             []float64
	engaged           int
	disengaged        int
	waits             int
	removed           []maneuver.NodeID
	dvOpened          int
	attOpened         int
	dvClosed          int
	attClosed         int

	// failOn names a method that returns failErr once failAfter more
	// calls to it have succeeded.
	failOn    string
	failAfter int
	failErr   error
}

func newScriptedPort(nodes ...maneuver.Node) *scriptedPort {
	return &scriptedPort{
		step:   0.1,
		thrust: 1000,
		isp:    300,
		mass:   1000,
		nodes:  nodes,
		remaining: func(read int) math.Vector3 {
			return math.Vector3{0, 100 * (1 - float64(read)/100), 0}
		},
		attitude: func(int) float64 { return 0.5 },
	}
}

func (p *scriptedPort) fail(method string) error {
	if p.failOn != method {
		return nil
	}
	if p.failAfter > 0 {
		p.failAfter--
		return nil
	}
	return p.failErr
}

func (p *scriptedPort) lastThrottle() float64 {
	if len(p.throttles) == 0 {
		return 0
	}
	return p.throttles[len(p.throttles)-1]
}

func (p *scriptedPort) SimTime() (float64, error) {
	if err := p.fail("SimTime"); err != nil {
		return 0, err
	}
	p.now += p.step
	return p.now, nil
}

func (p *scriptedPort) AvailableThrust() (float64, error) {
	return p.thrust, p.fail("AvailableThrust")
}

func (p *scriptedPort) SpecificImpulse() (float64, error) {
	return p.isp, p.fail("SpecificImpulse")
}

func (p *scriptedPort) Mass() (float64, error) {
	return p.mass, p.fail("Mass")
}

func (p *scriptedPort) Throttle() (float64, error) {
	return p.lastThrottle(), p.fail("Throttle")
}

func (p *scriptedPort) AttitudeError() (float64, error) {
	return p.attitude(p.attReads), p.fail("AttitudeError")
}

func (p *scriptedPort) RemainingDeltaV(id maneuver.NodeID) (math.Vector3, error) {
	return p.remaining(p.dvReads), p.fail("RemainingDeltaV")
}

type scriptedScalar struct{ p *scriptedPort }

func (s scriptedScalar) Get() (float64, error) {
	if err := s.p.fail("attitude.Get"); err != nil {
		return 0, err
	}
	v := s.p.attitude(s.p.attReads)
	s.p.attReads++
	return v, nil
}

func (s scriptedScalar) Close() error {
	s.p.attClosed++
	return nil
}

type scriptedVector struct{ p *scriptedPort }

func (s scriptedVector) Get() (math.Vector3, error) {
	if err := s.p.fail("remaining.Get"); err != nil {
		return math.Vector3{}, err
	}
	read := s.p.dvReads
	v := s.p.remaining(read)
	s.p.dvReads++
	if s.p.onRemainingRead != nil {
		s.p.onRemainingRead(s.p, read)
	}
	return v, nil
}

func (s scriptedVector) Close() error {
	s.p.dvClosed++
	return nil
}

func (p *scriptedPort) StreamAttitudeError() (vessel.ScalarStream, error) {
	if err := p.fail("StreamAttitudeError"); err != nil {
		return nil, err
	}
	p.attOpened++
	return scriptedScalar{p}, nil
}

func (p *scriptedPort) StreamRemainingDeltaV(id maneuver.NodeID) (vessel.VectorStream, error) {
	if err := p.fail("StreamRemainingDeltaV"); err != nil {
		return nil, err
	}
	p.dvOpened++
	return scriptedVector{p}, nil
}

func (p *scriptedPort) SetThrottle(v float64) error {
	if err := p.fail("SetThrottle"); err != nil {
		return err
	}
	p.throttles = append(p.throttles, v)
	return nil
}

func (p *scriptedPort) SetAttitudeTarget(t vessel.AttitudeTarget) error {
	p.target = &t
	return p.fail("SetAttitudeTarget")
}

func (p *scriptedPort) EngageAttitudeHold() error {
	p.engaged++
	return p.fail("EngageAttitudeHold")
}

func (p *scriptedPort) DisengageAttitudeHold() error {
	p.disengaged++
	return p.fail("DisengageAttitudeHold")
}

func (p *scriptedPort) WaitForAttitude() error {
	p.waits++
	return p.fail("WaitForAttitude")
}

func (p *scriptedPort) ActivateNextStage() error {
	if err := p.fail("ActivateNextStage"); err != nil {
		return err
	}
	p.stages++
	if p.onStage != nil {
		p.onStage(p)
	}
	return nil
}

func (p *scriptedPort) WarpTo(ut float64) error {
	if err := p.fail("WarpTo"); err != nil {
		return err
	}
	p.warps = append(p.warps, ut)
	p.now = ut
	return nil
}

func (p *scriptedPort) Nodes() ([]maneuver.Node, error) {
	return slices.Clone(p.nodes), p.fail("Nodes")
}

func (p *scriptedPort) RemoveNode(id maneuver.NodeID) error {
	if err := p.fail("RemoveNode"); err != nil {
		return err
	}
	p.removed = append(p.removed, id)
	p.nodes = slices.DeleteFunc(p.nodes, func(n maneuver.Node) bool { return n.ID == id })
	// A new burn starts with a fresh node's delta-v.
	p.dvReads = 0
	return nil
}

func testNode() maneuver.Node {
	return maneuver.Node{ID: "circularize", UT: 1000, DeltaV: 100, Frame: "orbital"}
}

// fakeClock is a wall clock that only moves when the executor sleeps.
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time        { return c.t }
func (c *fakeClock) Sleep(d time.Duration) { c.t = c.t.Add(d) }

func newTestExecutor(p *scriptedPort, cfg Config, opts ...Option) *Executor {
	c := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithSleep(c.Sleep), WithClock(c.Now)}, opts...)
	return New(p, cfg, log.NewDiscard(), opts...)
}
