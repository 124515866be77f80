// sim/vessel_test.go
// Copyright(c) 2025 nodexec contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"errors"
	gomath "math"
	"os"
	"path/filepath"
	"testing"

	"github.com/nodexec/nodexec/log"
	"github.com/nodexec/nodexec/maneuver"
	"github.com/nodexec/nodexec/math"
	"github.com/nodexec/nodexec/physics"
	"github.com/nodexec/nodexec/util"
	"github.com/nodexec/nodexec/vessel"
)

func testScenario() *Scenario {
	return &Scenario{
		Vessel: VesselConfig{
			Name:        "test",
			PayloadMass: 1000,
			Stages: []Stage{
				{Name: "booster", DryMass: 500, PropellantMass: 200, Thrust: 20000, Isp: 300},
				{Name: "upper", DryMass: 300, PropellantMass: 1000, Thrust: 10000, Isp: 320},
			},
		},
		Nodes: []maneuver.Node{
			{ID: "second", UT: 2000, DeltaV: 50, Frame: "orbital"},
			{ID: "first", UT: 600, DeltaV: 300, Frame: "orbital"},
		},
		Frames:            map[maneuver.Frame]math.Vector3{"orbital": {0, 1, 0}, "radial": {1, 1, 0}},
		AttitudeRate:      10,
		AttitudeTolerance: 0.5,
		LockStep:          0.05,
	}
}

func makeTestVessel(t *testing.T, s *Scenario) *Vessel {
	t.Helper()
	var e util.ErrorLogger
	s.PostDeserialize(&e)
	if e.HaveErrors() {
		t.Fatalf("scenario errors: %s", e.String())
	}
	return NewVessel(s, log.NewDiscard())
}

func TestScenarioChecks(t *testing.T) {
	for _, test := range []struct {
		name   string
		modify func(s *Scenario)
	}{
		{"no stages", func(s *Scenario) { s.Vessel.Stages = nil; s.Vessel.PayloadMass = 0 }},
		{"thrust without isp", func(s *Scenario) { s.Vessel.Stages[0].Isp = 0 }},
		{"negative propellant", func(s *Scenario) { s.Vessel.Stages[1].PropellantMass = -1 }},
		{"undefined frame", func(s *Scenario) { s.Nodes[0].Frame = "surface" }},
		{"repeated node", func(s *Scenario) { s.Nodes[1].ID = s.Nodes[0].ID }},
		{"zero frame", func(s *Scenario) { s.Frames["orbital"] = math.Vector3{} }},
	} {
		s := testScenario()
		test.modify(s)

		var e util.ErrorLogger
		s.PostDeserialize(&e)
		if !e.HaveErrors() {
			t.Errorf("%s: no error reported", test.name)
		}
	}

	s := testScenario()
	var e util.ErrorLogger
	s.PostDeserialize(&e)
	if e.HaveErrors() {
		t.Errorf("unexpected errors: %s", e.String())
	}
	if s.SimRate != 1 || s.StandardGravity != physics.StandardGravity || s.Heading != (math.Vector3{1, 0, 0}) {
		t.Errorf("defaults not applied: %+v", s)
	}
}

func TestLoadScenario(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "scenario.json")
	contents := `{
  "vessel": {"stages": [{"dry_mass": 100, "propellant_mass": 50, "thrust": 1000, "isp": 250}]},
  "nodes": [{"id": "n", "ut": 100, "delta_v": 10, "frame": "orbital"}],
  "frames": {"orbital": [0, 1, 0]},
  "lock_step": 0.1
}`
	if err := os.WriteFile(fn, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}

	var e util.ErrorLogger
	s := LoadScenario(fn, &e)
	if e.HaveErrors() {
		t.Fatalf("unexpected errors: %s", e.String())
	}
	if len(s.Nodes) != 1 || s.Nodes[0].DeltaV != 10 || s.Mass() != 150 || s.LockStep != 0.1 {
		t.Errorf("got %+v", s)
	}

	if err := os.WriteFile(fn, []byte(`{"vessel": {"stages": [{"thrust": "lots"}]}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	e = util.ErrorLogger{}
	if s := LoadScenario(fn, &e); s != nil || !e.HaveErrors() {
		t.Errorf("bad scenario accepted")
	}
}

func TestTelemetry(t *testing.T) {
	v := makeTestVessel(t, testScenario())

	if m, _ := v.Mass(); m != 3000 {
		t.Errorf("got mass %f, expected 3000", m)
	}
	if f, _ := v.AvailableThrust(); f != 20000 {
		t.Errorf("got thrust %f, expected 20000", f)
	}
	if isp, _ := v.SpecificImpulse(); isp != 300 {
		t.Errorf("got isp %f, expected 300", isp)
	}

	t0, _ := v.SimTime()
	t1, _ := v.SimTime()
	if gomath.Abs(t1-t0-0.05) > 1e-9 {
		t.Errorf("got lock step %f, expected 0.05", t1-t0)
	}

	nodes, _ := v.Nodes()
	if len(nodes) != 2 || nodes[0].ID != "first" || nodes[1].ID != "second" {
		t.Errorf("got nodes %v, expected first then second", nodes)
	}

	dv, err := v.RemainingDeltaV("first")
	if err != nil {
		t.Fatal(err)
	}
	if dv != (math.Vector3{0, 300, 0}) {
		t.Errorf("got remaining %v, expected (0, 300, 0)", dv)
	}
	if _, err := v.RemainingDeltaV("third"); !errors.Is(err, vessel.ErrNoSuchNode) {
		t.Errorf("got %v, expected %v", err, vessel.ErrNoSuchNode)
	}
}

func TestCommands(t *testing.T) {
	v := makeTestVessel(t, testScenario())

	for _, th := range []float64{-0.1, 1.1} {
		if err := v.SetThrottle(th); !errors.Is(err, vessel.ErrInvalidThrottle) {
			t.Errorf("throttle %f: got %v, expected %v", th, err, vessel.ErrInvalidThrottle)
		}
	}

	if err := v.SetAttitudeTarget(vessel.AttitudeTarget{Frame: "surface", Direction: maneuver.Prograde}); !errors.Is(err, vessel.ErrUnknownFrame) {
		t.Errorf("got %v, expected %v", err, vessel.ErrUnknownFrame)
	}

	if err := v.RemoveNode("third"); !errors.Is(err, vessel.ErrNoSuchNode) {
		t.Errorf("got %v, expected %v", err, vessel.ErrNoSuchNode)
	}
	if err := v.RemoveNode("first"); err != nil {
		t.Fatal(err)
	}
	if nodes, _ := v.Nodes(); len(nodes) != 1 || nodes[0].ID != "second" {
		t.Errorf("got nodes %v after removal", nodes)
	}

	if err := v.AddNode(maneuver.Node{ID: "second", Frame: "orbital"}); !errors.Is(err, vessel.ErrDuplicateNode) {
		t.Errorf("got %v, expected %v", err, vessel.ErrDuplicateNode)
	}
	if err := v.AddNode(maneuver.Node{ID: "third", UT: 10, DeltaV: 5, Frame: "radial"}); err != nil {
		t.Fatal(err)
	}
	if nodes, _ := v.Nodes(); len(nodes) != 2 || nodes[0].ID != "third" {
		t.Errorf("got nodes %v after adding", nodes)
	}

	if err := v.WarpTo(500); err != nil {
		t.Fatal(err)
	}
	if s := v.Snapshot(); s.SimTime != 500 {
		t.Errorf("got sim time %f after warp, expected 500", s.SimTime)
	}
	// Warping into the past does nothing.
	if err := v.WarpTo(100); err != nil {
		t.Fatal(err)
	}
	if s := v.Snapshot(); s.SimTime != 500 {
		t.Errorf("got sim time %f after warp to the past, expected 500", s.SimTime)
	}
}

func TestAttitude(t *testing.T) {
	v := makeTestVessel(t, testScenario())

	target := vessel.AttitudeTarget{Frame: "orbital", Direction: maneuver.Prograde, Roll: maneuver.FreeRoll()}
	if err := v.SetAttitudeTarget(target); err != nil {
		t.Fatal(err)
	}
	if e, _ := v.AttitudeError(); gomath.Abs(e-90) > 1e-6 {
		t.Errorf("got attitude error %f, expected 90", e)
	}

	// Without attitude hold the vessel doesn't turn.
	v.Step(10)
	if e, _ := v.AttitudeError(); gomath.Abs(e-90) > 1e-6 {
		t.Errorf("got attitude error %f without hold, expected 90", e)
	}

	if err := v.EngageAttitudeHold(); err != nil {
		t.Fatal(err)
	}
	v.Step(3)
	if e, _ := v.AttitudeError(); gomath.Abs(e-60) > 1e-6 {
		t.Errorf("got attitude error %f after 3s at 10 deg/s, expected 60", e)
	}

	start := v.Snapshot().SimTime
	if err := v.WaitForAttitude(); err != nil {
		t.Fatal(err)
	}
	if e, _ := v.AttitudeError(); e > 0.5 {
		t.Errorf("got attitude error %f after wait, expected at most 0.5", e)
	}
	if d := v.Snapshot().SimTime - start; d < 5.9 || d > 6.1 {
		t.Errorf("alignment took %f seconds, expected about 6", d)
	}

	// WaitForAttitude stops within tolerance; finish the turn.
	v.Step(1)
	if e, _ := v.AttitudeError(); e > 1e-6 {
		t.Errorf("got attitude error %f after settling, expected 0", e)
	}

	// A frame whose prograde isn't an axis.
	if err := v.SetAttitudeTarget(vessel.AttitudeTarget{Frame: "radial", Direction: maneuver.Prograde}); err != nil {
		t.Fatal(err)
	}
	if e, _ := v.AttitudeError(); gomath.Abs(e-45) > 1e-6 {
		t.Errorf("got attitude error %f for radial frame, expected 45", e)
	}
}

func TestBurnAndStaging(t *testing.T) {
	s := testScenario()
	s.Heading = math.Vector3{0, 1, 0}
	v := makeTestVessel(t, s)

	if err := v.SetThrottle(1); err != nil {
		t.Fatal(err)
	}
	// The booster has 200kg of propellant at 20000/(300*9.82) kg/s.
	flow := 20000 / (300 * physics.StandardGravity)
	v.Step(10)

	st := v.Snapshot()
	if expected := 200 - 10*flow; gomath.Abs(st.Stages[0].PropellantMass-expected) > 1e-6 {
		t.Errorf("got propellant %f, expected %f", st.Stages[0].PropellantMass, expected)
	}
	m := 3000 - 10*flow
	expectedDV := 300 * physics.StandardGravity * gomath.Log(3000/m)
	dv, _ := v.RemainingDeltaV("first")
	if gomath.Abs(dv.Y()-(300-expectedDV)) > 1e-6 || dv.X() != 0 {
		t.Errorf("got remaining %v, expected (0, %f, 0)", dv, 300-expectedDV)
	}

	// Run the booster dry.
	v.Step(30)
	if f, _ := v.AvailableThrust(); f != 0 {
		t.Errorf("got thrust %f after burnout, expected 0", f)
	}
	if isp, _ := v.SpecificImpulse(); isp != 0 {
		t.Errorf("got isp %f after burnout, expected 0", isp)
	}

	if err := v.ActivateNextStage(); err != nil {
		t.Fatal(err)
	}
	if f, _ := v.AvailableThrust(); f != 10000 {
		t.Errorf("got thrust %f after staging, expected 10000", f)
	}
	if m, _ := v.Mass(); m != 2300 {
		t.Errorf("got mass %f after staging, expected 2300", m)
	}

	// Nothing left to stage to.
	if err := v.ActivateNextStage(); err != nil {
		t.Errorf("got %v staging the last stage, expected nil", err)
	}
	if st := v.Snapshot(); len(st.Stages) != 1 || st.Stagings != 1 {
		t.Errorf("got %d stages after %d stagings, expected 1 and 1", len(st.Stages), st.Stagings)
	}
}

func TestStreams(t *testing.T) {
	v := makeTestVessel(t, testScenario())

	att, err := v.StreamAttitudeError()
	if err != nil {
		t.Fatal(err)
	}
	dv, err := v.StreamRemainingDeltaV("first")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := v.StreamRemainingDeltaV("third"); !errors.Is(err, vessel.ErrNoSuchNode) {
		t.Errorf("got %v, expected %v", err, vessel.ErrNoSuchNode)
	}
	if n := v.Snapshot().OpenStreams; n != 2 {
		t.Errorf("got %d open streams, expected 2", n)
	}

	if r, err := dv.Get(); err != nil || r.Y() != 300 {
		t.Errorf("got %v/%v, expected remaining 300", r, err)
	}
	if _, err := att.Get(); err != nil {
		t.Error(err)
	}

	for _, c := range []interface{ Close() error }{att, dv} {
		if err := c.Close(); err != nil {
			t.Error(err)
		}
		if err := c.Close(); !errors.Is(err, vessel.ErrStreamClosed) {
			t.Errorf("got %v closing twice, expected %v", err, vessel.ErrStreamClosed)
		}
	}
	if _, err := att.Get(); !errors.Is(err, vessel.ErrStreamClosed) {
		t.Errorf("got %v reading closed stream, expected %v", err, vessel.ErrStreamClosed)
	}
	if n := v.Snapshot().OpenStreams; n != 0 {
		t.Errorf("got %d open streams, expected 0", n)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	v := makeTestVessel(t, testScenario())
	if err := v.SetAttitudeTarget(vessel.AttitudeTarget{Frame: "orbital", Direction: maneuver.Prograde}); err != nil {
		t.Fatal(err)
	}

	s := v.Snapshot()
	s.Stages[0].Thrust = 0
	s.Nodes[0].Node.DeltaV = 0
	s.Target.Frame = "radial"

	if f, _ := v.AvailableThrust(); f != 20000 {
		t.Errorf("snapshot shares stages with the vessel")
	}
	if dv, _ := v.RemainingDeltaV(s.Nodes[0].Node.ID); dv.Length() == 0 {
		t.Errorf("snapshot shares nodes with the vessel")
	}
	if v.Snapshot().Target.Frame != "orbital" {
		t.Errorf("snapshot shares attitude target with the vessel")
	}
}
