// sim/scenario.go
// Copyright(c) 2025 nodexec contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"fmt"
	"slices"

	"github.com/nodexec/nodexec/maneuver"
	"github.com/nodexec/nodexec/math"
	"github.com/nodexec/nodexec/physics"
	"github.com/nodexec/nodexec/util"
)

// Stage is one set of engines and the propellant that feeds them. Stages
// fire in the order they are listed.
type Stage struct {
	Name           string  `json:"name"`
	DryMass        float64 `json:"dry_mass"`        // kg
	PropellantMass float64 `json:"propellant_mass"` // kg
	Thrust         float64 `json:"thrust"`          // N
	Isp            float64 `json:"isp"`             // s
}

type VesselConfig struct {
	Name        string  `json:"name"`
	PayloadMass float64 `json:"payload_mass"`
	Stages      []Stage `json:"stages"`
}

// Scenario describes the starting state of a simulated vessel: its stages,
// the maneuver nodes already planned for it, and the reference frames the
// nodes are expressed in.
type Scenario struct {
	Vessel VesselConfig    `json:"vessel"`
	Nodes  []maneuver.Node `json:"nodes"`
	// Frames gives the prograde direction of each reference frame in the
	// simulator's inertial frame.
	Frames  map[maneuver.Frame]math.Vector3 `json:"frames"`
	StartUT float64                         `json:"start_ut"`
	// Initial pointing; defaults to +X.
	Heading math.Vector3 `json:"heading"`

	AttitudeRate      float64 `json:"attitude_rate"`      // deg/s
	AttitudeTolerance float64 `json:"attitude_tolerance"` // deg
	// SimRate scales wallclock time when the vessel is advanced with
	// Update.
	SimRate float64 `json:"sim_rate"`
	// If LockStep is non-zero, time only advances by LockStep seconds
	// each time the clock is read.
	LockStep        float64 `json:"lock_step"`
	StandardGravity float64 `json:"standard_gravity"`
}

// LoadScenario reads a scenario from a JSON file, filling in defaults
// for unset values and reporting any problems to e.
func LoadScenario(filename string, e *util.ErrorLogger) *Scenario {
	var s Scenario
	util.LoadJSONFile(filename, &s, e)
	if e.HaveErrors() {
		return nil
	}

	e.Push(filename)
	defer e.Pop()

	s.PostDeserialize(e)
	if e.HaveErrors() {
		return nil
	}
	return &s
}

// PostDeserialize fills in defaults and validates the scenario.
func (s *Scenario) PostDeserialize(e *util.ErrorLogger) {
	defer e.CheckDepth(e.CurrentDepth())

	if s.AttitudeRate == 0 {
		s.AttitudeRate = 5
	}
	if s.AttitudeTolerance == 0 {
		s.AttitudeTolerance = 0.5
	}
	if s.SimRate == 0 {
		s.SimRate = 1
	}
	if s.StandardGravity == 0 {
		s.StandardGravity = physics.StandardGravity
	}
	if s.Heading == (math.Vector3{}) {
		s.Heading = math.Vector3{1, 0, 0}
	}

	e.Push("vessel")
	if len(s.Vessel.Stages) == 0 {
		e.ErrorString("no stages specified")
	}
	if s.Vessel.PayloadMass < 0 {
		e.ErrorString("payload_mass %.1f must not be negative", s.Vessel.PayloadMass)
	}
	for i, st := range s.Vessel.Stages {
		e.Push(fmt.Sprintf("stage %d", i))
		if st.DryMass < 0 || st.PropellantMass < 0 {
			e.ErrorString("masses must not be negative")
		}
		if st.Thrust < 0 || st.Isp < 0 {
			e.ErrorString("thrust and isp must not be negative")
		}
		if st.Thrust > 0 && st.Isp == 0 {
			e.ErrorString("engine with thrust must have a non-zero isp")
		}
		e.Pop()
	}
	if s.Mass() <= 0 {
		e.ErrorString("vessel has no mass")
	}
	e.Pop()

	for name, dir := range s.Frames {
		if dir.Length() == 0 {
			e.ErrorString("frame %q: prograde direction must be non-zero", name)
		}
	}

	var ids []maneuver.NodeID
	for _, n := range s.Nodes {
		e.Push(fmt.Sprintf("node %q", n.ID))
		if n.ID == "" {
			e.ErrorString("node must have an id")
		} else if slices.Contains(ids, n.ID) {
			e.ErrorString("node id repeated")
		}
		ids = append(ids, n.ID)
		if _, ok := s.Frames[n.Frame]; !ok {
			e.ErrorString("frame %q not defined", n.Frame)
		}
		if n.DeltaV < 0 {
			e.ErrorString("delta_v %.1f must not be negative", n.DeltaV)
		}
		e.Pop()
	}

	if s.AttitudeRate < 0 {
		e.ErrorString("attitude_rate %.1f must be positive", s.AttitudeRate)
	}
	if s.AttitudeTolerance < 0 {
		e.ErrorString("attitude_tolerance %.1f must be positive", s.AttitudeTolerance)
	}
	if s.SimRate < 0 || s.LockStep < 0 {
		e.ErrorString("sim_rate and lock_step must not be negative")
	}
}

// Mass returns the total initial mass of the vessel.
func (s *Scenario) Mass() float64 {
	m := s.Vessel.PayloadMass
	for _, st := range s.Vessel.Stages {
		m += st.DryMass + st.PropellantMass
	}
	return m
}
