// vessel/snapshot.go
// Copyright(c) 2025 nodexec contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package vessel

import "log/slog"

// Snapshot is a point-in-time set of readings. Each field is read with a
// separate call, so the values may be slightly inconsistent with each
// other.
type Snapshot struct {
	AvailableThrust float64 `json:"available_thrust" msgpack:"available_thrust"`
	SpecificImpulse float64 `json:"specific_impulse" msgpack:"specific_impulse"`
	Mass            float64 `json:"mass" msgpack:"mass"`
	AttitudeError   float64 `json:"attitude_error" msgpack:"attitude_error"`
	SimTime         float64 `json:"sim_time" msgpack:"sim_time"`
}

func ReadSnapshot(p Port) (Snapshot, error) {
	var s Snapshot
	var err error
	if s.AvailableThrust, err = p.AvailableThrust(); err != nil {
		return Snapshot{}, err
	}
	if s.SpecificImpulse, err = p.SpecificImpulse(); err != nil {
		return Snapshot{}, err
	}
	if s.Mass, err = p.Mass(); err != nil {
		return Snapshot{}, err
	}
	if s.AttitudeError, err = p.AttitudeError(); err != nil {
		return Snapshot{}, err
	}
	if s.SimTime, err = p.SimTime(); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

func (s Snapshot) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("available_thrust", s.AvailableThrust),
		slog.Float64("specific_impulse", s.SpecificImpulse),
		slog.Float64("mass", s.Mass),
		slog.Float64("attitude_error", s.AttitudeError),
		slog.Float64("sim_time", s.SimTime))
}
