// executor/approach.go
// Copyright(c) 2025 nodexec contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package executor

import (
	"log/slog"

	"github.com/nodexec/nodexec/maneuver"
	"github.com/nodexec/nodexec/vessel"
)

// approach brings the vessel up to the burn: for each approach margin it
// points along the burn vector and then warps to that many seconds before
// burn start. The start time is recomputed for each margin since thrust
// and mass may have changed.
func (ex *Executor) approach(node maneuver.Node) error {
	for _, margin := range ex.cfg.ApproachMargins {
		if err := ex.align(node); err != nil {
			return err
		}

		plan, err := ex.plan(node)
		if err != nil {
			return err
		}
		if err := ex.warpTo(node, plan.StartTime(node.UT)-margin); err != nil {
			return err
		}
	}
	return nil
}

// align engages the attitude hold pointed prograde in the node's frame and
// blocks until the vessel reports it has converged.
func (ex *Executor) align(node maneuver.Node) error {
	now, err := ex.port.SimTime()
	if err != nil {
		return err
	}
	ex.lg.Infof("Aligning at T0%+.0f seconds", now-node.UT)
	ex.post(Event{Type: AlignEvent, Node: node.ID, UT: now, T0: now - node.UT})

	if err := ex.port.SetAttitudeTarget(vessel.BurnTarget(node)); err != nil {
		return err
	}
	if err := ex.port.EngageAttitudeHold(); err != nil {
		return err
	}
	ex.sleep(ex.cfg.AlignSettle.D())
	return ex.port.WaitForAttitude()
}

// warpTo advances the clock to ut unless we're already there.
func (ex *Executor) warpTo(node maneuver.Node, ut float64) error {
	now, err := ex.port.SimTime()
	if err != nil {
		return err
	}
	if now >= ut {
		ex.lg.Debug("no warp needed", slog.Float64("now", now), slog.Float64("target", ut))
		return nil
	}

	ex.lg.Infof("Warping to T0%+.0f seconds", ut-node.UT)
	ex.post(Event{Type: WarpEvent, Node: node.ID, UT: now, T0: ut - node.UT})
	return ex.port.WarpTo(ut)
}

// waitUntil polls the clock until it reaches ut.
func (ex *Executor) waitUntil(ut float64) error {
	for {
		now, err := ex.port.SimTime()
		if err != nil {
			return err
		}
		if now >= ut {
			return nil
		}
		ex.sleep(ex.cfg.WaitInterval.D())
	}
}
