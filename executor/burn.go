// executor/burn.go
// Copyright(c) 2025 nodexec contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package executor

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nodexec/nodexec/maneuver"
	"github.com/nodexec/nodexec/physics"
	"github.com/nodexec/nodexec/vessel"
)

type BurnState int

const (
	Idle BurnState = iota
	WaitingForStart
	Igniting
	Burning
	Complete
	Aborted
)

var burnStateNames = []string{"Idle", "WaitingForStart", "Igniting", "Burning", "Complete", "Aborted"}

func (s BurnState) String() string {
	if s < 0 || int(s) >= len(burnStateNames) {
		return fmt.Sprintf("BurnState(%d)", int(s))
	}
	return burnStateNames[s]
}

// ExitReason records why the burn loop stopped.
type ExitReason int

const (
	NoReason ExitReason = iota
	// DeltaVReached: the remaining delta-v fell to the residual threshold.
	DeltaVReached
	// Overshot: the remaining delta-v points backward along the burn
	// direction.
	Overshot
	// AttitudeDiverged: the vessel pointed too far off the burn vector.
	AttitudeDiverged
	// ThrustStarved: there was no thrust for too long after staging.
	ThrustStarved
	// TimedOut: the burn ran far longer than planned.
	TimedOut
)

var exitReasonNames = []string{"None", "DeltaVReached", "Overshot", "AttitudeDiverged", "ThrustStarved", "TimedOut"}

func (r ExitReason) String() string {
	if r < 0 || int(r) >= len(exitReasonNames) {
		return fmt.Sprintf("ExitReason(%d)", int(r))
	}
	return exitReasonNames[r]
}

// BurnResult summarizes a single run of the burn controller. Times are in
// simulation seconds.
type BurnResult struct {
	State          BurnState  `json:"state" msgpack:"state"`
	Reason         ExitReason `json:"reason" msgpack:"reason"`
	InitialDeltaV  float64    `json:"initial_delta_v" msgpack:"initial_delta_v"`
	ResidualDeltaV float64    `json:"residual_delta_v" msgpack:"residual_delta_v"`
	Iterations     int        `json:"iterations" msgpack:"iterations"`
	Stagings       int        `json:"stagings" msgpack:"stagings"`
	IgnitionUT     float64    `json:"ignition_ut" msgpack:"ignition_ut"`
	ShutdownUT     float64    `json:"shutdown_ut" msgpack:"shutdown_ut"`
}

func (r BurnResult) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("state", r.State.String()),
		slog.String("reason", r.Reason.String()),
		slog.Float64("initial_delta_v", r.InitialDeltaV),
		slog.Float64("residual_delta_v", r.ResidualDeltaV),
		slog.Int("iterations", r.Iterations),
		slog.Int("stagings", r.Stagings),
		slog.Float64("ignition_ut", r.IgnitionUT),
		slog.Float64("shutdown_ut", r.ShutdownUT))
}

// burnLoop holds the state of the closed-loop controller for the duration
// of one burn.
type burnLoop struct {
	ex   *Executor
	node maneuver.Node
	// plan is the plan the burn was started with; the timeout is measured
	// against it.
	plan physics.Plan

	attitude  vessel.ScalarStream
	remaining vessel.VectorStream

	initial  float64
	baseline float64 // thrust when the current stage was lit
	throttle float64 // last commanded
	now      float64

	// wallStart is when the engine was lit, by the local clock.
	wallStart time.Time

	starving     bool
	starvedSince float64

	result BurnResult
}

// burn waits for the burn start time and then runs the throttle loop
// until the node's delta-v has been delivered or something goes wrong.
// However it exits, the throttle is zeroed and the telemetry streams are
// closed.
func (ex *Executor) burn(node maneuver.Node) (result BurnResult, plan physics.Plan, err error) {
	l := &burnLoop{ex: ex, node: node}
	l.result.State = WaitingForStart

	if l.plan, err = ex.plan(node); err != nil {
		return l.result, l.plan, err
	}
	if err = ex.waitUntil(l.plan.StartTime(node.UT)); err != nil {
		return l.result, l.plan, err
	}

	l.result.State = Igniting
	defer func() {
		if serr := l.shutdown(); err == nil {
			err = serr
		}
		if ex.recorder != nil && ex.recorder.Recording() {
			if _, rerr := ex.recorder.Finish(l.result); rerr != nil {
				ex.lg.Warnf("unable to save burn recording: %v", rerr)
			}
		}
		result, plan = l.result, l.plan
	}()

	if err = l.ignite(); err != nil {
		return
	}

	l.result.State = Burning
	for {
		var done bool
		if done, err = l.step(); err != nil || done {
			return
		}
		ex.sleep(ex.cfg.LoopInterval.D())
	}
}

func (l *burnLoop) ignite() error {
	port := l.ex.port

	var err error
	if l.attitude, err = port.StreamAttitudeError(); err != nil {
		return err
	}
	if l.remaining, err = port.StreamRemainingDeltaV(l.node.ID); err != nil {
		return err
	}

	dv, err := l.remaining.Get()
	if err != nil {
		return err
	}
	l.initial = dv.Length()
	l.result.InitialDeltaV = l.initial
	l.result.ResidualDeltaV = l.initial

	if l.baseline, err = port.AvailableThrust(); err != nil {
		return err
	}
	if l.now, err = port.SimTime(); err != nil {
		return err
	}
	l.result.IgnitionUT = l.now
	l.wallStart = l.ex.clock()

	l.throttle = l.plan.MaximumThrottle * physics.ThrottleTaper(1)
	if err := port.SetThrottle(l.throttle); err != nil {
		return err
	}

	if l.ex.recorder != nil {
		if err := l.ex.recorder.Begin(l.node, l.plan); err != nil {
			l.ex.lg.Warnf("unable to start burn recording: %v", err)
		}
	}

	l.ex.lg.Info("ignition", slog.Any("node", l.node), slog.Any("plan", l.plan),
		slog.Float64("t0", l.now-l.node.UT))
	l.ex.post(Event{Type: IgnitionEvent, Node: l.node.ID, UT: l.now, T0: l.now - l.node.UT,
		DeltaV: l.initial})
	return nil
}

// step runs a single iteration of the burn loop, returning true once the
// burn is over.
func (l *burnLoop) step() (bool, error) {
	port, cfg := l.ex.port, &l.ex.cfg
	l.result.Iterations++

	var err error
	if l.now, err = port.SimTime(); err != nil {
		return false, err
	}

	// Throttle for the remaining delta-v.
	dv, err := l.remaining.Get()
	if err != nil {
		return false, err
	}
	mag := dv.Length()
	l.result.ResidualDeltaV = mag

	thrust, err := port.AvailableThrust()
	if err != nil {
		return false, err
	}
	isp, err := port.SpecificImpulse()
	if err != nil {
		return false, err
	}
	mass, err := port.Mass()
	if err != nil {
		return false, err
	}

	// Zero thrust or Isp means there's nothing to size the throttle with
	// (e.g., the stage just burned out); leave the throttle alone.
	plan, perr := physics.MakePlan(thrust, isp, mass, l.node.DeltaV, cfg.MinimumBurnTime.Seconds(),
		cfg.StandardGravity)
	if perr == nil {
		l.throttle = plan.MaximumThrottle * physics.ThrottleTaper(mag/l.initial)
		if err := port.SetThrottle(l.throttle); err != nil {
			return false, err
		}
	}

	if err := l.autoStage(thrust); err != nil {
		return false, err
	}

	attitudeError, err := l.attitude.Get()
	if err != nil {
		return false, err
	}

	if l.ex.recorder != nil {
		l.ex.recorder.Sample(Sample{
			UT:              l.now,
			Throttle:        l.throttle,
			RemainingDeltaV: mag,
			AttitudeError:   attitudeError,
			Thrust:          thrust,
			Mass:            mass,
		})
	}

	if attitudeError > cfg.AbortAttitudeError {
		return l.finish(Aborted, AttitudeDiverged)
	}

	// The residual can't be smaller than what one iteration at the floor
	// throttle adds, or we'd keep burning past the target.
	residual := cfg.ResidualDeltaV
	if perr == nil && mass > 0 {
		bit := plan.MaximumThrottle * physics.TaperFloor * thrust / mass * cfg.LoopInterval.Seconds()
		residual = max(residual, bit)
	}
	if mag <= residual {
		return l.finish(Complete, DeltaVReached)
	}
	if dv.Y() <= 0 {
		return l.finish(Complete, Overshot)
	}

	if thrust == 0 && l.result.Stagings > 0 {
		if !l.starving {
			l.starving, l.starvedSince = true, l.now
		} else if l.now-l.starvedSince >= cfg.StarvationTimeout.Seconds() {
			return l.finish(Aborted, ThrustStarved)
		}
	} else {
		l.starving = false
	}

	limit := cfg.BurnTimeoutFactor*l.plan.EffectiveDuration + cfg.BurnTimeoutSlack.Seconds()
	if l.now-l.result.IgnitionUT > limit {
		return l.finish(Aborted, TimedOut)
	}
	// The game's clock stops while it is paused; real time doesn't.
	if wall := l.ex.clock().Sub(l.wallStart).Seconds(); wall > limit {
		l.ex.lg.Warn("burn exceeded its deadline in real time", slog.Float64("wall", wall),
			slog.Float64("sim", l.now-l.result.IgnitionUT), slog.Float64("limit", limit))
		return l.finish(Aborted, TimedOut)
	}
	if cfg.MaxIterations > 0 && l.result.Iterations >= cfg.MaxIterations {
		return l.finish(Aborted, TimedOut)
	}

	return false, nil
}

// autoStage activates the next stage if the available thrust has dropped
// well below what it was when the current stage was lit.
func (l *burnLoop) autoStage(thrust float64) error {
	if l.baseline == 0 {
		if thrust > 0 {
			l.baseline = thrust
		}
		return nil
	}
	if thrust/l.baseline >= l.ex.cfg.StagingThrustRatio {
		return nil
	}

	port, settle := l.ex.port, l.ex.cfg.StageSettle.D()

	if err := port.SetThrottle(0); err != nil {
		return err
	}
	l.ex.sleep(settle)
	if err := port.ActivateNextStage(); err != nil {
		return err
	}
	l.result.Stagings++

	l.ex.lg.Info("staged", slog.Float64("thrust", thrust), slog.Float64("baseline", l.baseline),
		slog.Float64("t0", l.now-l.node.UT))
	l.ex.post(Event{Type: StagingEvent, Node: l.node.ID, UT: l.now, T0: l.now - l.node.UT,
		DeltaV: l.result.ResidualDeltaV})

	l.ex.sleep(settle)
	if err := port.SetThrottle(l.throttle); err != nil {
		return err
	}

	var err error
	l.baseline, err = port.AvailableThrust()
	return err
}

func (l *burnLoop) finish(state BurnState, reason ExitReason) (bool, error) {
	l.result.State, l.result.Reason = state, reason
	return true, nil
}

// shutdown zeroes the throttle and then releases the streams. Each step
// is attempted even if an earlier one fails; the first error is returned.
func (l *burnLoop) shutdown() error {
	err := l.ex.port.SetThrottle(0)
	if l.remaining != nil {
		if cerr := l.remaining.Close(); err == nil {
			err = cerr
		}
		l.remaining = nil
	}
	if l.attitude != nil {
		if cerr := l.attitude.Close(); err == nil {
			err = cerr
		}
		l.attitude = nil
	}
	l.result.ShutdownUT = l.now
	return err
}
