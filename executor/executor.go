// executor/executor.go
// Copyright(c) 2025 nodexec contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package executor flies a vessel through its planned maneuver nodes: it
// lines the vessel up with each burn, warps to just before it, and then
// runs a closed throttle loop until the node's delta-v has been delivered.
package executor

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nodexec/nodexec/log"
	"github.com/nodexec/nodexec/maneuver"
	"github.com/nodexec/nodexec/physics"
	"github.com/nodexec/nodexec/vessel"
)

type Executor struct {
	port     vessel.Port
	cfg      Config
	lg       *log.Logger
	events   *EventStream
	metrics  *Metrics
	recorder *Recorder
	sleep    func(time.Duration)
	clock    func() time.Time
}

type Option func(*Executor)

// WithEventStream makes the executor post transition events to es.
func WithEventStream(es *EventStream) Option {
	return func(ex *Executor) { ex.events = es }
}

func WithMetrics(m *Metrics) Option {
	return func(ex *Executor) { ex.metrics = m }
}

func WithRecorder(r *Recorder) Option {
	return func(ex *Executor) { ex.recorder = r }
}

// WithSleep replaces time.Sleep for the executor's pauses.
func WithSleep(sleep func(time.Duration)) Option {
	return func(ex *Executor) { ex.sleep = sleep }
}

// WithClock replaces time.Now for the executor's wall-clock deadlines.
func WithClock(now func() time.Time) Option {
	return func(ex *Executor) { ex.clock = now }
}

// New returns an Executor that drives the vessel behind port. The
// configuration is taken as given; callers should have validated it with
// Config.Check.
func New(port vessel.Port, cfg Config, lg *log.Logger, opts ...Option) *Executor {
	ex := &Executor{
		port:  port,
		cfg:   cfg,
		lg:    lg,
		sleep: time.Sleep,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(ex)
	}
	return ex
}

func (ex *Executor) Config() Config {
	return ex.cfg
}

// Report describes what ExecuteNode did. If there was no node to execute,
// Executed is false and the rest is zero.
type Report struct {
	Executed bool          `json:"executed"`
	Node     maneuver.Node `json:"node"`
	Plan     physics.Plan  `json:"plan"`
	Burn     BurnResult    `json:"burn"`
}

func (r Report) String() string {
	if !r.Executed {
		return "No node executed."
	}
	s := fmt.Sprintf("%s: %s (%s), %.2f m/s left", r.Node.ID, r.Burn.State, r.Burn.Reason,
		r.Burn.ResidualDeltaV)
	if r.Burn.InitialDeltaV > 0 {
		s += fmt.Sprintf(", %.2f%% of original delta-v", 100*r.Burn.ResidualDeltaV/r.Burn.InitialDeltaV)
	}
	return s
}

func (r Report) LogValue() slog.Value {
	if !r.Executed {
		return slog.GroupValue(slog.Bool("executed", false))
	}
	return slog.GroupValue(
		slog.Bool("executed", true),
		slog.Any("node", r.Node),
		slog.String("plan", r.Plan.String()),
		slog.Any("burn", r.Burn))
}

// NextNode returns the earliest scheduled node, or nil if there are none.
func (ex *Executor) NextNode() (*maneuver.Node, error) {
	nodes, err := ex.port.Nodes()
	if err != nil {
		return nil, err
	}
	ex.metrics.setNodesRemaining(len(nodes))

	if n, ok := maneuver.Earliest(nodes); ok {
		return &n, nil
	}
	return nil, nil
}

func (ex *Executor) HasNode() (bool, error) {
	n, err := ex.NextNode()
	return n != nil, err
}

// ExecuteNode executes the earliest scheduled node: it aligns and warps
// up to the burn, runs the burn, and then releases the attitude hold and
// removes the node. It does nothing if there are no nodes. Errors from
// the vessel are returned as they were received.
func (ex *Executor) ExecuteNode() (Report, error) {
	node, err := ex.NextNode()
	if err != nil {
		return Report{}, err
	} else if node == nil {
		ex.lg.Info("no maneuver node to execute")
		return Report{}, nil
	}

	lg := ex.lg.With(slog.String("node", string(node.ID)))
	lg.Info("executing node", slog.Any("node", *node), slog.Any("config", ex.cfg))

	saved := ex.lg
	ex.lg = lg
	defer func() { ex.lg = saved }()

	if err := ex.approach(*node); err != nil {
		return Report{Node: *node}, err
	}

	result, plan, err := ex.burn(*node)
	report := Report{Executed: true, Node: *node, Plan: plan, Burn: result}
	if err != nil {
		return report, err
	}

	ex.reportBurn(*node, result)

	if err := ex.port.DisengageAttitudeHold(); err != nil {
		return report, err
	}
	if err := ex.port.RemoveNode(node.ID); err != nil {
		return report, err
	}
	ex.post(Event{Type: NodeRemovedEvent, Node: node.ID, UT: result.ShutdownUT,
		T0: result.ShutdownUT - node.UT})

	lg.Info("node executed", slog.Any("report", report))
	return report, nil
}

func (ex *Executor) reportBurn(node maneuver.Node, result BurnResult) {
	ex.metrics.observeBurn(result)

	ev := Event{
		Type:   ShutdownEvent,
		Node:   node.ID,
		UT:     result.ShutdownUT,
		T0:     result.ShutdownUT - node.UT,
		DeltaV: result.ResidualDeltaV,
		Reason: result.Reason,
	}
	if result.State == Aborted {
		ev.Type = AbortEvent
		ex.lg.Warn("burn aborted", slog.Any("result", result))
	} else {
		ex.lg.Info("main engine cutoff", slog.Any("result", result))
	}
	ex.post(ev)
}

// ExecuteAll executes nodes until there are none left, returning a report
// for each one.
func (ex *Executor) ExecuteAll() ([]Report, error) {
	var reports []Report
	for {
		r, err := ex.ExecuteNode()
		if err != nil {
			if r.Executed {
				reports = append(reports, r)
			}
			return reports, err
		}
		if !r.Executed {
			ex.lg.Info("no nodes left to execute", slog.Int("executed", len(reports)))
			return reports, nil
		}
		reports = append(reports, r)
	}
}

// Describe returns a one-line summary of the next burn, e.g. "Will burn
// for 52.3 m/s starting in 1204.5 seconds."
func (ex *Executor) Describe() (string, error) {
	node, err := ex.NextNode()
	if err != nil {
		return "", err
	} else if node == nil {
		return "", ErrNoNode
	}

	snap, err := vessel.ReadSnapshot(ex.port)
	if err != nil {
		return "", err
	}
	ex.lg.Debug("describing burn", slog.Any("node", *node), slog.Any("vessel", snap))

	plan, err := ex.size(*node, snap.AvailableThrust, snap.SpecificImpulse, snap.Mass)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Will burn for %.1f m/s starting in %.1f seconds.", node.DeltaV,
		plan.StartTime(node.UT)-snap.SimTime), nil
}

// Plan returns the burn plan for the next node given the vessel's current
// state.
func (ex *Executor) Plan() (*maneuver.Node, physics.Plan, error) {
	node, err := ex.NextNode()
	if err != nil {
		return nil, physics.Plan{}, err
	} else if node == nil {
		return nil, physics.Plan{}, ErrNoNode
	}
	plan, err := ex.plan(*node)
	return node, plan, err
}

// plan sizes the burn for node from the vessel's current thrust, Isp and
// mass. If the vessel has no thrust, the fallback plan is returned.
func (ex *Executor) plan(node maneuver.Node) (physics.Plan, error) {
	thrust, err := ex.port.AvailableThrust()
	if err != nil {
		return physics.Plan{}, err
	}
	isp, err := ex.port.SpecificImpulse()
	if err != nil {
		return physics.Plan{}, err
	}
	mass, err := ex.port.Mass()
	if err != nil {
		return physics.Plan{}, err
	}
	return ex.size(node, thrust, isp, mass)
}

func (ex *Executor) size(node maneuver.Node, thrust, isp, mass float64) (physics.Plan, error) {
	minimum := ex.cfg.MinimumBurnTime.Seconds()
	plan, err := physics.MakePlan(thrust, isp, mass, node.DeltaV, minimum, ex.cfg.StandardGravity)
	if errors.Is(err, physics.ErrNoThrust) || errors.Is(err, physics.ErrNoSpecificImpulse) {
		ex.lg.Warn("unable to size burn; assuming minimum duration", slog.Any("error", err),
			slog.Float64("thrust", thrust), slog.Float64("isp", isp))
		return physics.FallbackPlan(minimum), nil
	}
	return plan, err
}

func (ex *Executor) post(e Event) {
	if ex.events != nil {
		ex.events.Post(e)
	}
}
