// executor/config.go
// Copyright(c) 2025 nodexec contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package executor

import (
	"log/slog"
	"time"

	"github.com/nodexec/nodexec/physics"
	"github.com/nodexec/nodexec/util"
)

// Config holds the tunables for node execution. StarvationTimeout is
// measured in simulated seconds and the pauses in real time. A burn times
// out once BurnTimeoutFactor times its planned duration plus
// BurnTimeoutSlack has passed on either clock.
type Config struct {
	// MinimumBurnTime is the shortest burn we're willing to do; shorter
	// burns are stretched by lowering the throttle.
	MinimumBurnTime util.Duration `json:"minimum_burn_time"`
	// ApproachMargins are the successive lead times, in seconds before
	// burn start, to which we warp, re-aligning before each one.
	ApproachMargins []float64 `json:"approach_margins"`

	AbortAttitudeError float64       `json:"abort_attitude_error"` // degrees
	StagingThrustRatio float64       `json:"staging_thrust_ratio"`
	StageSettle        util.Duration `json:"stage_settle"`
	AlignSettle        util.Duration `json:"align_settle"`
	LoopInterval       util.Duration `json:"loop_interval"`
	WaitInterval       util.Duration `json:"wait_interval"`

	// ResidualDeltaV is the remaining delta-v (m/s) at which a burn is
	// considered done.
	ResidualDeltaV    float64       `json:"residual_delta_v"`
	StarvationTimeout util.Duration `json:"starvation_timeout"`
	BurnTimeoutFactor float64       `json:"burn_timeout_factor"`
	BurnTimeoutSlack  util.Duration `json:"burn_timeout_slack"`
	// MaxIterations caps the number of burn loop iterations if non-zero.
	MaxIterations int `json:"max_iterations"`

	StandardGravity float64 `json:"standard_gravity"`
}

func DefaultConfig() Config {
	return Config{
		MinimumBurnTime:    util.Duration(4 * time.Second),
		ApproachMargins:    []float64{180, 5},
		AbortAttitudeError: 20,
		StagingThrustRatio: 0.9,
		StageSettle:        util.Duration(100 * time.Millisecond),
		AlignSettle:        util.Duration(100 * time.Millisecond),
		LoopInterval:       util.Duration(10 * time.Millisecond),
		WaitInterval:       util.Duration(10 * time.Millisecond),
		ResidualDeltaV:     0.05,
		StarvationTimeout:  util.Duration(5 * time.Second),
		BurnTimeoutFactor:  2,
		BurnTimeoutSlack:   util.Duration(30 * time.Second),
		StandardGravity:    physics.StandardGravity,
	}
}

// LoadConfig returns the default configuration overridden by whatever is
// set in the given JSON file. Problems with the file or the resulting
// values are reported to e.
func LoadConfig(filename string, e *util.ErrorLogger) Config {
	c := DefaultConfig()
	util.LoadJSONFile(filename, &c, e)
	if !e.HaveErrors() {
		c.Check(e)
	}
	return c
}

func (c *Config) Check(e *util.ErrorLogger) {
	defer e.CheckDepth(e.CurrentDepth())

	e.Push("executor config")
	defer e.Pop()

	if c.MinimumBurnTime < 0 {
		e.ErrorString("minimum_burn_time %s must not be negative", c.MinimumBurnTime)
	}
	for _, m := range c.ApproachMargins {
		if m < 0 {
			e.ErrorString("approach margin %.1f must not be negative", m)
		}
	}
	if c.AbortAttitudeError <= 0 {
		e.ErrorString("abort_attitude_error %.1f must be positive", c.AbortAttitudeError)
	}
	if c.StagingThrustRatio <= 0 || c.StagingThrustRatio > 1 {
		e.ErrorString("staging_thrust_ratio %.2f must be in (0, 1]", c.StagingThrustRatio)
	}
	if c.StageSettle < 0 || c.AlignSettle < 0 || c.LoopInterval < 0 || c.WaitInterval < 0 {
		e.ErrorString("pause durations must not be negative")
	}
	if c.ResidualDeltaV < 0 {
		e.ErrorString("residual_delta_v %.3f must not be negative", c.ResidualDeltaV)
	}
	if c.StarvationTimeout <= 0 {
		e.ErrorString("starvation_timeout %s must be positive", c.StarvationTimeout)
	}
	if c.BurnTimeoutFactor < 1 {
		e.ErrorString("burn_timeout_factor %.2f must be at least 1", c.BurnTimeoutFactor)
	}
	if c.BurnTimeoutSlack < 0 {
		e.ErrorString("burn_timeout_slack %s must not be negative", c.BurnTimeoutSlack)
	}
	if c.MaxIterations < 0 {
		e.ErrorString("max_iterations %d must not be negative", c.MaxIterations)
	}
	if c.StandardGravity <= 0 {
		e.ErrorString("standard_gravity %.3f must be positive", c.StandardGravity)
	}
}

func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Duration("minimum_burn_time", c.MinimumBurnTime.D()),
		slog.Any("approach_margins", c.ApproachMargins),
		slog.Float64("abort_attitude_error", c.AbortAttitudeError),
		slog.Float64("staging_thrust_ratio", c.StagingThrustRatio),
		slog.Duration("loop_interval", c.LoopInterval.D()),
		slog.Float64("residual_delta_v", c.ResidualDeltaV),
		slog.Duration("starvation_timeout", c.StarvationTimeout.D()),
		slog.Float64("burn_timeout_factor", c.BurnTimeoutFactor),
		slog.Duration("burn_timeout_slack", c.BurnTimeoutSlack.D()),
		slog.Int("max_iterations", c.MaxIterations))
}
