// physics/burn_test.go
// Copyright(c) 2025 nodexec contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package physics

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
)

func TestBurnDurationAtMaxThrust(t *testing.T) {
	for _, c := range []struct {
		thrust, isp, mass, dv float64
		expected              float64
	}{
		{thrust: 100, isp: 200, mass: 300, dv: 10, expected: 29.9},
		{thrust: 200000, isp: 800, mass: 40000000, dv: 30, expected: 5988.6},
		{thrust: 100, isp: 200, mass: 300, dv: 0, expected: 0},
	} {
		d, err := BurnDurationAtMaxThrust(c.thrust, c.isp, c.mass, c.dv, StandardGravity)
		if err != nil {
			t.Errorf("%+v: unexpected error %v", c, err)
		}
		if math.Abs(d-c.expected) > 0.1 {
			t.Errorf("%+v: got %.3f, expected %.1f", c, d, c.expected)
		}
	}
}

func TestBurnDurationZeroInputs(t *testing.T) {
	if _, err := BurnDurationAtMaxThrust(0, 200, 300, 10, StandardGravity); !errors.Is(err, ErrNoThrust) {
		t.Errorf("zero thrust: got %v, expected ErrNoThrust", err)
	}
	if _, err := BurnDurationAtMaxThrust(100, 0, 300, 10, StandardGravity); !errors.Is(err, ErrNoSpecificImpulse) {
		t.Errorf("zero Isp: got %v, expected ErrNoSpecificImpulse", err)
	}
	if _, err := MakePlan(0, 200, 300, 10, 4, StandardGravity); !errors.Is(err, ErrNoThrust) {
		t.Errorf("MakePlan with zero thrust: got %v, expected ErrNoThrust", err)
	}
}

func TestBurnDurationMonotonic(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	dur := func(f, isp, m, dv float64) float64 {
		d, err := BurnDurationAtMaxThrust(f, isp, m, dv, StandardGravity)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return d
	}

	for range 1000 {
		f := 1 + r.Float64()*1e6
		isp := 50 + r.Float64()*500
		m := 1 + r.Float64()*1e5
		dv := r.Float64() * 3000
		d := dur(f, isp, m, dv)

		if d2 := dur(f, isp, m, dv*(1+r.Float64())); d2 < d {
			t.Errorf("duration decreased with more delta-v: %g -> %g", d, d2)
		}
		if d2 := dur(f, isp, m*(1+r.Float64()), dv); d2 < d {
			t.Errorf("duration decreased with more mass: %g -> %g", d, d2)
		}
		if d2 := dur(f*(1+r.Float64()), isp, m, dv); d2 > d {
			t.Errorf("duration increased with more thrust: %g -> %g", d, d2)
		}
	}
}

func TestMaximumThrottleAndDuration(t *testing.T) {
	const burnTime = 29.9237

	for _, c := range []struct {
		name            string
		minimum         float64
		expectThrottle  float64
		expectEffective float64
	}{
		{"burn time greater than minimum", burnTime / 2, 1, burnTime},
		{"no minimum", 0, 1, burnTime},
		{"burn time less than minimum", burnTime * 2, 0.5, burnTime * 2},
	} {
		mt := MaximumThrottle(burnTime, c.minimum)
		if math.Abs(mt-c.expectThrottle) > 1e-3 {
			t.Errorf("%s: maximum throttle %f, expected %f", c.name, mt, c.expectThrottle)
		}
		if mt <= 0 || mt > 1 {
			t.Errorf("%s: maximum throttle %f outside (0,1]", c.name, mt)
		}
		ed := EffectiveDuration(burnTime, c.minimum)
		if math.Abs(ed-c.expectEffective) > 1e-9 {
			t.Errorf("%s: effective duration %f, expected %f", c.name, ed, c.expectEffective)
		}
		if ed < burnTime {
			t.Errorf("%s: effective duration %f shorter than burn time", c.name, ed)
		}
	}
}

func TestMakePlan(t *testing.T) {
	d, _ := BurnDurationAtMaxThrust(100, 200, 300, 10, StandardGravity)
	p, err := MakePlan(100, 200, 300, 10, 2*d, StandardGravity)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(p.MaximumThrottle-0.5) > 1e-3 {
		t.Errorf("maximum throttle %f, expected 0.5", p.MaximumThrottle)
	}
	if p.EffectiveDuration != p.MinimumDuration {
		t.Errorf("effective duration %f, expected minimum %f", p.EffectiveDuration, p.MinimumDuration)
	}
	if st := p.StartTime(2000); math.Abs(st-(2000-d)) > 1e-9 {
		t.Errorf("start time %f, expected %f", st, 2000-d)
	}

	fp := FallbackPlan(4)
	if !fp.Fallback || fp.MaximumThrottle != 1 || fp.EffectiveDuration != 4 {
		t.Errorf("unexpected fallback plan %+v", fp)
	}
	if st := fp.StartTime(20); st != 18 {
		t.Errorf("fallback start time %f, expected 18", st)
	}
}

func TestThrottleTaper(t *testing.T) {
	for _, c := range []struct {
		ratio, expected float64
	}{
		{1, 1},
		{1.5, 1},
		{0.1, 1},
		{0.05, 0.5},
		{0.01, 0.1},
		{0.001, TaperFloor},
		{0, TaperFloor},
		{-0.2, TaperFloor},
	} {
		if got := ThrottleTaper(c.ratio); math.Abs(got-c.expected) > 1e-12 {
			t.Errorf("ThrottleTaper(%f): got %f, expected %f", c.ratio, got, c.expected)
		}
	}

	prev := ThrottleTaper(0)
	for r := 0.0; r <= 2; r += 0.001 {
		v := ThrottleTaper(r)
		if v < prev {
			t.Errorf("taper decreased at ratio %f: %f -> %f", r, prev, v)
		}
		if v < TaperFloor || v > 1 {
			t.Errorf("taper %f out of bounds at ratio %f", v, r)
		}
		if r >= 1 && v != 1 {
			t.Errorf("taper %f at ratio %f, expected exactly 1", v, r)
		}
		prev = v
	}
}
