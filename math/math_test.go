// math/math_test.go
// Copyright(c) 2025 nodexec contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

import (
	"math"
	"testing"
)

func TestClamp(t *testing.T) {
	for _, c := range []struct {
		x, lo, hi, expected float64
	}{
		{0.5, 0, 1, 0.5},
		{-3, 0, 1, 0},
		{12, 0, 1, 1},
		{0.01, 0.05, 1, 0.05},
	} {
		if got := Clamp(c.x, c.lo, c.hi); got != c.expected {
			t.Errorf("Clamp(%f, %f, %f): got %f, expected %f", c.x, c.lo, c.hi, got, c.expected)
		}
	}

	if Clamp(7, 0, 5) != 5 {
		t.Errorf("integer Clamp failed")
	}
}

func TestVector3(t *testing.T) {
	a, b := Vector3{1, 2, 3}, Vector3{-2, 0.5, 4}

	if s := a.Add(b); s != (Vector3{-1, 2.5, 7}) {
		t.Errorf("Add: got %v", s)
	}
	if d := a.Sub(b); d != (Vector3{3, 1.5, -1}) {
		t.Errorf("Sub: got %v", d)
	}
	if d := a.Dot(b); d != 11 {
		t.Errorf("Dot: got %f, expected 11", d)
	}
	if l := (Vector3{3, 4, 0}).Length(); l != 5 {
		t.Errorf("Length: got %f, expected 5", l)
	}
	if n := (Vector3{}).Normalize(); n != (Vector3{}) {
		t.Errorf("Normalize of zero vector: got %v", n)
	}
	if c := (Vector3{1, 0, 0}).Cross(Vector3{0, 1, 0}); c != (Vector3{0, 0, 1}) {
		t.Errorf("Cross: got %v", c)
	}
}

func TestAngleBetween(t *testing.T) {
	for _, c := range []struct {
		a, b     Vector3
		expected float64
	}{
		{Vector3{0, 1, 0}, Vector3{0, 1, 0}, 0},
		{Vector3{0, 1, 0}, Vector3{1, 0, 0}, 90},
		{Vector3{0, 1, 0}, Vector3{0, -3, 0}, 180},
		{Vector3{0, 1, 0}, Vector3{1, 1, 0}, 45},
	} {
		if got := AngleBetween(c.a, c.b); math.Abs(got-c.expected) > 1e-6 {
			t.Errorf("AngleBetween(%v, %v): got %f, expected %f", c.a, c.b, got, c.expected)
		}
	}
}

func TestRotateTowards(t *testing.T) {
	from, to := Vector3{1, 0, 0}, Vector3{0, 1, 0}

	v := RotateTowards(from, to, 30)
	if a := AngleBetween(from, v); math.Abs(a-30) > 1e-6 {
		t.Errorf("rotated %f degrees, expected 30", a)
	}
	if a := AngleBetween(v, to); math.Abs(a-60) > 1e-6 {
		t.Errorf("remaining angle %f, expected 60", a)
	}

	if v := RotateTowards(from, to, 120); v != to {
		t.Errorf("expected to reach target, got %v", v)
	}

	// Antiparallel vectors still make progress.
	v = RotateTowards(Vector3{0, 1, 0}, Vector3{0, -1, 0}, 10)
	if a := AngleBetween(Vector3{0, 1, 0}, v); math.Abs(a-10) > 1e-6 {
		t.Errorf("antiparallel rotation %f degrees, expected 10", a)
	}
}
