// math/vecmat.go
// Copyright(c) 2025 nodexec contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

import (
	"fmt"
	gomath "math"
)

///////////////////////////////////////////////////////////////////////////
// Vector3

// Vector3 is a direction or velocity in some reference frame; which one
// is up to the caller. Components are stored as a fixed array so that
// they serialize compactly.
type Vector3 [3]float64

func (v Vector3) X() float64 { return v[0] }
func (v Vector3) Y() float64 { return v[1] }
func (v Vector3) Z() float64 { return v[2] }

// a+b
func (v Vector3) Add(b Vector3) Vector3 {
	return Vector3{v[0] + b[0], v[1] + b[1], v[2] + b[2]}
}

// a-b
func (v Vector3) Sub(b Vector3) Vector3 {
	return Vector3{v[0] - b[0], v[1] - b[1], v[2] - b[2]}
}

// a*s
func (v Vector3) Scale(s float64) Vector3 {
	return Vector3{s * v[0], s * v[1], s * v[2]}
}

func (v Vector3) Dot(b Vector3) float64 {
	return v[0]*b[0] + v[1]*b[1] + v[2]*b[2]
}

func (v Vector3) Cross(b Vector3) Vector3 {
	return Vector3{
		v[1]*b[2] - v[2]*b[1],
		v[2]*b[0] - v[0]*b[2],
		v[0]*b[1] - v[1]*b[0],
	}
}

func (v Vector3) Length() float64 {
	return gomath.Sqrt(v.Dot(v))
}

// Normalize returns a unit vector in the direction of v, or the zero
// vector if v has zero length.
func (v Vector3) Normalize() Vector3 {
	l := v.Length()
	if l == 0 {
		return Vector3{}
	}
	return v.Scale(1 / l)
}

func (v Vector3) String() string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f)", v[0], v[1], v[2])
}

// AngleBetween returns the angle between v1 and v2 in degrees.
// Equivalent to acos(Dot(a, b)) for unit vectors, but more numerically stable.
// via http://www.plunk.org/~hatch/rightway.html
func AngleBetween(v1, v2 Vector3) float64 {
	v1, v2 = v1.Normalize(), v2.Normalize()
	asin := func(a float64) float64 {
		return gomath.Asin(Clamp(a, -1, 1))
	}

	if v1.Dot(v2) < 0 {
		return Degrees(gomath.Pi - 2*asin(v1.Add(v2).Length()/2))
	} else {
		return Degrees(2 * asin(v2.Sub(v1).Length()/2))
	}
}

// RotateTowards rotates unit vector from towards unit vector to by at most
// maxDegrees, returning the new (unit) direction.
func RotateTowards(from, to Vector3, maxDegrees float64) Vector3 {
	from, to = from.Normalize(), to.Normalize()
	angle := AngleBetween(from, to)
	if angle <= maxDegrees || angle == 0 {
		return to
	}

	axis := from.Cross(to)
	if axis.Length() < 1e-9 {
		// Antiparallel; any perpendicular axis will do.
		axis = from.Cross(Vector3{1, 0, 0})
		if axis.Length() < 1e-9 {
			axis = from.Cross(Vector3{0, 0, 1})
		}
	}
	axis = axis.Normalize()

	// Rodrigues' rotation formula.
	theta := Radians(maxDegrees)
	s, c := gomath.Sin(theta), gomath.Cos(theta)
	return from.Scale(c).Add(axis.Cross(from).Scale(s)).Add(axis.Scale(axis.Dot(from) * (1 - c))).Normalize()
}
