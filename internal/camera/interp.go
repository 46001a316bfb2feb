package camera

import "github.com/go-gl/mathgl/mgl64"

// Ease is the ease-in-out cubic curve applied to transition progress.
// Input outside [0,1] is clamped.
func Ease(t float64) float64 {
	switch {
	case t <= 0:
		return 0
	case t >= 1:
		return 1
	case t < 0.5:
		return 4 * t * t * t
	default:
		u := -2*t + 2
		return 1 - u*u*u/2
	}
}

// Lerp interpolates linearly between a and b. It returns a exactly for
// t <= 0 and b exactly for t >= 1, so a finished transition lands on its
// authored end point without rounding drift.
func Lerp(a, b mgl64.Vec3, t float64) mgl64.Vec3 {
	if t <= 0 {
		return a
	}
	if t >= 1 {
		return b
	}
	return a.Add(b.Sub(a).Mul(t))
}

// Pose is a camera eye point and look-at point. The two always move
// together.
type Pose struct {
	Position mgl64.Vec3
	Target   mgl64.Vec3
}

// LerpPose interpolates position and target with the same factor.
func LerpPose(a, b Pose, t float64) Pose {
	return Pose{
		Position: Lerp(a.Position, b.Position, t),
		Target:   Lerp(a.Target, b.Target, t),
	}
}
