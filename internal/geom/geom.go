// Package geom provides the rigid-body primitives shared by the planner: poses,
// quaternion rotations and frame-to-frame transforms.
package geom

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// RigidTolerance bounds the drift allowed in a rotation block before a
// transform stops counting as rigid.
const RigidTolerance = 1e-3

// IdentityRotation is the zero rotation.
var IdentityRotation = quat.Number{Real: 1}

// Pose is a position and orientation expressed in some coordinate frame.
// The frame itself is carried by the caller (see waypoint.PoseStamped).
type Pose struct {
	Position    r3.Vec
	Orientation quat.Number
}

// NewPose builds a planar pose from x, y, z and a heading about +Z.
func NewPose(x, y, z, yaw float64) Pose {
	return Pose{Position: r3.Vec{X: x, Y: y, Z: z}, Orientation: FromYaw(yaw)}
}

// FromYaw returns the unit quaternion rotating by yaw radians about +Z.
func FromYaw(yaw float64) quat.Number {
	return quat.Number{Real: math.Cos(yaw / 2), Kmag: math.Sin(yaw / 2)}
}

// Yaw extracts the heading about +Z from a quaternion.
func Yaw(q quat.Number) float64 {
	siny := 2 * (q.Real*q.Kmag + q.Imag*q.Jmag)
	cosy := 1 - 2*(q.Jmag*q.Jmag+q.Kmag*q.Kmag)
	return math.Atan2(siny, cosy)
}

// Normalize returns q scaled to unit length. A zero quaternion (as sent by
// producers that leave orientation unset) is treated as the identity.
func Normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 {
		return IdentityRotation
	}
	return quat.Scale(1/n, q)
}

// Rotate applies the rotation q to v.
func Rotate(q quat.Number, v r3.Vec) r3.Vec {
	q = Normalize(q)
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vec{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// PlanarDistanceSquared returns x²+y² of v, ignoring height.
func PlanarDistanceSquared(v r3.Vec) float64 {
	return v.X*v.X + v.Y*v.Y
}

// Distance returns the Euclidean 3D distance between a and b.
func Distance(a, b r3.Vec) float64 {
	return r3.Norm(r3.Sub(a, b))
}
