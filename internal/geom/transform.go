package geom

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Transform maps coordinates from a child frame into its parent frame:
// p_parent = R·p_child + t. The pose of a body expressed in a frame is the
// transform from the body frame into that frame.
type Transform struct {
	Translation r3.Vec
	Rotation    quat.Number
}

// Identity returns the transform that leaves points unchanged.
func Identity() Transform {
	return Transform{Rotation: IdentityRotation}
}

// FromPose returns the transform whose child frame sits at pose.
func FromPose(pose Pose) Transform {
	return Transform{Translation: pose.Position, Rotation: Normalize(pose.Orientation)}
}

// Inverse returns the transform mapping parent coordinates back into the child.
func (t Transform) Inverse() Transform {
	inv := quat.Conj(Normalize(t.Rotation))
	return Transform{
		Translation: r3.Scale(-1, Rotate(inv, t.Translation)),
		Rotation:    inv,
	}
}

// Compose returns t∘u: apply u first, then t.
func (t Transform) Compose(u Transform) Transform {
	return Transform{
		Translation: r3.Add(t.Translation, Rotate(t.Rotation, u.Translation)),
		Rotation:    Normalize(quat.Mul(Normalize(t.Rotation), Normalize(u.Rotation))),
	}
}

// ApplyPoint maps a point from the child frame into the parent frame.
func (t Transform) ApplyPoint(p r3.Vec) r3.Vec {
	return r3.Add(Rotate(t.Rotation, p), t.Translation)
}

// ApplyPose maps a pose from the child frame into the parent frame.
func (t Transform) ApplyPose(p Pose) Pose {
	return Pose{
		Position:    t.ApplyPoint(p.Position),
		Orientation: Normalize(quat.Mul(Normalize(t.Rotation), Normalize(p.Orientation))),
	}
}

// Matrix returns the transform as a 4x4 homogeneous matrix. The rotation is
// expanded as stored: a quaternion that is not unit length scales the
// rotation block, and a zero quaternion collapses it.
func (t Transform) Matrix() *mat.Dense {
	w, x, y, z := t.Rotation.Real, t.Rotation.Imag, t.Rotation.Jmag, t.Rotation.Kmag
	return mat.NewDense(4, 4, []float64{
		w*w + x*x - y*y - z*z, 2 * (x*y - w*z), 2 * (x*z + w*y), t.Translation.X,
		2 * (x*y + w*z), w*w - x*x + y*y - z*z, 2 * (y*z - w*x), t.Translation.Y,
		2 * (x*z - w*y), 2 * (y*z + w*x), w*w - x*x - y*y + z*z, t.Translation.Z,
		0, 0, 0, 1,
	})
}

// IsRigid reports whether m is a 4x4 rigid transform: an orthonormal,
// right-handed rotation block and a bottom row of [0 0 0 1].
func IsRigid(m mat.Matrix) bool {
	if r, c := m.Dims(); r != 4 || c != 4 {
		return false
	}
	for j := 0; j < 3; j++ {
		if m.At(3, j) != 0 {
			return false
		}
	}
	if math.Abs(m.At(3, 3)-1) > RigidTolerance {
		return false
	}

	rot := mat.DenseCopyOf(m).Slice(0, 3, 0, 3)
	if math.Abs(mat.Det(rot)-1) > RigidTolerance {
		return false
	}
	var gram mat.Dense
	gram.Mul(rot.T(), rot)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1
			}
			if math.Abs(gram.At(i, j)-want) > RigidTolerance {
				return false
			}
		}
	}
	return true
}

// IsFinite reports whether every component of the transform is a finite number.
func (t Transform) IsFinite() bool {
	for _, v := range []float64{
		t.Translation.X, t.Translation.Y, t.Translation.Z,
		t.Rotation.Real, t.Rotation.Imag, t.Rotation.Jmag, t.Rotation.Kmag,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
