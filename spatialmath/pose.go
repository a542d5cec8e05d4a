package spatialmath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Pose is a rigid-body pose: an orthonormal rotation with determinant +1 and a translation.
type Pose struct {
	Rotation    mgl64.Mat3
	Translation r3.Vector
}

// NewPose creates a pose from a rotation matrix and a translation.
func NewPose(rot mgl64.Mat3, t r3.Vector) Pose {
	return Pose{Rotation: rot, Translation: t}
}

// NewPoseFromRotationVector creates a pose from a rotation vector and a translation.
func NewPoseFromRotationVector(rvec, t r3.Vector) Pose {
	return Pose{Rotation: MatrixFromAxisAngle(rvec), Translation: t}
}

// NewZeroPose returns the pose with no rotation and no translation.
func NewZeroPose() Pose {
	return Pose{Rotation: mgl64.Ident3()}
}

// PoseFromTransform splits a transform into a pose.
func PoseFromTransform(t Transform) Pose {
	rot, tr := t.Split()
	return Pose{Rotation: rot, Translation: tr}
}

// Transform embeds the pose into a homogeneous transform.
func (p Pose) Transform() Transform {
	return FromRotationTranslation(p.Rotation, p.Translation)
}

// RotationVector returns the rotation in axis-angle (Rodrigues) form.
func (p Pose) RotationVector() r3.Vector {
	return AxisAngleFromMatrix(p.Rotation)
}

// AxisAngles returns the rotation as an R4 axis angle.
func (p Pose) AxisAngles() *R4AA {
	return R3ToR4(p.RotationVector())
}

// Quaternion returns the rotation as a unit quaternion.
func (p Pose) Quaternion() quat.Number {
	return p.AxisAngles().ToQuat()
}

// IsIdentity reports whether the pose is exactly the identity, which upstream detectors emit when
// nothing was found.
func (p Pose) IsIdentity() bool {
	return p.Rotation == mgl64.Ident3() && p.Translation == (r3.Vector{})
}

// PoseAlmostEqual compares rotation entries and translation components within tol.
func PoseAlmostEqual(a, b Pose, tol float64) bool {
	for i := range a.Rotation {
		if math.Abs(a.Rotation[i]-b.Rotation[i]) > tol {
			return false
		}
	}
	d := a.Translation.Sub(b.Translation)
	return math.Abs(d.X) <= tol && math.Abs(d.Y) <= tol && math.Abs(d.Z) <= tol
}
