package spatialmath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// See here for a thorough explanation: https://en.wikipedia.org/wiki/Axis%E2%80%93angle_representation
// An orientation can be expressed by an axis, a line from the origin to a point on the unit sphere
// (rx, ry, rz), and a rotation around that axis, theta. These four numbers can be used as-is (R4), or
// they can be converted to R3, where theta is multiplied by each of the unit sphere components to give
// a vector whose length is theta and whose direction is the original axis. The R3 form is the rotation
// vector produced by the Rodrigues transform.

// angleEpsilon is the rotation angle below which the axis of a rotation vector is considered undefined.
const angleEpsilon = 1e-12

// R4AA represents an R4 axis angle.
type R4AA struct {
	Theta float64 `json:"th"`
	RX    float64 `json:"x"`
	RY    float64 `json:"y"`
	RZ    float64 `json:"z"`
}

// NewR4AA creates an R4AA that signifies no rotation.
func NewR4AA() *R4AA {
	return &R4AA{Theta: 0, RX: 0, RY: 0, RZ: 1}
}

// ToR3 converts an R4 angle axis to R3.
func (r4 *R4AA) ToR3() r3.Vector {
	return r3.Vector{X: r4.RX * r4.Theta, Y: r4.RY * r4.Theta, Z: r4.RZ * r4.Theta}
}

// Axis returns the rotation axis as a vector.
func (r4 *R4AA) Axis() r3.Vector {
	return r3.Vector{X: r4.RX, Y: r4.RY, Z: r4.RZ}
}

// ToQuat converts an R4 axis angle to a unit quaternion.
// See: https://www.euclideanspace.com/maths/geometry/rotations/conversions/angleToQuaternion/index.htm
func (r4 *R4AA) ToQuat() quat.Number {
	if r4.Theta == 0 {
		return quat.Number{Real: 1}
	}
	sinA := math.Sin(r4.Theta / 2)
	r4.Normalize()
	return quat.Number{
		Real: math.Cos(r4.Theta / 2),
		Imag: r4.RX * sinA,
		Jmag: r4.RY * sinA,
		Kmag: r4.RZ * sinA,
	}
}

// Normalize scales the x, y, and z components of a R4 axis angle to be on the unit sphere.
// A zero axis is replaced by +Z since it can only describe a zero rotation.
func (r4 *R4AA) Normalize() {
	norm := math.Sqrt(r4.RX*r4.RX + r4.RY*r4.RY + r4.RZ*r4.RZ)
	if norm == 0.0 {
		r4.RX, r4.RY, r4.RZ = 0, 0, 1
		return
	}
	r4.RX /= norm
	r4.RY /= norm
	r4.RZ /= norm
}

// R3ToR4 converts an R3 rotation vector to R4. Vectors shorter than angleEpsilon have no
// meaningful axis and convert to the zero rotation.
func R3ToR4(aa r3.Vector) *R4AA {
	theta := aa.Norm()
	if theta < angleEpsilon {
		return NewR4AA()
	}
	return &R4AA{theta, aa.X / theta, aa.Y / theta, aa.Z / theta}
}

// AxisAngleFromMatrix converts a rotation matrix to a rotation vector (matrix to vector Rodrigues).
// Matrices that are not close to orthonormal convert to the zero vector; use IsRotationMatrix to
// reject them first when that matters. Angles below 1e-5 rad use the first order expansion, and
// angles within 1e-5 of pi are accurate to about 2e-5.
func AxisAngleFromMatrix(rot mgl64.Mat3) r3.Vector {
	if OrthonormalityError(rot) > orthonormalityTolerance {
		return r3.Vector{}
	}
	rx := rot.At(2, 1) - rot.At(1, 2)
	ry := rot.At(0, 2) - rot.At(2, 0)
	rz := rot.At(1, 0) - rot.At(0, 1)

	s := math.Sqrt((rx*rx+ry*ry+rz*rz)*0.25) // sin(theta)
	c := (rot.At(0, 0) + rot.At(1, 1) + rot.At(2, 2) - 1) * 0.5
	c = math.Max(-1, math.Min(1, c))
	theta := math.Atan2(s, c)

	if s >= 1e-5 {
		scale := theta / (2 * s)
		return r3.Vector{X: rx * scale, Y: ry * scale, Z: rz * scale}
	}
	if c > 0 {
		// sin(theta) ~ theta, so half the antisymmetric part is the rotation vector.
		return r3.Vector{X: rx * 0.5, Y: ry * 0.5, Z: rz * 0.5}
	}

	// theta is close to pi, the antisymmetric part vanishes and the axis comes from the diagonal.
	ax := math.Sqrt(math.Max((rot.At(0, 0)+1)*0.5, 0))
	ay := math.Sqrt(math.Max((rot.At(1, 1)+1)*0.5, 0))
	az := math.Sqrt(math.Max((rot.At(2, 2)+1)*0.5, 0))
	if rot.At(0, 1) < 0 {
		ay = -ay
	}
	if rot.At(0, 2) < 0 {
		az = -az
	}
	if math.Abs(ax) < math.Abs(ay) && math.Abs(ax) < math.Abs(az) && (rot.At(1, 2) > 0) != (ay*az > 0) {
		az = -az
	}
	axis := r3.Vector{X: ax, Y: ay, Z: az}
	return axis.Mul(theta / axis.Norm())
}

// MatrixFromAxisAngle converts a rotation vector to a rotation matrix (vector to matrix Rodrigues).
// A vector with a near zero angle yields the identity.
func MatrixFromAxisAngle(v r3.Vector) mgl64.Mat3 {
	theta := v.Norm()
	if theta < angleEpsilon {
		return mgl64.Ident3()
	}
	k := v.Mul(1 / theta)
	s, c := math.Sincos(theta)
	cc := 1 - c

	return Mat3FromRows([3][3]float64{
		{c + k.X*k.X*cc, k.X*k.Y*cc - k.Z*s, k.X*k.Z*cc + k.Y*s},
		{k.Y*k.X*cc + k.Z*s, c + k.Y*k.Y*cc, k.Y*k.Z*cc - k.X*s},
		{k.Z*k.X*cc - k.Y*s, k.Z*k.Y*cc + k.X*s, c + k.Z*k.Z*cc},
	})
}
