// Package spatialmath defines rotations, poses and homogeneous transforms.
package spatialmath

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Transform is an immutable rigid homogeneous transform: a 4x4 matrix whose top-left 3x3 block is a
// rotation, whose right column holds the translation, and whose bottom row is [0 0 0 1].
// The zero value is the identity transform.
type Transform struct {
	mat mgl64.Mat4
	set bool
}

// NewTransform returns the identity transform.
func NewTransform() Transform {
	return Transform{mgl64.Ident4(), true}
}

// NewTransformFromMat4 wraps an existing homogeneous matrix. The caller is responsible for it
// being a rigid transform.
func NewTransformFromMat4(m mgl64.Mat4) Transform {
	return Transform{m, true}
}

// NewTransformFromElements builds a transform from the 3x4 "elements" view; the bottom row is implicit.
func NewTransformFromElements(elements [3][4]float64) Transform {
	m := mgl64.Ident4()
	for row := 0; row < 3; row++ {
		for col := 0; col < 4; col++ {
			m.Set(row, col, elements[row][col])
		}
	}
	return Transform{m, true}
}

// FromRotationTranslation embeds a rotation matrix and a translation vector.
func FromRotationTranslation(rot mgl64.Mat3, t r3.Vector) Transform {
	m := rot.Mat4()
	m.Set(0, 3, t.X)
	m.Set(1, 3, t.Y)
	m.Set(2, 3, t.Z)
	return Transform{m, true}
}

// FromEuler builds translation * yaw * pitch * roll, i.e. the rotation about X (roll) is applied
// first, then Y (pitch), then Z (yaw), then the translation. Angles are in radians.
// The offset provider and the pose solver both depend on this exact order.
func FromEuler(roll, pitch, yaw, tx, ty, tz float64) Transform {
	m := mgl64.Translate3D(tx, ty, tz).
		Mul4(mgl64.HomogRotate3DZ(yaw)).
		Mul4(mgl64.HomogRotate3DY(pitch)).
		Mul4(mgl64.HomogRotate3DX(roll))
	return Transform{m, true}
}

// Compose returns the matrix product a*b. It is associative but not commutative.
func Compose(a, b Transform) Transform {
	return Transform{a.Matrix().Mul4(b.Matrix()), true}
}

// Matrix returns the 4x4 homogeneous matrix.
func (t Transform) Matrix() mgl64.Mat4 {
	if !t.set {
		return mgl64.Ident4()
	}
	return t.mat
}

// Split returns the rotation and translation parts of the transform.
func (t Transform) Split() (mgl64.Mat3, r3.Vector) {
	return t.Rotation(), t.Translation()
}

// Rotation returns the top-left 3x3 rotation block.
func (t Transform) Rotation() mgl64.Mat3 {
	return t.Matrix().Mat3()
}

// Translation returns the translation column.
func (t Transform) Translation() r3.Vector {
	m := t.Matrix()
	return r3.Vector{X: m.At(0, 3), Y: m.At(1, 3), Z: m.At(2, 3)}
}

// Inverse returns the inverse rigid transform [R^T | -R^T t].
func (t Transform) Inverse() Transform {
	rot, tr := t.Split()
	rotT := rot.Transpose()
	inv := rotT.Mul3x1(mgl64.Vec3{tr.X, tr.Y, tr.Z}).Mul(-1)
	return FromRotationTranslation(rotT, r3.Vector{X: inv[0], Y: inv[1], Z: inv[2]})
}

// ApplyPoint maps a point through the transform.
func (t Transform) ApplyPoint(p r3.Vector) r3.Vector {
	out := t.Matrix().Mul4x1(mgl64.Vec4{p.X, p.Y, p.Z, 1})
	return r3.Vector{X: out[0], Y: out[1], Z: out[2]}
}

// Elements returns the 3x4 row-major view with the implicit bottom row dropped.
func (t Transform) Elements() [3][4]float64 {
	m := t.Matrix()
	var elements [3][4]float64
	for row := 0; row < 3; row++ {
		for col := 0; col < 4; col++ {
			elements[row][col] = m.At(row, col)
		}
	}
	return elements
}

// Dense returns the transform as a 4x4 gonum matrix.
func (t Transform) Dense() *mat.Dense {
	m := t.Matrix()
	data := make([]float64, 0, 16)
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			data = append(data, m.At(row, col))
		}
	}
	return mat.NewDense(4, 4, data)
}

// AlmostEqual reports whether every entry of the two matrices differs by at most tol.
func (t Transform) AlmostEqual(other Transform, tol float64) bool {
	a, b := t.Matrix(), other.Matrix()
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}

// String prints the 3x4 elements one row per line.
func (t Transform) String() string {
	var sb strings.Builder
	for _, row := range t.Elements() {
		fmt.Fprintf(&sb, "[%.6f %.6f %.6f | %.6f]\n", row[0], row[1], row[2], row[3])
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
