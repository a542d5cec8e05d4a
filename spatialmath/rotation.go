package spatialmath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// orthonormalityTolerance bounds the largest entry of R*R^T - I for a matrix to still count as a rotation.
const orthonormalityTolerance = 1e-3

// OrthonormalityError returns the largest absolute entry of R*R^T - I.
func OrthonormalityError(rot mgl64.Mat3) float64 {
	prod := rot.Mul3(rot.Transpose())
	worst := 0.
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			expected := 0.
			if row == col {
				expected = 1
			}
			worst = math.Max(worst, math.Abs(prod.At(row, col)-expected))
		}
	}
	return worst
}

// IsRotationMatrix reports whether rot is orthonormal with determinant +1 within tol.
func IsRotationMatrix(rot mgl64.Mat3, tol float64) bool {
	return OrthonormalityError(rot) <= tol && math.Abs(rot.Det()-1) <= tol
}

// RotateX returns the rotation by angle radians about the X axis (roll).
func RotateX(angle float64) mgl64.Mat3 {
	return mgl64.HomogRotate3DX(angle).Mat3()
}

// RotateY returns the rotation by angle radians about the Y axis (pitch).
func RotateY(angle float64) mgl64.Mat3 {
	return mgl64.HomogRotate3DY(angle).Mat3()
}

// RotateZ returns the rotation by angle radians about the Z axis (yaw).
func RotateZ(angle float64) mgl64.Mat3 {
	return mgl64.HomogRotate3DZ(angle).Mat3()
}

// Mat3FromRows builds a 3x3 matrix from row-major values.
func Mat3FromRows(rows [3][3]float64) mgl64.Mat3 {
	var m mgl64.Mat3
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			m.Set(row, col, rows[row][col])
		}
	}
	return m
}

// Mat3Rows returns the row-major values of m.
func Mat3Rows(m mgl64.Mat3) [3][3]float64 {
	var rows [3][3]float64
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			rows[row][col] = m.At(row, col)
		}
	}
	return rows
}
