package transform

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r2"
)

// Homography is a 3x3 matrix (represented as a 2D array) mapping one projective plane to another.
// Indices are [row][column].
type Homography [3][3]float64

// At returns the entry at row, col.
func (h *Homography) At(row, col int) float64 {
	return h[row][col]
}

// Apply maps a point through the homography.
func (h *Homography) Apply(pt r2.Point) r2.Point {
	x := h.At(0, 0)*pt.X + h.At(0, 1)*pt.Y + h.At(0, 2)
	y := h.At(1, 0)*pt.X + h.At(1, 1)*pt.Y + h.At(1, 2)
	z := h.At(2, 0)*pt.X + h.At(2, 1)*pt.Y + h.At(2, 2)
	return r2.Point{X: x / z, Y: y / z}
}

// Mat3 returns the homography as an mgl64 matrix.
func (h *Homography) Mat3() mgl64.Mat3 {
	var m mgl64.Mat3
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			m.Set(row, col, h[row][col])
		}
	}
	return m
}

// Col returns column col as a vector.
func (h *Homography) Col(col int) mgl64.Vec3 {
	return mgl64.Vec3{h[0][col], h[1][col], h[2][col]}
}

// homographyFromMat3 normalizes m so that its bottom right entry is 1 when that entry is usable,
// and to unit Frobenius norm otherwise.
func homographyFromMat3(m mgl64.Mat3) Homography {
	scale := m.At(2, 2)
	if scale > -1e-12 && scale < 1e-12 {
		sum := 0.
		for _, v := range m {
			sum += v * v
		}
		scale = math.Sqrt(sum)
		if scale == 0 {
			scale = 1
		}
	}
	var h Homography
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			h[row][col] = m.At(row, col) / scale
		}
	}
	return h
}
