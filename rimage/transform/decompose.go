package transform

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// DecomposeProjectionMatrix splits a 3x4 projection matrix P = K*[R|t] into an upper triangular
// intrinsic matrix K with positive diagonal and K[2][2] = 1, a rotation R and a translation t.
func DecomposeProjectionMatrix(p mat.Matrix) (mgl64.Mat3, mgl64.Mat3, r3.Vector, error) {
	if r, c := p.Dims(); r != 3 || c != 4 {
		return mgl64.Mat3{}, mgl64.Mat3{}, r3.Vector{}, errors.Errorf("projection matrix must be 3x4, got %dx%d", r, c)
	}
	m := denseToMat3(p)
	p4 := mgl64.Vec3{p.At(0, 3), p.At(1, 3), p.At(2, 3)}
	if math.Abs(m.Det()) < 1e-12 {
		return mgl64.Mat3{}, mgl64.Mat3{}, r3.Vector{}, errors.New("projection matrix has a singular left 3x3 block")
	}
	// P is defined up to scale, pick the sign that makes R a proper rotation
	if m.Det() < 0 {
		m = m.Mul(-1)
		p4 = p4.Mul(-1)
	}

	k, rot, err := rqDecompose(m)
	if err != nil {
		return mgl64.Mat3{}, mgl64.Mat3{}, r3.Vector{}, err
	}
	t := k.Inv().Mul3x1(p4)
	k = k.Mul(1 / k.At(2, 2))
	return k, rot, r3Vec(t), nil
}

// rqDecompose factors m = K*R with K upper triangular with a positive diagonal and R orthonormal,
// by running QR on the row reversed transpose.
func rqDecompose(m mgl64.Mat3) (mgl64.Mat3, mgl64.Mat3, error) {
	exchange := mgl64.Mat3{0, 0, 1, 0, 1, 0, 1, 0, 0}
	flipped := exchange.Mul3(m).Transpose()

	var qr mat.QR
	qr.Factorize(mat3ToDense(flipped))
	var q, r mat.Dense
	qr.QTo(&q)
	qr.RTo(&r)

	qm, rm := denseToMat3(&q), denseToMat3(&r)
	k := exchange.Mul3(rm.Transpose()).Mul3(exchange)
	rot := exchange.Mul3(qm.Transpose())

	// move the signs of K's diagonal into R
	for i := 0; i < 3; i++ {
		if k.At(i, i) < 0 {
			k.SetCol(i, k.Col(i).Mul(-1))
			rot.SetRow(i, rot.Row(i).Mul(-1))
		}
	}
	if k.At(0, 0) == 0 || k.At(1, 1) == 0 || k.At(2, 2) == 0 {
		return mgl64.Mat3{}, mgl64.Mat3{}, errors.New("projection matrix intrinsics are singular")
	}
	return k, rot, nil
}
