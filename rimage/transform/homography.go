package transform

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrDegenerateCorrespondences is returned when a set of correspondences cannot determine a
// homography or a pose: too few points, collinear points, or a configuration the solver cannot handle.
var ErrDegenerateCorrespondences = errors.New("degenerate correspondences")

// hartleyNormalization returns the similarity that moves the points' centroid to the origin and
// scales their mean distance from it to sqrt(2).
func hartleyNormalization(points []r2.Point) mgl64.Mat3 {
	var centroid r2.Point
	for _, p := range points {
		centroid = centroid.Add(p)
	}
	centroid = centroid.Mul(1 / float64(len(points)))
	meanDist := 0.
	for _, p := range points {
		meanDist += p.Sub(centroid).Norm()
	}
	meanDist /= float64(len(points))
	scale := 1.
	if meanDist > 0 {
		scale = math.Sqrt2 / meanDist
	}
	return mgl64.Mat3{scale, 0, 0, 0, scale, 0, -scale * centroid.X, -scale * centroid.Y, 1}
}

func applyMat3(m mgl64.Mat3, p r2.Point) r2.Point {
	v := m.Mul3x1(mgl64.Vec3{p.X, p.Y, 1})
	return r2.Point{X: v[0] / v[2], Y: v[1] / v[2]}
}

// EstimateHomography finds H with dst ~ H*src from at least four point pairs using the normalized
// direct linear transform. With exactly four pairs the fit is exact.
func EstimateHomography(src, dst []r2.Point) (Homography, error) {
	if len(src) != len(dst) {
		return Homography{}, errors.Errorf("point count mismatch: %d source points, %d destination points", len(src), len(dst))
	}
	n := len(src)
	if n < 4 {
		return Homography{}, errors.Wrapf(ErrDegenerateCorrespondences, "need at least 4 point pairs, got %d", n)
	}
	srcNorm := hartleyNormalization(src)
	dstNorm := hartleyNormalization(dst)

	a := mat.NewDense(2*n, 9, nil)
	for i := range src {
		s := applyMat3(srcNorm, src[i])
		d := applyMat3(dstNorm, dst[i])
		a.SetRow(2*i, []float64{-s.X, -s.Y, -1, 0, 0, 0, d.X * s.X, d.X * s.Y, d.X})
		a.SetRow(2*i+1, []float64{0, 0, 0, -s.X, -s.Y, -1, d.Y * s.X, d.Y * s.Y, d.Y})
	}

	h, err := nullVector(a, 9)
	if err != nil {
		return Homography{}, err
	}
	hn := mgl64.Mat3{h[0], h[3], h[6], h[1], h[4], h[7], h[2], h[5], h[8]}
	m := dstNorm.Inv().Mul3(hn).Mul3(srcNorm)
	if math.Abs(m.Det()) < 1e-15 {
		return Homography{}, errors.Wrap(ErrDegenerateCorrespondences, "homography is singular")
	}
	return homographyFromMat3(m), nil
}

// nullVector returns the right singular vector of the smallest singular value of a, which has cols
// columns. The system must have a one dimensional null space; otherwise the points are degenerate.
func nullVector(a *mat.Dense, cols int) ([]float64, error) {
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return nil, errors.Wrap(ErrDegenerateCorrespondences, "failed to factorize linear system")
	}
	values := svd.Values(nil)
	if len(values) < cols-1 || values[0] == 0 || values[cols-2] < 1e-10*values[0] {
		return nil, errors.Wrap(ErrDegenerateCorrespondences, "linear system is rank deficient")
	}
	var v mat.Dense
	svd.VTo(&v)
	out := make([]float64, cols)
	for i := range out {
		out[i] = v.At(i, cols-1)
	}
	return out, nil
}
