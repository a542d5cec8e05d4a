package transform

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/posecore/spatialmath"
)

const (
	minPnPPoints          = 4
	minNonPlanarPnPPoints = 6
)

// SolvePnP recovers the pose of a model relative to the camera from 3D model points and their
// pixel projections: a camera frame point is R*p + t, returned as the rotation vector of R and t.
// Planar models need four points, others six. When refine is set the linear estimate is polished by
// minimizing the pixel reprojection error.
func SolvePnP(
	modelPoints []r3.Vector,
	imagePoints []r2.Point,
	k mgl64.Mat3,
	dist DistortionCoeffs,
	refine bool,
) (r3.Vector, r3.Vector, error) {
	if len(modelPoints) != len(imagePoints) {
		return r3.Vector{}, r3.Vector{}, errors.Errorf(
			"point count mismatch: %d model points, %d image points", len(modelPoints), len(imagePoints))
	}
	if len(modelPoints) < minPnPPoints {
		return r3.Vector{}, r3.Vector{}, errors.Wrapf(ErrDegenerateCorrespondences,
			"need at least %d points, got %d", minPnPPoints, len(modelPoints))
	}
	if math.Abs(k.Det()) < 1e-12 {
		return r3.Vector{}, r3.Vector{}, NewNoIntrinsicsError("camera matrix is singular")
	}
	normalized := normalizeImagePoints(imagePoints, k, dist)

	frame, err := newPlaneFrame(modelPoints)
	if err != nil {
		return r3.Vector{}, r3.Vector{}, err
	}
	var rot mgl64.Mat3
	var t r3.Vector
	if frame.planar {
		h, err := EstimateHomography(frame.coords, normalized)
		if err != nil {
			return r3.Vector{}, r3.Vector{}, err
		}
		rot, t, err = poseFromHomography(h)
		if err != nil {
			return r3.Vector{}, r3.Vector{}, err
		}
		rot, t = frame.toModel(rot, t)
	} else {
		if len(modelPoints) < minNonPlanarPnPPoints {
			return r3.Vector{}, r3.Vector{}, errors.Wrapf(ErrDegenerateCorrespondences,
				"non-coplanar model needs at least %d points, got %d", minNonPlanarPnPPoints, len(modelPoints))
		}
		rot, t, err = dltPose(modelPoints, normalized)
		if err != nil {
			return r3.Vector{}, r3.Vector{}, err
		}
	}

	rvec := spatialmath.AxisAngleFromMatrix(rot)
	if refine {
		rvec, t = refinePose(modelPoints, imagePoints, k, dist, rvec, t)
	}
	if !finite(rvec.X, rvec.Y, rvec.Z, t.X, t.Y, t.Z) {
		return r3.Vector{}, r3.Vector{}, errors.Wrap(ErrDegenerateCorrespondences, "pose is not finite")
	}
	return rvec, t, nil
}

// poseFromHomography splits a homography from plane coordinates to normalized image coordinates,
// H ~ [r1 r2 t], into a rotation and a translation with the plane in front of the camera.
func poseFromHomography(h Homography) (mgl64.Mat3, r3.Vector, error) {
	h1, h2, h3 := h.Col(0), h.Col(1), h.Col(2)
	n1, n2 := h1.Len(), h2.Len()
	if n1 == 0 || n2 == 0 {
		return mgl64.Mat3{}, r3.Vector{}, errors.Wrap(ErrDegenerateCorrespondences, "homography has a zero column")
	}
	lambda := 2 / (n1 + n2)
	if h3[2] < 0 {
		lambda = -lambda
	}
	r1 := h1.Mul(lambda)
	r2 := h2.Mul(lambda)
	rot, err := nearestRotation(mgl64.Mat3FromCols(r1, r2, r1.Cross(r2)))
	if err != nil {
		return mgl64.Mat3{}, r3.Vector{}, err
	}
	return rot, r3Vec(h3.Mul(lambda)), nil
}

// dltPose estimates [R|t] from six or more non-coplanar points by the direct linear transform on
// normalized image coordinates.
func dltPose(model []r3.Vector, normalized []r2.Point) (mgl64.Mat3, r3.Vector, error) {
	n := len(model)
	var centroid r3.Vector
	for _, p := range model {
		centroid = centroid.Add(p)
	}
	centroid = centroid.Mul(1 / float64(n))
	sumDist := 0.
	for _, p := range model {
		sumDist += p.Sub(centroid).Norm()
	}
	scale := math.Sqrt(3) * float64(n) / sumDist

	a := mat.NewDense(2*n, 12, nil)
	for i, p := range model {
		q := p.Sub(centroid).Mul(scale)
		x, y := normalized[i].X, normalized[i].Y
		a.SetRow(2*i, []float64{q.X, q.Y, q.Z, 1, 0, 0, 0, 0, -x * q.X, -x * q.Y, -x * q.Z, -x})
		a.SetRow(2*i+1, []float64{0, 0, 0, 0, q.X, q.Y, q.Z, 1, -y * q.X, -y * q.Y, -y * q.Z, -y})
	}
	p, err := nullVector(a, 12)
	if err != nil {
		return mgl64.Mat3{}, r3.Vector{}, err
	}

	// undo the normalization: M = scale*M', p4 = p4' - M*centroid
	var m mgl64.Mat3
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			m.Set(row, col, scale*p[4*row+col])
		}
	}
	p4 := mgl64.Vec3{p[3], p[7], p[11]}.Sub(m.Mul3x1(vec3(centroid)))
	if m.Det() < 0 {
		m = m.Mul(-1)
		p4 = p4.Mul(-1)
	}

	var svd mat.SVD
	if ok := svd.Factorize(mat3ToDense(m), mat.SVDFull); !ok {
		return mgl64.Mat3{}, r3.Vector{}, errors.Wrap(ErrDegenerateCorrespondences, "failed to factorize projection")
	}
	values := svd.Values(nil)
	sigma := (values[0] + values[1] + values[2]) / 3
	if sigma == 0 {
		return mgl64.Mat3{}, r3.Vector{}, errors.Wrap(ErrDegenerateCorrespondences, "projection is zero")
	}
	rot, err := nearestRotation(m)
	if err != nil {
		return mgl64.Mat3{}, r3.Vector{}, err
	}
	return rot, r3Vec(p4.Mul(1 / sigma)), nil
}

// reprojectionCost is the summed squared pixel error of a pose.
func reprojectionCost(model []r3.Vector, image []r2.Point, k mgl64.Mat3, dist DistortionCoeffs, rot mgl64.Mat3, t r3.Vector) float64 {
	cost := 0.
	for i, p := range model {
		px, ok := projectPoint(k, dist, rot, t, p)
		if !ok {
			cost += behindCameraPenalty
			continue
		}
		d := px.Sub(image[i])
		cost += d.Dot(d)
	}
	return cost
}

func refinePose(
	model []r3.Vector,
	image []r2.Point,
	k mgl64.Mat3,
	dist DistortionCoeffs,
	rvec, t r3.Vector,
) (r3.Vector, r3.Vector) {
	f := func(x []float64) float64 {
		rot := spatialmath.MatrixFromAxisAngle(r3.Vector{X: x[0], Y: x[1], Z: x[2]})
		return reprojectionCost(model, image, k, dist, rot, r3.Vector{X: x[3], Y: x[4], Z: x[5]})
	}
	x, _ := minimizeNelderMead(f, []float64{rvec.X, rvec.Y, rvec.Z, t.X, t.Y, t.Z}, 4000)
	return r3.Vector{X: x[0], Y: x[1], Z: x[2]}, r3.Vector{X: x[3], Y: x[4], Z: x[5]}
}
