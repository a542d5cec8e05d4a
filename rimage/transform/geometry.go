package transform

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// singular value ratios used to classify point sets. A model is planar when its smallest spread is
// below coplanarThreshold of the in-plane spread, so boards with measurement noise still count.
const (
	collinearThreshold = 1e-9
	coplanarThreshold  = 1e-3
)

func vec3(v r3.Vector) mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}

func r3Vec(v mgl64.Vec3) r3.Vector {
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}
}

// normalizeImagePoints maps pixels to undistorted normalized image coordinates (x/z, y/z).
func normalizeImagePoints(pixels []r2.Point, k mgl64.Mat3, dist DistortionCoeffs) []r2.Point {
	kInv := k.Inv()
	out := make([]r2.Point, len(pixels))
	for i, px := range pixels {
		p := kInv.Mul3x1(mgl64.Vec3{px.X, px.Y, 1})
		x, y := dist.Undistort(p[0]/p[2], p[1]/p[2])
		out[i] = r2.Point{X: x, Y: y}
	}
	return out
}

// projectPoint maps a model point through a pose, the lens distortion and the camera matrix.
// ok is false for points at or behind the camera plane.
func projectPoint(k mgl64.Mat3, dist DistortionCoeffs, rot mgl64.Mat3, t, p r3.Vector) (r2.Point, bool) {
	c := rot.Mul3x1(vec3(p)).Add(vec3(t))
	if c[2] <= 0 {
		return r2.Point{X: -1, Y: -1}, false
	}
	x, y := dist.Distort(c[0]/c[2], c[1]/c[2])
	px := k.Mul3x1(mgl64.Vec3{x, y, 1})
	return r2.Point{X: px[0] / px[2], Y: px[1] / px[2]}, true
}

// planeFrame describes a planar model in its own 2D coordinates: a point p lies at
// basis^T * (p - centroid), whose third component is ~0. basis is a proper rotation whose third
// column is the plane normal.
type planeFrame struct {
	basis    mgl64.Mat3
	centroid r3.Vector
	coords   []r2.Point
	planar   bool
}

// newPlaneFrame fits the principal axes of the points. Collinear or coincident point sets have no
// frame and yield ErrDegenerateCorrespondences.
func newPlaneFrame(points []r3.Vector) (*planeFrame, error) {
	n := len(points)
	var centroid r3.Vector
	for _, p := range points {
		centroid = centroid.Add(p)
	}
	centroid = centroid.Mul(1 / float64(n))

	data := mat.NewDense(n, 3, nil)
	for i, p := range points {
		d := p.Sub(centroid)
		data.Set(i, 0, d.X)
		data.Set(i, 1, d.Y)
		data.Set(i, 2, d.Z)
	}
	var svd mat.SVD
	if ok := svd.Factorize(data, mat.SVDThin); !ok {
		return nil, errors.Wrap(ErrDegenerateCorrespondences, "failed to factorize model points")
	}
	values := svd.Values(nil)
	for len(values) < 3 {
		values = append(values, 0)
	}
	if values[0] == 0 || values[1] < collinearThreshold*values[0] {
		return nil, errors.Wrap(ErrDegenerateCorrespondences, "model points are collinear")
	}
	var v mat.Dense
	svd.VTo(&v)

	basis := denseToMat3(&v)
	if basis.Det() < 0 {
		basis.SetCol(2, basis.Col(2).Mul(-1))
	}

	frame := &planeFrame{
		basis:    basis,
		centroid: centroid,
		coords:   make([]r2.Point, n),
		planar:   values[2] < coplanarThreshold*values[1],
	}
	basisT := basis.Transpose()
	for i, p := range points {
		local := basisT.Mul3x1(vec3(p.Sub(centroid)))
		frame.coords[i] = r2.Point{X: local[0], Y: local[1]}
	}
	return frame, nil
}

// toModel converts a pose of the plane frame into a pose of the model frame.
func (f *planeFrame) toModel(rot mgl64.Mat3, t r3.Vector) (mgl64.Mat3, r3.Vector) {
	modelRot := rot.Mul3(f.basis.Transpose())
	modelT := t.Sub(r3Vec(modelRot.Mul3x1(vec3(f.centroid))))
	return modelRot, modelT
}

// nearestRotation returns the rotation closest to m in the Frobenius norm.
func nearestRotation(m mgl64.Mat3) (mgl64.Mat3, error) {
	var svd mat.SVD
	if ok := svd.Factorize(mat3ToDense(m), mat.SVDFull); !ok {
		return mgl64.Mat3{}, errors.New("failed to factorize rotation estimate")
	}
	var u, v, rot mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	rot.Mul(&u, v.T())
	if mat.Det(&rot) < 0 {
		// flip the axis of the smallest singular value
		for row := 0; row < 3; row++ {
			u.Set(row, 2, -u.At(row, 2))
		}
		rot.Mul(&u, v.T())
	}
	return denseToMat3(&rot), nil
}

func mat3ToDense(m mgl64.Mat3) *mat.Dense {
	dense := mat.NewDense(3, 3, nil)
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			dense.Set(row, col, m.At(row, col))
		}
	}
	return dense
}

func denseToMat3(d mat.Matrix) mgl64.Mat3 {
	var m mgl64.Mat3
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			m.Set(row, col, d.At(row, col))
		}
	}
	return m
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
