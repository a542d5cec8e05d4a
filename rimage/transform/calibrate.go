package transform

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/posecore/spatialmath"
)

// ErrDegenerateDataset is returned when a set of calibration views cannot determine the intrinsics.
var ErrDegenerateDataset = errors.New("degenerate calibration dataset")

const (
	// number of distortion coefficients estimated by CalibrateCamera: k1, k2, p1, p2, k3
	calibratedDistortionCoeffs = 5
	// smallest accepted ratio of the singular values of the focal length constraints
	focalConditionThreshold = 1e-8
)

// CalibrationView is one observation of a planar calibration target.
type CalibrationView struct {
	ImagePoints []r2.Point
	ModelPoints []r3.Vector
}

// CalibrationResult is the output of CalibrateCamera.
type CalibrationResult struct {
	Intrinsics *PinholeCameraIntrinsics
	Distortion DistortionCoeffs
	// Extrinsics holds the pose of the target in each view, in view order.
	Extrinsics []spatialmath.Pose
	// ReprojectionError is the RMS pixel error over every point of every view.
	ReprojectionError float64
	ViewErrors        []float64
}

// CameraModel returns the unrectified camera model described by the result.
func (r *CalibrationResult) CameraModel() *CameraModel {
	m := NewCameraModel(r.Intrinsics, r.Distortion)
	m.ReprojectionError = r.ReprojectionError
	return m
}

type viewEstimate struct {
	frame *planeFrame
	h     Homography
	rot   mgl64.Mat3
	t     r3.Vector
}

// CalibrateCamera estimates the intrinsics and lens distortion of a camera from views of a planar
// target. The closed form estimate assumes a principal point at the image center and solves for the
// focal lengths from the view homographies, so a single view suffices as long as the target is tilted
// relative to the image plane. When refine is set, every parameter including the per view poses is then
// polished by minimizing the pixel reprojection error.
func CalibrateCamera(views []CalibrationView, size ImageSize, refine bool) (*CalibrationResult, error) {
	if len(views) == 0 {
		return nil, errors.Wrap(ErrDegenerateDataset, "no views")
	}
	if size.Width <= 0 || size.Height <= 0 {
		return nil, errors.Wrapf(ErrDegenerateDataset, "invalid image size %v", size)
	}

	estimates := make([]viewEstimate, len(views))
	for i, view := range views {
		if len(view.ImagePoints) != len(view.ModelPoints) {
			return nil, errors.Wrapf(ErrDegenerateDataset, "view %d has %d image points and %d model points",
				i, len(view.ImagePoints), len(view.ModelPoints))
		}
		if len(view.ModelPoints) < minPnPPoints {
			return nil, errors.Wrapf(ErrDegenerateDataset, "view %d has %d points, need at least %d",
				i, len(view.ModelPoints), minPnPPoints)
		}
		frame, err := newPlaneFrame(view.ModelPoints)
		if err != nil {
			return nil, errors.Wrapf(ErrDegenerateDataset, "view %d: %v", i, err)
		}
		if !frame.planar {
			return nil, errors.Wrapf(ErrDegenerateDataset, "view %d: calibration target is not planar", i)
		}
		h, err := EstimateHomography(frame.coords, view.ImagePoints)
		if err != nil {
			return nil, errors.Wrapf(ErrDegenerateDataset, "view %d: %v", i, err)
		}
		estimates[i] = viewEstimate{frame: frame, h: h}
	}

	cx := float64(size.Width-1) / 2
	cy := float64(size.Height-1) / 2
	pixelScale := float64(max(size.Width, size.Height))
	fx, fy, err := focalLengthsFromHomographies(estimates, cx, cy, pixelScale)
	if err != nil {
		return nil, err
	}
	k := mgl64.Mat3{fx, 0, 0, 0, fy, 0, cx, cy, 1}
	kInv := k.Inv()
	for i := range estimates {
		est := &estimates[i]
		h := est.h.Mat3()
		rot, t, err := poseFromHomography(homographyFromMat3(kInv.Mul3(h)))
		if err != nil {
			return nil, errors.Wrapf(ErrDegenerateDataset, "view %d: %v", i, err)
		}
		est.rot, est.t = est.frame.toModel(rot, t)
	}

	dist := make(DistortionCoeffs, calibratedDistortionCoeffs)
	if refine {
		k, dist = refineCalibration(views, estimates, k, dist)
	}

	result := &CalibrationResult{
		Intrinsics: NewPinholeCameraIntrinsicsFromMatrix(k, size),
		Distortion: dist,
		Extrinsics: make([]spatialmath.Pose, len(views)),
		ViewErrors: make([]float64, len(views)),
	}
	var all []float64
	for i, view := range views {
		est := estimates[i]
		result.Extrinsics[i] = spatialmath.NewPose(est.rot, est.t)
		sq := squaredReprojectionErrors(view, k, dist, est.rot, est.t)
		mean, err := stats.Mean(sq)
		if err != nil {
			return nil, errors.Wrapf(err, "view %d", i)
		}
		result.ViewErrors[i] = math.Sqrt(mean)
		all = append(all, sq...)
	}
	mean, err := stats.Mean(all)
	if err != nil {
		return nil, err
	}
	result.ReprojectionError = math.Sqrt(mean)
	if err := result.Intrinsics.CheckValid(); err != nil {
		return nil, errors.Wrap(ErrDegenerateDataset, err.Error())
	}
	return result, nil
}

// focalLengthsFromHomographies solves for 1/fx² and 1/fy² using the two constraints each view places
// on the image of the absolute conic: its first two rotation columns are orthogonal and of equal length.
// Pixels are centered on (cx, cy) and scaled by the image size so both unknowns are of order one.
func focalLengthsFromHomographies(estimates []viewEstimate, cx, cy, pixelScale float64) (float64, float64, error) {
	center := mgl64.Mat3{1 / pixelScale, 0, 0, 0, 1 / pixelScale, 0, -cx / pixelScale, -cy / pixelScale, 1}
	a := mat.NewDense(2*len(estimates), 2, nil)
	b := mat.NewVecDense(2*len(estimates), nil)
	for i, est := range estimates {
		hc := center.Mul3(est.h.Mat3())
		norm := 0.
		for _, v := range hc {
			norm += v * v
		}
		hc = hc.Mul(1 / math.Sqrt(norm))
		h1, h2 := hc.Col(0), hc.Col(1)

		a.SetRow(2*i, []float64{h1[0] * h2[0], h1[1] * h2[1]})
		b.SetVec(2*i, -h1[2]*h2[2])
		a.SetRow(2*i+1, []float64{h1[0]*h1[0] - h2[0]*h2[0], h1[1]*h1[1] - h2[1]*h2[1]})
		b.SetVec(2*i+1, -(h1[2]*h1[2] - h2[2]*h2[2]))
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDNone); !ok {
		return 0, 0, errors.Wrap(ErrDegenerateDataset, "failed to factorize focal length constraints")
	}
	if values := svd.Values(nil); values[0] == 0 || values[1] < focalConditionThreshold*values[0] {
		return 0, 0, errors.Wrap(ErrDegenerateDataset, "views do not constrain the focal length, tilt the target")
	}
	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		return 0, 0, errors.Wrapf(ErrDegenerateDataset, "views do not constrain the focal length: %v", err)
	}
	invFx2, invFy2 := x.AtVec(0), x.AtVec(1)
	if !(invFx2 > 0) || !(invFy2 > 0) || !finite(invFx2, invFy2) {
		return 0, 0, errors.Wrap(ErrDegenerateDataset, "views do not constrain the focal length, tilt the target")
	}
	return pixelScale / math.Sqrt(invFx2), pixelScale / math.Sqrt(invFy2), nil
}

func squaredReprojectionErrors(view CalibrationView, k mgl64.Mat3, dist DistortionCoeffs, rot mgl64.Mat3, t r3.Vector) []float64 {
	sq := make([]float64, len(view.ModelPoints))
	for i, p := range view.ModelPoints {
		px, ok := projectPoint(k, dist, rot, t, p)
		if !ok {
			sq[i] = behindCameraPenalty
			continue
		}
		d := px.Sub(view.ImagePoints[i])
		sq[i] = d.Dot(d)
	}
	return sq
}

// refineCalibration jointly polishes fx, fy, cx, cy, the distortion and every view pose. The
// estimates are updated in place.
func refineCalibration(
	views []CalibrationView,
	estimates []viewEstimate,
	k mgl64.Mat3,
	dist DistortionCoeffs,
) (mgl64.Mat3, DistortionCoeffs) {
	const intrinsicParams = 4 + calibratedDistortionCoeffs
	x0 := []float64{k.At(0, 0), k.At(1, 1), k.At(0, 2), k.At(1, 2)}
	x0 = append(x0, dist...)
	for _, est := range estimates {
		rvec := spatialmath.AxisAngleFromMatrix(est.rot)
		x0 = append(x0, rvec.X, rvec.Y, rvec.Z, est.t.X, est.t.Y, est.t.Z)
	}

	unpack := func(x []float64, i int) (mgl64.Mat3, r3.Vector) {
		o := intrinsicParams + 6*i
		return spatialmath.MatrixFromAxisAngle(r3.Vector{X: x[o], Y: x[o+1], Z: x[o+2]}),
			r3.Vector{X: x[o+3], Y: x[o+4], Z: x[o+5]}
	}
	f := func(x []float64) float64 {
		if x[0] <= 0 || x[1] <= 0 {
			return behindCameraPenalty * float64(len(x0))
		}
		kx := mgl64.Mat3{x[0], 0, 0, 0, x[1], 0, x[2], x[3], 1}
		d := DistortionCoeffs(x[4:intrinsicParams])
		cost := 0.
		for i, view := range views {
			rot, t := unpack(x, i)
			cost += reprojectionCost(view.ModelPoints, view.ImagePoints, kx, d, rot, t)
		}
		return cost
	}

	x, _ := minimizeNelderMead(f, x0, 400*len(x0))
	for i := range estimates {
		estimates[i].rot, estimates[i].t = unpack(x, i)
	}
	return mgl64.Mat3{x[0], 0, 0, 0, x[1], 0, x[2], x[3], 1},
		append(DistortionCoeffs{}, x[4:intrinsicParams]...)
}
