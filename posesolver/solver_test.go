package posesolver

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/posecore/calibration"
	"go.viam.com/posecore/logging"
	"go.viam.com/posecore/rimage/transform"
	"go.viam.com/posecore/spatialmath"
)

func testModel() *transform.CameraModel {
	return transform.NewCameraModel(&transform.PinholeCameraIntrinsics{
		Width: 640, Height: 480, Fx: 800, Fy: 800, Ppx: 320, Ppy: 240,
	}, nil)
}

// unitSquare returns the four corners of a unit square seen head on from cameraOffset.
func unitSquare(t *testing.T, model *transform.CameraModel, cameraOffset r3.Vector) calibration.CorrespondenceSet {
	t.Helper()
	points := []r3.Vector{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}, {X: 1, Y: 1, Z: 0}}
	pixels, err := transform.ProjectPoints(points, spatialmath.FromRotationTranslation(mgl64.Ident3(), cameraOffset), model)
	test.That(t, err, test.ShouldBeNil)
	return calibration.CorrespondenceSet{ImagePoints: pixels, ModelPoints: points}
}

type stubPnP struct {
	rvec, tvec r3.Vector
	err        error
	k          mgl64.Mat3
	dist       transform.DistortionCoeffs
	model      []r3.Vector
}

func (s *stubPnP) SolvePnP(
	modelPoints []r3.Vector,
	imagePoints []r2.Point,
	k mgl64.Mat3,
	dist transform.DistortionCoeffs,
) (r3.Vector, r3.Vector, error) {
	s.k, s.dist, s.model = k, dist, modelPoints
	return s.rvec, s.tvec, s.err
}

func TestSolveUnitSquare(t *testing.T) {
	model := testModel()
	offset := r3.Vector{X: -0.5, Y: -0.5, Z: 4}
	set := unitSquare(t, model, offset)

	for _, refine := range []bool{false, true} {
		s := NewSolver(Options{}, DefaultPnP{Refine: refine}, nil, logging.NewTestLogger(t))
		got, err := s.Solve(set, model)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got.Rotation().ApproxEqualThreshold(mgl64.Ident3(), 1e-6), test.ShouldBeTrue)
		test.That(t, got.Translation().Sub(offset).Norm(), test.ShouldBeLessThan, 1e-6)
	}
}

func TestSolveOffsetComposition(t *testing.T) {
	model := testModel()
	set := unitSquare(t, model, r3.Vector{X: -0.4, Y: -0.6, Z: 3})
	logger := logging.NewTestLogger(t)

	raw, err := NewSolver(Options{Offset: spatialmath.NewTransform()}, nil, nil, logger).SolveWithDetail(set, model)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, raw.Transform.AlmostEqual(raw.Pose, 1e-12), test.ShouldBeTrue)

	zero, err := NewSolver(Options{}, nil, nil, logger).Solve(set, model)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, zero.AlmostEqual(raw.Pose, 1e-12), test.ShouldBeTrue)

	offset := spatialmath.FromEuler(0.1, 0.2, -0.3, 0.05, 0, 0.1)
	got, err := NewSolver(Options{Offset: offset}, nil, nil, logger).Solve(set, model)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.AlmostEqual(spatialmath.Compose(raw.Pose, offset), 1e-9), test.ShouldBeTrue)
	test.That(t, got.AlmostEqual(spatialmath.Compose(offset, raw.Pose), 1e-3), test.ShouldBeFalse)
}

func TestSolveDetail(t *testing.T) {
	stub := &stubPnP{rvec: r3.Vector{X: 0.1, Y: -0.2, Z: 0.3}, tvec: r3.Vector{X: 1, Y: 2, Z: 3}}
	model := testModel()
	model.Distortion = transform.DistortionCoeffs{0.1, 0.01}
	s := NewSolver(Options{}, stub, nil, logging.NewTestLogger(t))

	detail, err := s.SolveWithDetail(unitSquare(t, testModel(), r3.Vector{Z: 3}), model)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, detail.RotationVector, test.ShouldResemble, stub.rvec)
	test.That(t, detail.TranslationVector, test.ShouldResemble, stub.tvec)
	want := spatialmath.NewPoseFromRotationVector(stub.rvec, stub.tvec).Transform()
	test.That(t, detail.Pose.AlmostEqual(want, 1e-12), test.ShouldBeTrue)
	test.That(t, stub.k, test.ShouldResemble, model.K())
	test.That(t, stub.dist, test.ShouldResemble, model.Distortion)
}

func TestSolveModelShift(t *testing.T) {
	stub := &stubPnP{tvec: r3.Vector{Z: 1}}
	s := NewSolver(Options{ModelShiftX: 0.5, ModelShiftY: -1}, stub, nil, logging.NewTestLogger(t))
	set := unitSquare(t, testModel(), r3.Vector{Z: 3})
	_, err := s.Solve(set, testModel())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stub.model[3], test.ShouldResemble, r3.Vector{X: 1.5, Y: 0})
	test.That(t, set.ModelPoints[3], test.ShouldResemble, r3.Vector{X: 1, Y: 1})
}

func TestSolveRectified(t *testing.T) {
	k := mgl64.Mat3{700, 0, 0, 0, 700, 0, 310, 250, 1}
	rd := spatialmath.RotateY(0.05)
	td := r3.Vector{X: -0.06}
	kr := k.Mul3(rd)
	kt := k.Mul3x1(mgl64.Vec3{td.X, td.Y, td.Z})
	p := mat.NewDense(3, 4, nil)
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			p.Set(row, col, kr.At(row, col))
		}
		p.Set(row, 3, kt[row])
	}
	model := testModel()
	model.Distortion = transform.DistortionCoeffs{0.2}
	model.Projection = p

	stub := &stubPnP{rvec: r3.Vector{Z: 0.4}, tvec: r3.Vector{X: 0.1, Y: 0.2, Z: 2}}
	s := NewSolver(Options{Rectified: true}, stub, nil, logging.NewTestLogger(t))
	detail, err := s.SolveWithDetail(unitSquare(t, testModel(), r3.Vector{Z: 3}), model)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, stub.k.ApproxEqualThreshold(k, 1e-8), test.ShouldBeTrue)
	test.That(t, stub.dist.IsZero(), test.ShouldBeTrue)

	raw := spatialmath.NewPoseFromRotationVector(stub.rvec, stub.tvec).Transform()
	want := spatialmath.Compose(spatialmath.FromRotationTranslation(rd, td), raw)
	test.That(t, detail.Pose.AlmostEqual(want, 1e-9), test.ShouldBeTrue)
	test.That(t, detail.Transform.AlmostEqual(want, 1e-9), test.ShouldBeTrue)
}

func TestSolveRectifiedNeedsProjection(t *testing.T) {
	s := NewSolver(Options{Rectified: true}, nil, nil, logging.NewTestLogger(t))
	_, err := s.Solve(unitSquare(t, testModel(), r3.Vector{Z: 3}), testModel())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "projection matrix")
}

func TestSolveFailures(t *testing.T) {
	model := testModel()
	s := NewSolver(Options{}, nil, nil, logging.NewTestLogger(t))
	set := unitSquare(t, model, r3.Vector{Z: 3})

	short := calibration.CorrespondenceSet{ImagePoints: set.ImagePoints[:3], ModelPoints: set.ModelPoints[:3]}
	_, err := s.Solve(short, model)
	test.That(t, errors.Is(err, ErrTooFewCorrespondences), test.ShouldBeTrue)

	_, err = s.Solve(calibration.CorrespondenceSet{}, model)
	test.That(t, errors.Is(err, ErrTooFewCorrespondences), test.ShouldBeTrue)

	_, err = s.Solve(set, nil)
	test.That(t, errors.Is(err, transform.ErrNoIntrinsics), test.ShouldBeTrue)

	collinear := calibration.CorrespondenceSet{
		ImagePoints: []r2.Point{{X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}, {X: 4, Y: 4}},
		ModelPoints: []r3.Vector{{X: 0}, {X: 1}, {X: 2}, {X: 3}},
	}
	_, err = s.Solve(collinear, model)
	test.That(t, err, test.ShouldNotBeNil)

	stub := &stubPnP{err: transform.ErrDegenerateCorrespondences}
	_, err = NewSolver(Options{}, stub, nil, logging.NewTestLogger(t)).Solve(set, model)
	test.That(t, errors.Is(err, transform.ErrDegenerateCorrespondences), test.ShouldBeTrue)
}
