package transform

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/posecore/spatialmath"
)

func TestCoordinateSystemAxes(t *testing.T) {
	model := NewCameraModel(testIntrinsics(), nil)
	pose := spatialmath.FromEuler(0, 0, 0, 0, 0, 1)

	axes, err := CoordinateSystemAxes(pose, model, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, axes.Origin.X, test.ShouldAlmostEqual, 319.5)
	test.That(t, axes.Origin.Y, test.ShouldAlmostEqual, 239.5)
	test.That(t, axes.X.X, test.ShouldAlmostEqual, 319.5+800*DefaultAxisLength)
	test.That(t, axes.X.Y, test.ShouldAlmostEqual, 239.5)
	test.That(t, axes.Y.Y, test.ShouldAlmostEqual, 239.5+780*DefaultAxisLength)
	// the Z axis points straight at the principal point, further away
	test.That(t, axes.Z.X, test.ShouldAlmostEqual, 319.5)
	test.That(t, axes.Z.Y, test.ShouldAlmostEqual, 239.5)

	_, err = CoordinateSystemAxes(pose, nil, 0.1)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestProjectPointsBehindCamera(t *testing.T) {
	model := NewCameraModel(testIntrinsics(), nil)
	pts, err := ProjectPoints([]r3.Vector{{Z: 1}, {Z: -1}}, spatialmath.NewTransform(), model)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pts[0].X, test.ShouldAlmostEqual, 319.5)
	test.That(t, pts[1].X, test.ShouldEqual, -1.)
}

func TestProjectPointsMatchesSolvePnP(t *testing.T) {
	model := NewCameraModel(testIntrinsics(), DistortionCoeffs{-0.1, 0.02})
	board := chessboard(6, 4, 0.04)
	pose := spatialmath.FromEuler(0.2, 0.1, -0.3, -0.1, -0.06, 0.7)

	image, err := ProjectPoints(board, pose, model)
	test.That(t, err, test.ShouldBeNil)
	rvec, tvec, err := SolvePnP(board, image, model.K(), model.Distortion, false)
	test.That(t, err, test.ShouldBeNil)
	got := spatialmath.NewPoseFromRotationVector(rvec, tvec).Transform()
	test.That(t, got.AlmostEqual(pose, 1e-6), test.ShouldBeTrue)
}
