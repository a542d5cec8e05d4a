package transform

import (
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/posecore/spatialmath"
)

func TestCalibrateCamera(t *testing.T) {
	views, poses := boardViews()
	truth := testIntrinsics()

	result, err := CalibrateCamera(views, testSize, false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result.Intrinsics.Fx, test.ShouldAlmostEqual, truth.Fx, 1e-6)
	test.That(t, result.Intrinsics.Fy, test.ShouldAlmostEqual, truth.Fy, 1e-6)
	test.That(t, result.Intrinsics.Ppx, test.ShouldAlmostEqual, truth.Ppx, 1e-9)
	test.That(t, result.Intrinsics.Ppy, test.ShouldAlmostEqual, truth.Ppy, 1e-9)
	test.That(t, result.Intrinsics.Width, test.ShouldEqual, testSize.Width)
	test.That(t, result.Distortion.IsZero(), test.ShouldBeTrue)
	test.That(t, len(result.Distortion), test.ShouldEqual, 5)
	test.That(t, result.ReprojectionError, test.ShouldBeLessThan, 1e-6)
	test.That(t, result.ViewErrors, test.ShouldHaveLength, len(views))

	for i, pose := range poses {
		test.That(t, spatialmath.PoseAlmostEqual(result.Extrinsics[i], spatialmath.PoseFromTransform(pose), 1e-6), test.ShouldBeTrue)
	}

	model := result.CameraModel()
	test.That(t, model.CheckValid(), test.ShouldBeNil)
	test.That(t, model.ImageSize(), test.ShouldResemble, testSize)
	test.That(t, model.ReprojectionError, test.ShouldEqual, result.ReprojectionError)
}

func TestCalibrateCameraSingleView(t *testing.T) {
	views, _ := boardViews()
	result, err := CalibrateCamera(views[:1], testSize, false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result.Intrinsics.Fx, test.ShouldAlmostEqual, 800, 1e-6)
	test.That(t, result.Intrinsics.Fy, test.ShouldAlmostEqual, 780, 1e-6)
}

func TestCalibrateCameraRefine(t *testing.T) {
	views, _ := boardViews()
	linear, err := CalibrateCamera(views, testSize, false)
	test.That(t, err, test.ShouldBeNil)
	refined, err := CalibrateCamera(views, testSize, true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, refined.ReprojectionError, test.ShouldBeLessThanOrEqualTo, linear.ReprojectionError+1e-9)
	test.That(t, refined.Intrinsics.Fx, test.ShouldAlmostEqual, 800, 1e-3)
}

func TestCalibrateCameraDegenerate(t *testing.T) {
	_, err := CalibrateCamera(nil, testSize, false)
	test.That(t, errors.Is(err, ErrDegenerateDataset), test.ShouldBeTrue)

	views, _ := boardViews()
	_, err = CalibrateCamera(views, ImageSize{}, false)
	test.That(t, errors.Is(err, ErrDegenerateDataset), test.ShouldBeTrue)

	// a board parallel to the image plane says nothing about the focal length
	board := chessboard(7, 5, 0.03)
	facing := spatialmath.FromEuler(0, 0, 0, -0.09, -0.06, 0.5)
	flat := CalibrationView{ImagePoints: project(board, testIntrinsics().Mat3(), nil, facing), ModelPoints: board}
	_, err = CalibrateCamera([]CalibrationView{flat}, testSize, false)
	test.That(t, errors.Is(err, ErrDegenerateDataset), test.ShouldBeTrue)

	short := CalibrationView{ImagePoints: views[0].ImagePoints[:3], ModelPoints: views[0].ModelPoints[:3]}
	_, err = CalibrateCamera([]CalibrationView{short}, testSize, false)
	test.That(t, errors.Is(err, ErrDegenerateDataset), test.ShouldBeTrue)
}
