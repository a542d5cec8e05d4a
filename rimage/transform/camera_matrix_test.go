package transform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/posecore/spatialmath"
)

func TestPinholeCameraIntrinsics(t *testing.T) {
	intrinsics := testIntrinsics()
	test.That(t, intrinsics.CheckValid(), test.ShouldBeNil)

	k := intrinsics.GetCameraMatrix()
	test.That(t, k.At(0, 0), test.ShouldEqual, 800.)
	test.That(t, k.At(1, 2), test.ShouldEqual, 239.5)
	test.That(t, k.At(2, 2), test.ShouldEqual, 1.)
	test.That(t, intrinsics.Mat3().At(0, 2), test.ShouldEqual, 319.5)

	x, y := intrinsics.PointToPixel(0.1, -0.05, 1)
	test.That(t, x, test.ShouldAlmostEqual, 399.5)
	test.That(t, y, test.ShouldAlmostEqual, 200.5)
	px, py, pz := intrinsics.PixelToPoint(x, y, 2)
	test.That(t, px, test.ShouldAlmostEqual, 0.2)
	test.That(t, py, test.ShouldAlmostEqual, -0.1)
	test.That(t, pz, test.ShouldEqual, 2.)

	var missing *PinholeCameraIntrinsics
	test.That(t, errors.Is(missing.CheckValid(), ErrNoIntrinsics), test.ShouldBeTrue)
	bad := *intrinsics
	bad.Fy = 0
	err := bad.CheckValid()
	test.That(t, errors.Is(err, ErrNoIntrinsics), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "Fy")
}

func rectifiedModel() *CameraModel {
	m := NewCameraModel(testIntrinsics(), DistortionCoeffs{-0.1, 0.01, 0, 0, 0})
	m.Rectification = mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	m.Projection = mat.NewDense(3, 4, []float64{790, 0, 320, 0, 0, 790, 240, 0, 0, 0, 1, 0})
	m.ReprojectionError = 0.25
	return m
}

func TestCameraModelEqual(t *testing.T) {
	a := rectifiedModel()
	b := a.Clone()
	test.That(t, a.Equal(b), test.ShouldBeTrue)
	test.That(t, a.IsRectified(), test.ShouldBeTrue)

	b.Projection.Set(0, 0, 791)
	test.That(t, a.Equal(b), test.ShouldBeFalse)
	test.That(t, a.Projection.At(0, 0), test.ShouldEqual, 790.)

	c := a.Clone()
	c.Fx++
	test.That(t, a.Equal(c), test.ShouldBeFalse)

	d := a.Clone()
	d.ReprojectionError = 3
	test.That(t, a.Equal(d), test.ShouldBeTrue)

	e := a.Clone()
	e.Extrinsics = spatialmath.FromEuler(0, 0, 0, 0, 0, 1)
	test.That(t, a.Equal(e), test.ShouldBeFalse)

	var none *CameraModel
	test.That(t, none.Equal(nil), test.ShouldBeTrue)
	test.That(t, a.Equal(nil), test.ShouldBeFalse)
	test.That(t, errors.Is(none.CheckValid(), ErrNoIntrinsics), test.ShouldBeTrue)
}

func TestCameraModelFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	for name, model := range map[string]*CameraModel{
		"plain":     NewCameraModel(testIntrinsics(), DistortionCoeffs{0.01, -0.002, 0.0001, 0, 0, 0, 0, 0.001}),
		"rectified": rectifiedModel(),
	} {
		for _, ext := range []string{".json", ".cbor"} {
			t.Run(name+ext, func(t *testing.T) {
				path := filepath.Join(dir, name+ext)
				test.That(t, WriteCameraModelFile(path, model), test.ShouldBeNil)
				back, err := ReadCameraModelFile(path)
				test.That(t, err, test.ShouldBeNil)
				test.That(t, back.Equal(model), test.ShouldBeTrue)
				test.That(t, back.ReprojectionError, test.ShouldEqual, model.ReprojectionError)
			})
		}
	}
}

func TestCameraModelFileErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadCameraModelFile(filepath.Join(dir, "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)

	path := filepath.Join(dir, "short.json")
	test.That(t, os.WriteFile(path, []byte(`{"image_width":640,"image_height":480,"camera_matrix":[1,2,3]}`), 0o600), test.ShouldBeNil)
	_, err = ReadCameraModelFile(path)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "camera_matrix")

	path = filepath.Join(dir, "garbage.json")
	test.That(t, os.WriteFile(path, []byte(`not json`), 0o600), test.ShouldBeNil)
	_, err = ReadCameraModelFile(path)
	test.That(t, err, test.ShouldNotBeNil)

	path = filepath.Join(dir, "json.cbor")
	test.That(t, os.WriteFile(path, []byte(`{"image_width":640}`), 0o600), test.ShouldBeNil)
	_, err = ReadCameraModelFile(path)
	test.That(t, err, test.ShouldNotBeNil)

	test.That(t, WriteCameraModelFile(filepath.Join(dir, "x.json"), &CameraModel{}), test.ShouldNotBeNil)
}
