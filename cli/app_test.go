package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/posecore/calibration"
	"go.viam.com/posecore/rimage/transform"
	"go.viam.com/posecore/spatialmath"
)

var testSize = transform.ImageSize{Width: 640, Height: 480}

func truthModel() *transform.CameraModel {
	return transform.NewCameraModel(&transform.PinholeCameraIntrinsics{
		Width: testSize.Width, Height: testSize.Height, Fx: 800, Fy: 780, Ppx: 319.5, Ppy: 239.5,
	}, nil)
}

func observe(t *testing.T, pose spatialmath.Transform) calibration.CorrespondenceSet {
	t.Helper()
	var board []r3.Vector
	for row := 0; row < 5; row++ {
		for col := 0; col < 7; col++ {
			board = append(board, r3.Vector{X: float64(col) * 0.03, Y: float64(row) * 0.03})
		}
	}
	pixels, err := transform.ProjectPoints(board, pose, truthModel())
	test.That(t, err, test.ShouldBeNil)
	return calibration.CorrespondenceSet{ImagePoints: pixels, ModelPoints: board}
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := NewApp(&out, &errOut).Run(append([]string{"posecore"}, args...))
	return out.String(), errOut.String(), err
}

func TestOffsetCommand(t *testing.T) {
	out, _, err := run(t, "offset", "--x", "1.5", "--yaw", "90", "--degrees")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "1.500000")
	test.That(t, out, test.ShouldContainSubstring, "90.00 deg")

	_, _, err = run(t, "offset", "--roll", "NaN")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "offset.roll")
}

func TestOffsetCommandWithConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posecore.json")
	test.That(t, writeJSONFile(path, map[string]interface{}{
		"offset": map[string]interface{}{"z": 0.25},
	}), test.ShouldBeNil)

	out, _, err := run(t, "--config", path, "offset", "--x", "2")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "2.000000")
	test.That(t, out, test.ShouldContainSubstring, "0.250000")
}

func TestSchemaCommand(t *testing.T) {
	out, _, err := run(t, "schema")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "collection_policy")
}

func TestCalibrateAndSolveCommands(t *testing.T) {
	dir := t.TempDir()
	datasetPath := filepath.Join(dir, "dataset.json")
	modelPath := filepath.Join(dir, "camera.json")
	plotPath := filepath.Join(dir, "errors.png")
	test.That(t, writeJSONFile(datasetPath, datasetFile{
		ImageSize: testSize,
		Observations: []calibration.CorrespondenceSet{
			observe(t, spatialmath.FromEuler(0.35, -0.2, 0.05, -0.09, -0.06, 0.55)),
			observe(t, spatialmath.FromEuler(-0.3, 0.25, -0.1, -0.1, -0.05, 0.6)),
		},
	}), test.ShouldBeNil)

	logPath := filepath.Join(dir, "posecore.log")
	out, _, err := run(t, "--debug", "--log-file", logPath, "calibrate",
		"--dataset", datasetPath, "--refine=false", "--output", modelPath, "--plot", plotPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "800.0000")
	test.That(t, out, test.ShouldContainSubstring, "780.0000")
	test.That(t, out, test.ShouldContainSubstring, "640x480")

	model, err := transform.ReadCameraModelFile(modelPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, model.Fx, test.ShouldAlmostEqual, 800, 1e-6)
	info, err := os.Stat(plotPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, info.Size(), test.ShouldBeGreaterThan, 0)
	logged, err := os.ReadFile(logPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(logged), test.ShouldContainSubstring, "calibrated camera")

	setPath := filepath.Join(dir, "object.json")
	object := spatialmath.FromEuler(0, 0, 0, 0.01, 0.02, 0.5)
	test.That(t, writeJSONFile(setPath, observe(t, object)), test.ShouldBeNil)
	out, _, err = run(t, "solve", "--camera-model", modelPath, "--correspondences", setPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "tvec: [0.010000 0.020000 0.500000]")
}

func TestCalibrateCommandErrors(t *testing.T) {
	_, _, err := run(t, "calibrate", "--dataset", filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)

	empty := filepath.Join(t.TempDir(), "empty.json")
	test.That(t, writeJSONFile(empty, datasetFile{ImageSize: testSize}), test.ShouldBeNil)
	_, _, err = run(t, "calibrate", "--dataset", empty)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "empty")
}

func TestAverageCommand(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "transforms.json")
	out := filepath.Join(dir, "average.json")
	test.That(t, writeJSONFile(in, transformsFile{Transforms: [][3][4]float64{
		spatialmath.FromEuler(0, 0, 0.2, 1, 0, 0).Elements(),
		spatialmath.FromEuler(0, 0, 0.4, 3, 0, 0).Elements(),
		spatialmath.NewTransform().Elements(),
	}}), test.ShouldBeNil)

	stdout, _, err := run(t, "average", "--transforms", in, "--skip-identity", "--output", out)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stdout, test.ShouldContainSubstring, "2.000000")

	var doc transformsFile
	test.That(t, readJSONFile(out, &doc), test.ShouldBeNil)
	avg := doc.toTransforms()
	test.That(t, avg, test.ShouldHaveLength, 1)
	test.That(t, avg[0].AlmostEqual(spatialmath.FromEuler(0, 0, 0.3, 2, 0, 0), 1e-9), test.ShouldBeTrue)

	identityOnly := filepath.Join(dir, "identity.json")
	test.That(t, writeJSONFile(identityOnly, transformsFile{Transforms: [][3][4]float64{
		spatialmath.NewTransform().Elements(),
	}}), test.ShouldBeNil)
	_, _, err = run(t, "average", "--transforms", identityOnly, "--skip-identity")
	test.That(t, err, test.ShouldNotBeNil)

	_, _, err = run(t, "average", "--transforms", in, "--precision", "half")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestViewErrorHistogram(t *testing.T) {
	test.That(t, viewErrorHistogram([]float64{0.2}), test.ShouldEqual, "")
	test.That(t, viewErrorHistogram([]float64{0.2, 0.2}), test.ShouldEqual, "")

	out := viewErrorHistogram([]float64{0.1, 0.15, 0.4, 0.9})
	test.That(t, out, test.ShouldContainSubstring, "Views")
	test.That(t, out, test.ShouldContainSubstring, "0.100")
	test.That(t, out, test.ShouldContainSubstring, "#")
}

func TestTablesKeepHeaderCase(t *testing.T) {
	out := transformTable(spatialmath.FromEuler(0, 0, 0.5, 1, 2, 3))
	test.That(t, out, test.ShouldContainSubstring, "rvec")
	test.That(t, out, test.ShouldContainSubstring, "28.65 deg")
	test.That(t, out, test.ShouldNotContainSubstring, "DEG")

	out = cameraModelTable(truthModel(), []float64{0.1, 0.2})
	test.That(t, out, test.ShouldContainSubstring, "Parameter")
	test.That(t, out, test.ShouldContainSubstring, "RMS error (px)")
}
