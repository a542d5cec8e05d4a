package config

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/invopop/jsonschema"
	"go.uber.org/multierr"
	"go.viam.com/test"

	"go.viam.com/posecore/calibration"
	"go.viam.com/posecore/homogprovider"
	"go.viam.com/posecore/logging"
	"go.viam.com/posecore/spatialmath"
)

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	test.That(t, cfg.Validate(""), test.ShouldBeNil)
	test.That(t, cfg.Policy(), test.ShouldEqual, calibration.PolicyContinuous)
	test.That(t, cfg.Level(), test.ShouldEqual, logging.INFO)
	test.That(t, cfg.RefineEnabled(), test.ShouldBeTrue)
	test.That(t, cfg.MinSampleCount(), test.ShouldEqual, 1)

	opts := cfg.AveragerOptions()
	test.That(t, opts.Precision, test.ShouldEqual, spatialmath.Float64)
	test.That(t, opts.SingleSampleShortcut, test.ShouldBeTrue)
	test.That(t, opts.SkipIdentity, test.ShouldBeFalse)

	solver := cfg.SolverOptions()
	test.That(t, solver.Rectified, test.ShouldBeFalse)
	test.That(t, solver.Offset.AlmostEqual(spatialmath.NewTransform(), 0), test.ShouldBeTrue)
}

func TestConfigOptions(t *testing.T) {
	shortcut := false
	refine := false
	cfg := Config{
		Offset:               homogprovider.Config{Z: 0.1, Yaw: 0.2},
		CollectionPolicy:     "one_shot",
		Rectified:            true,
		Precision:            "float32",
		SingleSampleShortcut: &shortcut,
		SkipIdentity:         true,
		MinSamples:           5,
		Refine:               &refine,
		ModelShiftX:          0.5,
		LogLevel:             "debug",
	}
	test.That(t, cfg.Validate(""), test.ShouldBeNil)
	test.That(t, cfg.Policy(), test.ShouldEqual, calibration.PolicyOneShot)
	test.That(t, cfg.Level(), test.ShouldEqual, logging.DEBUG)
	test.That(t, cfg.RefineEnabled(), test.ShouldBeFalse)
	test.That(t, cfg.MinSampleCount(), test.ShouldEqual, 5)

	opts := cfg.AveragerOptions()
	test.That(t, opts.Precision, test.ShouldEqual, spatialmath.Float32)
	test.That(t, opts.SingleSampleShortcut, test.ShouldBeFalse)
	test.That(t, opts.SkipIdentity, test.ShouldBeTrue)

	solver := cfg.SolverOptions()
	test.That(t, solver.Rectified, test.ShouldBeTrue)
	test.That(t, solver.ModelShiftX, test.ShouldEqual, 0.5)
	test.That(t, solver.Offset.AlmostEqual(homogprovider.Build(0, 0, 0.1, 0, 0, 0.2), 1e-12), test.ShouldBeTrue)
}

func TestConfigValidateAggregates(t *testing.T) {
	cfg := Config{
		Offset:           homogprovider.Config{Roll: math.NaN()},
		CollectionPolicy: "sometimes",
		Precision:        "float16",
		LogLevel:         "loud",
		MinSamples:       -1,
		AxisLength:       -2,
	}
	err := cfg.Validate("pose")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, multierr.Errors(err), test.ShouldHaveLength, 6)
	for _, field := range []string{
		"pose.offset.roll", "pose.collection_policy", "pose.precision",
		"pose.log_level", "pose.min_samples", "pose.axis_length",
	} {
		test.That(t, err.Error(), test.ShouldContainSubstring, field)
	}
}

func TestRead(t *testing.T) {
	t.Setenv("POSECORE_TEST_MODEL", "/tmp/camera.json")
	path := filepath.Join(t.TempDir(), "posecore.json")
	doc := `{
		"offset": {"x": 0.1, "yaw": 90, "degrees": true},
		"collection_policy": "one_shot",
		"min_samples": 3,
		"camera_model_path": "${POSECORE_TEST_MODEL}"
	}`
	test.That(t, os.WriteFile(path, []byte(doc), 0o600), test.ShouldBeNil)

	cfg, err := Read(path, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.ConfigFilePath, test.ShouldEqual, path)
	test.That(t, cfg.CameraModelPath, test.ShouldEqual, "/tmp/camera.json")
	test.That(t, cfg.Offset.Yaw, test.ShouldEqual, 90)
	test.That(t, cfg.Policy(), test.ShouldEqual, calibration.PolicyOneShot)
	test.That(t, cfg.MinSampleCount(), test.ShouldEqual, 3)

	_, err = Read(filepath.Join(t.TempDir(), "missing.json"), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestFromReaderErrors(t *testing.T) {
	logger := logging.NewTestLogger(t)
	_, err := FromReader("", strings.NewReader(`{"offset": `), logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "failed to decode")

	_, err = FromReader("", strings.NewReader(`{"unknown_field": 1}`), logger)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = FromReader("", strings.NewReader(`{"precision": "half"}`), logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "precision")
}

func TestFromAttributes(t *testing.T) {
	cfg, err := FromAttributes(AttributeMap{
		"offset":                 map[string]interface{}{"z": 0.25, "roll": 0.1},
		"rectified":              true,
		"single_sample_shortcut": false,
		"min_samples":            "4",
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Offset, test.ShouldResemble, homogprovider.Config{Z: 0.25, Roll: 0.1})
	test.That(t, cfg.Rectified, test.ShouldBeTrue)
	test.That(t, cfg.SingleSampleShortcut, test.ShouldNotBeNil)
	test.That(t, *cfg.SingleSampleShortcut, test.ShouldBeFalse)
	test.That(t, cfg.MinSamples, test.ShouldEqual, 4)

	_, err = FromAttributes(AttributeMap{"offset": map[string]interface{}{"w": 1}})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = FromAttributes(AttributeMap{"collection_policy": "never"})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestReaderAndAttributesAgree(t *testing.T) {
	doc := `{
		"offset": {"x": 0.1, "yaw": 45, "degrees": true},
		"collection_policy": "one_shot",
		"precision": "float32",
		"refine": false,
		"min_samples": 5,
		"model_shift_x": 0.02,
		"log_level": "debug"
	}`
	fromFile, err := FromReader("", strings.NewReader(doc), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	var am AttributeMap
	test.That(t, json.Unmarshal([]byte(doc), &am), test.ShouldBeNil)
	fromAttrs, err := FromAttributes(am)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cmp.Diff(fromFile, fromAttrs), test.ShouldBeEmpty)
}

func TestAttributeMapHas(t *testing.T) {
	am := AttributeMap{"rectified": false}
	test.That(t, am.Has("rectified"), test.ShouldBeTrue)
	test.That(t, am.Has("offset"), test.ShouldBeFalse)
}

func TestSchema(t *testing.T) {
	out, err := SchemaJSON()
	test.That(t, err, test.ShouldBeNil)
	for _, field := range []string{"offset", "collection_policy", "min_samples", "camera_model_path", "x", "roll", "yaw"} {
		test.That(t, string(out), test.ShouldContainSubstring, `"`+field+`"`)
	}
	test.That(t, string(out), test.ShouldNotContainSubstring, "ConfigFilePath")
	test.That(t, string(out), test.ShouldNotContainSubstring, "$ref")

	schema := Schema()
	offset, ok := schema.Properties.Get("offset")
	test.That(t, ok, test.ShouldBeTrue)
	offsetSchema, ok := offset.(*jsonschema.Schema)
	test.That(t, ok, test.ShouldBeTrue)
	_, ok = offsetSchema.Properties.Get("yaw")
	test.That(t, ok, test.ShouldBeTrue)
}
