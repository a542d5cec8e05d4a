package cli

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.viam.com/utils"

	"go.viam.com/posecore/calibration"
	"go.viam.com/posecore/rimage/transform"
	"go.viam.com/posecore/spatialmath"
)

// datasetFile is a recorded calibration dataset: every chessboard detection taken at one image size.
type datasetFile struct {
	ImageSize    transform.ImageSize             `json:"image_size"`
	Observations []calibration.CorrespondenceSet `json:"observations"`
}

// transformsFile is a sequence of transforms, each as its top three rows.
type transformsFile struct {
	Transforms [][3][4]float64 `json:"transforms"`
}

func (f transformsFile) toTransforms() []spatialmath.Transform {
	return lo.Map(f.Transforms, func(elements [3][4]float64, _ int) spatialmath.Transform {
		return spatialmath.NewTransformFromElements(elements)
	})
}

// readJSONFile decodes the JSON document at path into v.
func readJSONFile(path string, v interface{}) error {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "could not open %q", path)
	}
	defer utils.UncheckedErrorFunc(f.Close)
	if err := json.NewDecoder(f).Decode(v); err != nil {
		return errors.Wrapf(err, "could not parse %q", path)
	}
	return nil
}

// writeJSONFile writes v to path as indented JSON.
func writeJSONFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	//nolint:gosec
	return os.WriteFile(path, data, 0o644)
}
