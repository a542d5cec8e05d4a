package transform

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/mat"
)

// cameraModelFile is the on-disk key/value form of a CameraModel. Matrices are flat row-major arrays.
type cameraModelFile struct {
	ImageWidth          int       `json:"image_width"`
	ImageHeight         int       `json:"image_height"`
	CameraMatrix        []float64 `json:"camera_matrix"`
	DistCoeffs          []float64 `json:"dist_coeffs"`
	RectificationMatrix []float64 `json:"rectification_matrix,omitempty"`
	ProjectionMatrix    []float64 `json:"projection_matrix,omitempty"`
	ReprojectionError   float64   `json:"reprojection_error"`
}

// isCBORPath reports whether path names a binary CBOR camera model file rather than JSON.
func isCBORPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".cbor")
}

// WriteCameraModelFile writes the model to path, as CBOR when path ends in .cbor and as JSON
// otherwise. Both encodings use the same keys.
func WriteCameraModelFile(path string, m *CameraModel) error {
	if err := m.CheckValid(); err != nil {
		return errors.Wrap(err, "refusing to write invalid camera model")
	}
	doc := cameraModelFile{
		ImageWidth:        m.Width,
		ImageHeight:       m.Height,
		CameraMatrix:      m.CameraMatrix().RawMatrix().Data,
		DistCoeffs:        append([]float64{}, m.Distortion...),
		ReprojectionError: m.ReprojectionError,
	}
	if m.Rectification != nil {
		doc.RectificationMatrix = mat.DenseCopyOf(m.Rectification).RawMatrix().Data
	}
	if m.Projection != nil {
		doc.ProjectionMatrix = mat.DenseCopyOf(m.Projection).RawMatrix().Data
	}
	var data []byte
	var err error
	if isCBORPath(path) {
		data, err = cbor.Marshal(doc)
	} else {
		data, err = json.MarshalIndent(doc, "", "  ")
	}
	if err != nil {
		return errors.Wrap(err, "error encoding camera model")
	}
	//nolint:gosec
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "error writing camera model to %q", path)
	}
	return nil
}

// ReadCameraModelFile reads a model written by WriteCameraModelFile.
func ReadCameraModelFile(path string) (*CameraModel, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "error opening camera model file")
	}
	defer utils.UncheckedErrorFunc(f.Close)

	byteValue, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Wrap(err, "error reading camera model data")
	}
	var doc cameraModelFile
	if isCBORPath(path) {
		err = cbor.Unmarshal(byteValue, &doc)
	} else {
		err = json.Unmarshal(byteValue, &doc)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "error parsing camera model %q", path)
	}
	return doc.toCameraModel()
}

func (doc *cameraModelFile) toCameraModel() (*CameraModel, error) {
	if len(doc.CameraMatrix) != 9 {
		return nil, errors.Errorf("camera_matrix must have 9 entries, got %d", len(doc.CameraMatrix))
	}
	k := mat.NewDense(3, 3, doc.CameraMatrix)
	m := &CameraModel{
		PinholeCameraIntrinsics: &PinholeCameraIntrinsics{
			Width:  doc.ImageWidth,
			Height: doc.ImageHeight,
			Fx:     k.At(0, 0),
			Fy:     k.At(1, 1),
			Ppx:    k.At(0, 2),
			Ppy:    k.At(1, 2),
		},
		Distortion:        DistortionCoeffs(doc.DistCoeffs),
		ReprojectionError: doc.ReprojectionError,
	}
	switch len(doc.RectificationMatrix) {
	case 0:
	case 9:
		m.Rectification = mat.NewDense(3, 3, doc.RectificationMatrix)
	default:
		return nil, errors.Errorf("rectification_matrix must have 9 entries, got %d", len(doc.RectificationMatrix))
	}
	switch len(doc.ProjectionMatrix) {
	case 0:
	case 12:
		m.Projection = mat.NewDense(3, 4, doc.ProjectionMatrix)
	default:
		return nil, errors.Errorf("projection_matrix must have 12 entries, got %d", len(doc.ProjectionMatrix))
	}
	if err := m.CheckValid(); err != nil {
		return nil, err
	}
	return m, nil
}
