// Package transform provides camera models and the calibration, pose and projection primitives
// built on them.
package transform

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/posecore/spatialmath"
)

// ImageSize is the width and height of an image in pixels.
type ImageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// String returns WxH.
func (s ImageSize) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// CameraModel is the full model of a calibrated camera: intrinsics, lens distortion, and, for rectified
// streams, the rectification and projection matrices. Extrinsics is identity unless the calibration
// estimated it.
type CameraModel struct {
	*PinholeCameraIntrinsics `json:"intrinsic_parameters"`
	Distortion               DistortionCoeffs `json:"distortion"`
	// Rectification is 3x3 and Projection is 3x4; both are nil for unrectified cameras.
	Rectification *mat.Dense            `json:"-"`
	Projection    *mat.Dense            `json:"-"`
	Extrinsics    spatialmath.Transform `json:"-"`
	// ReprojectionError is the RMS pixel error of the calibration that produced the model. It does
	// not take part in Equal.
	ReprojectionError float64 `json:"reprojection_error"`
}

// NewCameraModel returns an unrectified model.
func NewCameraModel(intrinsics *PinholeCameraIntrinsics, distortion DistortionCoeffs) *CameraModel {
	return &CameraModel{PinholeCameraIntrinsics: intrinsics, Distortion: distortion}
}

// CheckValid checks that the model can be used for projection and pose solving.
func (m *CameraModel) CheckValid() error {
	if m == nil {
		return NewNoIntrinsicsError("camera model does not exist")
	}
	if err := m.PinholeCameraIntrinsics.CheckValid(); err != nil {
		return err
	}
	if err := m.Distortion.CheckValid(); err != nil {
		return err
	}
	if m.Rectification != nil {
		if r, c := m.Rectification.Dims(); r != 3 || c != 3 {
			return errors.Errorf("rectification matrix must be 3x3, got %dx%d", r, c)
		}
	}
	if m.Projection != nil {
		if r, c := m.Projection.Dims(); r != 3 || c != 4 {
			return errors.Errorf("projection matrix must be 3x4, got %dx%d", r, c)
		}
	}
	return nil
}

// ImageSize returns the size of the images the model describes.
func (m *CameraModel) ImageSize() ImageSize {
	if m == nil {
		return ImageSize{}
	}
	return m.PinholeCameraIntrinsics.Size()
}

// CameraMatrix returns the 3x3 intrinsic matrix.
func (m *CameraModel) CameraMatrix() *mat.Dense {
	if m == nil {
		return nil
	}
	return m.GetCameraMatrix()
}

// K returns the intrinsic matrix as a 3x3 mgl64 matrix.
func (m *CameraModel) K() mgl64.Mat3 {
	return m.PinholeCameraIntrinsics.Mat3()
}

// IsRectified reports whether the model carries a projection matrix.
func (m *CameraModel) IsRectified() bool {
	return m != nil && m.Projection != nil
}

// Equal compares two models by value.
func (m *CameraModel) Equal(other *CameraModel) bool {
	if m == nil || other == nil {
		return m == other
	}
	switch {
	case m.PinholeCameraIntrinsics == nil || other.PinholeCameraIntrinsics == nil:
		if m.PinholeCameraIntrinsics != other.PinholeCameraIntrinsics {
			return false
		}
	case *m.PinholeCameraIntrinsics != *other.PinholeCameraIntrinsics:
		return false
	}
	return m.Distortion.Equal(other.Distortion) &&
		denseEqual(m.Rectification, other.Rectification) &&
		denseEqual(m.Projection, other.Projection) &&
		m.Extrinsics.Matrix() == other.Extrinsics.Matrix()
}

// Clone returns a deep copy of the model.
func (m *CameraModel) Clone() *CameraModel {
	if m == nil {
		return nil
	}
	clone := *m
	if m.PinholeCameraIntrinsics != nil {
		intrinsics := *m.PinholeCameraIntrinsics
		clone.PinholeCameraIntrinsics = &intrinsics
	}
	if m.Distortion != nil {
		clone.Distortion = append(DistortionCoeffs{}, m.Distortion...)
	}
	if m.Rectification != nil {
		clone.Rectification = mat.DenseCopyOf(m.Rectification)
	}
	if m.Projection != nil {
		clone.Projection = mat.DenseCopyOf(m.Projection)
	}
	return &clone
}

func denseEqual(a, b *mat.Dense) bool {
	if a == nil || b == nil {
		return a == b
	}
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != br || ac != bc {
		return false
	}
	return mat.Equal(a, b)
}
