package spatialmath

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Precision selects the floating point width used by the aggregation math. Float32 reproduces
// pipelines that accumulated in single precision.
type Precision string

const (
	// Float64 keeps full double precision.
	Float64 = Precision("float64")
	// Float32 rounds every intermediate value to single precision.
	Float32 = Precision("float32")
)

// ParsePrecision parses "float64", "float32" or "" (float64).
func ParsePrecision(s string) (Precision, error) {
	switch Precision(s) {
	case "", Float64:
		return Float64, nil
	case Float32:
		return Float32, nil
	}
	return Float64, errors.Errorf("unknown precision %q, expected %q or %q", s, Float64, Float32)
}

// Round rounds x to the precision.
func (p Precision) Round(x float64) float64 {
	if p == Float32 {
		return float64(float32(x))
	}
	return x
}

// RoundVector rounds every component of v.
func (p Precision) RoundVector(v r3.Vector) r3.Vector {
	if p != Float32 {
		return v
	}
	return r3.Vector{X: p.Round(v.X), Y: p.Round(v.Y), Z: p.Round(v.Z)}
}

// RoundMat3 rounds every entry of m.
func (p Precision) RoundMat3(m mgl64.Mat3) mgl64.Mat3 {
	if p != Float32 {
		return m
	}
	for i := range m {
		m[i] = p.Round(m[i])
	}
	return m
}

// RoundPose rounds rotation and translation.
func (p Precision) RoundPose(pose Pose) Pose {
	return Pose{Rotation: p.RoundMat3(pose.Rotation), Translation: p.RoundVector(pose.Translation)}
}
