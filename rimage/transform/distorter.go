package transform

import (
	"fmt"

	"github.com/pkg/errors"
)

// maxDistortionCoeffs is the length of the full rational model k1, k2, p1, p2, k3, k4, k5, k6.
const maxDistortionCoeffs = 8

// DistortionCoeffs are lens distortion coefficients in the usual order k1, k2, p1, p2, k3, k4, k5, k6.
// Missing trailing coefficients are zero. An empty slice means no distortion.
type DistortionCoeffs []float64

// InvalidDistortionError is used when the distortion coefficients are invalid.
func InvalidDistortionError(msg string) error {
	return errors.Wrap(errors.New("invalid distortion coefficients"), msg)
}

// CheckValid checks that there are at most eight coefficients.
func (d DistortionCoeffs) CheckValid() error {
	if len(d) > maxDistortionCoeffs {
		return InvalidDistortionError(fmt.Sprintf("expected at most %d coefficients, got %d", maxDistortionCoeffs, len(d)))
	}
	return nil
}

// IsZero reports whether the coefficients describe an undistorted lens.
func (d DistortionCoeffs) IsZero() bool {
	for _, c := range d {
		if c != 0 {
			return false
		}
	}
	return true
}

// Full returns all eight coefficients, zero filled.
func (d DistortionCoeffs) Full() [maxDistortionCoeffs]float64 {
	var full [maxDistortionCoeffs]float64
	copy(full[:], d)
	return full
}

// Equal compares two sets of coefficients, treating missing trailing values as zero.
func (d DistortionCoeffs) Equal(other DistortionCoeffs) bool {
	return d.Full() == other.Full()
}

// Distort maps an undistorted normalized image point (x/z, y/z) to its distorted position.
//
//	x_d = x_u * (1 + k1*r² + k2*r⁴ + k3*r⁶) / (1 + k4*r² + k5*r⁴ + k6*r⁶) + 2*p1*x_u*y_u + p2*(r² + 2*x_u²)
//	y_d = y_u * (1 + k1*r² + k2*r⁴ + k3*r⁶) / (1 + k4*r² + k5*r⁴ + k6*r⁶) + 2*p2*x_u*y_u + p1*(r² + 2*y_u²)
func (d DistortionCoeffs) Distort(xu, yu float64) (float64, float64) {
	if d.IsZero() {
		return xu, yu
	}
	c := d.Full()
	k1, k2, p1, p2, k3, k4, k5, k6 := c[0], c[1], c[2], c[3], c[4], c[5], c[6], c[7]

	r2 := xu*xu + yu*yu
	r4 := r2 * r2
	r6 := r4 * r2
	radial := (1 + k1*r2 + k2*r4 + k3*r6) / (1 + k4*r2 + k5*r4 + k6*r6)
	xd := xu*radial + 2*p1*xu*yu + p2*(r2+2*xu*xu)
	yd := yu*radial + 2*p2*xu*yu + p1*(r2+2*yu*yu)
	return xd, yd
}
