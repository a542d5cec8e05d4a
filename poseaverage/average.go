// Package poseaverage combines independently estimated poses of one rigid object into a single
// stable estimate.
//
// Rotations are averaged in axis-angle form: the mean of the sample angles scales the mean of the
// sample unit axes. The mean axis is not renormalized, so the result is only exact when the sample
// axes are close to parallel, which holds for repeated estimates of a static object. Translations are
// averaged arithmetically.
package poseaverage

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/posecore/spatialmath"
)

// ErrNoPoses is returned when there is nothing to average.
var ErrNoPoses = errors.New("no poses to average")

// angleEpsilon is the angle under which a sample's axis is undefined and contributes nothing.
const angleEpsilon = 1e-12

// Options selects between the historical variants of the averaging.
type Options struct {
	// Precision rounds every intermediate value, reproducing single precision pipelines when Float32.
	Precision spatialmath.Precision `json:"precision"`
	// SingleSampleShortcut returns a lone sample unchanged instead of passing it through the
	// axis-angle round trip.
	SingleSampleShortcut bool `json:"single_sample_shortcut"`
	// SkipIdentity drops exact identity poses, which upstream detectors emit when they found nothing.
	SkipIdentity bool `json:"skip_identity"`
}

// DefaultOptions returns double precision averaging with the single sample shortcut.
func DefaultOptions() Options {
	return Options{Precision: spatialmath.Float64, SingleSampleShortcut: true}
}

// sample is one pose split into the quantities the average accumulates.
type sample struct {
	angle       float64
	axis        r3.Vector
	translation r3.Vector
}

func newSample(p spatialmath.Pose, prec spatialmath.Precision) sample {
	rv := prec.RoundVector(p.RotationVector())
	angle := prec.Round(rv.Norm())
	var axis r3.Vector
	if angle >= angleEpsilon {
		axis = prec.RoundVector(rv.Mul(1 / angle))
	}
	return sample{angle: angle, axis: axis, translation: prec.RoundVector(p.Translation)}
}

// sums are the cumulative fields of an average; they only ever change together.
type sums struct {
	count       int
	angle       float64
	axis        r3.Vector
	translation r3.Vector
}

func (s *sums) add(smp sample, prec spatialmath.Precision) {
	s.count++
	s.angle = prec.Round(s.angle + smp.angle)
	s.axis = prec.RoundVector(s.axis.Add(smp.axis))
	s.translation = prec.RoundVector(s.translation.Add(smp.translation))
}

func (s *sums) meanAngle(prec spatialmath.Precision) float64 {
	return prec.Round(s.angle / float64(s.count))
}

// estimate applies the averaging formula to the sums. count must be positive.
func (s *sums) estimate(prec spatialmath.Precision) spatialmath.Pose {
	n := float64(s.count)
	angle := s.meanAngle(prec)
	axis := prec.RoundVector(s.axis.Mul(1 / n))
	rv := prec.RoundVector(axis.Mul(angle))
	t := prec.RoundVector(s.translation.Mul(1 / n))
	return prec.RoundPose(spatialmath.NewPose(spatialmath.MatrixFromAxisAngle(rv), t))
}

// Batch averages a set of poses. A single pose is returned unchanged when the shortcut is enabled.
func Batch(poses []spatialmath.Pose, opts Options) (spatialmath.Pose, error) {
	if opts.SkipIdentity {
		poses = withoutIdentity(poses)
	}
	if len(poses) == 0 {
		return spatialmath.Pose{}, ErrNoPoses
	}
	if len(poses) == 1 && opts.SingleSampleShortcut {
		return poses[0], nil
	}
	var s sums
	for _, p := range poses {
		s.add(newSample(p, opts.Precision), opts.Precision)
	}
	return s.estimate(opts.Precision), nil
}

// AverageTransforms is Batch over homogeneous transforms.
func AverageTransforms(transforms []spatialmath.Transform, opts Options) (spatialmath.Transform, error) {
	poses := make([]spatialmath.Pose, len(transforms))
	for i, t := range transforms {
		poses[i] = spatialmath.PoseFromTransform(t)
	}
	avg, err := Batch(poses, opts)
	if err != nil {
		return spatialmath.Transform{}, err
	}
	return avg.Transform(), nil
}

func withoutIdentity(poses []spatialmath.Pose) []spatialmath.Pose {
	kept := make([]spatialmath.Pose, 0, len(poses))
	for _, p := range poses {
		if !p.IsIdentity() {
			kept = append(kept, p)
		}
	}
	return kept
}
