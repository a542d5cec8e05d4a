package calibration

import (
	"math"
	"strings"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// CorrespondenceSet pairs detected image points with the model points they observe, index for index.
type CorrespondenceSet struct {
	ImagePoints []r2.Point  `json:"image_points"`
	ModelPoints []r3.Vector `json:"model_points"`
}

// Len returns the number of correspondences.
func (s CorrespondenceSet) Len() int {
	return len(s.ImagePoints)
}

// Validate checks that the set is non-empty, paired, and finite.
func (s CorrespondenceSet) Validate() error {
	if len(s.ImagePoints) != len(s.ModelPoints) {
		return errors.Errorf("correspondence set has %d image points and %d model points",
			len(s.ImagePoints), len(s.ModelPoints))
	}
	if len(s.ImagePoints) == 0 {
		return errors.New("correspondence set is empty")
	}
	for i, p := range s.ImagePoints {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return errors.Errorf("image point %d is not finite", i)
		}
	}
	for i, p := range s.ModelPoints {
		if math.IsNaN(p.Norm2()) || math.IsInf(p.Norm2(), 0) {
			return errors.Errorf("model point %d is not finite", i)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (s CorrespondenceSet) Clone() CorrespondenceSet {
	return CorrespondenceSet{
		ImagePoints: append([]r2.Point(nil), s.ImagePoints...),
		ModelPoints: append([]r3.Vector(nil), s.ModelPoints...),
	}
}

// Policy decides which delivered correspondence sets a Dataset keeps.
type Policy string

const (
	// PolicyContinuous keeps every set.
	PolicyContinuous Policy = "continuous"
	// PolicyOneShot keeps one set per Arm.
	PolicyOneShot Policy = "one_shot"
)

// ParsePolicy parses a policy name. The empty string selects PolicyContinuous.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.ReplaceAll(s, "-", "_")) {
	case "", string(PolicyContinuous):
		return PolicyContinuous, nil
	case string(PolicyOneShot), "oneshot":
		return PolicyOneShot, nil
	}
	return "", errors.Errorf("unknown collection policy %q", s)
}
