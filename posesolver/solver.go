// Package posesolver turns a set of model to image correspondences into the homogeneous transform of
// the observed object in the camera frame.
package posesolver

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/posecore/calibration"
	"go.viam.com/posecore/logging"
	"go.viam.com/posecore/rimage/transform"
	"go.viam.com/posecore/spatialmath"
)

// MinCorrespondences is the fewest correspondences Solve accepts.
const MinCorrespondences = 4

// ErrTooFewCorrespondences is returned when a set has fewer than MinCorrespondences entries.
var ErrTooFewCorrespondences = errors.New("too few correspondences")

// PnP recovers the rotation vector and translation of a model in the camera frame.
type PnP interface {
	SolvePnP(modelPoints []r3.Vector, imagePoints []r2.Point, k mgl64.Mat3, dist transform.DistortionCoeffs) (
		rvec, tvec r3.Vector, err error)
}

// ProjectionDecomposer splits a 3x4 projection matrix into intrinsics, rotation and translation.
type ProjectionDecomposer interface {
	DecomposeProjectionMatrix(p mat.Matrix) (k, rot mgl64.Mat3, t r3.Vector, err error)
}

// DefaultPnP solves with transform.SolvePnP.
type DefaultPnP struct {
	Refine bool
}

// SolvePnP implements PnP.
func (s DefaultPnP) SolvePnP(
	modelPoints []r3.Vector,
	imagePoints []r2.Point,
	k mgl64.Mat3,
	dist transform.DistortionCoeffs,
) (r3.Vector, r3.Vector, error) {
	return transform.SolvePnP(modelPoints, imagePoints, k, dist, s.Refine)
}

// DefaultDecomposer decomposes with transform.DecomposeProjectionMatrix.
type DefaultDecomposer struct{}

// DecomposeProjectionMatrix implements ProjectionDecomposer.
func (DefaultDecomposer) DecomposeProjectionMatrix(p mat.Matrix) (mgl64.Mat3, mgl64.Mat3, r3.Vector, error) {
	return transform.DecomposeProjectionMatrix(p)
}

// Options configures a Solver.
type Options struct {
	// Rectified selects the projection matrix of the camera model instead of its intrinsics and
	// distortion. Images must already be rectified.
	Rectified bool
	// Offset is applied in the object's frame: result = pose * Offset. The zero value is identity.
	Offset spatialmath.Transform
	// ModelShiftX and ModelShiftY are added to every model point before solving.
	ModelShiftX float64
	ModelShiftY float64
}

// Detail is the full output of a solve.
type Detail struct {
	RotationVector    r3.Vector
	TranslationVector r3.Vector
	// Pose is the object pose in the camera frame before the offset is applied.
	Pose      spatialmath.Transform
	Transform spatialmath.Transform
}

// Solver computes object poses from correspondences. It holds no per solve state.
type Solver struct {
	opts       Options
	pnp        PnP
	decomposer ProjectionDecomposer
	logger     logging.Logger
}

// NewSolver returns a solver using the given primitives. Nil primitives select the defaults.
func NewSolver(opts Options, pnp PnP, decomposer ProjectionDecomposer, logger logging.Logger) *Solver {
	if pnp == nil {
		pnp = DefaultPnP{Refine: true}
	}
	if decomposer == nil {
		decomposer = DefaultDecomposer{}
	}
	return &Solver{opts: opts, pnp: pnp, decomposer: decomposer, logger: logger}
}

// Options returns the solver options.
func (s *Solver) Options() Options {
	return s.opts
}

// Solve returns the offset pose of the object observed by set.
func (s *Solver) Solve(set calibration.CorrespondenceSet, model *transform.CameraModel) (spatialmath.Transform, error) {
	detail, err := s.SolveWithDetail(set, model)
	if err != nil {
		return spatialmath.Transform{}, err
	}
	return detail.Transform, nil
}

// SolveWithDetail is Solve but also returns the raw PnP output and the pose before the offset.
func (s *Solver) SolveWithDetail(set calibration.CorrespondenceSet, model *transform.CameraModel) (*Detail, error) {
	if set.Len() < MinCorrespondences || len(set.ModelPoints) < MinCorrespondences {
		return nil, errors.Wrapf(ErrTooFewCorrespondences, "have %d, need %d", set.Len(), MinCorrespondences)
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	if err := model.CheckValid(); err != nil {
		return nil, err
	}
	modelPoints := set.ModelPoints
	if s.opts.ModelShiftX != 0 || s.opts.ModelShiftY != 0 {
		shift := r3.Vector{X: s.opts.ModelShiftX, Y: s.opts.ModelShiftY}
		modelPoints = lo.Map(modelPoints, func(p r3.Vector, _ int) r3.Vector { return p.Add(shift) })
	}

	var detail Detail
	var err error
	if s.opts.Rectified {
		err = s.solveRectified(&detail, modelPoints, set.ImagePoints, model)
	} else {
		err = s.solveUnrectified(&detail, modelPoints, set.ImagePoints, model)
	}
	if err != nil {
		return nil, err
	}
	detail.Transform = spatialmath.Compose(detail.Pose, s.opts.Offset)
	s.logger.Debugw("solved pose",
		"rectified", s.opts.Rectified,
		"rvec", detail.RotationVector,
		"tvec", detail.TranslationVector,
		"translation", detail.Transform.Translation())
	return &detail, nil
}

func (s *Solver) solveUnrectified(detail *Detail, modelPoints []r3.Vector, imagePoints []r2.Point, model *transform.CameraModel) error {
	rvec, tvec, err := s.pnp.SolvePnP(modelPoints, imagePoints, model.K(), model.Distortion)
	if err != nil {
		return errors.Wrap(err, "solving pnp")
	}
	detail.RotationVector, detail.TranslationVector = rvec, tvec
	detail.Pose = spatialmath.NewPoseFromRotationVector(rvec, tvec).Transform()
	return nil
}

// solveRectified solves against the intrinsics of the projection matrix with zero distortion, then moves
// the result through the rotation and translation the projection matrix carries.
func (s *Solver) solveRectified(detail *Detail, modelPoints []r3.Vector, imagePoints []r2.Point, model *transform.CameraModel) error {
	if model.Projection == nil {
		return errors.New("rectified solve needs a camera model with a projection matrix")
	}
	k, rd, td, err := s.decomposer.DecomposeProjectionMatrix(model.Projection)
	if err != nil {
		return errors.Wrap(err, "decomposing projection matrix")
	}
	rvec, tvec, err := s.pnp.SolvePnP(modelPoints, imagePoints, k, nil)
	if err != nil {
		return errors.Wrap(err, "solving pnp")
	}
	detail.RotationVector, detail.TranslationVector = rvec, tvec

	rot := rd.Mul3(spatialmath.MatrixFromAxisAngle(rvec))
	t := rd.Mul3x1(mgl64.Vec3{tvec.X, tvec.Y, tvec.Z})
	detail.Pose = spatialmath.FromRotationTranslation(rot, r3.Vector{X: t[0], Y: t[1], Z: t[2]}.Add(td))
	return nil
}
