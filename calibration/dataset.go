// Package calibration accumulates chessboard observations and turns them into a camera model.
package calibration

import (
	"sync"

	"github.com/golang/geo/r3"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/posecore/logging"
	"go.viam.com/posecore/rimage/transform"
)

// ErrEmptyDataset is returned by Calibrate when no observation has been registered.
var ErrEmptyDataset = errors.New("calibration dataset is empty")

// State describes how far a Dataset has progressed.
type State int

// Dataset states. A calibrated dataset can keep collecting and be calibrated again.
const (
	StateEmpty State = iota
	StateCollecting
	StateCalibrated
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateCollecting:
		return "collecting"
	case StateCalibrated:
		return "calibrated"
	}
	return "unknown"
}

// A Calibrator computes a camera model from a sequence of observations taken at one image size.
type Calibrator interface {
	Calibrate(observations []CorrespondenceSet, size transform.ImageSize) (*transform.CalibrationResult, error)
}

// DefaultCalibrator calibrates with transform.CalibrateCamera.
type DefaultCalibrator struct {
	Refine bool
}

// Calibrate implements Calibrator.
func (c DefaultCalibrator) Calibrate(
	observations []CorrespondenceSet,
	size transform.ImageSize,
) (*transform.CalibrationResult, error) {
	views := lo.Map(observations, func(set CorrespondenceSet, _ int) transform.CalibrationView {
		return transform.CalibrationView{ImagePoints: set.ImagePoints, ModelPoints: set.ModelPoints}
	})
	return transform.CalibrateCamera(views, size, c.Refine)
}

// Dataset is the sequence of observations collected for one camera.
type Dataset struct {
	policy     Policy
	calibrator Calibrator
	logger     logging.Logger

	mu           sync.Mutex
	observations []CorrespondenceSet
	imageSize    transform.ImageSize
	armed        bool
	calibrated   bool
	lastResult   *transform.CalibrationResult
	// generation counts Clear calls so a calibration of a cleared snapshot is not recorded.
	generation uint64
}

// NewDataset returns an empty dataset. A nil calibrator selects DefaultCalibrator with refinement.
func NewDataset(policy Policy, calibrator Calibrator, logger logging.Logger) *Dataset {
	if calibrator == nil {
		calibrator = DefaultCalibrator{Refine: true}
	}
	return &Dataset{policy: policy, calibrator: calibrator, logger: logger}
}

// Policy returns the collection policy.
func (d *Dataset) Policy() Policy {
	return d.policy
}

// Arm lets the next observation through under the one-shot policy. Arming twice before an observation
// still captures only one.
func (d *Dataset) Arm() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.armed = true
}

// Armed reports whether an arm signal is pending.
func (d *Dataset) Armed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.armed
}

// RegisterObservation appends set to the dataset if the collection policy allows it, and reports
// whether it did. The image size is recorded either way.
func (d *Dataset) RegisterObservation(set CorrespondenceSet, size transform.ImageSize) (bool, error) {
	if err := set.Validate(); err != nil {
		return false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.imageSize = size
	if d.policy == PolicyOneShot {
		if !d.armed {
			return false, nil
		}
		d.armed = false
	}
	d.observations = append(d.observations, set.Clone())
	d.logger.Debugw("registered observation", "count", len(d.observations), "points", set.Len(), "size", size)
	return true, nil
}

// Clear drops every observation. The recorded image size and last result are kept.
func (d *Dataset) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observations = nil
	d.calibrated = false
	d.generation++
}

// Calibrate runs the calibrator over a snapshot of the dataset. If the dataset is cleared while the
// calibrator runs, the model is still returned but the dataset stays uncalibrated.
func (d *Dataset) Calibrate() (*transform.CameraModel, error) {
	d.mu.Lock()
	observations := lo.Map(d.observations, func(set CorrespondenceSet, _ int) CorrespondenceSet {
		return set.Clone()
	})
	size := d.imageSize
	generation := d.generation
	d.mu.Unlock()

	if len(observations) == 0 {
		return nil, ErrEmptyDataset
	}
	result, err := d.calibrator.Calibrate(observations, size)
	if err != nil {
		return nil, errors.Wrapf(err, "calibrating %d observations", len(observations))
	}
	if spread, err := spreadOf(observations); err == nil {
		d.logger.Debugw("dataset spread", "x", spread.X, "y", spread.Y, "z", spread.Z)
	}
	d.logger.Infow("calibrated camera",
		"observations", len(observations),
		"size", size,
		"reprojection_error", result.ReprojectionError)

	d.mu.Lock()
	if d.generation == generation {
		d.calibrated = true
		d.lastResult = result
	} else {
		d.logger.Debug("dataset cleared during calibration, result not recorded")
	}
	d.mu.Unlock()

	model := result.CameraModel()
	if model.PinholeCameraIntrinsics != nil {
		model.Width, model.Height = size.Width, size.Height
	}
	return model, nil
}

// Len returns the number of observations.
func (d *Dataset) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.observations)
}

// ImageSize returns the most recently registered image size.
func (d *Dataset) ImageSize() transform.ImageSize {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.imageSize
}

// State returns the lifecycle state.
func (d *Dataset) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case d.calibrated:
		return StateCalibrated
	case len(d.observations) > 0:
		return StateCollecting
	default:
		return StateEmpty
	}
}

// LastResult returns the result of the most recent successful calibration, or nil.
func (d *Dataset) LastResult() *transform.CalibrationResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastResult
}

// Spread returns the per axis standard deviation of every model point in the dataset.
func (d *Dataset) Spread() (r3.Vector, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.observations) == 0 {
		return r3.Vector{}, ErrEmptyDataset
	}
	return spreadOf(d.observations)
}

func spreadOf(observations []CorrespondenceSet) (r3.Vector, error) {
	var xs, ys, zs []float64
	for _, set := range observations {
		for _, p := range set.ModelPoints {
			xs = append(xs, p.X)
			ys = append(ys, p.Y)
			zs = append(zs, p.Z)
		}
	}
	sx, err := stats.StandardDeviation(xs)
	if err != nil {
		return r3.Vector{}, err
	}
	sy, err := stats.StandardDeviation(ys)
	if err != nil {
		return r3.Vector{}, err
	}
	sz, err := stats.StandardDeviation(zs)
	if err != nil {
		return r3.Vector{}, err
	}
	return r3.Vector{X: sx, Y: sy, Z: sz}, nil
}
