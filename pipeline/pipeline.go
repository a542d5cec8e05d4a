// Package pipeline wires a calibration dataset, a pose solver and a pose averager into the handlers
// an external scheduler calls as chessboard detections, triggers and object detections arrive.
package pipeline

import (
	"os"
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/posecore/calibration"
	"go.viam.com/posecore/config"
	"go.viam.com/posecore/logging"
	"go.viam.com/posecore/poseaverage"
	"go.viam.com/posecore/posesolver"
	"go.viam.com/posecore/rimage/transform"
	"go.viam.com/posecore/spatialmath"
)

// Primitives overrides the numeric primitives of a pipeline. Nil fields select the defaults.
type Primitives struct {
	Calibrator calibration.Calibrator
	PnP        posesolver.PnP
	Decomposer posesolver.ProjectionDecomposer
}

// Pipeline owns the per camera state of pose estimation. Handlers may be called from different
// goroutines.
type Pipeline struct {
	cfg      *config.Config
	logger   logging.Logger
	dataset  *calibration.Dataset
	solver   *posesolver.Solver
	averager *poseaverage.Averager

	mu    sync.Mutex
	model *transform.CameraModel
	// modelGeneration counts model changes so a pose solved under a replaced model is not averaged.
	modelGeneration uint64
}

// ErrCameraModelChanged is returned by OnObject when the camera model changed while the pose was solved.
var ErrCameraModelChanged = errors.New("camera model changed during solve")

// New builds a pipeline from cfg. When cfg names a camera model file that exists, the model is loaded.
func New(cfg *config.Config, primitives Primitives, logger logging.Logger) (*Pipeline, error) {
	if err := cfg.Validate(""); err != nil {
		return nil, err
	}
	logger.SetLevel(cfg.Level())

	calibrator := primitives.Calibrator
	if calibrator == nil {
		calibrator = calibration.DefaultCalibrator{Refine: cfg.RefineEnabled()}
	}
	pnp := primitives.PnP
	if pnp == nil {
		pnp = posesolver.DefaultPnP{Refine: cfg.RefineEnabled()}
	}

	p := &Pipeline{
		cfg:      cfg,
		logger:   logger,
		dataset:  calibration.NewDataset(cfg.Policy(), calibrator, logger.Sublogger("calibration")),
		solver:   posesolver.NewSolver(cfg.SolverOptions(), pnp, primitives.Decomposer, logger.Sublogger("solver")),
		averager: poseaverage.NewAverager(cfg.AveragerOptions(), cfg.MinSampleCount(), logger.Sublogger("average")),
	}

	if cfg.CameraModelPath != "" {
		model, err := transform.ReadCameraModelFile(cfg.CameraModelPath)
		switch {
		case err == nil:
			p.model = model
			logger.Infow("loaded camera model", "path", cfg.CameraModelPath, "size", model.ImageSize())
		case errors.Is(err, os.ErrNotExist):
			logger.Infow("no camera model yet, calibrate first", "path", cfg.CameraModelPath)
		default:
			return nil, errors.Wrapf(err, "loading camera model %q", cfg.CameraModelPath)
		}
	}
	return p, nil
}

// Config returns the pipeline config.
func (p *Pipeline) Config() *config.Config {
	return p.cfg
}

// Dataset returns the calibration dataset.
func (p *Pipeline) Dataset() *calibration.Dataset {
	return p.dataset
}

// OnChessboard registers a calibration target detection. It reports whether the collection policy kept it.
func (p *Pipeline) OnChessboard(set calibration.CorrespondenceSet, size transform.ImageSize) (bool, error) {
	return p.dataset.RegisterObservation(set, size)
}

// OnTrigger arms one shot collection.
func (p *Pipeline) OnTrigger() {
	p.dataset.Arm()
	p.logger.Debug("armed one shot collection")
}

// PerformCalibration calibrates over the collected dataset, installs the resulting camera model and
// writes it to the configured camera model path.
func (p *Pipeline) PerformCalibration() (*transform.CameraModel, error) {
	model, err := p.dataset.Calibrate()
	if err != nil {
		return nil, err
	}
	p.SetCameraModel(model)
	if path := p.cfg.CameraModelPath; path != "" {
		if err := transform.WriteCameraModelFile(path, model); err != nil {
			return model, errors.Wrapf(err, "saving camera model to %q", path)
		}
		p.logger.Infow("saved camera model", "path", path)
	}
	return model, nil
}

// SetCameraModel installs model for subsequent solves. A model that differs from the current one
// resets the pose average, since poses under different models are not comparable. It reports whether
// the model changed.
func (p *Pipeline) SetCameraModel(model *transform.CameraModel) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.model != nil && p.model.Equal(model) {
		return false
	}
	p.model = model
	p.modelGeneration++
	p.averager.Reset()
	p.logger.Debugw("camera model changed", "size", model.ImageSize())
	return true
}

// CameraModel returns the current camera model, or nil before calibration.
func (p *Pipeline) CameraModel() *transform.CameraModel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.model
}

// OnObject solves the pose of a detected object and folds it into the running average. It returns the
// single shot transform. A solve that races with a camera model change is discarded with
// ErrCameraModelChanged.
func (p *Pipeline) OnObject(set calibration.CorrespondenceSet) (spatialmath.Transform, error) {
	p.mu.Lock()
	model, generation := p.model, p.modelGeneration
	p.mu.Unlock()
	if model == nil {
		return spatialmath.Transform{}, transform.NewNoIntrinsicsError("no camera model, calibrate first")
	}
	t, err := p.solver.Solve(set, model)
	if err != nil {
		return spatialmath.Transform{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.modelGeneration != generation {
		return spatialmath.Transform{}, ErrCameraModelChanged
	}
	if !p.averager.Add(t) {
		p.logger.Debugw("pose not averaged", "count", p.averager.Count())
	}
	return t, nil
}

// Current returns the averaged object transform.
func (p *Pipeline) Current() (spatialmath.Transform, error) {
	return p.averager.Current()
}

// Stats returns the state of the running average.
func (p *Pipeline) Stats() poseaverage.Stats {
	return p.averager.Stats()
}

// ResetAverage drops every averaged pose.
func (p *Pipeline) ResetAverage() {
	p.averager.Reset()
}

// Axes projects the coordinate system of the averaged transform into the image.
func (p *Pipeline) Axes() (transform.Axes, error) {
	current, err := p.Current()
	if err != nil {
		return transform.Axes{}, err
	}
	return transform.CoordinateSystemAxes(current, p.CameraModel(), p.cfg.AxisLength)
}
