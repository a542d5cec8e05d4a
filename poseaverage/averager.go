package poseaverage

import (
	"github.com/pkg/errors"

	"go.viam.com/posecore/logging"
	"go.viam.com/posecore/spatialmath"
)

// ErrNotEnoughSamples is returned by Averager.Current until MinSamples poses were added.
var ErrNotEnoughSamples = errors.New("not enough samples for a pose estimate")

// Averager is the stateful pose averaging component: it folds single shot transforms into a running
// statistic and withholds the estimate until enough samples arrived.
type Averager struct {
	stat       *RunningStatistic
	opts       Options
	minSamples int
	logger     logging.Logger
}

// NewAverager returns an empty averager. minSamples below one is treated as one.
func NewAverager(opts Options, minSamples int, logger logging.Logger) *Averager {
	if minSamples < 1 {
		minSamples = 1
	}
	return &Averager{
		stat:       NewRunningStatistic(opts),
		opts:       opts,
		minSamples: minSamples,
		logger:     logger,
	}
}

// MinSamples returns the number of samples needed before Current succeeds.
func (a *Averager) MinSamples() int {
	return a.minSamples
}

// Add folds a transform into the average. It returns false when the sample was dropped.
func (a *Averager) Add(t spatialmath.Transform) bool {
	p := spatialmath.PoseFromTransform(t)
	if a.opts.SkipIdentity && p.IsIdentity() {
		a.logger.Debug("dropping identity pose")
		return false
	}
	if !spatialmath.IsRotationMatrix(p.Rotation, 1e-6) {
		a.logger.Warnw("dropping pose with a non orthonormal rotation", "error", spatialmath.OrthonormalityError(p.Rotation))
		return false
	}
	a.stat.Fold(p)
	a.logger.Debugw("folded pose", "count", a.stat.Count(), "dispersion", a.stat.Dispersion())
	return true
}

// Current returns the averaged transform.
func (a *Averager) Current() (spatialmath.Transform, error) {
	est, ok := a.stat.Estimate()
	if !ok {
		return spatialmath.Transform{}, ErrNotEnoughSamples
	}
	if count := a.stat.Count(); count < a.minSamples {
		return spatialmath.Transform{}, errors.Wrapf(ErrNotEnoughSamples, "have %d of %d", count, a.minSamples)
	}
	return est.Transform(), nil
}

// Reset drops every sample.
func (a *Averager) Reset() {
	a.stat.Reset()
	a.logger.Debug("pose average reset")
}

// Count returns the number of samples folded since the last reset.
func (a *Averager) Count() int {
	return a.stat.Count()
}

// Dispersion forwards RunningStatistic.Dispersion.
func (a *Averager) Dispersion() float64 {
	return a.stat.Dispersion()
}

// Stats forwards RunningStatistic.Snapshot.
func (a *Averager) Stats() Stats {
	return a.stat.Snapshot()
}
