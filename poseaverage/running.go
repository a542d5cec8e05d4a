package poseaverage

import (
	"math"
	"sync"

	"github.com/golang/geo/r3"

	"go.viam.com/posecore/spatialmath"
)

// Stats is a copy of a RunningStatistic's state.
type Stats struct {
	Count                 int
	CumulativeAngle       float64
	CumulativeAxis        r3.Vector
	CumulativeTranslation r3.Vector
	MeanAngle             float64
	LastAngle             float64
}

// RunningStatistic is an incrementally updated pose average. Folding a sequence into a reset
// statistic produces the same estimate as Batch over that sequence. It is safe for concurrent use.
type RunningStatistic struct {
	mu        sync.Mutex
	opts      Options
	sums      sums
	lastAngle float64
	current   spatialmath.Pose
}

// NewRunningStatistic returns an empty statistic. SkipIdentity is not applied by the statistic itself.
func NewRunningStatistic(opts Options) *RunningStatistic {
	return &RunningStatistic{opts: opts}
}

// Reset zeroes every cumulative field.
func (rs *RunningStatistic) Reset() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.sums = sums{}
	rs.lastAngle = 0
	rs.current = spatialmath.Pose{}
}

// Fold adds a sample and returns the updated estimate.
func (rs *RunningStatistic) Fold(p spatialmath.Pose) spatialmath.Pose {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	prec := rs.opts.Precision
	smp := newSample(p, prec)
	rs.sums.add(smp, prec)
	rs.lastAngle = smp.angle
	if rs.sums.count == 1 && rs.opts.SingleSampleShortcut {
		rs.current = p
	} else {
		rs.current = rs.sums.estimate(prec)
	}
	return rs.current
}

// Estimate returns the current average, and false when nothing has been folded since the last reset.
func (rs *RunningStatistic) Estimate() (spatialmath.Pose, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.current, rs.sums.count > 0
}

// Count returns the number of samples folded since the last reset.
func (rs *RunningStatistic) Count() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.sums.count
}

// Dispersion is |mean angle - last sample angle|, a coarse stability indicator and not a variance.
func (rs *RunningStatistic) Dispersion() float64 {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.sums.count == 0 {
		return 0
	}
	return math.Abs(rs.sums.meanAngle(rs.opts.Precision) - rs.lastAngle)
}

// Snapshot copies the state.
func (rs *RunningStatistic) Snapshot() Stats {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	st := Stats{
		Count:                 rs.sums.count,
		CumulativeAngle:       rs.sums.angle,
		CumulativeAxis:        rs.sums.axis,
		CumulativeTranslation: rs.sums.translation,
		LastAngle:             rs.lastAngle,
	}
	if st.Count > 0 {
		st.MeanAngle = rs.sums.meanAngle(rs.opts.Precision)
	}
	return st
}
