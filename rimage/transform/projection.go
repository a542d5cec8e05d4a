package transform

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/posecore/spatialmath"
)

// DefaultAxisLength is the length of the drawn coordinate system axes, in model units.
const DefaultAxisLength = 0.1

// ProjectPoints maps model points through a pose and a camera model into pixel coordinates.
// Points at or behind the camera plane come back as (-1, -1).
func ProjectPoints(points []r3.Vector, pose spatialmath.Transform, model *CameraModel) ([]r2.Point, error) {
	if err := model.CheckValid(); err != nil {
		return nil, err
	}
	k := model.K()
	rot, t := pose.Split()
	out := make([]r2.Point, len(points))
	for i, p := range points {
		out[i], _ = projectPoint(k, model.Distortion, rot, t, p)
	}
	return out, nil
}

// Axes holds the image positions of a coordinate system's origin and the ends of its X, Y and Z axes.
type Axes struct {
	Origin r2.Point
	X      r2.Point
	Y      r2.Point
	Z      r2.Point
}

// CoordinateSystemAxes projects the origin and the axis endpoints of the frame described by pose.
// A non-positive length uses DefaultAxisLength.
func CoordinateSystemAxes(pose spatialmath.Transform, model *CameraModel, length float64) (Axes, error) {
	if length <= 0 {
		length = DefaultAxisLength
	}
	pts, err := ProjectPoints([]r3.Vector{
		{},
		{X: length},
		{Y: length},
		{Z: length},
	}, pose, model)
	if err != nil {
		return Axes{}, errors.Wrap(err, "cannot project coordinate system")
	}
	return Axes{Origin: pts[0], X: pts[1], Y: pts[2], Z: pts[3]}, nil
}
