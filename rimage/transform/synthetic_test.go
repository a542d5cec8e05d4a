package transform

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"go.viam.com/posecore/spatialmath"
)

var testSize = ImageSize{Width: 640, Height: 480}

// testIntrinsics has its principal point at the image center, which the closed form calibration assumes.
func testIntrinsics() *PinholeCameraIntrinsics {
	return &PinholeCameraIntrinsics{
		Width:  testSize.Width,
		Height: testSize.Height,
		Fx:     800,
		Fy:     780,
		Ppx:    319.5,
		Ppy:    239.5,
	}
}

// chessboard returns the inner corners of a cols x rows board with the given square size, on z = 0.
func chessboard(cols, rows int, square float64) []r3.Vector {
	pts := make([]r3.Vector, 0, cols*rows)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			pts = append(pts, r3.Vector{X: float64(col) * square, Y: float64(row) * square})
		}
	}
	return pts
}

func project(points []r3.Vector, k mgl64.Mat3, dist DistortionCoeffs, pose spatialmath.Transform) []r2.Point {
	rot, t := pose.Split()
	out := make([]r2.Point, len(points))
	for i, p := range points {
		out[i], _ = projectPoint(k, dist, rot, t, p)
	}
	return out
}

// boardViews returns three tilted views of a 7x5 board half a meter from the camera.
func boardViews() ([]CalibrationView, []spatialmath.Transform) {
	board := chessboard(7, 5, 0.03)
	poses := []spatialmath.Transform{
		spatialmath.FromEuler(0.35, -0.2, 0.05, -0.09, -0.06, 0.55),
		spatialmath.FromEuler(-0.3, 0.25, -0.1, -0.1, -0.05, 0.6),
		spatialmath.FromEuler(0.15, 0.4, 0.3, -0.05, -0.08, 0.5),
	}
	k := testIntrinsics().Mat3()
	views := make([]CalibrationView, len(poses))
	for i, pose := range poses {
		views[i] = CalibrationView{ImagePoints: project(board, k, nil, pose), ModelPoints: board}
	}
	return views, poses
}
