package transform

const (
	undistortMaxIterations = 20
	undistortTolerance     = 1e-12
	jacobianStep           = 1e-7
)

// Undistort inverts Distort: given a distorted normalized image point it finds the undistorted point
// that would produce it, using Newton-Raphson iterations on the forward model.
func (d DistortionCoeffs) Undistort(xd, yd float64) (float64, float64) {
	if d.IsZero() {
		return xd, yd
	}

	// the distorted point is the initial guess
	xu, yu := xd, yd
	for i := 0; i < undistortMaxIterations; i++ {
		xdEst, ydEst := d.Distort(xu, yu)
		errX := xdEst - xd
		errY := ydEst - yd
		if errX*errX+errY*errY < undistortTolerance*undistortTolerance {
			break
		}

		// J = [[dxd/dxu, dxd/dyu], [dyd/dxu, dyd/dyu]] by central differences
		xp, yp := d.Distort(xu+jacobianStep, yu)
		xm, ym := d.Distort(xu-jacobianStep, yu)
		dxdDxu := (xp - xm) / (2 * jacobianStep)
		dydDxu := (yp - ym) / (2 * jacobianStep)
		xp, yp = d.Distort(xu, yu+jacobianStep)
		xm, ym = d.Distort(xu, yu-jacobianStep)
		dxdDyu := (xp - xm) / (2 * jacobianStep)
		dydDyu := (yp - ym) / (2 * jacobianStep)

		det := dxdDxu*dydDyu - dxdDyu*dydDxu
		if det == 0 {
			break
		}
		// [xu, yu] -= J^-1 * [errX, errY]
		xu -= (dydDyu*errX - dxdDyu*errY) / det
		yu -= (-dydDxu*errX + dxdDxu*errY) / det
	}
	return xu, yu
}
