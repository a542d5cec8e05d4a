package transform

import (
	"gonum.org/v1/gonum/optimize"
)

// behindCameraPenalty is the cost of one point that projects at or behind the camera plane.
const behindCameraPenalty = 1e12

// minimizeNelderMead polishes x0 against f and returns the better of x0 and the optimizer's result,
// along with its cost. The optimizer never makes a solution worse.
func minimizeNelderMead(f func(x []float64) float64, x0 []float64, maxEvaluations int) ([]float64, float64) {
	initial := f(x0)
	problem := optimize.Problem{Func: f}
	settings := &optimize.Settings{
		FuncEvaluations: maxEvaluations,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-14,
			Relative:   1e-12,
			Iterations: 200,
		},
	}
	result, err := optimize.Minimize(problem, append([]float64{}, x0...), settings, &optimize.NelderMead{})
	if err != nil || result == nil || !(result.F < initial) || !finite(result.X...) {
		return x0, initial
	}
	return result.X, result.F
}
