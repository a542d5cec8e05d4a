package pipeline

import (
	"github.com/pkg/errors"

	"go.viam.com/posecore/spatialmath"
)

// Commands accepted by DoCommand under the "command" key.
const (
	CommandTrigger   = "trigger"
	CommandCalibrate = "calibrate"
	CommandClear     = "clear"
	CommandReset     = "reset"
	CommandCurrent   = "current"
	CommandStatus    = "status"
)

// DoCommand runs a named pipeline operation for callers that only speak generic maps.
func (p *Pipeline) DoCommand(cmd map[string]interface{}) (map[string]interface{}, error) {
	p.logger.Debugf("DoCommand: %+v", cmd)
	name, ok := cmd["command"].(string)
	if !ok {
		return nil, errors.New(`missing string field "command"`)
	}
	switch name {
	case CommandTrigger:
		p.OnTrigger()
		return map[string]interface{}{"armed": true}, nil
	case CommandCalibrate:
		model, err := p.PerformCalibration()
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"fx":                 model.Fx,
			"fy":                 model.Fy,
			"ppx":                model.Ppx,
			"ppy":                model.Ppy,
			"distortion":         []float64(model.Distortion),
			"reprojection_error": model.ReprojectionError,
		}, nil
	case CommandClear:
		p.dataset.Clear()
		return map[string]interface{}{"observations": 0}, nil
	case CommandReset:
		p.ResetAverage()
		return map[string]interface{}{"samples": 0}, nil
	case CommandCurrent:
		current, err := p.Current()
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"transform": transformRows(current),
			"samples":   p.averager.Count(),
		}, nil
	case CommandStatus:
		return map[string]interface{}{
			"dataset_state": p.dataset.State().String(),
			"observations":  p.dataset.Len(),
			"armed":         p.dataset.Armed(),
			"calibrated":    p.CameraModel() != nil,
			"samples":       p.averager.Count(),
			"dispersion":    p.averager.Dispersion(),
		}, nil
	}
	return nil, errors.Errorf("unknown command %q", name)
}

func transformRows(t spatialmath.Transform) [][]float64 {
	m := t.Matrix()
	rows := make([][]float64, 4)
	for r := range rows {
		rows[r] = []float64{m.At(r, 0), m.At(r, 1), m.At(r, 2), m.At(r, 3)}
	}
	return rows
}
