// Package config defines the configuration of a posecore pipeline.
package config

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/posecore/calibration"
	"go.viam.com/posecore/homogprovider"
	"go.viam.com/posecore/logging"
	"go.viam.com/posecore/poseaverage"
	"go.viam.com/posecore/posesolver"
	"go.viam.com/posecore/spatialmath"
)

// Config holds the scalar parameters of a pipeline. Angles are radians unless Offset.Degrees is set.
type Config struct {
	// Offset is applied to every solved pose in the object's frame.
	Offset           homogprovider.Config `json:"offset"`
	CollectionPolicy string               `json:"collection_policy"`
	Rectified        bool                 `json:"rectified"`
	Precision        string               `json:"precision"`
	// SingleSampleShortcut and Refine default to true when unset.
	SingleSampleShortcut *bool   `json:"single_sample_shortcut,omitempty"`
	SkipIdentity         bool    `json:"skip_identity"`
	MinSamples           int     `json:"min_samples"`
	Refine               *bool   `json:"refine,omitempty"`
	ModelShiftX          float64 `json:"model_shift_x"`
	ModelShiftY          float64 `json:"model_shift_y"`
	AxisLength           float64 `json:"axis_length"`
	CameraModelPath      string  `json:"camera_model_path"`
	LogLevel             string  `json:"log_level"`

	ConfigFilePath string `json:"-"`
}

// Validate returns every problem with the config, prefixing field paths with path.
func (c *Config) Validate(path string) error {
	var errs error
	errs = multierr.Append(errs, c.Offset.Validate(joinPath(path, "offset")))
	if _, err := calibration.ParsePolicy(c.CollectionPolicy); err != nil {
		errs = multierr.Append(errs, NewConfigValidationError(joinPath(path, "collection_policy"), err))
	}
	if _, err := spatialmath.ParsePrecision(c.Precision); err != nil {
		errs = multierr.Append(errs, NewConfigValidationError(joinPath(path, "precision"), err))
	}
	if _, err := logging.LevelFromString(c.LogLevel); err != nil {
		errs = multierr.Append(errs, NewConfigValidationError(joinPath(path, "log_level"), err))
	}
	if c.MinSamples < 0 {
		errs = multierr.Append(errs, NewConfigValidationError(joinPath(path, "min_samples"),
			errors.Errorf("must not be negative, got %d", c.MinSamples)))
	}
	if c.AxisLength < 0 {
		errs = multierr.Append(errs, NewConfigValidationError(joinPath(path, "axis_length"),
			errors.Errorf("must not be negative, got %v", c.AxisLength)))
	}
	return errs
}

// Policy returns the parsed collection policy.
func (c *Config) Policy() calibration.Policy {
	policy, err := calibration.ParsePolicy(c.CollectionPolicy)
	if err != nil {
		return calibration.PolicyContinuous
	}
	return policy
}

// Level returns the parsed log level.
func (c *Config) Level() logging.Level {
	level, err := logging.LevelFromString(c.LogLevel)
	if err != nil {
		return logging.INFO
	}
	return level
}

// RefineEnabled reports whether the pose and calibration primitives refine their linear estimates.
func (c *Config) RefineEnabled() bool {
	return c.Refine == nil || *c.Refine
}

// AveragerOptions returns the options of the pose averager.
func (c *Config) AveragerOptions() poseaverage.Options {
	opts := poseaverage.DefaultOptions()
	if prec, err := spatialmath.ParsePrecision(c.Precision); err == nil {
		opts.Precision = prec
	}
	if c.SingleSampleShortcut != nil {
		opts.SingleSampleShortcut = *c.SingleSampleShortcut
	}
	opts.SkipIdentity = c.SkipIdentity
	return opts
}

// SolverOptions returns the options of the pose solver.
func (c *Config) SolverOptions() posesolver.Options {
	return posesolver.Options{
		Rectified:   c.Rectified,
		Offset:      c.Offset.Transform(),
		ModelShiftX: c.ModelShiftX,
		ModelShiftY: c.ModelShiftY,
	}
}

// MinSampleCount returns the number of poses the averager needs before it reports an estimate.
func (c *Config) MinSampleCount() int {
	if c.MinSamples < 1 {
		return 1
	}
	return c.MinSamples
}
