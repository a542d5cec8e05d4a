// Package homogprovider builds fixed homogeneous transforms from a translation and roll, pitch, yaw
// angles, for offsets that are known up front instead of solved for.
package homogprovider

import (
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/posecore/spatialmath"
	"go.viam.com/posecore/utils"
)

// Build returns the transform translating by (x, y, z) after rotating by yaw about Z, pitch about Y
// and roll about X. Angles are in radians.
func Build(x, y, z, roll, pitch, yaw float64) spatialmath.Transform {
	return spatialmath.FromEuler(roll, pitch, yaw, x, y, z)
}

// Config describes one fixed transform.
type Config struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
	// Degrees marks Roll, Pitch and Yaw as degrees.
	Degrees bool `json:"degrees,omitempty"`
}

// FromAttributes decodes a Config from a generic attribute map.
func FromAttributes(attributes map[string]interface{}) (Config, error) {
	var conf Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &conf,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return Config{}, err
	}
	if err := decoder.Decode(attributes); err != nil {
		return Config{}, errors.Wrap(err, "decoding transform attributes")
	}
	return conf, nil
}

// Validate checks that every value is finite.
func (c Config) Validate(path string) error {
	var errs error
	for _, field := range []struct {
		name  string
		value float64
	}{
		{"x", c.X}, {"y", c.Y}, {"z", c.Z},
		{"roll", c.Roll}, {"pitch", c.Pitch}, {"yaw", c.Yaw},
	} {
		if !utils.IsFinite(field.value) {
			errs = multierr.Append(errs, errors.Errorf("%s.%s: must be finite, got %v", path, field.name, field.value))
		}
	}
	return errs
}

// Angles returns roll, pitch and yaw in radians.
func (c Config) Angles() (float64, float64, float64) {
	if c.Degrees {
		return utils.DegToRad(c.Roll), utils.DegToRad(c.Pitch), utils.DegToRad(c.Yaw)
	}
	return c.Roll, c.Pitch, c.Yaw
}

// Transform builds the configured transform.
func (c Config) Transform() spatialmath.Transform {
	roll, pitch, yaw := c.Angles()
	return Build(c.X, c.Y, c.Z, roll, pitch, yaw)
}

// IsZero reports whether the config describes the identity.
func (c Config) IsZero() bool {
	return c.X == 0 && c.Y == 0 && c.Z == 0 && c.Roll == 0 && c.Pitch == 0 && c.Yaw == 0
}
