package config

import (
	"github.com/pkg/errors"
)

// NewConfigValidationError returns an error specifying a problem with the config at path.
func NewConfigValidationError(path string, err error) error {
	return errors.Wrapf(err, "error validating %q", path)
}

func joinPath(path, field string) string {
	if path == "" {
		return field
	}
	return path + "." + field
}
