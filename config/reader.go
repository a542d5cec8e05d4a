package config

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"

	"go.viam.com/posecore/logging"
)

// Read reads a config from the given file, expanding environment variables first.
func Read(filePath string, logger logging.Logger) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return FromReader(filePath, bytes.NewReader(buf), logger)
}

// FromReader reads a config from the given reader and specifies
// where, if applicable, the file the reader originated from.
func FromReader(originalPath string, r io.Reader, logger logging.Logger) (*Config, error) {
	cfg := Config{ConfigFilePath: originalPath}
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode Config from json")
	}
	if err := cfg.Validate(""); err != nil {
		return nil, err
	}
	logger.Debugw("read config", "path", originalPath, "policy", cfg.Policy(), "rectified", cfg.Rectified)
	return &cfg, nil
}

// FromAttributes builds a config from the attribute map of an enclosing framework.
func FromAttributes(attributes AttributeMap) (*Config, error) {
	cfg, err := TransformAttributeMap[*Config](attributes)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(""); err != nil {
		return nil, err
	}
	return cfg, nil
}
