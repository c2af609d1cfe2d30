package config

import "errors"

var (
	// ErrInvalidConfig marks values that parsed but failed validation.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig marks a file or environment that could not be read.
	ErrLoadConfig = errors.New("load config failed")
	// ErrWatch marks a config file that cannot be watched for changes.
	ErrWatch = errors.New("watch config failed")
)
