package config

import "errors"

var (
	ErrProjectIDMissing = errors.New("gcp project id is required")
	ErrLocationMissing  = errors.New("gcp location is required")
	ErrInvalidBool      = errors.New("invalid boolean value")
	ErrInvalidAuthnMode = errors.New("invalid authentication mode")
)
