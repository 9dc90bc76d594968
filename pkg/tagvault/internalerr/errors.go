package internalerr

import "errors"

// Sentinel errors shared across tagvault packages
var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrClassification = errors.New("classification failed")
	ErrStorage        = errors.New("storage error")
	ErrInvalidConfig  = errors.New("invalid configuration")
)
