package domain

import "errors"

var (
	ErrDecode         = errors.New("failed to decode image")
	ErrPathResolution = errors.New("failed to resolve checkpoint path")
	ErrWeightMismatch = errors.New("checkpoint does not match network architecture")
	ErrInference      = errors.New("inference failed")
	ErrOutOfMemory    = errors.New("out of memory during inference")
	ErrBusy           = errors.New("no inference slot available")
)

// IsRetryable reports whether err stems from a transient condition, such as memory pressure or all inference
// slots being taken, rather than from bad input or a broken installation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrOutOfMemory) || errors.Is(err, ErrBusy)
}
