package errorest

import "errors"

var (
	// Configuration errors.
	ErrInvalidMethod    = errors.New("errorest: invalid error method")
	ErrInvalidPrecision = errors.New("errorest: precision must be positive")
	ErrNilCollaborator  = errors.New("errorest: approximator and oracle are required")

	// Query-time precondition violations. They indicate a defect in the
	// approximator and are not recoverable.
	ErrNoNeighbors            = errors.New("errorest: no neighbours found")
	ErrDimensionMismatch      = errors.New("errorest: neighbour dimensions differ")
	ErrMissingGaussianProcess = errors.New("errorest: empty Gaussian-process output")
	ErrNegativeVariance       = errors.New("errorest: negative Gaussian-process variance")

	// ErrInconsistentProxy means a zero proxy met a nonzero true error during
	// calibration: the proxy is unsound for this data.
	ErrInconsistentProxy = errors.New("errorest: zero proxy error with nonzero true error")

	ErrInvalidRange = errors.New("errorest: invalid calibration range")
)
