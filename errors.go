package debias

import "errors"

// Sentinel errors for the debias package.
// Use errors.Is to check: errors.Is(err, debias.ErrNotFitted)
var (
	ErrShapeMismatch      = errors.New("debias: shape mismatch")
	ErrNotFitted          = errors.New("debias: trainer is not fitted")
	ErrNumericInstability = errors.New("debias: numeric instability")
	ErrInvalidConfig      = errors.New("debias: invalid config")
	ErrEmptyDataset       = errors.New("debias: empty dataset")
	ErrInvalidSample      = errors.New("debias: invalid sample")
	ErrAlreadyFitted      = errors.New("debias: trainer already fitted")
)
