package optimizer

import "errors"

// ErrSizeMismatch is returned when a parameter or gradient vector does not
// match the size the optimizer was created with.
var ErrSizeMismatch = errors.New("optimizer: size mismatch")
