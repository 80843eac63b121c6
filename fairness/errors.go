package fairness

import "errors"

// ErrEmptyGroup is returned when a metric needs a group that has no samples.
var ErrEmptyGroup = errors.New("fairness: group has no samples")
