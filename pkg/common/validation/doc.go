// Package validation provides common validation utilities for configuration
// parameters across sendgate.
//
// The helpers return *errors.ValidationError values so that every
// constructor reports bad input the same way and callers can match it with
// errors.Is(err, errors.ErrInvalidConfiguration).
package validation
