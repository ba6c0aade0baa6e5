// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates the write collides with an existing record
// (for example, an email that is already registered).
var ErrConflict = errors.New("conflict: resource already exists")

// ErrValidation indicates the request failed domain validation.
// Wrap it as fmt.Errorf("%w: detail", ErrValidation) so the HTTP layer can
// strip the prefix and return the detail.
var ErrValidation = errors.New("validation failed")
