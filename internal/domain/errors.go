package domain

import "errors"

// ErrNotFound indicates the referenced user, product, or recommendation does
// not exist. It is surfaced to callers and never retried.
var ErrNotFound = errors.New("not found")

// ErrValidation indicates a malformed record or request; the offending item
// is dropped and batch processing continues.
var ErrValidation = errors.New("validation failed")
