package repo

import "errors"

// ErrNotFound is returned by lookups when no matching row exists.
var ErrNotFound = errors.New("not found")
