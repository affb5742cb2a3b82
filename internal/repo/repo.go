package repo

import "errors"

// ErrNotFound is returned when a point query matches no row.
var ErrNotFound = errors.New("not found")
