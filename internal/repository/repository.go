package repository

import "github.com/pkg/errors"

// ErrNotFound is returned when a lookup by id or name matches nothing.
var ErrNotFound = errors.New("not found")
