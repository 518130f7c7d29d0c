package model

import "errors"

// ErrNotFound is returned by remote stores when a record no longer exists.
var ErrNotFound = errors.New("record not found")
