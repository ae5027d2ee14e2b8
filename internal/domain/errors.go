package domain

import "errors"

var (
	ErrBlockNotFound          = errors.New("block not found")
	ErrTemporarilyUnavailable = errors.New("temporarily unavailable")
)
