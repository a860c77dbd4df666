package models

import "errors"

// Errors returned by every store implementation
var (
	ErrNotFound           = errors.New("not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidID          = errors.New("invalid id")
	ErrStorageUnavailable = errors.New("storage unavailable")
)
