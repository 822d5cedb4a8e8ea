package repository

import "errors"

var (
	ErrNotFound = errors.New("document not found")
	// ErrInsufficientStock is returned when a conditional stock decrement finds less stock than requested.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrStatusConflict is returned when an order's status changed between read and write.
	ErrStatusConflict = errors.New("order status changed concurrently")
	ErrDuplicate      = errors.New("duplicate key")
)
