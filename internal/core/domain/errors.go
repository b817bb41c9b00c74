package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrDuplicateKey      = errors.New("duplicate key")
	ErrStatusConflict    = errors.New("order status changed concurrently")
	ErrLockConflict      = errors.New("transaction aborted by lock contention")
	ErrCouponUnavailable = errors.New("coupon is no longer available")
	ErrModelOverloaded   = errors.New("model overloaded")
)
