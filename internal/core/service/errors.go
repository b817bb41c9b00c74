package service

import (
	"errors"

	"github.com/technirvor/storefront/internal/core/domain"
)

var (
	ErrDuplicateRequest  = errors.New("duplicate request")
	ErrInsufficientStock = domain.ErrInsufficientStock
	ErrNotFound          = domain.ErrNotFound
	ErrConflict          = errors.New("already exists")
	ErrInvalidLogin      = errors.New("invalid email or password")
	ErrLockedOut         = errors.New("too many failed attempts")
)

// ValidationError is a client-fixable problem; Message is shown verbatim.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// clampPage normalizes page and limit query values.
func clampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

func newPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}
