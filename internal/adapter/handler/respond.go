package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/technirvor/storefront/internal/core/domain"
	"github.com/technirvor/storefront/internal/core/service"
)

const msgInternal = "Internal server error"

type errorBody struct {
	Error string `json:"error"`
}

func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, errorBody{Error: msg})
}

// statusFor maps a service error to an HTTP status and client message.
// notFound names the missing resource, e.g. "Order not found".
func statusFor(err error, notFound string) (int, string) {
	var verr *service.ValidationError
	var serr *domain.StockError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Message
	case errors.As(err, &serr):
		return http.StatusBadRequest, serr.Error()
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusBadRequest, "Insufficient stock"
	case errors.Is(err, service.ErrDuplicateRequest):
		return http.StatusConflict, "Duplicate request"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, notFound
	case errors.Is(err, domain.ErrStatusConflict):
		return http.StatusConflict, "Order status was changed by another request"
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, "Already exists"
	case errors.Is(err, service.ErrLockedOut):
		return http.StatusTooManyRequests, "Too many failed attempts"
	case errors.Is(err, service.ErrInvalidLogin):
		return http.StatusUnauthorized, "Invalid email or password"
	}
	return http.StatusInternalServerError, msgInternal
}

func (h *HTTPHandler) fail(c echo.Context, err error, notFound string) error {
	status, msg := statusFor(err, notFound)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Error(err))
	}
	return fail(c, status, msg)
}

// errorHandler renders framework errors (unknown routes, bad methods) in the
// same {"error": ...} shape as handler errors.
func (h *HTTPHandler) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status, msg := http.StatusInternalServerError, msgInternal
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(status)
		}
	} else {
		h.logger.Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = fail(c, status, msg)
}
