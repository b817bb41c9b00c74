package handler

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"
	"time"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/technirvor/storefront/internal/core/domain"
	"github.com/technirvor/storefront/internal/core/service"
)

const (
	headerAPIKey      = "x-api-key"
	headerIdempotency = "Idempotency-Key"
	claimsKey         = "user"
)

// requireAPIKey accepts requests whose x-api-key matches a configured key.
func (h *HTTPHandler) requireAPIKey(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !validAPIKey(h.cfg.APIKeys, c.Request().Header.Get(headerAPIKey)) {
			return fail(c, http.StatusUnauthorized, "Invalid API key")
		}
		return next(c)
	}
}

func validAPIKey(keys []string, got string) bool {
	if got == "" {
		return false
	}
	matched := false
	for _, k := range keys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(got)) == 1 {
			matched = true
		}
	}
	return matched
}

// rateLimit counts requests per client in a shared fixed window. A limiter
// outage lets the request through.
func (h *HTTPHandler) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		key := "orders:" + clientID(c.Request())
		allowed, err := h.limiter.Allow(c.Request().Context(), key, h.cfg.RateLimit, h.cfg.RateWindow)
		if err != nil {
			h.logger.Warn("rate limiter unavailable", zap.Error(err))
			return next(c)
		}
		if !allowed {
			return fail(c, http.StatusTooManyRequests, "Too many requests")
		}
		return next(c)
	}
}

// clientID is the first x-forwarded-for hop, else the peer address.
func clientID(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// requireJWT validates bearer tokens with the auth service and stores the
// claims under claimsKey.
func (h *HTTPHandler) requireJWT() echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey: claimsKey,
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			return h.Auth.ParseToken(token)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return fail(c, http.StatusUnauthorized, "Unauthorized")
		},
	})
}

func requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims := currentClaims(c)
		if claims == nil || claims.Role != domain.RoleAdmin {
			return fail(c, http.StatusForbidden, "Admin access required")
		}
		return next(c)
	}
}

func currentClaims(c echo.Context) *service.Claims {
	claims, _ := c.Get(claimsKey).(*service.Claims)
	return claims
}

// requestLogger logs one line per request.
func (h *HTTPHandler) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		h.logger.Debug("http request",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().Status),
			zap.Duration("took", time.Since(start)))
		return nil
	}
}
