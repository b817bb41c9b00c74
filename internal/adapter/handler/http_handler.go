package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/technirvor/storefront/internal/core/service"
	"github.com/technirvor/storefront/internal/port"
)

// Services bundles the use cases served over HTTP. Chat may be nil when no
// model is configured.
type Services struct {
	Catalog    *service.CatalogService
	Orders     *service.OrderService
	Admin      *service.AdminService
	Auth       *service.AuthService
	Chat       *service.ChatService
	Engagement *service.EngagementService
	Analytics  *service.AnalyticsService
}

type Config struct {
	APIKeys    []string
	RateLimit  int
	RateWindow time.Duration
	BodyLimit  string
}

// Pinger is a dependency checked by /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HTTPHandler struct {
	Services
	limiter port.RateLimiter
	cfg     Config
	checks  map[string]Pinger
	logger  *zap.Logger
}

func NewHTTPHandler(svc Services, limiter port.RateLimiter, cfg Config, checks map[string]Pinger, logger *zap.Logger) *HTTPHandler {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Minute
	}
	if cfg.BodyLimit == "" {
		cfg.BodyLimit = "1M"
	}
	return &HTTPHandler{Services: svc, limiter: limiter, cfg: cfg, checks: checks, logger: logger}
}

// Echo builds the router with every route registered.
func (h *HTTPHandler) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = h.errorHandler
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(h.cfg.BodyLimit))
	e.Use(h.requestLogger)

	e.GET("/health", h.HealthCheck)

	api := e.Group("/api")
	api.GET("/products", h.listProducts)
	api.GET("/products/:slug", h.getProduct)
	api.GET("/categories", h.listCategories)
	api.GET("/combos", h.listCombos)
	api.GET("/combos/:slug", h.getCombo)
	api.GET("/districts", h.listDistricts)
	api.POST("/cart/quote", h.quoteCart)
	api.POST("/coupons/validate", h.validateCoupon)
	api.POST("/chat", h.chat)
	api.POST("/messages", h.submitMessage)
	api.GET("/orders/track", h.trackOrder)
	api.POST("/auth/login", h.login)
	api.POST("/auth/register", h.register)

	api.POST("/orders", h.placeOrder, h.requireAPIKey, h.rateLimit)
	api.GET("/orders", h.listOrders, h.requireAPIKey, h.rateLimit)

	me := api.Group("/me", h.requireJWT())
	me.GET("/notifications", h.myNotifications)
	me.POST("/notifications/read-all", h.markAllRead)
	me.POST("/notifications/:id/read", h.markRead)
	me.GET("/rewards", h.myRewards)

	h.registerAdminRoutes(api.Group("/admin", h.requireJWT(), requireAdmin))
	return e
}

func (h *HTTPHandler) HealthCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok"}
	code := http.StatusOK
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			h.logger.Warn("health check failed", zap.String("dependency", name), zap.Error(err))
			status[name] = "down"
			status["status"] = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		status[name] = "ok"
	}
	return c.JSON(code, status)
}

func badBody(c echo.Context) error {
	return fail(c, http.StatusBadRequest, "Invalid request body")
}

func queryInt(c echo.Context, name string) int {
	n, _ := strconv.Atoi(c.QueryParam(name))
	return n
}

func queryBool(c echo.Context, name string) bool {
	v, _ := strconv.ParseBool(strings.TrimSpace(c.QueryParam(name)))
	return v
}
