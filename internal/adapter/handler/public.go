package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/technirvor/storefront/internal/core/domain"
	"github.com/technirvor/storefront/internal/core/service"
)

func (h *HTTPHandler) listProducts(c echo.Context) error {
	page, err := h.Catalog.ListProducts(c.Request().Context(), service.ProductQuery{
		Category:  strings.TrimSpace(c.QueryParam("category")),
		Search:    strings.TrimSpace(c.QueryParam("search")),
		Featured:  queryBool(c, "featured"),
		FlashSale: queryBool(c, "flash_sale"),
		Page:      queryInt(c, "page"),
		Limit:     queryInt(c, "limit"),
	})
	if err != nil {
		return h.fail(c, err, "Not found")
	}
	return c.JSON(http.StatusOK, page)
}

func (h *HTTPHandler) getProduct(c echo.Context) error {
	p, err := h.Catalog.GetProduct(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return h.fail(c, err, "Product not found")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *HTTPHandler) listCategories(c echo.Context) error {
	categories, err := h.Catalog.ListCategories(c.Request().Context())
	if err != nil {
		return h.fail(c, err, "Not found")
	}
	return c.JSON(http.StatusOK, categories)
}

func (h *HTTPHandler) listCombos(c echo.Context) error {
	combos, err := h.Catalog.ListCombos(c.Request().Context(), true)
	if err != nil {
		return h.fail(c, err, "Not found")
	}
	return c.JSON(http.StatusOK, combos)
}

func (h *HTTPHandler) getCombo(c echo.Context) error {
	combo, err := h.Catalog.GetCombo(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return h.fail(c, err, "Combo not found")
	}
	return c.JSON(http.StatusOK, combo)
}

func (h *HTTPHandler) listDistricts(c echo.Context) error {
	districts, err := h.Catalog.ListDistricts(c.Request().Context())
	if err != nil {
		return h.fail(c, err, "Not found")
	}
	return c.JSON(http.StatusOK, districts)
}

func (h *HTTPHandler) quoteCart(c echo.Context) error {
	var req service.QuoteRequest
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	quote, err := h.Catalog.Quote(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, err, "Not found")
	}
	return c.JSON(http.StatusOK, quote)
}

type couponCheckRequest struct {
	Code     string       `json:"code"`
	Subtotal domain.Money `json:"subtotal"`
}

func (h *HTTPHandler) validateCoupon(c echo.Context) error {
	var req couponCheckRequest
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	check, err := h.Catalog.ValidateCoupon(c.Request().Context(), req.Code, req.Subtotal)
	if err != nil {
		return h.fail(c, err, "Coupon not found")
	}
	return c.JSON(http.StatusOK, check)
}

func (h *HTTPHandler) chat(c echo.Context) error {
	if h.Chat == nil {
		return fail(c, http.StatusServiceUnavailable, "Chat assistant is not configured")
	}
	var req service.ChatRequest
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	resp, err := h.Chat.Reply(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, err, "Not found")
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *HTTPHandler) submitMessage(c echo.Context) error {
	var req service.MessageInput
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	msg, err := h.Engagement.SubmitMessage(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, err, "Not found")
	}
	return c.JSON(http.StatusCreated, map[string]any{"success": true, "message": msg})
}

func (h *HTTPHandler) trackOrder(c echo.Context) error {
	number := strings.TrimSpace(c.QueryParam("order_number"))
	phone := strings.TrimSpace(c.QueryParam("phone"))
	if number == "" || phone == "" {
		return fail(c, http.StatusBadRequest, "Order number and phone are required")
	}
	detail, err := h.Orders.TrackOrder(c.Request().Context(), number, phone)
	if err != nil {
		return h.fail(c, err, "Order not found")
	}
	return c.JSON(http.StatusOK, detail)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *HTTPHandler) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return fail(c, http.StatusBadRequest, "Email and password are required")
	}
	res, err := h.Auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return h.fail(c, err, "Not found")
	}
	return c.JSON(http.StatusOK, res)
}

func (h *HTTPHandler) register(c echo.Context) error {
	var req service.RegisterInput
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	user, err := h.Auth.Register(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, err, "Not found")
	}
	return c.JSON(http.StatusCreated, user)
}

func (h *HTTPHandler) myNotifications(c echo.Context) error {
	feed, err := h.Engagement.Notifications(c.Request().Context(), currentClaims(c).Subject, queryInt(c, "limit"))
	if err != nil {
		return h.fail(c, err, "Not found")
	}
	return c.JSON(http.StatusOK, feed)
}

func (h *HTTPHandler) markRead(c echo.Context) error {
	if err := h.Engagement.MarkRead(c.Request().Context(), currentClaims(c).Subject, c.Param("id")); err != nil {
		return h.fail(c, err, "Notification not found")
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

func (h *HTTPHandler) markAllRead(c echo.Context) error {
	n, err := h.Engagement.MarkAllRead(c.Request().Context(), currentClaims(c).Subject)
	if err != nil {
		return h.fail(c, err, "Not found")
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "updated": n})
}

func (h *HTTPHandler) myRewards(c echo.Context) error {
	summary, err := h.Engagement.Rewards(c.Request().Context(), currentClaims(c).Subject)
	if err != nil {
		return h.fail(c, err, "Not found")
	}
	return c.JSON(http.StatusOK, summary)
}
