package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/technirvor/storefront/internal/core/domain"
	"github.com/technirvor/storefront/internal/core/service"
)

type placeOrderResponse struct {
	Success bool          `json:"success"`
	Order   *domain.Order `json:"order"`
}

func (h *HTTPHandler) placeOrder(c echo.Context) error {
	var req service.PlaceOrderRequest
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	key := strings.TrimSpace(c.Request().Header.Get(headerIdempotency))

	order, err := h.Orders.PlaceOrder(c.Request().Context(), req, key)
	if err != nil {
		return h.fail(c, err, "Order not found")
	}
	return c.JSON(http.StatusOK, placeOrderResponse{Success: true, Order: order})
}

func orderQuery(c echo.Context) service.OrderListQuery {
	return service.OrderListQuery{
		Status: strings.TrimSpace(c.QueryParam("status")),
		Search: strings.TrimSpace(c.QueryParam("search")),
		Page:   queryInt(c, "page"),
		Limit:  queryInt(c, "limit"),
	}
}

func (h *HTTPHandler) listOrders(c echo.Context) error {
	page, err := h.Orders.ListOrders(c.Request().Context(), orderQuery(c))
	if err != nil {
		return h.fail(c, err, "Order not found")
	}
	return c.JSON(http.StatusOK, page)
}
