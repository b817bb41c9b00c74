package handler

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/technirvor/storefront/internal/core/domain"
	"github.com/technirvor/storefront/internal/core/service"
)

func (h *HTTPHandler) registerAdminRoutes(g *echo.Group) {
	g.GET("/products", h.adminProducts)
	g.POST("/products", h.createProduct)
	g.PUT("/products/:id", h.updateProduct)
	g.DELETE("/products/:id", h.deleteProduct)

	g.PUT("/flash-sales/:productId", h.setFlashSale)
	g.DELETE("/flash-sales/:productId", h.clearFlashSale)

	g.GET("/categories", h.listCategories)
	g.POST("/categories", h.createCategory)
	g.PUT("/categories/:id", h.updateCategory)
	g.DELETE("/categories/:id", h.deleteCategory)

	g.GET("/districts", h.adminDistricts)
	g.POST("/districts", h.createDistrict)
	g.PUT("/districts/:id", h.updateDistrict)
	g.DELETE("/districts/:id", h.deleteDistrict)

	g.GET("/combos", h.adminCombos)
	g.POST("/combos", h.createCombo)
	g.PUT("/combos/:id", h.updateCombo)
	g.DELETE("/combos/:id", h.deleteCombo)

	g.GET("/users", h.listUsers)
	g.PUT("/users/:id/role", h.changeRole)
	g.DELETE("/users/:id", h.deleteUser)

	g.GET("/orders", h.listOrders)
	g.GET("/orders/export", h.exportOrders)
	g.GET("/orders/:id", h.getOrder)
	g.PUT("/orders/:id/status", h.updateOrderStatus)
	g.POST("/orders/:id/notes", h.addOrderNote)
	g.GET("/orders/:id/invoice", h.orderInvoice)
	g.GET("/orders/:id/label", h.orderLabel)

	g.GET("/analytics", h.analytics)

	g.GET("/coupons", h.listCoupons)
	g.POST("/coupons", h.createCoupon)
	g.PUT("/coupons/:id", h.updateCoupon)
	g.DELETE("/coupons/:id", h.deleteCoupon)

	g.GET("/messages", h.listMessages)
	g.PUT("/messages/:id/status", h.setMessageStatus)
	g.DELETE("/messages/:id", h.deleteMessage)

	g.POST("/rewards", h.awardPoints)
	g.POST("/notifications/broadcast", h.broadcast)
}

func ok(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// Products

func (h *HTTPHandler) adminProducts(c echo.Context) error {
	page, err := h.Admin.AdminProducts(c.Request().Context(), service.ProductQuery{
		Category: strings.TrimSpace(c.QueryParam("category")),
		Search:   strings.TrimSpace(c.QueryParam("search")),
		Page:     queryInt(c, "page"),
		Limit:    queryInt(c, "limit"),
	})
	if err != nil {
		return h.fail(c, err, "Not found")
	}
	return c.JSON(http.StatusOK, page)
}

func (h *HTTPHandler) createProduct(c echo.Context) error {
	var in service.ProductInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	p, err := h.Admin.CreateProduct(c.Request().Context(), in)
	if err != nil {
		return h.fail(c, err, "Category not found")
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *HTTPHandler) updateProduct(c echo.Context) error {
	var in service.ProductInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	p, err := h.Admin.UpdateProduct(c.Request().Context(), c.Param("id"), in)
	if err != nil {
		return h.fail(c, err, "Product not found")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *HTTPHandler) deleteProduct(c echo.Context) error {
	if err := h.Admin.DeleteProduct(c.Request().Context(), c.Param("id")); err != nil {
		return h.fail(c, err, "Product not found")
	}
	return ok(c)
}

func (h *HTTPHandler) setFlashSale(c echo.Context) error {
	var in service.FlashSaleInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	p, err := h.Admin.SetFlashSale(c.Request().Context(), c.Param("productId"), in)
	if err != nil {
		return h.fail(c, err, "Product not found")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *HTTPHandler) clearFlashSale(c echo.Context) error {
	if err := h.Admin.ClearFlashSale(c.Request().Context(), c.Param("productId")); err != nil {
		return h.fail(c, err, "Product not found")
	}
	return ok(c)
}

// Categories

func (h *HTTPHandler) createCategory(c echo.Context) error {
	var in service.CategoryInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	cat, err := h.Admin.CreateCategory(c.Request().Context(), in)
	if err != nil {
		return h.fail(c, err, "Category not found")
	}
	return c.JSON(http.StatusCreated, cat)
}

func (h *HTTPHandler) updateCategory(c echo.Context) error {
	var in service.CategoryInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	cat, err := h.Admin.UpdateCategory(c.Request().Context(), c.Param("id"), in)
	if err != nil {
		return h.fail(c, err, "Category not found")
	}
	return c.JSON(http.StatusOK, cat)
}

func (h *HTTPHandler) deleteCategory(c echo.Context) error {
	if err := h.Admin.DeleteCategory(c.Request().Context(), c.Param("id")); err != nil {
		return h.fail(c, err, "Category not found")
	}
	return ok(c)
}

// Districts

func (h *HTTPHandler) adminDistricts(c echo.Context) error {
	districts, err := h.Admin.ListDistricts(c.Request().Context())
	if err != nil {
		return h.fail(c, err, "Not found")
	}
	return c.JSON(http.StatusOK, districts)
}

func (h *HTTPHandler) createDistrict(c echo.Context) error {
	var in service.DistrictInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	d, err := h.Admin.CreateDistrict(c.Request().Context(), in)
	if err != nil {
		return h.fail(c, err, "District not found")
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *HTTPHandler) updateDistrict(c echo.Context) error {
	var in service.DistrictInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	d, err := h.Admin.UpdateDistrict(c.Request().Context(), c.Param("id"), in)
	if err != nil {
		return h.fail(c, err, "District not found")
	}
	return c.JSON(http.StatusOK, d)
}

func (h *HTTPHandler) deleteDistrict(c echo.Context) error {
	if err := h.Admin.DeleteDistrict(c.Request().Context(), c.Param("id")); err != nil {
		return h.fail(c, err, "District not found")
	}
	return ok(c)
}

// Combos

func (h *HTTPHandler) adminCombos(c echo.Context) error {
	combos, err := h.Catalog.ListCombos(c.Request().Context(), false)
	if err != nil {
		return h.fail(c, err, "Not found")
	}
	return c.JSON(http.StatusOK, combos)
}

func (h *HTTPHandler) createCombo(c echo.Context) error {
	var in service.ComboInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	combo, err := h.Admin.CreateCombo(c.Request().Context(), in)
	if err != nil {
		return h.fail(c, err, "Combo not found")
	}
	return c.JSON(http.StatusCreated, combo)
}

func (h *HTTPHandler) updateCombo(c echo.Context) error {
	var in service.ComboInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	combo, err := h.Admin.UpdateCombo(c.Request().Context(), c.Param("id"), in)
	if err != nil {
		return h.fail(c, err, "Combo not found")
	}
	return c.JSON(http.StatusOK, combo)
}

func (h *HTTPHandler) deleteCombo(c echo.Context) error {
	if err := h.Admin.DeleteCombo(c.Request().Context(), c.Param("id")); err != nil {
		return h.fail(c, err, "Combo not found")
	}
	return ok(c)
}

// Users

func (h *HTTPHandler) listUsers(c echo.Context) error {
	page, err := h.Admin.ListUsers(c.Request().Context(), service.UserQuery{
		Search: strings.TrimSpace(c.QueryParam("search")),
		Role:   strings.TrimSpace(c.QueryParam("role")),
		Page:   queryInt(c, "page"),
		Limit:  queryInt(c, "limit"),
	})
	if err != nil {
		return h.fail(c, err, "Not found")
	}
	return c.JSON(http.StatusOK, page)
}

type roleRequest struct {
	Role string `json:"role"`
}

func (h *HTTPHandler) changeRole(c echo.Context) error {
	var req roleRequest
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	if err := h.Admin.ChangeRole(c.Request().Context(), currentClaims(c).Subject, c.Param("id"), req.Role); err != nil {
		return h.fail(c, err, "User not found")
	}
	return ok(c)
}

func (h *HTTPHandler) deleteUser(c echo.Context) error {
	if err := h.Admin.DeleteUser(c.Request().Context(), currentClaims(c).Subject, c.Param("id")); err != nil {
		return h.fail(c, err, "User not found")
	}
	return ok(c)
}

// Orders

func (h *HTTPHandler) getOrder(c echo.Context) error {
	detail, err := h.Orders.GetOrder(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err, "Order not found")
	}
	return c.JSON(http.StatusOK, detail)
}

type statusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

func (h *HTTPHandler) updateOrderStatus(c echo.Context) error {
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	detail, err := h.Orders.UpdateStatus(c.Request().Context(), c.Param("id"), req.Status, req.Note)
	if err != nil {
		return h.fail(c, err, "Order not found")
	}
	return c.JSON(http.StatusOK, detail)
}

type noteRequest struct {
	Note string `json:"note"`
}

func (h *HTTPHandler) addOrderNote(c echo.Context) error {
	var req noteRequest
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	note, err := h.Orders.AddNote(c.Request().Context(), c.Param("id"), req.Note)
	if err != nil {
		return h.fail(c, err, "Order not found")
	}
	return c.JSON(http.StatusCreated, note)
}

func (h *HTTPHandler) orderInvoice(c echo.Context) error {
	return h.renderOrder(c, service.RenderInvoice)
}

func (h *HTTPHandler) orderLabel(c echo.Context) error {
	return h.renderOrder(c, service.RenderLabel)
}

func (h *HTTPHandler) renderOrder(c echo.Context, render func(io.Writer, domain.Order) error) error {
	detail, err := h.Orders.GetOrder(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err, "Order not found")
	}
	var buf bytes.Buffer
	if err := render(&buf, detail.Order); err != nil {
		return h.fail(c, fmt.Errorf("render %s: %w", detail.Order.OrderNumber, err), "Order not found")
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

func (h *HTTPHandler) exportOrders(c echo.Context) error {
	from, to, err := h.Analytics.ParseRange(c.QueryParam("from"), c.QueryParam("to"))
	if err != nil {
		return h.fail(c, err, "Not found")
	}
	orders, err := h.Orders.OrdersBetween(c.Request().Context(), from, to)
	if err != nil {
		return h.fail(c, err, "Not found")
	}
	var buf bytes.Buffer
	if err := service.ExportOrdersCSV(&buf, orders); err != nil {
		return h.fail(c, fmt.Errorf("export orders: %w", err), "Not found")
	}
	name := fmt.Sprintf("orders-%s-%s.csv", from.Format("20060102"), to.Format("20060102"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *HTTPHandler) analytics(c echo.Context) error {
	from, to, err := h.Analytics.ParseRange(c.QueryParam("from"), c.QueryParam("to"))
	if err != nil {
		return h.fail(c, err, "Not found")
	}
	summary, err := h.Analytics.Summary(c.Request().Context(), from, to)
	if err != nil {
		return h.fail(c, err, "Not found")
	}
	return c.JSON(http.StatusOK, summary)
}

// Engagement

func (h *HTTPHandler) listCoupons(c echo.Context) error {
	coupons, err := h.Engagement.ListCoupons(c.Request().Context())
	if err != nil {
		return h.fail(c, err, "Not found")
	}
	return c.JSON(http.StatusOK, coupons)
}

func (h *HTTPHandler) createCoupon(c echo.Context) error {
	var in service.CouponInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	coupon, err := h.Engagement.CreateCoupon(c.Request().Context(), in)
	if err != nil {
		return h.fail(c, err, "Coupon not found")
	}
	return c.JSON(http.StatusCreated, coupon)
}

func (h *HTTPHandler) updateCoupon(c echo.Context) error {
	var in service.CouponInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	coupon, err := h.Engagement.UpdateCoupon(c.Request().Context(), c.Param("id"), in)
	if err != nil {
		return h.fail(c, err, "Coupon not found")
	}
	return c.JSON(http.StatusOK, coupon)
}

func (h *HTTPHandler) deleteCoupon(c echo.Context) error {
	if err := h.Engagement.DeleteCoupon(c.Request().Context(), c.Param("id")); err != nil {
		return h.fail(c, err, "Coupon not found")
	}
	return ok(c)
}

func (h *HTTPHandler) listMessages(c echo.Context) error {
	messages, err := h.Engagement.ListMessages(c.Request().Context(), strings.TrimSpace(c.QueryParam("status")))
	if err != nil {
		return h.fail(c, err, "Not found")
	}
	return c.JSON(http.StatusOK, messages)
}

func (h *HTTPHandler) setMessageStatus(c echo.Context) error {
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	if err := h.Engagement.SetMessageStatus(c.Request().Context(), c.Param("id"), req.Status); err != nil {
		return h.fail(c, err, "Message not found")
	}
	return ok(c)
}

func (h *HTTPHandler) deleteMessage(c echo.Context) error {
	if err := h.Engagement.DeleteMessage(c.Request().Context(), c.Param("id")); err != nil {
		return h.fail(c, err, "Message not found")
	}
	return ok(c)
}

func (h *HTTPHandler) awardPoints(c echo.Context) error {
	var in service.RewardInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	reward, err := h.Engagement.AwardPoints(c.Request().Context(), in)
	if err != nil {
		return h.fail(c, err, "User not found")
	}
	return c.JSON(http.StatusCreated, reward)
}

func (h *HTTPHandler) broadcast(c echo.Context) error {
	var in service.BroadcastInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	sent, err := h.Engagement.Broadcast(c.Request().Context(), in)
	if err != nil {
		return h.fail(c, err, "Not found")
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "sent": sent})
}
