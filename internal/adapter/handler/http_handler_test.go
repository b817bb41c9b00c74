package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/technirvor/storefront/internal/adapter/storage"
	"github.com/technirvor/storefront/internal/adapter/storage/storagetest"
	"github.com/technirvor/storefront/internal/core/domain"
	"github.com/technirvor/storefront/internal/core/service"
)

const testAPIKey = "test-key"

type noEvents struct{}

func (noEvents) OrderPlaced(domain.Order) {}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type apiFixture struct {
	e        *echo.Echo
	h        *HTTPHandler
	repo     *storage.MySQLAdapter
	svc      Services
	product  domain.Product
	district domain.District
}

func newAPIFixture(t *testing.T, checks map[string]Pinger) *apiFixture {
	t.Helper()
	repo, _ := storagetest.NewSQLite(t)
	cache := storagetest.NewMemoryCache()
	logger := zap.NewNop()

	catalog := service.NewCatalogService(repo, repo, repo, repo, repo)
	orders := service.NewOrderService(repo, repo, repo, repo, cache, noEvents{}, logger)
	svc := Services{
		Catalog:    catalog,
		Orders:     orders,
		Admin:      service.NewAdminService(repo, repo, repo, repo, repo, logger),
		Auth:       service.NewAuthService(repo, cache, service.AuthConfig{Secret: []byte("handler-test-secret"), BcryptCost: bcrypt.MinCost}, logger),
		Engagement: service.NewEngagementService(repo, repo, repo, repo, repo, logger),
		Analytics:  service.NewAnalyticsService(repo),
	}
	h := NewHTTPHandler(svc, cache, Config{APIKeys: []string{testAPIKey}, RateLimit: 3, RateWindow: time.Minute}, checks, logger)
	return &apiFixture{
		e:        h.Echo(),
		h:        h,
		repo:     repo,
		svc:      svc,
		product:  storagetest.SeedProduct(t, repo, "Mechanical Keyboard", 2500, 5),
		district: storagetest.SeedDistrict(t, repo, "Dhaka", 60),
	}
}

func (f *apiFixture) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) orderBody(qty int) string {
	return fmt.Sprintf(`{
		"customer_name": "Rahim Uddin",
		"customer_phone": "01712345678",
		"district": "Dhaka",
		"address": "House 12, Road 5",
		"items": [{"product_id": %q, "quantity": %d, "price": 2500}],
		"total_amount": %d
	}`, f.product.ID, qty, 2500*qty+60)
}

func (f *apiFixture) token(t *testing.T, role domain.Role) string {
	t.Helper()
	ctx := context.Background()
	in := service.RegisterInput{Name: "User", Email: fmt.Sprintf("%s@example.com", role), Password: "password1"}
	var (
		u   *domain.User
		err error
	)
	if role == domain.RoleAdmin {
		u, err = f.svc.Auth.CreateAdmin(ctx, in)
	} else {
		u, err = f.svc.Auth.Register(ctx, in)
	}
	require.NoError(t, err)
	tok, _, err := f.svc.Auth.IssueToken(*u)
	require.NoError(t, err)
	return tok
}

func bearer(tok string) map[string]string {
	return map[string]string{echo.HeaderAuthorization: "Bearer " + tok}
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Error
}

func TestHealthCheck(t *testing.T) {
	f := newAPIFixture(t, map[string]Pinger{"mysql": fakePinger{}, "redis": fakePinger{}})
	rec := f.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","mysql":"ok","redis":"ok"}`, rec.Body.String())

	f = newAPIFixture(t, map[string]Pinger{"redis": fakePinger{err: errors.New("refused")}})
	rec = f.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"degraded","redis":"down"}`, rec.Body.String())
}

func TestPlaceOrder_RequiresAPIKey(t *testing.T) {
	f := newAPIFixture(t, nil)

	rec := f.do(http.MethodPost, "/api/orders", f.orderBody(1), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid API key", errorOf(t, rec))

	rec = f.do(http.MethodPost, "/api/orders", f.orderBody(1), map[string]string{headerAPIKey: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPlaceOrder_Success(t *testing.T) {
	f := newAPIFixture(t, nil)

	rec := f.do(http.MethodPost, "/api/orders", f.orderBody(2), map[string]string{headerAPIKey: testAPIKey})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Success bool `json:"success"`
		Order   struct {
			OrderNumber string  `json:"order_number"`
			Status      string  `json:"status"`
			TotalAmount float64 `json:"total_amount"`
			Items       []any   `json:"items"`
		} `json:"order"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Regexp(t, `^TN-DH-\d{6}$`, resp.Order.OrderNumber)
	assert.Equal(t, "pending", resp.Order.Status)
	assert.Equal(t, 5060.0, resp.Order.TotalAmount)
	assert.Len(t, resp.Order.Items, 1)
}

func TestPlaceOrder_Errors(t *testing.T) {
	f := newAPIFixture(t, nil)
	key := map[string]string{headerAPIKey: testAPIKey}

	rec := f.do(http.MethodPost, "/api/orders", strings.Replace(f.orderBody(1), "01712345678", "12345", 1), key)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid phone number format", errorOf(t, rec))

	rec = f.do(http.MethodPost, "/api/orders", f.orderBody(9), key)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Insufficient stock for Mechanical Keyboard. Available: 5", errorOf(t, rec))

	rec = f.do(http.MethodPost, "/api/orders", `{"items": [`, key)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", errorOf(t, rec))
}

func TestPlaceOrder_DuplicateIdempotencyKey(t *testing.T) {
	f := newAPIFixture(t, nil)
	headers := map[string]string{headerAPIKey: testAPIKey, headerIdempotency: "checkout-1"}

	rec := f.do(http.MethodPost, "/api/orders", f.orderBody(1), headers)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodPost, "/api/orders", f.orderBody(1), headers)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Duplicate request", errorOf(t, rec))

	p, err := f.repo.GetProduct(context.Background(), f.product.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, p.Stock, "stock decremented once")
}

func TestOrders_RateLimitedPerClient(t *testing.T) {
	f := newAPIFixture(t, nil)
	key := map[string]string{headerAPIKey: testAPIKey, "X-Forwarded-For": "203.0.113.7, 10.0.0.1"}

	for i := 0; i < 3; i++ {
		rec := f.do(http.MethodGet, "/api/orders", "", key)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := f.do(http.MethodGet, "/api/orders", "", key)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many requests", errorOf(t, rec))

	other := map[string]string{headerAPIKey: testAPIKey, "X-Forwarded-For": "198.51.100.2"}
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/orders", "", other).Code)
}

func TestClientID(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.10:51234"
	assert.Equal(t, "192.0.2.10", clientID(r))

	r.Header.Set("X-Forwarded-For", " 203.0.113.7 , 10.0.0.1")
	assert.Equal(t, "203.0.113.7", clientID(r))
}

func TestTrackOrder(t *testing.T) {
	f := newAPIFixture(t, nil)
	order, err := f.svc.Orders.PlaceOrder(context.Background(), service.PlaceOrderRequest{
		CustomerName:  "Rahim Uddin",
		CustomerPhone: "01712345678",
		District:      "Dhaka",
		Address:       "House 12",
		Items:         []service.PlaceOrderItem{{ProductID: f.product.ID, Quantity: 1, Price: ptr(domain.Taka(2500))}},
		TotalAmount:   ptr(domain.Taka(2560)),
	}, "")
	require.NoError(t, err)

	rec := f.do(http.MethodGet, "/api/orders/track?order_number="+order.OrderNumber+"&phone=%2B8801712345678", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Order placed successfully")

	rec = f.do(http.MethodGet, "/api/orders/track?order_number="+order.OrderNumber+"&phone=01800000000", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Order not found", errorOf(t, rec))
}

func ptr[T any](v T) *T { return &v }

func TestCatalogRoutes(t *testing.T) {
	f := newAPIFixture(t, nil)

	rec := f.do(http.MethodGet, "/api/products?search=keyboard", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), f.product.Slug)

	rec = f.do(http.MethodGet, "/api/products/"+f.product.Slug, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/api/products/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Product not found", errorOf(t, rec))

	rec = f.do(http.MethodPost, "/api/cart/quote",
		fmt.Sprintf(`{"items":[{"product_id":%q,"quantity":2}],"district":"Dhaka"}`, f.product.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"delivery_charge":60`)
}

func TestChat_NotConfigured(t *testing.T) {
	f := newAPIFixture(t, nil)
	rec := f.do(http.MethodPost, "/api/chat", `{"message":"hi"}`, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLogin_Lockout(t *testing.T) {
	f := newAPIFixture(t, nil)
	_, err := f.svc.Auth.CreateAdmin(context.Background(), service.RegisterInput{Name: "Admin", Email: "admin@example.com", Password: "password1"})
	require.NoError(t, err)

	rec := f.do(http.MethodPost, "/api/auth/login", `{"email":"admin@example.com","password":"password1"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"token"`)

	for i := 0; i < 4; i++ {
		rec = f.do(http.MethodPost, "/api/auth/login", `{"email":"admin@example.com","password":"nope"}`, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec = f.do(http.MethodPost, "/api/auth/login", `{"email":"admin@example.com","password":"nope"}`, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many failed attempts", errorOf(t, rec))
}

func TestAdminRoutes_RequireAdmin(t *testing.T) {
	f := newAPIFixture(t, nil)

	rec := f.do(http.MethodGet, "/api/admin/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodGet, "/api/admin/orders", "", bearer("not-a-token"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodGet, "/api/admin/orders", "", bearer(f.token(t, domain.RoleCustomer)))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodGet, "/api/admin/orders", "", bearer(f.token(t, domain.RoleAdmin)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminOrderWorkflow(t *testing.T) {
	f := newAPIFixture(t, nil)
	admin := bearer(f.token(t, domain.RoleAdmin))

	rec := f.do(http.MethodPost, "/api/orders", f.orderBody(1), map[string]string{headerAPIKey: testAPIKey})
	require.Equal(t, http.StatusOK, rec.Code)
	var placed placeOrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &placed))
	id := placed.Order.ID

	rec = f.do(http.MethodPut, "/api/admin/orders/"+id+"/status", `{"status":"delivered"}`, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Cannot change status from pending to delivered", errorOf(t, rec))

	rec = f.do(http.MethodPut, "/api/admin/orders/"+id+"/status", `{"status":"confirmed","note":"Called customer"}`, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Called customer")

	rec = f.do(http.MethodPost, "/api/admin/orders/"+id+"/notes", `{"note":"Packed"}`, admin)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(http.MethodGet, "/api/admin/orders/"+id+"/invoice", "", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMETextHTML))
	assert.Contains(t, rec.Body.String(), placed.Order.OrderNumber)
	assert.Contains(t, rec.Body.String(), "৳ 2,560.00")

	rec = f.do(http.MethodGet, "/api/admin/orders/"+id+"/label", "", admin)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/api/admin/orders/missing/invoice", "", admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Order not found", errorOf(t, rec))

	rec = f.do(http.MethodGet, "/api/admin/orders/export", "", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "attachment")
	assert.Contains(t, rec.Body.String(), placed.Order.OrderNumber+",")

	rec = f.do(http.MethodGet, "/api/admin/analytics", "", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_orders":1`)

	rec = f.do(http.MethodGet, "/api/admin/analytics?from=2026-03-10&to=2026-03-01", "", admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminCatalogCRUD(t *testing.T) {
	f := newAPIFixture(t, nil)
	admin := bearer(f.token(t, domain.RoleAdmin))

	rec := f.do(http.MethodPost, "/api/admin/districts", `{"name":"Chattogram","delivery_charge":120}`, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(http.MethodPost, "/api/admin/districts", `{"name":"Chattogram","delivery_charge":100}`, admin)
	assert.Equal(t, http.StatusConflict, rec.Code)

	ends := time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339)
	rec = f.do(http.MethodPut, "/api/admin/flash-sales/"+f.product.ID, fmt.Sprintf(`{"sale_price":2000,"ends_at":%q}`, ends), admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(http.MethodGet, "/api/products?flash_sale=true", "", nil)
	assert.Contains(t, rec.Body.String(), f.product.ID)

	rec = f.do(http.MethodDelete, "/api/admin/flash-sales/"+f.product.ID, "", admin)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodDelete, "/api/admin/products/missing", "", admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Product not found", errorOf(t, rec))
}

func TestEngagementRoutes(t *testing.T) {
	f := newAPIFixture(t, nil)
	admin := bearer(f.token(t, domain.RoleAdmin))
	customer := bearer(f.token(t, domain.RoleCustomer))

	rec := f.do(http.MethodPost, "/api/admin/notifications/broadcast", `{"title":"Eid","message":"Sale","role":"customer"}`, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"success":true,"sent":1}`, rec.Body.String())

	rec = f.do(http.MethodGet, "/api/me/notifications", "", customer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"unread":1`)

	rec = f.do(http.MethodPost, "/api/me/notifications/read-all", "", customer)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/api/me/rewards", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodPost, "/api/messages", `{"name":"A","subject":"Hi","message":"Hello"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Phone or email is required", errorOf(t, rec))

	rec = f.do(http.MethodPost, "/api/admin/coupons", `{"code":"eid10","discount_type":"percentage","value":10}`, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(http.MethodPost, "/api/coupons/validate", `{"code":"EID10","subtotal":1000}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"discount":100`)
}

func TestUnknownRoute(t *testing.T) {
	f := newAPIFixture(t, nil)
	rec := f.do(http.MethodGet, "/api/nothing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, errorOf(t, rec))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		code int
		msg  string
	}{
		{&service.ValidationError{Message: "Invalid district"}, http.StatusBadRequest, "Invalid district"},
		{fmt.Errorf("wrap: %w", service.ErrDuplicateRequest), http.StatusConflict, "Duplicate request"},
		{service.ErrNotFound, http.StatusNotFound, "Order not found"},
		{domain.ErrStatusConflict, http.StatusConflict, "Order status was changed by another request"},
		{service.ErrLockedOut, http.StatusTooManyRequests, "Too many failed attempts"},
		{errors.New("boom"), http.StatusInternalServerError, msgInternal},
	}
	for _, tt := range tests {
		code, msg := statusFor(tt.err, "Order not found")
		assert.Equal(t, tt.code, code, tt.err.Error())
		assert.Equal(t, tt.msg, msg)
	}
}
