package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/technirvor/storefront/internal/core/domain"
	"github.com/technirvor/storefront/internal/port"
)

const (
	orderNumberAttempts = 5
	orderSuffixMin      = 100000
	orderSuffixSpan     = 900000

	orderPlacedNote = "Order placed successfully"
)

// OrderEvents receives placed orders; see Notifier.
type OrderEvents interface {
	OrderPlaced(order domain.Order)
}

type OrderService struct {
	products  port.ProductRepository
	districts port.DistrictRepository
	orders    port.OrderRepository
	coupons   port.CouponRepository
	cache     port.IdempotencyStore
	events    OrderEvents
	logger    *zap.Logger

	now    func() time.Time
	suffix func() (int, error)
}

type OrderOption func(*OrderService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) OrderOption {
	return func(s *OrderService) { s.now = now }
}

// WithOrderSuffix replaces the random order-number suffix source.
func WithOrderSuffix(fn func() (int, error)) OrderOption {
	return func(s *OrderService) { s.suffix = fn }
}

func NewOrderService(products port.ProductRepository, districts port.DistrictRepository, orders port.OrderRepository,
	coupons port.CouponRepository, cache port.IdempotencyStore, events OrderEvents, logger *zap.Logger,
	opts ...OrderOption) *OrderService {
	s := &OrderService{
		products:  products,
		districts: districts,
		orders:    orders,
		coupons:   coupons,
		cache:     cache,
		events:    events,
		logger:    logger,
		now:       time.Now,
		suffix:    randomOrderSuffix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func randomOrderSuffix() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(orderSuffixSpan))
	if err != nil {
		return 0, err
	}
	return orderSuffixMin + int(n.Int64()), nil
}

type PlaceOrderItem struct {
	ProductID string        `json:"product_id"`
	Quantity  int           `json:"quantity"`
	Price     *domain.Money `json:"price"`
}

type PlaceOrderRequest struct {
	CustomerName  string           `json:"customer_name"`
	CustomerPhone string           `json:"customer_phone"`
	District      string           `json:"district"`
	Address       string           `json:"address"`
	PaymentMethod string           `json:"payment_method"`
	CouponCode    string           `json:"coupon_code,omitempty"`
	Items         []PlaceOrderItem `json:"items"`
	TotalAmount   *domain.Money    `json:"total_amount"`
}

func (r PlaceOrderRequest) missingFields() []string {
	var missing []string
	if strings.TrimSpace(r.CustomerName) == "" {
		missing = append(missing, "customer_name")
	}
	if strings.TrimSpace(r.CustomerPhone) == "" {
		missing = append(missing, "customer_phone")
	}
	if strings.TrimSpace(r.District) == "" {
		missing = append(missing, "district")
	}
	if strings.TrimSpace(r.Address) == "" {
		missing = append(missing, "address")
	}
	if r.Items == nil {
		missing = append(missing, "items")
	}
	if r.TotalAmount == nil {
		missing = append(missing, "total_amount")
	}
	return missing
}

// PlaceOrder validates req, then persists the order, its items, the stock
// decrement and the first tracking note atomically. A non-empty
// idempotencyKey is claimed for 24h and released again if the order is
// rejected.
func (s *OrderService) PlaceOrder(ctx context.Context, req PlaceOrderRequest, idempotencyKey string) (order *domain.Order, err error) {
	if idempotencyKey != "" {
		key := "order:" + idempotencyKey
		ok, setErr := s.cache.SetIdempotency(ctx, key)
		if setErr != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", setErr)
		}
		if !ok {
			return nil, ErrDuplicateRequest
		}
		defer func() {
			if err == nil {
				return
			}
			if relErr := s.cache.ReleaseIdempotency(context.WithoutCancel(ctx), key); relErr != nil {
				s.logger.Warn("release idempotency key", zap.String("key", key), zap.Error(relErr))
			}
		}()
	}

	draft, err := s.prepareOrder(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := s.insertOrder(ctx, draft); err != nil {
		return nil, err
	}

	s.logger.Info("order placed",
		zap.String("order_number", draft.OrderNumber),
		zap.String("district", draft.District),
		zap.Int("items", len(draft.Items)),
		zap.String("total", draft.TotalAmount.StringFixed(2)))

	if s.events != nil {
		s.events.OrderPlaced(*draft)
	}
	return draft, nil
}

// prepareOrder runs every check that needs no write and returns the order
// to insert, without an order number.
func (s *OrderService) prepareOrder(ctx context.Context, req PlaceOrderRequest) (*domain.Order, error) {
	if missing := req.missingFields(); len(missing) > 0 {
		return nil, invalid("Missing required fields: " + strings.Join(missing, ", "))
	}
	if !domain.ValidPhone(req.CustomerPhone) {
		return nil, invalid("Invalid phone number format")
	}
	if len(req.Items) == 0 {
		return nil, invalid("Order must contain at least one item")
	}
	if !domain.WholePaisa(*req.TotalAmount) {
		return nil, invalid("Total amount cannot have more than two decimal places")
	}

	requested := make(map[string]int)
	var ids []string
	for i, it := range req.Items {
		if strings.TrimSpace(it.ProductID) == "" || it.Quantity <= 0 || it.Price == nil || it.Price.IsNegative() {
			return nil, invalid(fmt.Sprintf("Invalid item at position %d: product_id, quantity > 0 and price >= 0 are required", i+1))
		}
		if !domain.WholePaisa(*it.Price) {
			return nil, invalid(fmt.Sprintf("Invalid item at position %d: price cannot have more than two decimal places", i+1))
		}
		if _, seen := requested[it.ProductID]; !seen {
			ids = append(ids, it.ProductID)
		}
		requested[it.ProductID] += it.Quantity
	}

	products, err := s.products.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	var missing []string
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, invalid("Products not found: " + strings.Join(missing, ", "))
	}

	// Advisory; the conditional decrement on insert is authoritative.
	for _, id := range ids {
		if err := domain.CheckStock(byID[id], requested[id]); err != nil {
			return nil, err
		}
	}

	district, err := s.districts.GetDistrictByName(ctx, strings.TrimSpace(req.District))
	if err != nil {
		return nil, fmt.Errorf("load district: %w", err)
	}
	if district == nil {
		return nil, invalid("Invalid district")
	}

	now := s.now().UTC()
	order := &domain.Order{
		ID:             uuid.NewString(),
		CustomerName:   strings.TrimSpace(req.CustomerName),
		CustomerPhone:  strings.TrimSpace(req.CustomerPhone),
		District:       district.Name,
		Address:        strings.TrimSpace(req.Address),
		PaymentMethod:  strings.TrimSpace(req.PaymentMethod),
		DeliveryCharge: district.DeliveryCharge,
		DiscountAmount: domain.Taka(0),
		Status:         domain.OrderStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if order.PaymentMethod == "" {
		order.PaymentMethod = domain.DefaultPaymentMethod
	}
	for _, it := range req.Items {
		order.Items = append(order.Items, domain.OrderItem{
			ID:          uuid.NewString(),
			OrderID:     order.ID,
			ProductID:   it.ProductID,
			ProductName: byID[it.ProductID].Name,
			Quantity:    it.Quantity,
			Price:       *it.Price,
		})
	}

	subtotal := order.Subtotal()
	if code := domain.NormalizeCouponCode(req.CouponCode); code != "" {
		discount, err := applyCoupon(ctx, s.coupons, code, subtotal, now)
		if err != nil {
			return nil, err
		}
		order.CouponCode = code
		order.DiscountAmount = discount
	}

	order.TotalAmount = subtotal.Sub(order.DiscountAmount).Add(order.DeliveryCharge)
	if !req.TotalAmount.Equal(order.TotalAmount) {
		return nil, invalid("Total amount mismatch")
	}
	return order, nil
}

func couponMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrCouponInactive):
		return "Coupon is not active"
	case errors.Is(err, domain.ErrCouponExpired):
		return "Coupon has expired"
	case errors.Is(err, domain.ErrCouponUsedUp):
		return "Coupon usage limit reached"
	case errors.Is(err, domain.ErrCouponMinOrder):
		return "Order does not meet the coupon minimum"
	case errors.Is(err, domain.ErrCouponUnavailable):
		return "Coupon is no longer available"
	}
	return "Invalid coupon code"
}

// insertOrder assigns an order number and writes the order, retrying with
// a fresh number when the unique index rejects it or the database aborted
// the transaction on a lock conflict.
func (s *OrderService) insertOrder(ctx context.Context, order *domain.Order) error {
	note := domain.OrderTrackingNote{
		OrderID:   order.ID,
		Status:    domain.OrderStatusPending,
		Note:      orderPlacedNote,
		CreatedAt: order.CreatedAt,
	}

	var lastErr error
	for attempt := 1; attempt <= orderNumberAttempts; attempt++ {
		suffix, err := s.suffix()
		if err != nil {
			return fmt.Errorf("order number: %w", err)
		}
		order.OrderNumber = domain.FormatOrderNumber(order.District, suffix)
		note.ID = uuid.NewString()

		err = s.orders.CreateOrder(ctx, *order, note)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, domain.ErrDuplicateKey):
			s.logger.Warn("order number collision, retrying",
				zap.String("order_number", order.OrderNumber), zap.Int("attempt", attempt))
			lastErr = err
			continue
		case errors.Is(err, domain.ErrLockConflict):
			s.logger.Warn("order transaction hit a lock conflict, retrying",
				zap.Int("attempt", attempt), zap.Error(err))
			lastErr = err
			continue
		case errors.Is(err, domain.ErrInsufficientStock):
			return err
		case errors.Is(err, domain.ErrCouponUnavailable):
			return invalid(couponMessage(err))
		case errors.Is(err, domain.ErrNotFound):
			return invalid("Products not found: " + strings.Join(productIDs(order.Items), ", "))
		default:
			return fmt.Errorf("create order: %w", err)
		}
	}
	if errors.Is(lastErr, domain.ErrDuplicateKey) {
		return fmt.Errorf("no free order number after %d attempts: %w", orderNumberAttempts, lastErr)
	}
	return fmt.Errorf("order not written after %d attempts: %w", orderNumberAttempts, lastErr)
}

func productIDs(items []domain.OrderItem) []string {
	seen := make(map[string]bool, len(items))
	var ids []string
	for _, it := range items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}
	return ids
}

type OrderListQuery struct {
	Status string
	Search string
	Page   int
	Limit  int
}

type OrderPage struct {
	Orders     []domain.Order `json:"orders"`
	Pagination Pagination     `json:"pagination"`
}

func (s *OrderService) ListOrders(ctx context.Context, q OrderListQuery) (*OrderPage, error) {
	page, limit := clampPage(q.Page, q.Limit)
	filter := domain.OrderFilter{Search: q.Search, Page: page, Limit: limit}
	if q.Status != "" {
		status, ok := domain.ParseOrderStatus(q.Status)
		if !ok {
			return nil, invalid("Invalid status")
		}
		filter.Status = status
	}

	orders, total, err := s.orders.ListOrders(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return &OrderPage{Orders: orders, Pagination: newPagination(page, limit, total)}, nil
}

// OrderDetail is an order with its tracking history.
type OrderDetail struct {
	Order domain.Order               `json:"order"`
	Notes []domain.OrderTrackingNote `json:"notes"`
}

func (s *OrderService) detail(ctx context.Context, order *domain.Order) (*OrderDetail, error) {
	notes, err := s.orders.ListTrackingNotes(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list tracking notes: %w", err)
	}
	if notes == nil {
		notes = []domain.OrderTrackingNote{}
	}
	return &OrderDetail{Order: *order, Notes: notes}, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id string) (*OrderDetail, error) {
	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrNotFound
	}
	return s.detail(ctx, order)
}

// GetOrderByNumber looks an order up without the phone check, for admin
// and assistant use.
func (s *OrderService) GetOrderByNumber(ctx context.Context, orderNumber string) (*OrderDetail, error) {
	order, err := s.orders.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrNotFound
	}
	return s.detail(ctx, order)
}

// TrackOrder returns the order only when phone matches the one it was
// placed with. Both local and +880 forms match.
func (s *OrderService) TrackOrder(ctx context.Context, orderNumber, phone string) (*OrderDetail, error) {
	if strings.TrimSpace(orderNumber) == "" || strings.TrimSpace(phone) == "" {
		return nil, invalid("Order number and phone are required")
	}
	order, err := s.orders.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil || localPhone(order.CustomerPhone) != localPhone(phone) {
		return nil, ErrNotFound
	}
	return s.detail(ctx, order)
}

func localPhone(phone string) string {
	return strings.TrimPrefix(strings.TrimSpace(phone), "+88")
}

// UpdateStatus moves an order along the transition table and records note,
// or a default note when it is empty.
func (s *OrderService) UpdateStatus(ctx context.Context, id, status, note string) (*OrderDetail, error) {
	next, ok := domain.ParseOrderStatus(status)
	if !ok {
		return nil, invalid("Invalid status")
	}

	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrNotFound
	}
	if !order.Status.CanTransition(next) {
		return nil, invalid(fmt.Sprintf("Cannot change status from %s to %s", order.Status, next))
	}

	if strings.TrimSpace(note) == "" {
		note = "Order status updated to " + string(next)
	}
	now := s.now().UTC()
	entry := domain.OrderTrackingNote{
		ID:        uuid.NewString(),
		OrderID:   order.ID,
		Status:    next,
		Note:      strings.TrimSpace(note),
		CreatedAt: now,
	}
	if err := s.orders.UpdateOrderStatus(ctx, order.ID, order.Status, next, entry); err != nil {
		if errors.Is(err, domain.ErrStatusConflict) || errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}

	s.logger.Info("order status changed",
		zap.String("order_number", order.OrderNumber),
		zap.String("from", string(order.Status)),
		zap.String("to", string(next)))

	order.Status = next
	order.UpdatedAt = now
	return s.detail(ctx, order)
}

// AddNote appends a free-form note at the order's current status.
func (s *OrderService) AddNote(ctx context.Context, id, note string) (*domain.OrderTrackingNote, error) {
	if strings.TrimSpace(note) == "" {
		return nil, invalid("Note is required")
	}
	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrNotFound
	}

	entry := domain.OrderTrackingNote{
		ID:        uuid.NewString(),
		OrderID:   order.ID,
		Status:    order.Status,
		Note:      strings.TrimSpace(note),
		CreatedAt: s.now().UTC(),
	}
	if err := s.orders.AddTrackingNote(ctx, entry); err != nil {
		return nil, fmt.Errorf("add tracking note: %w", err)
	}
	return &entry, nil
}

// OrdersBetween returns orders created in [from, to), oldest first.
func (s *OrderService) OrdersBetween(ctx context.Context, from, to time.Time) ([]domain.Order, error) {
	orders, err := s.orders.ListOrdersBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	sort.SliceStable(orders, func(i, j int) bool { return orders[i].CreatedAt.Before(orders[j].CreatedAt) })
	return orders, nil
}
