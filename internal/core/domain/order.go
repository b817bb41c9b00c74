package domain

import (
	"fmt"
	"strings"
	"time"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OrderStatuses in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusCancelled},
}

// ParseOrderStatus accepts any casing and surrounding space.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	st := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range OrderStatuses {
		if st == known {
			return st, true
		}
	}
	return "", false
}

// CanTransition reports whether an order may move from s to next.
// Delivered and cancelled orders are terminal.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return len(orderTransitions[s]) == 0
}

const DefaultPaymentMethod = "cash_on_delivery"

type Order struct {
	ID             string      `json:"id"`
	OrderNumber    string      `json:"order_number"`
	CustomerName   string      `json:"customer_name"`
	CustomerPhone  string      `json:"customer_phone"`
	District       string      `json:"district"`
	Address        string      `json:"address"`
	PaymentMethod  string      `json:"payment_method"`
	DeliveryCharge Money       `json:"delivery_charge"`
	CouponCode     string      `json:"coupon_code,omitempty"`
	DiscountAmount Money       `json:"discount_amount"`
	TotalAmount    Money       `json:"total_amount"`
	Status         OrderStatus `json:"status"`
	Items          []OrderItem `json:"items"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Subtotal is the sum of item lines, before delivery and discount.
func (o Order) Subtotal() Money {
	total := Taka(0)
	for _, it := range o.Items {
		total = total.Add(it.LineTotal())
	}
	return total
}

type OrderItem struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	Price       Money  `json:"price"`
}

func (it OrderItem) LineTotal() Money {
	return it.Price.Mul(Taka(int64(it.Quantity)))
}

type OrderTrackingNote struct {
	ID        string      `json:"id"`
	OrderID   string      `json:"order_id"`
	Status    OrderStatus `json:"status"`
	Note      string      `json:"note"`
	CreatedAt time.Time   `json:"created_at"`
}

type OrderFilter struct {
	Status OrderStatus
	Search string
	Page   int
	Limit  int
}

func (f OrderFilter) Offset() int {
	return offset(f.Page, f.Limit)
}

// DistrictCode is the first two ASCII letters of district, upper-cased and
// padded with X.
func DistrictCode(district string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(district) {
		if r >= 'A' && r <= 'Z' {
			b.WriteRune(r)
			if b.Len() == 2 {
				break
			}
		}
	}
	code := b.String()
	for len(code) < 2 {
		code += "X"
	}
	return code
}

// FormatOrderNumber renders TN-<district code>-<six digit suffix>.
func FormatOrderNumber(district string, suffix int) string {
	return fmt.Sprintf("TN-%s-%06d", DistrictCode(district), suffix%1000000)
}
