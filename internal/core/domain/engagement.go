package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	NotificationTypeOrder  = "order"
	NotificationTypePromo  = "promotion"
	NotificationTypeSystem = "system"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

var (
	ErrCouponInactive = errors.New("coupon is not active")
	ErrCouponExpired  = errors.New("coupon has expired")
	ErrCouponUsedUp   = errors.New("coupon usage limit reached")
	ErrCouponMinOrder = errors.New("order does not meet the coupon minimum")
)

type Coupon struct {
	ID             string       `json:"id"`
	Code           string       `json:"code"`
	DiscountType   DiscountType `json:"discount_type"`
	Value          Money        `json:"value"`
	MinOrderAmount Money        `json:"min_order_amount"`
	MaxUses        int          `json:"max_uses"`
	UsedCount      int          `json:"used_count"`
	ExpiresAt      *time.Time   `json:"expires_at,omitempty"`
	IsActive       bool         `json:"is_active"`
	CreatedAt      time.Time    `json:"created_at"`
}

// NormalizeCouponCode upper-cases and trims a customer-entered code.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Apply returns the discount this coupon grants on subtotal at now.
// The discount never exceeds the subtotal.
func (c Coupon) Apply(subtotal Money, now time.Time) (Money, error) {
	if !c.IsActive {
		return decimal.Zero, ErrCouponInactive
	}
	if c.ExpiresAt != nil && !c.ExpiresAt.After(now) {
		return decimal.Zero, ErrCouponExpired
	}
	if c.MaxUses > 0 && c.UsedCount >= c.MaxUses {
		return decimal.Zero, ErrCouponUsedUp
	}
	if subtotal.LessThan(c.MinOrderAmount) {
		return decimal.Zero, ErrCouponMinOrder
	}

	var discount Money
	switch c.DiscountType {
	case DiscountPercentage:
		discount = subtotal.Mul(c.Value).Div(hundred).Round(2)
	default:
		discount = c.Value
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	return discount, nil
}

type Reward struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Points    int       `json:"points"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

type MessageStatus string

const (
	MessageNew     MessageStatus = "new"
	MessageRead    MessageStatus = "read"
	MessageReplied MessageStatus = "replied"
)

func ParseMessageStatus(s string) (MessageStatus, bool) {
	switch MessageStatus(s) {
	case MessageNew, MessageRead, MessageReplied:
		return MessageStatus(s), true
	}
	return "", false
}

// ContactMessage is a storefront contact form submission.
type ContactMessage struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Phone     string        `json:"phone"`
	Email     string        `json:"email"`
	Subject   string        `json:"subject"`
	Body      string        `json:"body"`
	Status    MessageStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}
