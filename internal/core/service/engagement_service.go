package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/technirvor/storefront/internal/core/domain"
	"github.com/technirvor/storefront/internal/port"
)

// EngagementService covers notifications, coupons, rewards and contact
// messages.
type EngagementService struct {
	users         port.UserRepository
	notifications port.NotificationRepository
	coupons       port.CouponRepository
	rewards       port.RewardRepository
	messages      port.MessageRepository
	logger        *zap.Logger
	now           func() time.Time
}

func NewEngagementService(users port.UserRepository, notifications port.NotificationRepository, coupons port.CouponRepository,
	rewards port.RewardRepository, messages port.MessageRepository, logger *zap.Logger) *EngagementService {
	return &EngagementService{
		users:         users,
		notifications: notifications,
		coupons:       coupons,
		rewards:       rewards,
		messages:      messages,
		logger:        logger,
		now:           time.Now,
	}
}

type NotificationFeed struct {
	Notifications []domain.Notification `json:"notifications"`
	Unread        int                   `json:"unread"`
}

func (s *EngagementService) Notifications(ctx context.Context, userID string, limit int) (*NotificationFeed, error) {
	_, limit = clampPage(1, limit)
	list, err := s.notifications.ListNotifications(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	unread, err := s.notifications.CountUnread(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count unread: %w", err)
	}
	if list == nil {
		list = []domain.Notification{}
	}
	return &NotificationFeed{Notifications: list, Unread: unread}, nil
}

func (s *EngagementService) MarkRead(ctx context.Context, userID, id string) error {
	return s.notifications.MarkRead(ctx, userID, id)
}

func (s *EngagementService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.notifications.MarkAllRead(ctx, userID)
}

type BroadcastInput struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Type    string `json:"type"`
	Role    string `json:"role"`
}

// Broadcast sends a notification to every user, or to one role when set.
func (s *EngagementService) Broadcast(ctx context.Context, in BroadcastInput) (int, error) {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Message) == "" {
		return 0, invalid("Title and message are required")
	}
	kind := in.Type
	switch kind {
	case "":
		kind = domain.NotificationTypeSystem
	case domain.NotificationTypeOrder, domain.NotificationTypePromo, domain.NotificationTypeSystem:
	default:
		return 0, invalid("Invalid notification type")
	}
	filter := domain.UserFilter{Limit: maxPageSize}
	if in.Role != "" {
		role, ok := domain.ParseRole(in.Role)
		if !ok {
			return 0, invalid("Invalid role")
		}
		filter.Role = role
	}

	now := s.now().UTC()
	sent := 0
	for page := 1; ; page++ {
		filter.Page = page
		users, total, err := s.users.ListUsers(ctx, filter)
		if err != nil {
			return sent, fmt.Errorf("list users: %w", err)
		}
		notes := make([]domain.Notification, 0, len(users))
		for _, u := range users {
			notes = append(notes, domain.Notification{
				ID:        uuid.NewString(),
				UserID:    u.ID,
				Title:     strings.TrimSpace(in.Title),
				Message:   strings.TrimSpace(in.Message),
				Type:      kind,
				CreatedAt: now,
			})
		}
		if err := s.notifications.CreateNotifications(ctx, notes); err != nil {
			return sent, fmt.Errorf("insert notifications: %w", err)
		}
		sent += len(notes)
		if len(users) == 0 || page*maxPageSize >= total {
			break
		}
	}
	s.logger.Info("notification broadcast", zap.String("title", in.Title), zap.Int("recipients", sent))
	return sent, nil
}

type CouponInput struct {
	Code           string              `json:"code"`
	DiscountType   domain.DiscountType `json:"discount_type"`
	Value          domain.Money        `json:"value"`
	MinOrderAmount domain.Money        `json:"min_order_amount"`
	MaxUses        int                 `json:"max_uses"`
	ExpiresAt      *time.Time          `json:"expires_at"`
	IsActive       *bool               `json:"is_active"`
}

func (in CouponInput) validate() error {
	switch {
	case domain.NormalizeCouponCode(in.Code) == "":
		return invalid("Coupon code is required")
	case in.DiscountType != domain.DiscountPercentage && in.DiscountType != domain.DiscountFixed:
		return invalid("Discount type must be percentage or fixed")
	case !in.Value.IsPositive():
		return invalid("Discount value must be positive")
	case in.DiscountType == domain.DiscountPercentage && in.Value.GreaterThan(domain.Taka(100)):
		return invalid("Percentage discount cannot exceed 100")
	case in.MinOrderAmount.IsNegative():
		return invalid("Minimum order amount must not be negative")
	case in.MaxUses < 0:
		return invalid("Max uses must not be negative")
	}
	return nil
}

func (in CouponInput) apply(c *domain.Coupon) {
	c.Code = domain.NormalizeCouponCode(in.Code)
	c.DiscountType = in.DiscountType
	c.Value = in.Value
	c.MinOrderAmount = in.MinOrderAmount
	c.MaxUses = in.MaxUses
	c.ExpiresAt = in.ExpiresAt
	if in.IsActive != nil {
		c.IsActive = *in.IsActive
	}
}

func (s *EngagementService) ListCoupons(ctx context.Context) ([]domain.Coupon, error) {
	coupons, err := s.coupons.ListCoupons(ctx)
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	if coupons == nil {
		coupons = []domain.Coupon{}
	}
	return coupons, nil
}

func (s *EngagementService) CreateCoupon(ctx context.Context, in CouponInput) (*domain.Coupon, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	c := domain.Coupon{ID: uuid.NewString(), IsActive: true, CreatedAt: s.now().UTC()}
	in.apply(&c)
	if err := s.coupons.CreateCoupon(ctx, c); err != nil {
		return nil, conflictOr(err, "coupon "+c.Code)
	}
	return &c, nil
}

func (s *EngagementService) UpdateCoupon(ctx context.Context, id string, in CouponInput) (*domain.Coupon, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	c, err := s.coupons.GetCoupon(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	if c == nil {
		return nil, ErrNotFound
	}
	in.apply(c)
	if err := s.coupons.UpdateCoupon(ctx, *c); err != nil {
		return nil, conflictOr(err, "coupon "+c.Code)
	}
	return c, nil
}

func (s *EngagementService) DeleteCoupon(ctx context.Context, id string) error {
	return s.coupons.DeleteCoupon(ctx, id)
}

type RewardSummary struct {
	Balance int             `json:"balance"`
	History []domain.Reward `json:"history"`
}

func (s *EngagementService) Rewards(ctx context.Context, userID string) (*RewardSummary, error) {
	history, err := s.rewards.ListRewards(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	balance, err := s.rewards.RewardBalance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reward balance: %w", err)
	}
	if history == nil {
		history = []domain.Reward{}
	}
	return &RewardSummary{Balance: balance, History: history}, nil
}

type RewardInput struct {
	UserID string `json:"user_id"`
	Points int    `json:"points"`
	Reason string `json:"reason"`
}

// AwardPoints credits, or with negative points debits, a user. A debit may
// not take the balance below zero.
func (s *EngagementService) AwardPoints(ctx context.Context, in RewardInput) (*domain.Reward, error) {
	if in.Points == 0 {
		return nil, invalid("Points must not be zero")
	}
	if strings.TrimSpace(in.Reason) == "" {
		return nil, invalid("Reason is required")
	}
	user, err := s.users.GetUser(ctx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrNotFound
	}
	if in.Points < 0 {
		balance, err := s.rewards.RewardBalance(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("reward balance: %w", err)
		}
		if balance+in.Points < 0 {
			return nil, invalid(fmt.Sprintf("Insufficient points. Available: %d", balance))
		}
	}

	r := domain.Reward{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Points:    in.Points,
		Reason:    strings.TrimSpace(in.Reason),
		CreatedAt: s.now().UTC(),
	}
	if err := s.rewards.CreateReward(ctx, r); err != nil {
		return nil, err
	}
	return &r, nil
}

type MessageInput struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Body    string `json:"message"`
}

// SubmitMessage stores a contact form. Either phone or email is needed to
// reply.
func (s *EngagementService) SubmitMessage(ctx context.Context, in MessageInput) (*domain.ContactMessage, error) {
	var missing []string
	if strings.TrimSpace(in.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(in.Subject) == "" {
		missing = append(missing, "subject")
	}
	if strings.TrimSpace(in.Body) == "" {
		missing = append(missing, "message")
	}
	if len(missing) > 0 {
		return nil, invalid("Missing required fields: " + strings.Join(missing, ", "))
	}
	phone, email := strings.TrimSpace(in.Phone), normalizeEmail(in.Email)
	if phone == "" && email == "" {
		return nil, invalid("Phone or email is required")
	}
	if phone != "" && !domain.ValidPhone(phone) {
		return nil, invalid("Invalid phone number format")
	}
	if email != "" && !validEmail(email) {
		return nil, invalid("Invalid email address")
	}

	msg := domain.ContactMessage{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(in.Name),
		Phone:     phone,
		Email:     email,
		Subject:   strings.TrimSpace(in.Subject),
		Body:      strings.TrimSpace(in.Body),
		Status:    domain.MessageNew,
		CreatedAt: s.now().UTC(),
	}
	if err := s.messages.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *EngagementService) ListMessages(ctx context.Context, status string) ([]domain.ContactMessage, error) {
	var st domain.MessageStatus
	if status != "" {
		parsed, ok := domain.ParseMessageStatus(status)
		if !ok {
			return nil, invalid("Invalid status")
		}
		st = parsed
	}
	msgs, err := s.messages.ListMessages(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if msgs == nil {
		msgs = []domain.ContactMessage{}
	}
	return msgs, nil
}

func (s *EngagementService) SetMessageStatus(ctx context.Context, id, status string) error {
	st, ok := domain.ParseMessageStatus(status)
	if !ok {
		return invalid("Invalid status")
	}
	return s.messages.UpdateMessageStatus(ctx, id, st)
}

func (s *EngagementService) DeleteMessage(ctx context.Context, id string) error {
	return s.messages.DeleteMessage(ctx, id)
}
