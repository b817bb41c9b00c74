package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/technirvor/storefront/internal/core/domain"
	"github.com/technirvor/storefront/internal/port"
)

const (
	// ChatOverloadedReply is returned when the model stays overloaded after
	// every retry.
	ChatOverloadedReply = "Sorry, our shopping assistant is very busy right now. Please try again in a little while."

	chatResultLimit = 8
	maxChatHistory  = 20
)

type ChatService struct {
	model   port.ChatModel
	catalog *CatalogService
	orders  *OrderService
	logger  *zap.Logger

	retries int
	backoff time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
}

type ChatOption func(*ChatService)

// WithChatRetry sets how many extra attempts follow an overloaded reply and
// the base of the linear backoff between them.
func WithChatRetry(retries int, backoff time.Duration) ChatOption {
	return func(s *ChatService) {
		s.retries = retries
		s.backoff = backoff
	}
}

func WithChatSleep(sleep func(ctx context.Context, d time.Duration) error) ChatOption {
	return func(s *ChatService) { s.sleep = sleep }
}

func NewChatService(model port.ChatModel, catalog *CatalogService, orders *OrderService, logger *zap.Logger, opts ...ChatOption) *ChatService {
	s := &ChatService{
		model:   model,
		catalog: catalog,
		orders:  orders,
		logger:  logger,
		retries: 2,
		backoff: time.Second,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type ChatRequest struct {
	Message string               `json:"message"`
	History []domain.ChatMessage `json:"history"`
}

// ChatOrder is the part of an order the assistant may reveal to anyone who
// knows the order number.
type ChatOrder struct {
	OrderNumber string             `json:"order_number"`
	Status      domain.OrderStatus `json:"status"`
	TotalAmount domain.Money       `json:"total_amount"`
	CreatedAt   time.Time          `json:"created_at"`
}

type ChatResponse struct {
	Type     string        `json:"type"`
	Message  string        `json:"message"`
	Products []ProductView `json:"products,omitempty"`
	Order    *ChatOrder    `json:"order,omitempty"`
}

// Reply asks the model what the shopper wants and runs the matching catalog
// or order lookup.
func (s *ChatService) Reply(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return nil, invalid("Message is required")
	}
	history := make([]domain.ChatMessage, 0, len(req.History)+1)
	for _, m := range req.History {
		if m.Role != domain.ChatRoleUser && m.Role != domain.ChatRoleAssistant {
			return nil, invalid("Invalid history role")
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		history = append(history, m)
	}
	if len(history) > maxChatHistory {
		history = history[len(history)-maxChatHistory:]
	}
	history = append(history, domain.ChatMessage{Role: domain.ChatRoleUser, Content: msg})

	raw, err := s.generate(ctx, history)
	if errors.Is(err, domain.ErrModelOverloaded) {
		s.logger.Warn("chat model overloaded, giving up", zap.Int("attempts", s.retries+1))
		return &ChatResponse{Type: domain.IntentText, Message: ChatOverloadedReply}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("chat model: %w", err)
	}
	return s.dispatch(ctx, ParseChatIntent(raw))
}

func (s *ChatService) generate(ctx context.Context, history []domain.ChatMessage) (string, error) {
	for attempt := 1; ; attempt++ {
		reply, err := s.model.Generate(ctx, history)
		if err == nil {
			return reply, nil
		}
		if !errors.Is(err, domain.ErrModelOverloaded) || attempt > s.retries {
			return "", err
		}
		s.logger.Info("chat model overloaded, retrying", zap.Int("attempt", attempt))
		if err := s.sleep(ctx, time.Duration(attempt)*s.backoff); err != nil {
			return "", err
		}
	}
}

// ParseChatIntent decodes a model reply. Anything that is not a known intent
// becomes plain text carrying the raw reply.
func ParseChatIntent(raw string) domain.ChatIntent {
	body := strings.TrimSpace(raw)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")

	var intent domain.ChatIntent
	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &intent); err != nil || !slices.Contains(domain.ChatIntents, intent.Type) {
		return domain.ChatIntent{Type: domain.IntentText, Message: strings.TrimSpace(raw)}
	}
	return intent
}

func (s *ChatService) dispatch(ctx context.Context, intent domain.ChatIntent) (*ChatResponse, error) {
	resp := &ChatResponse{Type: intent.Type, Message: intent.Message}
	var (
		products []ProductView
		err      error
	)
	switch intent.Type {
	case domain.IntentProductSearch:
		products, err = s.catalog.SearchProducts(ctx, intent.Query, chatResultLimit)
	case domain.IntentCategorySearch:
		category := intent.Category
		if category == "" {
			category = intent.Query
		}
		products, err = s.catalog.ProductsInCategory(ctx, category, chatResultLimit)
	case domain.IntentRecommendations:
		products, err = s.catalog.FeaturedProducts(ctx, chatResultLimit)
	case domain.IntentFlashSale:
		products, err = s.catalog.FlashSaleProducts(ctx, chatResultLimit)
	case domain.IntentOrderTracking:
		return s.trackOrder(ctx, resp, intent.OrderNumber)
	default:
		return resp, nil
	}
	if err != nil {
		return nil, err
	}
	resp.Products = products
	if len(products) == 0 && resp.Message == "" {
		resp.Message = "I couldn't find any matching products."
	}
	return resp, nil
}

func (s *ChatService) trackOrder(ctx context.Context, resp *ChatResponse, number string) (*ChatResponse, error) {
	if strings.TrimSpace(number) == "" {
		if resp.Message == "" {
			resp.Message = "Please share your order number, for example TN-DH-123456."
		}
		return resp, nil
	}
	detail, err := s.orders.GetOrderByNumber(ctx, number)
	if errors.Is(err, ErrNotFound) {
		resp.Message = fmt.Sprintf("I couldn't find an order with number %s.", strings.ToUpper(strings.TrimSpace(number)))
		return resp, nil
	}
	if err != nil {
		return nil, err
	}
	o := detail.Order
	resp.Order = &ChatOrder{
		OrderNumber: o.OrderNumber,
		Status:      o.Status,
		TotalAmount: o.TotalAmount,
		CreatedAt:   o.CreatedAt,
	}
	if resp.Message == "" {
		resp.Message = fmt.Sprintf("Order %s is %s.", o.OrderNumber, o.Status)
	}
	return resp, nil
}
