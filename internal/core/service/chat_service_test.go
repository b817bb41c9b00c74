package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/technirvor/storefront/internal/core/domain"
)

// Mock ChatModel replaying scripted replies
type mockChatModel struct {
	replies  []string
	errs     []error
	calls    int
	lastSeen []domain.ChatMessage
}

func (m *mockChatModel) Generate(ctx context.Context, history []domain.ChatMessage) (string, error) {
	i := m.calls
	m.calls++
	m.lastSeen = history
	if i < len(m.errs) && m.errs[i] != nil {
		return "", m.errs[i]
	}
	if i < len(m.replies) {
		return m.replies[i], nil
	}
	return `{"type":"text","message":"ok"}`, nil
}

func overloaded() error {
	return fmt.Errorf("gemini: status 503: %w", domain.ErrModelOverloaded)
}

type chatFixture struct {
	svc    *ChatService
	model  *mockChatModel
	sleeps []time.Duration
	orders *orderFixture
}

func newChatFixture(t *testing.T, model *mockChatModel) *chatFixture {
	t.Helper()
	f := &chatFixture{model: model, orders: newOrderFixture(t, 10)}
	catalog := NewCatalogService(f.orders.repo, f.orders.repo, f.orders.repo, f.orders.repo, f.orders.repo)
	f.svc = NewChatService(model, catalog, f.orders.svc, zap.NewNop(),
		WithChatRetry(2, time.Second),
		WithChatSleep(func(ctx context.Context, d time.Duration) error {
			f.sleeps = append(f.sleeps, d)
			return nil
		}))
	return f
}

func TestChat_ProductSearch(t *testing.T) {
	f := newChatFixture(t, &mockChatModel{replies: []string{
		`{"type":"product_search","message":"Here are some keyboards","query":"keyboard"}`,
	}})

	resp, err := f.svc.Reply(context.Background(), ChatRequest{
		Message: "show me keyboards",
		History: []domain.ChatMessage{{Role: domain.ChatRoleAssistant, Content: "Hi! How can I help?"}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.IntentProductSearch, resp.Type)
	require.Len(t, resp.Products, 1)
	assert.Equal(t, "Mechanical Keyboard", resp.Products[0].Name)

	require.Len(t, f.model.lastSeen, 2)
	assert.Equal(t, domain.ChatMessage{Role: domain.ChatRoleUser, Content: "show me keyboards"}, f.model.lastSeen[1])
}

func TestChat_RetriesOverloadThenSucceeds(t *testing.T) {
	f := newChatFixture(t, &mockChatModel{
		errs:    []error{overloaded(), overloaded()},
		replies: []string{"", "", `{"type":"flash_sale","message":"Current deals"}`},
	})

	resp, err := f.svc.Reply(context.Background(), ChatRequest{Message: "any deals?"})
	require.NoError(t, err)
	assert.Equal(t, domain.IntentFlashSale, resp.Type)
	assert.Equal(t, "Current deals", resp.Message)
	assert.Equal(t, 3, f.model.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, f.sleeps)
}

func TestChat_PersistentOverloadApologizes(t *testing.T) {
	f := newChatFixture(t, &mockChatModel{errs: []error{overloaded(), overloaded(), overloaded()}})

	resp, err := f.svc.Reply(context.Background(), ChatRequest{Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, domain.IntentText, resp.Type)
	assert.Equal(t, ChatOverloadedReply, resp.Message)
	assert.Equal(t, 3, f.model.calls)
}

func TestChat_OtherErrorsFail(t *testing.T) {
	f := newChatFixture(t, &mockChatModel{errs: []error{errors.New("permission denied")}})

	_, err := f.svc.Reply(context.Background(), ChatRequest{Message: "hello"})
	require.Error(t, err)
	assert.Equal(t, 1, f.model.calls)
	assert.Empty(t, f.sleeps)
}

func TestChat_UnparseableReplyIsText(t *testing.T) {
	f := newChatFixture(t, &mockChatModel{replies: []string{"Sure, happy to help!"}})

	resp, err := f.svc.Reply(context.Background(), ChatRequest{Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, domain.IntentText, resp.Type)
	assert.Equal(t, "Sure, happy to help!", resp.Message)
}

func TestChat_OrderTracking(t *testing.T) {
	f := newChatFixture(t, &mockChatModel{})
	order, err := f.orders.svc.PlaceOrder(context.Background(), f.orders.request(1), "")
	require.NoError(t, err)

	f.model.replies = []string{fmt.Sprintf(`{"type":"order_tracking","message":"","order_number":"%s"}`, order.OrderNumber)}
	resp, err := f.svc.Reply(context.Background(), ChatRequest{Message: "where is my order?"})
	require.NoError(t, err)
	require.NotNil(t, resp.Order)
	assert.Equal(t, domain.OrderStatusPending, resp.Order.Status)
	assert.Equal(t, fmt.Sprintf("Order %s is pending.", order.OrderNumber), resp.Message)

	f.model.calls = 0
	f.model.replies = []string{`{"type":"order_tracking","message":"","order_number":"tn-xx-000001"}`}
	resp, err = f.svc.Reply(context.Background(), ChatRequest{Message: "and this one?"})
	require.NoError(t, err)
	assert.Nil(t, resp.Order)
	assert.Equal(t, "I couldn't find an order with number TN-XX-000001.", resp.Message)
}

func TestChat_Validation(t *testing.T) {
	f := newChatFixture(t, &mockChatModel{})

	_, err := f.svc.Reply(context.Background(), ChatRequest{Message: "  "})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = f.svc.Reply(context.Background(), ChatRequest{Message: "hi", History: []domain.ChatMessage{{Role: "system", Content: "x"}}})
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, f.model.calls)
}

func TestParseChatIntent(t *testing.T) {
	tests := []struct {
		raw  string
		want domain.ChatIntent
	}{
		{"```json\n{\"type\":\"recommendations\",\"message\":\"Top picks\"}\n```",
			domain.ChatIntent{Type: domain.IntentRecommendations, Message: "Top picks"}},
		{`{"type":"category_search","message":"m","category":"Laptops"}`,
			domain.ChatIntent{Type: domain.IntentCategorySearch, Message: "m", Category: "Laptops"}},
		{`{"type":"teleport","message":"m"}`,
			domain.ChatIntent{Type: domain.IntentText, Message: `{"type":"teleport","message":"m"}`}},
		{`{"type":`, domain.ChatIntent{Type: domain.IntentText, Message: `{"type":`}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseChatIntent(tt.raw))
	}
}

func TestChat_HistoryIsTrimmed(t *testing.T) {
	f := newChatFixture(t, &mockChatModel{})
	var history []domain.ChatMessage
	for i := 0; i < 30; i++ {
		history = append(history, domain.ChatMessage{Role: domain.ChatRoleUser, Content: fmt.Sprintf("m%d", i)})
	}

	_, err := f.svc.Reply(context.Background(), ChatRequest{Message: "latest", History: history})
	require.NoError(t, err)
	require.Len(t, f.model.lastSeen, maxChatHistory+1)
	assert.Equal(t, "m10", f.model.lastSeen[0].Content)
}
