package port

import (
	"context"

	"github.com/technirvor/storefront/internal/core/domain"
)

type ChatModel interface {
	// Generate sends the conversation to the hosted model and returns its raw
	// text reply. Overload is reported as domain.ErrModelOverloaded.
	Generate(ctx context.Context, history []domain.ChatMessage) (string, error)
}

type Mailer interface {
	Send(ctx context.Context, to []string, subject, body string) error
}
