package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/technirvor/storefront/internal/core/domain"
	"github.com/technirvor/storefront/internal/port"
)

// Notifier fans new orders out to admin accounts off the request path.
// Delivery is best-effort: a full queue drops the event.
type Notifier struct {
	users         port.UserRepository
	notifications port.NotificationRepository
	mailer        port.Mailer
	adminEmails   []string
	logger        *zap.Logger

	queue   chan domain.Order
	wg      sync.WaitGroup
	closeMu sync.RWMutex
	closed  bool
}

// NewNotifier builds a notifier with a bounded queue. mailer may be nil.
func NewNotifier(users port.UserRepository, notifications port.NotificationRepository, mailer port.Mailer,
	adminEmails []string, queueSize int, logger *zap.Logger) *Notifier {
	return &Notifier{
		users:         users,
		notifications: notifications,
		mailer:        mailer,
		adminEmails:   adminEmails,
		logger:        logger,
		queue:         make(chan domain.Order, queueSize),
	}
}

// Start launches workers draining the queue until Close.
func (n *Notifier) Start(workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		n.wg.Add(1)
		go func(id int) {
			defer n.wg.Done()
			n.workerLoop(id)
		}(i)
	}
}

// OrderPlaced queues order for fan-out without blocking.
func (n *Notifier) OrderPlaced(order domain.Order) {
	n.closeMu.RLock()
	defer n.closeMu.RUnlock()
	if n.closed {
		return
	}

	select {
	case n.queue <- order:
	default:
		n.logger.Warn("notification queue full, dropping",
			zap.String("order_number", order.OrderNumber))
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (n *Notifier) Close() {
	n.closeMu.Lock()
	if n.closed {
		n.closeMu.Unlock()
		return
	}
	n.closed = true
	close(n.queue)
	n.closeMu.Unlock()

	n.wg.Wait()
}

func (n *Notifier) workerLoop(id int) {
	for order := range n.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := n.deliver(ctx, order); err != nil {
			n.logger.Error("order notification failed",
				zap.Int("worker", id),
				zap.String("order_number", order.OrderNumber),
				zap.Error(err))
		}
		cancel()
	}
}

func (n *Notifier) deliver(ctx context.Context, order domain.Order) error {
	admins, err := n.users.ListAdmins(ctx)
	if err != nil {
		return fmt.Errorf("list admins: %w", err)
	}

	title := "New order " + order.OrderNumber
	message := fmt.Sprintf("%s placed an order of %s from %s.",
		order.CustomerName, FormatTaka(order.TotalAmount), order.District)

	now := time.Now().UTC()
	notes := make([]domain.Notification, 0, len(admins))
	for _, admin := range admins {
		notes = append(notes, domain.Notification{
			ID:        uuid.NewString(),
			UserID:    admin.ID,
			Title:     title,
			Message:   message,
			Type:      domain.NotificationTypeOrder,
			CreatedAt: now,
		})
	}
	if err := n.notifications.CreateNotifications(ctx, notes); err != nil {
		return fmt.Errorf("insert notifications: %w", err)
	}

	if n.mailer != nil && len(n.adminEmails) > 0 {
		if err := n.mailer.Send(ctx, n.adminEmails, title, message); err != nil {
			return fmt.Errorf("email admins: %w", err)
		}
	}
	return nil
}
