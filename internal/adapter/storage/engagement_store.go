package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/technirvor/storefront/internal/core/domain"
)

// Notifications

func (m *MySQLAdapter) CreateNotifications(ctx context.Context, notes []domain.Notification) error {
	if len(notes) == 0 {
		return nil
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, n := range notes {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO notifications (id, user_id, title, message, type, is_read, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			n.ID, n.UserID, n.Title, n.Message, n.Type, n.IsRead, n.CreatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}
	}
	return tx.Commit()
}

func (m *MySQLAdapter) ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, user_id, title, message, type, is_read, created_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) CountUnread(ctx context.Context, userID string) (int, error) {
	var n int
	err := m.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = ?`, userID, false,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

// MarkRead only touches notifications owned by userID.
func (m *MySQLAdapter) MarkRead(ctx context.Context, userID, id string) error {
	err := expectOne(m.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = ? WHERE id = ? AND user_id = ?`, true, id, userID))
	if err != nil {
		return fmt.Errorf("mark notification %s: %w", id, err)
	}
	return nil
}

func (m *MySQLAdapter) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	result, err := m.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = ? WHERE user_id = ? AND is_read = ?`, true, userID, false)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return result.RowsAffected()
}

// Coupons

const couponColumns = `id, code, discount_type, discount_value, min_order_amount, max_uses, used_count,
	expires_at, is_active, created_at`

func scanCoupon(row rowScanner) (domain.Coupon, error) {
	var (
		c       domain.Coupon
		expires sql.NullTime
	)
	err := row.Scan(&c.ID, &c.Code, &c.DiscountType, &c.Value, &c.MinOrderAmount, &c.MaxUses, &c.UsedCount,
		&expires, &c.IsActive, &c.CreatedAt)
	c.ExpiresAt = timePtr(expires)
	return c, err
}

func (m *MySQLAdapter) ListCoupons(ctx context.Context) ([]domain.Coupon, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT "+couponColumns+" FROM coupons ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("query coupons: %w", err)
	}
	defer rows.Close()

	var out []domain.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("scan coupon: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) getCouponWhere(ctx context.Context, cond string, arg any) (*domain.Coupon, error) {
	c, err := scanCoupon(m.db.QueryRowContext(ctx, "SELECT "+couponColumns+" FROM coupons WHERE "+cond, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query coupon: %w", err)
	}
	return &c, nil
}

func (m *MySQLAdapter) GetCoupon(ctx context.Context, id string) (*domain.Coupon, error) {
	return m.getCouponWhere(ctx, "id = ?", id)
}

func (m *MySQLAdapter) GetCouponByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	return m.getCouponWhere(ctx, "code = ?", domain.NormalizeCouponCode(code))
}

func (m *MySQLAdapter) CreateCoupon(ctx context.Context, c domain.Coupon) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO coupons (`+couponColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, domain.NormalizeCouponCode(c.Code), c.DiscountType, c.Value, c.MinOrderAmount, c.MaxUses,
		c.UsedCount, nullTime(c.ExpiresAt), c.IsActive, c.CreatedAt.UTC(),
	)
	if isDuplicateKey(err) {
		return domain.ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("insert coupon: %w", err)
	}
	return nil
}

// UpdateCoupon leaves used_count alone; only orders advance it.
func (m *MySQLAdapter) UpdateCoupon(ctx context.Context, c domain.Coupon) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE coupons
		SET code = ?, discount_type = ?, discount_value = ?, min_order_amount = ?, max_uses = ?,
			expires_at = ?, is_active = ?
		WHERE id = ?`,
		domain.NormalizeCouponCode(c.Code), c.DiscountType, c.Value, c.MinOrderAmount, c.MaxUses,
		nullTime(c.ExpiresAt), c.IsActive, c.ID,
	)
	if isDuplicateKey(err) {
		return domain.ErrDuplicateKey
	}
	if err := expectOne(result, err); err != nil {
		return fmt.Errorf("update coupon %s: %w", c.ID, err)
	}
	return nil
}

func (m *MySQLAdapter) DeleteCoupon(ctx context.Context, id string) error {
	if err := expectOne(m.db.ExecContext(ctx, `DELETE FROM coupons WHERE id = ?`, id)); err != nil {
		return fmt.Errorf("delete coupon %s: %w", id, err)
	}
	return nil
}

// Rewards

func (m *MySQLAdapter) CreateReward(ctx context.Context, r domain.Reward) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO rewards (id, user_id, points, reason, created_at) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.Points, r.Reason, r.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert reward: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) ListRewards(ctx context.Context, userID string) ([]domain.Reward, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, user_id, points, reason, created_at
		FROM rewards
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query rewards: %w", err)
	}
	defer rows.Close()

	var out []domain.Reward
	for rows.Next() {
		var r domain.Reward
		if err := rows.Scan(&r.ID, &r.UserID, &r.Points, &r.Reason, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) RewardBalance(ctx context.Context, userID string) (int, error) {
	var total sql.NullInt64
	err := m.db.QueryRowContext(ctx, `SELECT SUM(points) FROM rewards WHERE user_id = ?`, userID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum rewards: %w", err)
	}
	return int(total.Int64), nil
}

// Contact messages

func (m *MySQLAdapter) CreateMessage(ctx context.Context, msg domain.ContactMessage) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO contact_messages (id, name, phone, email, subject, body, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.Name, msg.Phone, msg.Email, msg.Subject, msg.Body, msg.Status, msg.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListMessages returns every message when status is empty.
func (m *MySQLAdapter) ListMessages(ctx context.Context, status domain.MessageStatus) ([]domain.ContactMessage, error) {
	query := `SELECT id, name, phone, email, subject, body, status, created_at FROM contact_messages`
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []domain.ContactMessage
	for rows.Next() {
		var msg domain.ContactMessage
		if err := rows.Scan(&msg.ID, &msg.Name, &msg.Phone, &msg.Email, &msg.Subject, &msg.Body,
			&msg.Status, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) UpdateMessageStatus(ctx context.Context, id string, status domain.MessageStatus) error {
	err := expectOne(m.db.ExecContext(ctx, `UPDATE contact_messages SET status = ? WHERE id = ?`, status, id))
	if err != nil {
		return fmt.Errorf("update message %s: %w", id, err)
	}
	return nil
}

func (m *MySQLAdapter) DeleteMessage(ctx context.Context, id string) error {
	if err := expectOne(m.db.ExecContext(ctx, `DELETE FROM contact_messages WHERE id = ?`, id)); err != nil {
		return fmt.Errorf("delete message %s: %w", id, err)
	}
	return nil
}
