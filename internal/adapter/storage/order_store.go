package storage

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/technirvor/storefront/internal/core/domain"
)

const orderColumns = `id, order_number, customer_name, customer_phone, district, address, payment_method,
	delivery_charge, coupon_code, discount_amount, total_amount, status, created_at, updated_at`

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		o      domain.Order
		coupon sql.NullString
	)
	err := row.Scan(&o.ID, &o.OrderNumber, &o.CustomerName, &o.CustomerPhone, &o.District, &o.Address,
		&o.PaymentMethod, &o.DeliveryCharge, &coupon, &o.DiscountAmount, &o.TotalAmount, &o.Status,
		&o.CreatedAt, &o.UpdatedAt)
	o.CouponCode = coupon.String
	return o, err
}

// CreateOrder writes the order, its items and note, and takes the stock in
// one transaction. A deadlock or lock wait timeout comes back as
// domain.ErrLockConflict so the caller may retry.
func (m *MySQLAdapter) CreateOrder(ctx context.Context, order domain.Order, note domain.OrderTrackingNote) error {
	err := m.createOrder(ctx, order, note)
	if isLockConflict(err) {
		return fmt.Errorf("%w: %v", domain.ErrLockConflict, err)
	}
	return err
}

func (m *MySQLAdapter) createOrder(ctx context.Context, order domain.Order, note domain.OrderTrackingNote) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.OrderNumber, order.CustomerName, order.CustomerPhone, order.District, order.Address,
		order.PaymentMethod, order.DeliveryCharge, nullString(order.CouponCode), order.DiscountAmount,
		order.TotalAmount, order.Status, order.CreatedAt.UTC(), order.UpdatedAt.UTC(),
	)
	if isDuplicateKey(err) {
		return domain.ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	// Rows are locked in product id order so two orders naming the same
	// products in a different order cannot deadlock each other.
	items := slices.Clone(order.Items)
	slices.SortStableFunc(items, func(a, b domain.OrderItem) int {
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	for _, it := range items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, product_name, quantity, price)
			VALUES (?, ?, ?, ?, ?, ?)`,
			it.ID, order.ID, it.ProductID, it.ProductName, it.Quantity, it.Price,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - ?, updated_at = ?
			WHERE id = ? AND stock >= ?`,
			it.Quantity, order.CreatedAt.UTC(), it.ProductID, it.Quantity,
		)
		if err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if rows == 0 {
			return stockShortfall(ctx, tx, it)
		}
	}

	if order.CouponCode != "" {
		result, err := tx.ExecContext(ctx, `
			UPDATE coupons
			SET used_count = used_count + 1
			WHERE code = ? AND is_active = ? AND (max_uses = 0 OR used_count < max_uses)`,
			order.CouponCode, true,
		)
		if err != nil {
			return fmt.Errorf("redeem coupon: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if rows == 0 {
			return domain.ErrCouponUnavailable
		}
	}

	if err := insertNote(ctx, tx, note); err != nil {
		return err
	}
	return tx.Commit()
}

// stockShortfall explains a failed conditional decrement.
func stockShortfall(ctx context.Context, tx *sql.Tx, it domain.OrderItem) error {
	var (
		name  string
		stock int
	)
	err := tx.QueryRowContext(ctx, `SELECT name, stock FROM products WHERE id = ?`, it.ProductID).Scan(&name, &stock)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("product %s: %w", it.ProductID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("query stock: %w", err)
	}
	return &domain.StockError{
		ProductID:   it.ProductID,
		ProductName: name,
		Available:   stock,
		Requested:   it.Quantity,
	}
}

func insertNote(ctx context.Context, tx execer, note domain.OrderTrackingNote) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO order_tracking_notes (id, order_id, status, note, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		note.ID, note.OrderID, note.Status, note.Note, note.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert tracking note: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) getOrderWhere(ctx context.Context, cond string, arg any) (*domain.Order, error) {
	o, err := scanOrder(m.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE "+cond, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	items, err := m.orderItems(ctx, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return &o, nil
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return m.getOrderWhere(ctx, "id = ?", id)
}

func (m *MySQLAdapter) GetOrderByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	return m.getOrderWhere(ctx, "order_number = ?", strings.ToUpper(strings.TrimSpace(orderNumber)))
}

func (m *MySQLAdapter) ListOrders(ctx context.Context, f domain.OrderFilter) ([]domain.Order, int, error) {
	where := []string{"1=1"}
	var args []any
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		where = append(where, "("+likeCmp("customer_name")+" OR "+likeCmp("customer_phone")+")")
		args = append(args, likePattern(s), likePattern(s))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	query := "SELECT " + orderColumns + " FROM orders WHERE " + cond + " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset())
	}
	orders, err := m.queryOrders(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (m *MySQLAdapter) ListOrdersBetween(ctx context.Context, from, to time.Time) ([]domain.Order, error) {
	return m.queryOrders(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE created_at >= ? AND created_at < ? ORDER BY created_at, id",
		from.UTC(), to.UTC(),
	)
}

// queryOrders reads the order rows first and releases the cursor before
// loading items, so a single-connection pool never waits on itself.
func (m *MySQLAdapter) queryOrders(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	items, err := m.orderItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func (m *MySQLAdapter) orderItems(ctx context.Context, orderIDs []string) (map[string][]domain.OrderItem, error) {
	out := make(map[string][]domain.OrderItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, quantity, price
		FROM order_items
		WHERE order_id IN (`+placeholders(len(orderIDs))+`)
		ORDER BY order_id, product_name`, stringArgs(orderIDs)...)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.Price); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) UpdateOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus, note domain.OrderTrackingNote) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, note.CreatedAt.UTC(), id, from,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE id = ?`, id).Scan(&n); err != nil {
			return fmt.Errorf("query order: %w", err)
		}
		if n == 0 {
			return domain.ErrNotFound
		}
		return domain.ErrStatusConflict
	}

	if err := insertNote(ctx, tx, note); err != nil {
		return err
	}
	return tx.Commit()
}

func (m *MySQLAdapter) AddTrackingNote(ctx context.Context, note domain.OrderTrackingNote) error {
	return insertNote(ctx, m.db, note)
}

func (m *MySQLAdapter) ListTrackingNotes(ctx context.Context, orderID string) ([]domain.OrderTrackingNote, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, order_id, status, note, created_at
		FROM order_tracking_notes
		WHERE order_id = ?
		ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query tracking notes: %w", err)
	}
	defer rows.Close()

	var out []domain.OrderTrackingNote
	for rows.Next() {
		var n domain.OrderTrackingNote
		if err := rows.Scan(&n.ID, &n.OrderID, &n.Status, &n.Note, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tracking note: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
