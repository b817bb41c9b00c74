package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/technirvor/storefront/internal/core/domain"
)

// MySQLAdapter implements the database ports over database/sql. Queries are
// kept to the dialect subset MySQL and SQLite share.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

// OpenMySQL opens and pings a pooled MySQL handle.
func OpenMySQL(ctx context.Context, dsn string, maxOpen, maxIdle int, maxLifetime time.Duration) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS categories (
		id VARCHAR(36) PRIMARY KEY,
		name VARCHAR(120) NOT NULL,
		slug VARCHAR(160) NOT NULL UNIQUE,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id VARCHAR(36) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		slug VARCHAR(255) NOT NULL UNIQUE,
		description TEXT NOT NULL,
		image_url VARCHAR(1024) NOT NULL DEFAULT '',
		price DECIMAL(12,2) NOT NULL,
		sale_price DECIMAL(12,2) NULL,
		stock INT NOT NULL DEFAULT 0,
		is_featured BOOLEAN NOT NULL DEFAULT 0,
		is_flash_sale BOOLEAN NOT NULL DEFAULT 0,
		flash_sale_end DATETIME NULL,
		category_id VARCHAR(36) NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		CHECK (stock >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS districts (
		id VARCHAR(36) PRIMARY KEY,
		name VARCHAR(120) NOT NULL UNIQUE,
		delivery_charge DECIMAL(12,2) NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id VARCHAR(36) PRIMARY KEY,
		order_number VARCHAR(32) NOT NULL UNIQUE,
		customer_name VARCHAR(255) NOT NULL,
		customer_phone VARCHAR(20) NOT NULL,
		district VARCHAR(120) NOT NULL,
		address TEXT NOT NULL,
		payment_method VARCHAR(40) NOT NULL,
		delivery_charge DECIMAL(12,2) NOT NULL DEFAULT 0,
		coupon_code VARCHAR(40) NULL,
		discount_amount DECIMAL(12,2) NOT NULL DEFAULT 0,
		total_amount DECIMAL(12,2) NOT NULL,
		status VARCHAR(20) NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id VARCHAR(36) PRIMARY KEY,
		order_id VARCHAR(36) NOT NULL,
		product_id VARCHAR(36) NOT NULL,
		product_name VARCHAR(255) NOT NULL,
		quantity INT NOT NULL,
		price DECIMAL(12,2) NOT NULL,
		FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS order_tracking_notes (
		id VARCHAR(36) PRIMARY KEY,
		order_id VARCHAR(36) NOT NULL,
		status VARCHAR(20) NOT NULL,
		note TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS combo_products (
		id VARCHAR(36) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		slug VARCHAR(255) NOT NULL UNIQUE,
		description TEXT NOT NULL,
		image_url VARCHAR(1024) NOT NULL DEFAULT '',
		combo_price DECIMAL(12,2) NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS combo_product_items (
		combo_id VARCHAR(36) NOT NULL,
		product_id VARCHAR(36) NOT NULL,
		quantity INT NOT NULL,
		PRIMARY KEY (combo_id, product_id),
		FOREIGN KEY (combo_id) REFERENCES combo_products(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(36) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL UNIQUE,
		phone VARCHAR(20) NOT NULL DEFAULT '',
		role VARCHAR(20) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id VARCHAR(36) PRIMARY KEY,
		user_id VARCHAR(36) NOT NULL,
		title VARCHAR(255) NOT NULL,
		message TEXT NOT NULL,
		type VARCHAR(40) NOT NULL,
		is_read BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS coupons (
		id VARCHAR(36) PRIMARY KEY,
		code VARCHAR(40) NOT NULL UNIQUE,
		discount_type VARCHAR(20) NOT NULL,
		discount_value DECIMAL(12,2) NOT NULL,
		min_order_amount DECIMAL(12,2) NOT NULL DEFAULT 0,
		max_uses INT NOT NULL DEFAULT 0,
		used_count INT NOT NULL DEFAULT 0,
		expires_at DATETIME NULL,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rewards (
		id VARCHAR(36) PRIMARY KEY,
		user_id VARCHAR(36) NOT NULL,
		points INT NOT NULL,
		reason VARCHAR(255) NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS contact_messages (
		id VARCHAR(36) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		phone VARCHAR(20) NOT NULL DEFAULT '',
		email VARCHAR(255) NOT NULL DEFAULT '',
		subject VARCHAR(255) NOT NULL,
		body TEXT NOT NULL,
		status VARCHAR(20) NOT NULL,
		created_at DATETIME NOT NULL
	)`,
}

var indexes = []struct{ name, table, columns string }{
	{"idx_products_category", "products", "category_id"},
	{"idx_products_flash_sale", "products", "is_flash_sale, flash_sale_end"},
	{"idx_orders_status_created", "orders", "status, created_at"},
	{"idx_orders_created", "orders", "created_at"},
	{"idx_order_items_order", "order_items", "order_id"},
	{"idx_tracking_notes_order", "order_tracking_notes", "order_id, created_at"},
	{"idx_notifications_user", "notifications", "user_id, is_read"},
	{"idx_rewards_user", "rewards", "user_id"},
	{"idx_users_role", "users", "role"},
}

// Migrate creates missing tables and indexes.
func (m *MySQLAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	_, isMySQL := m.db.Driver().(*mysql.MySQLDriver)
	for _, idx := range indexes {
		stmt := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", idx.name, idx.table, idx.columns)
		if !isMySQL {
			stmt = fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", idx.name, idx.table, idx.columns)
		}
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			var myErr *mysql.MySQLError
			if errors.As(err, &myErr) && myErr.Number == 1061 {
				continue
			}
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	return nil
}

func (m *MySQLAdapter) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// isDuplicateKey reports a unique constraint violation.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	// sqlite
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isLockConflict reports an InnoDB deadlock (1213) or lock wait timeout
// (1205). Either rolls back the statement's transaction.
func isLockConflict(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1213 || myErr.Number == 1205
	}
	return false
}

// expectOne turns a zero-row write into domain.ErrNotFound.
func expectOne(result sql.Result, err error) error {
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

// likePattern matches term anywhere in a column compared with likeCmp.
// Wildcards typed by the user match literally.
func likePattern(term string) string {
	return "%" + likeEscaper.Replace(strings.TrimSpace(term)) + "%"
}

// likeCmp is the LIKE comparison for col. '!' is the escape character
// since MySQL and sqlite read a backslash literal differently.
func likeCmp(col string) string {
	return col + " LIKE ? ESCAPE '!'"
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
