package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/technirvor/storefront/internal/core/domain"
)

const userColumns = `id, name, email, phone, role, password_hash, created_at`

func scanUser(row rowScanner) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.Role, &u.PasswordHash, &u.CreatedAt)
	return u, err
}

func (m *MySQLAdapter) queryUsers(ctx context.Context, query string, args ...any) ([]domain.User, error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) ListUsers(ctx context.Context, f domain.UserFilter) ([]domain.User, int, error) {
	where := []string{"1=1"}
	var args []any
	if f.Role != "" {
		where = append(where, "role = ?")
		args = append(args, f.Role)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		where = append(where, "("+likeCmp("name")+" OR "+likeCmp("email")+" OR "+likeCmp("phone")+")")
		args = append(args, likePattern(s), likePattern(s), likePattern(s))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := "SELECT " + userColumns + " FROM users WHERE " + cond + " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset())
	}
	users, err := m.queryUsers(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (m *MySQLAdapter) ListAdmins(ctx context.Context) ([]domain.User, error) {
	return m.queryUsers(ctx, "SELECT "+userColumns+" FROM users WHERE role = ? ORDER BY created_at", domain.RoleAdmin)
}

func (m *MySQLAdapter) getUserWhere(ctx context.Context, cond string, arg any) (*domain.User, error) {
	u, err := scanUser(m.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+cond, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}

func (m *MySQLAdapter) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return m.getUserWhere(ctx, "id = ?", id)
}

func (m *MySQLAdapter) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return m.getUserWhere(ctx, "email = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (m *MySQLAdapter) CreateUser(ctx context.Context, u domain.User) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, strings.ToLower(strings.TrimSpace(u.Email)), u.Phone, u.Role, u.PasswordHash, u.CreatedAt.UTC(),
	)
	if isDuplicateKey(err) {
		return domain.ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) UpdateUserRole(ctx context.Context, id string, role domain.Role) error {
	if err := expectOne(m.db.ExecContext(ctx, `UPDATE users SET role = ? WHERE id = ?`, role, id)); err != nil {
		return fmt.Errorf("update user %s: %w", id, err)
	}
	return nil
}

func (m *MySQLAdapter) DeleteUser(ctx context.Context, id string) error {
	if err := expectOne(m.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)); err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	return nil
}
