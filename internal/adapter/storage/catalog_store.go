package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/technirvor/storefront/internal/core/domain"
)

func (m *MySQLAdapter) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT id, name, slug, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var out []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) GetCategoryBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	var c domain.Category
	err := m.db.QueryRowContext(ctx,
		`SELECT id, name, slug, created_at FROM categories WHERE slug = ?`, slug,
	).Scan(&c.ID, &c.Name, &c.Slug, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query category: %w", err)
	}
	return &c, nil
}

func (m *MySQLAdapter) CreateCategory(ctx context.Context, c domain.Category) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, slug, created_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.Name, c.Slug, c.CreatedAt.UTC(),
	)
	if isDuplicateKey(err) {
		return domain.ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) UpdateCategory(ctx context.Context, c domain.Category) error {
	result, err := m.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, slug = ? WHERE id = ?`, c.Name, c.Slug, c.ID)
	if isDuplicateKey(err) {
		return domain.ErrDuplicateKey
	}
	if err := expectOne(result, err); err != nil {
		return fmt.Errorf("update category %s: %w", c.ID, err)
	}
	return nil
}

func (m *MySQLAdapter) DeleteCategory(ctx context.Context, id string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE products SET category_id = NULL WHERE category_id = ?`, id); err != nil {
		return fmt.Errorf("detach products: %w", err)
	}
	if err := expectOne(tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)); err != nil {
		return fmt.Errorf("delete category %s: %w", id, err)
	}
	return tx.Commit()
}

func (m *MySQLAdapter) ListDistricts(ctx context.Context) ([]domain.District, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT id, name, delivery_charge FROM districts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query districts: %w", err)
	}
	defer rows.Close()

	var out []domain.District
	for rows.Next() {
		var d domain.District
		if err := rows.Scan(&d.ID, &d.Name, &d.DeliveryCharge); err != nil {
			return nil, fmt.Errorf("scan district: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) getDistrictWhere(ctx context.Context, cond string, arg any) (*domain.District, error) {
	var d domain.District
	err := m.db.QueryRowContext(ctx,
		`SELECT id, name, delivery_charge FROM districts WHERE `+cond, arg,
	).Scan(&d.ID, &d.Name, &d.DeliveryCharge)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query district: %w", err)
	}
	return &d, nil
}

func (m *MySQLAdapter) GetDistrict(ctx context.Context, id string) (*domain.District, error) {
	return m.getDistrictWhere(ctx, "id = ?", id)
}

// GetDistrictByName matches case-insensitively.
func (m *MySQLAdapter) GetDistrictByName(ctx context.Context, name string) (*domain.District, error) {
	return m.getDistrictWhere(ctx, "LOWER(name) = LOWER(?)", name)
}

func (m *MySQLAdapter) CreateDistrict(ctx context.Context, d domain.District) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO districts (id, name, delivery_charge) VALUES (?, ?, ?)`,
		d.ID, d.Name, d.DeliveryCharge,
	)
	if isDuplicateKey(err) {
		return domain.ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("insert district: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) UpdateDistrict(ctx context.Context, d domain.District) error {
	result, err := m.db.ExecContext(ctx,
		`UPDATE districts SET name = ?, delivery_charge = ? WHERE id = ?`, d.Name, d.DeliveryCharge, d.ID)
	if isDuplicateKey(err) {
		return domain.ErrDuplicateKey
	}
	if err := expectOne(result, err); err != nil {
		return fmt.Errorf("update district %s: %w", d.ID, err)
	}
	return nil
}

func (m *MySQLAdapter) DeleteDistrict(ctx context.Context, id string) error {
	if err := expectOne(m.db.ExecContext(ctx, `DELETE FROM districts WHERE id = ?`, id)); err != nil {
		return fmt.Errorf("delete district %s: %w", id, err)
	}
	return nil
}
