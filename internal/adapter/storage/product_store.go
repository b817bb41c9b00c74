package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/technirvor/storefront/internal/core/domain"
)

const productColumns = `id, name, slug, description, image_url, price, sale_price, stock,
	is_featured, is_flash_sale, flash_sale_end, category_id, created_at, updated_at`

func scanProduct(row rowScanner) (domain.Product, error) {
	var (
		p          domain.Product
		end        sql.NullTime
		categoryID sql.NullString
	)
	err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.Description, &p.ImageURL, &p.Price, &p.SalePrice,
		&p.Stock, &p.IsFeatured, &p.IsFlashSale, &end, &categoryID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.Product{}, err
	}
	p.FlashSaleEnd = timePtr(end)
	p.CategoryID = categoryID.String
	return p, nil
}

func (m *MySQLAdapter) queryProducts(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) ListProducts(ctx context.Context, f domain.ProductFilter) ([]domain.Product, int, error) {
	where := []string{"1=1"}
	var args []any

	if f.CategorySlug != "" {
		where = append(where, "category_id IN (SELECT id FROM categories WHERE slug = ?)")
		args = append(args, f.CategorySlug)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		where = append(where, "("+likeCmp("name")+" OR "+likeCmp("description")+")")
		args = append(args, likePattern(s), likePattern(s))
	}
	if f.Featured {
		where = append(where, "is_featured = ?")
		args = append(args, true)
	}
	if f.FlashSale {
		where = append(where, "is_flash_sale = ? AND sale_price IS NOT NULL AND flash_sale_end > ?")
		args = append(args, true, f.Now.UTC())
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	query := "SELECT " + productColumns + " FROM products WHERE " + cond + " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset())
	}
	products, err := m.queryProducts(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (m *MySQLAdapter) getProductWhere(ctx context.Context, cond string, arg any) (*domain.Product, error) {
	row := m.db.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products WHERE "+cond, arg)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

func (m *MySQLAdapter) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return m.getProductWhere(ctx, "id = ?", id)
}

func (m *MySQLAdapter) GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	return m.getProductWhere(ctx, "slug = ?", slug)
}

func (m *MySQLAdapter) GetProductsByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := "SELECT " + productColumns + " FROM products WHERE id IN (" + placeholders(len(ids)) + ")"
	return m.queryProducts(ctx, query, stringArgs(ids)...)
}

func (m *MySQLAdapter) CreateProduct(ctx context.Context, p domain.Product) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Slug, p.Description, p.ImageURL, p.Price, p.SalePrice, p.Stock,
		p.IsFeatured, p.IsFlashSale, nullTime(p.FlashSaleEnd), nullString(p.CategoryID),
		p.CreatedAt.UTC(), p.UpdatedAt.UTC(),
	)
	if isDuplicateKey(err) {
		return domain.ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) UpdateProduct(ctx context.Context, p domain.Product) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE products
		SET name = ?, slug = ?, description = ?, image_url = ?, price = ?, sale_price = ?,
			stock = ?, is_featured = ?, is_flash_sale = ?, flash_sale_end = ?, category_id = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, p.Slug, p.Description, p.ImageURL, p.Price, p.SalePrice,
		p.Stock, p.IsFeatured, p.IsFlashSale, nullTime(p.FlashSaleEnd), nullString(p.CategoryID), p.UpdatedAt.UTC(),
		p.ID,
	)
	if isDuplicateKey(err) {
		return domain.ErrDuplicateKey
	}
	if err := expectOne(result, err); err != nil {
		return fmt.Errorf("update product %s: %w", p.ID, err)
	}
	return nil
}

func (m *MySQLAdapter) DeleteProduct(ctx context.Context, id string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM combo_product_items WHERE product_id = ?`, id); err != nil {
		return fmt.Errorf("delete combo items: %w", err)
	}
	if err := expectOne(tx.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)); err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	return tx.Commit()
}

func (m *MySQLAdapter) SetFlashSale(ctx context.Context, id string, salePrice domain.Money, end time.Time) error {
	err := expectOne(m.db.ExecContext(ctx, `
		UPDATE products
		SET is_flash_sale = ?, sale_price = ?, flash_sale_end = ?, updated_at = ?
		WHERE id = ?`,
		true, salePrice, end.UTC(), time.Now().UTC(), id,
	))
	if err != nil {
		return fmt.Errorf("set flash sale %s: %w", id, err)
	}
	return nil
}

func (m *MySQLAdapter) ClearFlashSale(ctx context.Context, id string) error {
	err := expectOne(m.db.ExecContext(ctx, `
		UPDATE products
		SET is_flash_sale = ?, sale_price = NULL, flash_sale_end = NULL, updated_at = ?
		WHERE id = ?`,
		false, time.Now().UTC(), id,
	))
	if err != nil {
		return fmt.Errorf("clear flash sale %s: %w", id, err)
	}
	return nil
}

func (m *MySQLAdapter) ExpireFlashSales(ctx context.Context, now time.Time) (int64, error) {
	result, err := m.db.ExecContext(ctx, `
		UPDATE products
		SET is_flash_sale = ?, updated_at = ?
		WHERE is_flash_sale = ? AND flash_sale_end <= ?`,
		false, now.UTC(), true, now.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("expire flash sales: %w", err)
	}
	return result.RowsAffected()
}
