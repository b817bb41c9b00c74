package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/technirvor/storefront/internal/core/domain"
)

const comboColumns = `id, name, slug, description, image_url, combo_price, is_active, created_at, updated_at`

func scanCombo(row rowScanner) (domain.ComboProduct, error) {
	var c domain.ComboProduct
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.ImageURL, &c.ComboPrice,
		&c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (m *MySQLAdapter) ListCombos(ctx context.Context, activeOnly bool) ([]domain.ComboProduct, error) {
	query := "SELECT " + comboColumns + " FROM combo_products"
	var args []any
	if activeOnly {
		query += " WHERE is_active = ?"
		args = append(args, true)
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query combos: %w", err)
	}
	var combos []domain.ComboProduct
	for rows.Next() {
		c, err := scanCombo(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan combo: %w", err)
		}
		combos = append(combos, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ids := make([]string, len(combos))
	for i, c := range combos {
		ids[i] = c.ID
	}
	items, err := m.comboItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range combos {
		combos[i].Items = items[combos[i].ID]
	}
	return combos, nil
}

func (m *MySQLAdapter) getComboWhere(ctx context.Context, cond string, arg any) (*domain.ComboProduct, error) {
	c, err := scanCombo(m.db.QueryRowContext(ctx, "SELECT "+comboColumns+" FROM combo_products WHERE "+cond, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query combo: %w", err)
	}
	items, err := m.comboItems(ctx, []string{c.ID})
	if err != nil {
		return nil, err
	}
	c.Items = items[c.ID]
	return &c, nil
}

func (m *MySQLAdapter) GetCombo(ctx context.Context, id string) (*domain.ComboProduct, error) {
	return m.getComboWhere(ctx, "id = ?", id)
}

func (m *MySQLAdapter) GetComboBySlug(ctx context.Context, slug string) (*domain.ComboProduct, error) {
	return m.getComboWhere(ctx, "slug = ?", slug)
}

// comboItems loads items for the given combos, priced at the products' list price.
func (m *MySQLAdapter) comboItems(ctx context.Context, comboIDs []string) (map[string][]domain.ComboItem, error) {
	out := make(map[string][]domain.ComboItem, len(comboIDs))
	if len(comboIDs) == 0 {
		return out, nil
	}
	rows, err := m.db.QueryContext(ctx, `
		SELECT ci.combo_id, ci.product_id, p.name, p.price, ci.quantity
		FROM combo_product_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.combo_id IN (`+placeholders(len(comboIDs))+`)
		ORDER BY p.name`, stringArgs(comboIDs)...)
	if err != nil {
		return nil, fmt.Errorf("query combo items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			comboID string
			it      domain.ComboItem
		)
		if err := rows.Scan(&comboID, &it.ProductID, &it.ProductName, &it.UnitPrice, &it.Quantity); err != nil {
			return nil, fmt.Errorf("scan combo item: %w", err)
		}
		out[comboID] = append(out[comboID], it)
	}
	return out, rows.Err()
}

func insertComboItems(ctx context.Context, tx execer, c domain.ComboProduct) error {
	for _, it := range c.Items {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO combo_product_items (combo_id, product_id, quantity) VALUES (?, ?, ?)`,
			c.ID, it.ProductID, it.Quantity,
		); err != nil {
			return fmt.Errorf("insert combo item: %w", err)
		}
	}
	return nil
}

func (m *MySQLAdapter) CreateCombo(ctx context.Context, c domain.ComboProduct) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO combo_products (`+comboColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Slug, c.Description, c.ImageURL, c.ComboPrice, c.IsActive,
		c.CreatedAt.UTC(), c.UpdatedAt.UTC(),
	)
	if isDuplicateKey(err) {
		return domain.ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("insert combo: %w", err)
	}
	if err := insertComboItems(ctx, tx, c); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateCombo rewrites the combo row and replaces its items.
func (m *MySQLAdapter) UpdateCombo(ctx context.Context, c domain.ComboProduct) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE combo_products
		SET name = ?, slug = ?, description = ?, image_url = ?, combo_price = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		c.Name, c.Slug, c.Description, c.ImageURL, c.ComboPrice, c.IsActive, c.UpdatedAt.UTC(), c.ID,
	)
	if isDuplicateKey(err) {
		return domain.ErrDuplicateKey
	}
	if err := expectOne(result, err); err != nil {
		return fmt.Errorf("update combo %s: %w", c.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM combo_product_items WHERE combo_id = ?`, c.ID); err != nil {
		return fmt.Errorf("clear combo items: %w", err)
	}
	if err := insertComboItems(ctx, tx, c); err != nil {
		return err
	}
	return tx.Commit()
}

func (m *MySQLAdapter) DeleteCombo(ctx context.Context, id string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM combo_product_items WHERE combo_id = ?`, id); err != nil {
		return fmt.Errorf("delete combo items: %w", err)
	}
	if err := expectOne(tx.ExecContext(ctx, `DELETE FROM combo_products WHERE id = ?`, id)); err != nil {
		return fmt.Errorf("delete combo %s: %w", id, err)
	}
	return tx.Commit()
}
