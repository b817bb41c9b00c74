package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}

type Product struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Slug         string              `json:"slug"`
	Description  string              `json:"description"`
	ImageURL     string              `json:"image_url"`
	Price        Money               `json:"price"`
	SalePrice    decimal.NullDecimal `json:"sale_price"`
	Stock        int                 `json:"stock"`
	IsFeatured   bool                `json:"is_featured"`
	IsFlashSale  bool                `json:"is_flash_sale"`
	FlashSaleEnd *time.Time          `json:"flash_sale_end,omitempty"`
	CategoryID   string              `json:"category_id,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// FlashSaleActive reports whether the sale price applies at now.
func (p Product) FlashSaleActive(now time.Time) bool {
	return p.IsFlashSale && p.SalePrice.Valid && p.FlashSaleEnd != nil && p.FlashSaleEnd.After(now)
}

// EffectivePrice is the unit price a customer pays at now.
func (p Product) EffectivePrice(now time.Time) Money {
	if p.FlashSaleActive(now) {
		return p.SalePrice.Decimal
	}
	return p.Price
}

// DiscountPercent of the running flash sale, 0 when none is active.
func (p Product) DiscountPercent(now time.Time) int {
	if !p.FlashSaleActive(now) {
		return 0
	}
	return DiscountPercent(p.Price, p.SalePrice.Decimal)
}

type ProductFilter struct {
	CategorySlug string
	Search       string
	Featured     bool
	FlashSale    bool
	Now          time.Time
	Page         int
	Limit        int
}

// Offset of the first row on the filter's page.
func (f ProductFilter) Offset() int {
	return offset(f.Page, f.Limit)
}

func offset(page, limit int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit
}
