package domain

import "time"

// ComboProduct bundles products at a combined price. Stock stays with the
// constituent products.
type ComboProduct struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Slug        string      `json:"slug"`
	Description string      `json:"description"`
	ImageURL    string      `json:"image_url"`
	ComboPrice  Money       `json:"combo_price"`
	IsActive    bool        `json:"is_active"`
	Items       []ComboItem `json:"items"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

type ComboItem struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`
	UnitPrice   Money  `json:"unit_price"`
	Quantity    int    `json:"quantity"`
}

// OriginalPrice is what the items would cost bought separately.
func (c ComboProduct) OriginalPrice() Money {
	total := Taka(0)
	for _, it := range c.Items {
		total = total.Add(it.UnitPrice.Mul(Taka(int64(it.Quantity))))
	}
	return total
}

func (c ComboProduct) DiscountPercent() int {
	return DiscountPercent(c.OriginalPrice(), c.ComboPrice)
}

func (c ComboProduct) Savings() Money {
	return Savings(c.OriginalPrice(), c.ComboPrice)
}
