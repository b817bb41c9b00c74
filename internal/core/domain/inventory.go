package domain

import "fmt"

// StockError reports an item that cannot be served from current stock.
type StockError struct {
	ProductID   string
	ProductName string
	Available   int
	Requested   int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("Insufficient stock for %s. Available: %d", e.ProductName, e.Available)
}

func (e *StockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// CheckStock returns a StockError when p cannot cover quantity units.
func CheckStock(p Product, quantity int) error {
	if p.Stock >= quantity {
		return nil
	}
	return &StockError{
		ProductID:   p.ID,
		ProductName: p.Name,
		Available:   p.Stock,
		Requested:   quantity,
	}
}
