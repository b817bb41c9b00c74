package service

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/technirvor/storefront/internal/core/domain"
)

type orderRow struct {
	OrderNumber    string `csv:"order_number"`
	CreatedAt      string `csv:"created_at"`
	Status         string `csv:"status"`
	CustomerName   string `csv:"customer_name"`
	CustomerPhone  string `csv:"customer_phone"`
	District       string `csv:"district"`
	Address        string `csv:"address"`
	PaymentMethod  string `csv:"payment_method"`
	Items          string `csv:"items"`
	Quantity       int    `csv:"quantity"`
	Subtotal       string `csv:"subtotal"`
	Discount       string `csv:"discount"`
	CouponCode     string `csv:"coupon_code"`
	DeliveryCharge string `csv:"delivery_charge"`
	TotalAmount    string `csv:"total_amount"`
}

// ExportOrdersCSV writes one row per order with its items flattened into a
// single "name x qty; ..." column.
func ExportOrdersCSV(w io.Writer, orders []domain.Order) error {
	rows := make([]*orderRow, 0, len(orders))
	for _, o := range orders {
		names := make([]string, 0, len(o.Items))
		qty := 0
		for _, it := range o.Items {
			names = append(names, fmt.Sprintf("%s x %d", it.ProductName, it.Quantity))
			qty += it.Quantity
		}
		rows = append(rows, &orderRow{
			OrderNumber:    o.OrderNumber,
			CreatedAt:      o.CreatedAt.UTC().Format(time.RFC3339),
			Status:         string(o.Status),
			CustomerName:   o.CustomerName,
			CustomerPhone:  o.CustomerPhone,
			District:       o.District,
			Address:        o.Address,
			PaymentMethod:  o.PaymentMethod,
			Items:          strings.Join(names, "; "),
			Quantity:       qty,
			Subtotal:       o.Subtotal().StringFixed(2),
			Discount:       o.DiscountAmount.StringFixed(2),
			CouponCode:     o.CouponCode,
			DeliveryCharge: o.DeliveryCharge.StringFixed(2),
			TotalAmount:    o.TotalAmount.StringFixed(2),
		})
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("write orders csv: %w", err)
	}
	return nil
}
