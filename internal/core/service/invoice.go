package service

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/technirvor/storefront/internal/core/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

var printer = message.NewPrinter(language.English)

// FormatTaka renders an amount with thousands separators, e.g. "৳ 1,250.00".
func FormatTaka(m domain.Money) string {
	return printer.Sprintf("৳ %.2f", m.Round(2).InexactFloat64())
}

var documents = template.Must(template.New("documents").Funcs(template.FuncMap{
	"taka": FormatTaka,
	"date": func(t time.Time) string { return t.Format("02 Jan 2006") },
	"zero": func() domain.Money { return domain.Taka(0) },
	"cod":  func(method string) bool { return method == "" || method == domain.DefaultPaymentMethod },
	"payment": func(method string) string {
		if method == "" {
			method = domain.DefaultPaymentMethod
		}
		return strings.ReplaceAll(method, "_", " ")
	},
	"itemCount": func(items []domain.OrderItem) int {
		n := 0
		for _, it := range items {
			n += it.Quantity
		}
		return n
	},
}).ParseFS(templateFS, "templates/*.html"))

// RenderInvoice writes a printable HTML invoice for order.
func RenderInvoice(w io.Writer, order domain.Order) error {
	if err := documents.ExecuteTemplate(w, "invoice.html", order); err != nil {
		return fmt.Errorf("render invoice: %w", err)
	}
	return nil
}

// RenderLabel writes a shipping label for order. Cash-on-delivery labels
// carry the amount to collect.
func RenderLabel(w io.Writer, order domain.Order) error {
	if err := documents.ExecuteTemplate(w, "label.html", order); err != nil {
		return fmt.Errorf("render label: %w", err)
	}
	return nil
}
