package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/technirvor/storefront/internal/adapter/storage"
	"github.com/technirvor/storefront/internal/adapter/storage/storagetest"
	"github.com/technirvor/storefront/internal/core/domain"
)

func newCatalog(t *testing.T) (*CatalogService, *AdminService, *storage.MySQLAdapter) {
	t.Helper()
	repo, _ := storagetest.NewSQLite(t)
	catalog := NewCatalogService(repo, repo, repo, repo, repo)
	admin := NewAdminService(repo, repo, repo, repo, repo, zap.NewNop())
	return catalog, admin, repo
}

func seedCoupon(t *testing.T, repo *storage.MySQLAdapter, c domain.Coupon) {
	t.Helper()
	c.ID = uuid.NewString()
	c.IsActive = true
	c.CreatedAt = time.Now().UTC()
	require.NoError(t, repo.CreateCoupon(context.Background(), c))
}

func TestCatalog_FlashSaleView(t *testing.T) {
	catalog, admin, repo := newCatalog(t)
	ctx := context.Background()
	mouse := storagetest.SeedProduct(t, repo, "Gaming Mouse", 1000, 5)
	storagetest.SeedProduct(t, repo, "Mouse Pad", 300, 5)

	view, err := admin.SetFlashSale(ctx, mouse.ID, FlashSaleInput{SalePrice: domain.Taka(750), EndsAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.True(t, view.FlashSaleActive)
	assert.Equal(t, 25, view.DiscountPercent)

	sale, err := catalog.FlashSaleProducts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sale, 1)
	assert.True(t, sale[0].EffectivePrice.Equal(domain.Taka(750)))

	got, err := catalog.GetProduct(ctx, mouse.Slug)
	require.NoError(t, err)
	assert.True(t, got.FlashSaleActive)

	_, err = catalog.GetProduct(ctx, "no-such-product")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCatalog_ProductsInCategory(t *testing.T) {
	catalog, admin, _ := newCatalog(t)
	ctx := context.Background()

	cat, err := admin.CreateCategory(ctx, CategoryInput{Name: "Gaming Gear"})
	require.NoError(t, err)
	assert.Equal(t, "gaming-gear", cat.Slug)

	_, err = admin.CreateProduct(ctx, ProductInput{Name: "Headset", Price: domain.Taka(3200), Stock: 4, CategoryID: cat.ID})
	require.NoError(t, err)
	_, err = admin.CreateProduct(ctx, ProductInput{Name: "Router", Price: domain.Taka(2100), Stock: 4})
	require.NoError(t, err)

	for _, query := range []string{"gaming-gear", "Gaming Gear", "gaming gear"} {
		products, err := catalog.ProductsInCategory(ctx, query, 10)
		require.NoError(t, err)
		require.Len(t, products, 1, query)
		assert.Equal(t, "Headset", products[0].Name)
	}

	products, err := catalog.ProductsInCategory(ctx, "Furniture", 10)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestCatalog_Quote(t *testing.T) {
	catalog, _, repo := newCatalog(t)
	ctx := context.Background()
	ssd := storagetest.SeedProduct(t, repo, "SSD 1TB", 6500, 2)
	cable := storagetest.SeedProduct(t, repo, "USB-C Cable", 250, 10)
	storagetest.SeedDistrict(t, repo, "Chattogram", 120)
	seedCoupon(t, repo, domain.Coupon{Code: "SAVE200", DiscountType: domain.DiscountFixed, Value: domain.Taka(200), MinOrderAmount: domain.Taka(1000)})

	quote, err := catalog.Quote(ctx, QuoteRequest{
		Items: []domain.CartItem{
			{ProductID: ssd.ID, Quantity: 1},
			{ProductID: cable.ID, Quantity: 2},
			{ProductID: ssd.ID, Quantity: 2},
			{ProductID: "ghost", Quantity: 1},
		},
		District:   "chattogram",
		CouponCode: "save200",
	})
	require.NoError(t, err)

	require.Len(t, quote.Lines, 2)
	assert.Equal(t, 3, quote.Lines[0].Quantity)
	assert.False(t, quote.Lines[0].InStock)
	assert.Equal(t, 2, quote.Lines[0].Available)
	assert.True(t, quote.Lines[1].InStock)
	assert.Equal(t, []string{"ghost"}, quote.Missing)
	assert.True(t, quote.Subtotal.Equal(domain.Taka(19500+500)))
	assert.True(t, quote.DeliveryCharge.Equal(domain.Taka(120)))
	assert.True(t, quote.Discount.Equal(domain.Taka(200)))
	assert.True(t, quote.Total.Equal(domain.Taka(20000-200+120)))

	_, err = catalog.Quote(ctx, QuoteRequest{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Cart is empty", verr.Message)

	_, err = catalog.Quote(ctx, QuoteRequest{Items: []domain.CartItem{{ProductID: cable.ID, Quantity: 1}}, District: "Nowhere"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Invalid district", verr.Message)
}

func TestCatalog_ValidateCoupon(t *testing.T) {
	catalog, _, repo := newCatalog(t)
	ctx := context.Background()
	past := time.Now().Add(-time.Hour)
	seedCoupon(t, repo, domain.Coupon{Code: "HALF", DiscountType: domain.DiscountPercentage, Value: domain.Taka(50)})
	seedCoupon(t, repo, domain.Coupon{Code: "BIG", DiscountType: domain.DiscountFixed, Value: domain.Taka(5000)})
	seedCoupon(t, repo, domain.Coupon{Code: "OLD", DiscountType: domain.DiscountFixed, Value: domain.Taka(10), ExpiresAt: &past})
	seedCoupon(t, repo, domain.Coupon{Code: "MIN", DiscountType: domain.DiscountFixed, Value: domain.Taka(10), MinOrderAmount: domain.Taka(2000)})

	check, err := catalog.ValidateCoupon(ctx, "half", domain.Taka(999))
	require.NoError(t, err)
	assert.Equal(t, "HALF", check.Code)
	assert.True(t, check.Discount.Equal(decimal.RequireFromString("499.5")))

	check, err = catalog.ValidateCoupon(ctx, "BIG", domain.Taka(1200))
	require.NoError(t, err)
	assert.True(t, check.Discount.Equal(domain.Taka(1200)), "discount is capped at the subtotal")
	assert.True(t, check.Total.IsZero())

	for code, want := range map[string]string{
		"OLD":  "Coupon has expired",
		"MIN":  "Order does not meet the coupon minimum",
		"NOPE": "Invalid coupon code",
		"    ": "Coupon code is required",
	} {
		_, err := catalog.ValidateCoupon(ctx, code, domain.Taka(1000))
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, code)
		assert.Equal(t, want, verr.Message, code)
	}
}

func TestCatalog_Combos(t *testing.T) {
	catalog, admin, repo := newCatalog(t)
	ctx := context.Background()
	pc := storagetest.SeedProduct(t, repo, "Mini PC", 30000, 3)
	monitor := storagetest.SeedProduct(t, repo, "Monitor", 15000, 3)

	_, err := admin.CreateCombo(ctx, ComboInput{Name: "Solo", ComboPrice: domain.Taka(1), Items: []domain.CartItem{{ProductID: pc.ID, Quantity: 2}}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "A combo needs at least two products", verr.Message)

	combo, err := admin.CreateCombo(ctx, ComboInput{
		Name:       "Desk Setup",
		ComboPrice: domain.Taka(40500),
		Items:      []domain.CartItem{{ProductID: pc.ID, Quantity: 1}, {ProductID: monitor.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, "desk-setup", combo.Slug)
	assert.True(t, combo.OriginalPrice.Equal(domain.Taka(45000)))
	assert.Equal(t, 10, combo.DiscountPercent)
	assert.True(t, combo.Savings.Equal(domain.Taka(4500)))

	got, err := catalog.GetCombo(ctx, "desk-setup")
	require.NoError(t, err)
	assert.Len(t, got.Items, 2)

	inactive := false
	_, err = admin.UpdateCombo(ctx, combo.ID, ComboInput{
		Name:       "Desk Setup",
		ComboPrice: domain.Taka(40500),
		IsActive:   &inactive,
		Items:      []domain.CartItem{{ProductID: pc.ID, Quantity: 1}, {ProductID: monitor.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = catalog.GetCombo(ctx, "desk-setup")
	require.ErrorIs(t, err, ErrNotFound)

	active, err := catalog.ListCombos(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)
}
