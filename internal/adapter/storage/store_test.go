package storage_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technirvor/storefront/internal/adapter/storage/storagetest"
	"github.com/technirvor/storefront/internal/core/domain"
)

func newOrder(number string, items ...domain.OrderItem) (domain.Order, domain.OrderTrackingNote) {
	now := time.Now().UTC()
	o := domain.Order{
		ID:             uuid.NewString(),
		OrderNumber:    number,
		CustomerName:   "Rahim Uddin",
		CustomerPhone:  "01712345678",
		District:       "Dhaka",
		Address:        "House 1, Road 2",
		PaymentMethod:  domain.DefaultPaymentMethod,
		DeliveryCharge: domain.Taka(60),
		DiscountAmount: decimal.Zero,
		Status:         domain.OrderStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for _, it := range items {
		it.ID = uuid.NewString()
		it.OrderID = o.ID
		o.Items = append(o.Items, it)
	}
	o.TotalAmount = o.Subtotal().Add(o.DeliveryCharge)
	note := domain.OrderTrackingNote{
		ID:        uuid.NewString(),
		OrderID:   o.ID,
		Status:    domain.OrderStatusPending,
		Note:      "Order placed successfully",
		CreatedAt: now,
	}
	return o, note
}

func item(p domain.Product, qty int) domain.OrderItem {
	return domain.OrderItem{ProductID: p.ID, ProductName: p.Name, Quantity: qty, Price: p.Price}
}

func TestCreateOrder_DecrementsStock(t *testing.T) {
	repo, _ := storagetest.NewSQLite(t)
	ctx := context.Background()
	p := storagetest.SeedProduct(t, repo, "USB Cable", 250, 10)

	order, note := newOrder("TN-DH-100001", item(p, 3))
	require.NoError(t, repo.CreateOrder(ctx, order, note))

	got, err := repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Stock)

	stored, err := repo.GetOrderByNumber(ctx, "tn-dh-100001")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, order.ID, stored.ID)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, 3, stored.Items[0].Quantity)
	assert.True(t, stored.TotalAmount.Equal(domain.Taka(810)), "total %s", stored.TotalAmount)

	notes, err := repo.ListTrackingNotes(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "Order placed successfully", notes[0].Note)
}

func TestCreateOrder_InsufficientStockRollsBack(t *testing.T) {
	repo, db := storagetest.NewSQLite(t)
	ctx := context.Background()
	a := storagetest.SeedProduct(t, repo, "Mouse", 500, 5)
	b := storagetest.SeedProduct(t, repo, "Keyboard", 900, 1)

	order, note := newOrder("TN-DH-100002", item(a, 2), item(b, 2))
	err := repo.CreateOrder(ctx, order, note)

	var stockErr *domain.StockError
	require.ErrorAs(t, err, &stockErr)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, "Keyboard", stockErr.ProductName)
	assert.Equal(t, 1, stockErr.Available)
	assert.Equal(t, "Insufficient stock for Keyboard. Available: 1", err.Error())

	got, _ := repo.GetProduct(ctx, a.ID)
	assert.Equal(t, 5, got.Stock, "first item's decrement must roll back")

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM orders`).Scan(&n))
	assert.Zero(t, n)
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM order_items`).Scan(&n))
	assert.Zero(t, n)
}

func TestCreateOrder_DuplicateNumber(t *testing.T) {
	repo, _ := storagetest.NewSQLite(t)
	ctx := context.Background()
	p := storagetest.SeedProduct(t, repo, "Charger", 1200, 10)

	first, note := newOrder("TN-DH-123456", item(p, 1))
	require.NoError(t, repo.CreateOrder(ctx, first, note))

	second, note := newOrder("TN-DH-123456", item(p, 1))
	err := repo.CreateOrder(ctx, second, note)
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)

	got, _ := repo.GetProduct(ctx, p.ID)
	assert.Equal(t, 9, got.Stock)
}

func TestCreateOrder_ConcurrentLastUnit(t *testing.T) {
	repo, _ := storagetest.NewSQLite(t)
	ctx := context.Background()
	p := storagetest.SeedProduct(t, repo, "Earbuds", 1500, 5)

	var success, outOfStock atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			order, note := newOrder(domain.FormatOrderNumber("Dhaka", 200000+i), item(p, 1))
			err := repo.CreateOrder(ctx, order, note)
			switch {
			case err == nil:
				success.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				outOfStock.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 5, success.Load())
	assert.EqualValues(t, 7, outOfStock.Load())
	got, _ := repo.GetProduct(ctx, p.ID)
	assert.Equal(t, 0, got.Stock)
}

func TestCreateOrder_RedeemsCoupon(t *testing.T) {
	repo, _ := storagetest.NewSQLite(t)
	ctx := context.Background()
	p := storagetest.SeedProduct(t, repo, "Power Bank", 2000, 10)

	coupon := domain.Coupon{
		ID: uuid.NewString(), Code: "eid10", DiscountType: domain.DiscountPercentage,
		Value: domain.Taka(10), MaxUses: 1, IsActive: true, CreatedAt: time.Now(),
	}
	require.NoError(t, repo.CreateCoupon(ctx, coupon))

	order, note := newOrder("TN-DH-300001", item(p, 1))
	order.CouponCode = "EID10"
	require.NoError(t, repo.CreateOrder(ctx, order, note))

	stored, err := repo.GetCouponByCode(ctx, "eid10")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.UsedCount)

	again, note := newOrder("TN-DH-300002", item(p, 1))
	again.CouponCode = "EID10"
	assert.ErrorIs(t, repo.CreateOrder(ctx, again, note), domain.ErrCouponUnavailable)

	got, _ := repo.GetProduct(ctx, p.ID)
	assert.Equal(t, 9, got.Stock)
}

func TestListOrders_FilterAndPaginate(t *testing.T) {
	repo, _ := storagetest.NewSQLite(t)
	ctx := context.Background()
	p := storagetest.SeedProduct(t, repo, "Cable", 100, 100)

	base := time.Now().UTC().Add(-time.Hour)
	phones := []string{"01712345678", "01812345678", "01798765432", "01912345678"}
	for i, phone := range phones {
		o, note := newOrder(domain.FormatOrderNumber("Dhaka", 400000+i), item(p, 1))
		o.CustomerPhone = phone
		o.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.CreateOrder(ctx, o, note))
		if i == 2 {
			confirm := domain.OrderTrackingNote{ID: uuid.NewString(), OrderID: o.ID,
				Status: domain.OrderStatusConfirmed, Note: "ok", CreatedAt: time.Now()}
			require.NoError(t, repo.UpdateOrderStatus(ctx, o.ID, domain.OrderStatusPending, domain.OrderStatusConfirmed, confirm))
		}
	}

	orders, total, err := repo.ListOrders(ctx, domain.OrderFilter{Status: domain.OrderStatusPending, Search: "017", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, orders, 1)
	assert.Equal(t, "01712345678", orders[0].CustomerPhone)
	assert.Len(t, orders[0].Items, 1)

	page, total, err := repo.ListOrders(ctx, domain.OrderFilter{Page: 2, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, page, 1)
	assert.Equal(t, "01712345678", page[0].CustomerPhone, "oldest order lands on the last page")
}

func TestListOrders_SearchWildcardsAreLiteral(t *testing.T) {
	repo, _ := storagetest.NewSQLite(t)
	ctx := context.Background()
	p := storagetest.SeedProduct(t, repo, "Cable", 100, 100)

	for i, name := range []string{"Rahim Uddin", "100% Gadgets_BD"} {
		o, note := newOrder(domain.FormatOrderNumber("Dhaka", 410000+i), item(p, 1))
		o.CustomerName = name
		o.CustomerPhone = "0171234567" + fmt.Sprint(i)
		require.NoError(t, repo.CreateOrder(ctx, o, note))
	}

	tests := []struct {
		search string
		want   int
	}{
		{"%", 1},
		{"_", 1},
		{"0_7", 0},
		{"100%", 1},
		{"s_BD", 1},
		{"!", 0},
	}
	for _, tt := range tests {
		_, total, err := repo.ListOrders(ctx, domain.OrderFilter{Search: tt.search, Page: 1, Limit: 10})
		require.NoError(t, err, tt.search)
		assert.Equal(t, tt.want, total, "search %q", tt.search)
	}

	products, _, err := repo.ListProducts(ctx, domain.ProductFilter{Search: "%", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestUpdateOrderStatus_Guarded(t *testing.T) {
	repo, _ := storagetest.NewSQLite(t)
	ctx := context.Background()
	p := storagetest.SeedProduct(t, repo, "Speaker", 3000, 3)

	order, note := newOrder("TN-DH-500001", item(p, 1))
	require.NoError(t, repo.CreateOrder(ctx, order, note))

	step := func(status domain.OrderStatus) domain.OrderTrackingNote {
		return domain.OrderTrackingNote{ID: uuid.NewString(), OrderID: order.ID, Status: status,
			Note: "Order status updated to " + string(status), CreatedAt: time.Now()}
	}

	require.NoError(t, repo.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusPending, domain.OrderStatusConfirmed, step(domain.OrderStatusConfirmed)))

	err := repo.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusPending, domain.OrderStatusCancelled, step(domain.OrderStatusCancelled))
	assert.ErrorIs(t, err, domain.ErrStatusConflict)

	err = repo.UpdateOrderStatus(ctx, uuid.NewString(), domain.OrderStatusPending, domain.OrderStatusConfirmed, step(domain.OrderStatusConfirmed))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	notes, err := repo.ListTrackingNotes(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, notes, 2, "rejected moves must not leave notes")

	got, _ := repo.GetOrder(ctx, order.ID)
	assert.Equal(t, domain.OrderStatusConfirmed, got.Status)
}

func TestGetOrder_NotFound(t *testing.T) {
	repo, _ := storagetest.NewSQLite(t)

	got, err := repo.GetOrder(context.Background(), uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListProducts_Filters(t *testing.T) {
	repo, _ := storagetest.NewSQLite(t)
	ctx := context.Background()
	now := time.Now().UTC()

	cat := domain.Category{ID: uuid.NewString(), Name: "Audio", Slug: "audio", CreatedAt: now}
	require.NoError(t, repo.CreateCategory(ctx, cat))

	headphones := storagetest.SeedProduct(t, repo, "Headphones", 2500, 4)
	headphones.CategoryID = cat.ID
	headphones.IsFeatured = true
	require.NoError(t, repo.UpdateProduct(ctx, headphones))

	sale := storagetest.SeedProduct(t, repo, "Smart Watch", 5000, 2)
	require.NoError(t, repo.SetFlashSale(ctx, sale.ID, domain.Taka(3750), now.Add(time.Hour)))

	ended := storagetest.SeedProduct(t, repo, "Old Watch", 4000, 2)
	require.NoError(t, repo.SetFlashSale(ctx, ended.ID, domain.Taka(3000), now.Add(-time.Hour)))

	byCat, total, err := repo.ListProducts(ctx, domain.ProductFilter{CategorySlug: "audio"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, headphones.ID, byCat[0].ID)

	featured, _, err := repo.ListProducts(ctx, domain.ProductFilter{Featured: true})
	require.NoError(t, err)
	require.Len(t, featured, 1)
	assert.Equal(t, headphones.ID, featured[0].ID)

	flash, _, err := repo.ListProducts(ctx, domain.ProductFilter{FlashSale: true, Now: now})
	require.NoError(t, err)
	require.Len(t, flash, 1)
	assert.Equal(t, sale.ID, flash[0].ID)
	assert.Equal(t, 25, flash[0].DiscountPercent(now))

	search, _, err := repo.ListProducts(ctx, domain.ProductFilter{Search: "watch"})
	require.NoError(t, err)
	assert.Len(t, search, 2)

	n, err := repo.ExpireFlashSales(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, _ := repo.GetProduct(ctx, ended.ID)
	assert.False(t, got.IsFlashSale)
}

func TestProductSlugUnique(t *testing.T) {
	repo, _ := storagetest.NewSQLite(t)
	ctx := context.Background()
	p := storagetest.SeedProduct(t, repo, "Router", 3500, 1)

	dup := p
	dup.ID = uuid.NewString()
	assert.ErrorIs(t, repo.CreateProduct(ctx, dup), domain.ErrDuplicateKey)

	assert.ErrorIs(t, repo.DeleteProduct(ctx, uuid.NewString()), domain.ErrNotFound)
}

func TestCombos_ItemsReplaced(t *testing.T) {
	repo, _ := storagetest.NewSQLite(t)
	ctx := context.Background()
	now := time.Now().UTC()
	a := storagetest.SeedProduct(t, repo, "Phone Case", 400, 10)
	b := storagetest.SeedProduct(t, repo, "Screen Guard", 200, 10)

	combo := domain.ComboProduct{
		ID: uuid.NewString(), Name: "Protection Pack", Slug: "protection-pack",
		ComboPrice: domain.Taka(500), IsActive: true, CreatedAt: now, UpdatedAt: now,
		Items: []domain.ComboItem{{ProductID: a.ID, Quantity: 1}, {ProductID: b.ID, Quantity: 2}},
	}
	require.NoError(t, repo.CreateCombo(ctx, combo))

	got, err := repo.GetComboBySlug(ctx, "protection-pack")
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.True(t, got.OriginalPrice().Equal(domain.Taka(800)))
	assert.Equal(t, 38, got.DiscountPercent())

	combo.Items = combo.Items[:1]
	combo.IsActive = false
	require.NoError(t, repo.UpdateCombo(ctx, combo))

	active, err := repo.ListCombos(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := repo.ListCombos(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Len(t, all[0].Items, 1)

	require.NoError(t, repo.DeleteCombo(ctx, combo.ID))
	gone, err := repo.GetCombo(ctx, combo.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestDistrictLookupIgnoresCase(t *testing.T) {
	repo, _ := storagetest.NewSQLite(t)
	d := storagetest.SeedDistrict(t, repo, "Chattogram", 120)

	got, err := repo.GetDistrictByName(context.Background(), "chattogram")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, d.ID, got.ID)
	assert.True(t, got.DeliveryCharge.Equal(domain.Taka(120)))
}

func TestNotificationsAndRewards(t *testing.T) {
	repo, _ := storagetest.NewSQLite(t)
	ctx := context.Background()
	userID := uuid.NewString()
	now := time.Now().UTC()

	notes := []domain.Notification{
		{ID: uuid.NewString(), UserID: userID, Title: "a", Message: "a", Type: domain.NotificationTypeOrder, CreatedAt: now},
		{ID: uuid.NewString(), UserID: userID, Title: "b", Message: "b", Type: domain.NotificationTypePromo, CreatedAt: now.Add(time.Second)},
	}
	require.NoError(t, repo.CreateNotifications(ctx, notes))

	unread, err := repo.CountUnread(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	assert.ErrorIs(t, repo.MarkRead(ctx, uuid.NewString(), notes[0].ID), domain.ErrNotFound, "other users cannot mark it")
	require.NoError(t, repo.MarkRead(ctx, userID, notes[0].ID))

	n, err := repo.MarkAllRead(ctx, userID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	list, err := repo.ListNotifications(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].Title)

	balance, err := repo.RewardBalance(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, balance)

	require.NoError(t, repo.CreateReward(ctx, domain.Reward{ID: uuid.NewString(), UserID: userID, Points: 50, Reason: "order", CreatedAt: now}))
	require.NoError(t, repo.CreateReward(ctx, domain.Reward{ID: uuid.NewString(), UserID: userID, Points: -20, Reason: "redeem", CreatedAt: now}))
	balance, err = repo.RewardBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 30, balance)
}

func TestUsersAndMessages(t *testing.T) {
	repo, _ := storagetest.NewSQLite(t)
	ctx := context.Background()
	now := time.Now().UTC()

	admin := domain.User{ID: uuid.NewString(), Name: "Admin", Email: "Admin@TechNirvor.com", Role: domain.RoleAdmin, PasswordHash: "x", CreatedAt: now}
	require.NoError(t, repo.CreateUser(ctx, admin))
	assert.ErrorIs(t, repo.CreateUser(ctx, admin), domain.ErrDuplicateKey)

	got, err := repo.GetUserByEmail(ctx, "admin@technirvor.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, admin.ID, got.ID)

	admins, err := repo.ListAdmins(ctx)
	require.NoError(t, err)
	assert.Len(t, admins, 1)

	require.NoError(t, repo.UpdateUserRole(ctx, admin.ID, domain.RoleCustomer))
	admins, _ = repo.ListAdmins(ctx)
	assert.Empty(t, admins)

	msg := domain.ContactMessage{ID: uuid.NewString(), Name: "Karim", Subject: "Warranty", Body: "?", Status: domain.MessageNew, CreatedAt: now}
	require.NoError(t, repo.CreateMessage(ctx, msg))
	require.NoError(t, repo.UpdateMessageStatus(ctx, msg.ID, domain.MessageReplied))

	fresh, err := repo.ListMessages(ctx, domain.MessageNew)
	require.NoError(t, err)
	assert.Empty(t, fresh)

	all, err := repo.ListMessages(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, domain.MessageReplied, all[0].Status)
}
