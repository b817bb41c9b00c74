package port

import (
	"context"
	"time"

	"github.com/technirvor/storefront/internal/core/domain"
)

// Lookups return (nil, nil) when the row does not exist.

type ProductRepository interface {
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, int, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) ([]domain.Product, error)
	CreateProduct(ctx context.Context, p domain.Product) error
	UpdateProduct(ctx context.Context, p domain.Product) error
	DeleteProduct(ctx context.Context, id string) error

	// SetFlashSale puts a product on sale until end
	SetFlashSale(ctx context.Context, id string, salePrice domain.Money, end time.Time) error
	ClearFlashSale(ctx context.Context, id string) error

	// ExpireFlashSales clears sales that ended before now, returns how many
	ExpireFlashSales(ctx context.Context, now time.Time) (int64, error)
}

type CategoryRepository interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	GetCategoryBySlug(ctx context.Context, slug string) (*domain.Category, error)
	CreateCategory(ctx context.Context, c domain.Category) error
	UpdateCategory(ctx context.Context, c domain.Category) error
	DeleteCategory(ctx context.Context, id string) error
}

type DistrictRepository interface {
	ListDistricts(ctx context.Context) ([]domain.District, error)
	GetDistrict(ctx context.Context, id string) (*domain.District, error)
	GetDistrictByName(ctx context.Context, name string) (*domain.District, error)
	CreateDistrict(ctx context.Context, d domain.District) error
	UpdateDistrict(ctx context.Context, d domain.District) error
	DeleteDistrict(ctx context.Context, id string) error
}

type ComboRepository interface {
	ListCombos(ctx context.Context, activeOnly bool) ([]domain.ComboProduct, error)
	GetCombo(ctx context.Context, id string) (*domain.ComboProduct, error)
	GetComboBySlug(ctx context.Context, slug string) (*domain.ComboProduct, error)
	CreateCombo(ctx context.Context, c domain.ComboProduct) error
	UpdateCombo(ctx context.Context, c domain.ComboProduct) error
	DeleteCombo(ctx context.Context, id string) error
}

type OrderRepository interface {
	// CreateOrder persists the order, its items and first tracking note in one
	// transaction, decrementing stock with a conditional update per item.
	// Returns a *domain.StockError when an item runs out and
	// domain.ErrDuplicateKey when the order number is taken.
	CreateOrder(ctx context.Context, order domain.Order, note domain.OrderTrackingNote) error

	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	GetOrderByNumber(ctx context.Context, orderNumber string) (*domain.Order, error)
	ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, int, error)

	// UpdateOrderStatus moves an order from one status to another and appends
	// note, returns domain.ErrStatusConflict if the order is no longer in from
	UpdateOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus, note domain.OrderTrackingNote) error

	AddTrackingNote(ctx context.Context, note domain.OrderTrackingNote) error
	ListTrackingNotes(ctx context.Context, orderID string) ([]domain.OrderTrackingNote, error)

	// ListOrdersBetween returns orders created in [from, to) with their items
	ListOrdersBetween(ctx context.Context, from, to time.Time) ([]domain.Order, error)
}

type UserRepository interface {
	ListUsers(ctx context.Context, filter domain.UserFilter) ([]domain.User, int, error)
	ListAdmins(ctx context.Context) ([]domain.User, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	CreateUser(ctx context.Context, u domain.User) error
	UpdateUserRole(ctx context.Context, id string, role domain.Role) error
	DeleteUser(ctx context.Context, id string) error
}

type NotificationRepository interface {
	CreateNotifications(ctx context.Context, notes []domain.Notification) error
	ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

type CouponRepository interface {
	ListCoupons(ctx context.Context) ([]domain.Coupon, error)
	GetCoupon(ctx context.Context, id string) (*domain.Coupon, error)
	GetCouponByCode(ctx context.Context, code string) (*domain.Coupon, error)
	CreateCoupon(ctx context.Context, c domain.Coupon) error
	UpdateCoupon(ctx context.Context, c domain.Coupon) error
	DeleteCoupon(ctx context.Context, id string) error
}

type RewardRepository interface {
	CreateReward(ctx context.Context, r domain.Reward) error
	ListRewards(ctx context.Context, userID string) ([]domain.Reward, error)
	RewardBalance(ctx context.Context, userID string) (int, error)
}

type MessageRepository interface {
	CreateMessage(ctx context.Context, m domain.ContactMessage) error
	ListMessages(ctx context.Context, status domain.MessageStatus) ([]domain.ContactMessage, error)
	UpdateMessageStatus(ctx context.Context, id string, status domain.MessageStatus) error
	DeleteMessage(ctx context.Context, id string) error
}
