package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/technirvor/storefront/internal/core/domain"
	"github.com/technirvor/storefront/internal/port"
)

// Slugify lower-cases s and joins its alphanumeric runs with dashes.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	return b.String()
}

// AdminService backs the admin back-office CRUD screens.
type AdminService struct {
	products   port.ProductRepository
	categories port.CategoryRepository
	districts  port.DistrictRepository
	combos     port.ComboRepository
	users      port.UserRepository
	logger     *zap.Logger
	now        func() time.Time
}

func NewAdminService(products port.ProductRepository, categories port.CategoryRepository, districts port.DistrictRepository,
	combos port.ComboRepository, users port.UserRepository, logger *zap.Logger) *AdminService {
	return &AdminService{
		products:   products,
		categories: categories,
		districts:  districts,
		combos:     combos,
		users:      users,
		logger:     logger,
		now:        time.Now,
	}
}

// conflictOr maps a duplicate-key error onto ErrConflict with what.
func conflictOr(err error, what string) error {
	if errors.Is(err, domain.ErrDuplicateKey) {
		return fmt.Errorf("%s: %w", what, ErrConflict)
	}
	return err
}

type ProductInput struct {
	Name        string        `json:"name"`
	Slug        string        `json:"slug"`
	Description string        `json:"description"`
	ImageURL    string        `json:"image_url"`
	Price       domain.Money  `json:"price"`
	SalePrice   *domain.Money `json:"sale_price"`
	Stock       int           `json:"stock"`
	IsFeatured  bool          `json:"is_featured"`
	CategoryID  string        `json:"category_id"`
}

func (in ProductInput) validate() error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return invalid("Product name is required")
	case in.Price.IsNegative():
		return invalid("Price must not be negative")
	case in.Stock < 0:
		return invalid("Stock must not be negative")
	case in.SalePrice != nil && (in.SalePrice.IsNegative() || in.SalePrice.GreaterThan(in.Price)):
		return invalid("Sale price must be between 0 and the price")
	}
	return nil
}

func (in ProductInput) apply(p *domain.Product) {
	p.Name = strings.TrimSpace(in.Name)
	p.Slug = Slugify(in.Slug)
	if p.Slug == "" {
		p.Slug = Slugify(in.Name)
	}
	p.Description = strings.TrimSpace(in.Description)
	p.ImageURL = strings.TrimSpace(in.ImageURL)
	p.Price = in.Price
	p.SalePrice = decimal.NullDecimal{}
	if in.SalePrice != nil {
		p.SalePrice = decimal.NewNullDecimal(*in.SalePrice)
	}
	p.Stock = in.Stock
	p.IsFeatured = in.IsFeatured
	p.CategoryID = strings.TrimSpace(in.CategoryID)
}

func (s *AdminService) CreateProduct(ctx context.Context, in ProductInput) (*domain.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	p := domain.Product{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
	in.apply(&p)

	if err := s.products.CreateProduct(ctx, p); err != nil {
		return nil, conflictOr(err, "product slug "+p.Slug)
	}
	s.logger.Info("product created", zap.String("product_id", p.ID), zap.String("slug", p.Slug))
	return &p, nil
}

// UpdateProduct rewrites the editable fields. Flash sale state is kept;
// it has its own endpoints.
func (s *AdminService) UpdateProduct(ctx context.Context, id string, in ProductInput) (*domain.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	p, err := s.products.GetProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if p == nil {
		return nil, ErrNotFound
	}
	in.apply(p)
	if !p.SalePrice.Valid {
		p.IsFlashSale, p.FlashSaleEnd = false, nil
	}
	p.UpdatedAt = s.now().UTC()

	if err := s.products.UpdateProduct(ctx, *p); err != nil {
		return nil, conflictOr(err, "product slug "+p.Slug)
	}
	return p, nil
}

func (s *AdminService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.products.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.logger.Info("product deleted", zap.String("product_id", id))
	return nil
}

// AdminProducts lists every product, regardless of flash sale windows.
func (s *AdminService) AdminProducts(ctx context.Context, q ProductQuery) (*ProductPage, error) {
	page, limit := clampPage(q.Page, q.Limit)
	now := s.now()
	products, total, err := s.products.ListProducts(ctx, domain.ProductFilter{
		CategorySlug: q.Category, Search: q.Search, Featured: q.Featured, Now: now, Page: page, Limit: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return &ProductPage{Products: viewProducts(products, now), Pagination: newPagination(page, limit, total)}, nil
}

type FlashSaleInput struct {
	SalePrice domain.Money `json:"sale_price"`
	EndsAt    time.Time    `json:"ends_at"`
}

func (s *AdminService) SetFlashSale(ctx context.Context, productID string, in FlashSaleInput) (*ProductView, error) {
	p, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if p == nil {
		return nil, ErrNotFound
	}
	now := s.now()
	if in.SalePrice.IsNegative() || !in.SalePrice.LessThan(p.Price) {
		return nil, invalid("Sale price must be below the regular price")
	}
	if !in.EndsAt.After(now) {
		return nil, invalid("Flash sale end must be in the future")
	}

	if err := s.products.SetFlashSale(ctx, productID, in.SalePrice, in.EndsAt); err != nil {
		return nil, err
	}
	end := in.EndsAt.UTC()
	p.IsFlashSale, p.SalePrice, p.FlashSaleEnd = true, decimal.NewNullDecimal(in.SalePrice), &end
	s.logger.Info("flash sale set", zap.String("product_id", productID), zap.Time("ends_at", end))

	v := viewProduct(*p, now)
	return &v, nil
}

func (s *AdminService) ClearFlashSale(ctx context.Context, productID string) error {
	return s.products.ClearFlashSale(ctx, productID)
}

// ExpireFlashSales switches off sales whose end has passed.
func (s *AdminService) ExpireFlashSales(ctx context.Context) (int64, error) {
	return s.products.ExpireFlashSales(ctx, s.now())
}

type CategoryInput struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

func (s *AdminService) CreateCategory(ctx context.Context, in CategoryInput) (*domain.Category, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, invalid("Category name is required")
	}
	c := domain.Category{ID: uuid.NewString(), Name: strings.TrimSpace(in.Name), Slug: Slugify(in.Slug), CreatedAt: s.now().UTC()}
	if c.Slug == "" {
		c.Slug = Slugify(c.Name)
	}
	if err := s.categories.CreateCategory(ctx, c); err != nil {
		return nil, conflictOr(err, "category slug "+c.Slug)
	}
	return &c, nil
}

func (s *AdminService) UpdateCategory(ctx context.Context, id string, in CategoryInput) (*domain.Category, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, invalid("Category name is required")
	}
	c := domain.Category{ID: id, Name: strings.TrimSpace(in.Name), Slug: Slugify(in.Slug)}
	if c.Slug == "" {
		c.Slug = Slugify(c.Name)
	}
	if err := s.categories.UpdateCategory(ctx, c); err != nil {
		return nil, conflictOr(err, "category slug "+c.Slug)
	}
	return &c, nil
}

func (s *AdminService) DeleteCategory(ctx context.Context, id string) error {
	return s.categories.DeleteCategory(ctx, id)
}

type DistrictInput struct {
	Name           string       `json:"name"`
	DeliveryCharge domain.Money `json:"delivery_charge"`
}

func (in DistrictInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return invalid("District name is required")
	}
	if in.DeliveryCharge.IsNegative() {
		return invalid("Delivery charge must not be negative")
	}
	return nil
}

func (s *AdminService) ListDistricts(ctx context.Context) ([]domain.District, error) {
	districts, err := s.districts.ListDistricts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list districts: %w", err)
	}
	if districts == nil {
		districts = []domain.District{}
	}
	return districts, nil
}

func (s *AdminService) CreateDistrict(ctx context.Context, in DistrictInput) (*domain.District, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	d := domain.District{ID: uuid.NewString(), Name: strings.TrimSpace(in.Name), DeliveryCharge: in.DeliveryCharge}
	if err := s.districts.CreateDistrict(ctx, d); err != nil {
		return nil, conflictOr(err, "district "+d.Name)
	}
	return &d, nil
}

func (s *AdminService) UpdateDistrict(ctx context.Context, id string, in DistrictInput) (*domain.District, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	d := domain.District{ID: id, Name: strings.TrimSpace(in.Name), DeliveryCharge: in.DeliveryCharge}
	if err := s.districts.UpdateDistrict(ctx, d); err != nil {
		return nil, conflictOr(err, "district "+d.Name)
	}
	return &d, nil
}

func (s *AdminService) DeleteDistrict(ctx context.Context, id string) error {
	return s.districts.DeleteDistrict(ctx, id)
}

type ComboInput struct {
	Name        string            `json:"name"`
	Slug        string            `json:"slug"`
	Description string            `json:"description"`
	ImageURL    string            `json:"image_url"`
	ComboPrice  domain.Money      `json:"combo_price"`
	IsActive    *bool             `json:"is_active"`
	Items       []domain.CartItem `json:"items"`
}

// buildCombo validates in and checks every item resolves to a product.
func (s *AdminService) buildCombo(ctx context.Context, c *domain.ComboProduct, in ComboInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return invalid("Combo name is required")
	}
	if in.ComboPrice.IsNegative() {
		return invalid("Combo price must not be negative")
	}
	var cart domain.Cart
	for _, it := range in.Items {
		if it.ProductID == "" || it.Quantity <= 0 {
			return invalid("Combo items need a product and a positive quantity")
		}
		cart.Add(it.ProductID, it.Quantity)
	}
	if len(cart.Items) < 2 {
		return invalid("A combo needs at least two products")
	}

	products, err := s.products.GetProductsByIDs(ctx, cart.ProductIDs())
	if err != nil {
		return fmt.Errorf("load products: %w", err)
	}
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	c.Items = c.Items[:0]
	var missing []string
	for _, it := range cart.Items {
		p, ok := byID[it.ProductID]
		if !ok {
			missing = append(missing, it.ProductID)
			continue
		}
		c.Items = append(c.Items, domain.ComboItem{
			ProductID: p.ID, ProductName: p.Name, UnitPrice: p.Price, Quantity: it.Quantity,
		})
	}
	if len(missing) > 0 {
		return invalid("Products not found: " + strings.Join(missing, ", "))
	}

	c.Name = strings.TrimSpace(in.Name)
	c.Slug = Slugify(in.Slug)
	if c.Slug == "" {
		c.Slug = Slugify(in.Name)
	}
	c.Description = strings.TrimSpace(in.Description)
	c.ImageURL = strings.TrimSpace(in.ImageURL)
	c.ComboPrice = in.ComboPrice
	if in.IsActive != nil {
		c.IsActive = *in.IsActive
	}
	return nil
}

func (s *AdminService) CreateCombo(ctx context.Context, in ComboInput) (*ComboView, error) {
	now := s.now().UTC()
	c := domain.ComboProduct{ID: uuid.NewString(), IsActive: true, CreatedAt: now, UpdatedAt: now}
	if err := s.buildCombo(ctx, &c, in); err != nil {
		return nil, err
	}
	if err := s.combos.CreateCombo(ctx, c); err != nil {
		return nil, conflictOr(err, "combo slug "+c.Slug)
	}
	v := viewCombo(c)
	return &v, nil
}

func (s *AdminService) UpdateCombo(ctx context.Context, id string, in ComboInput) (*ComboView, error) {
	c, err := s.combos.GetCombo(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get combo: %w", err)
	}
	if c == nil {
		return nil, ErrNotFound
	}
	if err := s.buildCombo(ctx, c, in); err != nil {
		return nil, err
	}
	c.UpdatedAt = s.now().UTC()
	if err := s.combos.UpdateCombo(ctx, *c); err != nil {
		return nil, conflictOr(err, "combo slug "+c.Slug)
	}
	v := viewCombo(*c)
	return &v, nil
}

func (s *AdminService) DeleteCombo(ctx context.Context, id string) error {
	return s.combos.DeleteCombo(ctx, id)
}

type UserQuery struct {
	Search string
	Role   string
	Page   int
	Limit  int
}

type UserPage struct {
	Users      []domain.User `json:"users"`
	Pagination Pagination    `json:"pagination"`
}

func (s *AdminService) ListUsers(ctx context.Context, q UserQuery) (*UserPage, error) {
	page, limit := clampPage(q.Page, q.Limit)
	filter := domain.UserFilter{Search: q.Search, Page: page, Limit: limit}
	if q.Role != "" {
		role, ok := domain.ParseRole(q.Role)
		if !ok {
			return nil, invalid("Invalid role")
		}
		filter.Role = role
	}
	users, total, err := s.users.ListUsers(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if users == nil {
		users = []domain.User{}
	}
	return &UserPage{Users: users, Pagination: newPagination(page, limit, total)}, nil
}

// ChangeRole updates a user's role. Admins cannot demote themselves.
func (s *AdminService) ChangeRole(ctx context.Context, actorID, userID, role string) error {
	r, ok := domain.ParseRole(role)
	if !ok {
		return invalid("Invalid role")
	}
	if actorID == userID && r != domain.RoleAdmin {
		return invalid("You cannot remove your own admin role")
	}
	if err := s.users.UpdateUserRole(ctx, userID, r); err != nil {
		return err
	}
	s.logger.Info("user role changed", zap.String("user_id", userID), zap.String("role", string(r)), zap.String("by", actorID))
	return nil
}

func (s *AdminService) DeleteUser(ctx context.Context, actorID, userID string) error {
	if actorID == userID {
		return invalid("You cannot delete your own account")
	}
	return s.users.DeleteUser(ctx, userID)
}
