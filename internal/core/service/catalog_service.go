package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/technirvor/storefront/internal/core/domain"
	"github.com/technirvor/storefront/internal/port"
)

// ProductView is a product as the storefront shows it at a point in time.
type ProductView struct {
	domain.Product
	EffectivePrice  domain.Money `json:"effective_price"`
	DiscountPercent int          `json:"discount_percent"`
	FlashSaleActive bool         `json:"flash_sale_active"`
}

func viewProduct(p domain.Product, now time.Time) ProductView {
	return ProductView{
		Product:         p,
		EffectivePrice:  p.EffectivePrice(now),
		DiscountPercent: p.DiscountPercent(now),
		FlashSaleActive: p.FlashSaleActive(now),
	}
}

func viewProducts(products []domain.Product, now time.Time) []ProductView {
	out := make([]ProductView, 0, len(products))
	for _, p := range products {
		out = append(out, viewProduct(p, now))
	}
	return out
}

type ComboView struct {
	domain.ComboProduct
	OriginalPrice   domain.Money `json:"original_price"`
	DiscountPercent int          `json:"discount_percent"`
	Savings         domain.Money `json:"savings"`
}

func viewCombo(c domain.ComboProduct) ComboView {
	if c.Items == nil {
		c.Items = []domain.ComboItem{}
	}
	return ComboView{
		ComboProduct:    c,
		OriginalPrice:   c.OriginalPrice(),
		DiscountPercent: c.DiscountPercent(),
		Savings:         c.Savings(),
	}
}

type CatalogService struct {
	products   port.ProductRepository
	categories port.CategoryRepository
	combos     port.ComboRepository
	districts  port.DistrictRepository
	coupons    port.CouponRepository
	now        func() time.Time
}

func NewCatalogService(products port.ProductRepository, categories port.CategoryRepository, combos port.ComboRepository,
	districts port.DistrictRepository, coupons port.CouponRepository) *CatalogService {
	return &CatalogService{
		products:   products,
		categories: categories,
		combos:     combos,
		districts:  districts,
		coupons:    coupons,
		now:        time.Now,
	}
}

type ProductQuery struct {
	Category  string
	Search    string
	Featured  bool
	FlashSale bool
	Page      int
	Limit     int
}

type ProductPage struct {
	Products   []ProductView `json:"products"`
	Pagination Pagination    `json:"pagination"`
}

func (s *CatalogService) ListProducts(ctx context.Context, q ProductQuery) (*ProductPage, error) {
	page, limit := clampPage(q.Page, q.Limit)
	now := s.now()
	products, total, err := s.products.ListProducts(ctx, domain.ProductFilter{
		CategorySlug: q.Category,
		Search:       q.Search,
		Featured:     q.Featured,
		FlashSale:    q.FlashSale,
		Now:          now,
		Page:         page,
		Limit:        limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return &ProductPage{Products: viewProducts(products, now), Pagination: newPagination(page, limit, total)}, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, slug string) (*ProductView, error) {
	p, err := s.products.GetProductBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if p == nil {
		return nil, ErrNotFound
	}
	v := viewProduct(*p, s.now())
	return &v, nil
}

func (s *CatalogService) SearchProducts(ctx context.Context, query string, limit int) ([]ProductView, error) {
	page, err := s.ListProducts(ctx, ProductQuery{Search: query, Limit: limit})
	if err != nil {
		return nil, err
	}
	return page.Products, nil
}

func (s *CatalogService) FeaturedProducts(ctx context.Context, limit int) ([]ProductView, error) {
	page, err := s.ListProducts(ctx, ProductQuery{Featured: true, Limit: limit})
	if err != nil {
		return nil, err
	}
	return page.Products, nil
}

func (s *CatalogService) FlashSaleProducts(ctx context.Context, limit int) ([]ProductView, error) {
	page, err := s.ListProducts(ctx, ProductQuery{FlashSale: true, Limit: limit})
	if err != nil {
		return nil, err
	}
	return page.Products, nil
}

// ProductsInCategory resolves category by slug, then by name, and lists
// its products. An unknown category yields no products.
func (s *CatalogService) ProductsInCategory(ctx context.Context, category string, limit int) ([]ProductView, error) {
	slug, err := s.resolveCategory(ctx, category)
	if err != nil {
		return nil, err
	}
	if slug == "" {
		return []ProductView{}, nil
	}
	page, err := s.ListProducts(ctx, ProductQuery{Category: slug, Limit: limit})
	if err != nil {
		return nil, err
	}
	return page.Products, nil
}

func (s *CatalogService) resolveCategory(ctx context.Context, category string) (string, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return "", nil
	}
	c, err := s.categories.GetCategoryBySlug(ctx, Slugify(category))
	if err != nil {
		return "", fmt.Errorf("get category: %w", err)
	}
	if c != nil {
		return c.Slug, nil
	}

	all, err := s.categories.ListCategories(ctx)
	if err != nil {
		return "", fmt.Errorf("list categories: %w", err)
	}
	for _, c := range all {
		if strings.EqualFold(c.Name, category) {
			return c.Slug, nil
		}
	}
	return "", nil
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	categories, err := s.categories.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	if categories == nil {
		categories = []domain.Category{}
	}
	return categories, nil
}

func (s *CatalogService) ListCombos(ctx context.Context, activeOnly bool) ([]ComboView, error) {
	combos, err := s.combos.ListCombos(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list combos: %w", err)
	}
	out := make([]ComboView, 0, len(combos))
	for _, c := range combos {
		out = append(out, viewCombo(c))
	}
	return out, nil
}

// GetCombo returns an active combo by slug.
func (s *CatalogService) GetCombo(ctx context.Context, slug string) (*ComboView, error) {
	c, err := s.combos.GetComboBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("get combo: %w", err)
	}
	if c == nil || !c.IsActive {
		return nil, ErrNotFound
	}
	v := viewCombo(*c)
	return &v, nil
}

func (s *CatalogService) ListDistricts(ctx context.Context) ([]domain.District, error) {
	districts, err := s.districts.ListDistricts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list districts: %w", err)
	}
	if districts == nil {
		districts = []domain.District{}
	}
	return districts, nil
}

type QuoteRequest struct {
	Items      []domain.CartItem `json:"items"`
	District   string            `json:"district"`
	CouponCode string            `json:"coupon_code"`
}

// Quote prices a cart against live product data. Stock shortfalls are
// reported per line rather than failing the quote; unknown products are
// listed in Missing.
func (s *CatalogService) Quote(ctx context.Context, req QuoteRequest) (*domain.Quote, error) {
	var cart domain.Cart
	for _, it := range req.Items {
		cart.Add(it.ProductID, it.Quantity)
	}
	if len(cart.Items) == 0 {
		return nil, invalid("Cart is empty")
	}

	products, err := s.products.GetProductsByIDs(ctx, cart.ProductIDs())
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	now := s.now()
	quote := &domain.Quote{
		Lines:          []domain.QuoteLine{},
		Subtotal:       domain.Taka(0),
		DeliveryCharge: domain.Taka(0),
		Discount:       domain.Taka(0),
	}
	for _, it := range cart.Items {
		p, ok := byID[it.ProductID]
		if !ok {
			quote.Missing = append(quote.Missing, it.ProductID)
			continue
		}
		unit := p.EffectivePrice(now)
		line := domain.QuoteLine{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: unit,
			Quantity:  it.Quantity,
			LineTotal: unit.Mul(domain.Taka(int64(it.Quantity))),
			Available: p.Stock,
			InStock:   p.Stock >= it.Quantity,
		}
		quote.Lines = append(quote.Lines, line)
		quote.Subtotal = quote.Subtotal.Add(line.LineTotal)
	}

	if name := strings.TrimSpace(req.District); name != "" {
		d, err := s.districts.GetDistrictByName(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("load district: %w", err)
		}
		if d == nil {
			return nil, invalid("Invalid district")
		}
		quote.DeliveryCharge = d.DeliveryCharge
	}

	if code := domain.NormalizeCouponCode(req.CouponCode); code != "" {
		discount, err := applyCoupon(ctx, s.coupons, code, quote.Subtotal, now)
		if err != nil {
			return nil, err
		}
		quote.Discount = discount
	}

	quote.Total = quote.Subtotal.Sub(quote.Discount).Add(quote.DeliveryCharge)
	return quote, nil
}

type CouponCheck struct {
	Code     string       `json:"code"`
	Discount domain.Money `json:"discount"`
	Total    domain.Money `json:"total"`
}

// ValidateCoupon reports the discount code grants on subtotal.
func (s *CatalogService) ValidateCoupon(ctx context.Context, code string, subtotal domain.Money) (*CouponCheck, error) {
	code = domain.NormalizeCouponCode(code)
	if code == "" {
		return nil, invalid("Coupon code is required")
	}
	discount, err := applyCoupon(ctx, s.coupons, code, subtotal, s.now())
	if err != nil {
		return nil, err
	}
	return &CouponCheck{Code: code, Discount: discount, Total: subtotal.Sub(discount)}, nil
}

// applyCoupon looks code up and applies it, turning rule failures into
// validation errors.
func applyCoupon(ctx context.Context, coupons port.CouponRepository, code string, subtotal domain.Money, now time.Time) (domain.Money, error) {
	coupon, err := coupons.GetCouponByCode(ctx, code)
	if err != nil {
		return domain.Money{}, fmt.Errorf("load coupon: %w", err)
	}
	if coupon == nil {
		return domain.Money{}, invalid("Invalid coupon code")
	}
	discount, err := coupon.Apply(subtotal, now)
	if err != nil {
		return domain.Money{}, invalid(couponMessage(err))
	}
	return discount, nil
}
