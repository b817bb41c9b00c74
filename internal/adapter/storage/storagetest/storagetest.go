// Package storagetest provides in-process stand-ins for MySQL and Redis so
// adapters, services and handlers can be tested without servers.
package storagetest

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/technirvor/storefront/internal/adapter/storage"
	"github.com/technirvor/storefront/internal/core/domain"
)

// NewSQLite returns a migrated adapter over a private in-memory database.
// Every :memory: connection is its own database, so the pool holds one.
func NewSQLite(t testing.TB) (*storage.MySQLAdapter, *sql.DB) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	adapter := storage.NewMySQLAdapter(db)
	if err := adapter.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return adapter, db
}

// SeedProduct inserts a product with the given price and stock.
func SeedProduct(t testing.TB, repo *storage.MySQLAdapter, name string, price int64, stock int) domain.Product {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Second)
	p := domain.Product{
		ID:          uuid.NewString(),
		Name:        name,
		Slug:        fmt.Sprintf("%s-%s", slugify(name), uuid.NewString()[:8]),
		Description: name,
		Price:       domain.Taka(price),
		Stock:       stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := repo.CreateProduct(context.Background(), p); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

// SeedDistrict inserts a district with the given delivery charge.
func SeedDistrict(t testing.TB, repo *storage.MySQLAdapter, name string, charge int64) domain.District {
	t.Helper()

	d := domain.District{ID: uuid.NewString(), Name: name, DeliveryCharge: domain.Taka(charge)}
	if err := repo.CreateDistrict(context.Background(), d); err != nil {
		t.Fatalf("seed district: %v", err)
	}
	return d
}

func slugify(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		default:
			out = append(out, '-')
		}
	}
	return string(out)
}

// MemoryCache is a mutex-guarded port.CacheRepository with TTL expiry.
type MemoryCache struct {
	mu       sync.Mutex
	now      func() time.Time
	counters map[string]*counter
	keys     map[string]time.Time
}

type counter struct {
	n       int
	expires time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		now:      time.Now,
		counters: make(map[string]*counter),
		keys:     make(map[string]time.Time),
	}
}

func (c *MemoryCache) incr(key string, window time.Duration) int {
	now := c.now()
	ctr, ok := c.counters[key]
	if !ok || !now.Before(ctr.expires) {
		ctr = &counter{expires: now.Add(window)}
		c.counters[key] = ctr
	}
	ctr.n++
	return ctr.n
}

func (c *MemoryCache) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.incr("rate:"+key, window) <= limit, nil
}

func (c *MemoryCache) SetIdempotency(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if exp, ok := c.keys[key]; ok && c.now().Before(exp) {
		return false, nil
	}
	c.keys[key] = c.now().Add(24 * time.Hour)
	return true, nil
}

func (c *MemoryCache) ReleaseIdempotency(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.keys, key)
	return nil
}

func (c *MemoryCache) RecordFailure(_ context.Context, id string, window time.Duration) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.incr("fail:"+id, window), nil
}

func (c *MemoryCache) Failures(_ context.Context, id string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctr, ok := c.counters["fail:"+id]
	if !ok || !c.now().Before(ctr.expires) {
		return 0, nil
	}
	return ctr.n, nil
}

func (c *MemoryCache) ResetFailures(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.counters, "fail:"+id)
	return nil
}
