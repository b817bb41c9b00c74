package service

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/technirvor/storefront/internal/adapter/storage"
	"github.com/technirvor/storefront/internal/adapter/storage/storagetest"
	"github.com/technirvor/storefront/internal/core/domain"
)

type liveEnv struct {
	repo  *storage.MySQLAdapter
	cache *storage.RedisAdapter
}

// setupLiveEnv connects to real MySQL and Redis, skipping when either is down.
func setupLiveEnv(t *testing.T) *liveEnv {
	redisAddr := os.Getenv("TN_REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	dsn := os.Getenv("TN_MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/technirvor?parseTime=true&loc=UTC&clientFoundRows=true"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { rdb.Close() })

	db, err := storage.OpenMySQL(ctx, dsn, 50, 25, time.Minute)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := storage.NewMySQLAdapter(db)
	require.NoError(t, repo.Migrate(context.Background()))
	return &liveEnv{repo: repo, cache: storage.NewRedisAdapter(rdb)}
}

func (env *liveEnv) fixture(t *testing.T, stock int) *orderFixture {
	t.Helper()
	f := &orderFixture{
		repo:     env.repo,
		events:   &recordingEvents{},
		product:  storagetest.SeedProduct(t, env.repo, "Live Keyboard", 2500, stock),
		district: storagetest.SeedDistrict(t, env.repo, "Dhaka "+uuid.NewString()[:8], 60),
	}
	f.svc = NewOrderService(env.repo, env.repo, env.repo, env.repo, env.cache, f.events, zap.NewNop())
	return f
}

func (f *orderFixture) liveRequest(qty int) PlaceOrderRequest {
	req := f.request(qty)
	req.District = f.district.Name
	return req
}

func TestIntegration_FlashSaleSellsExactlyStock(t *testing.T) {
	env := setupLiveEnv(t)
	f := env.fixture(t, 10)
	ctx := context.Background()

	var success, soldOut atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.PlaceOrder(ctx, f.liveRequest(1), uuid.NewString())
			switch {
			case err == nil:
				success.Add(1)
			case assert.ErrorIs(t, err, ErrInsufficientStock):
				soldOut.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), success.Load())
	assert.Equal(t, int32(10), soldOut.Load())
	assert.Equal(t, 0, f.stock(t))
	assert.Equal(t, 10, f.events.count())
}

func TestIntegration_IdempotencyPreventsDoubleOrder(t *testing.T) {
	env := setupLiveEnv(t)
	f := env.fixture(t, 5)
	ctx := context.Background()
	key := fmt.Sprintf("live-%s", uuid.NewString())

	var success atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.PlaceOrder(ctx, f.liveRequest(1), key); err == nil {
				success.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), success.Load())
	assert.Equal(t, 4, f.stock(t))
}

func TestIntegration_RejectedOrderLeavesNoTrace(t *testing.T) {
	env := setupLiveEnv(t)
	f := env.fixture(t, 1)
	ctx := context.Background()

	_, err := f.svc.PlaceOrder(ctx, f.liveRequest(2), "")
	var stockErr *domain.StockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 1, f.stock(t))
	assert.Zero(t, f.events.count())
}
