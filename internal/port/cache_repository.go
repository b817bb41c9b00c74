package port

import (
	"context"
	"time"
)

type RateLimiter interface {
	// Allow counts one hit for key in the current window, returns false once
	// the window already holds limit hits
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type IdempotencyStore interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ReleaseIdempotency forgets a key so a rejected request may be retried
	ReleaseIdempotency(ctx context.Context, key string) error
}

type LockoutStore interface {
	// RecordFailure counts a failed login for id and returns the count in window
	RecordFailure(ctx context.Context, id string, window time.Duration) (int, error)
	Failures(ctx context.Context, id string) (int, error)
	ResetFailures(ctx context.Context, id string) error
}

type CacheRepository interface {
	RateLimiter
	IdempotencyStore
	LockoutStore
}
