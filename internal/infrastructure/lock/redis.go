package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"skugen/internal/core/allocation"
	"skugen/internal/core/apperror"
	"skugen/pkg/logger"
)

// Release and refresh only touch the key while it still holds our token.
var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// RedisConfig tunes the distributed lock.
type RedisConfig struct {
	// TTL is the lease of one acquisition. It is refreshed while held.
	TTL time.Duration

	// Wait bounds how long Lock retries before giving up.
	Wait time.Duration

	// RetryInterval is the pause between acquisition attempts.
	RetryInterval time.Duration
}

// RedisLocker serializes allocation per shop across processes. Callers in the
// same process queue on a KeyedMutex first so only one of them polls Redis.
type RedisLocker struct {
	client   redis.UniversalClient
	local    *KeyedMutex
	cfg      RedisConfig
	newToken func() string
}

var _ allocation.ShopLocker = (*RedisLocker)(nil)

// NewRedisLocker creates a distributed shop locker.
func NewRedisLocker(client redis.UniversalClient, cfg RedisConfig) *RedisLocker {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.Wait <= 0 {
		cfg.Wait = 10 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 50 * time.Millisecond
	}
	return &RedisLocker{
		client:   client,
		local:    NewKeyedMutex(),
		cfg:      cfg,
		newToken: func() string { return uuid.NewString() },
	}
}

func lockKey(shop string) string {
	return "lock:sku:" + shop
}

// Lock implements allocation.ShopLocker.
func (l *RedisLocker) Lock(ctx context.Context, shop string) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, l.cfg.Wait)
	defer cancel()

	unlockLocal, err := l.local.Lock(waitCtx, shop)
	if err != nil {
		return nil, l.waitError(ctx, shop, err)
	}

	key := lockKey(shop)
	token := l.newToken()
	if err := l.acquire(waitCtx, key, token); err != nil {
		unlockLocal()
		return nil, l.waitError(ctx, shop, err)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(key, token, stop, done)

	return func() {
		close(stop)
		<-done

		// The caller's context may already be cancelled.
		relCtx, relCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer relCancel()
		if err := releaseScript.Run(relCtx, l.client, []string{key}, token).Err(); err != nil {
			logger.Warn(ctx, "failed to release shop lock", "shop", shop, "error", err)
		}
		unlockLocal()
	}, nil
}

func (l *RedisLocker) acquire(ctx context.Context, key, token string) error {
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.cfg.TTL).Result()
		if err != nil {
			return fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return nil
		}

		timer := time.NewTimer(l.cfg.RetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// keepAlive extends the lease at a third of the TTL until stop is closed.
func (l *RedisLocker) keepAlive(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.cfg.TTL / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.cfg.TTL/3)
			res, err := refreshScript.Run(ctx, l.client, []string{key}, token, l.cfg.TTL.Milliseconds()).Int64()
			cancel()
			if err != nil || res == 0 {
				logger.Warn(context.Background(), "shop lock lease not refreshed", "key", key, "error", err)
			}
		}
	}
}

func (l *RedisLocker) waitError(ctx context.Context, shop string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return apperror.NewConcurrentModification("shop_lock", shop).
			WithDetail("wait", l.cfg.Wait.String())
	}
	return err
}

// NewShopLocker returns a RedisLocker when redisURL is set and a process-local
// KeyedMutex otherwise. The client is nil in the second case.
func NewShopLocker(redisURL string, cfg RedisConfig) (allocation.ShopLocker, *redis.Client, error) {
	if redisURL == "" {
		return NewKeyedMutex(), nil, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	return NewRedisLocker(client, cfg), client, nil
}
