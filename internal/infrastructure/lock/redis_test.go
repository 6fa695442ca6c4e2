package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skugen/internal/core/apperror"
)

const testShop = "acme.myshopify.com"

func newTestLocker(t *testing.T, cfg RedisConfig) (*RedisLocker, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	l := NewRedisLocker(db, cfg)
	l.newToken = func() string { return "token-1" }
	return l, mock
}

func TestRedisLocker_AcquireAndRelease(t *testing.T) {
	l, mock := newTestLocker(t, RedisConfig{TTL: 30 * time.Second, Wait: time.Second})
	key := lockKey(testShop)

	mock.ExpectSetNX(key, "token-1", 30*time.Second).SetVal(true)
	mock.ExpectEvalSha(releaseScript.Hash(), []string{key}, "token-1").SetVal(int64(1))

	unlock, err := l.Lock(context.Background(), testShop)
	require.NoError(t, err)
	unlock()

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 0, l.local.size())
}

func TestRedisLocker_RetriesWhileHeldElsewhere(t *testing.T) {
	l, mock := newTestLocker(t, RedisConfig{TTL: 30 * time.Second, Wait: time.Second, RetryInterval: time.Millisecond})
	key := lockKey(testShop)

	mock.ExpectSetNX(key, "token-1", 30*time.Second).SetVal(false)
	mock.ExpectSetNX(key, "token-1", 30*time.Second).SetVal(false)
	mock.ExpectSetNX(key, "token-1", 30*time.Second).SetVal(true)
	mock.ExpectEvalSha(releaseScript.Hash(), []string{key}, "token-1").SetVal(int64(1))

	unlock, err := l.Lock(context.Background(), testShop)
	require.NoError(t, err)
	unlock()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLocker_WaitExceededIsConcurrentModification(t *testing.T) {
	l, mock := newTestLocker(t, RedisConfig{TTL: 30 * time.Second, Wait: 30 * time.Millisecond, RetryInterval: 10 * time.Millisecond})
	mock.MatchExpectationsInOrder(false)
	key := lockKey(testShop)
	for i := 0; i < 20; i++ {
		mock.ExpectSetNX(key, "token-1", 30*time.Second).SetVal(false)
	}

	_, err := l.Lock(context.Background(), testShop)

	assert.True(t, apperror.IsConcurrentModification(err))
	assert.Equal(t, 0, l.local.size())
}

func TestRedisLocker_RedisErrorIsReturned(t *testing.T) {
	l, mock := newTestLocker(t, RedisConfig{TTL: 30 * time.Second, Wait: time.Second})
	redisErr := errors.New("connection refused")
	mock.ExpectSetNX(lockKey(testShop), "token-1", 30*time.Second).SetErr(redisErr)

	_, err := l.Lock(context.Background(), testShop)

	assert.ErrorIs(t, err, redisErr)
	assert.Equal(t, 0, l.local.size())
}

func TestNewShopLocker(t *testing.T) {
	locker, client, err := NewShopLocker("", RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, client)
	assert.IsType(t, &KeyedMutex{}, locker)

	locker, client, err = NewShopLocker("redis://localhost:6379/0", RedisConfig{})
	require.NoError(t, err)
	require.NotNil(t, client)
	defer client.Close()
	assert.IsType(t, &RedisLocker{}, locker)

	_, _, err = NewShopLocker("://bad", RedisConfig{})
	assert.Error(t, err)
}
