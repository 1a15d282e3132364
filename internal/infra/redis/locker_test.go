package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	repo "shop/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocker_ReleasesAfterFn(t *testing.T) {
	client, mr := setupTestRedis(t)
	l := NewLocker(client)

	err := l.WithLock(context.Background(), "user:1", func(ctx context.Context) error {
		assert.True(t, mr.Exists("lock:user:1"))
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("lock:user:1"))
}

func TestLocker_ReturnsFnError(t *testing.T) {
	client, mr := setupTestRedis(t)
	l := NewLocker(client)
	boom := errors.New("boom")

	err := l.WithLock(context.Background(), "user:1", func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("lock:user:1"))
}

func TestLocker_TimesOutWhileHeld(t *testing.T) {
	client, mr := setupTestRedis(t)
	l := NewLocker(client)
	l.wait = 100 * time.Millisecond
	require.NoError(t, mr.Set("lock:user:1", "someone-else"))

	called := false
	err := l.WithLock(context.Background(), "user:1", func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, repo.ErrLockTimeout)
	assert.False(t, called)

	//他人のロックは消さない
	v, _ := mr.Get("lock:user:1")
	assert.Equal(t, "someone-else", v)
}

func TestLocker_SerializesSameKey(t *testing.T) {
	client, _ := setupTestRedis(t)
	l := NewLocker(client)
	l.retry = 2 * time.Millisecond

	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		count   int
		wg      sync.WaitGroup
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.WithLock(context.Background(), "user:7", func(ctx context.Context) error {
				mu.Lock()
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				mu.Unlock()

				time.Sleep(2 * time.Millisecond)

				mu.Lock()
				inside--
				count++
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 10, count)
}
