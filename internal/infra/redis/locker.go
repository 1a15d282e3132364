package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	repo "shop/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// 自分のトークンのときだけ消す
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// 複数インスタンスで共有するユーザー単位のロック（SET NX PX）。
type Locker struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
	wait   time.Duration
}

var _ repo.UserLocker = (*Locker)(nil)

func NewLocker(client *redis.Client) *Locker {
	return &Locker{
		client: client,
		ttl:    10 * time.Second,
		retry:  20 * time.Millisecond,
		wait:   5 * time.Second,
	}
}

func (l *Locker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	token := uuid.NewString()
	lockKey := "lock:" + key

	if err := l.acquire(ctx, lockKey, token); err != nil {
		return err
	}
	defer func() {
		//呼び出し元のctxが切れていても解放はする
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_ = releaseScript.Run(rctx, l.client, []string{lockKey}, token).Err()
	}()

	return fn(ctx)
}

func (l *Locker) acquire(ctx context.Context, lockKey, token string) error {
	ctx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("redis setnx failed: %w", err)
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s", repo.ErrLockTimeout, lockKey)
		case <-ticker.C:
		}
	}
}
