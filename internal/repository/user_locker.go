package repository

import (
	"context"
	"errors"
)

// 待っている間にロックが取れなかった
var ErrLockTimeout = errors.New("lock not acquired")

// ユーザー単位の排他。load→変更→saveの間だけ保持する。
type UserLocker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}
