package repository

import (
	"context"
	"time"

	"shop/internal/domain/model"
)

// 保存・取得を約束
type UserRepository interface {
	//新規ユーザー作成
	Create(ctx context.Context, user *model.User) error
	// IDからユーザーを1件取得する。無ければ ErrNotFound
	FindByID(ctx context.Context, userID int64) (*model.User, error)
	//メールからユーザーを一件取得する。無ければ ErrNotFound
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	//有効期限内の再設定トークンで取得
	FindByResetToken(ctx context.Context, token string, now time.Time) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
}
