package repository

import (
	"context"

	"shop/internal/domain/model"
)

// カートの読み書き（ユーザーIDがキー）。
type CartRepository interface {
	// 無ければ ErrNotFound
	Load(ctx context.Context, userID int64) (*model.Cart, error)
	// Version==0 なら新規作成、それ以外は同じVersionのときだけ更新。
	// 成功したら cart.Version を進める。不一致は ErrConflict。
	Save(ctx context.Context, cart *model.Cart) error
}

// 表示用の読み取りキャッシュ
type CartCache interface {
	Get(ctx context.Context, userID int64) (*model.Cart, error)
	Set(ctx context.Context, cart *model.Cart) error
	Delete(ctx context.Context, userID int64) error
}
