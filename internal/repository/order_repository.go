package repository

import (
	"context"

	"shop/internal/domain/model"
)

type OrderRepository interface {
	// 注文と明細をまとめて保存。同じ(user_id, idempotency_key)は ErrDuplicate
	Insert(ctx context.Context, order model.Order) (model.Order, error)
	FindByUser(ctx context.Context, userID int64) ([]model.Order, error)
	FindByID(ctx context.Context, orderID int64) (model.Order, error)

	//検索（同じキーなら同じ結果を返す）
	FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error)
}
