package repository

import (
	"context"
	"errors"

	"shop/internal/domain/model"
)

var (
	ErrNotFound = errors.New("not found")
	// 楽観ロックの競合（バージョン不一致）
	ErrConflict = errors.New("version conflict")
	// 一意制約違反（同じ冪等キーなど）
	ErrDuplicate = errors.New("duplicate")
)

// 一覧検索
type ProductListQuery struct {
	Page   int
	Limit  int
	UserID *int64
}

// カタログ。カートからは読み取りのみ。
type ProductRepository interface {
	List(ctx context.Context, q ProductListQuery) ([]model.Product, int64, error)
	FindByID(ctx context.Context, id int64) (model.Product, error)
	// 論理削除済みも含めて取得（カートから削除済み商品を外すため）
	FindByIDUnscoped(ctx context.Context, id int64) (model.Product, error)

	Create(ctx context.Context, p model.Product) (model.Product, error)
	Update(ctx context.Context, p model.Product) error
	SoftDelete(ctx context.Context, id int64) error
}
