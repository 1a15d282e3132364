package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shop/internal/domain/model"
	repo "shop/internal/repository"

	"gorm.io/gorm"
)

type CartGormRepository struct {
	db *gorm.DB
}

// DI
func NewCartGormRepository(db *gorm.DB) *CartGormRepository {
	return &CartGormRepository{db: db}
}

// ユーザーのカートと明細を取得
func (r *CartGormRepository) Load(ctx context.Context, userID int64) (*model.Cart, error) {
	var cart model.Cart

	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var rows []model.CartLineItem
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("product_id asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	//保存値も明細の制約を通す
	cart.Items = make([]model.CartLineItem, 0, len(rows))
	for _, row := range rows {
		it, err := model.NewCartLineItem(row.ProductID, row.Quantity)
		if err != nil {
			return nil, fmt.Errorf("cart %d product %d: %w", userID, row.ProductID, err)
		}
		it.UserID = userID
		cart.Items = append(cart.Items, it)
	}

	return &cart, nil
}

// バージョンが一致するときだけ保存（明細は入れ替え）
func (r *CartGormRepository) Save(ctx context.Context, cart *model.Cart) error {
	now := time.Now()
	next := cart.Version + 1

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if cart.Version == 0 {
			row := model.Cart{
				UserID:     cart.UserID,
				TotalPrice: cart.TotalPrice,
				Version:    next,
				UpdatedAt:  now,
			}
			if err := tx.Create(&row).Error; err != nil {
				// 同時に作られた
				if isUniqueViolation(err) {
					return repo.ErrConflict
				}
				return err
			}
		} else {
			res := tx.Model(&model.Cart{}).
				Where("user_id = ? AND version = ?", cart.UserID, cart.Version).
				Updates(map[string]interface{}{
					"total_price": cart.TotalPrice,
					"version":     next,
					"updated_at":  now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return repo.ErrConflict
			}
		}

		//cart_itemsを入れ替え
		if err := tx.Where("user_id = ?", cart.UserID).Delete(&model.CartLineItem{}).Error; err != nil {
			return err
		}
		if len(cart.Items) == 0 {
			return nil
		}

		rows := make([]model.CartLineItem, 0, len(cart.Items))
		for _, it := range cart.Items {
			rows = append(rows, model.CartLineItem{
				UserID:    cart.UserID,
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
			})
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return err
	}

	cart.Version = next
	cart.UpdatedAt = now
	return nil
}
