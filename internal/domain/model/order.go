package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrEmptyOrder = errors.New("order needs at least one product")

// 確定した注文。作成後は中身も合計も変わらない。
type Order struct {
	ID     int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID int64 `gorm:"not null;index;uniqueIndex:idx_orders_user_key,priority:1" json:"user_id"`

	//作成時点のメールアドレス
	UserEmail string `gorm:"type:varchar(255);not null" json:"user_email"`

	//カートの合計をそのままコピー（再計算しない）
	TotalPrice decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"total_price"`

	//同じキーの再実行は同じ注文を返す
	IdempotencyKey string `gorm:"type:varchar(255);not null;uniqueIndex:idx_orders_user_key,priority:2" json:"-"`

	//スナップショットを取ったときのカートのバージョン（再実行時のクリア判定に使う）
	SourceCartVersion int64 `gorm:"not null" json:"-"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`

	Products []OrderedProduct `gorm:"foreignKey:OrderID" json:"products"`
}

// カートのスナップショットから注文を組み立てる。
func NewOrder(userID int64, email string, entries []CartEntry, total decimal.Decimal, cartVersion int64, key string, now time.Time) (Order, error) {
	if len(entries) == 0 {
		return Order{}, ErrEmptyOrder
	}

	products := make([]OrderedProduct, 0, len(entries))
	for _, e := range entries {
		op, err := NewOrderedProduct(e.Product, e.Quantity)
		if err != nil {
			return Order{}, err
		}
		products = append(products, op)
	}

	return Order{
		UserID:            userID,
		UserEmail:         email,
		TotalPrice:        total,
		IdempotencyKey:    key,
		SourceCartVersion: cartVersion,
		CreatedAt:         now,
		Products:          products,
	}, nil
}
