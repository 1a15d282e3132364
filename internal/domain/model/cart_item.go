package model

import "errors"

var (
	// 数量は1以上
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// 商品IDが不正、または価格が負
	ErrInvalidProduct = errors.New("invalid product")
)

// カートの明細。1カートにつき同じ商品は1行だけ。
type CartLineItem struct {
	UserID    int64 `gorm:"primaryKey;autoIncrement:false" json:"-"`
	ProductID int64 `gorm:"primaryKey;autoIncrement:false" json:"product_id"`
	Quantity  int64 `gorm:"not null" json:"quantity"`
}

func (CartLineItem) TableName() string { return "cart_items" }

// 明細を作る（保存値の読み込み時もここを通す）
func NewCartLineItem(productID int64, quantity int64) (CartLineItem, error) {
	if productID <= 0 {
		return CartLineItem{}, ErrInvalidProduct
	}
	if quantity < 1 {
		return CartLineItem{}, ErrInvalidQuantity
	}
	return CartLineItem{ProductID: productID, Quantity: quantity}, nil
}

// スナップショットの1行（解決済み商品＋数量）
type CartEntry struct {
	Product  Product
	Quantity int64
}
