package model

import "github.com/shopspring/decimal"

// 注文時点の商品のコピー。あとで商品が変更・削除されても変わらない。
type OrderedProduct struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"-"`
	OrderID   int64           `gorm:"not null;index" json:"-"`
	ProductID int64           `gorm:"not null" json:"product_id"`
	Title     string          `gorm:"type:varchar(255);not null" json:"title"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Quantity  int64           `gorm:"not null" json:"quantity"`
}

func NewOrderedProduct(p Product, quantity int64) (OrderedProduct, error) {
	if !p.Valid() {
		return OrderedProduct{}, ErrInvalidProduct
	}
	if quantity < 1 {
		return OrderedProduct{}, ErrInvalidQuantity
	}
	return OrderedProduct{
		ProductID: p.ID,
		Title:     p.Title,
		Price:     p.Price,
		Quantity:  quantity,
	}, nil
}
