package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 1ユーザーにつき1つ。TotalPriceは操作ごとに差分で更新する（再計算しない）。
type Cart struct {
	UserID     int64           `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	TotalPrice decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"total_price"`

	//楽観ロック用。0は未保存
	Version   int64     `gorm:"not null;default:0" json:"version"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`

	Items []CartLineItem `gorm:"-" json:"items"`
}

// 空のカート
func NewCart(userID int64) *Cart {
	return &Cart{
		UserID:     userID,
		TotalPrice: decimal.Zero,
		Items:      []CartLineItem{},
	}
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// 商品の現在数量（無ければ0）
func (c *Cart) Quantity(productID int64) int64 {
	if i := c.indexOf(productID); i >= 0 {
		return c.Items[i].Quantity
	}
	return 0
}

// 1個追加。同じ商品があれば数量+1、無ければ数量1で追加。
// 合計は product.Price だけ増える。
func (c *Cart) AddItem(p Product) error {
	if !p.Valid() {
		return ErrInvalidProduct
	}

	if i := c.indexOf(p.ID); i >= 0 {
		c.Items[i].Quantity++
	} else {
		c.Items = append(c.Items, CartLineItem{UserID: c.UserID, ProductID: p.ID, Quantity: 1})
	}
	c.TotalPrice = c.TotalPrice.Add(p.Price)
	return nil
}

// 明細ごと削除（1個ずつ減らすのではない）。
// 無い商品なら何もしないで false。
func (c *Cart) RemoveItem(p Product) bool {
	i := c.indexOf(p.ID)
	if i < 0 {
		return false
	}

	qty := c.Items[i].Quantity
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	c.TotalPrice = c.TotalPrice.Sub(p.Price.Mul(decimal.NewFromInt(qty)))
	return true
}

// 注文確定後に空にする
func (c *Cart) Clear() {
	c.Items = []CartLineItem{}
	c.TotalPrice = decimal.Zero
}

func (c *Cart) indexOf(productID int64) int {
	for i, it := range c.Items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}
