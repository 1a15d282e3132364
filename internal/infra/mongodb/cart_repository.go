package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shop/internal/domain/model"
	repo "shop/internal/repository"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const cartCollection = "carts"

// 1カート=1ドキュメント。金額は丸め誤差を避けるため文字列で持つ。
type cartDocument struct {
	UserID     int64          `bson:"_id"`
	TotalPrice string         `bson:"total_price"`
	Version    int64          `bson:"version"`
	Items      []itemDocument `bson:"items"`
	UpdatedAt  time.Time      `bson:"updated_at"`
}

type itemDocument struct {
	ProductID int64 `bson:"product_id"`
	Quantity  int64 `bson:"quantity"`
}

type CartRepository struct {
	collection *mongo.Collection
}

func NewCartRepository(db *mongo.Database) *CartRepository {
	return &CartRepository{collection: db.Collection(cartCollection)}
}

func (r *CartRepository) Load(ctx context.Context, userID int64) (*model.Cart, error) {
	var doc cartDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find cart: %w", err)
	}
	return fromDocument(doc)
}

// Version==0 は新規作成、それ以外はバージョン一致のときだけ置き換え
func (r *CartRepository) Save(ctx context.Context, cart *model.Cart) error {
	now := time.Now()
	doc := toDocument(cart, cart.Version+1, now)

	if cart.Version == 0 {
		if _, err := r.collection.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return repo.ErrConflict
			}
			return fmt.Errorf("insert cart: %w", err)
		}
	} else {
		filter := bson.M{"_id": cart.UserID, "version": cart.Version}
		res, err := r.collection.ReplaceOne(ctx, filter, doc)
		if err != nil {
			return fmt.Errorf("replace cart: %w", err)
		}
		if res.MatchedCount == 0 {
			return repo.ErrConflict
		}
	}

	cart.Version = doc.Version
	cart.UpdatedAt = now
	return nil
}

func toDocument(c *model.Cart, version int64, now time.Time) cartDocument {
	items := make([]itemDocument, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, itemDocument{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return cartDocument{
		UserID:     c.UserID,
		TotalPrice: c.TotalPrice.String(),
		Version:    version,
		Items:      items,
		UpdatedAt:  now,
	}
}

func fromDocument(doc cartDocument) (*model.Cart, error) {
	total, err := decimal.NewFromString(doc.TotalPrice)
	if err != nil {
		return nil, fmt.Errorf("cart %d total_price: %w", doc.UserID, err)
	}

	cart := model.NewCart(doc.UserID)
	cart.TotalPrice = total
	cart.Version = doc.Version
	cart.UpdatedAt = doc.UpdatedAt

	for _, d := range doc.Items {
		it, err := model.NewCartLineItem(d.ProductID, d.Quantity)
		if err != nil {
			return nil, fmt.Errorf("cart %d product %d: %w", doc.UserID, d.ProductID, err)
		}
		it.UserID = doc.UserID
		cart.Items = append(cart.Items, it)
	}
	return cart, nil
}
