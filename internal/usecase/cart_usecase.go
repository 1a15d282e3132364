package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"shop/internal/domain/model"
	repo "shop/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// 競合時にload→変更→saveをやり直す回数
const maxSaveAttempts = 3

// 変更なし（saveしない）
var errNoChange = errors.New("no change")

// /cart の業務ロジック。
// 変更系は必ずユーザーロックの中で load→変更→save する。
type CartUsecase struct {
	carts    repo.CartRepository
	products repo.ProductRepository
	locker   repo.UserLocker
	cache    repo.CartCache
	group    singleflight.Group
	log      *zap.Logger
}

// DI
func NewCartUsecase(
	carts repo.CartRepository,
	products repo.ProductRepository,
	locker repo.UserLocker,
	cache repo.CartCache,
	log *zap.Logger,
) *CartUsecase {
	//Redisが無い構成ではキャッシュしない
	if cache == nil {
		cache = nopCartCache{}
	}
	return &CartUsecase{
		carts:    carts,
		products: products,
		locker:   locker,
		cache:    cache,
		log:      log,
	}
}

type CartLineView struct {
	ProductID int64           `json:"product_id"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
	// 論理削除済みの商品はfalse（注文できないので外してもらう）
	Available bool `json:"available"`
}

type CartView struct {
	Items      []CartLineView  `json:"items"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Version    int64           `json:"version"`
}

// ロックのキー（注文確定も同じキーを使う）
func userLockKey(userID int64) string {
	return "user:" + strconv.FormatInt(userID, 10)
}

// GetCart はカートの表示用（ロックなし、キャッシュ経由）
func (u *CartUsecase) GetCart(ctx context.Context, userID int64) (CartView, error) {
	const op = "cart.Get"
	if userID <= 0 {
		return CartView{}, newError(KindUnauthorized, op, "unauthorized", nil)
	}

	cart, err := u.loadForView(ctx, userID)
	if err != nil {
		return CartView{}, fromRepo(op, fmt.Sprintf("load cart of user %d", userID), err)
	}
	return u.view(ctx, op, cart)
}

// AddItem は商品を1個追加する
func (u *CartUsecase) AddItem(ctx context.Context, userID, productID int64) (CartView, error) {
	const op = "cart.AddItem"
	if userID <= 0 {
		return CartView{}, newError(KindUnauthorized, op, "unauthorized", nil)
	}
	if productID <= 0 {
		return CartView{}, newError(KindValidation, op, "invalid product_id", nil)
	}

	p, err := u.products.FindByID(ctx, productID)
	if err != nil {
		return CartView{}, fromRepo(op, fmt.Sprintf("product %d", productID), err)
	}

	cart, err := u.mutate(ctx, op, userID, func(c *model.Cart) error {
		if err := c.AddItem(p); err != nil {
			return newError(KindValidation, op, fmt.Sprintf("product %d cannot be added", productID), err)
		}
		return nil
	})
	if err != nil {
		return CartView{}, err
	}

	u.log.Info("cart item added",
		zap.Int64("user_id", userID),
		zap.Int64("product_id", productID),
		zap.Int64("quantity", cart.Quantity(productID)),
		zap.Int64("version", cart.Version),
	)
	return u.view(ctx, op, cart)
}

// RemoveItem は商品の明細ごと外す。無ければ何もしない。
func (u *CartUsecase) RemoveItem(ctx context.Context, userID, productID int64) (CartView, error) {
	const op = "cart.RemoveItem"
	if userID <= 0 {
		return CartView{}, newError(KindUnauthorized, op, "unauthorized", nil)
	}
	if productID <= 0 {
		return CartView{}, newError(KindValidation, op, "invalid product_id", nil)
	}

	//削除済み商品でも外せるようにUnscopedで引く
	p, err := u.products.FindByIDUnscoped(ctx, productID)
	if err != nil {
		return CartView{}, fromRepo(op, fmt.Sprintf("product %d", productID), err)
	}

	cart, err := u.mutate(ctx, op, userID, func(c *model.Cart) error {
		if !c.RemoveItem(p) {
			return errNoChange
		}
		return nil
	})
	if err != nil {
		return CartView{}, err
	}
	return u.view(ctx, op, cart)
}

// Clear はカートを空にする
func (u *CartUsecase) Clear(ctx context.Context, userID int64) (CartView, error) {
	const op = "cart.Clear"
	if userID <= 0 {
		return CartView{}, newError(KindUnauthorized, op, "unauthorized", nil)
	}

	cart, err := u.mutate(ctx, op, userID, func(c *model.Cart) error {
		if c.IsEmpty() && c.TotalPrice.IsZero() {
			return errNoChange
		}
		c.Clear()
		return nil
	})
	if err != nil {
		return CartView{}, err
	}
	return u.view(ctx, op, cart)
}

// Snapshot は明細を今のカタログで解決する。
// 1つでも見つからなければ全体を失敗にする（見つからないIDは全部返す）。
func (u *CartUsecase) Snapshot(ctx context.Context, cart *model.Cart) ([]model.CartEntry, error) {
	const op = "cart.Snapshot"

	entries := make([]model.CartEntry, 0, len(cart.Items))
	var missing []int64
	for _, it := range cart.Items {
		p, err := u.products.FindByID(ctx, it.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			missing = append(missing, it.ProductID)
			continue
		}
		if err != nil {
			return nil, fromRepo(op, fmt.Sprintf("product %d", it.ProductID), err)
		}
		entries = append(entries, model.CartEntry{Product: p, Quantity: it.Quantity})
	}

	if len(missing) > 0 {
		me := &MissingProductsError{ProductIDs: missing}
		return nil, newError(KindNotFound, op, me.Error(), me)
	}
	return entries, nil
}

// ロック中に呼ぶ。カートが無ければ空の新規カート。
func (u *CartUsecase) loadOrNew(ctx context.Context, userID int64) (*model.Cart, error) {
	cart, err := u.carts.Load(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.NewCart(userID), nil
	}
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// ユーザーロックの中で load→fn→save。競合したら最初からやり直す。
func (u *CartUsecase) mutate(ctx context.Context, op string, userID int64, fn func(c *model.Cart) error) (*model.Cart, error) {
	var out *model.Cart

	err := u.locker.WithLock(ctx, userLockKey(userID), func(ctx context.Context) error {
		for attempt := 1; ; attempt++ {
			cart, err := u.loadOrNew(ctx, userID)
			if err != nil {
				return fromRepo(op, fmt.Sprintf("load cart of user %d", userID), err)
			}

			if err := fn(cart); err != nil {
				if errors.Is(err, errNoChange) {
					out = cart
					return nil
				}
				return err
			}

			err = u.carts.Save(ctx, cart)
			if err == nil {
				out = cart
				u.refreshCache(ctx, cart)
				return nil
			}
			if !errors.Is(err, repo.ErrConflict) || attempt >= maxSaveAttempts {
				return fromRepo(op, fmt.Sprintf("save cart of user %d", userID), err)
			}

			u.log.Warn("cart save conflict, retrying",
				zap.String("op", op),
				zap.Int64("user_id", userID),
				zap.Int("attempt", attempt),
			)
		}
	})
	if err != nil {
		return nil, fromLock(op, fmt.Sprintf("lock cart of user %d", userID), err)
	}
	return out, nil
}

// 保存後のカートをキャッシュに書く。失敗したら消す。
func (u *CartUsecase) refreshCache(ctx context.Context, cart *model.Cart) {
	if err := u.cache.Set(ctx, cart); err == nil {
		return
	}
	if err := u.cache.Delete(ctx, cart.UserID); err != nil {
		u.log.Error("cart cache invalidate failed", zap.Int64("user_id", cart.UserID), zap.Error(err))
	}
}

func (u *CartUsecase) loadForView(ctx context.Context, userID int64) (*model.Cart, error) {
	if cart, err := u.cache.Get(ctx, userID); err == nil && cart != nil {
		return cart, nil
	}

	v, err, _ := u.group.Do(strconv.FormatInt(userID, 10), func() (interface{}, error) {
		cart, err := u.loadOrNew(ctx, userID)
		if err != nil {
			return nil, err
		}
		if cart.Version > 0 {
			if err := u.cache.Set(ctx, cart); err != nil {
				u.log.Warn("cart cache set failed", zap.Int64("user_id", userID), zap.Error(err))
			}
		}
		return cart, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Cart), nil
}

func (u *CartUsecase) view(ctx context.Context, op string, cart *model.Cart) (CartView, error) {
	out := CartView{
		Items:      make([]CartLineView, 0, len(cart.Items)),
		TotalPrice: cart.TotalPrice,
		Version:    cart.Version,
	}

	for _, it := range cart.Items {
		line := CartLineView{ProductID: it.ProductID, Quantity: it.Quantity}

		p, err := u.products.FindByID(ctx, it.ProductID)
		switch {
		case err == nil:
			line.Title, line.Price, line.Available = p.Title, p.Price, true
		case errors.Is(err, repo.ErrNotFound):
			if p, err := u.products.FindByIDUnscoped(ctx, it.ProductID); err == nil {
				line.Title, line.Price = p.Title, p.Price
			}
		default:
			return CartView{}, fromRepo(op, fmt.Sprintf("product %d", it.ProductID), err)
		}
		out.Items = append(out.Items, line)
	}
	return out, nil
}

type nopCartCache struct{}

var errCacheDisabled = errors.New("cart cache disabled")

func (nopCartCache) Get(context.Context, int64) (*model.Cart, error) { return nil, errCacheDisabled }
func (nopCartCache) Set(context.Context, *model.Cart) error         { return nil }
func (nopCartCache) Delete(context.Context, int64) error            { return nil }
