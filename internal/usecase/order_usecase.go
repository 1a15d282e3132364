package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shop/internal/domain/model"
	repo "shop/internal/repository"

	"go.uber.org/zap"
)

const maxIdempotencyKeyLen = 255

// 注文するユーザー（JWTから取り出したもの）
type Identity struct {
	UserID int64
	Email  string
}

// /orders の業務ロジック。
// 注文の保存とカートのクリアは別々の書き込みなので、
// 冪等キーで再実行できるようにしてある。
type OrderUsecase struct {
	cart   *CartUsecase
	orders repo.OrderRepository
	log    *zap.Logger
	now    func() time.Time
}

// DI
func NewOrderUsecase(cart *CartUsecase, orders repo.OrderRepository, log *zap.Logger) *OrderUsecase {
	return &OrderUsecase{
		cart:   cart,
		orders: orders,
		log:    log,
		now:    time.Now,
	}
}

// CreateOrder はカートのスナップショットから注文を作り、カートを空にする。
// 同じキーの再実行は同じ注文を返す（途中で止まっていればクリアまで済ませる）。
func (u *OrderUsecase) CreateOrder(ctx context.Context, id Identity, idempotencyKey string) (model.Order, error) {
	const op = "order.Create"
	if id.UserID <= 0 {
		return model.Order{}, newError(KindUnauthorized, op, "unauthorized", nil)
	}
	key := strings.TrimSpace(idempotencyKey)
	if key == "" {
		return model.Order{}, newError(KindValidation, op, "idempotency key is required", nil)
	}
	if len(key) > maxIdempotencyKeyLen {
		return model.Order{}, newError(KindValidation, op, "idempotency key too long", nil)
	}

	var (
		out    model.Order
		replay bool
	)
	err := u.cart.locker.WithLock(ctx, userLockKey(id.UserID), func(ctx context.Context) error {
		existing, found, err := u.orders.FindByIdempotencyKey(ctx, id.UserID, key)
		if err != nil {
			return fromRepo(op, fmt.Sprintf("find order of user %d", id.UserID), err)
		}
		if found {
			out, replay = existing, true
			return u.finishPendingClear(ctx, op, existing)
		}

		cart, err := u.cart.loadOrNew(ctx, id.UserID)
		if err != nil {
			return fromRepo(op, fmt.Sprintf("load cart of user %d", id.UserID), err)
		}
		if cart.IsEmpty() {
			return newError(KindValidation, op, fmt.Sprintf("cart of user %d is empty", id.UserID), nil)
		}

		entries, err := u.cart.Snapshot(ctx, cart)
		if err != nil {
			return err
		}

		order, err := model.NewOrder(id.UserID, id.Email, entries, cart.TotalPrice, cart.Version, key, u.now())
		if err != nil {
			return newError(KindValidation, op, fmt.Sprintf("cart of user %d cannot be ordered", id.UserID), err)
		}

		created, err := u.orders.Insert(ctx, order)
		if errors.Is(err, repo.ErrDuplicate) {
			//別経路で同じキーの注文が先に入った
			existing, found, ferr := u.orders.FindByIdempotencyKey(ctx, id.UserID, key)
			if ferr != nil {
				return fromRepo(op, fmt.Sprintf("find order of user %d", id.UserID), ferr)
			}
			if !found {
				return fromRepo(op, fmt.Sprintf("insert order of user %d", id.UserID), err)
			}
			out, replay = existing, true
			return u.finishPendingClear(ctx, op, existing)
		}
		if err != nil {
			return fromRepo(op, fmt.Sprintf("insert order of user %d", id.UserID), err)
		}
		out = created

		//注文が保存できてから空にする
		cart.Clear()
		if err := u.cart.carts.Save(ctx, cart); err != nil {
			return u.inconsistent(op, created, err)
		}
		u.cart.refreshCache(ctx, cart)
		return nil
	})
	if err != nil {
		if KindOf(err) == KindInconsistentCheckout {
			u.log.Error("checkout left cart uncleared",
				zap.Int64("order_id", out.ID),
				zap.Int64("user_id", id.UserID),
				zap.String("idempotency_key", key),
				zap.Error(err),
			)
		}
		return model.Order{}, fromLock(op, fmt.Sprintf("lock cart of user %d", id.UserID), err)
	}

	u.log.Info("order created",
		zap.Int64("order_id", out.ID),
		zap.Int64("user_id", id.UserID),
		zap.String("total_price", out.TotalPrice.String()),
		zap.Bool("replay", replay),
	)
	return out, nil
}

// 同じキーの再実行。カートがまだ注文時のバージョンのままなら空にする。
func (u *OrderUsecase) finishPendingClear(ctx context.Context, op string, order model.Order) error {
	cart, err := u.cart.carts.Load(ctx, order.UserID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return u.inconsistent(op, order, err)
	}
	if cart.Version != order.SourceCartVersion || cart.IsEmpty() {
		return nil
	}

	cart.Clear()
	if err := u.cart.carts.Save(ctx, cart); err != nil {
		return u.inconsistent(op, order, err)
	}
	u.cart.refreshCache(ctx, cart)

	u.log.Info("pending cart clear finished",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", order.UserID),
	)
	return nil
}

func (u *OrderUsecase) inconsistent(op string, order model.Order, err error) error {
	ie := &InconsistentCheckoutError{
		OrderID:        order.ID,
		UserID:         order.UserID,
		IdempotencyKey: order.IdempotencyKey,
		Err:            err,
	}
	msg := fmt.Sprintf("order %d was created but the cart could not be cleared; retry with the same idempotency key", order.ID)
	return newError(KindInconsistentCheckout, op, msg, ie)
}

// ListMyOrders は自分の注文（新しい順）
func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64) ([]model.Order, error) {
	const op = "order.List"
	if userID <= 0 {
		return nil, newError(KindUnauthorized, op, "unauthorized", nil)
	}

	items, err := u.orders.FindByUser(ctx, userID)
	if err != nil {
		return nil, fromRepo(op, fmt.Sprintf("orders of user %d", userID), err)
	}
	if items == nil {
		items = []model.Order{}
	}
	return items, nil
}

// GetMyOrder は自分の注文1件。他人の注文はForbidden。
func (u *OrderUsecase) GetMyOrder(ctx context.Context, userID, orderID int64) (model.Order, error) {
	const op = "order.Get"
	if userID <= 0 {
		return model.Order{}, newError(KindUnauthorized, op, "unauthorized", nil)
	}
	if orderID <= 0 {
		return model.Order{}, newError(KindValidation, op, "invalid order id", nil)
	}

	o, err := u.orders.FindByID(ctx, orderID)
	if err != nil {
		return model.Order{}, fromRepo(op, fmt.Sprintf("order %d", orderID), err)
	}
	if o.UserID != userID {
		return model.Order{}, newError(KindForbidden, op, fmt.Sprintf("order %d belongs to another user", orderID), nil)
	}
	return o, nil
}
