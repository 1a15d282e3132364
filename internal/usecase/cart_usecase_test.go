package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"shop/internal/domain/model"
	"shop/internal/infra/lock"
	repo "shop/internal/repository"
	"shop/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCache struct {
	mu    sync.Mutex
	carts map[int64]model.Cart
	gets  int
}

func newMemCache() *memCache { return &memCache{carts: map[int64]model.Cart{}} }

func (m *memCache) Get(ctx context.Context, userID int64) (*model.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	c, ok := m.carts[userID]
	if !ok {
		return nil, errors.New("miss")
	}
	return &c, nil
}

func (m *memCache) Set(ctx context.Context, c *model.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.carts[c.UserID]; ok && cur.Version >= c.Version {
		return nil
	}
	cp := *c
	cp.Items = append([]model.CartLineItem{}, c.Items...)
	m.carts[c.UserID] = cp
	return nil
}

func (m *memCache) Delete(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, userID)
	return nil
}

func newCartUC(products *memProducts, carts *memCarts) *usecase.CartUsecase {
	return usecase.NewCartUsecase(carts, products, lock.NewKeyedMutex(), nil, nopLog)
}

func TestCartUsecase_AddItem_NewAndExisting(t *testing.T) {
	ctx := context.Background()
	carts := newMemCarts()
	uc := newCartUC(newMemProducts(product(1, "A", "10")), carts)

	_, err := uc.AddItem(ctx, 7, 1)
	require.NoError(t, err)
	out, err := uc.AddItem(ctx, 7, 1)
	require.NoError(t, err)

	require.Len(t, out.Items, 1)
	assert.Equal(t, int64(2), out.Items[0].Quantity)
	assert.Equal(t, "A", out.Items[0].Title)
	assert.True(t, out.Items[0].Available)
	assert.True(t, out.TotalPrice.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, int64(2), carts.get(7).Version)
}

func TestCartUsecase_AddItem_ProductNotFound(t *testing.T) {
	carts := newMemCarts()
	uc := newCartUC(newMemProducts(), carts)

	_, err := uc.AddItem(context.Background(), 7, 99)
	assert.Equal(t, usecase.KindNotFound, usecase.KindOf(err))
	assert.ErrorContains(t, err, "product 99")
	assert.Equal(t, 0, carts.saves)
}

func TestCartUsecase_AddItem_InvalidInput(t *testing.T) {
	uc := newCartUC(newMemProducts(), newMemCarts())

	_, err := uc.AddItem(context.Background(), 7, 0)
	assert.Equal(t, usecase.KindValidation, usecase.KindOf(err))

	_, err = uc.AddItem(context.Background(), 0, 1)
	assert.Equal(t, usecase.KindUnauthorized, usecase.KindOf(err))
}

func TestCartUsecase_RemoveItem_AbsentDoesNotSave(t *testing.T) {
	ctx := context.Background()
	carts := newMemCarts()
	uc := newCartUC(newMemProducts(product(1, "A", "10"), product(2, "B", "5")), carts)
	_, err := uc.AddItem(ctx, 7, 1)
	require.NoError(t, err)

	out, err := uc.RemoveItem(ctx, 7, 2)
	require.NoError(t, err)

	assert.Len(t, out.Items, 1)
	assert.Equal(t, 1, carts.saves)
	assert.Equal(t, int64(1), out.Version)
}

func TestCartUsecase_RemoveItem_SoftDeletedProduct(t *testing.T) {
	ctx := context.Background()
	products := newMemProducts(product(1, "A", "10"), product(2, "B", "5"))
	uc := newCartUC(products, newMemCarts())
	for _, id := range []int64{1, 1, 2} {
		_, err := uc.AddItem(ctx, 7, id)
		require.NoError(t, err)
	}
	products.softDelete(1)

	//表示では注文できない商品として出る
	view, err := uc.GetCart(ctx, 7)
	require.NoError(t, err)
	require.Len(t, view.Items, 2)
	assert.False(t, view.Items[0].Available)

	out, err := uc.RemoveItem(ctx, 7, 1)
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.Equal(t, int64(2), out.Items[0].ProductID)
	assert.True(t, out.TotalPrice.Equal(decimal.NewFromInt(5)))
}

func TestCartUsecase_Clear(t *testing.T) {
	ctx := context.Background()
	uc := newCartUC(newMemProducts(product(1, "A", "10")), newMemCarts())
	_, err := uc.AddItem(ctx, 7, 1)
	require.NoError(t, err)

	out, err := uc.Clear(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, out.Items)
	assert.True(t, out.TotalPrice.IsZero())
}

// 同じユーザーへの同時追加で更新が消えない
func TestCartUsecase_AddItem_ConcurrentNoLostUpdate(t *testing.T) {
	ctx := context.Background()
	carts := newMemCarts()
	uc := newCartUC(newMemProducts(product(1, "A", "2.50")), carts)

	const n = 30
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := uc.AddItem(ctx, 7, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	c := carts.get(7)
	require.Len(t, c.Items, 1)
	assert.Equal(t, int64(n), c.Items[0].Quantity)
	assert.True(t, c.TotalPrice.Equal(decimal.RequireFromString("75")))
}

func TestCartUsecase_RetriesOnVersionConflict(t *testing.T) {
	ctx := context.Background()
	carts := newMemCarts()
	uc := newCartUC(newMemProducts(product(1, "A", "10")), carts)

	conflicts := 2
	carts.beforeSave = func(c *model.Cart) error {
		if conflicts > 0 {
			conflicts--
			return repo.ErrConflict
		}
		return nil
	}

	out, err := uc.AddItem(ctx, 7, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.Items[0].Quantity)
}

func TestCartUsecase_GivesUpAfterThreeConflicts(t *testing.T) {
	ctx := context.Background()
	carts := newMemCarts()
	uc := newCartUC(newMemProducts(product(1, "A", "10")), carts)

	attempts := 0
	carts.beforeSave = func(c *model.Cart) error {
		attempts++
		return repo.ErrConflict
	}

	_, err := uc.AddItem(ctx, 7, 1)
	assert.Equal(t, usecase.KindConflict, usecase.KindOf(err))
	assert.Equal(t, 3, attempts)
}

func TestCartUsecase_SaveFailureIsPersistence(t *testing.T) {
	carts := newMemCarts()
	uc := newCartUC(newMemProducts(product(1, "A", "10")), carts)
	carts.beforeSave = func(c *model.Cart) error { return errors.New("connection reset") }

	_, err := uc.AddItem(context.Background(), 7, 1)
	assert.Equal(t, usecase.KindPersistence, usecase.KindOf(err))
	assert.ErrorContains(t, err, "cart.AddItem")
}

func TestCartUsecase_Snapshot_FailsWithAllMissingIDs(t *testing.T) {
	ctx := context.Background()
	products := newMemProducts(product(1, "A", "10"), product(2, "B", "5"), product(3, "C", "1"))
	uc := newCartUC(products, newMemCarts())

	c := model.NewCart(7)
	for _, id := range []int64{1, 2, 3} {
		p, _ := products.FindByID(ctx, id)
		require.NoError(t, c.AddItem(p))
	}
	products.softDelete(1)
	products.softDelete(3)

	_, err := uc.Snapshot(ctx, c)
	require.Error(t, err)
	assert.Equal(t, usecase.KindNotFound, usecase.KindOf(err))

	var me *usecase.MissingProductsError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, []int64{1, 3}, me.ProductIDs)
}

func TestCartUsecase_Snapshot_ResolvesCurrentCatalog(t *testing.T) {
	ctx := context.Background()
	products := newMemProducts(product(1, "A", "10"))
	uc := newCartUC(products, newMemCarts())

	c := model.NewCart(7)
	require.NoError(t, c.AddItem(product(1, "A", "10")))
	require.NoError(t, c.AddItem(product(1, "A", "10")))

	entries, err := uc.Snapshot(ctx, c)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "A", entries[0].Product.Title)
	assert.Equal(t, int64(2), entries[0].Quantity)
}

func TestCartUsecase_GetCart_ReadsThroughCache(t *testing.T) {
	ctx := context.Background()
	carts := newMemCarts()
	cache := newMemCache()
	uc := usecase.NewCartUsecase(carts, newMemProducts(product(1, "A", "10")), lock.NewKeyedMutex(), cache, nopLog)

	_, err := uc.AddItem(ctx, 7, 1)
	require.NoError(t, err)

	//更新で新しいバージョンが書かれている
	cached, err := cache.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cached.Version)

	view, err := uc.GetCart(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), view.Version)

	_, err = uc.AddItem(ctx, 7, 1)
	require.NoError(t, err)
	view, err = uc.GetCart(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(2), view.Items[0].Quantity)
}

func TestCartUsecase_GetCart_NoCartYet(t *testing.T) {
	uc := newCartUC(newMemProducts(), newMemCarts())

	view, err := uc.GetCart(context.Background(), 3)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.True(t, view.TotalPrice.IsZero())
}
