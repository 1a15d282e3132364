package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"shop/internal/domain/model"
	"shop/internal/infra/db"
	repo "shop/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TEST_DATABASE_DSN があるときだけ実DBで動かす
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	return gdb
}

// テストごとに衝突しないユーザーID
func uniqueUserID() int64 {
	return time.Now().UnixNano() % 1_000_000_000_000
}

func TestCartGorm_SaveLoadAndVersionConflict(t *testing.T) {
	gdb := openTestDB(t)
	ctx := context.Background()
	r := NewCartGormRepository(gdb)
	userID := uniqueUserID()

	_, err := r.Load(ctx, userID)
	assert.ErrorIs(t, err, repo.ErrNotFound)

	c := model.NewCart(userID)
	require.NoError(t, c.AddItem(model.Product{ID: 1, Price: decimal.RequireFromString("2.50")}))
	require.NoError(t, c.AddItem(model.Product{ID: 1, Price: decimal.RequireFromString("2.50")}))
	require.NoError(t, r.Save(ctx, c))
	assert.Equal(t, int64(1), c.Version)

	//同じユーザーでもう一度新規作成は競合
	dup := model.NewCart(userID)
	assert.ErrorIs(t, r.Save(ctx, dup), repo.ErrConflict)

	a, err := r.Load(ctx, userID)
	require.NoError(t, err)
	b, err := r.Load(ctx, userID)
	require.NoError(t, err)
	assert.True(t, a.TotalPrice.Equal(decimal.NewFromInt(5)))
	require.Len(t, a.Items, 1)
	assert.Equal(t, int64(2), a.Items[0].Quantity)

	a.Clear()
	require.NoError(t, r.Save(ctx, a))

	//古いバージョンからの保存は失敗
	b.Clear()
	assert.ErrorIs(t, r.Save(ctx, b), repo.ErrConflict)

	got, err := r.Load(ctx, userID)
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
	assert.Equal(t, int64(2), got.Version)
}

func TestOrderGorm_InsertAndDuplicateKey(t *testing.T) {
	gdb := openTestDB(t)
	ctx := context.Background()
	r := NewOrderGormRepository(gdb)
	userID := uniqueUserID()

	p := model.Product{ID: 5, Title: "Book", Price: decimal.NewFromInt(10)}
	o, err := model.NewOrder(userID, "u@example.com", []model.CartEntry{{Product: p, Quantity: 2}},
		decimal.NewFromInt(20), 3, "key-1", time.Now())
	require.NoError(t, err)

	saved, err := r.Insert(ctx, o)
	require.NoError(t, err)
	assert.NotZero(t, saved.ID)

	_, err = r.Insert(ctx, o)
	assert.ErrorIs(t, err, repo.ErrDuplicate)

	found, ok, err := r.FindByIdempotencyKey(ctx, userID, "key-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, saved.ID, found.ID)
	require.Len(t, found.Products, 1)
	assert.Equal(t, "Book", found.Products[0].Title)
	assert.True(t, found.TotalPrice.Equal(decimal.NewFromInt(20)))

	_, ok, err = r.FindByIdempotencyKey(ctx, userID, "other")
	require.NoError(t, err)
	assert.False(t, ok)

	list, err := r.FindByUser(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
