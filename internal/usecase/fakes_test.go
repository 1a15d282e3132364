package usecase_test

import (
	"context"
	"io"
	"sync"
	"time"

	"shop/internal/domain/model"
	repo "shop/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

var nopLog = zap.NewNop()

// =====================
// カタログ（メモリ）
// =====================

type memProducts struct {
	mu      sync.Mutex
	items   map[int64]model.Product
	deleted map[int64]bool
}

func newMemProducts(ps ...model.Product) *memProducts {
	m := &memProducts{items: map[int64]model.Product{}, deleted: map[int64]bool{}}
	for _, p := range ps {
		m.items[p.ID] = p
	}
	return m
}

func product(id int64, title, price string) model.Product {
	return model.Product{ID: id, Title: title, Price: decimal.RequireFromString(price), UserID: 1}
}

func (m *memProducts) softDelete(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted[id] = true
}

func (m *memProducts) List(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	panic("not used")
}

func (m *memProducts) FindByID(ctx context.Context, id int64) (model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok || m.deleted[id] {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (m *memProducts) FindByIDUnscoped(ctx context.Context, id int64) (model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (m *memProducts) Create(ctx context.Context, p model.Product) (model.Product, error) {
	panic("not used")
}

func (m *memProducts) Update(ctx context.Context, p model.Product) error { panic("not used") }

func (m *memProducts) SoftDelete(ctx context.Context, id int64) error { panic("not used") }

// =====================
// カート（メモリ、バージョン検査あり）
// =====================

type memCarts struct {
	mu    sync.Mutex
	carts map[int64]model.Cart
	saves int

	// nilでなければSaveの前に呼ぶ（エラーを返すとそのまま失敗）
	beforeSave func(c *model.Cart) error
}

func newMemCarts() *memCarts {
	return &memCarts{carts: map[int64]model.Cart{}}
}

func (m *memCarts) Load(ctx context.Context, userID int64) (*model.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[userID]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := c
	cp.Items = append([]model.CartLineItem{}, c.Items...)
	return &cp, nil
}

func (m *memCarts) Save(ctx context.Context, c *model.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.beforeSave != nil {
		if err := m.beforeSave(c); err != nil {
			return err
		}
	}

	cur, ok := m.carts[c.UserID]
	if c.Version == 0 && ok {
		return repo.ErrConflict
	}
	if c.Version != 0 && (!ok || cur.Version != c.Version) {
		return repo.ErrConflict
	}

	c.Version++
	stored := *c
	stored.Items = append([]model.CartLineItem{}, c.Items...)
	m.carts[c.UserID] = stored
	m.saves++
	return nil
}

func (m *memCarts) get(userID int64) model.Cart {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.carts[userID]
}

// =====================
// 注文（メモリ）
// =====================

type memOrders struct {
	mu      sync.Mutex
	nextID  int64
	orders  []model.Order
	inserts int

	// nilでなければInsertの代わりに返す
	insertErr error
}

func newMemOrders() *memOrders {
	return &memOrders{nextID: 1}
}

func (m *memOrders) Insert(ctx context.Context, o model.Order) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if m.insertErr != nil {
		return model.Order{}, m.insertErr
	}
	for _, ex := range m.orders {
		if ex.UserID == o.UserID && ex.IdempotencyKey == o.IdempotencyKey {
			return model.Order{}, repo.ErrDuplicate
		}
	}
	o.ID = m.nextID
	m.nextID++
	m.orders = append(m.orders, o)
	return o, nil
}

func (m *memOrders) FindByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Order
	for i := len(m.orders) - 1; i >= 0; i-- {
		if m.orders[i].UserID == userID {
			out = append(out, m.orders[i])
		}
	}
	return out, nil
}

func (m *memOrders) FindByID(ctx context.Context, id int64) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.ID == id {
			return o, nil
		}
	}
	return model.Order{}, repo.ErrNotFound
}

func (m *memOrders) FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.UserID == userID && o.IdempotencyKey == key {
			return o, true, nil
		}
	}
	return model.Order{}, false, nil
}

// =====================
// Mocks
// =====================

type ProductRepoMock struct{ mock.Mock }

func (m *ProductRepoMock) List(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	args := m.Called(ctx, q)
	items, _ := args.Get(0).([]model.Product)
	return items, args.Get(1).(int64), args.Error(2)
}

func (m *ProductRepoMock) FindByID(ctx context.Context, id int64) (model.Product, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(model.Product)
	return p, args.Error(1)
}

func (m *ProductRepoMock) FindByIDUnscoped(ctx context.Context, id int64) (model.Product, error) {
	panic("not used in ProductUsecase tests")
}

func (m *ProductRepoMock) Create(ctx context.Context, p model.Product) (model.Product, error) {
	args := m.Called(ctx, p)
	created, _ := args.Get(0).(model.Product)
	return created, args.Error(1)
}

func (m *ProductRepoMock) Update(ctx context.Context, p model.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *ProductRepoMock) SoftDelete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type AuditRepoMock struct{ mock.Mock }

func (m *AuditRepoMock) Create(ctx context.Context, log model.AuditLog) error {
	return m.Called(ctx, log).Error(0)
}

func (m *AuditRepoMock) List(ctx context.Context, filter repo.AuditLogFilter) ([]model.AuditLog, error) {
	args := m.Called(ctx, filter)
	logs, _ := args.Get(0).([]model.AuditLog)
	return logs, args.Error(1)
}

type ImageStoreMock struct{ mock.Mock }

func (m *ImageStoreMock) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	args := m.Called(ctx, name, r)
	return args.String(0), args.Error(1)
}

func (m *ImageStoreMock) Delete(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

type UserRepoMock struct{ mock.Mock }

func (m *UserRepoMock) Create(ctx context.Context, u *model.User) error {
	args := m.Called(ctx, u)
	if args.Error(0) == nil {
		u.ID = 10
	}
	return args.Error(0)
}

func (m *UserRepoMock) FindByID(ctx context.Context, id int64) (*model.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *UserRepoMock) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *UserRepoMock) FindByResetToken(ctx context.Context, token string, now time.Time) (*model.User, error) {
	args := m.Called(ctx, token, now)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *UserRepoMock) Update(ctx context.Context, u *model.User) error {
	return m.Called(ctx, u).Error(0)
}

type MailerMock struct{ mock.Mock }

func (m *MailerMock) SendSignupConfirmation(ctx context.Context, to string) error {
	return m.Called(ctx, to).Error(0)
}

func (m *MailerMock) SendPasswordReset(ctx context.Context, to, link string) error {
	return m.Called(ctx, to, link).Error(0)
}
