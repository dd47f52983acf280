package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"officeshop/internal/config"
	"officeshop/internal/domain/model"
	"officeshop/internal/infra/db/dbtest"
	infrarepo "officeshop/internal/infra/repository"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var reservationModes = []string{config.ReservationModeCounter, config.ReservationModeScan}

type testEnv struct {
	db       *gorm.DB
	carts    *CartUsecase
	products *ProductUsecase
	reviews  *ReviewUsecase
	sweeper  *CartSweeper
	cache    *fakeCache
	now      time.Time
}

func newTestEnv(t *testing.T, mode string) *testEnv {
	t.Helper()
	return newTestEnvWithDB(t, dbtest.Open(t), mode)
}

// 行ロックを実際に効かせたいテスト用
func newPostgresTestEnv(t *testing.T, mode string) *testEnv {
	t.Helper()
	return newTestEnvWithDB(t, dbtest.OpenPostgres(t), mode)
}

func newTestEnvWithDB(t *testing.T, gdb *gorm.DB, mode string) *testEnv {
	t.Helper()

	tm := infrarepo.NewTxManagerGorm(gdb, mode)
	reservations, err := infrarepo.NewReservationRepository(gdb, mode)
	require.NoError(t, err)

	cartRepo := infrarepo.NewCartGormRepository(gdb)
	productRepo := infrarepo.NewProductGormRepository(gdb)
	cache := newFakeCache()

	env := &testEnv{
		db:       gdb,
		carts:    NewCartUsecase(tm, cartRepo, cartRepo, productRepo, reservations),
		products: NewProductUsecase(tm, productRepo, infrarepo.NewAuditLogGormRepository(gdb), cache, nil),
		reviews:  NewReviewUsecase(tm, infrarepo.NewReviewGormRepository(gdb), productRepo, cache, nil),
		sweeper:  NewCartSweeper(tm, cartRepo, time.Hour, nil),
		cache:    cache,
		now:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	env.carts.now = func() time.Time { return env.now }
	return env
}

func (e *testEnv) createProduct(t *testing.T, name string, price, qty int64) model.Product {
	t.Helper()
	p, err := e.products.CreateProduct(context.Background(), 1, CreateProductInput{
		Name:        name,
		Description: name + " description",
		Price:       &price,
		MainImage:   "/images/" + name + ".jpg",
		Category:    "stationery",
		Quantity:    &qty,
	})
	require.NoError(t, err)
	return p
}

func (e *testEnv) product(t *testing.T, id int64) model.Product {
	t.Helper()
	var p model.Product
	require.NoError(t, e.db.First(&p, id).Error)
	return p
}

// 全ACTIVEカートの明細を直接数える
func (e *testEnv) scannedReserved(t *testing.T, productID int64) int64 {
	t.Helper()
	var total int64
	require.NoError(t, e.db.Table("cart_items").
		Joins("join carts on carts.id = cart_items.cart_id").
		Where("carts.status = ? AND cart_items.product_id = ?", model.CartStatusActive, productID).
		Select("COALESCE(SUM(cart_items.quantity), 0)").
		Scan(&total).Error)
	return total
}

// 確保の合計が総在庫を超えず、カウンタと実数が一致する
func (e *testEnv) requireConserved(t *testing.T, productID int64) {
	t.Helper()
	p := e.product(t, productID)
	scanned := e.scannedReserved(t, productID)
	require.LessOrEqual(t, scanned, p.Quantity)
	require.Equal(t, scanned, p.ReservedQuantity)
}

func requireCode(t *testing.T, err error, code ErrorCode) *HTTPError {
	t.Helper()
	require.Error(t, err)
	he, ok := AsHTTPError(err)
	require.True(t, ok, "not an HTTPError: %v", err)
	require.Equal(t, code, he.Code, he.Message)
	return he
}

type fakeCache struct {
	mu      sync.Mutex
	items   map[int64]model.Product
	deleted []int64
}

func newFakeCache() *fakeCache {
	return &fakeCache{items: map[int64]model.Product{}}
}

func (c *fakeCache) Get(_ context.Context, id int64) (model.Product, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.items[id]
	return p, ok, nil
}

func (c *fakeCache) Set(_ context.Context, p model.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[p.ID] = p
	return nil
}

func (c *fakeCache) Delete(_ context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, id)
	c.deleted = append(c.deleted, id)
	return nil
}
