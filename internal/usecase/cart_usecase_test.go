package usecase

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"officeshop/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

const (
	userA int64 = 101
	userB int64 = 102
)

// 在庫5: Aが3、Bが2を確保した後、Aが4にしようとすると {4, 3} で失敗する
func TestCart_TwoShopperScenario(t *testing.T) {
	for _, mode := range reservationModes {
		t.Run(mode, func(t *testing.T) {
			env := newTestEnv(t, mode)
			ctx := context.Background()
			p := env.createProduct(t, "Gel Pen", 250, 5)

			_, err := env.carts.AddToCart(ctx, userA, AddCartInput{ProductID: p.ID, Quantity: 3})
			require.NoError(t, err)

			av, err := env.carts.ComputeAvailable(ctx, p.ID, userB)
			require.NoError(t, err)
			assert.Equal(t, int64(2), av.AvailableQuantity)

			_, err = env.carts.AddToCart(ctx, userB, AddCartInput{ProductID: p.ID, Quantity: 2})
			require.NoError(t, err)

			av, err = env.carts.ComputeAvailable(ctx, p.ID, userA)
			require.NoError(t, err)
			assert.Equal(t, int64(3), av.AvailableQuantity)

			av, err = env.carts.ComputeAvailable(ctx, p.ID, userB)
			require.NoError(t, err)
			assert.Equal(t, int64(2), av.AvailableQuantity)

			_, err = env.carts.SetItemQuantity(ctx, userA, p.ID, 4)
			he := requireCode(t, err, CodeInsufficientStock)
			assert.Equal(t, &StockShortage{Requested: 4, Available: 3}, he.Stock)

			//失敗しても何も変わらない
			view, err := env.carts.GetCart(ctx, userA)
			require.NoError(t, err)
			require.Len(t, view.Items, 1)
			assert.Equal(t, int64(3), view.Items[0].Quantity)
			env.requireConserved(t, p.ID)
		})
	}
}

// 空のカートからの削除はITEM_NOT_FOUND、カートが無ければCART_NOT_FOUND
func TestCart_RemoveItem_NotFoundKinds(t *testing.T) {
	env := newTestEnv(t, "counter")
	ctx := context.Background()
	p := env.createProduct(t, "Eraser", 80, 10)

	_, err := env.carts.RemoveItem(ctx, userB, p.ID)
	requireCode(t, err, CodeCartNotFound)

	_, err = env.carts.AddToCart(ctx, userA, AddCartInput{ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)
	view, err := env.carts.RemoveItem(ctx, userA, p.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	require.NotNil(t, view.ID)

	_, err = env.carts.RemoveItem(ctx, userA, p.ID)
	requireCode(t, err, CodeItemNotFound)

	_, err = env.carts.SetItemQuantity(ctx, userB, p.ID, 1)
	requireCode(t, err, CodeCartNotFound)
	_, err = env.carts.SetItemQuantity(ctx, userA, p.ID, 1)
	requireCode(t, err, CodeItemNotFound)

	env.requireConserved(t, p.ID)
	assert.Equal(t, int64(0), env.product(t, p.ID).ReservedQuantity)
}

func TestCart_GetCart_EmptyViewIsNotPersisted(t *testing.T) {
	env := newTestEnv(t, "counter")

	view, err := env.carts.GetCart(context.Background(), userA)
	require.NoError(t, err)
	assert.Nil(t, view.ID)
	assert.Empty(t, view.Items)
	assert.Equal(t, 0, view.TotalItems)
	assert.Equal(t, int64(0), view.TotalPrice)

	var count int64
	require.NoError(t, env.db.Model(&model.Cart{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)

	_, err = env.carts.GetCart(context.Background(), 0)
	requireCode(t, err, CodeNotAuthenticated)
}

func TestCart_AddToCart_ProductNotFoundLeavesNoCart(t *testing.T) {
	env := newTestEnv(t, "counter")

	_, err := env.carts.AddToCart(context.Background(), userA, AddCartInput{ProductID: 999, Quantity: 1})
	requireCode(t, err, CodeProductNotFound)

	var count int64
	require.NoError(t, env.db.Model(&model.Cart{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestCart_AddToCart_Validation(t *testing.T) {
	env := newTestEnv(t, "counter")
	ctx := context.Background()

	_, err := env.carts.AddToCart(ctx, 0, AddCartInput{ProductID: 1, Quantity: 1})
	requireCode(t, err, CodeNotAuthenticated)
	_, err = env.carts.AddToCart(ctx, userA, AddCartInput{ProductID: 1, Quantity: 0})
	requireCode(t, err, CodeInvalidInput)
	_, err = env.carts.AddToCart(ctx, userA, AddCartInput{ProductID: 0, Quantity: 1})
	requireCode(t, err, CodeInvalidInput)
	_, err = env.carts.SetItemQuantity(ctx, userA, 1, 0)
	requireCode(t, err, CodeInvalidInput)
}

// 巨大な数量でも桁あふれせずINSUFFICIENT_STOCKで止まる
func TestCart_AddToCart_HugeQuantityIsRejected(t *testing.T) {
	for _, mode := range reservationModes {
		t.Run(mode, func(t *testing.T) {
			env := newTestEnv(t, mode)
			ctx := context.Background()
			p := env.createProduct(t, "Stapler", 900, 5)

			_, err := env.carts.AddToCart(ctx, userA, AddCartInput{ProductID: p.ID, Quantity: 1})
			require.NoError(t, err)

			_, err = env.carts.AddToCart(ctx, userA, AddCartInput{ProductID: p.ID, Quantity: math.MaxInt64})
			he := requireCode(t, err, CodeInsufficientStock)
			assert.Equal(t, &StockShortage{Requested: math.MaxInt64, Available: 4}, he.Stock)

			_, err = env.carts.SetItemQuantity(ctx, userA, p.ID, math.MaxInt64)
			he = requireCode(t, err, CodeInsufficientStock)
			assert.Equal(t, &StockShortage{Requested: math.MaxInt64, Available: 5}, he.Stock)

			view, err := env.carts.GetCart(ctx, userA)
			require.NoError(t, err)
			require.Len(t, view.Items, 1)
			assert.Equal(t, int64(1), view.Items[0].Quantity)
			env.requireConserved(t, p.ID)
			assert.Equal(t, int64(1), env.product(t, p.ID).ReservedQuantity)
		})
	}
}

// 追加は残りの数、置き換えは上限を伝える
func TestCart_InsufficientStockMessages(t *testing.T) {
	env := newTestEnv(t, "counter")
	ctx := context.Background()
	p := env.createProduct(t, "Binder", 400, 3)

	_, err := env.carts.AddToCart(ctx, userA, AddCartInput{ProductID: p.ID, Quantity: 3})
	require.NoError(t, err)

	_, err = env.carts.AddToCart(ctx, userA, AddCartInput{ProductID: p.ID, Quantity: 1})
	he := requireCode(t, err, CodeInsufficientStock)
	assert.Equal(t, "insufficient stock: only 0 more available", he.Message)

	_, err = env.carts.SetItemQuantity(ctx, userA, p.ID, 4)
	he = requireCode(t, err, CodeInsufficientStock)
	assert.Equal(t, "insufficient stock: only 3 available", he.Message)
	assert.Equal(t, &StockShortage{Requested: 4, Available: 3}, he.Stock)
}

func TestCart_AddToCart_IncrementsLineAndTotals(t *testing.T) {
	env := newTestEnv(t, "counter")
	ctx := context.Background()
	pen := env.createProduct(t, "Pen", 120, 10)
	pad := env.createProduct(t, "Pad", 300, 10)

	_, err := env.carts.AddToCart(ctx, userA, AddCartInput{ProductID: pen.ID, Quantity: 2})
	require.NoError(t, err)
	_, err = env.carts.AddToCart(ctx, userA, AddCartInput{ProductID: pad.ID, Quantity: 1})
	require.NoError(t, err)
	view, err := env.carts.AddToCart(ctx, userA, AddCartInput{ProductID: pen.ID, Quantity: 3})
	require.NoError(t, err)

	require.Len(t, view.Items, 2)
	assert.Equal(t, 2, view.TotalItems)
	assert.Equal(t, int64(5*120+300), view.TotalPrice)
	for _, it := range view.Items {
		if it.Product.ID == pen.ID {
			assert.Equal(t, int64(5), it.Quantity)
			assert.Equal(t, int64(600), it.Subtotal)
			assert.Equal(t, "Pen", it.Product.Name)
		}
	}

	//自分の5個を含めて10個まで。あと5個しか足せない
	_, err = env.carts.AddToCart(ctx, userA, AddCartInput{ProductID: pen.ID, Quantity: 6})
	he := requireCode(t, err, CodeInsufficientStock)
	assert.Equal(t, &StockShortage{Requested: 6, Available: 5}, he.Stock)

	env.requireConserved(t, pen.ID)
	env.requireConserved(t, pad.ID)
}

// 自分の確保分は自分の上限を狭めない
func TestCart_SetItemQuantity_SelfExclusion(t *testing.T) {
	for _, mode := range reservationModes {
		t.Run(mode, func(t *testing.T) {
			env := newTestEnv(t, mode)
			ctx := context.Background()
			p := env.createProduct(t, "Stapler", 900, 8)

			_, err := env.carts.AddToCart(ctx, userB, AddCartInput{ProductID: p.ID, Quantity: 3})
			require.NoError(t, err)
			_, err = env.carts.AddToCart(ctx, userA, AddCartInput{ProductID: p.ID, Quantity: 4})
			require.NoError(t, err)

			// A: 8 - 3 = 5 まで
			view, err := env.carts.SetItemQuantity(ctx, userA, p.ID, 5)
			require.NoError(t, err)
			assert.Equal(t, int64(5), view.Items[0].Quantity)

			view, err = env.carts.SetItemQuantity(ctx, userA, p.ID, 1)
			require.NoError(t, err)
			assert.Equal(t, int64(1), view.Items[0].Quantity)

			_, err = env.carts.SetItemQuantity(ctx, userA, p.ID, 6)
			he := requireCode(t, err, CodeInsufficientStock)
			assert.Equal(t, &StockShortage{Requested: 6, Available: 5}, he.Stock)

			env.requireConserved(t, p.ID)
			assert.Equal(t, int64(4), env.product(t, p.ID).ReservedQuantity)
		})
	}
}

func TestCart_ComputeAvailable(t *testing.T) {
	env := newTestEnv(t, "counter")
	ctx := context.Background()
	p := env.createProduct(t, "Tape", 150, 6)

	_, err := env.carts.AddToCart(ctx, userA, AddCartInput{ProductID: p.ID, Quantity: 2})
	require.NoError(t, err)

	first, err := env.carts.ComputeAvailable(ctx, p.ID, userB)
	require.NoError(t, err)
	second, err := env.carts.ComputeAvailable(ctx, p.ID, userB)
	require.NoError(t, err)
	assert.Equal(t, first.AvailableQuantity, second.AvailableQuantity)
	assert.Equal(t, int64(4), first.AvailableQuantity)
	assert.Equal(t, "Tape", first.Name)

	own, err := env.carts.ComputeAvailable(ctx, p.ID, userA)
	require.NoError(t, err)
	assert.Equal(t, int64(6), own.AvailableQuantity)

	//匿名は全カート分を引く
	anon, err := env.carts.ComputeAvailable(ctx, p.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4), anon.AvailableQuantity)

	_, err = env.carts.ComputeAvailable(ctx, 999, userA)
	requireCode(t, err, CodeProductNotFound)
}

func TestCart_ListAvailableProducts(t *testing.T) {
	for _, mode := range reservationModes {
		t.Run(mode, func(t *testing.T) {
			env := newTestEnv(t, mode)
			ctx := context.Background()
			clip := env.createProduct(t, "Clip", 40, 10)
			glue := env.createProduct(t, "Glue", 90, 3)

			_, err := env.carts.AddToCart(ctx, userA, AddCartInput{ProductID: clip.ID, Quantity: 4})
			require.NoError(t, err)
			_, err = env.carts.AddToCart(ctx, userB, AddCartInput{ProductID: clip.ID, Quantity: 1})
			require.NoError(t, err)

			list, err := env.carts.ListAvailableProducts(ctx)
			require.NoError(t, err)
			got := map[int64]int64{}
			for _, pa := range list {
				got[pa.ID] = pa.AvailableQuantity
			}
			assert.Equal(t, map[int64]int64{clip.ID: 5, glue.ID: 3}, got)
		})
	}
}

// 最後の在庫を同時に取り合っても、確保は在庫数までしか通らない
func TestCart_ConcurrentAddsNeverOversell(t *testing.T) {
	for _, mode := range reservationModes {
		t.Run(mode, func(t *testing.T) {
			env := newTestEnv(t, mode)
			ctx := context.Background()
			p := env.createProduct(t, "Limited Pen", 500, 5)

			const shoppers = 12
			results := make([]error, shoppers)
			var g errgroup.Group
			for i := 0; i < shoppers; i++ {
				i := i
				g.Go(func() error {
					_, results[i] = env.carts.AddToCart(ctx, int64(1000+i), AddCartInput{ProductID: p.ID, Quantity: 1})
					return nil
				})
			}
			require.NoError(t, g.Wait())

			succeeded := 0
			for _, err := range results {
				if err == nil {
					succeeded++
					continue
				}
				requireCode(t, err, CodeInsufficientStock)
			}
			assert.Equal(t, 5, succeeded)
			env.requireConserved(t, p.ID)
			assert.Equal(t, int64(5), env.product(t, p.ID).ReservedQuantity)
		})
	}
}

// ランダムな操作列の後でも確保の合計は在庫以下
func TestCart_ConservationUnderRandomOperations(t *testing.T) {
	env := newTestEnv(t, "counter")
	ctx := context.Background()
	products := []model.Product{
		env.createProduct(t, "A4 Paper", 600, 7),
		env.createProduct(t, "Toner", 4800, 2),
	}

	rng := rand.New(rand.NewSource(42))
	for step := 0; step < 200; step++ {
		user := int64(1 + rng.Intn(4))
		p := products[rng.Intn(len(products))]
		qty := int64(1 + rng.Intn(4))

		switch rng.Intn(3) {
		case 0:
			_, _ = env.carts.AddToCart(ctx, user, AddCartInput{ProductID: p.ID, Quantity: qty})
		case 1:
			_, _ = env.carts.SetItemQuantity(ctx, user, p.ID, qty)
		default:
			_, _ = env.carts.RemoveItem(ctx, user, p.ID)
		}

		for _, pp := range products {
			env.requireConserved(t, pp.ID)
		}
	}
}

func TestCart_MutationsTouchCart(t *testing.T) {
	env := newTestEnv(t, "counter")
	ctx := context.Background()
	p := env.createProduct(t, "Ink", 700, 5)

	_, err := env.carts.AddToCart(ctx, userA, AddCartInput{ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)

	env.now = env.now.Add(30 * time.Minute)
	_, err = env.carts.SetItemQuantity(ctx, userA, p.ID, 2)
	require.NoError(t, err)

	var cart model.Cart
	require.NoError(t, env.db.Where("user_id = ?", userA).First(&cart).Error)
	assert.True(t, cart.UpdatedAt.Equal(env.now), "updated_at=%v", cart.UpdatedAt)
}
