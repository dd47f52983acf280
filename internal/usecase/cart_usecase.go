package usecase

import (
	"context"
	"errors"
	"time"

	"officeshop/internal/domain/model"
	repo "officeshop/internal/repository"
)

// CartUsecase は /cart と在庫の確保計算の業務ロジックです。
// 書き込みは1Txで「カート行ロック → 商品行ロック → 検証 → 明細と確保数を更新」の順に行う。
type CartUsecase struct {
	tm           repo.TransactionManager
	cartRepo     repo.CartRepository
	cartItemRepo repo.CartItemRepository
	productRepo  repo.ProductRepository
	reservations repo.ReservationRepository
	now          func() time.Time
}

func NewCartUsecase(
	tm repo.TransactionManager,
	cartRepo repo.CartRepository,
	cartItemRepo repo.CartItemRepository,
	productRepo repo.ProductRepository,
	reservations repo.ReservationRepository,
) *CartUsecase {
	return &CartUsecase{
		tm:           tm,
		cartRepo:     cartRepo,
		cartItemRepo: cartItemRepo,
		productRepo:  productRepo,
		reservations: reservations,
		now:          time.Now,
	}
}

// カート明細に載せる商品の要約
type CartProductSummary struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	MainImage string `json:"main_image"`
	Quantity  int64  `json:"quantity"`
}

type CartItemView struct {
	Product  CartProductSummary `json:"product"`
	Quantity int64              `json:"quantity"`
	Subtotal int64              `json:"subtotal"`
}

// IDがnilなら未作成のカート（保存されていない空の表示）
type CartView struct {
	ID         *int64         `json:"id"`
	Items      []CartItemView `json:"items"`
	TotalItems int            `json:"total_items"`
	TotalPrice int64          `json:"total_price"`
}

type AddCartInput struct {
	ProductID int64
	Quantity  int64
}

// 商品 + いま確保できる数
type ProductAvailability struct {
	model.Product
	AvailableQuantity int64 `json:"available_quantity"`
}

// requestingUserIDの確保分は除いて数える。0なら全カート分を引く。
func (u *CartUsecase) ComputeAvailable(ctx context.Context, productID int64, requestingUserID int64) (ProductAvailability, error) {
	if productID <= 0 {
		return ProductAvailability{}, errInvalidInput("invalid product id")
	}

	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return ProductAvailability{}, errProductNotFound()
	}
	if err != nil {
		return ProductAvailability{}, errInternal(err)
	}

	reserved, err := u.reservations.ReservedTotal(ctx, productID)
	if err != nil {
		return ProductAvailability{}, errInternal(err)
	}

	var own int64
	if requestingUserID > 0 {
		own, err = u.cartItemRepo.HeldByUser(ctx, requestingUserID, productID)
		if err != nil {
			return ProductAvailability{}, errInternal(err)
		}
	}

	return ProductAvailability{
		Product:           p,
		AvailableQuantity: model.AvailableQuantity(p.Quantity, reserved-own),
	}, nil
}

// 全商品を全カートの確保分を引いた数つきで返す
func (u *CartUsecase) ListAvailableProducts(ctx context.Context) ([]ProductAvailability, error) {
	products, err := u.productRepo.ListAll(ctx)
	if err != nil {
		return nil, errInternal(err)
	}
	totals, err := u.reservations.ReservedTotals(ctx)
	if err != nil {
		return nil, errInternal(err)
	}

	out := make([]ProductAvailability, 0, len(products))
	for _, p := range products {
		out = append(out, ProductAvailability{
			Product:           p,
			AvailableQuantity: model.AvailableQuantity(p.Quantity, totals[p.ID]),
		})
	}
	return out, nil
}

// GetCart はカート取得（無ければ作らずに空を返す）。
func (u *CartUsecase) GetCart(ctx context.Context, userID int64) (CartView, error) {
	if userID <= 0 {
		return CartView{}, errNotAuthenticated()
	}

	cart, err := u.cartRepo.FindActiveByUserID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return emptyCartView(), nil
	}
	if err != nil {
		return CartView{}, errInternal(err)
	}

	view, err := buildCartView(ctx, cart, u.cartItemRepo, u.productRepo)
	if err != nil {
		return CartView{}, errInternal(err)
	}
	return view, nil
}

// AddToCart はカートに追加（同一商品は数量加算）。
// 追加後に持つ数が「総在庫 - 他人の確保分」を超えるなら在庫不足。
func (u *CartUsecase) AddToCart(ctx context.Context, userID int64, in AddCartInput) (CartView, error) {
	if userID <= 0 {
		return CartView{}, errNotAuthenticated()
	}
	if in.ProductID <= 0 {
		return CartView{}, errInvalidInput("invalid product_id")
	}
	if in.Quantity < 1 {
		return CartView{}, errInvalidInput("quantity must be >= 1")
	}

	var view CartView
	err := u.tm.WithinTx(ctx, func(r repo.TxRepos) error {
		now := u.now()

		// ACTIVEカート取得（無ければ作成）。商品が無ければロールバックで消える
		cart, err := r.Carts().GetOrCreateActiveByUserID(ctx, userID, now)
		if err != nil {
			return err
		}

		p, err := r.Products().FindByIDForUpdate(ctx, in.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			return errProductNotFound()
		}
		if err != nil {
			return err
		}

		item, own, err := findOwnItem(ctx, r.CartItems(), cart.ID, p.ID)
		if err != nil {
			return err
		}

		reserved, err := r.Reservations().ReservedTotal(ctx, p.ID)
		if err != nil {
			return err
		}

		ceiling := model.AvailableQuantity(p.Quantity, reserved-own)
		//own+quantityは桁あふれし得るので引き算で比べる
		if in.Quantity > ceiling-own {
			return errInsufficientStock(in.Quantity, ceiling-own)
		}

		if item != nil {
			if err := r.CartItems().UpdateQuantity(ctx, item.ID, own+in.Quantity); err != nil {
				return err
			}
		} else {
			if _, err := r.CartItems().Create(ctx, model.CartItem{
				CartID:    cart.ID,
				ProductID: p.ID,
				Quantity:  in.Quantity,
				CreatedAt: now,
				UpdatedAt: now,
			}); err != nil {
				return err
			}
		}

		if err := r.Products().AdjustReserved(ctx, p.ID, in.Quantity); err != nil {
			return err
		}
		if err := r.Carts().Touch(ctx, cart.ID, now); err != nil {
			return err
		}

		view, err = buildCartView(ctx, cart, r.CartItems(), r.Products())
		return err
	})
	if err != nil {
		return CartView{}, toHTTPError(err)
	}
	return view, nil
}

// SetItemQuantity は明細の数量を置き換える。上限は「総在庫 - 他人の確保分」。
func (u *CartUsecase) SetItemQuantity(ctx context.Context, userID int64, productID int64, newQuantity int64) (CartView, error) {
	if userID <= 0 {
		return CartView{}, errNotAuthenticated()
	}
	if productID <= 0 {
		return CartView{}, errInvalidInput("invalid product id")
	}
	if newQuantity < 1 {
		return CartView{}, errInvalidInput("quantity must be >= 1")
	}

	var view CartView
	err := u.tm.WithinTx(ctx, func(r repo.TxRepos) error {
		now := u.now()

		cart, err := r.Carts().FindActiveByUserIDForUpdate(ctx, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return errCartNotFound()
		}
		if err != nil {
			return err
		}

		item, own, err := findOwnItem(ctx, r.CartItems(), cart.ID, productID)
		if err != nil {
			return err
		}
		if item == nil {
			return errItemNotFound()
		}

		p, err := r.Products().FindByIDForUpdate(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return errProductNotFound()
		}
		if err != nil {
			return err
		}

		reserved, err := r.Reservations().ReservedTotal(ctx, p.ID)
		if err != nil {
			return err
		}

		ceiling := model.AvailableQuantity(p.Quantity, reserved-own)
		if newQuantity > ceiling {
			return errStockCeiling(newQuantity, ceiling)
		}

		if newQuantity != own {
			if err := r.CartItems().UpdateQuantity(ctx, item.ID, newQuantity); err != nil {
				return err
			}
			if err := r.Products().AdjustReserved(ctx, p.ID, newQuantity-own); err != nil {
				return err
			}
		}
		if err := r.Carts().Touch(ctx, cart.ID, now); err != nil {
			return err
		}

		view, err = buildCartView(ctx, cart, r.CartItems(), r.Products())
		return err
	})
	if err != nil {
		return CartView{}, toHTTPError(err)
	}
	return view, nil
}

// 明細削除。カートが無ければCART_NOT_FOUND、明細が無ければITEM_NOT_FOUND。
func (u *CartUsecase) RemoveItem(ctx context.Context, userID int64, productID int64) (CartView, error) {
	if userID <= 0 {
		return CartView{}, errNotAuthenticated()
	}
	if productID <= 0 {
		return CartView{}, errInvalidInput("invalid product id")
	}

	var view CartView
	err := u.tm.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().FindActiveByUserIDForUpdate(ctx, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return errCartNotFound()
		}
		if err != nil {
			return err
		}

		item, own, err := findOwnItem(ctx, r.CartItems(), cart.ID, productID)
		if err != nil {
			return err
		}
		if item == nil {
			return errItemNotFound()
		}

		if err := r.CartItems().DeleteByID(ctx, item.ID); err != nil {
			return err
		}
		if err := r.Products().AdjustReserved(ctx, productID, -own); err != nil {
			return err
		}
		if err := r.Carts().Touch(ctx, cart.ID, u.now()); err != nil {
			return err
		}

		view, err = buildCartView(ctx, cart, r.CartItems(), r.Products())
		return err
	})
	if err != nil {
		return CartView{}, toHTTPError(err)
	}
	return view, nil
}

// カート内のproductの明細と数量（無ければnil, 0）
func findOwnItem(ctx context.Context, items repo.CartItemRepository, cartID, productID int64) (*model.CartItem, int64, error) {
	item, err := items.FindByCartAndProduct(ctx, cartID, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return &item, item.Quantity, nil
}

func emptyCartView() CartView {
	return CartView{Items: []CartItemView{}}
}

// cartの明細をまとめてCartViewを作る。Tx内ではTxのrepoを渡す。
func buildCartView(ctx context.Context, cart model.Cart, items repo.CartItemRepository, products repo.ProductRepository) (CartView, error) {
	rows, err := items.ListByCartID(ctx, cart.ID)
	if err != nil {
		return CartView{}, err
	}

	id := cart.ID
	view := CartView{ID: &id, Items: make([]CartItemView, 0, len(rows))}

	for _, it := range rows {
		p, err := products.FindByID(ctx, it.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			continue
		}
		if err != nil {
			return CartView{}, err
		}

		subtotal := p.Price * it.Quantity
		view.Items = append(view.Items, CartItemView{
			Product: CartProductSummary{
				ID:        p.ID,
				Name:      p.Name,
				Price:     p.Price,
				MainImage: p.MainImage,
				Quantity:  p.Quantity,
			},
			Quantity: it.Quantity,
			Subtotal: subtotal,
		})
		view.TotalPrice += subtotal
	}
	view.TotalItems = len(view.Items)

	return view, nil
}
