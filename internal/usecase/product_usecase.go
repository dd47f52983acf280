package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"officeshop/internal/domain/model"
	repo "officeshop/internal/repository"

	"go.uber.org/zap"
)

// 商品詳細のキャッシュ。失敗してもDBから返せるので致命的ではない。
type ProductCache interface {
	Get(ctx context.Context, id int64) (model.Product, bool, error)
	Set(ctx context.Context, p model.Product) error
	Delete(ctx context.Context, id int64) error
}

// REDIS_ADDR未設定のとき
type NopProductCache struct{}

func (NopProductCache) Get(context.Context, int64) (model.Product, bool, error) {
	return model.Product{}, false, nil
}
func (NopProductCache) Set(context.Context, model.Product) error { return nil }
func (NopProductCache) Delete(context.Context, int64) error      { return nil }

type ProductUsecase struct {
	tm          repo.TransactionManager
	productRepo repo.ProductRepository
	auditRepo   repo.AuditLogRepository
	cache       ProductCache
	logger      *zap.Logger
}

// DI
func NewProductUsecase(
	tm repo.TransactionManager,
	productRepo repo.ProductRepository,
	auditRepo repo.AuditLogRepository,
	cache ProductCache,
	logger *zap.Logger,
) *ProductUsecase {
	if cache == nil {
		cache = NopProductCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductUsecase{
		tm:          tm,
		productRepo: productRepo,
		auditRepo:   auditRepo,
		cache:       cache,
		logger:      logger,
	}
}

// GET /productsの入力DTO
type ListProductsInput struct {
	Page     int
	Limit    int
	Q        string
	MinPrice *int64
	MaxPrice *int64
	Sort     string
}

type ProductListOutput struct {
	Items []model.Product `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

func (u *ProductUsecase) ListProducts(ctx context.Context, in ListProductsInput) (ProductListOutput, error) {
	if in.Page < 1 {
		return ProductListOutput{}, errInvalidInput("invalid page")
	}
	if in.Limit < 1 || in.Limit > 100 {
		return ProductListOutput{}, errInvalidInput("invalid limit")
	}
	if len(in.Q) > 100 {
		return ProductListOutput{}, errInvalidInput("q too long")
	}
	if in.MinPrice != nil && *in.MinPrice < 0 {
		return ProductListOutput{}, errInvalidInput("min_price must be >= 0")
	}
	if in.MaxPrice != nil && *in.MaxPrice < 0 {
		return ProductListOutput{}, errInvalidInput("max_price must be >= 0")
	}
	if in.MinPrice != nil && in.MaxPrice != nil && *in.MinPrice > *in.MaxPrice {
		return ProductListOutput{}, errInvalidInput("min_price must be <= max_price")
	}
	switch in.Sort {
	case "", "new", "price_asc", "price_desc", "rating":
	default:
		return ProductListOutput{}, errInvalidInput("invalid sort")
	}

	items, total, err := u.productRepo.List(ctx, repo.ProductListQuery{
		Page:     in.Page,
		Limit:    in.Limit,
		Q:        strings.TrimSpace(in.Q),
		MinPrice: in.MinPrice,
		MaxPrice: in.MaxPrice,
		Sort:     in.Sort,
	})
	if err != nil {
		return ProductListOutput{}, errInternal(err)
	}

	return ProductListOutput{
		Items: items,
		Total: total,
		Page:  in.Page,
		Limit: in.Limit,
	}, nil
}

// キャッシュ → DB の順に引く
func (u *ProductUsecase) GetProduct(ctx context.Context, productID int64) (model.Product, error) {
	if productID <= 0 {
		return model.Product{}, errInvalidInput("invalid product id")
	}

	if p, hit, err := u.cache.Get(ctx, productID); err != nil {
		u.logger.Warn("product cache get failed", zap.Int64("product_id", productID), zap.Error(err))
	} else if hit {
		return p, nil
	}

	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, errProductNotFound()
	}
	if err != nil {
		return model.Product{}, errInternal(err)
	}

	if err := u.cache.Set(ctx, p); err != nil {
		u.logger.Warn("product cache set failed", zap.Int64("product_id", productID), zap.Error(err))
	}
	return p, nil
}

// 商品の更新後に呼ぶ
func (u *ProductUsecase) invalidate(ctx context.Context, productID int64) {
	invalidateProduct(ctx, u.cache, u.logger, productID)
}

func invalidateProduct(ctx context.Context, cache ProductCache, logger *zap.Logger, productID int64) {
	if err := cache.Delete(ctx, productID); err != nil {
		logger.Warn("product cache delete failed", zap.Int64("product_id", productID), zap.Error(err))
	}
}

type CreateProductInput struct {
	Name          string
	Description   string
	Price         *int64
	OriginalPrice *int64
	MainImage     string
	Images        []model.ProductImage
	Category      string
	Tags          []string
	Features      []string
	Quantity      *int64
}

func (in CreateProductInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return errInvalidInput("name required")
	}
	if strings.TrimSpace(in.Description) == "" {
		return errInvalidInput("description required")
	}
	if in.Price == nil {
		return errInvalidInput("price required")
	}
	if *in.Price < 0 {
		return errInvalidInput("price must be >= 0")
	}
	if in.Quantity == nil {
		return errInvalidInput("quantity required")
	}
	if *in.Quantity < 0 {
		return errInvalidInput("quantity must be >= 0")
	}
	if strings.TrimSpace(in.Category) == "" {
		return errInvalidInput("category required")
	}
	if strings.TrimSpace(in.MainImage) == "" {
		return errInvalidInput("main_image required")
	}
	if in.OriginalPrice != nil && *in.OriginalPrice < *in.Price {
		return errInvalidInput("original_price must be >= price")
	}
	return nil
}

// 商品登録。割引率は定価から計算し、監査ログも同じTxで書く。
func (u *ProductUsecase) CreateProduct(ctx context.Context, adminUserID int64, in CreateProductInput) (model.Product, error) {
	if adminUserID <= 0 {
		return model.Product{}, errNotAuthenticated()
	}
	if err := in.validate(); err != nil {
		return model.Product{}, err
	}

	now := time.Now()
	product := model.Product{
		Name:          strings.TrimSpace(in.Name),
		Description:   in.Description,
		Price:         *in.Price,
		OriginalPrice: in.OriginalPrice,
		Discount:      model.DiscountPercent(*in.Price, in.OriginalPrice),
		MainImage:     strings.TrimSpace(in.MainImage),
		Images:        in.Images,
		Category:      strings.TrimSpace(in.Category),
		Tags:          in.Tags,
		Features:      in.Features,
		Quantity:      *in.Quantity,
		CreatedBy:     adminUserID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var created model.Product
	err := u.tm.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().Create(ctx, product)
		if err != nil {
			return err
		}
		created = p

		return r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  adminUserID,
			Action:       model.AuditActionCreateProduct,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   p.ID,
			AfterJSON:    productAuditJSON(p),
			CreatedAt:    now,
		})
	})
	if err != nil {
		return model.Product{}, toHTTPError(err)
	}
	return created, nil
}

func productAuditJSON(p model.Product) string {
	b, _ := json.Marshal(struct {
		Name     string `json:"name"`
		Price    int64  `json:"price"`
		Quantity int64  `json:"quantity"`
	}{p.Name, p.Price, p.Quantity})
	return string(b)
}

// 総在庫の更新。確保済みの数より少なくはできない。
func (u *ProductUsecase) AdminUpdateInventory(ctx context.Context, adminUserID int64, productID int64, newStock int64, reason string) error {
	if adminUserID <= 0 {
		return errNotAuthenticated()
	}
	if productID <= 0 {
		return errInvalidInput("invalid product id")
	}
	if newStock < 0 {
		return errInvalidInput("stock must be >= 0")
	}
	if strings.TrimSpace(reason) == "" {
		return errInvalidInput("reason required")
	}

	err := u.tm.WithinTx(ctx, func(r repo.TxRepos) error {
		//変更前の在庫（before）
		p, err := r.Products().FindByIDForUpdate(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return errProductNotFound()
		}
		if err != nil {
			return err
		}

		reserved, err := r.Reservations().ReservedTotal(ctx, productID)
		if err != nil {
			return err
		}
		if newStock < reserved {
			return errInvalidInput(fmt.Sprintf("stock must be >= reserved quantity (%d)", reserved))
		}

		//在庫の現在値を更新
		if err := r.Inventory().SetStock(ctx, productID, newStock); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return errProductNotFound()
			}
			return err
		}

		now := time.Now()
		//履歴を作成（差分）
		if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
			ProductID:   productID,
			AdminUserID: adminUserID,
			Delta:       newStock - p.Quantity,
			Reason:      strings.TrimSpace(reason),
			CreatedAt:   now,
		}); err != nil {
			return err
		}

		//監査ログを作成（在庫更新）
		//「誰が」「何を」「どの対象に」「どう変えたか」を残す
		return r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  adminUserID,
			Action:       model.AuditActionUpdateStock,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   productID,
			BeforeJSON:   fmt.Sprintf(`{"stock":%d}`, p.Quantity),
			AfterJSON:    fmt.Sprintf(`{"stock":%d}`, newStock),
			CreatedAt:    now,
		})
	})
	if err != nil {
		return toHTTPError(err)
	}

	u.invalidate(ctx, productID)
	return nil
}

type ListAuditLogsInput struct {
	ActorUserID *int64
	Action      string
	ResourceID  *int64
	From        *time.Time
	To          *time.Time
	Limit       int
	Offset      int
}

func (u *ProductUsecase) ListAuditLogs(ctx context.Context, in ListAuditLogsInput) ([]model.AuditLog, error) {
	if in.Limit < 0 || in.Offset < 0 {
		return nil, errInvalidInput("invalid paging")
	}
	if in.From != nil && in.To != nil && in.From.After(*in.To) {
		return nil, errInvalidInput("from must be <= to")
	}

	filter := repo.AuditLogFilter{
		ActorUserID: in.ActorUserID,
		ResourceID:  in.ResourceID,
		CreatedFrom: in.From,
		CreatedTo:   in.To,
		Limit:       in.Limit,
		Offset:      in.Offset,
	}
	if in.Action != "" {
		action := model.AuditAction(in.Action)
		switch action {
		case model.AuditActionUpdateStock, model.AuditActionCreateProduct:
		default:
			return nil, errInvalidInput("invalid action")
		}
		filter.Action = &action
	}

	logs, err := u.auditRepo.List(ctx, filter)
	if err != nil {
		return nil, errInternal(err)
	}
	return logs, nil
}
