package repository

import (
	"context"
	"errors"

	"officeshop/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

// 一意制約に当たった（同一ユーザーの2件目レビューなど）
var ErrDuplicate = errors.New("duplicate")

// 一覧検索
type ProductListQuery struct {
	Page     int
	Limit    int
	Q        string
	MinPrice *int64
	MaxPrice *int64
	Sort     string
}

// 商品の永続化（保存・取得）だけを約束。
type ProductRepository interface {
	List(ctx context.Context, q ProductListQuery) ([]model.Product, int64, error)
	ListAll(ctx context.Context) ([]model.Product, error)
	FindByID(ctx context.Context, id int64) (model.Product, error)

	// 行ロック付きで取得（Tx内で使う）
	FindByIDForUpdate(ctx context.Context, id int64) (model.Product, error)

	Create(ctx context.Context, p model.Product) (model.Product, error)

	// reserved_quantityをdelta分だけ増減
	AdjustReserved(ctx context.Context, productID int64, delta int64) error

	UpdateRating(ctx context.Context, productID int64, rating float64, numReviews int64) error
}
