package repository

import (
	"context"
	"time"

	"officeshop/internal/domain/model"
)

type CartRepository interface {
	// ACTIVEカートを行ロック付きで取得し、無ければ作る
	GetOrCreateActiveByUserID(ctx context.Context, userID int64, now time.Time) (model.Cart, error)
	// ACTIVEカートを取得（無ければErrNotFound）
	FindActiveByUserID(ctx context.Context, userID int64) (model.Cart, error)
	// FindActiveByUserIDの行ロック版
	FindActiveByUserIDForUpdate(ctx context.Context, userID int64) (model.Cart, error)
	// cartIDのカートがまだACTIVEならロックして返す
	FindActiveByIDForUpdate(ctx context.Context, cartID int64) (model.Cart, error)
	// before より前から更新されていないACTIVEカート
	ListIdleActive(ctx context.Context, before time.Time, limit int) ([]model.Cart, error)
	UpdateStatus(ctx context.Context, cartID int64, status model.CartStatus) error
	Touch(ctx context.Context, cartID int64, now time.Time) error
	Clear(ctx context.Context, cartID int64) error
}
