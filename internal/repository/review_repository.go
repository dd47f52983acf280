package repository

import (
	"context"

	"officeshop/internal/domain/model"
)

type ReviewRepository interface {
	// 同じ(product, user)が既にあればErrDuplicate
	Create(ctx context.Context, review model.Review) (model.Review, error)
	ExistsByProductAndUser(ctx context.Context, productID int64, userID int64) (bool, error)
	ListByProductID(ctx context.Context, productID int64) ([]model.Review, error)
}
