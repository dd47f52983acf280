package usecase

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"officeshop/internal/domain/model"
	repo "officeshop/internal/repository"

	"go.uber.org/zap"
)

const maxCommentLength = 2000

// レビューの投稿と、商品の平均評価への反映
type ReviewUsecase struct {
	tm          repo.TransactionManager
	reviewRepo  repo.ReviewRepository
	productRepo repo.ProductRepository
	cache       ProductCache
	logger      *zap.Logger
}

func NewReviewUsecase(
	tm repo.TransactionManager,
	reviewRepo repo.ReviewRepository,
	productRepo repo.ProductRepository,
	cache ProductCache,
	logger *zap.Logger,
) *ReviewUsecase {
	if cache == nil {
		cache = NopProductCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewUsecase{
		tm:          tm,
		reviewRepo:  reviewRepo,
		productRepo: productRepo,
		cache:       cache,
		logger:      logger,
	}
}

type SubmitReviewInput struct {
	Rating  int
	Comment string
}

// 商品行をロックして、重複確認・レビュー作成・評価更新を1Txで行う
func (u *ReviewUsecase) SubmitReview(ctx context.Context, userID int64, productID int64, in SubmitReviewInput) (model.Review, error) {
	if userID <= 0 {
		return model.Review{}, errNotAuthenticated()
	}
	if productID <= 0 {
		return model.Review{}, errInvalidInput("invalid product id")
	}
	if in.Rating < 1 || in.Rating > 5 {
		return model.Review{}, errInvalidInput("rating must be between 1 and 5")
	}
	comment := strings.TrimSpace(in.Comment)
	if comment == "" {
		return model.Review{}, errInvalidInput("comment required")
	}
	if utf8.RuneCountInString(comment) > maxCommentLength {
		return model.Review{}, errInvalidInput("comment too long")
	}

	var created model.Review
	err := u.tm.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().FindByIDForUpdate(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return errProductNotFound()
		}
		if err != nil {
			return err
		}

		exists, err := r.Reviews().ExistsByProductAndUser(ctx, productID, userID)
		if err != nil {
			return err
		}
		if exists {
			return errDuplicateReview()
		}

		review, err := r.Reviews().Create(ctx, model.Review{
			ProductID: productID,
			UserID:    userID,
			Rating:    in.Rating,
			Comment:   comment,
			CreatedAt: time.Now(),
		})
		if errors.Is(err, repo.ErrDuplicate) {
			return errDuplicateReview()
		}
		if err != nil {
			return err
		}

		rating, n := model.FoldRating(p.Rating, p.NumReviews, in.Rating)
		if err := r.Products().UpdateRating(ctx, productID, rating, n); err != nil {
			return err
		}

		created = review
		return nil
	})
	if err != nil {
		return model.Review{}, toHTTPError(err)
	}

	invalidateProduct(ctx, u.cache, u.logger, productID)
	return created, nil
}

// 新しい順
func (u *ReviewUsecase) ListReviews(ctx context.Context, productID int64) ([]model.Review, error) {
	if productID <= 0 {
		return nil, errInvalidInput("invalid product id")
	}

	if _, err := u.productRepo.FindByID(ctx, productID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errProductNotFound()
		}
		return nil, errInternal(err)
	}

	reviews, err := u.reviewRepo.ListByProductID(ctx, productID)
	if err != nil {
		return nil, errInternal(err)
	}
	return reviews, nil
}
