package usecase

import (
	"context"
	"errors"
	"sort"
	"time"

	"officeshop/internal/domain/model"
	repo "officeshop/internal/repository"

	"go.uber.org/zap"
)

const sweepBatchSize = 100

// 放置されたACTIVEカートをABANDONEDにして確保分を戻す。
// ttl <= 0 なら何もしない（カートは期限切れにならない）。
type CartSweeper struct {
	tm       repo.TransactionManager
	cartRepo repo.CartRepository
	ttl      time.Duration
	logger   *zap.Logger
}

func NewCartSweeper(tm repo.TransactionManager, cartRepo repo.CartRepository, ttl time.Duration, logger *zap.Logger) *CartSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartSweeper{tm: tm, cartRepo: cartRepo, ttl: ttl, logger: logger}
}

func (s *CartSweeper) Enabled() bool { return s.ttl > 0 }

// now - ttl より前から触られていないカートを解放し、解放した件数を返す
func (s *CartSweeper) ReleaseIdle(ctx context.Context, now time.Time) (int, error) {
	if !s.Enabled() {
		return 0, nil
	}
	cutoff := now.Add(-s.ttl)

	released := 0
	for {
		carts, err := s.cartRepo.ListIdleActive(ctx, cutoff, sweepBatchSize)
		if err != nil {
			return released, err
		}

		progressed := 0
		for _, c := range carts {
			ok, err := s.releaseOne(ctx, c.ID, cutoff)
			if err != nil {
				return released, err
			}
			if ok {
				released++
				progressed++
			}
		}

		// 最後のバッチ、または全部が途中で触られていた
		if len(carts) < sweepBatchSize || progressed == 0 {
			return released, nil
		}
	}
}

func (s *CartSweeper) releaseOne(ctx context.Context, cartID int64, cutoff time.Time) (bool, error) {
	released := false
	err := s.tm.WithinTx(ctx, func(r repo.TxRepos) error {
		// 一覧取得からの間に操作・解放されていないかロックして確かめる
		cart, err := r.Carts().FindActiveByIDForUpdate(ctx, cartID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !cart.UpdatedAt.Before(cutoff) {
			return nil
		}

		items, err := r.CartItems().ListByCartID(ctx, cartID)
		if err != nil {
			return err
		}

		// 商品ロックは昇順
		sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })
		for _, it := range items {
			if err := r.Products().AdjustReserved(ctx, it.ProductID, -it.Quantity); err != nil {
				return err
			}
		}

		if err := r.Carts().Clear(ctx, cartID); err != nil {
			return err
		}
		if err := r.Carts().UpdateStatus(ctx, cartID, model.CartStatusAbandoned); err != nil {
			return err
		}
		released = true
		return nil
	})
	return released, err
}

// ctxが終わるまでinterval毎にReleaseIdleを回す
func (s *CartSweeper) Run(ctx context.Context, interval time.Duration) {
	if !s.Enabled() {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("cart sweeper started", zap.Duration("ttl", s.ttl), zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("cart sweeper stopped")
			return
		case t := <-ticker.C:
			n, err := s.ReleaseIdle(ctx, t)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Error("cart sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.logger.Info("released idle carts", zap.Int("count", n))
			}
		}
	}
}
