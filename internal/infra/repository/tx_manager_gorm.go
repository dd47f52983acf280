package repository

import (
	"context"

	repo "officeshop/internal/repository"

	"gorm.io/gorm"
)

type txReposGorm struct {
	carts        repo.CartRepository
	cartItems    repo.CartItemRepository
	products     repo.ProductRepository
	reservations repo.ReservationRepository
	reviews      repo.ReviewRepository
	inventory    repo.InventoryRepository
	auditLogs    repo.AuditLogRepository
}

func (r *txReposGorm) Carts() repo.CartRepository               { return r.carts }
func (r *txReposGorm) CartItems() repo.CartItemRepository       { return r.cartItems }
func (r *txReposGorm) Products() repo.ProductRepository         { return r.products }
func (r *txReposGorm) Reservations() repo.ReservationRepository { return r.reservations }
func (r *txReposGorm) Reviews() repo.ReviewRepository           { return r.reviews }
func (r *txReposGorm) Inventory() repo.InventoryRepository      { return r.inventory }
func (r *txReposGorm) AuditLogs() repo.AuditLogRepository       { return r.auditLogs }

type TxManagerGorm struct {
	db              *gorm.DB
	reservationMode string
}

func NewTxManagerGorm(db *gorm.DB, reservationMode string) *TxManagerGorm {
	return &TxManagerGorm{db: db, reservationMode: reservationMode}
}

func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reservations, err := NewReservationRepository(tx, tm.reservationMode)
		if err != nil {
			return err
		}

		//repoはtxを持ったDBで作り直す
		carts := NewCartGormRepository(tx)
		r := &txReposGorm{
			carts:        carts,
			cartItems:    carts,
			products:     NewProductGormRepository(tx),
			reservations: reservations,
			reviews:      NewReviewGormRepository(tx),
			inventory:    NewInventoryGormRepository(tx),
			auditLogs:    NewAuditLogGormRepository(tx),
		}
		return fn(r)
	})
}
