package repository

import (
	"context"
	"fmt"

	"officeshop/internal/config"
	"officeshop/internal/domain/model"
	repo "officeshop/internal/repository"

	"gorm.io/gorm"
)

// RESERVATION_MODEに応じた実装を返す
func NewReservationRepository(db *gorm.DB, mode string) (repo.ReservationRepository, error) {
	switch mode {
	case "", config.ReservationModeCounter:
		return NewReservationCounterRepository(db), nil
	case config.ReservationModeScan:
		return NewReservationScanRepository(db), nil
	default:
		return nil, fmt.Errorf("unknown reservation mode: %q", mode)
	}
}

// products.reserved_quantity を読む
type ReservationCounterRepository struct {
	db *gorm.DB
}

func NewReservationCounterRepository(db *gorm.DB) *ReservationCounterRepository {
	return &ReservationCounterRepository{db: db}
}

func (r *ReservationCounterRepository) ReservedTotal(ctx context.Context, productID int64) (int64, error) {
	var p model.Product
	err := r.db.WithContext(ctx).
		Select("id", "reserved_quantity").
		First(&p, productID).Error

	if isNotFound(err) {
		return 0, repo.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return p.ReservedQuantity, nil
}

func (r *ReservationCounterRepository) ReservedTotals(ctx context.Context) (map[int64]int64, error) {
	var products []model.Product
	if err := r.db.WithContext(ctx).
		Select("id", "reserved_quantity").
		Where("reserved_quantity > 0").
		Find(&products).Error; err != nil {
		return nil, err
	}

	totals := make(map[int64]int64, len(products))
	for _, p := range products {
		totals[p.ID] = p.ReservedQuantity
	}
	return totals, nil
}

// ACTIVEカートの明細を毎回集計する
type ReservationScanRepository struct {
	db *gorm.DB
}

func NewReservationScanRepository(db *gorm.DB) *ReservationScanRepository {
	return &ReservationScanRepository{db: db}
}

func (r *ReservationScanRepository) activeItems(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("cart_items").
		Joins("join carts on carts.id = cart_items.cart_id").
		Where("carts.status = ?", model.CartStatusActive)
}

func (r *ReservationScanRepository) ReservedTotal(ctx context.Context, productID int64) (int64, error) {
	var total int64
	if err := r.activeItems(ctx).
		Where("cart_items.product_id = ?", productID).
		Select("COALESCE(SUM(cart_items.quantity), 0)").
		Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

type reservedRow struct {
	ProductID int64
	Reserved  int64
}

func (r *ReservationScanRepository) ReservedTotals(ctx context.Context) (map[int64]int64, error) {
	var rows []reservedRow
	if err := r.activeItems(ctx).
		Select("cart_items.product_id AS product_id, SUM(cart_items.quantity) AS reserved").
		Group("cart_items.product_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	totals := make(map[int64]int64, len(rows))
	for _, row := range rows {
		if row.Reserved > 0 {
			totals[row.ProductID] = row.Reserved
		}
	}
	return totals, nil
}
