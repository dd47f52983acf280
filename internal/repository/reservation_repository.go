package repository

import "context"

// 商品ごとの確保数（全ACTIVEカートの合計）を返す。
// カウンタ読み・明細スキャンのどちらの実装でも結果は同じになる。
type ReservationRepository interface {
	ReservedTotal(ctx context.Context, productID int64) (int64, error)
	// 確保のある商品だけが入る
	ReservedTotals(ctx context.Context) (map[int64]int64, error)
}
