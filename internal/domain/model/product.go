package model

import (
	"math"
	"time"
)

// 商品画像
type ProductImage struct {
	URL string `json:"url"`
	Alt string `json:"alt"`
}

// Quantityは保有している総在庫。カート操作では減らさない。
// ReservedQuantityは全ACTIVEカートの確保数の合計で、カート更新と同じTxで増減する。
type Product struct {
	ID               int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Name             string         `gorm:"type:varchar(255);not null" json:"name"`
	Description      string         `gorm:"type:text;not null" json:"description"`
	Price            int64          `gorm:"not null" json:"price"`
	OriginalPrice    *int64         `json:"original_price,omitempty"`
	Discount         int            `gorm:"not null;default:0" json:"discount"`
	MainImage        string         `gorm:"type:varchar(1024);not null" json:"main_image"`
	Images           []ProductImage `gorm:"serializer:json" json:"images"`
	Category         string         `gorm:"type:varchar(100);not null;index" json:"category"`
	Tags             []string       `gorm:"serializer:json" json:"tags"`
	Features         []string       `gorm:"serializer:json" json:"features"`
	Quantity         int64          `gorm:"not null;default:0" json:"quantity"`
	ReservedQuantity int64          `gorm:"not null;default:0" json:"-"`
	Rating           float64        `gorm:"not null;default:0" json:"rating"`
	NumReviews       int64          `gorm:"not null;default:0" json:"num_reviews"`
	CreatedBy        int64          `gorm:"not null;index" json:"created_by"`
	CreatedAt        time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 定価からの割引率（%）。定価が販売価格以下なら0。
func DiscountPercent(price int64, originalPrice *int64) int {
	if originalPrice == nil || *originalPrice <= price || *originalPrice <= 0 {
		return 0
	}
	op := float64(*originalPrice)
	return int(math.Round((op - float64(price)) / op * 100))
}

// 他のカートの確保分を引いた、まだ確保できる数（0未満にはしない）
func AvailableQuantity(total, reservedByOthers int64) int64 {
	if v := total - reservedByOthers; v > 0 {
		return v
	}
	return 0
}

// レビュー1件を平均へ畳み込む
func FoldRating(oldRating float64, oldCount int64, rating int) (float64, int64) {
	n := oldCount + 1
	return (oldRating*float64(oldCount) + float64(rating)) / float64(n), n
}
