package promo

import (
	"time"

	"github.com/jaayma/promotion-service/internal/models"
)

// DefaultPromotions is the catalog written on first run. Validity windows
// are relative to the seed time.
func DefaultPromotions(seededAt time.Time) []models.Promotion {
	return []models.Promotion{
		{
			ID:                "promo_welcome10",
			Code:              "WELCOME10",
			Name:              "Welcome Discount",
			Description:       "10% off your first order",
			Kind:              models.KindPercentage,
			Value:             10,
			MinCartAmount:     50,
			MaxDiscountAmount: 50,
			ValidFrom:         seededAt,
			ValidUntil:        seededAt.Add(30 * 24 * time.Hour),
			IsActive:          true,
		},
		{
			ID:          "promo_freeship",
			Code:        "FREESHIP",
			Name:        "Free Shipping",
			Description: "Free shipping on your order",
			Kind:        models.KindFreeShipping,
			Value:       100,
			ValidFrom:   seededAt,
			ValidUntil:  seededAt.Add(7 * 24 * time.Hour),
			IsActive:    true,
		},
		{
			ID:                "promo_summer25",
			Code:              "SUMMER25",
			Name:              "Summer Sale",
			Description:       "25% off summer picks",
			Kind:              models.KindPercentage,
			Value:             25,
			MinCartAmount:     100,
			MaxDiscountAmount: 100,
			ValidFrom:         seededAt,
			ValidUntil:        seededAt.Add(14 * 24 * time.Hour),
			IsActive:          true,
		},
		{
			ID:            "promo_save20",
			Code:          "SAVE20",
			Name:          "Save $20",
			Description:   "$20 off orders over $150",
			Kind:          models.KindFixedAmount,
			Value:         20,
			MinCartAmount: 150,
			ValidFrom:     seededAt,
			ValidUntil:    seededAt.Add(21 * 24 * time.Hour),
			IsActive:      true,
		},
		{
			ID:                "promo_blackfriday",
			Code:              "BLACKFRIDAY",
			Name:              "Black Friday",
			Description:       "40% off sitewide",
			Kind:              models.KindPercentage,
			Value:             40,
			MinCartAmount:     75,
			MaxDiscountAmount: 200,
			ValidFrom:         seededAt,
			ValidUntil:        seededAt.Add(3 * 24 * time.Hour),
			IsActive:          true,
		},
	}
}
