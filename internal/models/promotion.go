package models

import "time"

type PromotionKind string

const (
	KindPercentage   PromotionKind = "percentage"
	KindFixedAmount  PromotionKind = "fixed_amount"
	KindFreeShipping PromotionKind = "free_shipping"
	KindBOGO         PromotionKind = "bogo"
)

// ParseKind maps a wire value to a PromotionKind.
func ParseKind(s string) (PromotionKind, bool) {
	switch PromotionKind(s) {
	case KindPercentage, KindFixedAmount, KindFreeShipping, KindBOGO:
		return PromotionKind(s), true
	}
	return "", false
}

// Promotion is a named discount rule with eligibility and activity
// constraints. Codes are unique and matched case-insensitively; they are
// stored uppercased.
type Promotion struct {
	ID          string        `json:"id"`
	Code        string        `json:"code"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Kind        PromotionKind `json:"kind"`
	Value       float64       `json:"value"`

	// Zero means no minimum / no cap / no limit.
	MinCartAmount     float64 `json:"min_cart_amount,omitempty"`
	MaxDiscountAmount float64 `json:"max_discount_amount,omitempty"`
	UsageLimit        int     `json:"usage_limit,omitempty"`

	ValidFrom  time.Time `json:"valid_from"`
	ValidUntil time.Time `json:"valid_until"`

	UsageCount int  `json:"usage_count"`
	IsActive   bool `json:"is_active"`

	ApplicableCategories []string `json:"applicable_categories,omitempty"`
	ApplicableProducts   []string `json:"applicable_products,omitempty"`
	ExcludedProducts     []string `json:"excluded_products,omitempty"`
}

// ActiveAt reports whether the promotion can be redeemed at t: manually
// enabled, inside its validity window (inclusive at both ends) and with
// usage headroom left.
func (p Promotion) ActiveAt(t time.Time) bool {
	if !p.IsActive {
		return false
	}
	if t.Before(p.ValidFrom) || t.After(p.ValidUntil) {
		return false
	}
	if p.UsageLimit > 0 && p.UsageCount >= p.UsageLimit {
		return false
	}
	return true
}
