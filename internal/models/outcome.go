package models

// Outcome is the result of validating a promo code against a cart. Every
// rule failure is represented here with IsValid=false and a message;
// validation never surfaces rule failures as errors.
type Outcome struct {
	PromotionID string  `json:"promotion_id,omitempty"`
	Code        string  `json:"code"`
	Discount    float64 `json:"discount"`
	Kind        string  `json:"kind,omitempty"` // "percentage" or "fixed"
	Description string  `json:"description,omitempty"`
	IsValid     bool    `json:"is_valid"`
	Message     string  `json:"message"`
}
