package models

// CartItem is one line of the shopper's cart.
type CartItem struct {
	ProductID  string  `json:"product_id"`
	CategoryID string  `json:"category_id"`
	UnitPrice  float64 `json:"unit_price"`
	Quantity   int     `json:"quantity"`
}
