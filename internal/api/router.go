package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jaayma/promotion-service/internal/api/handlers"
	"github.com/jaayma/promotion-service/internal/promo"
)

// NewRouter builds the HTTP router for the promotion-service.
func NewRouter(evaluator *promo.Evaluator) http.Handler {
	r := chi.NewRouter()

	h := handlers.NewPromotionHandler(evaluator)

	// Storefront endpoints
	r.Route("/promotions", func(r chi.Router) {
		r.Post("/validate", h.Validate)
		r.Post("/apply", h.Apply)
		r.Post("/remove", h.Remove)
		r.Post("/best", h.Best)
		r.Post("/applicable", h.Applicable)
		r.Get("/hot-deals", h.HotDeals)
		r.Get("/flash-sales", h.FlashSales)
	})

	// Admin endpoints
	r.Route("/admin", func(r chi.Router) {
		r.Post("/promotions", h.CreatePromotion)
		r.Get("/promotions", h.ListPromotions)
	})

	// health
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}
