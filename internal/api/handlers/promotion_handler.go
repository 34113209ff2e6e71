package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jaayma/promotion-service/internal/models"
	"github.com/jaayma/promotion-service/internal/promo"
	"github.com/jaayma/promotion-service/pkg/log"
)

// --- Request / Response DTOs ---

type ValidateRequest struct {
	Code      string            `json:"code"`
	CartItems []models.CartItem `json:"cart_items"`
	CartTotal float64           `json:"cart_total"`
}

type CodeRequest struct {
	Code string `json:"code"`
}

type CartRequest struct {
	CartItems []models.CartItem `json:"cart_items"`
	CartTotal float64           `json:"cart_total"`
}

type ApplicableResponse struct {
	Codes []string `json:"codes"`
}

type CreatePromotionRequest struct {
	Code              string  `json:"code"`
	Name              string  `json:"name"`
	Description       string  `json:"description"`
	Kind              string  `json:"kind"`
	Value             float64 `json:"value"`
	MinCartAmount     float64 `json:"min_cart_amount"`
	MaxDiscountAmount float64 `json:"max_discount_amount"`
	ValidFrom         string  `json:"valid_from"`  // RFC3339
	ValidUntil        string  `json:"valid_until"` // RFC3339
	UsageLimit        int     `json:"usage_limit"`

	ApplicableCategories []string `json:"applicable_categories,omitempty"`
	ApplicableProducts   []string `json:"applicable_products,omitempty"`
	ExcludedProducts     []string `json:"excluded_products,omitempty"`
}

// --- Handler struct & constructor ---

type PromotionHandler struct {
	evaluator *promo.Evaluator
}

func NewPromotionHandler(e *promo.Evaluator) *PromotionHandler {
	return &PromotionHandler{evaluator: e}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// --- Handlers ---

// Validate handles POST /promotions/validate. Rule failures still come
// back as 200s with is_valid=false; only store faults are 500s.
func (h *PromotionHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_body"})
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "code required"})
		return
	}

	outcome, err := h.evaluator.Validate(r.Context(), req.Code, req.CartItems, req.CartTotal)
	if err != nil {
		log.Error("validate promo code", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

// Apply handles POST /promotions/apply.
func (h *PromotionHandler) Apply(w http.ResponseWriter, r *http.Request) {
	code, ok := decodeCode(w, r)
	if !ok {
		return
	}
	if err := h.evaluator.Apply(r.Context(), code); err != nil {
		log.Error("apply promo code", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Remove handles POST /promotions/remove.
func (h *PromotionHandler) Remove(w http.ResponseWriter, r *http.Request) {
	code, ok := decodeCode(w, r)
	if !ok {
		return
	}
	if err := h.evaluator.Revoke(r.Context(), code); err != nil {
		log.Error("remove promo code", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Best handles POST /promotions/best.
func (h *PromotionHandler) Best(w http.ResponseWriter, r *http.Request) {
	var req CartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_body"})
		return
	}

	best, err := h.evaluator.BestFor(r.Context(), req.CartItems, req.CartTotal)
	if err != nil {
		log.Error("select best promotion", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
		return
	}
	if best == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no_promotion_available"})
		return
	}
	writeJSON(w, http.StatusOK, best)
}

// Applicable handles POST /promotions/applicable.
func (h *PromotionHandler) Applicable(w http.ResponseWriter, r *http.Request) {
	var req CartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_body"})
		return
	}

	codes, err := h.evaluator.ApplicableFor(r.Context(), req.CartItems, req.CartTotal)
	if err != nil {
		log.Error("list applicable promotions", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
		return
	}
	writeJSON(w, http.StatusOK, ApplicableResponse{Codes: codes})
}

// HotDeals handles GET /promotions/hot-deals.
func (h *PromotionHandler) HotDeals(w http.ResponseWriter, r *http.Request) {
	deals, err := h.evaluator.HotDeals(r.Context())
	if err != nil {
		log.Error("list hot deals", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
		return
	}
	writeJSON(w, http.StatusOK, deals)
}

// FlashSales handles GET /promotions/flash-sales.
func (h *PromotionHandler) FlashSales(w http.ResponseWriter, r *http.Request) {
	sales, err := h.evaluator.FlashSales(r.Context())
	if err != nil {
		log.Error("list flash sales", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
		return
	}
	writeJSON(w, http.StatusOK, sales)
}

// CreatePromotion handles POST /admin/promotions.
func (h *PromotionHandler) CreatePromotion(w http.ResponseWriter, r *http.Request) {
	var req CreatePromotionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_body"})
		return
	}

	// basic validation
	if strings.TrimSpace(req.Code) == "" || req.Value <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "code and value required"})
		return
	}
	kind, ok := models.ParseKind(req.Kind)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown kind"})
		return
	}
	validFrom, err := time.Parse(time.RFC3339, req.ValidFrom)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid valid_from; use RFC3339"})
		return
	}
	validUntil, err := time.Parse(time.RFC3339, req.ValidUntil)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid valid_until; use RFC3339"})
		return
	}
	if !validUntil.After(validFrom) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "valid_until must be after valid_from"})
		return
	}

	code := promo.NormalizeCode(req.Code)
	p := models.Promotion{
		ID:                "promo_" + strings.ToLower(code),
		Code:              code,
		Name:              req.Name,
		Description:       req.Description,
		Kind:              kind,
		Value:             req.Value,
		MinCartAmount:     req.MinCartAmount,
		MaxDiscountAmount: req.MaxDiscountAmount,
		ValidFrom:         validFrom.UTC(),
		ValidUntil:        validUntil.UTC(),
		UsageLimit:        req.UsageLimit,
		IsActive:          true,

		ApplicableCategories: req.ApplicableCategories,
		ApplicableProducts:   req.ApplicableProducts,
		ExcludedProducts:     req.ExcludedProducts,
	}

	if err := h.evaluator.CreatePromotion(r.Context(), p); err != nil {
		if errors.Is(err, promo.ErrCodeExists) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "code_exists"})
			return
		}
		log.Error("create promotion", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":      "promotion_created",
		"promotion_id": p.ID,
	})
}

// ListPromotions handles GET /admin/promotions. The full catalog comes
// back, inactive and expired entries included.
func (h *PromotionHandler) ListPromotions(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.evaluator.Catalog(r.Context())
	if err != nil {
		log.Error("list catalog", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
		return
	}
	writeJSON(w, http.StatusOK, catalog)
}

func decodeCode(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req CodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_body"})
		return "", false
	}
	if strings.TrimSpace(req.Code) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "code required"})
		return "", false
	}
	return req.Code, true
}
