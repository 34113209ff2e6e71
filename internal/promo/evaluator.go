package promo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jaayma/promotion-service/internal/concurrency"
	"github.com/jaayma/promotion-service/internal/models"
	"github.com/jaayma/promotion-service/internal/store"
	"github.com/jaayma/promotion-service/pkg/log"
)

// Messages carried in validation outcomes.
const (
	msgAlreadyUsed   = "promo code already used"
	msgNotFound      = "invalid or expired promo code"
	msgInternalFault = "validation error"
)

// Coarsened kinds surfaced in outcomes. Free-shipping and BOGO fold into
// "fixed" for downstream typing.
const (
	outcomePercentage = "percentage"
	outcomeFixed      = "fixed"
)

// symbolicScore stands in for shipping and BOGO discounts during
// best-offer comparison only; it is never reported as a monetary amount.
const symbolicScore = 10

const selectorWorkers = 4

// ErrCodeExists is returned when creating a promotion whose code is
// already in the catalog.
var ErrCodeExists = errors.New("promotion code already exists")

// Evaluator owns the promotion catalog and the used-codes set and decides
// whether promo codes are honorable against a cart.
//
// All entry points that read or write the used set share one mutex: two
// in-flight submissions must not double-apply the same code, and the
// key-value store has no transactional backstop.
type Evaluator struct {
	mu    sync.Mutex
	store store.Store
	now   func() time.Time
}

func NewEvaluator(s store.Store) *Evaluator {
	return &Evaluator{store: s, now: time.Now}
}

// Initialize seeds the default catalog and an empty used-codes set on
// first run; it is a no-op once a catalog exists.
func (e *Evaluator) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, err := e.store.GetPromotions(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("load catalog: %w", err)
	}

	seeded := DefaultPromotions(e.now().UTC())
	if err := e.store.PutPromotions(ctx, seeded); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	if err := e.store.PutUsedCodes(ctx, []string{}); err != nil {
		return fmt.Errorf("seed used codes: %w", err)
	}
	log.Info("seeded default promotion catalog", zap.Int("count", len(seeded)))
	return nil
}

// NormalizeCode canonicalizes user input: codes are case-insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ActivePromotions filters the catalog down to promotions redeemable at
// now, preserving catalog order. Callers recompute it on every query so a
// promotion expiring mid-session drops out immediately.
func ActivePromotions(catalog []models.Promotion, now time.Time) []models.Promotion {
	active := make([]models.Promotion, 0, len(catalog))
	for _, p := range catalog {
		if p.ActiveAt(now) {
			active = append(active, p)
		}
	}
	return active
}

// Validate decides whether code is honorable against the cart and
// computes its monetary effect. Rule failures come back as outcomes with
// IsValid=false; the error return is reserved for store I/O.
func (e *Evaluator) Validate(ctx context.Context, code string, _ []models.CartItem, cartTotal float64) (models.Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	normalized := NormalizeCode(code)

	used, err := e.store.GetUsedCodes(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return models.Outcome{}, fmt.Errorf("load used codes: %w", err)
	}
	// Used membership is checked before existence: a redeemed code that
	// has since expired still reads as "already used".
	for _, u := range used {
		if u == normalized {
			return models.Outcome{Code: normalized, Message: msgAlreadyUsed}, nil
		}
	}

	catalog, err := e.store.GetPromotions(ctx)
	if err != nil {
		return models.Outcome{}, fmt.Errorf("load catalog: %w", err)
	}

	return evaluate(normalized, catalog, cartTotal, e.now().UTC()), nil
}

// evaluate is the pure rules core. A panic here (malformed catalog data)
// collapses into the generic fault outcome instead of propagating.
func evaluate(code string, catalog []models.Promotion, cartTotal float64, now time.Time) (out models.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("promotion evaluation fault", zap.Any("panic", r))
			out = models.Outcome{Code: code, Message: msgInternalFault}
		}
	}()

	// Lookup happens in the active set only: an inactive or expired
	// promotion is indistinguishable from a missing one.
	var promo *models.Promotion
	for i := range catalog {
		if catalog[i].Code == code && catalog[i].ActiveAt(now) {
			promo = &catalog[i]
			break
		}
	}
	if promo == nil {
		return models.Outcome{Code: code, Message: msgNotFound}
	}

	if promo.MinCartAmount > 0 && cartTotal < promo.MinCartAmount {
		return models.Outcome{
			PromotionID: promo.ID,
			Code:        code,
			Description: promo.Description,
			Message:     fmt.Sprintf("minimum cart amount of $%.2f required", promo.MinCartAmount),
		}
	}

	discount := roundCurrency(discountFor(*promo, cartTotal))

	msg := fmt.Sprintf("promo code applied: you save $%.2f", discount)
	if promo.Kind == models.KindFreeShipping {
		msg = "promo code applied: shipping is free"
	}

	return models.Outcome{
		PromotionID: promo.ID,
		Code:        code,
		Discount:    discount,
		Kind:        coarseKind(promo.Kind),
		Description: promo.Description,
		IsValid:     true,
		Message:     msg,
	}
}

// discountFor computes the monetary discount for the promotion kind.
// Free-shipping and BOGO report zero: the shipping waiver is the caller's
// to apply, and BOGO carries no line-item logic yet.
func discountFor(p models.Promotion, cartTotal float64) float64 {
	switch p.Kind {
	case models.KindPercentage:
		d := cartTotal * p.Value / 100
		if p.MaxDiscountAmount > 0 && d > p.MaxDiscountAmount {
			d = p.MaxDiscountAmount
		}
		return d
	case models.KindFixedAmount:
		// A fixed discount never exceeds the cart total.
		return math.Min(p.Value, cartTotal)
	default:
		return 0
	}
}

func coarseKind(k models.PromotionKind) string {
	if k == models.KindPercentage {
		return outcomePercentage
	}
	return outcomeFixed
}

// roundCurrency rounds to cents, half away from zero.
func roundCurrency(v float64) float64 {
	return math.Round(v*100) / 100
}

// Apply records a redemption: the code joins the used set and the
// matching promotion's usage count grows by one. Callers validate first;
// Apply trusts its input and does not re-check.
func (e *Evaluator) Apply(ctx context.Context, code string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	normalized := NormalizeCode(code)

	used, err := e.store.GetUsedCodes(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("load used codes: %w", err)
	}
	member := false
	for _, u := range used {
		if u == normalized {
			member = true
			break
		}
	}
	if !member {
		used = append(used, normalized)
		if err := e.store.PutUsedCodes(ctx, used); err != nil {
			return fmt.Errorf("save used codes: %w", err)
		}
	}

	catalog, err := e.store.GetPromotions(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	for i := range catalog {
		if catalog[i].Code == normalized {
			catalog[i].UsageCount++
			if err := e.store.PutPromotions(ctx, catalog); err != nil {
				return fmt.Errorf("save catalog: %w", err)
			}
			break
		}
	}
	return nil
}

// Revoke removes the code from the used set. The promotion's UsageCount
// is not decremented; apply and revoke are asymmetric.
func (e *Evaluator) Revoke(ctx context.Context, code string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	normalized := NormalizeCode(code)

	used, err := e.store.GetUsedCodes(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load used codes: %w", err)
	}

	kept := make([]string, 0, len(used))
	for _, u := range used {
		if u != normalized {
			kept = append(kept, u)
		}
	}
	if err := e.store.PutUsedCodes(ctx, kept); err != nil {
		return fmt.Errorf("save used codes: %w", err)
	}
	return nil
}

// BestFor returns the usable promotion with the strictly greatest
// discount for the cart, or nil when none qualifies. Ties keep the
// earliest catalog entry.
func (e *Evaluator) BestFor(ctx context.Context, _ []models.CartItem, cartTotal float64) (*models.Promotion, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	catalog, used, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	usedSet := toSet(used)

	candidates := make([]models.Promotion, 0, len(catalog))
	for _, p := range ActivePromotions(catalog, e.now().UTC()) {
		if _, ok := usedSet[p.Code]; ok {
			continue
		}
		if p.MinCartAmount > 0 && cartTotal < p.MinCartAmount {
			continue
		}
		candidates = append(candidates, p)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// Score candidates in parallel; results are index-addressed so the
	// final scan stays deterministic.
	scores := make([]float64, len(candidates))
	concurrency.ForEach(ctx, selectorWorkers, len(candidates), func(_ context.Context, i int) {
		scores[i] = selectionScore(candidates[i], cartTotal)
	})

	best := 0
	for i := 1; i < len(candidates); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	winner := candidates[best]
	return &winner, nil
}

// selectionScore mirrors discountFor except that shipping and BOGO
// promotions enter the comparison with a symbolic score so they are not
// always last.
func selectionScore(p models.Promotion, cartTotal float64) float64 {
	switch p.Kind {
	case models.KindPercentage, models.KindFixedAmount:
		return discountFor(p, cartTotal)
	default:
		return symbolicScore
	}
}

// HotDeals lists the strongest active percentage promotions for
// merchandising surfaces: value >= 20, best first, capped at three.
func (e *Evaluator) HotDeals(ctx context.Context) ([]models.Promotion, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	catalog, err := e.store.GetPromotions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	deals := make([]models.Promotion, 0, 3)
	for _, p := range ActivePromotions(catalog, e.now().UTC()) {
		if p.Kind == models.KindPercentage && p.Value >= 20 {
			deals = append(deals, p)
		}
	}
	sort.SliceStable(deals, func(i, j int) bool { return deals[i].Value > deals[j].Value })
	if len(deals) > 3 {
		deals = deals[:3]
	}
	return deals, nil
}

// FlashSales lists active promotions expiring within the next 24 hours.
func (e *Evaluator) FlashSales(ctx context.Context) ([]models.Promotion, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	catalog, err := e.store.GetPromotions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	now := e.now().UTC()
	sales := make([]models.Promotion, 0)
	for _, p := range ActivePromotions(catalog, now) {
		left := p.ValidUntil.Sub(now)
		if left > 0 && left <= 24*time.Hour {
			sales = append(sales, p)
		}
	}
	return sales, nil
}

// ApplicableFor lists codes of unused active promotions whose minimum is
// met and whose allow/deny lists match at least one cart line. Note that
// the lists scope this listing only; Validate and BestFor ignore them.
func (e *Evaluator) ApplicableFor(ctx context.Context, cart []models.CartItem, cartTotal float64) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	catalog, used, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	usedSet := toSet(used)

	codes := []string{}
	for _, p := range ActivePromotions(catalog, e.now().UTC()) {
		if _, ok := usedSet[p.Code]; ok {
			continue
		}
		if p.MinCartAmount > 0 && cartTotal < p.MinCartAmount {
			continue
		}
		if !appliesToCart(p, cart) {
			continue
		}
		codes = append(codes, p.Code)
	}
	return codes, nil
}

// appliesToCart checks the promotion's category/product allow/deny lists
// against the cart. No lists means the promotion applies to any cart.
func appliesToCart(p models.Promotion, cart []models.CartItem) bool {
	if len(p.ApplicableCategories) == 0 && len(p.ApplicableProducts) == 0 && len(p.ExcludedProducts) == 0 {
		return true
	}

	excluded := toSet(p.ExcludedProducts)
	products := toSet(p.ApplicableProducts)
	categories := toSet(p.ApplicableCategories)

	for _, it := range cart {
		if _, ok := excluded[it.ProductID]; ok {
			continue
		}
		if len(products) == 0 && len(categories) == 0 {
			// Only a deny list is set and this line is not on it.
			return true
		}
		if _, ok := products[it.ProductID]; ok {
			return true
		}
		if _, ok := categories[it.CategoryID]; ok {
			return true
		}
	}
	return false
}

// CreatePromotion appends a promotion to the persisted catalog. The
// evaluator never edits or deletes existing entries.
func (e *Evaluator) CreatePromotion(ctx context.Context, p models.Promotion) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p.Code = NormalizeCode(p.Code)

	catalog, err := e.store.GetPromotions(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("load catalog: %w", err)
	}
	for _, existing := range catalog {
		if existing.Code == p.Code {
			return ErrCodeExists
		}
	}

	catalog = append(catalog, p)
	if err := e.store.PutPromotions(ctx, catalog); err != nil {
		return fmt.Errorf("save catalog: %w", err)
	}
	log.Info("promotion created", zap.String("code", p.Code), zap.String("kind", string(p.Kind)))
	return nil
}

// Catalog returns every promotion, including inactive and expired ones.
func (e *Evaluator) Catalog(ctx context.Context) ([]models.Promotion, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	catalog, err := e.store.GetPromotions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return catalog, nil
}

func (e *Evaluator) load(ctx context.Context) ([]models.Promotion, []string, error) {
	catalog, err := e.store.GetPromotions(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load catalog: %w", err)
	}
	used, err := e.store.GetUsedCodes(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, nil, fmt.Errorf("load used codes: %w", err)
	}
	return catalog, used, nil
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
