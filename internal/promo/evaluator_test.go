package promo

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jaayma/promotion-service/internal/models"
	"github.com/jaayma/promotion-service/internal/store"
)

var seedTime = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

func newTestEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	e := NewEvaluator(store.NewMemory())
	e.now = func() time.Time { return seedTime }
	if err := e.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return e
}

func validate(t *testing.T, e *Evaluator, code string, total float64) models.Outcome {
	t.Helper()
	out, err := e.Validate(context.Background(), code, nil, total)
	if err != nil {
		t.Fatalf("Validate(%q): %v", code, err)
	}
	return out
}

// --- Validate ---

func TestValidate_Welcome10(t *testing.T) {
	e := newTestEvaluator(t)

	out := validate(t, e, "WELCOME10", 60)
	if !out.IsValid {
		t.Fatalf("WELCOME10 at $60 should be valid, got message %q", out.Message)
	}
	if out.Discount != 6 {
		t.Errorf("discount = %v, want 6", out.Discount)
	}
	if !strings.Contains(out.Message, "6") {
		t.Errorf("message %q should contain the discount", out.Message)
	}
	if out.Kind != "percentage" {
		t.Errorf("kind = %q, want percentage", out.Kind)
	}
}

func TestValidate_BelowMinimum(t *testing.T) {
	e := newTestEvaluator(t)

	out := validate(t, e, "WELCOME10", 40)
	if out.IsValid {
		t.Fatal("WELCOME10 at $40 should be rejected")
	}
	if !strings.Contains(out.Message, "50") {
		t.Errorf("message %q should state the $50 minimum", out.Message)
	}
	// Rejection still surfaces which promotion was matched.
	if out.PromotionID != "promo_welcome10" {
		t.Errorf("promotion id = %q, want promo_welcome10", out.PromotionID)
	}
	if out.Description == "" {
		t.Error("description should be surfaced on a below-minimum rejection")
	}
}

func TestValidate_PercentageUnderCap(t *testing.T) {
	e := newTestEvaluator(t)

	out := validate(t, e, "SUMMER25", 300)
	if !out.IsValid || out.Discount != 75 {
		t.Fatalf("SUMMER25 at $300: valid=%v discount=%v, want valid discount 75", out.IsValid, out.Discount)
	}
}

func TestValidate_PercentageCapped(t *testing.T) {
	e := newTestEvaluator(t)

	out := validate(t, e, "SUMMER25", 500)
	if !out.IsValid || out.Discount != 100 {
		t.Fatalf("SUMMER25 at $500: valid=%v discount=%v, want capped discount 100", out.IsValid, out.Discount)
	}
}

func TestValidate_FixedNeverExceedsTotal(t *testing.T) {
	e := newTestEvaluator(t)
	catalog := []models.Promotion{{
		ID:         "promo_flat50",
		Code:       "FLAT50",
		Kind:       models.KindFixedAmount,
		Value:      50,
		ValidFrom:  seedTime,
		ValidUntil: seedTime.Add(24 * time.Hour),
		IsActive:   true,
	}}
	if err := e.store.PutPromotions(context.Background(), catalog); err != nil {
		t.Fatalf("PutPromotions: %v", err)
	}

	out := validate(t, e, "FLAT50", 30)
	if !out.IsValid || out.Discount != 30 {
		t.Fatalf("FLAT50 at $30: valid=%v discount=%v, want discount clamped to 30", out.IsValid, out.Discount)
	}
	if out.Kind != "fixed" {
		t.Errorf("kind = %q, want fixed", out.Kind)
	}
}

func TestValidate_FreeShippingReportsZero(t *testing.T) {
	e := newTestEvaluator(t)

	out := validate(t, e, "FREESHIP", 200)
	if !out.IsValid {
		t.Fatalf("FREESHIP should be valid, got %q", out.Message)
	}
	if out.Discount != 0 {
		t.Errorf("discount = %v, want 0 (shipping waiver is the caller's)", out.Discount)
	}
	if out.Kind != "fixed" {
		t.Errorf("kind = %q, want fixed (shipping folds into fixed)", out.Kind)
	}
}

func TestValidate_NormalizesCode(t *testing.T) {
	e := newTestEvaluator(t)

	out := validate(t, e, "  welcome10 ", 60)
	if !out.IsValid {
		t.Fatalf("lowercased padded code should validate, got %q", out.Message)
	}
	if out.Code != "WELCOME10" {
		t.Errorf("outcome code = %q, want WELCOME10", out.Code)
	}
}

func TestValidate_UnknownCode(t *testing.T) {
	e := newTestEvaluator(t)

	out := validate(t, e, "NOPE", 100)
	if out.IsValid {
		t.Fatal("unknown code should be rejected")
	}
	if out.Message != "invalid or expired promo code" {
		t.Errorf("message = %q", out.Message)
	}
}

func TestValidate_ExpiredLooksUnknown(t *testing.T) {
	e := newTestEvaluator(t)
	e.now = func() time.Time { return seedTime.Add(5 * 24 * time.Hour) }

	// BLACKFRIDAY's 3-day window has passed; the rejection must be
	// indistinguishable from a nonexistent code.
	expired := validate(t, e, "BLACKFRIDAY", 200)
	unknown := validate(t, e, "NOPE", 200)
	if expired.IsValid {
		t.Fatal("expired code should be rejected")
	}
	if expired.Message != unknown.Message {
		t.Errorf("expired message %q differs from unknown message %q", expired.Message, unknown.Message)
	}
}

func TestValidate_RejectionIsIdempotent(t *testing.T) {
	e := newTestEvaluator(t)

	first := validate(t, e, "NOPE", 100)
	second := validate(t, e, "NOPE", 100)
	if first.IsValid || second.IsValid {
		t.Fatal("both validations should reject")
	}
	if first.Message != second.Message {
		t.Errorf("messages differ: %q vs %q", first.Message, second.Message)
	}
}

func TestValidate_KillSwitch(t *testing.T) {
	e := newTestEvaluator(t)
	ctx := context.Background()

	catalog, err := e.store.GetPromotions(ctx)
	if err != nil {
		t.Fatalf("GetPromotions: %v", err)
	}
	for i := range catalog {
		if catalog[i].Code == "WELCOME10" {
			catalog[i].IsActive = false
		}
	}
	if err := e.store.PutPromotions(ctx, catalog); err != nil {
		t.Fatalf("PutPromotions: %v", err)
	}

	out := validate(t, e, "WELCOME10", 60)
	if out.IsValid {
		t.Fatal("disabled promotion should be rejected regardless of its window")
	}
}

func TestValidate_UsageLimitExhausted(t *testing.T) {
	e := newTestEvaluator(t)
	catalog := []models.Promotion{{
		ID:         "promo_once",
		Code:       "ONCE",
		Kind:       models.KindPercentage,
		Value:      15,
		ValidFrom:  seedTime,
		ValidUntil: seedTime.Add(24 * time.Hour),
		UsageLimit: 1,
		UsageCount: 1,
		IsActive:   true,
	}}
	if err := e.store.PutPromotions(context.Background(), catalog); err != nil {
		t.Fatalf("PutPromotions: %v", err)
	}

	out := validate(t, e, "ONCE", 100)
	if out.IsValid {
		t.Fatal("promotion with no usage headroom should be rejected")
	}
}

// --- Apply / Revoke ---

func TestApplyThenValidate_AlreadyUsed(t *testing.T) {
	e := newTestEvaluator(t)
	ctx := context.Background()

	out := validate(t, e, "SAVE20", 200)
	if !out.IsValid || out.Discount != 20 {
		t.Fatalf("SAVE20 at $200: valid=%v discount=%v", out.IsValid, out.Discount)
	}

	if err := e.Apply(ctx, "SAVE20"); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	out = validate(t, e, "SAVE20", 200)
	if out.IsValid {
		t.Fatal("second validation of an applied code should fail")
	}
	if out.Message != "promo code already used" {
		t.Errorf("message = %q", out.Message)
	}
}

func TestValidate_UsedBeatsExpired(t *testing.T) {
	e := newTestEvaluator(t)
	ctx := context.Background()

	if err := e.Apply(ctx, "BLACKFRIDAY"); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	// Window elapses after redemption; the used-code signal wins.
	e.now = func() time.Time { return seedTime.Add(10 * 24 * time.Hour) }

	out := validate(t, e, "BLACKFRIDAY", 200)
	if out.Message != "promo code already used" {
		t.Errorf("message = %q, want the already-used message", out.Message)
	}
}

func TestApply_IncrementsUsageCount(t *testing.T) {
	e := newTestEvaluator(t)
	ctx := context.Background()

	if err := e.Apply(ctx, "WELCOME10"); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	catalog, err := e.Catalog(ctx)
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}
	for _, p := range catalog {
		if p.Code == "WELCOME10" && p.UsageCount != 1 {
			t.Errorf("usage count = %d, want 1", p.UsageCount)
		}
	}
}

func TestRevoke_DoesNotDecrementUsage(t *testing.T) {
	e := newTestEvaluator(t)
	ctx := context.Background()

	if err := e.Apply(ctx, "WELCOME10"); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := e.Revoke(ctx, "WELCOME10"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	// The code is redeemable again...
	out := validate(t, e, "WELCOME10", 60)
	if !out.IsValid {
		t.Fatalf("revoked code should validate again, got %q", out.Message)
	}

	// ...but the usage count stays incremented.
	catalog, err := e.Catalog(ctx)
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}
	for _, p := range catalog {
		if p.Code == "WELCOME10" && p.UsageCount != 1 {
			t.Errorf("usage count = %d, want 1 after revoke", p.UsageCount)
		}
	}
}

// --- BestFor ---

func TestBestFor_HighestDiscountWins(t *testing.T) {
	e := newTestEvaluator(t)

	best, err := e.BestFor(context.Background(), nil, 200)
	if err != nil {
		t.Fatalf("BestFor: %v", err)
	}
	// BLACKFRIDAY: 40% of 200 = 80, vs SUMMER25 at 50.
	if best == nil || best.Code != "BLACKFRIDAY" {
		t.Fatalf("best = %+v, want BLACKFRIDAY", best)
	}
}

func TestBestFor_AfterWindowElapsesRunnerUpWins(t *testing.T) {
	e := newTestEvaluator(t)
	e.now = func() time.Time { return seedTime.Add(5 * 24 * time.Hour) }

	best, err := e.BestFor(context.Background(), nil, 200)
	if err != nil {
		t.Fatalf("BestFor: %v", err)
	}
	if best == nil || best.Code != "SUMMER25" {
		t.Fatalf("best = %+v, want SUMMER25 once BLACKFRIDAY expired", best)
	}
}

func TestBestFor_RespectsMinimum(t *testing.T) {
	e := newTestEvaluator(t)

	best, err := e.BestFor(context.Background(), nil, 60)
	if err != nil {
		t.Fatalf("BestFor: %v", err)
	}
	if best == nil {
		t.Fatal("a promotion should qualify at $60")
	}
	if best.MinCartAmount > 60 {
		t.Errorf("selected %s with minimum %v above the cart total", best.Code, best.MinCartAmount)
	}
	// FREESHIP's symbolic score (10) outranks WELCOME10's $6.
	if best.Code != "FREESHIP" {
		t.Errorf("best = %s, want FREESHIP", best.Code)
	}
}

func TestBestFor_SkipsUsedCodes(t *testing.T) {
	e := newTestEvaluator(t)
	ctx := context.Background()

	if err := e.Apply(ctx, "BLACKFRIDAY"); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	best, err := e.BestFor(ctx, nil, 200)
	if err != nil {
		t.Fatalf("BestFor: %v", err)
	}
	if best == nil || best.Code != "SUMMER25" {
		t.Fatalf("best = %+v, want SUMMER25 with BLACKFRIDAY used", best)
	}
}

func TestBestFor_NoneEligible(t *testing.T) {
	e := newTestEvaluator(t)
	e.now = func() time.Time { return seedTime.Add(365 * 24 * time.Hour) }

	best, err := e.BestFor(context.Background(), nil, 500)
	if err != nil {
		t.Fatalf("BestFor: %v", err)
	}
	if best != nil {
		t.Fatalf("best = %+v, want nil with every window elapsed", best)
	}
}

// --- Merchandising views ---

func TestHotDeals(t *testing.T) {
	e := newTestEvaluator(t)

	deals, err := e.HotDeals(context.Background())
	if err != nil {
		t.Fatalf("HotDeals: %v", err)
	}
	// Percentage promotions with value >= 20: BLACKFRIDAY(40), SUMMER25(25).
	if len(deals) != 2 {
		t.Fatalf("got %d deals, want 2", len(deals))
	}
	if deals[0].Code != "BLACKFRIDAY" || deals[1].Code != "SUMMER25" {
		t.Errorf("deals = [%s %s], want [BLACKFRIDAY SUMMER25]", deals[0].Code, deals[1].Code)
	}
}

func TestHotDeals_CappedAtThree(t *testing.T) {
	e := newTestEvaluator(t)
	ctx := context.Background()

	for _, code := range []string{"EXTRA30", "EXTRA35"} {
		p := models.Promotion{
			ID:         "promo_" + strings.ToLower(code),
			Code:       code,
			Kind:       models.KindPercentage,
			Value:      30,
			ValidFrom:  seedTime,
			ValidUntil: seedTime.Add(48 * time.Hour),
			IsActive:   true,
		}
		if err := e.CreatePromotion(ctx, p); err != nil {
			t.Fatalf("CreatePromotion(%s): %v", code, err)
		}
	}

	deals, err := e.HotDeals(ctx)
	if err != nil {
		t.Fatalf("HotDeals: %v", err)
	}
	if len(deals) != 3 {
		t.Fatalf("got %d deals, want top 3", len(deals))
	}
	if deals[0].Code != "BLACKFRIDAY" {
		t.Errorf("first deal = %s, want BLACKFRIDAY", deals[0].Code)
	}
}

func TestFlashSales(t *testing.T) {
	e := newTestEvaluator(t)

	// Nothing expires within 24h of seeding.
	sales, err := e.FlashSales(context.Background())
	if err != nil {
		t.Fatalf("FlashSales: %v", err)
	}
	if len(sales) != 0 {
		t.Fatalf("got %d flash sales at seed time, want 0", len(sales))
	}

	// 49 hours in, BLACKFRIDAY has 23h left.
	e.now = func() time.Time { return seedTime.Add(49 * time.Hour) }
	sales, err = e.FlashSales(context.Background())
	if err != nil {
		t.Fatalf("FlashSales: %v", err)
	}
	if len(sales) != 1 || sales[0].Code != "BLACKFRIDAY" {
		t.Fatalf("sales = %+v, want just BLACKFRIDAY", sales)
	}
}

// --- Applicable filter ---

func TestApplicableFor_Lists(t *testing.T) {
	e := newTestEvaluator(t)
	ctx := context.Background()

	scoped := models.Promotion{
		ID:                   "promo_books15",
		Code:                 "BOOKS15",
		Kind:                 models.KindPercentage,
		Value:                15,
		ValidFrom:            seedTime,
		ValidUntil:           seedTime.Add(48 * time.Hour),
		IsActive:             true,
		ApplicableCategories: []string{"books"},
	}
	if err := e.CreatePromotion(ctx, scoped); err != nil {
		t.Fatalf("CreatePromotion: %v", err)
	}

	bookCart := []models.CartItem{{ProductID: "p1", CategoryID: "books", UnitPrice: 30, Quantity: 2}}
	codes, err := e.ApplicableFor(ctx, bookCart, 60)
	if err != nil {
		t.Fatalf("ApplicableFor: %v", err)
	}
	if !contains(codes, "BOOKS15") {
		t.Errorf("codes %v should include BOOKS15 for a books cart", codes)
	}
	// Unrestricted promotions whose minimum is met show up too.
	if !contains(codes, "WELCOME10") || !contains(codes, "FREESHIP") {
		t.Errorf("codes %v should include unrestricted WELCOME10 and FREESHIP", codes)
	}
	if contains(codes, "SUMMER25") {
		t.Errorf("codes %v should exclude SUMMER25 below its minimum", codes)
	}

	toyCart := []models.CartItem{{ProductID: "p2", CategoryID: "toys", UnitPrice: 60, Quantity: 1}}
	codes, err = e.ApplicableFor(ctx, toyCart, 60)
	if err != nil {
		t.Fatalf("ApplicableFor: %v", err)
	}
	if contains(codes, "BOOKS15") {
		t.Errorf("codes %v should exclude BOOKS15 for a toys cart", codes)
	}
}

func TestApplicableFor_ExcludedProduct(t *testing.T) {
	e := newTestEvaluator(t)
	ctx := context.Background()

	scoped := models.Promotion{
		ID:               "promo_nogift",
		Code:             "NOGIFT",
		Kind:             models.KindPercentage,
		Value:            10,
		ValidFrom:        seedTime,
		ValidUntil:       seedTime.Add(48 * time.Hour),
		IsActive:         true,
		ExcludedProducts: []string{"giftcard"},
	}
	if err := e.CreatePromotion(ctx, scoped); err != nil {
		t.Fatalf("CreatePromotion: %v", err)
	}

	giftOnly := []models.CartItem{{ProductID: "giftcard", CategoryID: "gift", UnitPrice: 50, Quantity: 1}}
	codes, err := e.ApplicableFor(ctx, giftOnly, 50)
	if err != nil {
		t.Fatalf("ApplicableFor: %v", err)
	}
	if contains(codes, "NOGIFT") {
		t.Errorf("codes %v should exclude NOGIFT for an excluded-only cart", codes)
	}
}

// --- Lifecycle ---

func TestInitialize_SeedsOnceOnly(t *testing.T) {
	e := newTestEvaluator(t)
	ctx := context.Background()

	if err := e.Apply(ctx, "WELCOME10"); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := e.Initialize(ctx); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}

	catalog, err := e.Catalog(ctx)
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}
	for _, p := range catalog {
		if p.Code == "WELCOME10" && p.UsageCount != 1 {
			t.Error("re-initialization must not reseed an existing catalog")
		}
	}
}

func TestDefaultPromotions_Windows(t *testing.T) {
	seeded := DefaultPromotions(seedTime)
	if len(seeded) != 5 {
		t.Fatalf("got %d defaults, want 5", len(seeded))
	}
	windows := map[string]time.Duration{
		"WELCOME10":   30 * 24 * time.Hour,
		"FREESHIP":    7 * 24 * time.Hour,
		"SUMMER25":    14 * 24 * time.Hour,
		"SAVE20":      21 * 24 * time.Hour,
		"BLACKFRIDAY": 3 * 24 * time.Hour,
	}
	for _, p := range seeded {
		want, ok := windows[p.Code]
		if !ok {
			t.Errorf("unexpected default code %q", p.Code)
			continue
		}
		if got := p.ValidUntil.Sub(p.ValidFrom); got != want {
			t.Errorf("%s window = %v, want %v", p.Code, got, want)
		}
		if !p.IsActive {
			t.Errorf("%s should seed active", p.Code)
		}
	}
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
