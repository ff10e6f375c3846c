package redeem

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jcq/jcq-api/internal/domain/catalog"
	"github.com/jcq/jcq-api/internal/domain/catalog/catalogtest"
	"github.com/jcq/jcq-api/internal/domain/entitlement"
	"github.com/jcq/jcq-api/internal/domain/purchase"
	"github.com/jcq/jcq-api/internal/domain/purchase/purchasetest"
	"github.com/jcq/jcq-api/internal/pkg/apperror"
	"github.com/jcq/jcq-api/internal/pkg/ratelimit"
	"github.com/jcq/jcq-api/internal/pkg/redeemcode"
)

type testEnv struct {
	svc       *Service
	repo      *memoryRepo
	purchases *purchasetest.Repository
	catalog   *catalogtest.Repository
	game      catalog.Game
	chapters  []catalog.Chapter
	now       time.Time
	adminID   uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cat := catalogtest.NewRepository()
	game := catalog.Game{
		ID:          uuid.New(),
		TenantID:    uuid.New(),
		Title:       "Lantern Street",
		PricingType: catalog.PricingPerChapter,
		Currency:    "EUR",
	}
	chapters := []catalog.Chapter{
		{ID: uuid.New(), Order: 1, UnlockType: catalog.UnlockFree},
		{ID: uuid.New(), Order: 2, UnlockType: catalog.UnlockPurchase, Price: decimal.NewNullDecimal(decimal.NewFromInt(3))},
		{ID: uuid.New(), Order: 3, UnlockType: catalog.UnlockPurchase, Price: decimal.NewNullDecimal(decimal.NewFromInt(3))},
	}
	cat.PutGame(game, chapters...)

	gen, err := redeemcode.NewGenerator("JCQ")
	if err != nil {
		t.Fatalf("generator: %v", err)
	}
	limiter, err := ratelimit.NewMemoryLimiter(ratelimit.DefaultPolicy)
	if err != nil {
		t.Fatalf("limiter: %v", err)
	}

	purchases := purchasetest.NewRepository()
	repo := newMemoryRepo(purchases)
	svc := NewService(Deps{
		Repo:      repo,
		Catalog:   cat,
		Purchases: purchases,
		Generator: gen,
		Limiter:   limiter,
	})
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	return &testEnv{
		svc: svc, repo: repo, purchases: purchases, catalog: cat,
		game: game, chapters: chapters, now: now, adminID: uuid.New(),
	}
}

func (e *testEnv) createCode(t *testing.T, req CreateCodeRequest) *CodeResponse {
	t.Helper()
	if req.GameID == uuid.Nil {
		req.GameID = e.game.ID
	}
	if req.Scope == "" {
		req.Scope = string(ScopeGame)
	}
	if req.MaxUses == 0 {
		req.MaxUses = 1
	}
	code, err := e.svc.CreateCode(context.Background(), e.adminID, &req)
	if err != nil {
		t.Fatalf("create code: %v", err)
	}
	return code
}

func strPtr(s string) *string { return &s }

func TestRedeemChapterCodeEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chapterC := env.chapters[2].ID

	created := env.createCode(t, CreateCodeRequest{
		Code:      strPtr("jcq-ab23-xy89"),
		Scope:     string(ScopeChapter),
		ChapterID: &chapterC,
		MaxUses:   1,
	})
	if created.Code != "JCQ-AB23-XY89" {
		t.Fatalf("expected canonical code, got %s", created.Code)
	}

	actor := uuid.New()
	resp, err := env.svc.Redeem(ctx, actor, "", " jcq-ab23-XY89 ")
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if resp.Scope != ScopeChapter || resp.GameID != env.game.ID || resp.ChapterID == nil || *resp.ChapterID != chapterC {
		t.Fatalf("unexpected response %+v", resp)
	}

	all := env.purchases.All()
	if len(all) != 1 {
		t.Fatalf("expected one purchase, got %d", len(all))
	}
	p := all[0]
	if p.ActorID != actor || p.ChapterID == nil || *p.ChapterID != chapterC ||
		p.Type != purchase.TypeRedeemCode || !p.Amount.IsZero() || p.Status != purchase.StatusCompleted {
		t.Fatalf("unexpected purchase %+v", p)
	}
	if p.SourceCodeID == nil || *p.SourceCodeID != created.ID {
		t.Fatalf("purchase must reference the code")
	}

	code, _ := env.repo.GetByID(ctx, created.ID)
	if code.UsedCount != 1 || code.Status != StatusUsed {
		t.Fatalf("expected used_count 1 and status used, got %d %s", code.UsedCount, code.Status)
	}

	ent, err := entitlement.NewService(env.catalog, env.purchases).Get(ctx, actor, env.game.ID)
	if err != nil {
		t.Fatalf("entitlement: %v", err)
	}
	access := map[uuid.UUID]bool{}
	for _, c := range ent.Chapters {
		access[c.ChapterID] = c.HasAccess
	}
	if !access[chapterC] {
		t.Fatalf("expected chapter C accessible, got %+v", ent.Chapters)
	}
	if access[env.chapters[1].ID] {
		t.Fatalf("chapter 2 must stay locked")
	}
}

func TestRedeemConcurrentSingleUse(t *testing.T) {
	env := newTestEnv(t)
	code := env.createCode(t, CreateCodeRequest{MaxUses: 1})

	const redeemers = 2
	var wg sync.WaitGroup
	errs := make([]error, redeemers)
	start := make(chan struct{})
	for i := 0; i < redeemers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = env.svc.Redeem(context.Background(), uuid.New(), "", code.Code)
		}(i)
	}
	close(start)
	wg.Wait()

	successes, exhausted := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrCodeExhausted):
			exhausted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || exhausted != 1 {
		t.Fatalf("expected 1 success and 1 exhausted, got %d and %d", successes, exhausted)
	}

	stored, _ := env.repo.GetByID(context.Background(), code.ID)
	if stored.UsedCount != 1 || stored.UsedCount > stored.MaxUses {
		t.Fatalf("used_count must be 1, got %d", stored.UsedCount)
	}
}

func TestRedeemManyConcurrentNeverOverConsumes(t *testing.T) {
	env := newTestEnv(t)
	code := env.createCode(t, CreateCodeRequest{MaxUses: 5})

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.svc.Redeem(context.Background(), uuid.New(), "", code.Code); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	stored, _ := env.repo.GetByID(context.Background(), code.ID)
	if successes != 5 || stored.UsedCount != 5 || stored.Status != StatusUsed {
		t.Fatalf("expected 5 redemptions, got %d (used_count %d, status %s)", successes, stored.UsedCount, stored.Status)
	}
}

func TestRedeemSameActorTwice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chapter := env.chapters[1].ID
	code := env.createCode(t, CreateCodeRequest{MaxUses: 3, Scope: string(ScopeChapter), ChapterID: &chapter})
	actor := uuid.New()

	if _, err := env.svc.Redeem(ctx, actor, "", code.Code); err != nil {
		t.Fatalf("first redeem: %v", err)
	}
	_, err := env.svc.Redeem(ctx, actor, "", code.Code)
	if !errors.Is(err, ErrAlreadyRedeemed) {
		t.Fatalf("expected already redeemed, got %v", err)
	}
	if len(env.purchases.All()) != 1 {
		t.Fatalf("second attempt must not create a purchase")
	}
}

func TestRedeemRejectsAlreadyEntitled(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	actor := uuid.New()
	whole := purchase.NewCompleted(actor, purchase.GameScope(env.game.ID), purchase.TypeCashPayment, decimal.NewFromInt(9), "EUR", env.now)
	if err := env.purchases.GrantExclusive(ctx, whole); err != nil {
		t.Fatalf("seed: %v", err)
	}

	chapter := env.chapters[2].ID
	code := env.createCode(t, CreateCodeRequest{Scope: string(ScopeChapter), ChapterID: &chapter})
	_, err := env.svc.Redeem(ctx, actor, "", code.Code)
	if !errors.Is(err, purchase.ErrAlreadyEntitled) {
		t.Fatalf("expected already entitled, got %v", err)
	}

	stored, _ := env.repo.GetByID(ctx, code.ID)
	if stored.UsedCount != 0 {
		t.Fatalf("rejected redemption must not consume a use")
	}
}

func TestRedeemCheckOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	disabled := env.createCode(t, CreateCodeRequest{})
	status := string(StatusDisabled)
	if _, err := env.svc.UpdateCode(ctx, env.adminID, disabled.ID, &UpdateCodeRequest{Status: &status}); err != nil {
		t.Fatalf("disable: %v", err)
	}

	past := env.now.Add(-time.Minute)
	expired := env.createCode(t, CreateCodeRequest{ExpiresAt: &past})

	exhausted := env.createCode(t, CreateCodeRequest{MaxUses: 1})
	if _, err := env.svc.Redeem(ctx, uuid.New(), "", exhausted.Code); err != nil {
		t.Fatalf("consume: %v", err)
	}

	cases := []struct {
		name  string
		input string
		want  *apperror.Error
	}{
		{"bad syntax", "JCQ-0000-0000", redeemcode.ErrInvalidFormat},
		{"wrong prefix", "ABC-AB23-XY89", redeemcode.ErrInvalidFormat},
		{"unknown", "JCQ-ZZZZ-ZZZZ", ErrCodeNotFound},
		{"disabled", disabled.Code, ErrCodeDisabled},
		{"expired", expired.Code, ErrCodeExpired},
		{"exhausted", exhausted.Code, ErrCodeExhausted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.svc.Redeem(ctx, uuid.New(), "", tc.input)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestRedeemTenantMismatch(t *testing.T) {
	env := newTestEnv(t)
	code := env.createCode(t, CreateCodeRequest{})

	_, err := env.svc.Redeem(context.Background(), uuid.New(), uuid.New().String(), code.Code)
	if !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected not found for foreign tenant, got %v", err)
	}
	if _, err := env.svc.Redeem(context.Background(), uuid.New(), env.game.TenantID.String(), code.Code); err != nil {
		t.Fatalf("expected success for owning tenant, got %v", err)
	}
}

func TestRedeemRateLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	actor := uuid.New()
	code := env.createCode(t, CreateCodeRequest{MaxUses: 5})

	for i := 0; i < 10; i++ {
		_, err := env.svc.Redeem(ctx, actor, "", "JCQ-ZZZZ-ZZZZ")
		if !errors.Is(err, ErrCodeNotFound) {
			t.Fatalf("attempt %d: expected not found, got %v", i+1, err)
		}
	}

	// The 11th attempt is rejected even with a valid code.
	_, err := env.svc.Redeem(ctx, actor, "", code.Code)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
	var retry interface{ RetryAfter() time.Duration }
	if !errors.As(err, &retry) || retry.RetryAfter() <= 0 {
		t.Fatalf("expected retry hint on rate limit error")
	}

	stored, _ := env.repo.GetByID(ctx, code.ID)
	if stored.UsedCount != 0 {
		t.Fatalf("rate limited attempt must not consume a use")
	}

	if _, err := env.svc.Redeem(ctx, uuid.New(), "", code.Code); err != nil {
		t.Fatalf("other actors are unaffected: %v", err)
	}
}

func TestCreateCodeValidatesScope(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	freeChapter := env.chapters[0].ID
	paidChapter := env.chapters[1].ID

	cases := []struct {
		name string
		req  CreateCodeRequest
		want error
	}{
		{"chapter without id", CreateCodeRequest{GameID: env.game.ID, Scope: "chapter", MaxUses: 1}, ErrInvalidScope},
		{"game with chapter id", CreateCodeRequest{GameID: env.game.ID, Scope: "game", ChapterID: &paidChapter, MaxUses: 1}, ErrInvalidScope},
		{"free chapter", CreateCodeRequest{GameID: env.game.ID, Scope: "chapter", ChapterID: &freeChapter, MaxUses: 1}, purchase.ErrFreeContent},
		{"unknown game", CreateCodeRequest{GameID: uuid.New(), Scope: "game", MaxUses: 1}, catalog.ErrGameNotFound},
		{"bad custom code", CreateCodeRequest{GameID: env.game.ID, Scope: "game", MaxUses: 1, Code: strPtr("hello")}, redeemcode.ErrInvalidFormat},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := tc.req
			if _, err := env.svc.CreateCode(ctx, env.adminID, &req); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	env.createCode(t, CreateCodeRequest{Code: strPtr("JCQ-AAAA-BBBB")})
	_, err := env.svc.CreateCode(ctx, env.adminID, &CreateCodeRequest{GameID: env.game.ID, Scope: "game", MaxUses: 1, Code: strPtr("jcq-aaaa-bbbb")})
	if !errors.Is(err, ErrCodeTaken) {
		t.Fatalf("expected duplicate custom code to be rejected, got %v", err)
	}
}

func TestChapterCodesNeedSellableChapter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	oneTimeChapter := uuid.New()
	oneTime := catalog.Game{ID: uuid.New(), TenantID: env.game.TenantID, PricingType: catalog.PricingOneTime, Currency: "EUR"}
	env.catalog.PutGame(oneTime,
		catalog.Chapter{ID: uuid.New(), Order: 1, UnlockType: catalog.UnlockPurchase},
		catalog.Chapter{ID: oneTimeChapter, Order: 2, UnlockType: catalog.UnlockPurchase},
	)

	firstChapter := uuid.New()
	perChapter := catalog.Game{ID: uuid.New(), TenantID: env.game.TenantID, PricingType: catalog.PricingPerChapter, Currency: "EUR"}
	env.catalog.PutGame(perChapter,
		catalog.Chapter{ID: firstChapter, Order: 7, UnlockType: catalog.UnlockPurchase},
		catalog.Chapter{ID: uuid.New(), Order: 8, UnlockType: catalog.UnlockPurchase},
	)

	cases := []struct {
		name      string
		gameID    uuid.UUID
		chapterID uuid.UUID
		want      error
	}{
		{"chapter of one-time game", oneTime.ID, oneTimeChapter, catalog.ErrChaptersNotSold},
		{"first chapter by order", perChapter.ID, firstChapter, purchase.ErrFreeContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			chapterID := tc.chapterID
			_, err := env.svc.CreateCode(ctx, env.adminID, &CreateCodeRequest{GameID: tc.gameID, Scope: "chapter", ChapterID: &chapterID, MaxUses: 1})
			if !errors.Is(err, tc.want) {
				t.Fatalf("create: expected %v, got %v", tc.want, err)
			}
			_, err = env.svc.CreateBatch(ctx, env.adminID, &BatchCreateRequest{GameID: tc.gameID, Scope: "chapter", ChapterID: &chapterID, MaxUses: 1, Count: 3})
			if !errors.Is(err, tc.want) {
				t.Fatalf("batch: expected %v, got %v", tc.want, err)
			}
		})
	}

	if _, err := env.svc.CreateCode(ctx, env.adminID, &CreateCodeRequest{GameID: oneTime.ID, Scope: "game", MaxUses: 1}); err != nil {
		t.Fatalf("game code for a one-time game is still allowed: %v", err)
	}
}

func TestCreateBatchRegeneratesCollisions(t *testing.T) {
	env := newTestEnv(t)
	env.repo.rejectBatch = 7

	codes, err := env.svc.CreateBatch(context.Background(), env.adminID, &BatchCreateRequest{
		Count:   25,
		GameID:  env.game.ID,
		Scope:   string(ScopeGame),
		MaxUses: 1,
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(codes) != 25 {
		t.Fatalf("expected 25 codes, got %d", len(codes))
	}
	seen := map[string]bool{}
	for _, c := range codes {
		if seen[c.Code] {
			t.Fatalf("duplicate code %s", c.Code)
		}
		seen[c.Code] = true
		if !env.svc.generator.Valid(c.Code) {
			t.Fatalf("invalid code %s", c.Code)
		}
	}
	if _, total, _ := env.repo.ListByGame(context.Background(), env.game.ID, 100, 0); total != 25 {
		t.Fatalf("expected 25 stored codes, got %d", total)
	}
}

func TestCreateBatchRejectsSize(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.CreateBatch(context.Background(), env.adminID, &BatchCreateRequest{
		Count: 101, GameID: env.game.ID, Scope: "game", MaxUses: 1,
	})
	if !errors.Is(err, redeemcode.ErrInvalidBatch) {
		t.Fatalf("expected invalid batch, got %v", err)
	}
}

func TestUpdateCodeRaisesMaxUsesOnUsedCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	code := env.createCode(t, CreateCodeRequest{MaxUses: 1})
	if _, err := env.svc.Redeem(ctx, uuid.New(), "", code.Code); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	more := 3
	updated, err := env.svc.UpdateCode(ctx, env.adminID, code.ID, &UpdateCodeRequest{MaxUses: &more, Label: strPtr("conference")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != StatusActive || updated.MaxUses != 3 || updated.RemainingUses != 2 {
		t.Fatalf("unexpected update result %+v", updated)
	}
	if updated.Label == nil || *updated.Label != "conference" {
		t.Fatalf("expected label to be set")
	}

	if _, err := env.svc.Redeem(ctx, uuid.New(), "", code.Code); err != nil {
		t.Fatalf("redeem after raise: %v", err)
	}
}

func TestDeleteCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	unused := env.createCode(t, CreateCodeRequest{})
	if err := env.svc.DeleteCode(ctx, env.adminID, unused.ID); err != nil {
		t.Fatalf("delete unused: %v", err)
	}
	if _, err := env.repo.GetByID(ctx, unused.ID); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected code to be gone")
	}

	used := env.createCode(t, CreateCodeRequest{MaxUses: 2})
	if _, err := env.svc.Redeem(ctx, uuid.New(), "", used.Code); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if err := env.svc.DeleteCode(ctx, env.adminID, used.ID); !errors.Is(err, ErrCodeInUse) {
		t.Fatalf("expected in use, got %v", err)
	}
	uses, err := env.svc.ListUses(ctx, used.ID)
	if err != nil || len(uses) != 1 {
		t.Fatalf("expected one use, got %d (%v)", len(uses), err)
	}
	if err := env.svc.DeleteCode(ctx, env.adminID, uuid.New()); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
