package redeem

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jcq/jcq-api/internal/domain/admin"
	"github.com/jcq/jcq-api/internal/domain/catalog"
	"github.com/jcq/jcq-api/internal/domain/purchase"
	"github.com/jcq/jcq-api/internal/pkg/apperror"
	"github.com/jcq/jcq-api/internal/pkg/logger"
	"github.com/jcq/jcq-api/internal/pkg/ratelimit"
	"github.com/jcq/jcq-api/internal/pkg/redeemcode"
)

const (
	batchRounds   = 5
	updateRetries = 3
)

// EntitlementChecker answers whether an actor already holds content.
type EntitlementChecker interface {
	HasCompletedCovering(ctx context.Context, actorID uuid.UUID, scope purchase.Scope) (bool, error)
}

// Service handles code administration and redemption.
type Service struct {
	repo      Repository
	catalog   catalog.Repository
	purchases EntitlementChecker
	generator *redeemcode.Generator
	limiter   ratelimit.Limiter
	notifier  purchase.Notifier
	auditor   admin.Auditor
	now       func() time.Time
}

// Deps groups the collaborators of Service.
type Deps struct {
	Repo      Repository
	Catalog   catalog.Repository
	Purchases EntitlementChecker
	Generator *redeemcode.Generator
	Limiter   ratelimit.Limiter
	Notifier  purchase.Notifier
	Auditor   admin.Auditor
}

// NewService creates redeem service
func NewService(d Deps) *Service {
	s := &Service{
		repo:      d.Repo,
		catalog:   d.Catalog,
		purchases: d.Purchases,
		generator: d.Generator,
		limiter:   d.Limiter,
		notifier:  d.Notifier,
		auditor:   d.Auditor,
		now:       time.Now,
	}
	if s.notifier == nil {
		s.notifier = purchase.NopNotifier{}
	}
	if s.auditor == nil {
		s.auditor = admin.NopAuditor{}
	}
	return s
}

func rateLimitKey(actorID uuid.UUID) string {
	return "redeem:" + actorID.String()
}

// Redeem exchanges a typed code for a completed purchase. tenantID, when
// set, must own the code.
func (s *Service) Redeem(ctx context.Context, actorID uuid.UUID, tenantID, input string) (*RedeemResponse, error) {
	now := s.now().UTC()

	if err := ratelimit.Check(ctx, s.limiter, rateLimitKey(actorID), now); err != nil {
		var limited *ratelimit.LimitedError
		if errors.As(err, &limited) {
			logger.LogWarn(ctx, "Redeem rate limit hit", "actor_id", actorID, "retry_after", limited.Wait.String())
			return nil, apperror.Wrap(ErrRateLimited, limited)
		}
		return nil, fmt.Errorf("redeem rate limit: %w", err)
	}

	codeStr, err := s.generator.Parse(input)
	if err != nil {
		return nil, err
	}

	code, err := s.repo.GetByCode(ctx, codeStr)
	if err != nil {
		return nil, err
	}
	if tenantID != "" && code.TenantID.String() != tenantID {
		return nil, ErrCodeNotFound
	}

	switch code.Status {
	case StatusActive:
	case StatusDisabled:
		return nil, ErrCodeDisabled
	case StatusUsed:
		return nil, ErrCodeExhausted
	default:
		return nil, ErrCodeExpired
	}
	if code.Expired(now) {
		return nil, ErrCodeExpired
	}
	if code.UsedCount >= code.MaxUses {
		return nil, ErrCodeExhausted
	}

	used, err := s.repo.HasUse(ctx, code.ID, actorID)
	if err != nil {
		return nil, err
	}
	if used {
		return nil, ErrAlreadyRedeemed
	}

	scope := code.PurchaseScope()
	covered, err := s.purchases.HasCompletedCovering(ctx, actorID, scope)
	if err != nil {
		return nil, err
	}
	if covered {
		return nil, purchase.ErrAlreadyEntitled
	}

	game, err := s.catalog.GetGame(ctx, code.GameID)
	if err != nil {
		return nil, err
	}

	p := purchase.NewCompleted(actorID, scope, purchase.TypeRedeemCode, decimal.Zero, game.Currency, now)
	p.SourceCodeID = &code.ID
	if err := s.repo.Consume(ctx, code, actorID, p); err != nil {
		return nil, err
	}

	logger.LogInfo(ctx, "Code redeemed",
		"code_id", code.ID, "actor_id", actorID, "game_id", p.GameID, "chapter_id", p.ChapterID,
		"purchase_id", p.ID, "used_count", code.UsedCount, "status", code.Status)
	s.notifier.EntitlementGranted(ctx, p)

	return &RedeemResponse{
		Scope:      code.Scope,
		GameID:     code.GameID,
		ChapterID:  code.ChapterID,
		PurchaseID: p.ID,
	}, nil
}

// resolveTarget checks that the scope names real content a player would
// otherwise have to buy and returns the owning game.
func (s *Service) resolveTarget(ctx context.Context, gameID uuid.UUID, chapterID *uuid.UUID, scope Scope) (*catalog.Game, error) {
	if (scope == ScopeChapter) != (chapterID != nil) {
		return nil, ErrInvalidScope
	}
	game, err := s.catalog.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game.IsFree() {
		return nil, purchase.ErrFreeContent
	}
	if chapterID != nil {
		_, open, err := catalog.SellableChapter(ctx, s.catalog, game, *chapterID)
		if err != nil {
			return nil, err
		}
		if open {
			return nil, purchase.ErrFreeContent
		}
	}
	return game, nil
}

func (s *Service) newCode(game *catalog.Game, adminID uuid.UUID, code string, chapterID *uuid.UUID, scope Scope, maxUses int, expiresAt *time.Time, label *string, now time.Time) *RedeemCode {
	var expiry *time.Time
	if expiresAt != nil {
		t := expiresAt.UTC()
		expiry = &t
	}
	return &RedeemCode{
		ID:        uuid.New(),
		TenantID:  game.TenantID,
		Code:      code,
		GameID:    game.ID,
		ChapterID: chapterID,
		Scope:     scope,
		MaxUses:   maxUses,
		Status:    StatusActive,
		ExpiresAt: expiry,
		Label:     label,
		CreatedBy: adminID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CreateCode issues one code. A supplied code string is validated and
// canonicalized; otherwise one is generated.
func (s *Service) CreateCode(ctx context.Context, adminID uuid.UUID, req *CreateCodeRequest) (*CodeResponse, error) {
	scope := Scope(req.Scope)
	game, err := s.resolveTarget(ctx, req.GameID, req.ChapterID, scope)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	custom := req.Code != nil
	var codeStr string
	if custom {
		if codeStr, err = s.generator.Parse(*req.Code); err != nil {
			return nil, err
		}
	}

	for attempt := 0; ; attempt++ {
		if !custom {
			if codeStr, err = s.generator.Generate(); err != nil {
				return nil, err
			}
		}
		code := s.newCode(game, adminID, codeStr, req.ChapterID, scope, req.MaxUses, req.ExpiresAt, req.Label, now)
		err = s.repo.Create(ctx, code)
		if errors.Is(err, ErrCodeTaken) && !custom && attempt < batchRounds {
			continue
		}
		if err != nil {
			return nil, err
		}

		logger.LogInfo(ctx, "Redeem code created", "code_id", code.ID, "game_id", code.GameID, "scope", code.Scope, "admin_id", adminID)
		s.auditor.Record(ctx, adminID, admin.ActionCodeCreate, admin.EntityRedeemCode, code.ID, nil, code)
		resp := newCodeResponse(code, now)
		return &resp, nil
	}
}

// CreateBatch issues req.Count codes sharing one configuration. Codes that
// collide with existing ones are regenerated.
func (s *Service) CreateBatch(ctx context.Context, adminID uuid.UUID, req *BatchCreateRequest) ([]CodeResponse, error) {
	if req.Count < 1 || req.Count > redeemcode.MaxBatch {
		return nil, redeemcode.ErrInvalidBatch
	}
	scope := Scope(req.Scope)
	game, err := s.resolveTarget(ctx, req.GameID, req.ChapterID, scope)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	tried := make(map[string]bool, req.Count)
	created := make([]CodeResponse, 0, req.Count)

	for round := 0; len(created) < req.Count; round++ {
		if round >= batchRounds {
			return nil, errBatchExhausted
		}
		strs, err := s.generator.GenerateBatch(req.Count-len(created), func(c string) bool { return tried[c] })
		if err != nil {
			return nil, err
		}

		codes := make([]*RedeemCode, 0, len(strs))
		for _, c := range strs {
			tried[c] = true
			codes = append(codes, s.newCode(game, adminID, c, req.ChapterID, scope, req.MaxUses, req.ExpiresAt, req.Label, now))
		}

		inserted, err := s.repo.CreateBatch(ctx, codes)
		if err != nil {
			return nil, err
		}
		for _, c := range codes {
			if inserted[c.Code] {
				created = append(created, newCodeResponse(c, now))
			}
		}
	}

	logger.LogInfo(ctx, "Redeem code batch created", "game_id", game.ID, "count", len(created), "admin_id", adminID)
	s.auditor.Record(ctx, adminID, admin.ActionCodeBatchCreate, admin.EntityGame, game.ID, nil,
		map[string]interface{}{"count": len(created), "scope": scope, "chapter_id": req.ChapterID, "max_uses": req.MaxUses})
	return created, nil
}

// UpdateCode applies a partial update. A redemption landing between read
// and write is detected and the patch is reapplied.
func (s *Service) UpdateCode(ctx context.Context, adminID, id uuid.UUID, req *UpdateCodeRequest) (*CodeResponse, error) {
	patch := req.patch()

	for attempt := 0; ; attempt++ {
		current, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		now := s.now().UTC()
		updated, err := applyPatch(*current, patch, now)
		if err != nil {
			return nil, err
		}

		err = s.repo.Update(ctx, updated, current.UsedCount)
		if errors.Is(err, ErrStaleUpdate) && attempt < updateRetries {
			continue
		}
		if err != nil {
			return nil, err
		}

		logger.LogInfo(ctx, "Redeem code updated", "code_id", id, "status", updated.Status, "admin_id", adminID)
		s.auditor.Record(ctx, adminID, admin.ActionCodeUpdate, admin.EntityRedeemCode, id, current, updated)
		resp := newCodeResponse(updated, now)
		return &resp, nil
	}
}

// DeleteCode removes a code that was never redeemed. Purchases are never
// touched.
func (s *Service) DeleteCode(ctx context.Context, adminID, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	logger.LogInfo(ctx, "Redeem code deleted", "code_id", id, "admin_id", adminID)
	s.auditor.Record(ctx, adminID, admin.ActionCodeDelete, admin.EntityRedeemCode, id, nil, nil)
	return nil
}

// ListCodes returns a page of a game's codes.
func (s *Service) ListCodes(ctx context.Context, gameID uuid.UUID, limit, offset int) ([]CodeResponse, int, error) {
	if _, err := s.catalog.GetGame(ctx, gameID); err != nil {
		return nil, 0, err
	}
	codes, total, err := s.repo.ListByGame(ctx, gameID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	now := s.now().UTC()
	out := make([]CodeResponse, 0, len(codes))
	for i := range codes {
		out = append(out, newCodeResponse(&codes[i], now))
	}
	return out, total, nil
}

// ListUses returns who redeemed a code.
func (s *Service) ListUses(ctx context.Context, codeID uuid.UUID) ([]CodeUse, error) {
	if _, err := s.repo.GetByID(ctx, codeID); err != nil {
		return nil, err
	}
	return s.repo.ListUses(ctx, codeID)
}
