package redeem

import (
	"time"

	"github.com/google/uuid"

	"github.com/jcq/jcq-api/internal/domain/purchase"
)

// Scope is what a code unlocks.
type Scope string

const (
	ScopeGame    Scope = "game"
	ScopeChapter Scope = "chapter"
)

// Status of a redeem code. Expired is also derived at read time from
// ExpiresAt, so a stored active code may read back as expired.
type Status string

const (
	StatusActive   Status = "active"
	StatusUsed     Status = "used"
	StatusExpired  Status = "expired"
	StatusDisabled Status = "disabled"
)

// RedeemCode is an admin-issued code unlocking a game or one chapter.
// UsedCount never exceeds MaxUses and Status is used exactly when they are
// equal.
type RedeemCode struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	TenantID  uuid.UUID  `db:"tenant_id" json:"tenant_id"`
	Code      string     `db:"code" json:"code"`
	GameID    uuid.UUID  `db:"game_id" json:"game_id"`
	ChapterID *uuid.UUID `db:"chapter_id" json:"chapter_id,omitempty"`
	Scope     Scope      `db:"scope" json:"scope"`
	MaxUses   int        `db:"max_uses" json:"max_uses"`
	UsedCount int        `db:"used_count" json:"used_count"`
	Status    Status     `db:"status" json:"status"`
	ExpiresAt *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	Label     *string    `db:"label" json:"label,omitempty"`
	CreatedBy uuid.UUID  `db:"created_by" json:"created_by"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// Expired reports whether the expiry has passed at now.
func (c *RedeemCode) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

// EffectiveStatus is the status as seen at now.
func (c *RedeemCode) EffectiveStatus(now time.Time) Status {
	if c.Status == StatusActive && c.Expired(now) {
		return StatusExpired
	}
	return c.Status
}

// PurchaseScope is the ledger scope a redemption grants.
func (c *RedeemCode) PurchaseScope() purchase.Scope {
	if c.Scope == ScopeChapter && c.ChapterID != nil {
		return purchase.ChapterScope(c.GameID, *c.ChapterID)
	}
	return purchase.GameScope(c.GameID)
}

// CodeUse records one actor redeeming one code. (CodeID, ActorID) is unique.
type CodeUse struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	CodeID     uuid.UUID  `db:"code_id" json:"code_id"`
	ActorID    uuid.UUID  `db:"actor_id" json:"actor_id"`
	PurchaseID *uuid.UUID `db:"purchase_id" json:"purchase_id,omitempty"`
	UsedAt     time.Time  `db:"used_at" json:"used_at"`
}

// Patch is a partial admin update. Nil fields are left unchanged.
type Patch struct {
	Status      *Status
	Label       *string
	ClearLabel  bool
	ExpiresAt   *time.Time
	ClearExpiry bool
	MaxUses     *int
}

// applyPatch merges p onto a copy of c and restores the used/exhausted
// invariant.
func applyPatch(c RedeemCode, p Patch, now time.Time) (*RedeemCode, error) {
	if p.MaxUses != nil {
		if *p.MaxUses < 1 || *p.MaxUses < c.UsedCount {
			return nil, ErrInvalidMaxUses
		}
		c.MaxUses = *p.MaxUses
	}
	if p.Label != nil {
		c.Label = p.Label
	}
	if p.ClearLabel {
		c.Label = nil
	}
	if p.ExpiresAt != nil {
		t := p.ExpiresAt.UTC()
		c.ExpiresAt = &t
	}
	if p.ClearExpiry {
		c.ExpiresAt = nil
	}

	status := c.Status
	if p.Status != nil {
		if *p.Status == StatusUsed {
			return nil, ErrInvalidStatus
		}
		status = *p.Status
	}
	switch {
	case c.UsedCount == c.MaxUses:
		status = StatusUsed
	case status == StatusUsed:
		// More uses were allowed on an exhausted code.
		status = StatusActive
	}
	c.Status = status
	c.UpdatedAt = now
	return &c, nil
}
