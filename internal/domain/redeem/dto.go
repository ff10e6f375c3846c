package redeem

import (
	"time"

	"github.com/google/uuid"
)

// RedeemRequest for POST /redeem. Code is checked after the rate limit so
// malformed attempts are counted too.
type RedeemRequest struct {
	Code string `json:"code"`
}

// RedeemResponse describes what a successful redemption unlocked.
type RedeemResponse struct {
	Scope      Scope      `json:"scope"`
	GameID     uuid.UUID  `json:"game_id"`
	ChapterID  *uuid.UUID `json:"chapter_id,omitempty"`
	PurchaseID uuid.UUID  `json:"purchase_id"`
}

// CreateCodeRequest for POST /admin/codes. Code is generated when omitted.
type CreateCodeRequest struct {
	Code      *string    `json:"code,omitempty" validate:"omitempty,max=64"`
	GameID    uuid.UUID  `json:"game_id" validate:"required"`
	ChapterID *uuid.UUID `json:"chapter_id,omitempty"`
	Scope     string     `json:"scope" validate:"required,code_scope"`
	MaxUses   int        `json:"max_uses" validate:"required,min=1,max=1000000"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Label     *string    `json:"label,omitempty" validate:"omitempty,max=200"`
}

// BatchCreateRequest for POST /admin/codes/batch
type BatchCreateRequest struct {
	Count     int        `json:"count" validate:"required,min=1,max=100"`
	GameID    uuid.UUID  `json:"game_id" validate:"required"`
	ChapterID *uuid.UUID `json:"chapter_id,omitempty"`
	Scope     string     `json:"scope" validate:"required,code_scope"`
	MaxUses   int        `json:"max_uses" validate:"required,min=1,max=1000000"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Label     *string    `json:"label,omitempty" validate:"omitempty,max=200"`
}

// UpdateCodeRequest for PATCH /admin/codes/{id}. An empty label clears it.
type UpdateCodeRequest struct {
	Status         *string    `json:"status,omitempty" validate:"omitempty,code_status"`
	Label          *string    `json:"label,omitempty" validate:"omitempty,max=200"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	ClearExpiresAt bool       `json:"clear_expires_at,omitempty"`
	MaxUses        *int       `json:"max_uses,omitempty" validate:"omitempty,min=1,max=1000000"`
}

func (r *UpdateCodeRequest) patch() Patch {
	p := Patch{
		ExpiresAt:   r.ExpiresAt,
		ClearExpiry: r.ClearExpiresAt,
		MaxUses:     r.MaxUses,
	}
	if r.Status != nil {
		s := Status(*r.Status)
		p.Status = &s
	}
	if r.Label != nil {
		if *r.Label == "" {
			p.ClearLabel = true
		} else {
			p.Label = r.Label
		}
	}
	return p
}

// CodeResponse is a code as shown to admins, with expiry applied.
type CodeResponse struct {
	RedeemCode
	EffectiveStatus Status `json:"effective_status"`
	RemainingUses   int    `json:"remaining_uses"`
}

func newCodeResponse(c *RedeemCode, now time.Time) CodeResponse {
	return CodeResponse{
		RedeemCode:      *c,
		EffectiveStatus: c.EffectiveStatus(now),
		RemainingUses:   c.MaxUses - c.UsedCount,
	}
}
