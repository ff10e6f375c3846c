package redeem

import (
	"fmt"

	"github.com/jcq/jcq-api/internal/pkg/apperror"
)

// Redemption failures, in the order they are checked.
var (
	ErrRateLimited     = apperror.New(apperror.KindRateLimited, "REDEEM_RATE_LIMITED", "too many redeem attempts, try again later")
	ErrCodeNotFound    = apperror.New(apperror.KindNotFound, "CODE_NOT_FOUND", "code not found")
	ErrCodeDisabled    = apperror.New(apperror.KindConflict, "CODE_DISABLED", "code is disabled")
	ErrCodeExpired     = apperror.New(apperror.KindConflict, "CODE_EXPIRED", "code has expired")
	ErrCodeExhausted   = apperror.New(apperror.KindConflict, "CODE_EXHAUSTED", "code has no uses left")
	ErrAlreadyRedeemed = apperror.New(apperror.KindConflict, "CODE_ALREADY_REDEEMED", "code already redeemed by this account")
)

// Admin failures.
var (
	ErrInvalidScope   = apperror.New(apperror.KindValidation, "INVALID_CODE_SCOPE", "chapter scope requires chapter_id; game scope forbids it")
	ErrInvalidMaxUses = apperror.New(apperror.KindValidation, "INVALID_MAX_USES", "max_uses must be at least 1 and not below used_count")
	ErrInvalidStatus  = apperror.New(apperror.KindValidation, "INVALID_CODE_STATUS", "status used is set by redemption only")
	ErrCodeTaken      = apperror.New(apperror.KindConflict, "CODE_TAKEN", "code already exists")
	ErrCodeInUse      = apperror.New(apperror.KindConflict, "CODE_IN_USE", "code has been redeemed and cannot be deleted")
	ErrStaleUpdate    = apperror.New(apperror.KindConflict, "CODE_CHANGED", "code changed concurrently, retry")
	errBatchExhausted = fmt.Errorf("could not allocate unique codes for batch")
)
