package purchase

import "github.com/jcq/jcq-api/internal/pkg/apperror"

var (
	ErrPurchaseNotFound = apperror.New(apperror.KindNotFound, "PURCHASE_NOT_FOUND", "purchase not found")
	ErrAlreadyEntitled  = apperror.New(apperror.KindConflict, "ALREADY_ENTITLED", "actor already has access to this content")
	ErrNotRefundable    = apperror.New(apperror.KindConflict, "PURCHASE_NOT_REFUNDABLE", "only completed purchases can be refunded")
	ErrFreeContent      = apperror.New(apperror.KindValidation, "FREE_CONTENT", "content is free and cannot be granted")
	ErrInvalidAmount    = apperror.New(apperror.KindValidation, "INVALID_AMOUNT", "amount must not be negative")
)
