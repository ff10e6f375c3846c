package payment

import "github.com/jcq/jcq-api/internal/pkg/apperror"

var (
	ErrTransactionNotFound = apperror.New(apperror.KindNotFound, "TRANSACTION_NOT_FOUND", "transaction not found")
	ErrInvalidSignature    = apperror.New(apperror.KindAuthenticity, "INVALID_SIGNATURE", "webhook signature is missing or invalid")
	ErrNotPurchasable      = apperror.New(apperror.KindValidation, "NOT_PURCHASABLE", "content cannot be bought online")
	ErrNoProduct           = apperror.New(apperror.KindConfiguration, "PRODUCT_NOT_CONFIGURED", "content has no gateway product")
)
