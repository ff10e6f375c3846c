package admin

import "github.com/jcq/jcq-api/internal/pkg/apperror"

var (
	ErrAdminNotFound      = apperror.New(apperror.KindNotFound, "ADMIN_NOT_FOUND", "Admin not found")
	ErrInvalidCredentials = apperror.New(apperror.KindAuthenticity, "INVALID_CREDENTIALS", "Invalid email or password")
	ErrAdminInactive      = apperror.New(apperror.KindAuthenticity, "ADMIN_INACTIVE", "Admin account is inactive")
)
