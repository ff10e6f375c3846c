// Package errorhandler turns classified service errors into API responses.
package errorhandler

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/jcq/jcq-api/internal/pkg/apperror"
	"github.com/jcq/jcq-api/internal/pkg/logger"
	"github.com/jcq/jcq-api/internal/pkg/response"
)

// HandleError writes the response for err. Integrity, configuration and
// unclassified errors are logged at error level and their details hidden
// from the client.
func HandleError(ctx context.Context, w http.ResponseWriter, err error) {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		logger.FromContext(ctx).Error().Err(err).Msg("Unhandled request error")
		response.InternalError(w)
		return
	}

	status := appErr.Kind.HTTPStatus()
	switch appErr.Kind {
	case apperror.KindIntegrity, apperror.KindInternal:
		logError(ctx, appErr, status)
		response.InternalError(w)
		return
	case apperror.KindConfiguration:
		logError(ctx, appErr, status)
	case apperror.KindRateLimited:
		var limited interface{ RetryAfter() time.Duration }
		if errors.As(err, &limited) {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(limited.RetryAfter().Seconds()))))
		}
	}

	response.Error(w, status, appErr.Code, appErr.Message)
}

// HandleValidation writes a 422 with per-field details.
func HandleValidation(ctx context.Context, w http.ResponseWriter, details map[string]string) {
	logger.FromContext(ctx).Debug().Interface("fields", details).Msg("Request validation failed")
	response.ValidationError(w, details)
}

func logError(ctx context.Context, appErr *apperror.Error, status int) {
	logger.FromContext(ctx).Error().
		Str("error_kind", string(appErr.Kind)).
		Str("error_code", appErr.Code).
		Int("status_code", status).
		Err(appErr).
		Msg("Request error")
}
