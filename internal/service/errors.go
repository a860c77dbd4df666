package service

import (
	"context"
	"errors"
	"strings"

	"export-import-service/internal/apperrors"
	"export-import-service/internal/models"

	"go.uber.org/zap"
)

// translate classifies a store error at the operation boundary. resource
// names the entity in NotFound messages.
func translate(err error, resource string) error {
	if err == nil {
		return nil
	}
	if apperrors.As(err) != nil {
		return err
	}

	switch {
	case errors.Is(err, models.ErrInvalidID):
		return apperrors.Wrap(apperrors.KindInvalidInput, err, "malformed "+resource+" id")
	case errors.Is(err, models.ErrNotFound):
		return apperrors.Wrap(apperrors.KindNotFound, err, resource+" not found")
	case errors.Is(err, models.ErrInsufficientStock):
		return apperrors.Wrap(apperrors.KindInsufficientStock, err, "import quantity exceeds available quantity")
	case errors.Is(err, models.ErrStorageUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return apperrors.Wrap(apperrors.KindStorageUnavailable, err, "storage unavailable")
	default:
		return apperrors.Wrap(apperrors.KindInternal, err, "unexpected storage failure")
	}
}

// rejectReason is the metric label of a failed import.
func rejectReason(err error) string {
	return strings.ToLower(string(apperrors.KindOf(err)))
}

func invalid(message string) error {
	return apperrors.New(apperrors.KindInvalidInput, message)
}

// validateAttributes rejects keys a document store cannot hold as field names.
func validateAttributes(attrs models.Attributes) error {
	for k := range attrs {
		if k == "" || strings.HasPrefix(k, "$") || strings.Contains(k, ".") {
			return apperrors.Newf(apperrors.KindInvalidInput, "invalid attribute key %q", k)
		}
	}
	return nil
}

// logFailure logs caller mistakes at info and everything else at error.
func logFailure(logger *zap.Logger, msg string, err error, fields ...zap.Field) {
	kind := apperrors.KindOf(err)
	fields = append(fields, zap.String("kind", string(kind)), zap.Error(err))
	switch kind {
	case apperrors.KindInvalidInput, apperrors.KindNotFound, apperrors.KindInsufficientStock, apperrors.KindConflict:
		logger.Info(msg, fields...)
	default:
		logger.Error(msg, fields...)
	}
}
