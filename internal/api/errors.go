package api

import (
	"errors"
	"io"

	"export-import-service/internal/apperrors"

	"github.com/gin-gonic/gin"
)

// ErrorBody is the JSON shape of every failed response
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Kind    apperrors.Kind `json:"kind"`
	Message string         `json:"message"`
}

func respondError(c *gin.Context, err error) {
	appErr := apperrors.As(err)
	if appErr == nil {
		appErr = apperrors.Wrap(apperrors.KindInternal, err, "unclassified failure")
	}

	meta := apperrors.MetadataFor(appErr.Kind())
	if meta.Retryable {
		c.Header("Retry-After", "1")
	}
	c.AbortWithStatusJSON(meta.HTTPStatus, ErrorBody{
		Error: ErrorDetail{
			Kind:    appErr.Kind(),
			Message: appErr.PublicMessage(),
		},
	})
}

// bind decodes the JSON body into dst and answers 400 on failure.
func bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		msg := "invalid request body: " + err.Error()
		if errors.Is(err, io.EOF) {
			msg = "request body is required"
		}
		respondError(c, apperrors.Wrap(apperrors.KindInvalidInput, err, msg))
		return false
	}
	return true
}
