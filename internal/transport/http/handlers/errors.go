package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/account-auth-service/internal/infra/logger"
	"github.com/arklim/account-auth-service/internal/transport/http/middleware"
	"github.com/arklim/account-auth-service/internal/usecase"
)

var kindStatus = map[usecase.Kind]int{
	usecase.KindValidation:           http.StatusBadRequest,
	usecase.KindDuplicateEmail:       http.StatusBadRequest,
	usecase.KindInvalidOrExpiredCode: http.StatusBadRequest,
	usecase.KindSamePassword:         http.StatusBadRequest,
	usecase.KindPasswordReused:       http.StatusBadRequest,
	usecase.KindAlreadyVerified:      http.StatusBadRequest,
	usecase.KindNotFound:             http.StatusNotFound,
	usecase.KindInvalidCredentials:   http.StatusUnauthorized,
	usecase.KindEmailNotVerified:     http.StatusUnauthorized,
	usecase.KindWrongPassword:        http.StatusUnauthorized,
	usecase.KindUnauthorized:         http.StatusUnauthorized,
	usecase.KindInternal:             http.StatusInternalServerError,
}

// StatusForKind maps a workflow error kind to its HTTP status.
func StatusForKind(kind usecase.Kind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// RespondWithError writes err as an ErrorResponse. Errors that are not
// workflow errors are reported as internal and their cause is only logged.
func RespondWithError(c *gin.Context, log *zap.Logger, err error) {
	var uerr *usecase.Error
	if !errors.As(err, &uerr) {
		uerr = &usecase.Error{Kind: usecase.KindInternal, Message: usecase.ErrInternal.Message, Err: err}
	}

	status := StatusForKind(uerr.Kind)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		if log != nil {
			logger.WithContext(c.Request.Context(), log).Error("request failed",
				zap.String("path", c.FullPath()),
				zap.Error(err),
			)
		}
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:   uerr.Message,
		Kind:    string(uerr.Kind),
		Field:   uerr.Field,
		TraceID: middleware.GetTraceID(c),
	})
}
