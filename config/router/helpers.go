package router

import (
	"net/http"

	"github.com/akeren/waitlist-intake/internal/log"
	apperrors "github.com/akeren/waitlist-intake/pkg/errors"
)

func GetLogger(ctx *RequestContext) *log.Logger {
	return log.GetLoggerInstanceFromContext(ctx.Request.Context(), nil)
}

func OKResult(data any) *ServiceResult {
	return &ServiceResult{
		StatusCode: http.StatusOK,
		Data:       data,
	}
}

func ErrorResult(statusCode int, message string) *ServiceResult {
	return &ServiceResult{
		StatusCode: statusCode,
		Error:      message,
	}
}

// ErrorResultFrom maps err to its status code and public message.
func ErrorResultFrom(err error) *ServiceResult {
	return ErrorResult(apperrors.HTTPStatusCode(err), apperrors.GetHumanReadableMessage(err))
}

func BadRequestResult(message string) *ServiceResult {
	return ErrorResult(http.StatusBadRequest, message)
}

func ForbiddenResult() *ServiceResult {
	return ErrorResult(http.StatusForbidden, apperrors.MessageForbidden)
}

func NotFoundResult() *ServiceResult {
	return ErrorResult(http.StatusNotFound, apperrors.MessageNotFound)
}

func MethodNotAllowedResult() *ServiceResult {
	return ErrorResult(http.StatusMethodNotAllowed, apperrors.MessageMethodNotAllowed)
}

func InternalServerErrorResult() *ServiceResult {
	return ErrorResult(http.StatusInternalServerError, apperrors.MessageInternalError)
}

func respond(c *RequestContext, result *ServiceResult) {
	c.Header("Content-Type", jsonContentType)
	c.JSON(result.StatusCode, result.ToJSON())
}

func abortWith(c *RequestContext, result *ServiceResult) {
	c.Header("Content-Type", jsonContentType)
	c.AbortWithStatusJSON(result.StatusCode, result.ToJSON())
}
