package router

import (
	"github.com/gin-gonic/gin"
)

type RequestContext = gin.Context

type MiddlewareFunc = gin.HandlerFunc

// ServiceResult is what handlers return. It renders as {"ok":true} or
// {"ok":false,"error":"..."}; Data is only emitted when set.
type ServiceResult struct {
	StatusCode int    `json:"-"`
	Error      string `json:"error,omitempty"`
	Data       any    `json:"data,omitempty"`
}

type HandlerFunction func(*RequestContext) *ServiceResult

type surface int

const (
	publicSurface surface = iota
	opsSurface
)

type RESTController struct {
	name         string
	mountPoint   string
	surface      surface
	handlerCount int
	prepare      func(*RouterService, *RESTController)
}

func (result *ServiceResult) ToJSON() gin.H {
	body := gin.H{"ok": result.IsSuccess() && result.Error == ""}

	if result.Error != "" {
		body["error"] = result.Error
	}

	if result.Data != nil {
		body["data"] = result.Data
	}

	return body
}

func (result *ServiceResult) IsSuccess() bool {
	return result.StatusCode >= 200 && result.StatusCode < 300
}
