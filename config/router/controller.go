package router

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func normalizePath(controller *RESTController, relativePath string) string {
	path := controller.mountPoint

	if relativePath != "" {
		path = path + "/" + relativePath
	}

	if path == "" || path[0] != '/' {
		path = "/" + path
	}

	path = strings.ReplaceAll(path, "//", "/")

	if len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}

	return path
}

func createHandler(handler HandlerFunction) MiddlewareFunc {
	return func(c *RequestContext) {
		result := handler(c)

		if result == nil {
			GetLogger(c).Error("Handler returned no result", "path", c.FullPath())
			respond(c, InternalServerErrorResult())
			return
		}

		respond(c, result)
	}
}

// NewRESTController creates a controller served on the public listener.
func NewRESTController(name, mountPoint string, prepare func(*RouterService, *RESTController)) *RESTController {
	return newController(name, mountPoint, publicSurface, prepare)
}

// NewOpsController creates a controller served on the internal ops listener.
// Ops routes skip the origin gate and the rate limiter.
func NewOpsController(name, mountPoint string, prepare func(*RouterService, *RESTController)) *RESTController {
	return newController(name, mountPoint, opsSurface, prepare)
}

func newController(name, mountPoint string, s surface, prepare func(*RouterService, *RESTController)) *RESTController {
	return &RESTController{
		name:       name,
		mountPoint: strings.ReplaceAll("/"+mountPoint, "//", "/"),
		surface:    s,
		prepare:    prepare,
	}
}

func (routerService *RouterService) engineFor(controller *RESTController) *gin.Engine {
	if controller.surface == opsSurface {
		return routerService.opsEngine
	}
	return routerService.engine
}

func (routerService *RouterService) addHandler(
	method string,
	controller *RESTController,
	path string,
	handler HandlerFunction,
	middlewares ...MiddlewareFunc,
) {
	controller.handlerCount++
	mountPoint := normalizePath(controller, path)

	routerService.engineFor(controller).Handle(method, mountPoint, append(middlewares, createHandler(handler))...)
	routerService.logger.Debug("Handler registered", "method", method, "path", mountPoint)
}

func (routerService *RouterService) AddPostHandler(
	controller *RESTController,
	path string,
	handler HandlerFunction,
	middlewares ...MiddlewareFunc,
) {
	routerService.addHandler(http.MethodPost, controller, path, handler, middlewares...)
}

func (routerService *RouterService) AddGetHandler(
	controller *RESTController,
	path string,
	handler HandlerFunction,
	middlewares ...MiddlewareFunc,
) {
	routerService.addHandler(http.MethodGet, controller, path, handler, middlewares...)
}
