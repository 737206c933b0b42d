package router

import (
	"net/http"
	"sort"
	"time"

	"github.com/akeren/waitlist-intake/pkg/utils"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	jsonContentType = "application/json"
	allowedMethods  = "POST, OPTIONS"
	allowedHeaders  = "Content-Type"
)

// OriginAllowList is the immutable set of origins allowed to call the public
// listener. Membership is exact string equality; "*" only matches a literal
// "*" Origin header.
type OriginAllowList struct {
	origins map[string]struct{}
}

func NewOriginAllowList(origins []string) OriginAllowList {
	set := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o != "" {
			set[o] = struct{}{}
		}
	}
	return OriginAllowList{origins: set}
}

// ParseOriginAllowList reads a comma separated list, trimming entries and
// dropping empty ones.
func ParseOriginAllowList(raw string) OriginAllowList {
	return NewOriginAllowList(utils.SplitCommaList(raw))
}

func (l OriginAllowList) Allows(origin string) bool {
	if origin == "" {
		return false
	}
	_, ok := l.origins[origin]
	return ok
}

func (l OriginAllowList) Len() int {
	return len(l.origins)
}

func (l OriginAllowList) Origins() []string {
	out := make([]string, 0, len(l.origins))
	for o := range l.origins {
		out = append(out, o)
	}
	sort.Strings(out)
	return out
}

// originGateMiddleware decides every public response's CORS headers. A
// rejected origin ends the pipeline with 403 whatever the method or path;
// an accepted preflight ends it with 200.
func (routerService *RouterService) originGateMiddleware() gin.HandlerFunc {
	sampler := &rate.Sometimes{First: 10, Interval: time.Minute}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		h := c.Writer.Header()
		h.Set("Content-Type", jsonContentType)
		h.Set("Access-Control-Allow-Methods", allowedMethods)
		h.Set("Access-Control-Allow-Headers", allowedHeaders)
		h.Add("Vary", "Origin")

		if !routerService.allowedOrigins.Allows(origin) {
			h.Set("Access-Control-Allow-Origin", routerService.fallbackOrigin)
			routerService.metrics.originRejected()
			sampler.Do(func() {
				GetLogger(c).Warn("Origin rejected", "origin", origin, "method", c.Request.Method, "path", c.Request.URL.Path)
			})
			abortWith(c, ForbiddenResult())
			return
		}

		h.Set("Access-Control-Allow-Origin", origin)

		if c.Request.Method == http.MethodOptions {
			abortWith(c, OKResult(nil))
			return
		}

		c.Next()
	}
}
