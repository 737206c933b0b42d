package waitlist

import (
	"encoding/json"
	"errors"

	"github.com/akeren/waitlist-intake/config/router"
	"github.com/akeren/waitlist-intake/internal/log"
)

const mountPoint = "/waitlist"

// NewWaitlistController serves POST /waitlist. The router's default limiter
// applies, so counters are shared with the configured counter store.
func NewWaitlistController(repository WaitlistRepository, logger *log.Logger, opts ...Option) *router.RESTController {
	return router.NewRESTController(
		"WaitlistController",
		mountPoint,
		func(rs *router.RouterService, c *router.RESTController) {
			serviceOpts := append([]Option{
				WithOutcomeRecorder(NewSubmissionMetrics(rs.MetricsRegisterer())),
			}, opts...)

			service := NewWaitlistService(logger, repository, serviceOpts...)

			rs.AddPostHandler(c, "", submitHandler(service))
		},
	)
}

func submitHandler(service WaitlistService) router.HandlerFunction {
	return func(ctx *router.RequestContext) *router.ServiceResult {
		logger := router.GetLogger(ctx)

		var req *SubmitRequest

		body, err := decodeBody(ctx)
		if err != nil {
			logger.Info("Failed to decode request body", "error", err)
		} else {
			req = NewSubmitRequest(body)
		}

		meta := SubmissionMeta{
			ClientIP:  ctx.ClientIP(),
			UserAgent: ctx.Request.UserAgent(),
		}

		if _, err := service.Submit(ctx.Request.Context(), req, meta); err != nil {
			return router.ErrorResultFrom(err)
		}

		return router.OKResult(nil)
	}
}

var errNotAnObject = errors.New("request body is not a JSON object")

// decodeBody reads the whole body as exactly one JSON object. Trailing
// content after the object is an error.
func decodeBody(ctx *router.RequestContext) (map[string]any, error) {
	raw, err := ctx.GetRawData()
	if err != nil {
		return nil, err
	}

	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	// null decodes into a nil map.
	if body == nil {
		return nil, errNotAnObject
	}
	return body, nil
}
