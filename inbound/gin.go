package inbound

import (
	"github.com/gin-gonic/gin"
	"github.com/goliatone/go-provisioning/webhooks"
)

// GinResultKey is the gin context key holding the webhooks.DispatchResult.
const GinResultKey = "provisioning.dispatch_result"

// GinMiddleware is Middleware for gin. Body failures go to the gin error
// chain through AbortWithError; every other outcome continues with c.Next.
func GinMiddleware(dispatcher EventDispatcher, opts ...MiddlewareOption) gin.HandlerFunc {
	cfg := resolveMiddlewareConfig(opts)
	return func(c *gin.Context) {
		req, err := ReadRequest(c.Request, cfg.maxBodyBytes)
		if err != nil {
			_ = c.AbortWithError(StatusCode(err), err)
			return
		}
		result, err := dispatcher.Dispatch(c.Request.Context(), req)
		if err != nil {
			_ = c.AbortWithError(StatusCode(err), err)
			return
		}
		c.Set(GinResultKey, result)
		c.Request = c.Request.WithContext(ContextWithResult(c.Request.Context(), result))
		c.Next()
	}
}

func GinResult(c *gin.Context) (webhooks.DispatchResult, bool) {
	value, ok := c.Get(GinResultKey)
	if !ok {
		return webhooks.DispatchResult{}, false
	}
	result, ok := value.(webhooks.DispatchResult)
	return result, ok
}
