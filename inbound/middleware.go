package inbound

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/goliatone/go-provisioning/core"
	"github.com/goliatone/go-provisioning/webhooks"
)

const DefaultMaxBodyBytes int64 = 1 << 20

// EventDispatcher is satisfied by *webhooks.Dispatcher.
type EventDispatcher interface {
	Dispatch(ctx context.Context, req core.InboundRequest) (webhooks.DispatchResult, error)
}

type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

type middlewareConfig struct {
	errorHandler ErrorHandler
	maxBodyBytes int64
}

type MiddlewareOption func(*middlewareConfig)

func WithErrorHandler(handler ErrorHandler) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if handler != nil {
			cfg.errorHandler = handler
		}
	}
}

func WithMaxBodyBytes(limit int64) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if limit > 0 {
			cfg.maxBodyBytes = limit
		}
	}
}

func resolveMiddlewareConfig(opts []MiddlewareOption) middlewareConfig {
	cfg := middlewareConfig{
		errorHandler: DefaultErrorHandler,
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

type resultContextKey struct{}

func ContextWithResult(ctx context.Context, result webhooks.DispatchResult) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, resultContextKey{}, result)
}

// ResultFromContext returns the dispatch result stored by the middleware.
func ResultFromContext(ctx context.Context) (webhooks.DispatchResult, bool) {
	if ctx == nil {
		return webhooks.DispatchResult{}, false
	}
	result, ok := ctx.Value(resultContextKey{}).(webhooks.DispatchResult)
	return result, ok
}

// Middleware dispatches each request and always calls next, except when the
// body cannot be read or decoded.
func Middleware(dispatcher EventDispatcher, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := resolveMiddlewareConfig(opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req, err := ReadRequest(r, cfg.maxBodyBytes)
			if err != nil {
				cfg.errorHandler(w, r, err)
				return
			}
			result, err := dispatcher.Dispatch(r.Context(), req)
			if err != nil {
				cfg.errorHandler(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithResult(r.Context(), result)))
		})
	}
}

// ReadRequest captures headers and the raw body of r, restoring the body so
// downstream handlers can read it again.
func ReadRequest(r *http.Request, limit int64) (core.InboundRequest, error) {
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	var body []byte
	if r.Body != nil {
		read, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
		_ = r.Body.Close()
		if err != nil {
			return core.InboundRequest{}, bodyUnreadable(err)
		}
		if int64(len(read)) > limit {
			return core.InboundRequest{}, bodyTooLarge(limit)
		}
		body = read
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	headers := make(map[string]string, len(r.Header))
	for key, values := range r.Header {
		if len(values) > 0 {
			headers[strings.ToLower(key)] = values[0]
		}
	}
	return core.InboundRequest{
		Headers: headers,
		Body:    body,
		Metadata: map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"remote_addr": r.RemoteAddr,
		},
	}, nil
}
