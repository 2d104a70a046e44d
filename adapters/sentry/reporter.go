// Package sentry forwards unexpected provisioning failures to Sentry.
package sentry

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sentrygo "github.com/getsentry/sentry-go"
	"github.com/goliatone/go-provisioning/core"
)

// TagKeys are promoted from failure fields to searchable Sentry tags. The
// remaining fields go into the "provisioning" context after redaction.
var TagKeys = []string{"operation", "route", "step", "tenant_type", "app_id", "webhook_id"}

type Reporter struct {
	hub *sentrygo.Hub
}

// NewReporter reports through hub, or through the hub bound to each context
// (falling back to the current hub) when hub is nil.
func NewReporter(hub *sentrygo.Hub) *Reporter {
	return &Reporter{hub: hub}
}

func (r *Reporter) ReportFailure(ctx context.Context, err error, fields map[string]any) {
	if r == nil || err == nil {
		return
	}
	hub := r.resolveHub(ctx)
	if hub == nil {
		return
	}
	redacted := core.RedactSensitiveMap(fields)
	hub.WithScope(func(scope *sentrygo.Scope) {
		scope.SetLevel(sentrygo.LevelError)
		for _, key := range TagKeys {
			value, ok := redacted[key]
			if !ok || value == nil {
				continue
			}
			if text := strings.TrimSpace(fmt.Sprint(value)); text != "" {
				scope.SetTag(key, text)
			}
		}
		if len(redacted) > 0 {
			scope.SetContext("provisioning", sentrygo.Context(redacted))
		}
		if operation, ok := redacted["operation"].(string); ok && operation != "" {
			scope.SetFingerprint([]string{"provisioning", operation, fingerprintStep(redacted)})
		}
		hub.CaptureException(err)
	})
}

func (r *Reporter) resolveHub(ctx context.Context) *sentrygo.Hub {
	if r.hub != nil {
		return r.hub
	}
	if ctx != nil {
		if hub := sentrygo.GetHubFromContext(ctx); hub != nil {
			return hub
		}
	}
	return sentrygo.CurrentHub()
}

func fingerprintStep(fields map[string]any) string {
	if step, ok := fields["step"].(string); ok && step != "" {
		return step
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

var _ core.FailureReporter = (*Reporter)(nil)
