package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-provisioning/core"
	"github.com/qmuntal/stateless"
)

type Phase string

const (
	PhaseUnverified Phase = "unverified"
	PhaseVerified   Phase = "verified"
	PhaseUntrusted  Phase = "untrusted"
	PhaseRouted     Phase = "routed"
)

type Reason string

const (
	ReasonNone             Reason = ""
	ReasonAppIDMismatch    Reason = "app_id_mismatch"
	ReasonInvalidSignature Reason = "invalid_signature"
)

type Route string

const (
	RouteNone                 Route = ""
	RouteBulk                 Route = "bulk"
	RouteSingle               Route = "single"
	RouteInvalidInstall       Route = "invalid_install"
	RouteConflictingLocations Route = "conflicting_locations"
	RouteUninstall            Route = "uninstall"
	RouteInvalidUninstall     Route = "invalid_uninstall"
	RouteIgnored              Route = "ignored"
)

const (
	triggerTrust  = "trust"
	triggerReject = "reject"
	triggerRoute  = "route"

	MetricSignatureSkipped  = "provisioning.webhook.signature_skipped"
	MetricSignatureRejected = "provisioning.webhook.signature_rejected"
	MetricOriginMismatch    = "provisioning.webhook.app_id_mismatch"

	ErrorTextCodeMalformedPayload = "PROVISIONING_WEBHOOK_MALFORMED"
)

// Provisioning is the slice of the provisioning service the dispatcher
// drives. *core.Service satisfies it.
type Provisioning interface {
	ProvisionLocation(ctx context.Context, companyID string, locationID string) error
	InstallMany(ctx context.Context, companyID string, locationIDs []string) (core.BulkInstallReport, error)
	Uninstall(ctx context.Context, tenantID string) error
}

// DispatchResult is the typed outcome handed back to the host pipeline.
type DispatchResult struct {
	Phase            Phase
	Reason           Reason
	SignatureSkipped bool
	Route            Route
	Event            core.WebhookEvent
	Report           *core.BulkInstallReport
	Err              error
	Warnings         []string
}

// Trusted reports whether the event passed origin and signature checks.
func (r DispatchResult) Trusted() bool {
	return r.Phase == PhaseVerified || r.Phase == PhaseRouted
}

func (r DispatchResult) LogFields() map[string]any {
	fields := r.Event.LogFields()
	fields["phase"] = string(r.Phase)
	fields["signature_skipped"] = r.SignatureSkipped
	if r.Reason != ReasonNone {
		fields["reason"] = string(r.Reason)
	}
	if r.Route != RouteNone {
		fields["route"] = string(r.Route)
	}
	if r.Report != nil {
		fields["attempted"] = r.Report.Attempted
		fields["succeeded"] = r.Report.Succeeded
		fields["failed"] = r.Report.Failed
	}
	if len(r.Warnings) > 0 {
		fields["warnings"] = strings.Join(r.Warnings, "; ")
	}
	return fields
}

type Dispatcher struct {
	Config   core.WebhookConfig
	Service  Provisioning
	Verifier SignatureChecker
	Sink     core.LifecycleSink
	Reporter core.FailureReporter
	Observer core.Observer
	Now      func() time.Time
}

func NewDispatcher(cfg core.WebhookConfig, service Provisioning) *Dispatcher {
	return &Dispatcher{
		Config:   cfg,
		Service:  service,
		Verifier: SignatureVerifier{},
		Reporter: core.NopFailureReporter{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// FromService wires a dispatcher to the service config, observer, failure
// reporter and lifecycle sinks.
func FromService(svc *core.Service) *Dispatcher {
	dispatcher := NewDispatcher(svc.Config().Webhook, svc)
	dispatcher.Observer = svc.Observer()
	dispatcher.Verifier = NewSignatureVerifier(svc.Logger("webhooks"))
	dispatcher.Reporter = svc.FailureReporter()
	dispatcher.Sink = svc
	return dispatcher
}

// Dispatch decodes the request body and dispatches the event. The only
// error it returns is a payload decode failure, which happens before any
// processing.
func (d *Dispatcher) Dispatch(ctx context.Context, req core.InboundRequest) (DispatchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	event, err := DecodeEvent(req.Body)
	if err != nil {
		return DispatchResult{Phase: PhaseUnverified}, err
	}
	signature := headerValue(req.Headers, d.Config.Header())
	return d.DispatchEvent(ctx, event, req.Body, signature), nil
}

// DecodeEvent parses a lifecycle webhook payload.
func DecodeEvent(body []byte) (core.WebhookEvent, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return core.WebhookEvent{}, malformedPayload(nil, "webhooks: request body is empty")
	}
	var event core.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return core.WebhookEvent{}, malformedPayload(err, "webhooks: request body is not a valid webhook payload")
	}
	return event, nil
}

func malformedPayload(source error, message string) error {
	var err *goerrors.Error
	if source == nil {
		err = goerrors.New(message, goerrors.CategoryBadInput)
	} else {
		err = goerrors.Wrap(source, goerrors.CategoryBadInput, message)
	}
	return err.WithCode(http.StatusBadRequest).WithTextCode(ErrorTextCodeMalformedPayload)
}

// DispatchEvent runs the trust checks over rawBody and routes the event.
// It never panics and never returns an error; failures land on
// DispatchResult.Err.
func (d *Dispatcher) DispatchEvent(ctx context.Context, event core.WebhookEvent, rawBody []byte, signature string) (result DispatchResult) {
	if ctx == nil {
		ctx = context.Background()
	}
	startedAt := d.now()
	machine := newTrustMachine()
	result = DispatchResult{Phase: PhaseUnverified, Event: event}

	defer func() {
		if recovered := recover(); recovered != nil {
			d.contain(ctx, &result, core.PanicError(recovered))
		}
		if currentPhase(machine) == PhaseVerified {
			_ = machine.Fire(triggerRoute)
		}
		result.Phase = currentPhase(machine)
		d.Observer.Observe(ctx, startedAt, "webhook_dispatch", result.Err, result.LogFields())
	}()

	if !d.originMatches(event) {
		_ = machine.Fire(triggerReject)
		result.Reason = ReasonAppIDMismatch
		d.Observer.Count(ctx, MetricOriginMismatch, 1, nil)
		d.Observer.Debug(ctx, "webhook skipped: app id mismatch", map[string]any{
			"app_id":          event.AppID,
			"expected_app_id": d.Config.AppID(),
		})
		return result
	}

	publicKey := strings.TrimSpace(d.Config.PublicKey)
	signature = strings.TrimSpace(signature)
	if signature == "" || publicKey == "" {
		result.SignatureSkipped = true
		missing := "signature"
		if publicKey == "" {
			missing = "public_key"
		}
		d.Observer.Count(ctx, MetricSignatureSkipped, 1, map[string]string{"missing": missing})
		d.Observer.Warn(ctx, "webhook signature verification skipped", map[string]any{
			"missing":    missing,
			"webhook_id": event.WebhookID,
		})
	} else if !d.verifier().Verify(rawBody, signature, publicKey) {
		_ = machine.Fire(triggerReject)
		result.Reason = ReasonInvalidSignature
		d.Observer.Count(ctx, MetricSignatureRejected, 1, nil)
		d.Observer.Warn(ctx, "webhook skipped: invalid signature", event.LogFields())
		return result
	}

	_ = machine.Fire(triggerTrust)
	d.route(ctx, &result)
	return result
}

func (d *Dispatcher) originMatches(event core.WebhookEvent) bool {
	expected := d.Config.AppID()
	if expected == "" {
		return false
	}
	return strings.TrimSpace(event.AppID) == expected
}

func (d *Dispatcher) route(ctx context.Context, result *DispatchResult) {
	switch result.Event.Type.Normalize() {
	case core.EventTypeInstall:
		d.routeInstall(ctx, result)
	case core.EventTypeUninstall:
		d.routeUninstall(ctx, result)
	default:
		result.Route = RouteIgnored
		d.Observer.Debug(ctx, "webhook ignored: unhandled event type", result.Event.LogFields())
	}
}

func (d *Dispatcher) routeInstall(ctx context.Context, result *DispatchResult) {
	event := result.Event
	companyID := strings.TrimSpace(event.CompanyID)
	locationID := strings.TrimSpace(event.LocationID)
	bulkIDs := event.BulkLocationIDs()

	if len(bulkIDs) > 0 && locationID != "" {
		if d.Config.Precedence() == core.LocationPrecedenceReject {
			result.Route = RouteConflictingLocations
			d.warn(ctx, result, fmt.Sprintf("install carries both locationId %q and locationIds; event rejected", locationID))
			return
		}
		d.warn(ctx, result, fmt.Sprintf("install carries both locationId %q and locationIds; locationId ignored", locationID))
	}

	switch {
	case len(bulkIDs) > 0 && companyID != "":
		result.Route = RouteBulk
		report, err := d.Service.InstallMany(ctx, companyID, bulkIDs)
		if err != nil {
			d.contain(ctx, result, err)
			return
		}
		result.Report = &report
		if report.Failed > 0 {
			d.contain(ctx, result, report.Err())
		}
		failed := make(map[string]string, len(report.Failures))
		for _, failure := range report.Failures {
			failed[failure.LocationID] = failure.ErrorMessage
		}
		for _, id := range bulkIDs {
			message, isFailure := failed[id]
			d.publishInstall(ctx, event, id, message, isFailure)
		}
	case len(bulkIDs) == 0 && locationID != "" && companyID != "":
		result.Route = RouteSingle
		if err := d.Service.ProvisionLocation(ctx, companyID, locationID); err != nil {
			d.contain(ctx, result, err)
			d.publishInstall(ctx, event, locationID, err.Error(), true)
			return
		}
		d.publishInstall(ctx, event, locationID, "", false)
	default:
		result.Route = RouteInvalidInstall
		d.warn(ctx, result, "install is missing companyId or location identifiers; no action taken")
	}
}

func (d *Dispatcher) routeUninstall(ctx context.Context, result *DispatchResult) {
	event := result.Event
	tenantID := strings.TrimSpace(event.LocationID)
	tenantType := core.TenantTypeLocation
	if tenantID == "" {
		tenantID = strings.TrimSpace(event.CompanyID)
		tenantType = core.TenantTypeCompany
	}
	if tenantID == "" {
		result.Route = RouteInvalidUninstall
		d.warn(ctx, result, "uninstall is missing companyId and locationId; no action taken")
		return
	}

	result.Route = RouteUninstall
	if err := d.Service.Uninstall(ctx, tenantID); err != nil {
		d.contain(ctx, result, err)
		return
	}
	d.publish(ctx, core.LifecycleEvent{
		Action:     core.LifecycleActionUninstalled,
		TenantID:   tenantID,
		TenantType: tenantType,
		CompanyID:  strings.TrimSpace(event.CompanyID),
		LocationID: strings.TrimSpace(event.LocationID),
		AppID:      event.AppID,
		WebhookID:  event.WebhookID,
	})
}

func (d *Dispatcher) publishInstall(ctx context.Context, event core.WebhookEvent, locationID string, failure string, failed bool) {
	action := core.LifecycleActionInstalled
	if failed {
		action = core.LifecycleActionInstallFailed
	}
	d.publish(ctx, core.LifecycleEvent{
		Action:     action,
		TenantID:   locationID,
		TenantType: core.TenantTypeLocation,
		CompanyID:  strings.TrimSpace(event.CompanyID),
		LocationID: locationID,
		AppID:      event.AppID,
		WebhookID:  event.WebhookID,
		Error:      failure,
	})
}

func (d *Dispatcher) publish(ctx context.Context, event core.LifecycleEvent) {
	if d.Sink == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = d.now()
	}
	if err := d.Sink.Publish(ctx, event); err != nil {
		d.Observer.Warn(ctx, "lifecycle publish failed", map[string]any{
			"action":    string(event.Action),
			"tenant_id": event.TenantID,
			"error":     err.Error(),
		})
	}
}

// contain records err on the result and reports it without propagating.
func (d *Dispatcher) contain(ctx context.Context, result *DispatchResult, err error) {
	if err == nil {
		return
	}
	result.Err = err
	fields := result.LogFields()
	fields["error"] = err.Error()
	d.Observer.Error(ctx, "webhook processing failed", fields)
	if d.Reporter != nil {
		d.Reporter.ReportFailure(ctx, err, fields)
	}
}

func (d *Dispatcher) warn(ctx context.Context, result *DispatchResult, message string) {
	result.Warnings = append(result.Warnings, message)
	d.Observer.Warn(ctx, message, result.Event.LogFields())
}

func (d *Dispatcher) verifier() SignatureChecker {
	if d.Verifier != nil {
		return d.Verifier
	}
	return SignatureVerifier{Logger: d.Observer.Logger}
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func newTrustMachine() *stateless.StateMachine {
	machine := stateless.NewStateMachine(PhaseUnverified)
	machine.Configure(PhaseUnverified).
		Permit(triggerTrust, PhaseVerified).
		Permit(triggerReject, PhaseUntrusted)
	machine.Configure(PhaseVerified).
		Permit(triggerRoute, PhaseRouted)
	return machine
}

func currentPhase(machine *stateless.StateMachine) Phase {
	if phase, ok := machine.MustState().(Phase); ok {
		return phase
	}
	return PhaseUnverified
}
