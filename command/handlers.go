package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-provisioning/core"
	"github.com/goliatone/go-provisioning/webhooks"
)

type ProvisioningService interface {
	ProvisionLocation(ctx context.Context, companyID string, locationID string) error
	InstallMany(ctx context.Context, companyID string, locationIDs []string) (core.BulkInstallReport, error)
	Uninstall(ctx context.Context, tenantID string) error
}

type WebhookDispatcher interface {
	Dispatch(ctx context.Context, req core.InboundRequest) (webhooks.DispatchResult, error)
}

type ProvisionLocationCommand struct {
	service ProvisioningService
}

func NewProvisionLocationCommand(service ProvisioningService) *ProvisionLocationCommand {
	return &ProvisionLocationCommand{service: service}
}

func (c *ProvisionLocationCommand) Execute(ctx context.Context, msg ProvisionLocationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: provisioning service is required")
	}
	return c.service.ProvisionLocation(ctx, msg.CompanyID, msg.LocationID)
}

type InstallLocationsCommand struct {
	service ProvisioningService
}

func NewInstallLocationsCommand(service ProvisioningService) *InstallLocationsCommand {
	return &InstallLocationsCommand{service: service}
}

// Execute stores the bulk report on the context result collector even when
// some locations failed; the returned error only reflects the aggregate.
func (c *InstallLocationsCommand) Execute(ctx context.Context, msg InstallLocationsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: provisioning service is required")
	}
	report, err := c.service.InstallMany(ctx, msg.CompanyID, msg.LocationIDs)
	storeResult(ctx, report)
	if err != nil {
		return err
	}
	return report.Err()
}

type UninstallCommand struct {
	service ProvisioningService
}

func NewUninstallCommand(service ProvisioningService) *UninstallCommand {
	return &UninstallCommand{service: service}
}

func (c *UninstallCommand) Execute(ctx context.Context, msg UninstallMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: provisioning service is required")
	}
	return c.service.Uninstall(ctx, msg.TenantID)
}

type DispatchWebhookCommand struct {
	dispatcher WebhookDispatcher
}

func NewDispatchWebhookCommand(dispatcher WebhookDispatcher) *DispatchWebhookCommand {
	return &DispatchWebhookCommand{dispatcher: dispatcher}
}

// Execute only fails when the body cannot be decoded. Processing failures are
// reported on the stored DispatchResult.
func (c *DispatchWebhookCommand) Execute(ctx context.Context, msg DispatchWebhookMessage) error {
	if c == nil || c.dispatcher == nil {
		return commandDependencyError("command: webhook dispatcher is required")
	}
	out, err := c.dispatcher.Dispatch(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
