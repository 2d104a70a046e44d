package command

import (
	"strings"

	"github.com/goliatone/go-provisioning/core"
)

const (
	TypeProvisionLocation = "provisioning.command.location.provision"
	TypeInstallLocations  = "provisioning.command.locations.install"
	TypeUninstall         = "provisioning.command.tenant.uninstall"
	TypeDispatchWebhook   = "provisioning.command.webhook.dispatch"
)

type ProvisionLocationMessage struct {
	CompanyID  string
	LocationID string
}

func (ProvisionLocationMessage) Type() string { return TypeProvisionLocation }

func (m ProvisionLocationMessage) Validate() error {
	if strings.TrimSpace(m.CompanyID) == "" {
		return commandValidationError("company_id", "company id is required")
	}
	if strings.TrimSpace(m.LocationID) == "" {
		return commandValidationError("location_id", "location id is required")
	}
	return nil
}

type InstallLocationsMessage struct {
	CompanyID   string
	LocationIDs []string
}

func (InstallLocationsMessage) Type() string { return TypeInstallLocations }

func (m InstallLocationsMessage) Validate() error {
	if strings.TrimSpace(m.CompanyID) == "" {
		return commandValidationError("company_id", "company id is required")
	}
	if len(m.LocationIDs) == 0 {
		return commandValidationError("location_ids", "at least one location id is required")
	}
	return nil
}

type UninstallMessage struct {
	TenantID string
}

func (UninstallMessage) Type() string { return TypeUninstall }

func (m UninstallMessage) Validate() error {
	if strings.TrimSpace(m.TenantID) == "" {
		return commandValidationError("tenant_id", "tenant id is required")
	}
	return nil
}

// DispatchWebhookMessage carries a raw webhook delivery through the command bus.
type DispatchWebhookMessage struct {
	Request core.InboundRequest
}

func (DispatchWebhookMessage) Type() string { return TypeDispatchWebhook }

func (m DispatchWebhookMessage) Validate() error {
	if len(m.Request.Body) == 0 {
		return commandInvalidInputError("command: webhook body is required")
	}
	return nil
}
