package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-provisioning/core"
	"github.com/goliatone/go-provisioning/webhooks"
)

var (
	_ gocmd.Commander[ProvisionLocationMessage] = (*ProvisionLocationCommand)(nil)
	_ gocmd.Commander[InstallLocationsMessage]  = (*InstallLocationsCommand)(nil)
	_ gocmd.Commander[UninstallMessage]         = (*UninstallCommand)(nil)
	_ gocmd.Commander[DispatchWebhookMessage]   = (*DispatchWebhookCommand)(nil)

	_ ProvisioningService = (*core.Service)(nil)
	_ WebhookDispatcher   = (*webhooks.Dispatcher)(nil)
)
