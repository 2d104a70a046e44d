package provisioning

import (
	"fmt"

	"github.com/goliatone/go-command/runner"
	gocommandadapter "github.com/goliatone/go-provisioning/adapters/gocommand"
	provcommand "github.com/goliatone/go-provisioning/command"
	"github.com/goliatone/go-provisioning/core"
	provquery "github.com/goliatone/go-provisioning/query"
	sqlstore "github.com/goliatone/go-provisioning/store/sql"
	"github.com/goliatone/go-provisioning/webhooks"
)

type Commands struct {
	ProvisionLocation *provcommand.ProvisionLocationCommand
	InstallLocations  *provcommand.InstallLocationsCommand
	Uninstall         *provcommand.UninstallCommand
	DispatchWebhook   *provcommand.DispatchWebhookCommand
}

// Queries holds the read side. The installation queries are nil when no
// installation reader is available.
type Queries struct {
	GetInstallation   *provquery.GetInstallationQuery
	ListInstallations *provquery.ListInstallationsQuery
	GetSessionStatus  *provquery.GetSessionStatusQuery
}

type Facade struct {
	service    *core.Service
	dispatcher *webhooks.Dispatcher
	commands   Commands
	queries    Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	installations provquery.InstallationReader
	dispatcher    *webhooks.Dispatcher
}

func WithInstallationReader(reader provquery.InstallationReader) FacadeOption {
	return func(options *facadeOptions) {
		options.installations = reader
	}
}

// WithDispatcher replaces the dispatcher built from the service.
func WithDispatcher(dispatcher *webhooks.Dispatcher) FacadeOption {
	return func(options *facadeOptions) {
		options.dispatcher = dispatcher
	}
}

func NewFacade(service *core.Service, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("provisioning: service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	dispatcher := cfg.dispatcher
	if dispatcher == nil {
		dispatcher = webhooks.FromService(service)
	}
	reader := cfg.installations
	if reader == nil {
		reader = resolveInstallationReader(service)
	}

	facade := &Facade{service: service, dispatcher: dispatcher}
	facade.commands = Commands{
		ProvisionLocation: provcommand.NewProvisionLocationCommand(service),
		InstallLocations:  provcommand.NewInstallLocationsCommand(service),
		Uninstall:         provcommand.NewUninstallCommand(service),
		DispatchWebhook:   provcommand.NewDispatchWebhookCommand(dispatcher),
	}
	facade.queries = Queries{
		GetSessionStatus: provquery.NewGetSessionStatusQuery(service.CredentialStore()),
	}
	if reader != nil {
		facade.queries.GetInstallation = provquery.NewGetInstallationQuery(reader)
		facade.queries.ListInstallations = provquery.NewListInstallationsQuery(reader)
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() *core.Service {
	if f == nil {
		return nil
	}
	return f.service
}

func (f *Facade) Dispatcher() *webhooks.Dispatcher {
	if f == nil {
		return nil
	}
	return f.dispatcher
}

// Register subscribes the facade commands on the go-command dispatcher and
// records them in the adapter registry.
func (f *Facade) Register(
	adapter *gocommandadapter.RegistryAdapter,
	runnerOpts ...runner.Option,
) (gocommandadapter.Subscriptions, error) {
	if f == nil || f.service == nil {
		return nil, fmt.Errorf("provisioning: facade is not configured")
	}
	return gocommandadapter.RegisterProvisioning(adapter, f.service, f.dispatcher, runnerOpts...)
}

func resolveInstallationReader(service *core.Service) provquery.InstallationReader {
	provider, ok := service.Dependencies().RepositoryFactory.(interface {
		InstallationStore() *sqlstore.InstallationStore
	})
	if !ok {
		return nil
	}
	store := provider.InstallationStore()
	if store == nil {
		return nil
	}
	return store
}
