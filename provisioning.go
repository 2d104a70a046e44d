package provisioning

import "github.com/goliatone/go-provisioning/core"

type Config = core.Config
type WebhookConfig = core.WebhookConfig
type BulkConfig = core.BulkConfig

type Option = core.Option

type Service = core.Service
type ServiceDependencies = core.ServiceDependencies

type Credential = core.Credential
type CredentialStore = core.CredentialStore
type LocationTokenExchanger = core.LocationTokenExchanger
type LifecycleSink = core.LifecycleSink
type LifecycleEvent = core.LifecycleEvent
type BulkInstallReport = core.BulkInstallReport
type InboundRequest = core.InboundRequest

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithFailureReporter   = core.WithFailureReporter
	WithErrorMapper       = core.WithErrorMapper
	WithPersistenceClient = core.WithPersistenceClient
	WithRepositoryFactory = core.WithRepositoryFactory
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithCredentialStore   = core.WithCredentialStore
	WithTokenExchanger    = core.WithTokenExchanger
	WithTenantLocker      = core.WithTenantLocker
	WithLifecycleSinks    = core.WithLifecycleSinks
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
