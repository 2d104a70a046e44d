package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/hashicorp/go-multierror"
)

// Service owns the provisioning collaborators: the credential store, the
// token provisioner, the bulk installer and the lifecycle sinks.
type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	failureReporter   FailureReporter
	errorMapper       ErrorMapper
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	credentialStore   CredentialStore
	tokenExchanger    LocationTokenExchanger
	tenantLocker      TenantLocker
	lifecycleSinks    []LifecycleSink
	provisioner       *TokenProvisioner
	bulkInstaller     *BulkInstaller
	observer          Observer
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	FailureReporter   FailureReporter
	ErrorMapper       ErrorMapper
	PersistenceClient any
	RepositoryFactory any
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	CredentialStore   CredentialStore
	TokenExchanger    LocationTokenExchanger
	TenantLocker      TenantLocker
	LifecycleSinks    []LifecycleSink
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("provisioning", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("provisioning"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.failureReporter == nil {
		builder.failureReporter = NopFailureReporter{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = MapError
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.credentialStore == nil && builder.repositoryFactory != nil {
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			stores, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			if stores != nil {
				builder.credentialStore = stores.CredentialStore()
			}
		} else if stores, ok := builder.repositoryFactory.(StoreProvider); ok {
			builder.credentialStore = stores.CredentialStore()
		}
	}
	if builder.credentialStore == nil {
		builder.credentialStore = NewMemoryCredentialStore()
	}
	if builder.tokenExchanger == nil {
		builder.tokenExchanger = unconfiguredExchanger{}
	}
	if finalConfig.SerializeTenants && builder.tenantLocker == nil {
		builder.tenantLocker = NewMemoryTenantLocker()
	}

	observer := NewObserver(logger, builder.metricsRecorder)
	provisionerOpts := []ProvisionerOption{WithProvisionerObserver(observer)}
	if finalConfig.SerializeTenants {
		provisionerOpts = append(provisionerOpts, WithProvisionerLocker(builder.tenantLocker))
	}
	provisioner, err := NewTokenProvisioner(builder.credentialStore, builder.tokenExchanger, provisionerOpts...)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	bulkInstaller, err := NewBulkInstaller(provisioner, finalConfig.Bulk.BatchSize(), WithBulkObserver(observer))
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	return &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		failureReporter:   builder.failureReporter,
		errorMapper:       builder.errorMapper,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		credentialStore:   builder.credentialStore,
		tokenExchanger:    builder.tokenExchanger,
		tenantLocker:      builder.tenantLocker,
		lifecycleSinks:    append([]LifecycleSink(nil), builder.lifecycleSinks...),
		provisioner:       provisioner,
		bulkInstaller:     bulkInstaller,
		observer:          observer,
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		FailureReporter:   s.failureReporter,
		ErrorMapper:       s.errorMapper,
		PersistenceClient: s.persistenceClient,
		RepositoryFactory: s.repositoryFactory,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		CredentialStore:   s.credentialStore,
		TokenExchanger:    s.tokenExchanger,
		TenantLocker:      s.tenantLocker,
		LifecycleSinks:    append([]LifecycleSink(nil), s.lifecycleSinks...),
	}
}

// Logger returns a logger named after component, falling back to the
// service logger.
func (s *Service) Logger(component string) Logger {
	if s == nil {
		return glog.Nop()
	}
	component = strings.TrimSpace(component)
	if component != "" && s.loggerProvider != nil {
		if named := s.loggerProvider.GetLogger("provisioning." + component); named != nil {
			return named
		}
	}
	return glog.Ensure(s.logger)
}

func (s *Service) Observer() Observer {
	if s == nil {
		return Observer{}
	}
	return s.observer
}

func (s *Service) FailureReporter() FailureReporter {
	if s == nil || s.failureReporter == nil {
		return NopFailureReporter{}
	}
	return s.failureReporter
}

func (s *Service) CredentialStore() CredentialStore {
	if s == nil {
		return nil
	}
	return s.credentialStore
}

func (s *Service) MapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	if mapped := s.errorMapper(err); mapped != nil {
		return mapped
	}
	return err
}

func (s *Service) ProvisionLocation(ctx context.Context, companyID string, locationID string) error {
	if s == nil || s.provisioner == nil {
		return fmt.Errorf("core: service is not configured")
	}
	return s.provisioner.ProvisionLocation(ctx, companyID, locationID)
}

func (s *Service) InstallMany(ctx context.Context, companyID string, locationIDs []string) (BulkInstallReport, error) {
	if s == nil || s.bulkInstaller == nil {
		return BulkInstallReport{}, fmt.Errorf("core: service is not configured")
	}
	return s.bulkInstaller.InstallMany(ctx, companyID, locationIDs)
}

// Uninstall drops the session stored for tenantID.
func (s *Service) Uninstall(ctx context.Context, tenantID string) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	tenantID = strings.TrimSpace(tenantID)
	startedAt := time.Now().UTC()
	fields := map[string]any{"tenant_id": tenantID}
	defer func() {
		s.Observer().Observe(ctx, startedAt, "uninstall", err, fields)
	}()

	if s == nil || s.credentialStore == nil {
		return fmt.Errorf("core: service is not configured")
	}
	if tenantID == "" {
		return badInput("core: tenant id is required for uninstall", nil)
	}
	return s.credentialStore.DeleteSession(ctx, tenantID)
}

// Publish fans event out to every configured sink. All sinks are attempted;
// their failures are merged.
func (s *Service) Publish(ctx context.Context, event LifecycleEvent) error {
	if s == nil || len(s.lifecycleSinks) == 0 {
		return nil
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	var merged *multierror.Error
	for _, sink := range s.lifecycleSinks {
		if err := sink.Publish(ctx, event); err != nil {
			merged = multierror.Append(merged, err)
		}
	}
	return merged.ErrorOrNil()
}

type unconfiguredExchanger struct{}

func (unconfiguredExchanger) ExchangeLocationToken(context.Context, LocationTokenRequest) (Credential, error) {
	return Credential{}, goerrors.New("core: location token exchanger is not configured", goerrors.CategoryInternal).
		WithTextCode(ProvisioningErrorInternal)
}

var (
	_ LocationProvisioner   = (*Service)(nil)
	_ BulkLocationInstaller = (*Service)(nil)
	_ LifecycleSink         = (*Service)(nil)
)
