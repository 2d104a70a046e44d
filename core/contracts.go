package core

import (
	"context"

	glog "github.com/goliatone/go-logger/glog"
)

type InboundRequest struct {
	Headers  map[string]string
	Body     []byte
	Metadata map[string]any
}

type CredentialStore interface {
	GetAccessToken(ctx context.Context, tenantID string) (Credential, bool, error)
	SetSession(ctx context.Context, tenantID string, credential Credential) error
	DeleteSession(ctx context.Context, tenantID string) error
}

type StoreProvider interface {
	CredentialStore() CredentialStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

// LocationTokenExchanger trades a company credential for a location scoped
// one. Implementations fail with an auth category error when upstream rejects
// the exchange.
type LocationTokenExchanger interface {
	ExchangeLocationToken(ctx context.Context, req LocationTokenRequest) (Credential, error)
}

type LocationProvisioner interface {
	ProvisionLocation(ctx context.Context, companyID string, locationID string) error
}

type BulkLocationInstaller interface {
	InstallMany(ctx context.Context, companyID string, locationIDs []string) (BulkInstallReport, error)
}

type LifecycleSink interface {
	Publish(ctx context.Context, event LifecycleEvent) error
}

type FailureReporter interface {
	ReportFailure(ctx context.Context, err error, fields map[string]any)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

type LockHandle interface {
	Unlock(ctx context.Context) error
}

type TenantLocker interface {
	Acquire(ctx context.Context, tenantID string) (LockHandle, error)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger
