package sqlstore

import (
	"fmt"

	"github.com/goliatone/go-provisioning/core"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

type FactoryOption func(*RepositoryFactory)

// WithSessionCache fronts the session store with a read-through cache.
func WithSessionCache(cacheService repositorycache.CacheService) FactoryOption {
	return func(f *RepositoryFactory) {
		f.cache = cacheService
	}
}

// RepositoryFactory implements core.RepositoryStoreFactory for bun.
type RepositoryFactory struct {
	db     *bun.DB
	secret core.SecretProvider
	cache  repositorycache.CacheService

	sessionStore      *SessionStore
	credentialStore   core.CredentialStore
	installationStore *InstallationStore
}

func NewRepositoryFactory(secret core.SecretProvider, opts ...FactoryOption) *RepositoryFactory {
	factory := &RepositoryFactory{secret: secret}
	for _, opt := range opts {
		if opt != nil {
			opt(factory)
		}
	}
	return factory
}

func NewRepositoryFactoryFromPersistence(
	client *persistence.Client,
	secret core.SecretProvider,
	opts ...FactoryOption,
) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(secret, opts...)
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, secret core.SecretProvider, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(secret, opts...)
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.credentialStore != nil && f.installationStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

// CredentialStore returns the cached store when a cache is configured.
func (f *RepositoryFactory) CredentialStore() core.CredentialStore {
	if f == nil {
		return nil
	}
	return f.credentialStore
}

func (f *RepositoryFactory) SessionStore() *SessionStore {
	if f == nil {
		return nil
	}
	return f.sessionStore
}

func (f *RepositoryFactory) InstallationStore() *InstallationStore {
	if f == nil {
		return nil
	}
	return f.installationStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	sessionStore, err := NewSessionStore(f.db, f.secret)
	if err != nil {
		return err
	}
	installationStore, err := NewInstallationStore(f.db)
	if err != nil {
		return err
	}

	var credentialStore core.CredentialStore = sessionStore
	if f.cache != nil {
		cached, err := NewCachedSessionStore(sessionStore, f.cache)
		if err != nil {
			return err
		}
		credentialStore = cached
	}

	f.sessionStore = sessionStore
	f.credentialStore = credentialStore
	f.installationStore = installationStore
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
