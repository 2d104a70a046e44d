package sqlstore

import "github.com/goliatone/go-provisioning/core"

var (
	_ core.CredentialStore        = (*SessionStore)(nil)
	_ core.CredentialStore        = (*CachedSessionStore)(nil)
	_ core.LifecycleSink          = (*InstallationStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
