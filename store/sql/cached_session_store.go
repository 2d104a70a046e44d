package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-provisioning/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const sessionCacheKeyPrefix = "go-provisioning::session::v1"

var errSessionNotCached = errors.New("sqlstore: session not found")

// CachedSessionStore serves GetAccessToken through a read-through cache and
// invalidates on every write. Only found sessions are cached, so a company
// credential installed after a miss is picked up on the next read.
type CachedSessionStore struct {
	base  core.CredentialStore
	cache repositorycache.CacheService
}

func NewCachedSessionStore(base core.CredentialStore, cacheService repositorycache.CacheService) (*CachedSessionStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base credential store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: session cache service is required")
	}
	return &CachedSessionStore{base: base, cache: cacheService}, nil
}

// SessionCacheKey is go-provisioning::session::v1::<tenant_id>, with the tenant
// segment URL-path escaped.
func SessionCacheKey(tenantID string) (string, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return "", fmt.Errorf("sqlstore: tenant id is required")
	}
	return sessionCacheKeyPrefix + "::" + url.PathEscape(tenantID), nil
}

func (s *CachedSessionStore) GetAccessToken(ctx context.Context, tenantID string) (core.Credential, bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Credential{}, false, fmt.Errorf("sqlstore: cached session store is not configured")
	}
	cacheKey, err := SessionCacheKey(tenantID)
	if err != nil {
		return core.Credential{}, false, err
	}
	tenantID = strings.TrimSpace(tenantID)

	credential, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.Credential, error) {
		fetched, found, fetchErr := s.base.GetAccessToken(ctx, tenantID)
		if fetchErr != nil {
			return core.Credential{}, fetchErr
		}
		if !found {
			return core.Credential{}, errSessionNotCached
		}
		return fetched.Clone(), nil
	})
	if err != nil {
		if errors.Is(err, errSessionNotCached) {
			return core.Credential{}, false, nil
		}
		return core.Credential{}, false, err
	}
	return credential.Clone(), true, nil
}

func (s *CachedSessionStore) SetSession(ctx context.Context, tenantID string, credential core.Credential) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached session store is not configured")
	}
	if err := s.base.SetSession(ctx, tenantID, credential); err != nil {
		return err
	}
	return s.invalidate(ctx, tenantID)
}

func (s *CachedSessionStore) DeleteSession(ctx context.Context, tenantID string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached session store is not configured")
	}
	if err := s.base.DeleteSession(ctx, tenantID); err != nil {
		return err
	}
	return s.invalidate(ctx, tenantID)
}

func (s *CachedSessionStore) invalidate(ctx context.Context, tenantID string) error {
	cacheKey, err := SessionCacheKey(tenantID)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}
