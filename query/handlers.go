package query

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-provisioning/core"
	sqlstore "github.com/goliatone/go-provisioning/store/sql"
)

type InstallationReader interface {
	Get(ctx context.Context, tenantID string) (sqlstore.Installation, bool, error)
	ListByCompany(ctx context.Context, companyID string) ([]sqlstore.Installation, error)
}

// SessionStatus describes a stored session without its tokens.
type SessionStatus struct {
	TenantID   string          `json:"tenantId"`
	TenantType core.TenantType `json:"tenantType,omitempty"`
	Found      bool            `json:"found"`
	TokenType  string          `json:"tokenType,omitempty"`
	Scope      string          `json:"scope,omitempty"`
	ExpiresAt  *time.Time      `json:"expiresAt,omitempty"`
	Expired    bool            `json:"expired"`
	Metadata   map[string]any  `json:"metadata,omitempty"`
}

type GetInstallationQuery struct {
	reader InstallationReader
}

func NewGetInstallationQuery(reader InstallationReader) *GetInstallationQuery {
	return &GetInstallationQuery{reader: reader}
}

func (q *GetInstallationQuery) Query(ctx context.Context, msg GetInstallationMessage) (sqlstore.Installation, error) {
	if q == nil || q.reader == nil {
		return sqlstore.Installation{}, queryDependencyError("query: installation reader is required")
	}
	if err := msg.Validate(); err != nil {
		return sqlstore.Installation{}, err
	}
	tenantID := strings.TrimSpace(msg.TenantID)
	installation, found, err := q.reader.Get(ctx, tenantID)
	if err != nil {
		return sqlstore.Installation{}, err
	}
	if !found {
		return sqlstore.Installation{}, queryNotFoundError("query: installation not found", tenantID)
	}
	return installation, nil
}

type ListInstallationsQuery struct {
	reader InstallationReader
}

func NewListInstallationsQuery(reader InstallationReader) *ListInstallationsQuery {
	return &ListInstallationsQuery{reader: reader}
}

func (q *ListInstallationsQuery) Query(
	ctx context.Context,
	msg ListInstallationsMessage,
) ([]sqlstore.Installation, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: installation reader is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return q.reader.ListByCompany(ctx, strings.TrimSpace(msg.CompanyID))
}

type GetSessionStatusQuery struct {
	store core.CredentialStore
	now   func() time.Time
}

func NewGetSessionStatusQuery(store core.CredentialStore) *GetSessionStatusQuery {
	return &GetSessionStatusQuery{store: store, now: time.Now}
}

func (q *GetSessionStatusQuery) Query(ctx context.Context, msg GetSessionStatusMessage) (SessionStatus, error) {
	if q == nil || q.store == nil {
		return SessionStatus{}, queryDependencyError("query: credential store is required")
	}
	if err := msg.Validate(); err != nil {
		return SessionStatus{}, err
	}
	tenantID := strings.TrimSpace(msg.TenantID)
	credential, found, err := q.store.GetAccessToken(ctx, tenantID)
	if err != nil {
		return SessionStatus{}, err
	}
	status := SessionStatus{TenantID: tenantID, Found: found}
	if !found {
		return status, nil
	}
	status.TenantType = credential.TenantType
	status.TokenType = credential.TokenType
	status.Scope = credential.Scope
	if credential.ExpiresAt != nil {
		expiresAt := credential.ExpiresAt.UTC()
		status.ExpiresAt = &expiresAt
		now := time.Now
		if q.now != nil {
			now = q.now
		}
		status.Expired = !now().Before(expiresAt)
	}
	if len(credential.Metadata) > 0 {
		status.Metadata = core.RedactSensitiveMap(credential.Metadata)
	}
	return status, nil
}
