package sqlstore

import (
	"time"

	"github.com/goliatone/go-provisioning/core"
	"github.com/uptrace/bun"
)

type sessionRecord struct {
	bun.BaseModel `bun:"table:tenant_sessions,alias:ts"`

	ID                string         `bun:"id,pk"`
	TenantID          string         `bun:"tenant_id,notnull"`
	TenantType        string         `bun:"tenant_type,notnull"`
	EncryptedPayload  []byte         `bun:"encrypted_payload,notnull"`
	TokenType         string         `bun:"token_type,notnull"`
	Scope             string         `bun:"scope,notnull"`
	ExpiresAt         *time.Time     `bun:"expires_at,nullzero"`
	EncryptionKeyID   string         `bun:"encryption_key_id,notnull"`
	EncryptionVersion int            `bun:"encryption_version,notnull"`
	Metadata          map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt         time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// sessionSecrets is the plaintext sealed into encrypted_payload.
type sessionSecrets struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

func (r *sessionRecord) toDomain(secrets sessionSecrets) core.Credential {
	if r == nil {
		return core.Credential{}
	}
	return core.Credential{
		TenantID:     r.TenantID,
		TenantType:   core.TenantType(r.TenantType),
		AccessToken:  secrets.AccessToken,
		RefreshToken: secrets.RefreshToken,
		TokenType:    r.TokenType,
		Scope:        r.Scope,
		ExpiresAt:    cloneTimePointer(r.ExpiresAt),
		Metadata:     copyAnyMap(r.Metadata),
	}
}

type InstallationStatus string

const (
	InstallationStatusInstalled     InstallationStatus = "installed"
	InstallationStatusInstallFailed InstallationStatus = "install_failed"
	InstallationStatusUninstalled   InstallationStatus = "uninstalled"
)

// Installation is one row of the ledger, keyed by tenant.
type Installation struct {
	ID            string
	TenantID      string
	TenantType    core.TenantType
	CompanyID     string
	LocationID    string
	AppID         string
	Status        InstallationStatus
	LastError     string
	LastWebhookID string
	InstalledAt   *time.Time
	UninstalledAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type installationRecord struct {
	bun.BaseModel `bun:"table:app_installations,alias:ai"`

	ID            string     `bun:"id,pk"`
	TenantID      string     `bun:"tenant_id,notnull"`
	TenantType    string     `bun:"tenant_type,notnull"`
	CompanyID     string     `bun:"company_id,notnull"`
	LocationID    string     `bun:"location_id,notnull"`
	AppID         string     `bun:"app_id,notnull"`
	Status        string     `bun:"status,notnull"`
	LastError     string     `bun:"last_error,notnull"`
	LastWebhookID string     `bun:"last_webhook_id,notnull"`
	InstalledAt   *time.Time `bun:"installed_at,nullzero"`
	UninstalledAt *time.Time `bun:"uninstalled_at,nullzero"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *installationRecord) toDomain() Installation {
	if r == nil {
		return Installation{}
	}
	return Installation{
		ID:            r.ID,
		TenantID:      r.TenantID,
		TenantType:    core.TenantType(r.TenantType),
		CompanyID:     r.CompanyID,
		LocationID:    r.LocationID,
		AppID:         r.AppID,
		Status:        InstallationStatus(r.Status),
		LastError:     r.LastError,
		LastWebhookID: r.LastWebhookID,
		InstalledAt:   cloneTimePointer(r.InstalledAt),
		UninstalledAt: cloneTimePointer(r.UninstalledAt),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func cloneTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}

func copyAnyMap(input map[string]any) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(input))
	for key, value := range input {
		out[key] = value
	}
	return out
}
