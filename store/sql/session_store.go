package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-provisioning/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// keyedSecretProvider is implemented by providers that expose the key
// reference stamped on each session row.
type keyedSecretProvider interface {
	KeyID() string
	Version() int
}

// SessionStore is the bun backed core.CredentialStore. One row per tenant;
// SetSession overwrites.
type SessionStore struct {
	db     *bun.DB
	repo   repository.Repository[*sessionRecord]
	secret core.SecretProvider
	now    func() time.Time
}

func NewSessionStore(db *bun.DB, secret core.SecretProvider) (*SessionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	if secret == nil {
		return nil, fmt.Errorf("sqlstore: secret provider is required")
	}
	repo := repository.NewRepository[*sessionRecord](db, sessionHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid session repository wiring: %w", err)
		}
	}
	return &SessionStore{
		db:     db,
		repo:   repo,
		secret: secret,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (s *SessionStore) GetAccessToken(ctx context.Context, tenantID string) (core.Credential, bool, error) {
	if s == nil || s.repo == nil || s.secret == nil {
		return core.Credential{}, false, fmt.Errorf("sqlstore: session store is not configured")
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return core.Credential{}, false, fmt.Errorf("sqlstore: tenant id is required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("tenant_id", "=", tenantID),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Credential{}, false, err
	}
	if len(records) == 0 {
		return core.Credential{}, false, nil
	}
	record := records[0]

	plaintext, err := s.secret.Decrypt(ctx, record.EncryptedPayload)
	if err != nil {
		return core.Credential{}, false, fmt.Errorf("sqlstore: decrypt session for tenant %q: %w", tenantID, err)
	}
	var secrets sessionSecrets
	if err := json.Unmarshal(plaintext, &secrets); err != nil {
		return core.Credential{}, false, fmt.Errorf("sqlstore: decode session for tenant %q: %w", tenantID, err)
	}
	return record.toDomain(secrets), true, nil
}

func (s *SessionStore) SetSession(ctx context.Context, tenantID string, credential core.Credential) error {
	if s == nil || s.db == nil || s.secret == nil {
		return fmt.Errorf("sqlstore: session store is not configured")
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return fmt.Errorf("sqlstore: tenant id is required")
	}
	if strings.TrimSpace(credential.AccessToken) == "" {
		return fmt.Errorf("sqlstore: access token is required")
	}

	plaintext, err := json.Marshal(sessionSecrets{
		AccessToken:  credential.AccessToken,
		RefreshToken: credential.RefreshToken,
	})
	if err != nil {
		return fmt.Errorf("sqlstore: encode session: %w", err)
	}
	sealed, err := s.secret.Encrypt(ctx, plaintext)
	if err != nil {
		return fmt.Errorf("sqlstore: encrypt session for tenant %q: %w", tenantID, err)
	}

	now := s.now()
	tenantType := strings.TrimSpace(string(credential.TenantType))
	if tenantType == "" {
		tenantType = string(core.TenantTypeCompany)
	}
	record := &sessionRecord{
		TenantID:         tenantID,
		TenantType:       tenantType,
		EncryptedPayload: sealed,
		TokenType:        strings.TrimSpace(credential.TokenType),
		Scope:            strings.TrimSpace(credential.Scope),
		ExpiresAt:        cloneTimePointer(credential.ExpiresAt),
		Metadata:         copyAnyMap(credential.Metadata),
		UpdatedAt:        now,
	}
	if keyed, ok := s.secret.(keyedSecretProvider); ok {
		record.EncryptionKeyID = keyed.KeyID()
		record.EncryptionVersion = keyed.Version()
	}

	updated, err := updateSession(ctx, s.db, record)
	if err != nil || updated {
		return err
	}
	record.ID = uuid.NewString()
	record.CreatedAt = now
	if _, insertErr := s.db.NewInsert().Model(record).Exec(ctx); insertErr != nil {
		if !isUniqueViolation(insertErr) {
			return insertErr
		}
		// concurrent first write for the same tenant; last write wins
		_, err = updateSession(ctx, s.db, record)
		return err
	}
	return nil
}

func (s *SessionStore) DeleteSession(ctx context.Context, tenantID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: session store is not configured")
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return fmt.Errorf("sqlstore: tenant id is required")
	}
	_, err := s.db.NewDelete().
		Model((*sessionRecord)(nil)).
		Where("tenant_id = ?", tenantID).
		Exec(ctx)
	return err
}

// Len counts stored sessions.
func (s *SessionStore) Len(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: session store is not configured")
	}
	return s.db.NewSelect().Model((*sessionRecord)(nil)).Count(ctx)
}

func updateSession(ctx context.Context, db bun.IDB, record *sessionRecord) (bool, error) {
	result, err := db.NewUpdate().
		Model(record).
		Column(
			"tenant_type",
			"encrypted_payload",
			"token_type",
			"scope",
			"expires_at",
			"encryption_key_id",
			"encryption_version",
			"metadata",
			"updated_at",
		).
		Where("tenant_id = ?", record.TenantID).
		Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
