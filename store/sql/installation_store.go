package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-provisioning/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// InstallationStore records the latest lifecycle outcome per tenant. It
// implements core.LifecycleSink so the dispatcher can feed it directly.
type InstallationStore struct {
	db   *bun.DB
	repo repository.Repository[*installationRecord]
}

func NewInstallationStore(db *bun.DB) (*InstallationStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*installationRecord](db, installationHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid installation repository wiring: %w", err)
		}
	}
	return &InstallationStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *InstallationStore) Publish(ctx context.Context, event core.LifecycleEvent) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: installation store is not configured")
	}
	tenantID := strings.TrimSpace(event.TenantID)
	if tenantID == "" {
		return fmt.Errorf("sqlstore: tenant id is required")
	}
	status, err := statusForAction(event.Action)
	if err != nil {
		return err
	}
	occurredAt := event.OccurredAt.UTC()
	if event.OccurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := findInstallationTx(ctx, tx, tenantID)
		if err != nil {
			return err
		}
		if record == nil {
			record = &installationRecord{
				ID:        uuid.NewString(),
				TenantID:  tenantID,
				CreatedAt: occurredAt,
			}
			applyEvent(record, event, status, occurredAt)
			_, err = tx.NewInsert().Model(record).Exec(ctx)
			return err
		}
		applyEvent(record, event, status, occurredAt)
		_, err = tx.NewUpdate().
			Model(record).
			Where("id = ?", record.ID).
			Exec(ctx)
		return err
	})
}

func (s *InstallationStore) Get(ctx context.Context, tenantID string) (Installation, bool, error) {
	if s == nil || s.repo == nil {
		return Installation{}, false, fmt.Errorf("sqlstore: installation store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("tenant_id", "=", strings.TrimSpace(tenantID)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return Installation{}, false, err
	}
	if len(records) == 0 {
		return Installation{}, false, nil
	}
	return records[0].toDomain(), true, nil
}

// ListByCompany returns every tenant ledger row that belongs to companyID,
// the company row included.
func (s *InstallationStore) ListByCompany(ctx context.Context, companyID string) ([]Installation, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: installation store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("company_id", "=", strings.TrimSpace(companyID)),
		repository.OrderBy("tenant_id ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]Installation, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func applyEvent(record *installationRecord, event core.LifecycleEvent, status InstallationStatus, at time.Time) {
	record.Status = string(status)
	record.UpdatedAt = at
	if tenantType := strings.TrimSpace(string(event.TenantType)); tenantType != "" {
		record.TenantType = tenantType
	}
	if companyID := strings.TrimSpace(event.CompanyID); companyID != "" {
		record.CompanyID = companyID
	}
	if locationID := strings.TrimSpace(event.LocationID); locationID != "" {
		record.LocationID = locationID
	}
	if appID := strings.TrimSpace(event.AppID); appID != "" {
		record.AppID = appID
	}
	if webhookID := strings.TrimSpace(event.WebhookID); webhookID != "" {
		record.LastWebhookID = webhookID
	}
	switch status {
	case InstallationStatusInstalled:
		record.LastError = ""
		record.InstalledAt = &at
		record.UninstalledAt = nil
	case InstallationStatusInstallFailed:
		record.LastError = strings.TrimSpace(event.Error)
	case InstallationStatusUninstalled:
		record.LastError = ""
		record.UninstalledAt = &at
	}
}

func statusForAction(action core.LifecycleAction) (InstallationStatus, error) {
	switch action {
	case core.LifecycleActionInstalled:
		return InstallationStatusInstalled, nil
	case core.LifecycleActionInstallFailed:
		return InstallationStatusInstallFailed, nil
	case core.LifecycleActionUninstalled:
		return InstallationStatusUninstalled, nil
	default:
		return "", fmt.Errorf("sqlstore: unsupported lifecycle action %q", action)
	}
}

func findInstallationTx(ctx context.Context, tx bun.Tx, tenantID string) (*installationRecord, error) {
	record := &installationRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.tenant_id = ?", tenantID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}
