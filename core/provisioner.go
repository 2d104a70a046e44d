package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// TokenProvisioner exchanges a company credential for a location scoped one
// and persists it under the location id.
type TokenProvisioner struct {
	store     CredentialStore
	exchanger LocationTokenExchanger
	locker    TenantLocker
	observer  Observer
}

type ProvisionerOption func(*TokenProvisioner)

// WithProvisionerLocker serializes provisioning per location id.
func WithProvisionerLocker(locker TenantLocker) ProvisionerOption {
	return func(p *TokenProvisioner) {
		p.locker = locker
	}
}

func WithProvisionerObserver(observer Observer) ProvisionerOption {
	return func(p *TokenProvisioner) {
		p.observer = observer
	}
}

func NewTokenProvisioner(
	store CredentialStore,
	exchanger LocationTokenExchanger,
	opts ...ProvisionerOption,
) (*TokenProvisioner, error) {
	if store == nil {
		return nil, fmt.Errorf("core: credential store is required")
	}
	if exchanger == nil {
		return nil, fmt.Errorf("core: location token exchanger is required")
	}
	provisioner := &TokenProvisioner{store: store, exchanger: exchanger}
	for _, opt := range opts {
		if opt != nil {
			opt(provisioner)
		}
	}
	return provisioner, nil
}

// ProvisionLocation loads the company credential, exchanges it for a location
// credential and stores the result. The session is written only after the
// exchange succeeds. Failures are returned as *ProvisioningError.
func (p *TokenProvisioner) ProvisionLocation(ctx context.Context, companyID string, locationID string) (err error) {
	if p == nil || p.store == nil || p.exchanger == nil {
		return fmt.Errorf("core: token provisioner is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	companyID = strings.TrimSpace(companyID)
	locationID = strings.TrimSpace(locationID)
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"company_id":  companyID,
		"location_id": locationID,
		"tenant_type": string(TenantTypeLocation),
	}
	defer func() {
		var provisioningErr *ProvisioningError
		if errors.As(err, &provisioningErr) {
			fields["step"] = string(provisioningErr.Step)
		}
		p.observer.Observe(ctx, startedAt, "provision_location", err, fields)
	}()

	if companyID == "" {
		return badInput("core: company id is required", map[string]any{"location_id": locationID})
	}
	if locationID == "" {
		return badInput("core: location id is required", map[string]any{"company_id": companyID})
	}

	if p.locker != nil {
		handle, lockErr := p.locker.Acquire(ctx, locationID)
		if lockErr != nil {
			return newProvisioningError(StepAcquireLock, companyID, locationID, lockErr)
		}
		defer func() {
			_ = handle.Unlock(ctx)
		}()
	}

	parent, found, loadErr := p.store.GetAccessToken(ctx, companyID)
	if loadErr != nil {
		return newProvisioningError(StepLoadParent, companyID, locationID, loadErr)
	}
	if !found {
		return newProvisioningError(StepLoadParent, companyID, locationID, parentCredentialMissing(companyID))
	}

	credential, exchangeErr := p.exchanger.ExchangeLocationToken(ctx, LocationTokenRequest{
		CompanyID:  companyID,
		LocationID: locationID,
		Parent:     parent,
	})
	if exchangeErr != nil {
		return newProvisioningError(StepExchangeToken, companyID, locationID, exchangeErr)
	}
	if strings.TrimSpace(credential.AccessToken) == "" {
		return newProvisioningError(StepExchangeToken, companyID, locationID,
			fmt.Errorf("core: exchange returned an empty access token"))
	}

	credential = credential.Clone()
	credential.TenantID = locationID
	credential.TenantType = TenantTypeLocation
	if credential.Metadata == nil {
		credential.Metadata = map[string]any{}
	}
	credential.Metadata["company_id"] = companyID

	if storeErr := p.store.SetSession(ctx, locationID, credential); storeErr != nil {
		return newProvisioningError(StepStoreSession, companyID, locationID, storeErr)
	}
	return nil
}

var _ LocationProvisioner = (*TokenProvisioner)(nil)
