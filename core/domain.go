package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

type EventType string

const (
	EventTypeInstall   EventType = "INSTALL"
	EventTypeUninstall EventType = "UNINSTALL"
)

func (t EventType) Normalize() EventType {
	return EventType(strings.ToUpper(strings.TrimSpace(string(t))))
}

type TenantType string

const (
	TenantTypeCompany  TenantType = "company"
	TenantTypeLocation TenantType = "location"
)

// WebhookEvent is the decoded lifecycle payload. Fields after Trial are
// carried through but never interpreted.
type WebhookEvent struct {
	Type                EventType      `json:"type"`
	AppID               string         `json:"appId"`
	VersionID           string         `json:"versionId,omitempty"`
	InstallType         string         `json:"installType,omitempty"`
	LocationID          string         `json:"locationId,omitempty"`
	LocationIDs         []string       `json:"locationIds,omitempty"`
	CompanyID           string         `json:"companyId,omitempty"`
	UserID              string         `json:"userId,omitempty"`
	CompanyName         string         `json:"companyName,omitempty"`
	IsWhitelabelCompany bool           `json:"isWhitelabelCompany,omitempty"`
	WhitelabelDetails   map[string]any `json:"whitelabelDetails,omitempty"`
	PlanID              string         `json:"planId,omitempty"`
	Trial               map[string]any `json:"trial,omitempty"`
	Timestamp           string         `json:"timestamp,omitempty"`
	WebhookID           string         `json:"webhookId,omitempty"`
}

// BulkLocationIDs returns the non-blank entries of LocationIDs, preserving
// order.
func (e WebhookEvent) BulkLocationIDs() []string {
	if len(e.LocationIDs) == 0 {
		return nil
	}
	out := make([]string, 0, len(e.LocationIDs))
	for _, id := range e.LocationIDs {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (e WebhookEvent) LogFields() map[string]any {
	fields := map[string]any{
		"event_type": string(e.Type),
		"app_id":     e.AppID,
	}
	if e.CompanyID != "" {
		fields["company_id"] = e.CompanyID
	}
	if e.LocationID != "" {
		fields["location_id"] = e.LocationID
	}
	if len(e.LocationIDs) > 0 {
		fields["location_count"] = len(e.LocationIDs)
	}
	if e.WebhookID != "" {
		fields["webhook_id"] = e.WebhookID
	}
	return fields
}

// Credential is an opaque access token bound to the tenant it authorizes.
type Credential struct {
	TenantID     string
	TenantType   TenantType
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	ExpiresAt    *time.Time
	Metadata     map[string]any
}

func (c Credential) Clone() Credential {
	cloned := c
	cloned.ExpiresAt = cloneTimePointer(c.ExpiresAt)
	cloned.Metadata = copyAnyMap(c.Metadata)
	return cloned
}

type LocationTokenRequest struct {
	CompanyID  string
	LocationID string
	Parent     Credential
}

type ProvisioningResult struct {
	LocationID   string `json:"locationId"`
	Succeeded    bool   `json:"succeeded"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	Err          error  `json:"-"`
}

func NewProvisioningResult(locationID string, err error) ProvisioningResult {
	if err == nil {
		return ProvisioningResult{LocationID: locationID, Succeeded: true}
	}
	return ProvisioningResult{
		LocationID:   locationID,
		Succeeded:    false,
		ErrorMessage: err.Error(),
		Err:          err,
	}
}

type BulkInstallReport struct {
	CompanyID string               `json:"companyId"`
	Attempted int                  `json:"attempted"`
	Succeeded int                  `json:"succeeded"`
	Failed    int                  `json:"failed"`
	Batches   int                  `json:"batches"`
	Failures  []ProvisioningResult `json:"failures,omitempty"`
}

func (r *BulkInstallReport) record(result ProvisioningResult) {
	r.Attempted++
	if result.Succeeded {
		r.Succeeded++
		return
	}
	r.Failed++
	r.Failures = append(r.Failures, result)
}

// Err folds every recorded failure into a single error, or nil.
func (r BulkInstallReport) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	var merged *multierror.Error
	for _, failure := range r.Failures {
		cause := failure.Err
		if cause == nil {
			cause = fmt.Errorf("location %s: %s", failure.LocationID, failure.ErrorMessage)
		}
		merged = multierror.Append(merged, cause)
	}
	return merged.ErrorOrNil()
}

func (r BulkInstallReport) FailedLocationIDs() []string {
	if len(r.Failures) == 0 {
		return nil
	}
	out := make([]string, 0, len(r.Failures))
	for _, failure := range r.Failures {
		out = append(out, failure.LocationID)
	}
	return out
}

type LifecycleAction string

const (
	LifecycleActionInstalled     LifecycleAction = "installed"
	LifecycleActionInstallFailed LifecycleAction = "install_failed"
	LifecycleActionUninstalled   LifecycleAction = "uninstalled"
)

type LifecycleEvent struct {
	Action     LifecycleAction
	TenantID   string
	TenantType TenantType
	CompanyID  string
	LocationID string
	AppID      string
	WebhookID  string
	Error      string
	OccurredAt time.Time
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
