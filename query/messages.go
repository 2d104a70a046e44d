package query

import (
	"strings"
)

const (
	TypeGetInstallation   = "provisioning.query.installation.get"
	TypeListInstallations = "provisioning.query.installation.list"
	TypeGetSessionStatus  = "provisioning.query.session.status"
)

type GetInstallationMessage struct {
	TenantID string
}

func (GetInstallationMessage) Type() string { return TypeGetInstallation }

func (m GetInstallationMessage) Validate() error {
	if strings.TrimSpace(m.TenantID) == "" {
		return queryValidationError("tenant_id", "tenant id is required")
	}
	return nil
}

type ListInstallationsMessage struct {
	CompanyID string
}

func (ListInstallationsMessage) Type() string { return TypeListInstallations }

func (m ListInstallationsMessage) Validate() error {
	if strings.TrimSpace(m.CompanyID) == "" {
		return queryValidationError("company_id", "company id is required")
	}
	return nil
}

type GetSessionStatusMessage struct {
	TenantID string
}

func (GetSessionStatusMessage) Type() string { return TypeGetSessionStatus }

func (m GetSessionStatusMessage) Validate() error {
	if strings.TrimSpace(m.TenantID) == "" {
		return queryValidationError("tenant_id", "tenant id is required")
	}
	return nil
}
