package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

func sessionHandlers() repository.ModelHandlers[*sessionRecord] {
	return repository.ModelHandlers[*sessionRecord]{
		NewRecord: func() *sessionRecord {
			return &sessionRecord{}
		},
		GetID: func(record *sessionRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *sessionRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "tenant_id"
		},
		GetIdentifierValue: func(record *sessionRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.TenantID)
		},
	}
}

func installationHandlers() repository.ModelHandlers[*installationRecord] {
	return repository.ModelHandlers[*installationRecord]{
		NewRecord: func() *installationRecord {
			return &installationRecord{}
		},
		GetID: func(record *installationRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *installationRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "tenant_id"
		},
		GetIdentifierValue: func(record *installationRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.TenantID)
		},
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
