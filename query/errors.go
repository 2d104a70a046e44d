package query

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-provisioning/core"
)

const ErrorTextCodeNotFound = "PROVISIONING_NOT_FOUND"

func queryDependencyError(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.ProvisioningErrorInternal)
}

func queryValidationError(field string, message string) error {
	return goerrors.NewValidation("query: validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ProvisioningErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}

func queryNotFoundError(message string, tenantID string) error {
	return goerrors.New(message, goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(ErrorTextCodeNotFound).
		WithMetadata(map[string]any{"tenant_id": tenantID})
}
