package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ProvisioningErrorBadInput                = "PROVISIONING_BAD_INPUT"
	ProvisioningErrorParentCredentialMissing = "PROVISIONING_PARENT_CREDENTIAL_MISSING"
	ProvisioningErrorTokenExchangeRejected   = "PROVISIONING_TOKEN_EXCHANGE_REJECTED"
	ProvisioningErrorStoreFailed             = "PROVISIONING_STORE_FAILED"
	ProvisioningErrorLockFailed              = "PROVISIONING_LOCK_FAILED"
	ProvisioningErrorOperationFailed         = "PROVISIONING_OPERATION_FAILED"
	ProvisioningErrorUnexpected              = "PROVISIONING_UNEXPECTED"
	ProvisioningErrorInternal                = "PROVISIONING_INTERNAL_ERROR"
)

var ErrParentCredentialMissing = errors.New("core: parent credential missing")

type ProvisioningStep string

const (
	StepLoadParent    ProvisioningStep = "load_parent_credential"
	StepExchangeToken ProvisioningStep = "exchange_token"
	StepStoreSession  ProvisioningStep = "store_session"
	StepAcquireLock   ProvisioningStep = "acquire_lock"
	StepUnexpected    ProvisioningStep = "unexpected"
)

// ProvisioningError reports which step of a location provisioning failed.
type ProvisioningError struct {
	Step       ProvisioningStep
	CompanyID  string
	LocationID string
	Err        error
}

func (e *ProvisioningError) Error() string {
	if e == nil {
		return ""
	}
	cause := "unknown error"
	if e.Err != nil {
		cause = e.Err.Error()
	}
	return fmt.Sprintf("provisioning location %q (company %q) failed at %s: %s",
		e.LocationID, e.CompanyID, e.Step, cause)
}

func (e *ProvisioningError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *ProvisioningError) Metadata() map[string]any {
	if e == nil {
		return map[string]any{}
	}
	return map[string]any{
		"step":        string(e.Step),
		"company_id":  e.CompanyID,
		"location_id": e.LocationID,
	}
}

func newProvisioningError(step ProvisioningStep, companyID, locationID string, cause error) *ProvisioningError {
	return &ProvisioningError{
		Step:       step,
		CompanyID:  companyID,
		LocationID: locationID,
		Err:        cause,
	}
}

type ParentCredentialMissingError struct {
	CompanyID string
}

func (e *ParentCredentialMissingError) Error() string {
	if e == nil || e.CompanyID == "" {
		return ErrParentCredentialMissing.Error()
	}
	return fmt.Sprintf("%s for company %q", ErrParentCredentialMissing.Error(), e.CompanyID)
}

func (e *ParentCredentialMissingError) Unwrap() error {
	return ErrParentCredentialMissing
}

func (e *ParentCredentialMissingError) Envelope() *goerrors.Error {
	return goerrors.New(e.Error(), goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(ProvisioningErrorParentCredentialMissing)
}

func parentCredentialMissing(companyID string) error {
	return &ParentCredentialMissingError{CompanyID: companyID}
}

func badInput(message string, metadata map[string]any) error {
	err := goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(ProvisioningErrorBadInput)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func wrapOperation(source error, message string, textCode string, metadata map[string]any) error {
	if source == nil {
		return nil
	}
	err := goerrors.Wrap(source, goerrors.CategoryOperation, message).
		WithCode(http.StatusBadGateway).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// IsParentCredentialMissing reports whether err stems from an absent company
// credential.
func IsParentCredentialMissing(err error) bool {
	return errors.Is(err, ErrParentCredentialMissing)
}

// PanicError converts a recovered panic value into an error.
func PanicError(recovered any) error {
	if err, ok := recovered.(error); ok {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "core: recovered panic").
			WithCode(http.StatusInternalServerError).
			WithTextCode(ProvisioningErrorUnexpected)
	}
	return goerrors.New(fmt.Sprintf("core: recovered panic: %v", recovered), goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ProvisioningErrorUnexpected)
}

// MapError converts any error into the provisioning go-errors envelope.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var provisioningErr *ProvisioningError
	if errors.As(err, &provisioningErr) {
		textCode := ProvisioningErrorOperationFailed
		category := goerrors.CategoryOperation
		switch provisioningErr.Step {
		case StepLoadParent:
			if IsParentCredentialMissing(err) {
				textCode = ProvisioningErrorParentCredentialMissing
				category = goerrors.CategoryNotFound
			} else {
				textCode = ProvisioningErrorStoreFailed
			}
		case StepExchangeToken:
			textCode = ProvisioningErrorTokenExchangeRejected
			category = goerrors.CategoryAuth
		case StepStoreSession:
			textCode = ProvisioningErrorStoreFailed
		case StepAcquireLock:
			textCode = ProvisioningErrorLockFailed
			category = goerrors.CategoryConflict
		}
		mapped := goerrors.Wrap(err, category, err.Error()).
			WithTextCode(textCode)
		mapped.WithMetadata(provisioningErr.Metadata())
		return ensureErrorEnvelope(mapped)
	}

	var missingErr *ParentCredentialMissingError
	if errors.As(err, &missingErr) {
		return ensureErrorEnvelope(missingErr.Envelope())
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	if strings.Contains(msg, "required") || strings.Contains(msg, "invalid") {
		return ensureErrorEnvelope(
			goerrors.New(err.Error(), goerrors.CategoryBadInput).
				WithTextCode(ProvisioningErrorBadInput),
		)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = httpStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ProvisioningErrorBadInput
	case goerrors.CategoryNotFound:
		return ProvisioningErrorParentCredentialMissing
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ProvisioningErrorTokenExchangeRejected
	case goerrors.CategoryConflict:
		return ProvisioningErrorLockFailed
	case goerrors.CategoryOperation:
		return ProvisioningErrorOperationFailed
	default:
		return ProvisioningErrorInternal
	}
}

func httpStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryOperation:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
