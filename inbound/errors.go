package inbound

import (
	"encoding/json"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-provisioning/core"
)

const (
	ErrorTextCodeBodyUnreadable = "PROVISIONING_WEBHOOK_BODY_UNREADABLE"
	ErrorTextCodeBodyTooLarge   = "PROVISIONING_WEBHOOK_BODY_TOO_LARGE"
)

func inboundError(
	message string,
	category goerrors.Category,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func inboundWrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	if source == nil {
		return inboundError(message, category, code, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func bodyTooLarge(limit int64) error {
	return inboundError(
		"inbound: request body exceeds limit",
		goerrors.CategoryBadInput,
		http.StatusRequestEntityTooLarge,
		ErrorTextCodeBodyTooLarge,
		map[string]any{"limit_bytes": limit},
	)
}

func bodyUnreadable(source error) error {
	return inboundWrapError(
		source,
		goerrors.CategoryBadInput,
		"inbound: request body could not be read",
		http.StatusBadRequest,
		ErrorTextCodeBodyUnreadable,
		nil,
	)
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Category string         `json:"category"`
	Code     int            `json:"code"`
	TextCode string         `json:"text_code"`
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// StatusCode maps err onto the HTTP status its envelope carries.
func StatusCode(err error) int {
	mapped := core.MapError(err)
	if mapped == nil || mapped.Code == 0 {
		return http.StatusInternalServerError
	}
	return mapped.Code
}

// DefaultErrorHandler writes the go-errors envelope of err as JSON.
func DefaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	mapped := core.MapError(err)
	if mapped == nil {
		mapped = core.MapError(inboundError("inbound: unknown failure", goerrors.CategoryInternal,
			http.StatusInternalServerError, core.ProvisioningErrorInternal, nil))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(mapped.Code)
	_ = json.NewEncoder(w).Encode(errorEnvelope{Error: errorBody{
		Category: string(mapped.Category),
		Code:     mapped.Code,
		TextCode: mapped.TextCode,
		Message:  mapped.Message,
		Metadata: core.RedactSensitiveMap(mapped.Metadata),
	}})
}
