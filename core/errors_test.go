package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestMapError_ProvisioningSteps(t *testing.T) {
	cases := []struct {
		step     ProvisioningStep
		cause    error
		textCode string
		status   int
	}{
		{StepLoadParent, parentCredentialMissing("cmp_1"), ProvisioningErrorParentCredentialMissing, http.StatusNotFound},
		{StepLoadParent, errors.New("db down"), ProvisioningErrorStoreFailed, http.StatusBadGateway},
		{StepExchangeToken, errors.New("401"), ProvisioningErrorTokenExchangeRejected, http.StatusUnauthorized},
		{StepStoreSession, errors.New("db down"), ProvisioningErrorStoreFailed, http.StatusBadGateway},
		{StepAcquireLock, errors.New("timeout"), ProvisioningErrorLockFailed, http.StatusConflict},
		{StepUnexpected, errors.New("boom"), ProvisioningErrorOperationFailed, http.StatusBadGateway},
	}
	for _, tc := range cases {
		err := newProvisioningError(tc.step, "cmp_1", "loc_1", tc.cause)
		mapped := MapError(err)
		if mapped.TextCode != tc.textCode {
			t.Fatalf("step %s: expected text code %s, got %s", tc.step, tc.textCode, mapped.TextCode)
		}
		if mapped.Code != tc.status {
			t.Fatalf("step %s: expected status %d, got %d", tc.step, tc.status, mapped.Code)
		}
		if mapped.Metadata["location_id"] != "loc_1" {
			t.Fatalf("step %s: expected location metadata, got %#v", tc.step, mapped.Metadata)
		}
	}
}

func TestParentCredentialMissing_IsDetectableThroughWrapping(t *testing.T) {
	err := fmt.Errorf("outer: %w", newProvisioningError(StepLoadParent, "cmp_1", "loc_1", parentCredentialMissing("cmp_1")))
	if !IsParentCredentialMissing(err) {
		t.Fatalf("expected parent credential missing through wrapping")
	}
	if IsParentCredentialMissing(errors.New("other")) {
		t.Fatalf("expected unrelated error not to match")
	}
}

func TestMapError_FallbackCategories(t *testing.T) {
	if MapError(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
	bad := MapError(errors.New("company id is required"))
	if bad.Category != goerrors.CategoryBadInput || bad.Code != http.StatusBadRequest {
		t.Fatalf("expected bad input mapping, got %#v", bad)
	}
	rich := goerrors.New("conflict", goerrors.CategoryConflict)
	mapped := MapError(rich)
	if mapped.TextCode != ProvisioningErrorLockFailed || mapped.Code != http.StatusConflict {
		t.Fatalf("expected envelope defaults on rich error, got %#v", mapped)
	}
}

func TestPanicError(t *testing.T) {
	err := PanicError("kaboom")
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != ProvisioningErrorUnexpected {
		t.Fatalf("expected unexpected text code, got %v", err)
	}
	if PanicError(errors.New("typed")) == nil {
		t.Fatalf("expected error for typed panic value")
	}
}
