package highlevel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-provisioning/core"
)

func TestExchanger_PostsLocationTokenForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != LocationTokenPath {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer company-token" {
			t.Fatalf("unexpected authorization %q", got)
		}
		if got := r.Header.Get("Version"); got != DefaultAPIVersion {
			t.Fatalf("unexpected version header %q", got)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostForm.Get("companyId") != "cmp_1" || r.PostForm.Get("locationId") != "loc_1" {
			t.Fatalf("unexpected form %v", r.PostForm)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "location-token",
			"refresh_token": "location-refresh",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"userType":      "Location",
			"locationId":    "loc_1",
		})
	}))
	defer server.Close()

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	exchanger := NewExchanger(Config{BaseURL: server.URL + "/"}, WithClock(func() time.Time { return fixed }))

	credential, err := exchanger.ExchangeLocationToken(context.Background(), core.LocationTokenRequest{
		CompanyID:  "cmp_1",
		LocationID: "loc_1",
		Parent:     core.Credential{TenantID: "cmp_1", AccessToken: "company-token"},
	})
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if credential.AccessToken != "location-token" || credential.TenantID != "loc_1" {
		t.Fatalf("unexpected credential %#v", credential)
	}
	if credential.TenantType != core.TenantTypeLocation {
		t.Fatalf("expected location tenant type, got %q", credential.TenantType)
	}
	if credential.ExpiresAt == nil || !credential.ExpiresAt.Equal(fixed.Add(time.Hour)) {
		t.Fatalf("unexpected expiry %v", credential.ExpiresAt)
	}
	if credential.Metadata["user_type"] != "Location" {
		t.Fatalf("expected user type metadata, got %#v", credential.Metadata)
	}
}

func TestExchanger_RejectionCarriesStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"statusCode":403,"message":"The token is not authorized for this scope."}`))
	}))
	defer server.Close()

	exchanger := NewExchanger(Config{BaseURL: server.URL})
	_, err := exchanger.ExchangeLocationToken(context.Background(), core.LocationTokenRequest{
		CompanyID:  "cmp_1",
		LocationID: "loc_1",
		Parent:     core.Credential{AccessToken: "company-token"},
	})

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %v", err)
	}
	if rich.Category != goerrors.CategoryAuth || rich.Code != http.StatusForbidden {
		t.Fatalf("unexpected category/code %q %d", rich.Category, rich.Code)
	}
	if rich.TextCode != core.ProvisioningErrorTokenExchangeRejected {
		t.Fatalf("unexpected text code %q", rich.TextCode)
	}
}

func TestExchanger_EmptyParentTokenIsRejectedWithoutCall(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	_, err := NewExchanger(Config{BaseURL: server.URL}).ExchangeLocationToken(context.Background(), core.LocationTokenRequest{
		CompanyID:  "cmp_1",
		LocationID: "loc_1",
	})
	if err == nil {
		t.Fatalf("expected rejection for empty company token")
	}
	if calls != 0 {
		t.Fatalf("expected no upstream call, got %d", calls)
	}
}

func TestExchanger_MissingAccessTokenIsRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token_type":"Bearer"}`))
	}))
	defer server.Close()

	_, err := NewExchanger(Config{BaseURL: server.URL}, WithHTTPClient(server.Client())).ExchangeLocationToken(context.Background(), core.LocationTokenRequest{
		CompanyID:  "cmp_1",
		LocationID: "loc_1",
		Parent:     core.Credential{AccessToken: "company-token"},
	})
	if err == nil {
		t.Fatalf("expected rejection for missing access token")
	}
}
