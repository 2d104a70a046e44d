// Package highlevel exchanges company credentials for location scoped tokens
// against the platform's OAuth API.
package highlevel

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-provisioning/core"
)

const (
	DefaultBaseURL    = "https://services.leadconnectorhq.com"
	DefaultAPIVersion = "2021-07-28"
	LocationTokenPath = "/oauth/locationToken"

	defaultRequestTimeout = 30 * time.Second
)

type Config struct {
	BaseURL    string        `koanf:"base_url" mapstructure:"base_url"`
	APIVersion string        `koanf:"api_version" mapstructure:"api_version"`
	Timeout    time.Duration `koanf:"timeout" mapstructure:"timeout"`
}

type tokenPayload struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	UserType     string `json:"userType"`
	CompanyID    string `json:"companyId"`
	LocationID   string `json:"locationId"`
	UserID       string `json:"userId"`
}

type errorPayload struct {
	StatusCode int    `json:"statusCode"`
	Message    any    `json:"message"`
	Error      string `json:"error"`
}

func (p errorPayload) describe() string {
	switch msg := p.Message.(type) {
	case string:
		if strings.TrimSpace(msg) != "" {
			return strings.TrimSpace(msg)
		}
	case []any:
		parts := make([]string, 0, len(msg))
		for _, item := range msg {
			parts = append(parts, fmt.Sprint(item))
		}
		if len(parts) > 0 {
			return strings.Join(parts, "; ")
		}
	}
	if strings.TrimSpace(p.Error) != "" {
		return strings.TrimSpace(p.Error)
	}
	return "unknown error"
}

// Exchanger implements core.LocationTokenExchanger over resty.
type Exchanger struct {
	client     *resty.Client
	apiVersion string
	now        func() time.Time
}

type Option func(*Exchanger)

// WithHTTPClient swaps the underlying transport client.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Exchanger) {
		if client != nil {
			baseURL := e.client.BaseURL
			e.client = resty.NewWithClient(client).SetBaseURL(baseURL)
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Exchanger) {
		if now != nil {
			e.now = now
		}
	}
}

func NewExchanger(cfg Config, opts ...Option) *Exchanger {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	apiVersion := strings.TrimSpace(cfg.APIVersion)
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	exchanger := &Exchanger{
		client:     resty.New().SetBaseURL(baseURL),
		apiVersion: apiVersion,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(exchanger)
		}
	}
	exchanger.client.
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return exchanger
}

func (e *Exchanger) ExchangeLocationToken(ctx context.Context, req core.LocationTokenRequest) (core.Credential, error) {
	if e == nil || e.client == nil {
		return core.Credential{}, fmt.Errorf("highlevel: exchanger is not configured")
	}
	companyToken := strings.TrimSpace(req.Parent.AccessToken)
	if companyToken == "" {
		return core.Credential{}, rejected(http.StatusUnauthorized, "company access token is empty", req)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var payload tokenPayload
	var failure errorPayload
	resp, err := e.client.R().
		SetContext(ctx).
		SetAuthToken(companyToken).
		SetHeader("Version", e.apiVersion).
		SetFormData(map[string]string{
			"companyId":  req.CompanyID,
			"locationId": req.LocationID,
		}).
		SetResult(&payload).
		SetError(&failure).
		Post(LocationTokenPath)
	if err != nil {
		return core.Credential{}, goerrors.Wrap(err, goerrors.CategoryOperation, "highlevel: location token request failed").
			WithCode(http.StatusBadGateway).
			WithTextCode(core.ProvisioningErrorOperationFailed)
	}
	if resp.IsError() {
		return core.Credential{}, rejected(resp.StatusCode(), failure.describe(), req)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return core.Credential{}, rejected(resp.StatusCode(), "response missing access token", req)
	}

	credential := core.Credential{
		TenantID:     req.LocationID,
		TenantType:   core.TenantTypeLocation,
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		TokenType:    payload.TokenType,
		Scope:        payload.Scope,
		Metadata: map[string]any{
			"company_id": req.CompanyID,
		},
	}
	if payload.ExpiresIn > 0 {
		expiresAt := e.now().Add(time.Duration(payload.ExpiresIn) * time.Second)
		credential.ExpiresAt = &expiresAt
	}
	if payload.UserType != "" {
		credential.Metadata["user_type"] = payload.UserType
	}
	if payload.UserID != "" {
		credential.Metadata["user_id"] = payload.UserID
	}
	return credential, nil
}

func rejected(status int, reason string, req core.LocationTokenRequest) error {
	if status == 0 {
		status = http.StatusUnauthorized
	}
	err := goerrors.New("highlevel: location token exchange rejected: "+reason, goerrors.CategoryAuth).
		WithCode(status).
		WithTextCode(core.ProvisioningErrorTokenExchangeRejected)
	err.WithMetadata(map[string]any{
		"status":      status,
		"company_id":  req.CompanyID,
		"location_id": req.LocationID,
	})
	return err
}

var _ core.LocationTokenExchanger = (*Exchanger)(nil)
