package core

import (
	"fmt"
	"strings"
)

const (
	DefaultSignatureHeader = "x-wh-signature"
	DefaultAppIDSeparator  = "-"
	DefaultBulkConcurrency = 5

	// LocationPrecedenceLocationIDs runs the bulk path when an INSTALL carries
	// both locationIds and locationId, ignoring locationId with a warning.
	LocationPrecedenceLocationIDs = "location_ids"
	// LocationPrecedenceReject drops such events as a precondition failure.
	LocationPrecedenceReject = "reject"
)

type WebhookConfig struct {
	ClientID           string `koanf:"client_id" mapstructure:"client_id"`
	AppIDSeparator     string `koanf:"app_id_separator" mapstructure:"app_id_separator"`
	PublicKey          string `koanf:"public_key" mapstructure:"public_key"`
	SignatureHeader    string `koanf:"signature_header" mapstructure:"signature_header"`
	LocationPrecedence string `koanf:"location_precedence" mapstructure:"location_precedence"`
}

type BulkConfig struct {
	Concurrency int `koanf:"concurrency" mapstructure:"concurrency"`
}

type Config struct {
	ServiceName      string        `koanf:"service_name" mapstructure:"service_name"`
	Webhook          WebhookConfig `koanf:"webhook" mapstructure:"webhook"`
	Bulk             BulkConfig    `koanf:"bulk" mapstructure:"bulk"`
	SerializeTenants bool          `koanf:"serialize_tenants" mapstructure:"serialize_tenants"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "provisioning",
		Webhook: WebhookConfig{
			AppIDSeparator:     DefaultAppIDSeparator,
			SignatureHeader:    DefaultSignatureHeader,
			LocationPrecedence: LocationPrecedenceLocationIDs,
		},
		Bulk: BulkConfig{
			Concurrency: DefaultBulkConcurrency,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Bulk.Concurrency < 0 {
		return fmt.Errorf("core: bulk.concurrency must not be negative")
	}
	switch strings.TrimSpace(c.Webhook.LocationPrecedence) {
	case "", LocationPrecedenceLocationIDs, LocationPrecedenceReject:
	default:
		return fmt.Errorf("core: invalid webhook.location_precedence %q", c.Webhook.LocationPrecedence)
	}
	return nil
}

// AppID is the application identifier embedded in the configured client id:
// the segment before the first separator.
func (c WebhookConfig) AppID() string {
	clientID := strings.TrimSpace(c.ClientID)
	separator := c.AppIDSeparator
	if separator == "" {
		separator = DefaultAppIDSeparator
	}
	appID, _, _ := strings.Cut(clientID, separator)
	return strings.TrimSpace(appID)
}

func (c WebhookConfig) Header() string {
	if header := strings.TrimSpace(c.SignatureHeader); header != "" {
		return header
	}
	return DefaultSignatureHeader
}

func (c WebhookConfig) Precedence() string {
	if precedence := strings.TrimSpace(c.LocationPrecedence); precedence != "" {
		return precedence
	}
	return LocationPrecedenceLocationIDs
}

func (c BulkConfig) BatchSize() int {
	if c.Concurrency > 0 {
		return c.Concurrency
	}
	return DefaultBulkConcurrency
}
