package core

import "testing"

func TestWebhookConfig_AppIDUsesFirstSegment(t *testing.T) {
	cases := []struct {
		clientID  string
		separator string
		want      string
	}{
		{clientID: "64f1a2b3c4-lk93jd8", want: "64f1a2b3c4"},
		{clientID: "  app-a-b ", want: "app"},
		{clientID: "noseparator", want: "noseparator"},
		{clientID: "app.client", separator: ".", want: "app"},
		{clientID: "", want: ""},
	}
	for _, tc := range cases {
		cfg := WebhookConfig{ClientID: tc.clientID, AppIDSeparator: tc.separator}
		if got := cfg.AppID(); got != tc.want {
			t.Fatalf("client id %q: expected app id %q, got %q", tc.clientID, tc.want, got)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate: %v", err)
	}

	cfg.Webhook.LocationPrecedence = LocationPrecedenceReject
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected reject precedence to validate: %v", err)
	}

	cfg.Bulk.Concurrency = -1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected negative concurrency to fail")
	}

	cfg = DefaultConfig()
	cfg.ServiceName = " "
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected blank service name to fail")
	}
}

func TestConfig_Fallbacks(t *testing.T) {
	var webhook WebhookConfig
	if webhook.Header() != DefaultSignatureHeader {
		t.Fatalf("expected default header, got %q", webhook.Header())
	}
	if webhook.Precedence() != LocationPrecedenceLocationIDs {
		t.Fatalf("expected default precedence, got %q", webhook.Precedence())
	}
	if (BulkConfig{}).BatchSize() != DefaultBulkConcurrency {
		t.Fatalf("expected default batch size")
	}
	if (BulkConfig{Concurrency: 2}).BatchSize() != 2 {
		t.Fatalf("expected configured batch size")
	}
}
