package security

import (
	"bytes"
	"context"
	"testing"
)

func TestAppKeySecretProvider_EncryptDecryptRoundTrip(t *testing.T) {
	provider, err := NewAppKeySecretProviderFromString("super-secret-test-key", WithKeyID("provisioning-v1"), WithVersion(3))
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	plaintext := []byte("location-token-123")
	encrypted, err := provider.Encrypt(context.Background(), plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Contains(encrypted, plaintext) {
		t.Fatalf("expected encrypted payload to hide plaintext")
	}
	if !bytes.HasPrefix(encrypted, []byte(envelopePrefix)) {
		t.Fatalf("expected envelope prefix")
	}

	meta, err := ParseEnvelopeMetadata(encrypted)
	if err != nil {
		t.Fatalf("parse metadata: %v", err)
	}
	if meta.KeyID != "provisioning-v1" || meta.Version != 3 || meta.Algorithm != envelopeAlgorithm {
		t.Fatalf("unexpected metadata %#v", meta)
	}

	decrypted, err := provider.Decrypt(context.Background(), encrypted)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Fatalf("expected roundtrip plaintext; got %q", string(decrypted))
	}
}

func TestAppKeySecretProvider_RejectsUnknownKey(t *testing.T) {
	issuer, err := NewAppKeySecretProviderFromString("super-secret-test-key", WithKeyID("provisioning-v1"), WithVersion(1))
	if err != nil {
		t.Fatalf("new issuer provider: %v", err)
	}
	receiver, err := NewAppKeySecretProviderFromString("super-secret-test-key", WithKeyID("provisioning-v2"), WithVersion(2))
	if err != nil {
		t.Fatalf("new receiver provider: %v", err)
	}

	encrypted, err := issuer.Encrypt(context.Background(), []byte("payload"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := receiver.Decrypt(context.Background(), encrypted); err == nil {
		t.Fatalf("expected unknown key error")
	}
}

func TestAppKeySecretProvider_DecryptsWithRetiredKey(t *testing.T) {
	oldKey := "old-application-key"
	previous, err := NewAppKeySecretProviderFromString(oldKey, WithKeyID("app-key"), WithVersion(1))
	if err != nil {
		t.Fatalf("previous provider: %v", err)
	}
	sealed, err := previous.Encrypt(context.Background(), []byte("legacy-token"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	current, err := NewAppKeySecretProviderFromString("new-application-key",
		WithVersion(2),
		WithRetiredKey("app-key", 1, []byte(oldKey)),
	)
	if err != nil {
		t.Fatalf("current provider: %v", err)
	}
	if !current.NeedsRotation(sealed) {
		t.Fatalf("expected legacy envelope to need rotation")
	}
	plaintext, err := current.Decrypt(context.Background(), sealed)
	if err != nil {
		t.Fatalf("decrypt with retired key: %v", err)
	}
	if string(plaintext) != "legacy-token" {
		t.Fatalf("unexpected plaintext %q", plaintext)
	}

	resealed, err := current.Encrypt(context.Background(), plaintext)
	if err != nil {
		t.Fatalf("re-encrypt: %v", err)
	}
	if current.NeedsRotation(resealed) {
		t.Fatalf("expected fresh envelope under active key")
	}
}

func TestAppKeySecretProvider_RejectsTamperedEnvelope(t *testing.T) {
	provider, err := NewAppKeySecretProviderFromString("super-secret-test-key")
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	if _, err := provider.Decrypt(context.Background(), []byte("plain-token")); err == nil {
		t.Fatalf("expected missing prefix error")
	}
	if _, err := provider.Decrypt(context.Background(), []byte(envelopePrefix+`{"kid":"app-key","ver":1,"alg":"rot13","ciphertext":"x"}`)); err == nil {
		t.Fatalf("expected unsupported algorithm error")
	}
	if _, err := NewAppKeySecretProviderFromString(" "); err == nil {
		t.Fatalf("expected empty key error")
	}
	if _, err := NewAppKeySecretProviderFromString("k", WithRetiredKey("", 0, nil)); err == nil {
		t.Fatalf("expected invalid retired key error")
	}
}
