package security

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/goliatone/go-provisioning/core"
)

type Option func(*AppKeySecretProvider)

type appKey struct {
	id       string
	version  int
	material []byte
}

func (k appKey) ref() string {
	return fmt.Sprintf("%s@%d", k.id, k.version)
}

// AppKeySecretProvider seals tokens with AES-GCM under an application key.
// Envelopes written under a retired key stay readable while that key is
// registered through WithRetiredKey.
type AppKeySecretProvider struct {
	active  appKey
	retired map[string]appKey
	err     error
}

func WithKeyID(id string) Option {
	return func(provider *AppKeySecretProvider) {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			provider.active.id = trimmed
		}
	}
}

func WithVersion(version int) Option {
	return func(provider *AppKeySecretProvider) {
		if version > 0 {
			provider.active.version = version
		}
	}
}

func WithRetiredKey(id string, version int, keyMaterial []byte) Option {
	return func(provider *AppKeySecretProvider) {
		key := bytes.TrimSpace(keyMaterial)
		id = strings.TrimSpace(id)
		if id == "" || version <= 0 || len(key) == 0 {
			provider.err = fmt.Errorf("security: retired key requires id, version and material")
			return
		}
		retired := appKey{id: id, version: version, material: normalizeKey(key)}
		provider.retired[retired.ref()] = retired
	}
}

func NewAppKeySecretProvider(keyMaterial []byte, opts ...Option) (*AppKeySecretProvider, error) {
	key := bytes.TrimSpace(keyMaterial)
	if len(key) == 0 {
		return nil, fmt.Errorf("security: key material is required")
	}
	provider := &AppKeySecretProvider{
		active: appKey{
			id:       "app-key",
			version:  1,
			material: normalizeKey(key),
		},
		retired: map[string]appKey{},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(provider)
	}
	if provider.err != nil {
		return nil, provider.err
	}
	return provider, nil
}

func NewAppKeySecretProviderFromString(key string, opts ...Option) (*AppKeySecretProvider, error) {
	return NewAppKeySecretProvider([]byte(key), opts...)
}

func (p *AppKeySecretProvider) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("security: secret provider is nil")
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("security: plaintext is required")
	}
	gcm, err := newGCM(p.active.material)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("security: nonce generation failed: %w", err)
	}
	sealed := gcm.Seal(nil, nonce, plaintext, []byte(p.active.ref()))
	return encodeEnvelope(envelope{
		KeyID:      p.active.id,
		Version:    p.active.version,
		Algorithm:  envelopeAlgorithm,
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(sealed),
	})
}

func (p *AppKeySecretProvider) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("security: secret provider is nil")
	}
	parsed, err := decodeEnvelope(ciphertext)
	if err != nil {
		return nil, err
	}
	key, err := p.keyFor(parsed)
	if err != nil {
		return nil, err
	}
	nonce, err := decodeBase64("nonce", parsed.Nonce)
	if err != nil {
		return nil, err
	}
	sealed, err := decodeBase64("ciphertext payload", parsed.Ciphertext)
	if err != nil {
		return nil, err
	}
	gcm, err := newGCM(key.material)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("security: invalid nonce size %d", len(nonce))
	}
	plaintext, err := gcm.Open(nil, nonce, sealed, []byte(key.ref()))
	if err != nil {
		return nil, fmt.Errorf("security: decrypt payload: %w", err)
	}
	return plaintext, nil
}

// NeedsRotation reports whether ciphertext was sealed under a key other than
// the active one.
func (p *AppKeySecretProvider) NeedsRotation(ciphertext []byte) bool {
	meta, err := ParseEnvelopeMetadata(ciphertext)
	if err != nil || p == nil {
		return false
	}
	return meta.KeyID != p.active.id || meta.Version != p.active.version
}

func (p *AppKeySecretProvider) KeyID() string {
	if p == nil {
		return ""
	}
	return p.active.id
}

func (p *AppKeySecretProvider) Version() int {
	if p == nil {
		return 0
	}
	return p.active.version
}

func (p *AppKeySecretProvider) keyFor(env envelope) (appKey, error) {
	if env.KeyID == p.active.id && env.Version == p.active.version {
		return p.active, nil
	}
	ref := fmt.Sprintf("%s@%d", env.KeyID, env.Version)
	if key, ok := p.retired[ref]; ok {
		return key, nil
	}
	return appKey{}, fmt.Errorf("security: unknown key %s (active %s)", ref, p.active.ref())
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("security: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("security: create gcm: %w", err)
	}
	return gcm, nil
}

// normalizeKey keeps AES sized keys as-is and hashes anything else to 32 bytes.
func normalizeKey(value []byte) []byte {
	if len(value) == 16 || len(value) == 24 || len(value) == 32 {
		key := make([]byte, len(value))
		copy(key, value)
		return key
	}
	sum := sha256.Sum256(value)
	return sum[:]
}

var _ core.SecretProvider = (*AppKeySecretProvider)(nil)
