package webhooks

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strings"

	"github.com/goliatone/go-provisioning/core"
)

// SignatureChecker verifies a detached signature over a raw payload.
type SignatureChecker interface {
	Verify(payload []byte, signature string, publicKeyPEM string) bool
}

// SignatureVerifier checks base64 RSA PKCS#1 v1.5 SHA-256 signatures.
// Every failure, including malformed keys and signatures, yields false.
type SignatureVerifier struct {
	Logger core.Logger
}

func NewSignatureVerifier(logger core.Logger) SignatureVerifier {
	return SignatureVerifier{Logger: logger}
}

func (v SignatureVerifier) Verify(payload []byte, signature string, publicKeyPEM string) (valid bool) {
	defer func() {
		if recovered := recover(); recovered != nil {
			v.reject(fmt.Errorf("webhooks: signature verification panicked: %v", recovered))
			valid = false
		}
	}()
	if err := VerifyRSASHA256(payload, signature, publicKeyPEM); err != nil {
		v.reject(err)
		return false
	}
	return true
}

func (v SignatureVerifier) reject(err error) {
	core.NewObserver(v.Logger, nil).Warn(context.Background(), "webhook signature rejected", map[string]any{
		"error": err.Error(),
	})
}

// VerifySignature is SignatureVerifier.Verify without logging.
func VerifySignature(payload []byte, signature string, publicKeyPEM string) bool {
	return SignatureVerifier{}.Verify(payload, signature, publicKeyPEM)
}

// VerifyRSASHA256 returns the reason a signature does not verify, or nil.
func VerifyRSASHA256(payload []byte, signature string, publicKeyPEM string) error {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return fmt.Errorf("webhooks: signature is required")
	}
	key, err := ParsePublicKey(publicKeyPEM)
	if err != nil {
		return err
	}
	decoded, err := decodeSignature(signature)
	if err != nil {
		return err
	}
	digest := sha256.Sum256(payload)
	if err := rsa.VerifyPKCS1v15(key, crypto.SHA256, digest[:], decoded); err != nil {
		return fmt.Errorf("webhooks: signature mismatch: %w", err)
	}
	return nil
}

// ParsePublicKey accepts PKIX "PUBLIC KEY" and PKCS#1 "RSA PUBLIC KEY" PEM
// blocks. Literal "\n" sequences, as found in single line env values, are
// expanded first.
func ParsePublicKey(publicKeyPEM string) (*rsa.PublicKey, error) {
	text := strings.TrimSpace(publicKeyPEM)
	if text == "" {
		return nil, fmt.Errorf("webhooks: public key is required")
	}
	if !strings.Contains(text, "\n") && strings.Contains(text, `\n`) {
		text = strings.ReplaceAll(text, `\n`, "\n")
	}
	block, _ := pem.Decode([]byte(text))
	if block == nil {
		return nil, fmt.Errorf("webhooks: public key is not PEM encoded")
	}

	switch block.Type {
	case "RSA PUBLIC KEY":
		key, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("webhooks: parse pkcs1 public key: %w", err)
		}
		return key, nil
	default:
		parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("webhooks: parse pkix public key: %w", err)
		}
		key, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("webhooks: public key is %T, expected rsa", parsed)
		}
		return key, nil
	}
}

func decodeSignature(signature string) ([]byte, error) {
	if decoded, err := base64.StdEncoding.DecodeString(signature); err == nil {
		return decoded, nil
	}
	decoded, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(signature, "="))
	if err != nil {
		return nil, fmt.Errorf("webhooks: signature is not base64: %w", err)
	}
	return decoded, nil
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

var _ SignatureChecker = SignatureVerifier{}
