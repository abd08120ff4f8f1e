// Package vault encrypts integration credential blobs at rest with
// AES-256-GCM. Ciphertext is stored as hex "iv:authTag:ciphertext", the
// layout already used by existing rows, so values written by earlier
// deployments decrypt unchanged.
//
// Values that are not in that layout (legacy plaintext JSON, or anything
// without ':' separators) pass through Decrypt untouched, and Encrypt leaves
// already-encrypted values alone, so neither call can double-apply.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"

	"hostel-ingest-service/pkg/logger"
)

const (
	keySize = 32
	ivSize  = 16
	tagSize = 16

	// scrypt parameters for passphrase keys
	scryptN = 16384
	scryptR = 8
	scryptP = 1

	// DefaultSalt is the scrypt salt of rows written before the salt became
	// configurable. Passphrase keys derived with it decrypt those rows.
	DefaultSalt = "salt"
)

// ErrDisabled is returned when an encrypted value is read by a process
// running without a key.
var ErrDisabled = errors.New("credential encryption disabled: no key configured")

// DecryptionError reports a corrupted, tampered or undecryptable value.
type DecryptionError struct {
	Reason string
	Err    error
}

func (e *DecryptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decrypt credentials: %s: %v", e.Reason, e.Err)
	}
	return "decrypt credentials: " + e.Reason
}

func (e *DecryptionError) Unwrap() error { return e.Err }

// Vault holds the process-wide credential key
type Vault struct {
	aead cipher.AEAD
}

// New builds a vault from the configured secret. A 64-character hex secret is
// used as the raw 256-bit key; any other non-empty secret is stretched with
// scrypt over salt, DefaultSalt when empty. An empty secret returns a
// disabled vault that stores and reads values in clear, and logs that
// degraded mode once.
func New(secret, salt string, log logger.Logger) (*Vault, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		log.Warn("CREDENTIALS_ENCRYPTION_KEY not set, credentials are stored and read in clear")
		return &Vault{}, nil
	}
	if salt == "" {
		salt = DefaultSalt
	}
	key, err := deriveKey(secret, salt)
	if err != nil {
		return nil, err
	}
	return NewWithKey(key)
}

// NewWithKey builds a vault from a raw 32-byte key.
func NewWithKey(key []byte) (*Vault, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("credential key must be %d bytes, got %d", keySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return &Vault{aead: aead}, nil
}

func deriveKey(secret, salt string) ([]byte, error) {
	if len(secret) == keySize*2 {
		if key, err := hex.DecodeString(secret); err == nil {
			return key, nil
		}
	}
	key, err := scrypt.Key([]byte(secret), []byte(salt), scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("derive credential key: %w", err)
	}
	return key, nil
}

// Enabled reports whether a key is configured.
func (v *Vault) Enabled() bool {
	return v != nil && v.aead != nil
}

// Encrypt seals plaintext. Already-encrypted input is returned unchanged;
// with no key the plaintext is returned as-is.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if !v.Enabled() || IsEncrypted(plaintext) {
		return plaintext, nil
	}
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}
	sealed := v.aead.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]
	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(ciphertext), nil
}

// Decrypt opens a value produced by Encrypt. Plaintext input passes
// through. Any authentication failure or malformed ciphertext returns a
// *DecryptionError and no data.
func (v *Vault) Decrypt(value string) (string, error) {
	if isPlaintext(value) {
		return value, nil
	}
	iv, tag, ciphertext, err := split(value)
	if err != nil {
		return "", err
	}
	if !v.Enabled() {
		return "", &DecryptionError{Reason: "value is encrypted", Err: ErrDisabled}
	}
	plain, err := v.aead.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return "", &DecryptionError{Reason: "authentication failed", Err: err}
	}
	return string(plain), nil
}

// IsEncrypted reports whether value has the iv:authTag:ciphertext layout.
func IsEncrypted(value string) bool {
	if isPlaintext(value) {
		return false
	}
	_, _, _, err := split(value)
	return err == nil
}

func isPlaintext(value string) bool {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || !strings.Contains(trimmed, ":") {
		return true
	}
	return strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")
}

func split(value string) (iv, tag, ciphertext []byte, err error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 3 {
		return nil, nil, nil, &DecryptionError{Reason: fmt.Sprintf("expected 3 segments, got %d", len(parts))}
	}
	if iv, err = hex.DecodeString(parts[0]); err != nil || len(iv) != ivSize {
		return nil, nil, nil, &DecryptionError{Reason: "malformed iv", Err: err}
	}
	if tag, err = hex.DecodeString(parts[1]); err != nil || len(tag) != tagSize {
		return nil, nil, nil, &DecryptionError{Reason: "malformed auth tag", Err: err}
	}
	if ciphertext, err = hex.DecodeString(parts[2]); err != nil {
		return nil, nil, nil, &DecryptionError{Reason: "malformed ciphertext", Err: err}
	}
	return iv, tag, ciphertext, nil
}
