// Package vault encrypts and decrypts every secret the service stores:
// platform credentials and AI provider keys. One key per process.
package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/hkdf"

	"github.com/maheshrc27/postflow/internal/apperr"
	"github.com/maheshrc27/postflow/internal/models"
)

const keySize = 32

var hkdfInfo = []byte("postflow credential vault v1")

// Vault is safe for concurrent use; the AEAD is immutable after New.
type Vault struct {
	aead     cipher.AEAD
	validate *validator.Validate
}

// New builds a Vault from configured key material. A base64 string that
// decodes to 32 bytes is used as-is; any other secret is stretched with
// HKDF-SHA256.
func New(secret string) (*Vault, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("vault key is empty")
	}

	key, err := deriveKey(secret)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating gcm: %w", err)
	}

	return &Vault{aead: aead, validate: validator.New()}, nil
}

func deriveKey(secret string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding} {
		if raw, err := enc.DecodeString(secret); err == nil && len(raw) == keySize {
			return raw, nil
		}
	}

	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, hkdfInfo), key); err != nil {
		return nil, fmt.Errorf("deriving vault key: %w", err)
	}
	return key, nil
}

// GenerateKey returns a fresh random key suitable for VAULT_KEY.
func GenerateKey() (string, error) {
	b := make([]byte, keySize)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// Encrypt returns base64(nonce || ciphertext).
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		slog.Error("vault nonce generation failed", "error", err)
		return "", err
	}

	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (v *Vault) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", &apperr.DecryptionError{Cause: errors.New("ciphertext is empty")}
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", &apperr.DecryptionError{Cause: fmt.Errorf("decoding ciphertext: %w", err)}
	}

	nonceSize := v.aead.NonceSize()
	if len(data) < nonceSize+v.aead.Overhead() {
		return "", &apperr.DecryptionError{Cause: errors.New("ciphertext too short")}
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", &apperr.DecryptionError{Cause: err}
	}
	return string(plaintext), nil
}

// EncryptCredential validates and seals a platform credential.
func (v *Vault) EncryptCredential(cred *models.Credential) (string, error) {
	if err := v.validate.Struct(cred); err != nil {
		return "", apperr.InvalidInput("credential", "%v", err)
	}
	raw, err := json.Marshal(cred)
	if err != nil {
		return "", err
	}
	return v.Encrypt(string(raw))
}

// DecryptCredential opens a sealed credential. The plaintext must be a JSON
// object matching models.Credential; nothing else is accepted.
func (v *Vault) DecryptCredential(ciphertext string) (*models.Credential, error) {
	plaintext, err := v.Decrypt(ciphertext)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(plaintext)))
	dec.DisallowUnknownFields()

	var cred models.Credential
	if err := dec.Decode(&cred); err != nil {
		return nil, &apperr.DecryptionError{Cause: fmt.Errorf("credential is not structured: %w", err)}
	}
	if err := v.validate.Struct(&cred); err != nil {
		return nil, &apperr.DecryptionError{Cause: fmt.Errorf("credential failed validation: %w", err)}
	}
	return &cred, nil
}
