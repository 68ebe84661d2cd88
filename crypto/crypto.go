/*
Package crypto seals connection secrets with AES-GCM so tenant configuration can
be stored without plaintext passwords. Sealed values are base64 text carrying the
SealedPrefix.
*/
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// SealedPrefix marks a value produced by Sealer.Seal
const SealedPrefix = "sealed:"

// EnvKey holds the base64 encoded 32 byte key read by KeyFromEnv
const EnvKey = "DB_ENCRYPTION_KEY"

// Sealer encrypts and decrypts secrets with one key
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer returns a Sealer for a 32 byte key
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != 32 {
		return nil, errors.New("encryption keys must be 32 bytes")
	}
	c, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(c)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: gcm}, nil
}

// KeyFromEnv decodes the EnvKey variable read through getenv. It returns nil when the variable is unset.
func KeyFromEnv(getenv func(string) string) ([]byte, error) {
	encoded := getenv(EnvKey)
	if encoded == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Wrapf(err, "%s is not valid base64", EnvKey)
	}
	return key, nil
}

// GenerateNewEncryptionKey returns a random 32 byte key
func GenerateNewEncryptionKey() ([]byte, error) {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	if err != nil {
		return nil, err
	}
	return key, nil
}

// IsSealed reports whether value was produced by Seal
func IsSealed(value string) bool {
	return strings.HasPrefix(value, SealedPrefix)
}

// Seal encrypts plaintext
func (s *Sealer) Seal(plaintext string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return SealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a sealed value. Values without the SealedPrefix are returned as they are.
func (s *Sealer) Open(value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}

	ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, SealedPrefix))
	if err != nil {
		return "", errors.Wrap(err, "sealed value is not valid base64")
	}

	nonceSize := s.aead.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
