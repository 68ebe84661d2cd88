package crypto

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

var testKey = []byte("the-key-has-to-be-32-bytes-long!")

func TestNewSealer(t *testing.T) {
	testCases := []struct {
		description string
		giveKey     []byte
		wantErr     string
	}{
		// Happy Path
		{
			"Should create a sealer with no error if 32 bytes",
			testKey,
			"",
		},
		// Sad Path
		{
			"Should return error on short key",
			[]byte("key too short"),
			"encryption keys must be 32 bytes",
		},
		{
			"Should return error on long key",
			[]byte("an extremely long, incredibly verbose, definitely not the right size key"),
			"encryption keys must be 32 bytes",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			s, err := NewSealer(tc.giveKey)
			if tc.wantErr != "" {
				assert.EqualError(t, err, tc.wantErr)
				assert.Nil(t, s)
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, s)
		})
	}
}

func TestSealOpen(t *testing.T) {
	assert := assert.New(t)

	s, err := NewSealer(testKey)
	assert.NoError(err)

	sealed, err := s.Seal("s3cret")
	assert.NoError(err)
	assert.True(IsSealed(sealed))
	assert.NotContains(sealed, "s3cret")

	again, err := s.Seal("s3cret")
	assert.NoError(err)
	assert.NotEqual(sealed, again, "every seal uses a fresh nonce")

	opened, err := s.Open(sealed)
	assert.NoError(err)
	assert.Equal("s3cret", opened)

	plain, err := s.Open("not sealed")
	assert.NoError(err)
	assert.Equal("not sealed", plain)
}

func TestOpenErrors(t *testing.T) {
	s, _ := NewSealer(testKey)
	other, _ := NewSealer([]byte(strings.Repeat("x", 32)))
	sealedByOther, _ := other.Seal("s3cret")

	testCases := []struct {
		description string
		give        string
		wantErr     string
	}{
		{"Should fail on invalid base64", SealedPrefix + "%%%", "sealed value is not valid base64"},
		{"Should fail on short ciphertext", SealedPrefix + base64.StdEncoding.EncodeToString([]byte("short")), "ciphertext too short"},
		{"Should fail on a value sealed with another key", sealedByOther, "cipher: message authentication failed"},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			_, err := s.Open(tc.give)
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}

func TestKeyFromEnv(t *testing.T) {
	assert := assert.New(t)

	key, err := KeyFromEnv(func(string) string { return "" })
	assert.NoError(err)
	assert.Nil(key)

	key, err = KeyFromEnv(func(string) string { return base64.StdEncoding.EncodeToString(testKey) })
	assert.NoError(err)
	assert.Equal(testKey, key)

	_, err = KeyFromEnv(func(string) string { return "%%%" })
	assert.Error(err)

	generated, err := GenerateNewEncryptionKey()
	assert.NoError(err)
	assert.Len(generated, 32)
}
