package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, err := NewEncryptor("app-secret")
	require.NoError(t, err)

	plaintext := []byte(`{"configurations":[]}`)
	blob, err := enc.Encrypt(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, blob)

	got, err := enc.Decrypt(blob)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestDecryptRejectsTamperedBlob(t *testing.T) {
	enc, err := NewEncryptor("app-secret")
	require.NoError(t, err)

	blob, err := enc.Encrypt([]byte("payload"))
	require.NoError(t, err)
	blob[len(blob)-1] ^= 0xff

	_, err = enc.Decrypt(blob)
	assert.Error(t, err)
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	enc1, err := NewEncryptor("secret-one")
	require.NoError(t, err)
	enc2, err := NewEncryptor("secret-two")
	require.NoError(t, err)

	blob, err := enc1.Encrypt([]byte("payload"))
	require.NoError(t, err)

	_, err = enc2.Decrypt(blob)
	assert.Error(t, err)
}

func TestDecryptRejectsShortCiphertext(t *testing.T) {
	enc, err := NewEncryptor("app-secret")
	require.NoError(t, err)

	_, err = enc.Decrypt([]byte("short"))
	assert.ErrorIs(t, err, ErrCiphertextTooShort)
}

func TestNonceUniqueness(t *testing.T) {
	enc, err := NewEncryptor("app-secret")
	require.NoError(t, err)

	a, err := enc.Encrypt([]byte("payload"))
	require.NoError(t, err)
	b, err := enc.Encrypt([]byte("payload"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
