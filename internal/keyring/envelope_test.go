package keyring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/fetchai/wallet-browser-extension-sub000/pkg/errors"
)

func TestSealOpenRoundTrip(t *testing.T) {
	plaintext := []byte("glory glance crisp")

	env, err := Seal("correct horse", plaintext)
	require.NoError(t, err)
	require.NotNil(t, env)
	assert.NotEmpty(t, env.Salt)
	assert.NotEmpty(t, env.Nonce)
	assert.NotEqual(t, plaintext, env.Ciphertext)

	got, err := Open("correct horse", env)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestOpenWrongPassword(t *testing.T) {
	env, err := Seal("correct horse", []byte("secret"))
	require.NoError(t, err)

	_, err = Open("battery staple", env)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAuthFailed))
}

func TestOpenTamperedCiphertext(t *testing.T) {
	env, err := Seal("correct horse", []byte("secret"))
	require.NoError(t, err)

	env.Ciphertext[0] ^= 0xff

	_, err = Open("correct horse", env)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAuthFailed))
}

func TestOpenStructurallyInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Envelope)
	}{
		{"nil nonce", func(e *Envelope) { e.Nonce = nil }},
		{"unknown version", func(e *Envelope) { e.Version = 99 }},
		{"unknown kdf", func(e *Envelope) { e.KDF = "scrypt" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Seal("pw", []byte("secret"))
			require.NoError(t, err)

			tt.mutate(env)

			_, err = Open("pw", env)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeBadRequest))
		})
	}
}

func TestSealProducesUniqueSaltAndNonce(t *testing.T) {
	a, err := Seal("pw", []byte("secret"))
	require.NoError(t, err)
	b, err := Seal("pw", []byte("secret"))
	require.NoError(t, err)

	assert.NotEqual(t, a.Salt, b.Salt)
	assert.NotEqual(t, a.Nonce, b.Nonce)
	assert.NotEqual(t, a.Ciphertext, b.Ciphertext)
}

func TestEncodeDecodeEnvelope(t *testing.T) {
	env, err := Seal("pw", []byte("secret"))
	require.NoError(t, err)

	raw, err := EncodeEnvelope(env)
	require.NoError(t, err)

	decoded, err := DecodeEnvelope(raw)
	require.NoError(t, err)
	assert.Equal(t, env, decoded)

	got, err := Open("pw", decoded)
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), got)
}

func TestDecodeEnvelopeGarbage(t *testing.T) {
	_, err := DecodeEnvelope([]byte("not json"))
	require.Error(t, err)
}
