package vault

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/article-engine/internal/types"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)
	v, err := New(key)
	require.NoError(t, err)
	return v
}

func TestVault_SealOpenRoundtrip(t *testing.T) {
	v := newTestVault(t)

	tests := []string{
		"application-password-1234",
		"",
		"unicode: caffè ☕",
		"a very long secret that spans more than one block of the underlying cipher just to be sure",
	}

	for _, secret := range tests {
		sealed, err := v.Seal(secret)
		require.NoError(t, err)
		assert.NotEqual(t, secret, sealed)

		opened, err := v.Open(sealed)
		require.NoError(t, err)
		assert.Equal(t, secret, opened)
	}
}

func TestVault_SealIsNondeterministic(t *testing.T) {
	v := newTestVault(t)

	first, err := v.Seal("secret")
	require.NoError(t, err)
	second, err := v.Seal("secret")
	require.NoError(t, err)
	assert.NotEqual(t, first, second, "each seal should use a fresh nonce")
}

func TestVault_OpenWithWrongKey(t *testing.T) {
	sealed, err := newTestVault(t).Seal("secret")
	require.NoError(t, err)

	other := newTestVault(t)
	_, err = other.Open(sealed)
	var credErr *types.ErrCredential
	require.ErrorAs(t, err, &credErr)
}

func TestVault_OpenMalformedInput(t *testing.T) {
	v := newTestVault(t)

	tests := []struct {
		name   string
		sealed string
	}{
		{"not base64", "%%% not base64 %%%"},
		{"too short", base64.StdEncoding.EncodeToString([]byte("short"))},
		{"corrupted", func() string {
			sealed, _ := v.Seal("secret")
			raw, _ := base64.StdEncoding.DecodeString(sealed)
			raw[len(raw)-1] ^= 0xff
			return base64.StdEncoding.EncodeToString(raw)
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Open(tt.sealed)
			var credErr *types.ErrCredential
			require.ErrorAs(t, err, &credErr)
		})
	}
}

func TestNew_InvalidKeys(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"not base64", "***"},
		{"wrong length", base64.StdEncoding.EncodeToString([]byte("too short"))},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.key)
			var credErr *types.ErrCredential
			require.ErrorAs(t, err, &credErr)
		})
	}
}

func TestNewFromEnv(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	t.Setenv("VAULT_KEY", key)
	v, err := NewFromEnv()
	require.NoError(t, err)
	assert.NotNil(t, v)

	t.Setenv("VAULT_KEY", "")
	_, err = NewFromEnv()
	var credErr *types.ErrCredential
	require.ErrorAs(t, err, &credErr)
}
