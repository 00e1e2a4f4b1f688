package auth

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licensegate/internal/store"
)

func TestTokenRoundtrip(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)

	token, err := tm.GenerateToken("alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := tm.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "licensegate", claims.Issuer)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestVerifyTokenRejections(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)

	t.Run("garbage input", func(t *testing.T) {
		_, err := tm.VerifyToken("not.a.token")
		assert.Error(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokenManager("other-secret", time.Hour)
		token, err := other.GenerateToken("alice")
		require.NoError(t, err)

		_, err = tm.VerifyToken(token)
		assert.Error(t, err)
	})

	t.Run("expired token", func(t *testing.T) {
		expired := NewTokenManager("test-secret", -time.Minute)
		token, err := expired.GenerateToken("alice")
		require.NoError(t, err)

		_, err = tm.VerifyToken(token)
		assert.Error(t, err)
	})
}

func TestLoadOrCreateSecret(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "licenses.db"))
	require.NoError(t, err)
	defer st.Close()

	first, err := LoadOrCreateSecret(st)
	require.NoError(t, err)
	assert.Len(t, first, 64) // 32 random bytes hex-encoded

	second, err := LoadOrCreateSecret(st)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)

	assert.True(t, VerifyPassword("hunter22", hash))
	assert.False(t, VerifyPassword("wrong", hash))

	t.Run("hashes are salted", func(t *testing.T) {
		other, err := HashPassword("hunter22")
		require.NoError(t, err)
		assert.NotEqual(t, hash, other)
	})
}
