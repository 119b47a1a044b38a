package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokens(t *testing.T) {
	tokens := NewTokens([]byte("kitchen-secret"))

	signed, err := tokens.Issue("chef-1", time.Hour)
	require.NoError(t, err)

	playerID, err := tokens.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "chef-1", playerID)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewTokens([]byte("other")).Verify(signed)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("expired", func(t *testing.T) {
		old := NewTokens([]byte("kitchen-secret"))
		old.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		expired, err := old.Issue("chef-1", time.Hour)
		require.NoError(t, err)

		_, err = tokens.Verify(expired)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("empty and garbage", func(t *testing.T) {
		_, err := tokens.Verify("")
		assert.ErrorIs(t, err, ErrUnauthorized)
		_, err = tokens.Verify("not.a.token")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("missing userId claim", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject: "chef-1",
		}).SignedString([]byte("kitchen-secret"))
		require.NoError(t, err)

		_, err = tokens.Verify(raw)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("other algorithm", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{UserID: "chef-1"}).
			SignedString([]byte("kitchen-secret"))
		require.NoError(t, err)

		_, err = tokens.Verify(raw)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}
