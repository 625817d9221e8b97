package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssuer(t *testing.T) {
	issuer, err := NewIssuer("secret", "study-mate", time.Hour)
	require.NoError(t, err)

	t.Run("round trips the user id", func(t *testing.T) {
		token, err := issuer.Issue("user-1")
		require.NoError(t, err)

		claims, err := issuer.Parse(token)
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.UserID)
		assert.Equal(t, "user-1", claims.Subject)
	})

	t.Run("rejects tokens signed with another secret", func(t *testing.T) {
		other, err := NewIssuer("other", "study-mate", time.Hour)
		require.NoError(t, err)
		token, err := other.Issue("user-1")
		require.NoError(t, err)

		_, err = issuer.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("rejects expired tokens", func(t *testing.T) {
		token, err := issuer.Issue("user-1")
		require.NoError(t, err)

		later := *issuer
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err = later.Parse(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := issuer.Parse("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestNewIssuerRequiresSecret(t *testing.T) {
	_, err := NewIssuer("", "study-mate", time.Hour)
	assert.Error(t, err)
}
