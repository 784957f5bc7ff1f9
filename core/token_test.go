package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken(t *testing.T) {
	secret := []byte("secret")
	user := UserWithoutSecrets{Username: "lev", Name: "Lev"}

	t.Run("round trip", func(t *testing.T) {
		token, exp, err := NewToken(user, time.Hour, secret)
		require.Nil(t, err)
		assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

		claims, err := VerifyToken(token, secret)
		require.Nil(t, err)
		assert.Equal(t, "lev", claims.Username)
		assert.Equal(t, "huddle", claims.Issuer)
	})

	t.Run("expired token", func(t *testing.T) {
		token, _, err := NewToken(user, -time.Hour, secret)
		require.Nil(t, err)

		_, err = VerifyToken(token, secret)
		assert.Equal(t, ErrTokenExpired, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, _, err := NewToken(user, time.Hour, secret)
		require.Nil(t, err)

		_, err = VerifyToken(token, []byte("other"))
		assert.Equal(t, ErrTokenInvalid, err)
	})

	t.Run("malformed token", func(t *testing.T) {
		_, err := VerifyToken("not-a-jwt", secret)
		assert.Equal(t, ErrTokenInvalid, err)
	})
}
