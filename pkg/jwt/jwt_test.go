package jwt

import (
	"errors"
	"testing"
	"time"

	"github.com/mbeoliero/parley/pkg/errcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToken(t *testing.T) {
	token, err := GenerateToken(42, "s3cret", "marketplace", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token, "s3cret", "marketplace")
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserId)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := ParseToken(token, "other", "")
		assert.True(t, errors.Is(err, errcode.ErrTokenInvalid))
	})

	t.Run("wrong issuer", func(t *testing.T) {
		_, err := ParseToken(token, "s3cret", "someone-else")
		assert.True(t, errors.Is(err, errcode.ErrTokenInvalid))
	})

	t.Run("expired", func(t *testing.T) {
		expired, err := GenerateToken(42, "s3cret", "", -time.Minute)
		require.NoError(t, err)
		_, err = ParseToken(expired, "s3cret", "")
		assert.True(t, errors.Is(err, errcode.ErrTokenExpired))
	})
}
