package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/internal/repository"
	"github.com/d60-Lab/yatube/internal/testutil"
)

func TestJWTAuthenticator(t *testing.T) {
	db := testutil.NewDB(t)
	users := repository.NewUserRepository(db)
	alice := testutil.CreateUser(t, db, "alice")
	a := NewJWTAuthenticator("secret", time.Hour, users)
	ctx := context.Background()

	token, err := a.IssueToken(alice)
	require.NoError(t, err)

	got, err := a.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTAuthenticator("other", time.Hour, users)
		_, err := other.Authenticate(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		late := NewJWTAuthenticator("secret", time.Hour, users)
		late.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := late.Authenticate(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := a.Authenticate(ctx, "not-a-jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unknown subject", func(t *testing.T) {
		ghost, err := a.IssueToken(&model.User{ID: "ghost"})
		require.NoError(t, err)
		_, err = a.Authenticate(ctx, ghost)
		assert.ErrorIs(t, err, ErrUnknownUser)
	})

	t.Run("other algorithm rejected", func(t *testing.T) {
		none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: alice.ID}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = a.Authenticate(ctx, none)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
