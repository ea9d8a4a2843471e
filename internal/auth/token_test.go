package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	i, err := NewIssuer(testSecret, time.Hour)
	require.NoError(t, err)
	return i
}

func TestNewIssuer_RejectsShortSecret(t *testing.T) {
	_, err := NewIssuer("short", time.Hour)
	assert.Error(t, err)

	_, err = NewIssuer(testSecret, 0)
	assert.Error(t, err)
}

func TestIssuer_SignAndVerify(t *testing.T) {
	i := newTestIssuer(t)

	token, err := i.Sign("u1", "ada@example.com")
	require.NoError(t, err)

	claims, err := i.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, "u1", claims.Subject)
}

func TestIssuer_VerifyRejects(t *testing.T) {
	i := newTestIssuer(t)
	token, err := i.Sign("u1", "ada@example.com")
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		later := newTestIssuer(t)
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := later.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("other secret", func(t *testing.T) {
		other, err := NewIssuer(strings.Repeat("x", MinSecretLength), time.Hour)
		require.NoError(t, err)
		_, err = other.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := i.Verify("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing user claims", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = i.Verify(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("state is not an api token", func(t *testing.T) {
		state, err := i.SignState()
		require.NoError(t, err)
		_, err = i.Verify(state)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestIssuer_State(t *testing.T) {
	i := newTestIssuer(t)

	state, err := i.SignState()
	require.NoError(t, err)
	assert.NoError(t, i.VerifyState(state))

	token, err := i.Sign("u1", "ada@example.com")
	require.NoError(t, err)
	assert.ErrorIs(t, i.VerifyState(token), ErrInvalidToken)

	late := newTestIssuer(t)
	late.now = func() time.Time { return time.Now().Add(stateTTL + time.Minute) }
	assert.ErrorIs(t, late.VerifyState(state), ErrInvalidToken)
}
