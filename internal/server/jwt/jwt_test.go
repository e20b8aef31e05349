package jwt

import (
	"context"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/docsync/internal/models"
)

func TestService_IssueValidate(t *testing.T) {
	s := NewService("test-secret", time.Hour)
	alice := models.User{ID: "u-alice", Name: "Alice"}

	token, expiresIn, err := s.Issue(alice)
	require.NoError(t, err)
	assert.Equal(t, int64(3600), expiresIn)

	claims, err := s.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, alice, claims.User())
	assert.Equal(t, Issuer, claims.Issuer)
}

func TestService_IssueRequiresID(t *testing.T) {
	s := NewService("test-secret", time.Hour)
	_, _, err := s.Issue(models.User{Name: "nobody"})
	assert.Error(t, err)
}

func TestService_ValidateRejects(t *testing.T) {
	s := NewService("test-secret", time.Hour)
	alice := models.User{ID: "u-alice", Name: "Alice"}

	valid, _, err := s.Issue(alice)
	require.NoError(t, err)

	expired := NewService("test-secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, err := expired.Issue(alice)
	require.NoError(t, err)

	other, _, err := NewService("other-secret", time.Hour).Issue(alice)
	require.NoError(t, err)

	foreign := gojwt.NewWithClaims(gojwt.SigningMethodHS256, Claims{
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   "u-alice",
			Issuer:    "someone-else",
			ExpiresAt: gojwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	foreignToken, err := foreign.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	none := gojwt.NewWithClaims(gojwt.SigningMethodNone, Claims{
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   "u-alice",
			Issuer:    Issuer,
			ExpiresAt: gojwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	noneToken, err := none.SignedString(gojwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"empty", ""},
		{"expired", old},
		{"wrong secret", other},
		{"wrong issuer", foreignToken},
		{"unsigned", noneToken},
		{"tampered", valid + "A"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Validate(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestUserContext(t *testing.T) {
	_, ok := UserFromContext(context.Background())
	assert.False(t, ok)

	alice := models.User{ID: "u-alice", Name: "Alice"}
	user, ok := UserFromContext(WithUser(context.Background(), alice))
	require.True(t, ok)
	assert.Equal(t, alice, user)
}
