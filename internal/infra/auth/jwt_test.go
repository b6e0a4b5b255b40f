package auth

import (
	"testing"
	"time"

	"github.com/izeeshan007/eternal-essence-backend/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTAuthenticator_RoundTrip(t *testing.T) {
	a := NewJWTAuthenticator("s3cret", "Owner@Shop.com")

	token, err := a.Issue(domain.Identity{UserID: "u1", Email: "buyer@example.com"}, time.Hour)
	require.NoError(t, err)

	id, err := a.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)
	assert.Equal(t, "buyer@example.com", id.Email)
	assert.False(t, id.IsAdmin)
}

func TestJWTAuthenticator_Admin(t *testing.T) {
	a := NewJWTAuthenticator("s3cret", "owner@shop.com")

	byClaim, err := a.Issue(domain.Identity{UserID: "u2", Email: "ops@shop.com", IsAdmin: true}, time.Hour)
	require.NoError(t, err)
	id, err := a.Authenticate(byClaim)
	require.NoError(t, err)
	assert.True(t, id.IsAdmin)

	byEmail, err := a.Issue(domain.Identity{UserID: "u3", Email: "OWNER@shop.com"}, time.Hour)
	require.NoError(t, err)
	id, err = a.Authenticate(byEmail)
	require.NoError(t, err)
	assert.True(t, id.IsAdmin)
}

func TestJWTAuthenticator_Rejects(t *testing.T) {
	a := NewJWTAuthenticator("s3cret", "")

	expired, err := a.Issue(domain.Identity{UserID: "u1", Email: "a@b.c"}, -time.Minute)
	require.NoError(t, err)

	otherKey, err := NewJWTAuthenticator("different", "").Issue(domain.Identity{UserID: "u1"}, time.Hour)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	anonymous, err := a.Issue(domain.Identity{}, time.Hour)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":       "",
		"garbage":     "not.a.token",
		"expired":     expired,
		"wrong key":   otherKey,
		"alg none":    none,
		"no identity": anonymous,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := a.Authenticate(token)
			assert.ErrorIs(t, err, ErrUnauthenticated)
		})
	}
}
