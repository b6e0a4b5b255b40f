package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/izeeshan007/eternal-essence-backend/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

var ErrUnauthenticated = errors.New("unauthenticated")

type Claims struct {
	UserID  string `json:"id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

// JWTAuthenticator verifies HS256 bearer tokens issued by the user
// service. The configured admin email is treated as an admin even without
// the claim.
type JWTAuthenticator struct {
	secret     []byte
	adminEmail string
}

func NewJWTAuthenticator(secret, adminEmail string) *JWTAuthenticator {
	return &JWTAuthenticator{
		secret:     []byte(secret),
		adminEmail: domain.NormalizeEmail(adminEmail),
	}
}

func (a *JWTAuthenticator) Authenticate(token string) (domain.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Identity{}, ErrUnauthenticated
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	email := domain.NormalizeEmail(claims.Email)
	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if email == "" && userID == "" {
		return domain.Identity{}, fmt.Errorf("%w: token carries no identity", ErrUnauthenticated)
	}

	return domain.Identity{
		UserID:  userID,
		Email:   email,
		IsAdmin: claims.IsAdmin || (a.adminEmail != "" && email == a.adminEmail),
	}, nil
}

// Issue signs a token for id. Used by tests and local tooling.
func (a *JWTAuthenticator) Issue(id domain.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:  id.UserID,
		Email:   id.Email,
		IsAdmin: id.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}
