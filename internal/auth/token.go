package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/BradenHooton/farmgate/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "farmgate"

// ErrInvalidToken covers every verification failure: bad signature, wrong
// algorithm, malformed payload, expiry.
var ErrInvalidToken = errors.New("invalid or expired token")

// TokenManager signs and verifies HS256 session tokens
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue signs claims with a fresh jti and the configured lifetime. The
// registered claims on the input are overwritten.
func (tm *TokenManager) Issue(claims *models.SessionClaims) (string, time.Time, error) {
	now := tm.now()
	expiresAt := now.Add(tm.ttl)

	signed := *claims
	if signed.Permissions == nil {
		signed.Permissions = []models.ModulePermissions{}
	}
	signed.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.New().String(),
		Issuer:    tokenIssuer,
		Subject:   strconv.FormatInt(claims.AccountID, 10),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &signed)

	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// Verify checks signature, algorithm, issuer and expiry and returns the claims
func (tm *TokenManager) Verify(tokenString string) (*models.SessionClaims, error) {
	claims := &models.SessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.AccountID == 0 {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
