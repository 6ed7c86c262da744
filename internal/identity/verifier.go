// Package identity verifies session tokens minted by the identity provider.
package identity

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"brokerhub/internal/platform/config"
	"brokerhub/internal/platform/middleware"
	id "brokerhub/pkg/domain"
	dErrors "brokerhub/pkg/domain-errors"
)

// Claims is the token payload the identity provider signs for a principal.
type Claims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 session tokens against the shared signing key.
type Verifier struct {
	signingKey []byte
	issuer     string
}

func NewVerifier(cfg config.IdentityConfig) *Verifier {
	return &Verifier{
		signingKey: []byte(cfg.SigningKey),
		issuer:     cfg.Issuer,
	}
}

// VerifyToken checks the signature, expiry and issuer of a token and maps
// its claims onto the authenticated principal.
func (v *Verifier) VerifyToken(tokenString string) (*middleware.TokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return v.signingKey, nil
	}, jwt.WithIssuer(v.issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	principalID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token subject is not a principal id")
	}

	return &middleware.TokenClaims{
		PrincipalID:   id.PrincipalID(principalID),
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
	}, nil
}

// Issue signs a token for the given principal. The server never mints tokens
// in production, this backs local development and tests.
func (v *Verifier) Issue(principalID id.PrincipalID, email string, emailVerified bool, expiresIn time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email:         email,
		EmailVerified: emailVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principalID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    v.issuer,
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(v.signingKey)
}
