package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	id "brokerhub/pkg/domain"
	"brokerhub/pkg/requestcontext"
)

// TokenVerifier validates an identity-provider session token.
type TokenVerifier interface {
	VerifyToken(tokenString string) (*TokenClaims, error)
}

// TokenClaims represents the claims we expect from the identity provider.
type TokenClaims struct {
	PrincipalID   id.PrincipalID
	Email         string
	EmailVerified bool
}

// RequireAuth rejects requests without a valid bearer token and stores the
// authenticated principal ID in the request context.
func RequireAuth(verifier TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := verifier.VerifyToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			ctx = requestcontext.WithPrincipalID(ctx, claims.PrincipalID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
