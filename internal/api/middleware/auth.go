package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ecoroute/ecoroute/internal/api/models"
	"github.com/ecoroute/ecoroute/internal/auth"
)

type claimsKey struct{}

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// Auth rejects requests without a valid bearer token and stores the claims
// in the request context.
func Auth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeProblem(w, r, models.NewUnauthorized(GetRequestID(r.Context()), "missing or malformed bearer token"))
				return
			}

			claims, err := validator.Validate(token)
			if err != nil {
				detail := "invalid access token"
				switch {
				case errors.Is(err, auth.ErrTokenExpired):
					detail = "access token has expired"
				case errors.Is(err, auth.ErrMissingSigningKey):
					detail = "operator authentication is not configured"
				}
				writeProblem(w, r, models.NewUnauthorized(GetRequestID(r.Context()), detail))
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireOperator rejects authenticated callers without the operator role.
// It must run after Auth.
func RequireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := GetClaims(r.Context())
		if claims == nil || !claims.CanOperate() {
			writeProblem(w, r, models.NewForbidden(GetRequestID(r.Context()), "operator role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetClaims returns the authenticated claims, or nil.
func GetClaims(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey{}).(*auth.Claims)
	return claims
}

// GetSubject returns the authenticated subject, or "".
func GetSubject(ctx context.Context) string {
	if claims := GetClaims(ctx); claims != nil {
		return claims.Subject
	}
	return ""
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// writeProblem lives here rather than in the response package, which imports
// this one.
func writeProblem(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}
