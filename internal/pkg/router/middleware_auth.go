package router

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/casbin/casbin/v3"
	"github.com/shandysiswandi/konkurs/internal/pkg/jwt"
)

const kindInvalidToken = "invalid_token"

// gate authenticates the bearer token, refuses revoked or inactive
// accounts, then authorizes the caller's role against the route table.
type gate struct {
	verifier   jwt.JWT
	revocation RevocationChecker
	enforcer   *casbin.Enforcer
}

func (g *gate) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token, ok := BearerToken(r)
		if !ok {
			unauthorized(w, "Authentication required")
			return
		}

		claims, err := g.verifier.Verify(token)
		if err != nil {
			unauthorized(w, "Invalid or expired token")
			return
		}

		if g.revocation != nil {
			revoked, err := g.revocation.IsRevoked(ctx, token)
			if err != nil {
				slog.ErrorContext(ctx, "failed to check token revocation", "jti", claims.ID, "error", err)
				unauthorized(w, "Invalid or expired token")
				return
			}
			if revoked {
				unauthorized(w, "Invalid or expired token")
				return
			}
		}

		if !claims.IsActive {
			writeJSON(w, errorResponse{Message: "Account is not activated", Kind: "inactive"}, http.StatusForbidden)
			return
		}

		allowed, err := g.enforcer.Enforce(claims.Role, matchedRoutePath(r), r.Method)
		if err != nil {
			slog.ErrorContext(ctx, "failed to enforce route policy", "role", claims.Role, "error", err)
		}
		if !allowed {
			writeJSON(w, errorResponse{Message: "You do not have access to this resource", Kind: "forbidden"}, http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r.WithContext(jwt.SetAuth(ctx, claims)))
	})
}

func unauthorized(w http.ResponseWriter, msg string) {
	writeJSON(w, errorResponse{Message: msg, Kind: kindInvalidToken}, http.StatusUnauthorized)
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	token = strings.TrimSpace(token)
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}
