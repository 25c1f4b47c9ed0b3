package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/markjakearzadon/paygate-gobackend/internal/apperr"
	"github.com/markjakearzadon/paygate-gobackend/internal/models"
	"github.com/markjakearzadon/paygate-gobackend/internal/services"
)

type TokenParser interface {
	ParseToken(token string) (*services.Claims, error)
}

type claimsKey struct{}

// ClaimsFrom returns the admin claims stored by RequireAdmin.
func ClaimsFrom(ctx context.Context) (*services.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*services.Claims)
	return c, ok
}

// RequireAdmin admits requests carrying a valid bearer token with the admin role.
func RequireAdmin(parser TokenParser) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || strings.TrimSpace(tokenString) == "" {
				writeError(w, apperr.New(apperr.KindUnauthorized, "authorization header required"))
				return
			}
			claims, err := parser.ParseToken(strings.TrimSpace(tokenString))
			if err != nil {
				writeError(w, err)
				return
			}
			if claims.Role != models.RoleAdmin {
				writeError(w, apperr.New(apperr.KindForbidden, "admin access required"))
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
		})
	}
}
