package middleware

import (
	"net/http"

	"github.com/rohansroy/giterdone/internal/domain"
)

// RequireMethod allows access only to sessions that were issued for one of
// the given authentication methods.
func RequireMethod(allowed ...domain.AuthMethod) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			for _, m := range allowed {
				if domain.AuthMethod(claims.AuthMethod) == m {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeJSONError(w, http.StatusForbidden, "not available for "+claims.AuthMethod+" accounts")
		})
	}
}
