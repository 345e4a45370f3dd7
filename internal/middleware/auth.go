package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type contextKey string

const (
	TenantKey contextKey = "tenant"
	APIKeyKey contextKey = "api_key"
)

var publicPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

// APIKeyAuth validates API key from Authorization header. validKeys maps
// tenant to key; an empty map disables authentication.
func APIKeyAuth(validKeys map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(validKeys) == 0 || publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				WriteError(w, http.StatusUnauthorized, "missing Authorization header")
				return
			}

			// Support both "Bearer <key>" and "<key>" formats
			apiKey := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if apiKey == "" {
				WriteError(w, http.StatusUnauthorized, "invalid Authorization header format")
				return
			}

			// constant-time comparison
			var tenant string
			for t, key := range validKeys {
				if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
					tenant = t
					break
				}
			}
			if tenant == "" {
				WriteError(w, http.StatusUnauthorized, "invalid API key")
				return
			}

			if info, ok := r.Context().Value(requestInfoKey{}).(*requestInfo); ok {
				info.tenant = tenant
			}
			ctx := context.WithValue(r.Context(), TenantKey, tenant)
			ctx = context.WithValue(ctx, APIKeyKey, apiKey)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetTenantFromContext extracts tenant from context
func GetTenantFromContext(ctx context.Context) string {
	if tenant, ok := ctx.Value(TenantKey).(string); ok {
		return tenant
	}
	return ""
}

// RequireValidTenant checks the {tenant} URL parameter and, when the request
// was authenticated, that it names the caller's own tenant. Mount it inside
// the /v1/{tenant} route.
func RequireValidTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		urlTenant := chi.URLParam(r, "tenant")
		if err := ValidateTenantID(urlTenant); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		if authTenant := GetTenantFromContext(r.Context()); authTenant != "" && authTenant != urlTenant {
			WriteError(w, http.StatusForbidden, "API key is not valid for this tenant")
			return
		}
		next.ServeHTTP(w, r)
	})
}
