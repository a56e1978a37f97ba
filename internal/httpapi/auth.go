package httpapi

import (
	"context"
	"net/http"
	"strings"

	"abode/internal/httpkit"
	"abode/internal/pkg/errors"
	"abode/internal/pkg/logger"
	"abode/internal/render"
)

// KeyResolver turns a bearer API key into the caller's identity.
type KeyResolver interface {
	Resolve(ctx context.Context, key string) (render.Identity, error)
}

// Auth resolves the Authorization bearer key and stores the identity in the
// request context. Missing or unknown keys end the request with 401.
func Auth(keys KeyResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := bearerToken(r)
			if key == "" {
				httpkit.WriteError(w, errors.Unauthorized("Unauthorized"))
				return
			}

			id, err := keys.Resolve(r.Context(), key)
			if err != nil {
				httpkit.WriteError(w, err)
				return
			}

			ctx := render.WithIdentity(r.Context(), id)
			ctx = logger.ContextWithOrgID(ctx, id.OrgID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FarmAuth guards the farm callback routes with a shared token.
func FarmAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" || bearerToken(r) != token {
				httpkit.WriteError(w, errors.Unauthorized("Unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
